// Package vectorstore implements C3's vector-store half: a narrow
// interface over a Qdrant-flavored contract (collections, points,
// cosine search, offset-paginated scroll, metadata filters), matching
// the "collection"/"points"/"scroll" vocabulary spec.md §6 names.
//
// Grounded on hector's pkg/databases/qdrant.go (idempotent collection
// creation, wrapped troubleshooting errors) and pkg/vector/qdrant.go
// (config shape).
package vectorstore

import "context"

// Point is one vector plus its metadata payload, addressed by a
// caller-assigned string id (a UUID in every component that writes
// here).
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one scored hit from Search.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Condition is a single equality filter term ANDed into a Filter.
type Condition struct {
	Key   string
	Match any
}

// Filter restricts a Search or Scroll to points whose payload matches
// every condition.
type Filter struct {
	Must []Condition
}

// ScrollPage is one page of an offset-paginated Scroll.
type ScrollPage struct {
	Points     []Point
	NextOffset string // empty when there are no more pages
}

// CollectionInfo summarizes a collection's size and vector dimension.
type CollectionInfo struct {
	PointsCount uint64
	VectorSize  uint64
}

// Store is the vector-store contract every component in this module
// depends on (C5 indexer, C7 retriever, C8 ace).
type Store interface {
	// EnsureCollection creates the named collection with the given
	// cosine-distance vector size if it doesn't already exist. It is a
	// no-op if the collection exists, regardless of its configured size.
	EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to limit points scoring at or above
	// scoreThreshold, closest first. filter may be nil.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter *Filter) ([]SearchResult, error)

	// Scroll returns one page of up to limit points in id order,
	// starting after offset (empty offset starts at the beginning).
	Scroll(ctx context.Context, collection string, limit int, offset string, filter *Filter) (ScrollPage, error)

	// DeletePoints removes points by id. Deleting a non-existent id is
	// not an error.
	DeletePoints(ctx context.Context, collection string, ids []string) error

	// CollectionInfo reports size metadata for an existing collection.
	CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error)

	Close() error
}
