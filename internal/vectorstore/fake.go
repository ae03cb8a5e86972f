package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// FakeStore is an in-memory Store used by this package's own tests and
// by every other component's tests that need a vector store
// collaborator without a live Qdrant instance, grounded on hector's
// pkg/memory/mocks.go in-memory-fake style.
type FakeStore struct {
	mu          sync.Mutex
	collections map[string][]Point
}

// NewFakeStore constructs an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{collections: make(map[string][]Point)}
}

func (f *FakeStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[collection]; !ok {
		f.collections[collection] = nil
	}
	return nil
}

func (f *FakeStore) Upsert(ctx context.Context, collection string, points []Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.collections[collection]
	for _, p := range points {
		replaced := false
		for i, e := range existing {
			if e.ID == p.ID {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
	}
	f.collections[collection] = existing
	return nil
}

func (f *FakeStore) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter *Filter) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var results []SearchResult
	for _, p := range f.collections[collection] {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		score := cosineSimilarity(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, SearchResult{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *FakeStore) Scroll(ctx context.Context, collection string, limit int, offset string, filter *Filter) (ScrollPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	points := f.collections[collection]
	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })

	start := 0
	if offset != "" {
		for i, p := range points {
			if p.ID == offset {
				start = i + 1
				break
			}
		}
	}

	var page []Point
	for i := start; i < len(points) && len(page) < limit; i++ {
		if !matchesFilter(points[i].Payload, filter) {
			continue
		}
		page = append(page, points[i])
	}

	next := ""
	if len(page) == limit && start+len(page) < len(points) {
		next = page[len(page)-1].ID
	}
	return ScrollPage{Points: page, NextOffset: next}, nil
}

func (f *FakeStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	toDelete := make(map[string]bool, len(ids))
	for _, id := range ids {
		toDelete[id] = true
	}
	existing := f.collections[collection]
	kept := existing[:0]
	for _, p := range existing {
		if !toDelete[p.ID] {
			kept = append(kept, p)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *FakeStore) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points, ok := f.collections[collection]
	if !ok {
		return CollectionInfo{}, fmt.Errorf("fake store: collection %q not found", collection)
	}
	var vecSize uint64
	if len(points) > 0 {
		vecSize = uint64(len(points[0].Vector))
	}
	return CollectionInfo{PointsCount: uint64(len(points)), VectorSize: vecSize}, nil
}

func (f *FakeStore) Close() error { return nil }

func matchesFilter(payload map[string]any, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		if fmt.Sprint(payload[cond.Key]) != fmt.Sprint(cond.Match) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
