package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Cache persists embeddings keyed by content hash, matching spec.md
// §6's embedding_cache table. Implemented by internal/store.
type Cache interface {
	GetEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, contentHash string, vector []float32) error
}

// CachingEmbedder wraps another Embedder with a persistent cache keyed
// by content hash, so re-indexing unchanged chunk content (the common
// case on every watcher-triggered re-index) skips the embedding call
// entirely — the same "hash-skip" idea indexer.py applies to whole
// files, one level down at chunk granularity.
type CachingEmbedder struct {
	inner Embedder
	cache Cache
}

// NewCachingEmbedder wraps inner with cache. cache must not be nil.
func NewCachingEmbedder(inner Embedder, cache Cache) *CachingEmbedder {
	return &CachingEmbedder{inner: inner, cache: cache}
}

func (e *CachingEmbedder) Dimensions() int { return e.inner.Dimensions() }

func (e *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		hash := contentHash(text)
		hashes[i] = hash
		if vector, ok, err := e.cache.GetEmbedding(ctx, hash); err == nil && ok {
			out[i] = vector
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		_ = e.cache.SetEmbedding(ctx, hashes[i], fresh[j])
	}
	return out, nil
}

func (e *CachingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedQuery is never cached — queries are rarely repeated verbatim,
// so the lookup overhead wouldn't pay for itself.
func (e *CachingEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.inner.EmbedQuery(ctx, query)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
