package embedder

import (
	"context"
	"hash/fnv"
)

// FakeEmbedder produces deterministic, normalized pseudo-embeddings
// from a text hash, for tests that need a collaborator without a real
// embedding server. Grounded on pkg/memory/mocks.go's in-memory-fake
// style.
type FakeEmbedder struct {
	dims int
}

// NewFakeEmbedder constructs a FakeEmbedder producing vectors of the
// given length.
func NewFakeEmbedder(dims int) *FakeEmbedder {
	return &FakeEmbedder{dims: dims}
}

func (f *FakeEmbedder) Dimensions() int { return f.dims }

func (f *FakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *FakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return f.vectorFor(text), nil
}

func (f *FakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return f.vectorFor(query), nil
}

// vectorFor derives a deterministic unit vector from text's hash, so
// identical texts embed identically and distinct texts embed
// distinctly, without a real model.
func (f *FakeEmbedder) vectorFor(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, f.dims)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed)%1000) / 1000.0
	}
	normalize(v)
	return v
}
