package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*FakeEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.FakeEmbedder.Embed(ctx, texts)
}

type memCache struct {
	vectors map[string][]float32
}

func newMemCache() *memCache { return &memCache{vectors: make(map[string][]float32)} }

func (m *memCache) GetEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error) {
	v, ok := m.vectors[contentHash]
	return v, ok, nil
}

func (m *memCache) SetEmbedding(ctx context.Context, contentHash string, vector []float32) error {
	m.vectors[contentHash] = vector
	return nil
}

func TestCachingEmbedderSkipsRepeatedContent(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(4)}
	cache := newMemCache()
	ce := NewCachingEmbedder(inner, cache)

	first, err := ce.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	second, err := ce.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second call should be served entirely from cache")
	assert.Equal(t, first, second)
}

func TestCachingEmbedderEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(4)}
	cache := newMemCache()
	ce := NewCachingEmbedder(inner, cache)

	_, err := ce.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	out, err := ce.Embed(context.Background(), []string{"alpha", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Len(t, out, 2)
}

func TestCachingEmbedderQueryBypassesCache(t *testing.T) {
	inner := &countingEmbedder{FakeEmbedder: NewFakeEmbedder(4)}
	ce := NewCachingEmbedder(inner, newMemCache())

	v1, err := ce.EmbedQuery(context.Background(), "find me")
	require.NoError(t, err)
	v2, err := ce.EmbedQuery(context.Background(), "find me")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}
