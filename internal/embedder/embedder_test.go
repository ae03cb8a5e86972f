package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/config"
)

func TestHTTPEmbedderEmbedEmptyInput(t *testing.T) {
	e := NewHTTPEmbedder(config.EmbedderConfig{BaseURL: "http://unused", Model: "m", Dimensions: 4}, http.DefaultClient)
	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, vectors)
	assert.Len(t, vectors, 0)
}

func TestHTTPEmbedderNormalizesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{3, 4})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := NewHTTPEmbedder(config.EmbedderConfig{BaseURL: server.URL, Model: "m", Dimensions: 2}, server.Client())
	vectors, err := e.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.InDelta(t, 0.6, vectors[0][0], 0.001)
	assert.InDelta(t, 0.8, vectors[0][1], 0.001)
}

func TestHTTPEmbedderBatchesRequests(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 0})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	texts := make([]string, 130)
	for i := range texts {
		texts[i] = "text"
	}

	e := NewHTTPEmbedder(config.EmbedderConfig{BaseURL: server.URL, Model: "m", Dimensions: 2}, server.Client())
	vectors, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 130)
	assert.Equal(t, 3, calls)
}

func TestFakeEmbedderDeterministic(t *testing.T) {
	e := NewFakeEmbedder(8)
	a, err := e.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	b, err := e.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.EmbedSingle(context.Background(), "world")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
