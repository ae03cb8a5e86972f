// Package embedder implements C3's embedding half: a thin HTTP client
// over an embedding server, batching requests and L2-normalizing
// results so cosine similarity reduces to a dot product everywhere
// downstream.
//
// Grounded on hector's pkg/embedder/embedder.go (interface shape) and
// original_source's backend/app/core/embedding_manager.py (batching,
// normalization).
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/KhaineVulpana/loco-core/internal/config"
	"github.com/KhaineVulpana/loco-core/internal/errs"
)

// batchSize caps how many texts go into one HTTP request, matching
// indexer.py's BATCH_SIZE.
const batchSize = 64

// Embedder turns text into L2-normalized vectors.
type Embedder interface {
	// Embed returns one vector per input text, in order. Calling Embed
	// with an empty slice returns an empty (non-nil) slice without
	// making a network call — the "0×dim" empty-input contract.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle embeds exactly one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery embeds a search query. Distinct from EmbedSingle so a
	// future asymmetric embedding model (different prompt prefix for
	// queries vs documents) has a seam to hook into without callers
	// changing.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions reports the vector length this embedder produces.
	Dimensions() int
}

// HTTPEmbedder calls a local embedding server's /embed-style endpoint.
type HTTPEmbedder struct {
	cfg    config.EmbedderConfig
	client *http.Client
}

// NewHTTPEmbedder constructs an HTTPEmbedder for cfg.
func NewHTTPEmbedder(cfg config.EmbedderConfig, client *http.Client) *HTTPEmbedder {
	return &HTTPEmbedder{cfg: cfg, client: client}
}

func (e *HTTPEmbedder) Dimensions() int { return e.cfg.Dimensions }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedder: %v", errs.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embedder: status %s", errs.ErrProviderUnavailable, resp.Status)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(decoded.Embeddings))
	}

	for i := range decoded.Embeddings {
		normalize(decoded.Embeddings[i])
	}
	return decoded.Embeddings, nil
}

func (e *HTTPEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *HTTPEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.EmbedSingle(ctx, query)
}

// normalize scales v to unit length in place, so downstream cosine
// similarity search can use a plain dot product. A zero vector is left
// as-is.
func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
