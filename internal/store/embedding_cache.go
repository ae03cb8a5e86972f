package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/embedder"
)

var _ embedder.Cache = (*Store)(nil)

// GetEmbedding implements embedder.Cache. A hit bumps use_count, the
// cache's sole observability signal (spec.md §3/§4.5 and scenario 4,
// which sums use_count across repeated lookups of the same content).
func (s *Store) GetEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding_json FROM embedding_cache WHERE content_hash = ?`, contentHash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get embedding %s: %w", contentHash, err)
	}
	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, false, fmt.Errorf("store: decode embedding %s: %w", contentHash, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE embedding_cache SET use_count = use_count + 1 WHERE content_hash = ?`, contentHash); err != nil {
		return nil, false, fmt.Errorf("store: bump use_count %s: %w", contentHash, err)
	}
	return vector, true, nil
}

// UseCount returns the recorded hit count for contentHash, for tests
// and observability callers.
func (s *Store) UseCount(ctx context.Context, contentHash string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT use_count FROM embedding_cache WHERE content_hash = ?`, contentHash).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get use_count %s: %w", contentHash, err)
	}
	return count, nil
}

// SetEmbedding implements embedder.Cache.
func (s *Store) SetEmbedding(ctx context.Context, contentHash string, vector []float32) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("store: encode embedding %s: %w", contentHash, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (content_hash, embedding_json) VALUES (?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET embedding_json = excluded.embedding_json`,
		contentHash, string(raw))
	if err != nil {
		return fmt.Errorf("store: set embedding %s: %w", contentHash, err)
	}
	return nil
}
