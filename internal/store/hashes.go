package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/indexer"
)

var _ indexer.HashTracker = (*Store)(nil)

// GetHash implements indexer.HashTracker.
func (s *Store) GetHash(ctx context.Context, workspaceID, relPath string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM files WHERE workspace_id = ? AND rel_path = ?`, workspaceID, relPath).
		Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get hash %s/%s: %w", workspaceID, relPath, err)
	}
	return hash, true, nil
}

// SetHash implements indexer.HashTracker. size and lineCount are
// recorded for index-status observability (spec.md §3's files record).
func (s *Store) SetHash(ctx context.Context, workspaceID, relPath, hash string, size, lineCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (workspace_id, rel_path, content_hash, size, line_count, index_status) VALUES (?, ?, ?, ?, ?, 'indexed')
		 ON CONFLICT(workspace_id, rel_path) DO UPDATE SET
		     content_hash = excluded.content_hash,
		     size = excluded.size,
		     line_count = excluded.line_count,
		     index_status = 'indexed',
		     updated_at = CURRENT_TIMESTAMP`,
		workspaceID, relPath, hash, size, lineCount)
	if err != nil {
		return fmt.Errorf("store: set hash %s/%s: %w", workspaceID, relPath, err)
	}
	return nil
}

// DeleteHash implements indexer.HashTracker: it forgets relPath's
// recorded hash, so a later re-creation of the same path reindexes
// from scratch instead of appearing unchanged.
func (s *Store) DeleteHash(ctx context.Context, workspaceID, relPath string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM files WHERE workspace_id = ? AND rel_path = ?`, workspaceID, relPath)
	if err != nil {
		return fmt.Errorf("store: delete hash %s/%s: %w", workspaceID, relPath, err)
	}
	return nil
}
