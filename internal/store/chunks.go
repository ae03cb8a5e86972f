package store

import (
	"context"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/retriever"
)

var _ retriever.ChunkHydrator = (*Store)(nil)
var _ retriever.TextSearcher = (*Store)(nil)

// textSearchScore is the fixed relevance score SQL LIKE matches carry,
// since a substring match has no natural ranking signal the way a
// vector cosine score does. Reranking downstream (retriever.rerank)
// still orders these lexically against the query.
const textSearchScore = 0.5

// SaveChunk implements part of indexer.ContentStore: it persists one
// chunk's content keyed by the vector id its point was upserted
// under, so a later vector search hit can be hydrated back by id.
func (s *Store) SaveChunk(ctx context.Context, workspaceID, relPath, vectorID string, chunkIndex int, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (vector_id, workspace_id, rel_path, chunk_index, content) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(vector_id) DO UPDATE SET content = excluded.content, chunk_index = excluded.chunk_index`,
		vectorID, workspaceID, relPath, chunkIndex, content)
	if err != nil {
		return fmt.Errorf("store: save chunk %s[%d]: %w", relPath, chunkIndex, err)
	}
	return nil
}

// VectorIDsForPath implements the rest of indexer.ContentStore: it
// returns every vector id previously saved for relPath, so the caller
// can delete the matching vector store points before dropping rows.
func (s *Store) VectorIDsForPath(ctx context.Context, workspaceID, relPath string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vector_id FROM chunks WHERE workspace_id = ? AND rel_path = ?`, workspaceID, relPath)
	if err != nil {
		return nil, fmt.Errorf("store: vector ids for %s: %w", relPath, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan vector id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteFile implements indexer.ContentStore: it drops relPath's chunk
// and symbol rows, the relational half of a watcher delete event.
func (s *Store) DeleteFile(ctx context.Context, workspaceID, relPath string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE workspace_id = ? AND rel_path = ?`, workspaceID, relPath); err != nil {
		return fmt.Errorf("store: delete chunks for %s: %w", relPath, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM symbols WHERE workspace_id = ? AND rel_path = ?`, workspaceID, relPath); err != nil {
		return fmt.Errorf("store: delete symbols for %s: %w", relPath, err)
	}
	return nil
}

// HydrateChunks implements retriever.ChunkHydrator.
func (s *Store) HydrateChunks(ctx context.Context, vectorIDs []string) (map[string]string, map[string]string, error) {
	content := make(map[string]string, len(vectorIDs))
	source := make(map[string]string, len(vectorIDs))
	if len(vectorIDs) == 0 {
		return content, source, nil
	}

	query, args := inClause(`SELECT vector_id, rel_path, content FROM chunks WHERE vector_id IN (`, vectorIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("store: hydrate chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, relPath, text string
		if err := rows.Scan(&id, &relPath, &text); err != nil {
			return nil, nil, fmt.Errorf("store: scan hydrated chunk: %w", err)
		}
		content[id] = text
		source[id] = relPath
	}
	return content, source, rows.Err()
}

// SearchText implements retriever.TextSearcher as a plain substring
// LIKE query, the relational fallback retriever.go uses when ripgrep
// isn't available on PATH. useRegex is accepted for interface parity
// with the ripgrep path but not honored here — SQLite's default build
// has no REGEXP function, so substring matching is the best this leg
// can do; the ripgrep leg is preferred whenever it can run.
func (s *Store) SearchText(ctx context.Context, workspaceID, query string, limit int, useRegex bool) ([]retriever.Result, error) {
	if query == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rel_path, chunk_index, content FROM chunks WHERE workspace_id = ? AND content LIKE ? LIMIT ?`,
		workspaceID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("store: search text: %w", err)
	}
	defer rows.Close()

	var results []retriever.Result
	for rows.Next() {
		var relPath string
		var chunkIndex int
		var content string
		if err := rows.Scan(&relPath, &chunkIndex, &content); err != nil {
			return nil, fmt.Errorf("store: scan text search row: %w", err)
		}
		results = append(results, retriever.Result{
			Score:   textSearchScore,
			Content: content,
			Source:  relPath,
			Metadata: map[string]any{
				"file_path":   relPath,
				"chunk_index": chunkIndex,
			},
		})
	}
	return results, rows.Err()
}

// inClause builds "<prefix>?, ?, ...)" with one placeholder per id,
// returning the finished query string and its argument list.
func inClause(prefix string, ids []string) (string, []any) {
	args := make([]any, len(ids))
	query := prefix
	for i, id := range ids {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args[i] = id
	}
	query += ")"
	return query, args
}
