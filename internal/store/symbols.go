package store

import (
	"context"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/chunker"
	"github.com/KhaineVulpana/loco-core/internal/indexer"
	"github.com/KhaineVulpana/loco-core/internal/retriever"
)

var _ indexer.ContentStore = (*Store)(nil)
var _ retriever.SymbolSearcher = (*Store)(nil)

// symbolSearchScore mirrors chunks.go's textSearchScore: a LIKE match
// on a symbol name has no natural ranking signal of its own.
const symbolSearchScore = 0.6

// SaveSymbols implements the rest of indexer.ContentStore: it replaces
// every symbol previously recorded for relPath with the given set,
// since a re-index always supersedes a file's prior symbol list.
func (s *Store) SaveSymbols(ctx context.Context, workspaceID, relPath string, symbols []chunker.Symbol) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save symbols: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM symbols WHERE workspace_id = ? AND rel_path = ?`, workspaceID, relPath); err != nil {
		return fmt.Errorf("store: save symbols: clear %s: %w", relPath, err)
	}

	for _, sym := range symbols {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO symbols (workspace_id, rel_path, name, kind, start_line, start_column, end_line, end_column, signature, parent_qualname, chunk_index)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			workspaceID, relPath, sym.Name, sym.Kind, sym.StartLine, sym.StartColumn, sym.EndLine, sym.EndColumn, sym.Signature, sym.ParentQualname, sym.ChunkIndex)
		if err != nil {
			return fmt.Errorf("store: save symbol %s: %w", sym.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save symbols: commit: %w", err)
	}
	return nil
}

// SearchSymbols implements retriever.SymbolSearcher as a LIKE match
// against both a symbol's own name and its enclosing qualified name
// (so searching "Server" also finds methods on it).
func (s *Store) SearchSymbols(ctx context.Context, workspaceID, term string, limit int) ([]retriever.Result, error) {
	if term == "" {
		return nil, nil
	}
	like := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT rel_path, name, kind, signature, chunk_index FROM symbols
		 WHERE workspace_id = ? AND (name LIKE ? OR parent_qualname LIKE ?)
		 LIMIT ?`,
		workspaceID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search symbols: %w", err)
	}
	defer rows.Close()

	var results []retriever.Result
	for rows.Next() {
		var relPath, name, kind, signature string
		var chunkIndex int
		if err := rows.Scan(&relPath, &name, &kind, &signature, &chunkIndex); err != nil {
			return nil, fmt.Errorf("store: scan symbol row: %w", err)
		}
		results = append(results, retriever.Result{
			Score:   symbolSearchScore,
			Content: fmt.Sprintf("%s %s: %s", kind, name, signature),
			Source:  relPath,
			Metadata: map[string]any{
				"file_path":   relPath,
				"chunk_index": chunkIndex,
				"symbol":      name,
			},
		})
	}
	return results, rows.Err()
}
