// Package store implements the relational half of C3/C5/C7/C10: one
// SQLite database holding sessions, session messages (with an FTS5
// mirror), tool dispatch events, per-file content hashes, chunk
// content, symbol records, an embedding cache, and workspace policies
// — the table list spec.md §6 names.
//
// Grounded on hector's pkg/memory/session_service_sql.go (database/sql
// + go-sqlite3 idiom: schema-on-open, parameterized queries, a
// sequence counter per session) adapted from that file's
// postgres/mysql/sqlite dialect fan-out down to SQLite only, since
// go.mod carries only github.com/mattn/go-sqlite3.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns one SQLite connection and implements every relational
// collaborator interface internal/indexer, internal/retriever, and
// internal/transport define (HashTracker, ContentStore, SymbolSearcher,
// TextSearcher, ChunkHydrator, embedder.Cache, transport.Store).
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and ensures its
// schema exists. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite allows only one writer at a time; a single connection
	// avoids SQLITE_BUSY errors from the pool handing out a second one
	// mid-write, matching the single-process model spec.md §5 assumes.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}
