package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/transport"
)

var _ transport.Store = (*Store)(nil)

// ensureSession inserts a session row if one doesn't already exist,
// matching session_service_sql.go's GetOrCreateSessionMetadata.
func (s *Store) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, sessionID)
	if err != nil {
		return fmt.Errorf("store: ensure session %s: %w", sessionID, err)
	}
	return nil
}

// AppendMessage implements transport.Store: it persists one session
// message row (which the session_messages_fts trigger mirrors into
// the full-text index) and bumps the session's message count and
// updated_at timestamp.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string, turnContext, metadata map[string]any) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	contextJSON, err := marshalOrNil(turnContext)
	if err != nil {
		return fmt.Errorf("store: marshal message context: %w", err)
	}
	metadataJSON, err := marshalOrNil(metadata)
	if err != nil {
		return fmt.Errorf("store: marshal message metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_messages (session_id, role, content, context_json, metadata_json) VALUES (?, ?, ?, ?, ?)`,
		sessionID, role, content, contextJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sessionID)
	if err != nil {
		return fmt.Errorf("store: update session counters: %w", err)
	}
	return nil
}

// EnsureTitle implements transport.Store: it sets the session's title
// to firstLine only if no title has been set yet.
func (s *Store) EnsureTitle(ctx context.Context, sessionID, firstLine string) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ? WHERE id = ? AND (title IS NULL OR title = '')`,
		firstLine, sessionID)
	if err != nil {
		return fmt.Errorf("store: ensure title: %w", err)
	}
	return nil
}

// SessionSummary is one row of session metadata.
type SessionSummary struct {
	ID           string
	Title        string
	MessageCount int
}

// GetSession returns a session's metadata, or ok=false if it doesn't
// exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (SessionSummary, bool, error) {
	var row SessionSummary
	var title sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, message_count FROM sessions WHERE id = ?`, sessionID).
		Scan(&row.ID, &title, &row.MessageCount)
	if err == sql.ErrNoRows {
		return SessionSummary{}, false, nil
	}
	if err != nil {
		return SessionSummary{}, false, fmt.Errorf("store: get session: %w", err)
	}
	row.Title = title.String
	return row, true, nil
}

func marshalOrNil(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
