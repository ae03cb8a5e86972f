package store

import (
	"context"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/transport"
)

var _ transport.ToolEventRecorder = (*Store)(nil)

// RecordToolEvent implements transport.ToolEventRecorder: one audit
// row per tool dispatch, independent of session message history.
func (s *Store) RecordToolEvent(ctx context.Context, sessionID, tool string, arguments map[string]any, result string) error {
	argsJSON, err := marshalOrNil(arguments)
	if err != nil {
		return fmt.Errorf("store: marshal tool event arguments: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tool_events (session_id, tool, arguments_json, result) VALUES (?, ?, ?, ?)`,
		sessionID, tool, argsJSON, result)
	if err != nil {
		return fmt.Errorf("store: record tool event: %w", err)
	}
	return nil
}
