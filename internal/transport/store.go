package transport

import "context"

// Store persists the session-scoped side effects spec.md §4.10 names:
// a user row (with context JSON) on every client.user_message, the
// session title on first message, and an assistant row (with
// metadata JSON) on every message_final. internal/store implements
// this against the relational schema spec.md §6 lists
// (sessions/session_messages+FTS).
type Store interface {
	AppendMessage(ctx context.Context, sessionID, role, content string, turnContext, metadata map[string]any) error
	EnsureTitle(ctx context.Context, sessionID, firstLine string) error
}

// ToolEventRecorder persists one audit row per tool dispatch, matching
// spec.md §6's tool_events table. Optional: a Session with a nil
// Events collaborator simply skips recording. internal/store's Store
// implements both this and Store, so one collaborator usually serves
// both roles.
type ToolEventRecorder interface {
	RecordToolEvent(ctx context.Context, sessionID, tool string, arguments map[string]any, result string) error
}
