package agent

// EventKind discriminates an Event's payload, matching the
// "assistant.*" event family spec.md §6 names (the "assistant."
// prefix is applied by internal/transport when it serializes these
// onto the wire).
type EventKind string

const (
	EventThinking        EventKind = "thinking"
	EventMessageDelta    EventKind = "message_delta"
	EventToolUse         EventKind = "tool_use"
	EventToolResult      EventKind = "tool_result"
	EventApprovalRequest EventKind = "approval_request"
	EventMessageFinal    EventKind = "message_final"
)

// Event is one step of a turn's progress, emitted over a channel to
// whatever transport (internal/transport's session writer, or a test)
// is consuming them.
type Event struct {
	Kind      EventKind
	Phase     string
	Iteration int
	Delta     string
	Tool      string
	Arguments map[string]any
	Result    string
	RequestID string
	Prompt    string
	Message   string
	Metadata  map[string]any
}
