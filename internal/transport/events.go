// Package transport implements C10: the per-session bidirectional
// WebSocket channel between a client and one agent.Runtime turn loop.
//
// Grounded on hector's a2a/server.go handleStreamTask (websocket.Upgrader,
// conn.ReadJSON/WriteJSON, channel-driven chunk streaming) generalized from
// one-shot task execution to a long-lived session protocol, and on
// pkg/session/session.go for the session-as-owned-state concept. The exact
// event taxonomy and state machine come from spec.md §4.10 and §6, which
// have no single teacher analogue.
package transport

import "errors"

// ProtocolVersion is sent in every server.hello event.
const ProtocolVersion = "1.0"

// Client event type discriminators (spec.md §6).
const (
	ClientHello            = "client.hello"
	ClientPing             = "client.ping"
	ClientUserMessage      = "client.user_message"
	ClientApprovalResponse = "client.approval_response"
	ClientCancel           = "client.cancel"
)

// Server event type discriminators (spec.md §6).
const (
	ServerHello              = "server.hello"
	ServerPong               = "server.pong"
	AssistantThinking        = "assistant.thinking"
	AssistantMessageDelta    = "assistant.message_delta"
	AssistantToolUse         = "assistant.tool_use"
	AssistantToolResult      = "assistant.tool_result"
	AssistantApprovalRequest = "assistant.approval_request"
	AssistantMessageFinal    = "assistant.message_final"
	ServerError              = "server.error"
)

// ErrSessionClosed is returned from RequestApproval when the session's
// connection goes away before a client.approval_response arrives,
// matching spec.md §5's "on disconnect all awaiters are rejected".
var ErrSessionClosed = errors.New("transport: session closed")

// ClientInfo identifies the connecting client in client.hello.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientEvent is the envelope every inbound message decodes into.
// Only the fields relevant to Type are populated by the sender; the
// rest are left zero, matching the single-struct-many-kinds shape
// hector's StreamChunk uses for the equivalent outbound case.
type ClientEvent struct {
	Type       string         `json:"type"`
	ClientInfo *ClientInfo    `json:"client_info,omitempty"`
	Message    string         `json:"message,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Approved   bool           `json:"approved,omitempty"`
}

// ModelInfo describes the runtime's currently loaded model.
type ModelInfo struct {
	Provider     string   `json:"provider"`
	ModelName    string   `json:"model_name"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ServerInfo is server.hello's payload.
type ServerInfo struct {
	Version      string     `json:"version"`
	Model        *ModelInfo `json:"model,omitempty"`
	Capabilities []string   `json:"capabilities"`
}

// ErrorPayload is server.error's nested error object.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerEvent is the envelope every outbound message encodes from.
// Only the fields relevant to Type are populated.
type ServerEvent struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version,omitempty"`
	ServerInfo      *ServerInfo    `json:"server_info,omitempty"`
	Timestamp       int64          `json:"timestamp,omitempty"`
	Phase           string         `json:"phase,omitempty"`
	Message         string         `json:"message,omitempty"`
	Delta           string         `json:"delta,omitempty"`
	Tool            string         `json:"tool,omitempty"`
	Arguments       map[string]any `json:"arguments,omitempty"`
	Result          string         `json:"result,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
	Prompt          string         `json:"prompt,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Error           *ErrorPayload  `json:"error,omitempty"`
}
