package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KhaineVulpana/loco-core/internal/agent"
)

// sessionState names the states spec.md §4.10's state machine moves
// between: idle -> turn_running -> (awaiting_approval -> turn_running)* -> idle,
// with cancel/disconnect moving any state to closed.
type sessionState string

const (
	stateIdle             sessionState = "idle"
	stateTurnRunning      sessionState = "turn_running"
	stateAwaitingApproval sessionState = "awaiting_approval"
	stateClosed           sessionState = "closed"
)

const writerQueueDepth = 32

// Session owns one WebSocket connection: a single-producer outbound
// queue drained by one writer goroutine, a session-level lock so only
// one turn runs at a time, and the pending-approval correlation table
// a turn's tool calls block on. It implements agent.ApprovalGate so
// an agent.Runtime's approval requests route back to this connection.
type Session struct {
	ID      string
	Runtime *agent.Runtime
	Store   Store
	Events  ToolEventRecorder
	Logger  *slog.Logger

	conn         *websocket.Conn
	agentSession *agent.Session

	outbound chan ServerEvent
	done     chan struct{}
	closeOne sync.Once

	mu          sync.Mutex
	state       sessionState
	turnCancel  context.CancelFunc
	pending     map[string]chan bool
	lastToolArg map[string]map[string]any
}

// NewSession wires a connection to a runtime template. The template's
// fields are shallow-copied with Approval overridden to this session,
// so the shared Runtime (models, tools, retriever, playbook) held by
// the Server can still serve many concurrent connections while each
// one's tool approvals correlate only against its own pending table.
func NewSession(id string, conn *websocket.Conn, template *agent.Runtime, store Store, events ToolEventRecorder, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	sess := &Session{
		ID:           id,
		Store:        store,
		Events:       events,
		Logger:       logger,
		conn:         conn,
		agentSession: agent.NewSession(),
		outbound:     make(chan ServerEvent, writerQueueDepth),
		done:         make(chan struct{}),
		state:        stateIdle,
		pending:      make(map[string]chan bool),
		lastToolArg:  make(map[string]map[string]any),
	}
	if template != nil {
		rt := *template
		rt.Approval = sess
		sess.Runtime = &rt
	}
	return sess
}

// Run drives the connection until the client disconnects or sends
// client.cancel: it starts the writer goroutine, sends server.hello,
// then reads client events until the connection errors or a handler
// asks to stop. It always closes the session before returning.
func (s *Session) Run(ctx context.Context) {
	ctx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()
	defer s.Close()

	go s.writeLoop()
	s.sendHello()

	for {
		var ev ClientEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			return
		}
		if !s.handleClientEvent(ctx, ev) {
			return
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case ev, ok := <-s.outbound:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				s.Logger.Warn("transport: write failed", "session", s.ID, "err", err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// enqueue never blocks past session close: a closed session simply
// drops further events instead of deadlocking its caller.
func (s *Session) enqueue(ev ServerEvent) {
	select {
	case s.outbound <- ev:
	case <-s.done:
	}
}

func (s *Session) sendHello() {
	info := &ServerInfo{Version: ProtocolVersion, Capabilities: []string{"tools", "approval", "ace"}}
	if s.Runtime != nil && s.Runtime.Models != nil {
		if provider, cfg := s.Runtime.Models.Current(); provider != nil && cfg != nil {
			info.Model = &ModelInfo{Provider: string(cfg.Provider), ModelName: cfg.Model}
		}
	}
	s.enqueue(ServerEvent{Type: ServerHello, ProtocolVersion: ProtocolVersion, ServerInfo: info})
}

func (s *Session) sendError(code, message string) {
	s.enqueue(ServerEvent{Type: ServerError, Error: &ErrorPayload{Code: code, Message: message}})
}

// handleClientEvent dispatches one decoded client event. It returns
// false when the read loop should stop (cancel or an unrecoverable
// protocol error).
func (s *Session) handleClientEvent(ctx context.Context, ev ClientEvent) bool {
	switch ev.Type {
	case ClientHello:
		return true
	case ClientPing:
		s.enqueue(ServerEvent{Type: ServerPong, Timestamp: time.Now().Unix()})
		return true
	case ClientUserMessage:
		s.handleUserMessage(ctx, ev)
		return true
	case ClientApprovalResponse:
		s.resolveApproval(ev.RequestID, ev.Approved)
		return true
	case ClientCancel:
		s.handleCancel()
		return false
	default:
		s.sendError("validation", fmt.Sprintf("unknown event type %q", ev.Type))
		return true
	}
}

func (s *Session) handleUserMessage(ctx context.Context, ev ClientEvent) {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		s.sendError("validation", "a turn is already running for this session")
		return
	}
	s.state = stateTurnRunning
	s.mu.Unlock()

	if s.Store != nil {
		if err := s.Store.AppendMessage(ctx, s.ID, "user", ev.Message, ev.Context, nil); err != nil {
			s.Logger.Warn("transport: persist user message failed", "session", s.ID, "err", err)
		}
		if err := s.Store.EnsureTitle(ctx, s.ID, firstLineTitle(ev.Message)); err != nil {
			s.Logger.Warn("transport: ensure title failed", "session", s.ID, "err", err)
		}
	}

	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.turnCancel = cancel
	s.mu.Unlock()

	go s.runTurn(turnCtx, ev.Message)
}

func (s *Session) runTurn(ctx context.Context, message string) {
	defer func() {
		s.mu.Lock()
		s.state = stateIdle
		s.turnCancel = nil
		s.mu.Unlock()
	}()

	events := make(chan agent.Event, 16)
	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for ev := range events {
			s.forwardEvent(ctx, ev)
		}
	}()

	err := s.Runtime.RunTurn(ctx, s.agentSession, message, events)
	close(events)
	<-forwardDone

	if err != nil {
		s.sendError("agent_error", err.Error())
	}
}

// forwardEvent translates one agent.Event into its wire ServerEvent
// and applies the storage side effects spec.md §4.10 attaches to
// approval_request (state transition) and message_final (persistence).
func (s *Session) forwardEvent(ctx context.Context, ev agent.Event) {
	switch ev.Kind {
	case agent.EventThinking:
		// spec.md §4.9 step 5a emits thinking "with the step index"
		// (scenario 1's thinking(1)/thinking(2)); the wire contract is
		// {phase, message}, so the 1-based iteration rides in message.
		s.enqueue(ServerEvent{Type: AssistantThinking, Phase: ev.Phase, Message: strconv.Itoa(ev.Iteration + 1)})
	case agent.EventMessageDelta:
		s.enqueue(ServerEvent{Type: AssistantMessageDelta, Delta: ev.Delta})
	case agent.EventToolUse:
		s.mu.Lock()
		s.lastToolArg[ev.Tool] = ev.Arguments
		s.mu.Unlock()
		s.enqueue(ServerEvent{Type: AssistantToolUse, Tool: ev.Tool, Arguments: ev.Arguments})
	case agent.EventToolResult:
		s.mu.Lock()
		args := s.lastToolArg[ev.Tool]
		delete(s.lastToolArg, ev.Tool)
		s.mu.Unlock()
		if s.Events != nil {
			if err := s.Events.RecordToolEvent(ctx, s.ID, ev.Tool, args, ev.Result); err != nil {
				s.Logger.Warn("transport: record tool event failed", "session", s.ID, "err", err)
			}
		}
		s.enqueue(ServerEvent{Type: AssistantToolResult, Tool: ev.Tool, Result: ev.Result})
	case agent.EventApprovalRequest:
		s.mu.Lock()
		s.state = stateAwaitingApproval
		s.mu.Unlock()
		s.enqueue(ServerEvent{Type: AssistantApprovalRequest, RequestID: ev.RequestID, Tool: ev.Tool, Prompt: ev.Prompt})
	case agent.EventMessageFinal:
		if s.Store != nil {
			if err := s.Store.AppendMessage(ctx, s.ID, "assistant", ev.Message, nil, ev.Metadata); err != nil {
				s.Logger.Warn("transport: persist assistant message failed", "session", s.ID, "err", err)
			}
		}
		s.enqueue(ServerEvent{Type: AssistantMessageFinal, Message: ev.Message, Metadata: ev.Metadata})
	}
}

// RequestApproval implements agent.ApprovalGate: it registers a
// one-shot channel for requestID and blocks until the matching
// client.approval_response arrives, the turn context is cancelled, or
// the session closes.
func (s *Session) RequestApproval(ctx context.Context, requestID, toolName, prompt string) (bool, error) {
	ch := make(chan bool, 1)
	s.mu.Lock()
	s.pending[requestID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
	}()

	select {
	case approved := <-ch:
		return approved, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-s.done:
		return false, ErrSessionClosed
	}
}

func (s *Session) resolveApproval(requestID string, approved bool) {
	s.mu.Lock()
	ch, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
		if s.state == stateAwaitingApproval {
			s.state = stateTurnRunning
		}
	}
	s.mu.Unlock()

	if !ok {
		s.Logger.Warn("transport: approval response for unknown request", "session", s.ID, "request_id", requestID)
		return
	}
	select {
	case ch <- approved:
	default:
	}
}

func (s *Session) handleCancel() {
	s.agentSession.Cancel()
	s.mu.Lock()
	cancel := s.turnCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close cancels any in-flight turn, rejects every pending approval
// awaiter, and tears down the writer — spec.md §4.10's disconnect
// behavior. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOne.Do(func() {
		s.mu.Lock()
		s.state = stateClosed
		cancel := s.turnCancel
		pending := s.pending
		s.pending = make(map[string]chan bool)
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.agentSession.Cancel()
		for _, ch := range pending {
			select {
			case ch <- false:
			default:
			}
		}
		close(s.done)
		s.conn.Close()
	})
}

func firstLineTitle(message string) string {
	line := message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		line = message[:idx]
	}
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}
