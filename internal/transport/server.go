package transport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/KhaineVulpana/loco-core/internal/agent"
)

// Server accepts WebSocket connections and tracks the active-session
// map spec.md §4.10 names, generalizing a2a/server.go's
// handleStreamTask upgrade from one-shot task streaming to a
// long-lived bidirectional session.
type Server struct {
	// Runtime is the shared template every session's own Runtime is
	// copied from (see NewSession) — one per module/workspace pairing.
	Runtime *agent.Runtime
	Store   Store
	Events  ToolEventRecorder
	Logger  *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer constructs a Server ready to be mounted as an
// http.Handler (typically at a path like "/ws").
func NewServer(runtime *agent.Runtime, store Store, events ToolEventRecorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Runtime:  runtime,
		Store:    store,
		Events:   events,
		Logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs a Session to
// completion. session_id is taken from the query string when present
// so a client can resume a known session id; otherwise one is
// generated.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("transport: upgrade failed", "err", err)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session := NewSession(sessionID, conn, s.Runtime, s.Store, s.Events, s.Logger)

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	}()

	session.Run(r.Context())
}

// Active returns the session currently registered under id, if any.
func (s *Server) Active(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// Shutdown closes every active session, cancelling their in-flight
// turns, matching a process-level stop.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
