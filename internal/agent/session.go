package agent

import (
	"sync"

	"github.com/KhaineVulpana/loco-core/internal/llm"
)

// Session owns one conversation's mutable turn-to-turn state: the
// agent session runtime exclusively owns its history and used-bullet
// list for the session's lifetime (spec.md §3 Ownership).
type Session struct {
	mu            sync.Mutex
	History       []llm.Message
	UsedBulletIDs []string
	cancelled     bool
}

// NewSession constructs an empty Session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) appendMessage(m llm.Message) {
	s.mu.Lock()
	s.History = append(s.History, m)
	s.mu.Unlock()
}

func (s *Session) messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.History))
	copy(out, s.History)
	return out
}

func (s *Session) usedBulletIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.UsedBulletIDs))
	copy(out, s.UsedBulletIDs)
	return out
}

func (s *Session) recordUsedBullets(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	s.UsedBulletIDs = append(s.UsedBulletIDs, ids...)
	s.mu.Unlock()
}

// Cancel marks the session cancelled; the turn loop checks this at
// each iteration boundary and stops cooperatively rather than being
// forcibly terminated, matching spec.md §5's cooperative-cancel model.
// The flag is not checked between streamed chunks: a model stream
// already in progress runs to its end unless the turn's context is
// cancelled as well.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *Session) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
