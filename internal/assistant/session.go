package assistant

import (
	"time"

	"github.com/xiy/canvas-mcp/internal/intent"
)

const historySize = 5

// Turn is one processed query remembered by a session.
type Turn struct {
	Intent     intent.Intent
	Parameters map[string][]string
	At         time.Time
}

// Session is the conversation context of one conversation id.
type Session struct {
	ID            string
	LastIntent    intent.Intent
	LastCourse    string
	LastTimeFrame string

	history []Turn
	next    int
}

func newSession(id string) *Session {
	return &Session{ID: id, LastIntent: intent.Unknown, history: make([]Turn, 0, historySize)}
}

func (s *Session) record(t Turn, params intent.Parameters) {
	s.LastIntent = t.Intent
	if v := params.Value(intent.CourseName); v != "" {
		s.LastCourse = v
	}
	if v := params.Value(intent.TimeFrame); v != "" {
		s.LastTimeFrame = v
	}
	if len(s.history) < historySize {
		s.history = append(s.history, t)
		return
	}
	s.history[s.next] = t
	s.next = (s.next + 1) % historySize
}

// History returns the remembered turns, oldest first.
func (s *Session) History() []Turn {
	out := make([]Turn, 0, len(s.history))
	if len(s.history) < historySize {
		return append(out, s.history...)
	}
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

func (s *Session) clone() Session {
	c := *s
	c.history = s.History()
	c.next = 0
	return c
}
