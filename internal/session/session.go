// Package session groups a flat event stream into per-session timelines.
package session

import (
	"errors"
	"fmt"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

// ErrMissingSessionID is returned for an event with an empty session_id.
var ErrMissingSessionID = errors.New("missing session_id")

// Session is the ordered sub-sequence of events sharing one session_id.
// Order is input arrival order, never timestamp order.
type Session struct {
	ID     string
	Events []*event.Event
	// Offsets[i] is the position of Events[i] in the original input.
	Offsets []int
}

// Last returns the final event of the session.
func (s *Session) Last() *event.Event {
	if len(s.Events) == 0 {
		return nil
	}
	return s.Events[len(s.Events)-1]
}

// Len returns the number of events in the session.
func (s *Session) Len() int { return len(s.Events) }

// Partition groups events by session_id. Sessions are returned in order of
// first appearance; within a session the input order is kept exactly.
func Partition(events []*event.Event) ([]*Session, error) {
	index := make(map[string]*Session)
	var out []*Session
	for i, ev := range events {
		if ev == nil {
			return nil, fmt.Errorf("event %d: nil event", i)
		}
		if ev.SessionID == "" {
			return nil, fmt.Errorf("event %d (trace %q): %w", i, ev.TraceID, ErrMissingSessionID)
		}
		s, ok := index[ev.SessionID]
		if !ok {
			s = &Session{ID: ev.SessionID}
			index[ev.SessionID] = s
			out = append(out, s)
		}
		s.Events = append(s.Events, ev)
		s.Offsets = append(s.Offsets, i)
	}
	return out, nil
}
