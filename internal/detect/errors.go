package detect

import (
	"errors"
	"fmt"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// ErrMissingPayload marks an event whose type-specific body is absent.
var ErrMissingPayload = errors.New("missing payload")

// EventError identifies the input that made a rule fail. Offset is the
// event's position in the original input stream.
type EventError struct {
	RuleID    string
	SessionID string
	Index     int
	Offset    int
	TraceID   string
	Err       error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("rule %s: session %s: event %d (input offset %d, trace %q): %v",
		e.RuleID, e.SessionID, e.Index, e.Offset, e.TraceID, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// Malformed reports event i of s as unusable. The engine fills in RuleID.
func Malformed(s *session.Session, i int, err error) error {
	ee := &EventError{SessionID: s.ID, Index: i, Offset: -1, Err: err}
	if i >= 0 && i < len(s.Events) {
		ee.TraceID = s.Events[i].TraceID
	}
	if i >= 0 && i < len(s.Offsets) {
		ee.Offset = s.Offsets[i]
	}
	return ee
}

// MissingPayload is Malformed with ErrMissingPayload for event i.
func MissingPayload(s *session.Session, i int) error {
	return Malformed(s, i, fmt.Errorf("%s event: %w", s.Events[i].Type, ErrMissingPayload))
}
