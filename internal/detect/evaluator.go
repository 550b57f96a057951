// Package detect holds the evaluator contract, the rule-id registry and the
// compiled rule set the engine runs.
package detect

import (
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// Evaluator is the interface every rule class implements.
type Evaluator interface {
	// RuleID returns the catalog id this evaluator is registered under.
	RuleID() string
	// Compile checks the rule's match parameters and returns a ready Detector.
	// Called once per catalog load; errors are configuration errors.
	Compile(spec config.RuleSpec) (Detector, error)
}

// Detector runs one compiled rule against one session. It must visit events
// in session order and must not keep state between calls.
type Detector interface {
	Detect(s *session.Session) ([]alert.Alert, error)
}

// DetectorFunc adapts a plain function to Detector.
type DetectorFunc func(s *session.Session) ([]alert.Alert, error)

func (f DetectorFunc) Detect(s *session.Session) ([]alert.Alert, error) { return f(s) }

// NewAlert builds the alert for spec, taking the trace id from trigger.
func NewAlert(spec config.RuleSpec, s *session.Session, trigger *event.Event, ctx alert.Context) alert.Alert {
	return alert.New(spec.ID, string(spec.Severity), spec.Title, s.ID, trigger.TraceID, ctx)
}
