package simulate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

// EventWriter receives emitted events. *eventlog.Writer satisfies it.
type EventWriter interface {
	Write(ev *event.Event) error
}

// Emitter builds events from scenarios.
type Emitter struct {
	Now   func() time.Time
	NewID func() string
}

// NewEmitter returns an Emitter using the wall clock and random UUIDs.
func NewEmitter() *Emitter {
	return &Emitter{Now: time.Now, NewID: uuid.NewString}
}

// Emit writes an AUTHN event followed by one event per step and returns
// the events in the order written.
func (e *Emitter) Emit(w EventWriter, sc *Scenario) ([]*event.Event, error) {
	events, err := e.Build(sc)
	if err != nil {
		return nil, err
	}
	for i, ev := range events {
		if err := w.Write(ev); err != nil {
			return nil, fmt.Errorf("write event %d: %w", i, err)
		}
	}
	return events, nil
}

// Build is Emit without the writer.
func (e *Emitter) Build(sc *Scenario) ([]*event.Event, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	traceID := or(sc.TraceID, e.NewID)
	sessionID := or(sc.SessionID, e.NewID)
	env := sc.Env
	if env == "" {
		env = DefaultEnv
	}
	actor := DefaultActor
	if sc.Actor != nil {
		actor = *sc.Actor
	}
	method := sc.AuthnMethod
	if method == "" {
		method = DefaultAuthnMethod
	}

	base := func(t event.Type) *event.Event {
		return event.New(t, traceID, sessionID, sc.Tenant, env, actor, e.Now())
	}

	out := make([]*event.Event, 0, len(sc.Steps)+1)
	out = append(out, base(event.TypeAuthn).WithPayload(&event.Authn{Method: method, MFA: sc.MFA}))

	for i, st := range sc.Steps {
		p, err := stepPayload(st, sc.Tenant)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, base(st.EventType).WithPayload(p))
	}
	return out, nil
}

func stepPayload(st Step, tenant string) (event.Payload, error) {
	switch st.EventType {
	case event.TypeToolCall:
		args := st.Args
		if args == nil {
			args = map[string]any{}
		}
		result := st.Result
		if result == nil {
			result = map[string]any{"status": "ok"}
		}
		return &event.ToolCall{Tool: st.Tool, Args: args, Target: st.Target, Result: result}, nil

	case event.TypeRetrieval:
		requested := tenant
		if st.RequestedTenant != nil {
			requested = *st.RequestedTenant
		}
		scope := st.Scope
		if scope == "" {
			scope = DefaultScope
		}
		records := st.Records
		if records == nil {
			records = 0
		}
		return &event.Retrieval{
			Resource:        st.Resource,
			RequestedTenant: &requested,
			Scope:           scope,
			Query:           st.Query,
			Records:         records,
		}, nil

	case event.TypePolicyDecision:
		if st.Decision != event.DecisionAllow && st.Decision != event.DecisionDeny {
			return nil, fmt.Errorf("unknown decision %q", st.Decision)
		}
		policyID := st.PolicyID
		if policyID == "" {
			policyID = DefaultPolicyID
		}
		ruleID := st.RuleID
		if ruleID == "" {
			ruleID = DefaultPolicyRule
		}
		return &event.PolicyDecision{Decision: st.Decision, PolicyID: policyID, RuleID: ruleID, Reason: st.Reason}, nil
	}
	return nil, fmt.Errorf("unsupported event_type in scenario steps: %s", st.EventType)
}

func or(v string, gen func() string) string {
	if v != "" {
		return v
	}
	return gen()
}
