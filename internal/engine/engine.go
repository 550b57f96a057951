package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/metrics"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// Result is the outcome of one batch evaluation.
type Result struct {
	Events     int           `json:"events"`
	Sessions   int           `json:"sessions"`
	Alerts     []alert.Alert `json:"alerts"`
	DurationMs int64         `json:"duration_ms"`
}

// Engine replays session timelines against a compiled rule set.
type Engine struct {
	rules atomic.Pointer[detect.Ruleset]
}

// New creates an Engine running rs.
func New(rs *detect.Ruleset) *Engine {
	e := &Engine{}
	e.rules.Store(rs)
	metrics.RulesLoaded.Set(float64(rs.Len()))
	return e
}

// Evaluate runs events against rs once. See Engine.Evaluate.
func Evaluate(ctx context.Context, events []*event.Event, rs *detect.Ruleset) ([]alert.Alert, error) {
	return New(rs).Evaluate(ctx, events)
}

// SwapRuleset atomically replaces the rule set (used on hot-reload).
// Runs already in progress finish with the rule set they started with.
func (e *Engine) SwapRuleset(rs *detect.Ruleset) {
	e.rules.Store(rs)
	metrics.RulesLoaded.Set(float64(rs.Len()))
}

// Ruleset returns the installed rule set.
func (e *Engine) Ruleset() *detect.Ruleset {
	return e.rules.Load()
}

// Evaluate returns the alerts for events. Order is session order (first
// appearance) × catalog order × evaluator order. Any failure aborts the
// run and no alerts are returned.
func (e *Engine) Evaluate(ctx context.Context, events []*event.Event) ([]alert.Alert, error) {
	res, err := e.Run(ctx, events)
	if err != nil {
		return nil, err
	}
	return res.Alerts, nil
}

// Run is Evaluate plus run statistics.
func (e *Engine) Run(ctx context.Context, events []*event.Event) (*Result, error) {
	start := time.Now()
	rs := e.rules.Load()

	sessions, err := session.Partition(events)
	if err != nil {
		return nil, fmt.Errorf("partition: %w", err)
	}

	perSession := make([][]alert.Alert, len(sessions))
	errs := make([]error, len(sessions))

	workers := min(rs.Workers(), len(sessions))
	if workers <= 1 {
		for i, s := range sessions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perSession[i], errs[i] = evaluateSession(rs, s)
			if errs[i] != nil {
				return nil, errs[i]
			}
		}
	} else {
		poolCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		// Queue capacity equals the session count, so Submit never rejects.
		pool := newWorkerPool[int](poolCtx, workers, len(sessions), func(_ context.Context, i int) {
			perSession[i], errs[i] = evaluateSession(rs, sessions[i])
		})
		for i := range sessions {
			pool.Submit(i)
		}
		pool.Drain()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	var out []alert.Alert
	for _, alerts := range perSession {
		out = append(out, alerts...)
	}

	elapsed := time.Since(start)
	metrics.EventsEvaluated.Add(float64(len(events)))
	metrics.SessionsEvaluated.Add(float64(len(sessions)))
	metrics.EvaluationDuration.Observe(millis(elapsed))
	for _, a := range out {
		metrics.AlertsRaised.WithLabelValues(a.RuleID, a.Severity).Inc()
	}
	slog.Debug("evaluation complete",
		"events", len(events), "sessions", len(sessions),
		"rules", rs.Len(), "alerts", len(out), "workers", max(workers, 1), "elapsed", elapsed)

	return &Result{
		Events:     len(events),
		Sessions:   len(sessions),
		Alerts:     out,
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

// evaluateSession runs every rule against s in catalog order.
func evaluateSession(rs *detect.Ruleset, s *session.Session) ([]alert.Alert, error) {
	var out []alert.Alert
	for _, r := range rs.Rules() {
		alerts, err := r.Detector.Detect(s)
		if err != nil {
			metrics.EvaluationErrors.WithLabelValues(r.Spec.ID).Inc()
			var ee *detect.EventError
			if errors.As(err, &ee) {
				if ee.RuleID == "" {
					ee.RuleID = r.Spec.ID
				}
				return nil, err
			}
			return nil, fmt.Errorf("rule %s: session %s: %w", r.Spec.ID, s.ID, err)
		}
		out = append(out, alerts...)
	}
	return out, nil
}

// millis converts d to fractional milliseconds.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
