// Package alert defines the engine's output record and its JSONL form.
package alert

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// EventType is the fixed event_type of every alert.
const EventType = "ALERT"

// Context is the rule-specific evidence attached to an alert.
// It serializes with sorted keys.
type Context map[string]any

// Alert is one detection result. TraceID comes from the triggering event
// (or the session's last event for rules without a single trigger).
type Alert struct {
	EventType string  `json:"event_type"`
	RuleID    string  `json:"rule_id"`
	Severity  string  `json:"severity"`
	SessionID string  `json:"session_id"`
	TraceID   string  `json:"trace_id"`
	Msg       string  `json:"msg"`
	Context   Context `json:"context"`
}

// New builds an alert with EventType set.
func New(ruleID, severity, msg, sessionID, traceID string, ctx Context) Alert {
	if ctx == nil {
		ctx = Context{}
	}
	return Alert{
		EventType: EventType,
		RuleID:    ruleID,
		Severity:  severity,
		SessionID: sessionID,
		TraceID:   traceID,
		Msg:       msg,
		Context:   ctx,
	}
}

// ContextJSON returns the evidence as compact JSON with sorted keys.
func (a Alert) ContextJSON() string {
	b, err := json.Marshal(a.Context)
	if err != nil {
		return fmt.Sprintf("%v", a.Context)
	}
	return string(b)
}

// Summary is the one-line operator view of an alert.
func (a Alert) Summary() string {
	return fmt.Sprintf("[%s] %s %s ctx=%s", a.Severity, a.RuleID, a.Msg, a.ContextJSON())
}

// WriteJSONL writes alerts one compact object per line, in order.
func WriteJSONL(w io.Writer, alerts []Alert) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range alerts {
		if err := enc.Encode(&alerts[i]); err != nil {
			return fmt.Errorf("write alert %d: %w", i, err)
		}
	}
	return nil
}

// WriteFile truncates path and writes alerts as JSONL.
func WriteFile(path string, alerts []Alert) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create alerts %s: %w", path, err)
	}
	if err := WriteJSONL(f, alerts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSONL reads alerts written by WriteJSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Alert, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []Alert
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var a Alert
		if err := json.Unmarshal(b, &a); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile reads an alerts JSONL file.
func ReadFile(path string) ([]Alert, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alerts %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSONL(f)
}
