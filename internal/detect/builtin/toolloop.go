package builtin

import (
	"fmt"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// ToolLoopID is the catalog id of the repeated-tool-invocation rule.
const ToolLoopID = "D001"

type toolLoopParams struct {
	Tool      string `yaml:"tool"`
	Threshold int    `yaml:"threshold"`
	Window    int    `yaml:"window"`
}

// ToolLoop fires when a session calls one tool at least threshold times
// among its last window calls of that tool. The window counts matching
// calls, not time or absolute position, so window < threshold never fires.
type ToolLoop struct{}

func NewToolLoop() *ToolLoop { return &ToolLoop{} }

func (*ToolLoop) RuleID() string { return ToolLoopID }

func (*ToolLoop) Compile(spec config.RuleSpec) (detect.Detector, error) {
	var p toolLoopParams
	if err := spec.DecodeMatch(&p); err != nil {
		return nil, err
	}
	if p.Tool == "" {
		return nil, fmt.Errorf("match.tool is required")
	}
	if p.Threshold < 1 {
		return nil, fmt.Errorf("match.threshold must be >= 1, got %d", p.Threshold)
	}
	if p.Window < 1 {
		return nil, fmt.Errorf("match.window must be >= 1, got %d", p.Window)
	}
	return detect.DetectorFunc(func(s *session.Session) ([]alert.Alert, error) {
		return detectToolLoop(spec, p, s)
	}), nil
}

func detectToolLoop(spec config.RuleSpec, p toolLoopParams, s *session.Session) ([]alert.Alert, error) {
	calls := 0
	for i, ev := range s.Events {
		if ev.Type != event.TypeToolCall {
			continue
		}
		tc, ok := ev.ToolCall()
		if !ok {
			return nil, detect.MissingPayload(s, i)
		}
		if tc.Tool == p.Tool {
			calls++
		}
	}
	tail := min(calls, p.Window)
	if calls < p.Threshold || tail < p.Threshold {
		return nil, nil
	}
	// The alert carries the session's last event, not the last matching call.
	return []alert.Alert{detect.NewAlert(spec, s, s.Last(), alert.Context{
		"tool":  p.Tool,
		"count": tail,
	})}, nil
}
