package builtin

import (
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// SensitiveEgressID is the catalog id of the content-based exfiltration rule.
const SensitiveEgressID = "D003"

type egressParams struct {
	ExternalTools []string `yaml:"external_tools"`
	Patterns      []string `yaml:"patterns"`
}

// SensitiveEgress fires on the first call to an external tool whose payload
// matches a sensitive pattern.
type SensitiveEgress struct{}

func NewSensitiveEgress() *SensitiveEgress { return &SensitiveEgress{} }

func (*SensitiveEgress) RuleID() string { return SensitiveEgressID }

func (*SensitiveEgress) Compile(spec config.RuleSpec) (detect.Detector, error) {
	var p egressParams
	if err := spec.DecodeMatch(&p); err != nil {
		return nil, err
	}
	m, err := detect.NewEgressMatcher(p.ExternalTools, p.Patterns)
	if err != nil {
		return nil, err
	}
	return detect.DetectorFunc(func(s *session.Session) ([]alert.Alert, error) {
		for i, ev := range s.Events {
			if ev.Type != event.TypeToolCall {
				continue
			}
			tc, ok := ev.ToolCall()
			if !ok {
				return nil, detect.MissingPayload(s, i)
			}
			hit, err := m.Match(tc)
			if err != nil {
				return nil, detect.Malformed(s, i, err)
			}
			if !hit {
				continue
			}
			return []alert.Alert{detect.NewAlert(spec, s, ev, alert.Context{
				"tool":   tc.Tool,
				"target": tc.TargetValue(),
			})}, nil
		}
		return nil, nil
	}), nil
}
