package builtin

import (
	"fmt"
	"strings"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// DenyThenExfilID is the catalog id of the post-denial bypass rule.
const DenyThenExfilID = "D004"

type denyThenExfilParams struct {
	DeniedPrefixes []string `yaml:"denied_policy_rule_prefixes"`
	ExternalTools  []string `yaml:"external_tools"`
	Patterns       []string `yaml:"patterns"`
}

// DenyThenExfil fires when, after a qualifying policy denial, the session
// makes a sensitive egress call. Only calls after the denial are tested.
type DenyThenExfil struct{}

func NewDenyThenExfil() *DenyThenExfil { return &DenyThenExfil{} }

func (*DenyThenExfil) RuleID() string { return DenyThenExfilID }

func (*DenyThenExfil) Compile(spec config.RuleSpec) (detect.Detector, error) {
	var p denyThenExfilParams
	if err := spec.DecodeMatch(&p); err != nil {
		return nil, err
	}
	if len(p.DeniedPrefixes) == 0 {
		return nil, fmt.Errorf("match.denied_policy_rule_prefixes must not be empty")
	}
	m, err := detect.NewEgressMatcher(p.ExternalTools, p.Patterns)
	if err != nil {
		return nil, err
	}
	return detect.DetectorFunc(func(s *session.Session) ([]alert.Alert, error) {
		return detectDenyThenExfil(spec, p.DeniedPrefixes, m, s)
	}), nil
}

func detectDenyThenExfil(spec config.RuleSpec, prefixes []string, m *detect.EgressMatcher, s *session.Session) ([]alert.Alert, error) {
	var l latch
	for i, ev := range s.Events {
		switch ev.Type {
		case event.TypePolicyDecision:
			pol, ok := ev.Policy()
			if !ok {
				return nil, detect.MissingPayload(s, i)
			}
			if pol.Decision == event.DecisionDeny && hasAnyPrefix(pol.RuleID, prefixes) {
				l.arm(pol)
			}
		case event.TypeToolCall:
			if !l.armed() {
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
				"denied_rule":   l.deny.RuleID,
				"external_tool": tc.Tool,
				"target":        tc.TargetValue(),
			})}, nil
		}
	}
	return nil, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

type latchState int

const (
	stateDisarmed latchState = iota
	stateArmed
)

// latch is a one-way switch: once armed it stays armed for the rest of the
// session, whatever later decisions say. deny is the most recent qualifying
// denial and is non-nil whenever the latch is armed.
type latch struct {
	state latchState
	deny  *event.PolicyDecision
}

func (l *latch) arm(deny *event.PolicyDecision) {
	l.state = stateArmed
	l.deny = deny
}

func (l *latch) armed() bool { return l.state == stateArmed }
