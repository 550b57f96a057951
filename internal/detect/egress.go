package detect

import (
	"fmt"
	"regexp"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

// EgressMatcher tests tool calls aimed at egress-capable tools against a set
// of case-insensitive patterns. Any single pattern match qualifies.
type EgressMatcher struct {
	tools    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewEgressMatcher compiles patterns. A pattern that does not compile is a
// configuration error.
func NewEgressMatcher(tools, patterns []string) (*EgressMatcher, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("external_tools must not be empty")
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("patterns must not be empty")
	}
	m := &EgressMatcher{tools: make(map[string]struct{}, len(tools))}
	for _, t := range tools {
		m.tools[t] = struct{}{}
	}
	for i, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d] %q: %w", i, p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// External reports whether tool is one of the configured egress tools.
func (m *EgressMatcher) External(tool string) bool {
	_, ok := m.tools[tool]
	return ok
}

// Match reports whether tc targets an external tool and its canonical
// serialization matches any pattern.
func (m *EgressMatcher) Match(tc *event.ToolCall) (bool, error) {
	if !m.External(tc.Tool) {
		return false, nil
	}
	blob, err := tc.Canonical()
	if err != nil {
		return false, fmt.Errorf("serialize tool call: %w", err)
	}
	for _, re := range m.patterns {
		if re.MatchString(blob) {
			return true, nil
		}
	}
	return false, nil
}
