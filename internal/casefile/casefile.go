// Package casefile maintains markdown incident case files.
package casefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
)

// DefaultTriageNotes is the initial action checklist appended with alerts.
var DefaultTriageNotes = []string{
	"Validate tenant/scope boundaries",
	"Review tool call history",
	"Contain: disable external tool connectors if needed",
	"Preserve evidence: retain JSONL logs + hashes",
}

// ErrNoCase is returned when updating a case file that does not exist.
var ErrNoCase = errors.New("case file does not exist")

// Clock returns the time stamped into case files.
var Clock = func() time.Time { return time.Now().UTC() }

func stamp() string { return Clock().UTC().Format(time.RFC3339Nano) }

// Ensure creates the case skeleton at path unless a file is already there.
// It reports whether a new file was written.
func Ensure(path, title, severity, sessionID, traceID string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat case %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create case dir: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Case: %s\n", title)
	fmt.Fprintf(&b, "**Date opened:** %s\n", stamp())
	fmt.Fprintf(&b, "**Severity:** %s\n", severity)
	fmt.Fprintf(&b, "**Trace/Session:** %s / %s\n", traceID, sessionID)
	b.WriteString("**Status:** Open\n\n")
	b.WriteString("## Summary\n- \n\n")
	b.WriteString("## Timeline (UTC)\n- \n\n")
	b.WriteString("## Findings\n- Root cause:\n- Impact:\n- Indicators:\n\n")
	b.WriteString("## Actions taken\n- Containment:\n- Remediation:\n- Evidence preserved:\n\n")
	b.WriteString("## Lessons learned / control changes\n- Detection updates:\n- Policy/control updates:\n- Tests added:\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, fmt.Errorf("write case %s: %w", path, err)
	}
	return true, nil
}

// UpdateBlock renders one triage update section.
func UpdateBlock(alerts []alert.Alert, notes []string) string {
	var b strings.Builder
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "## Triage Update (%s)\n", stamp())
	fmt.Fprintf(&b, "Observed **%d** alert(s):\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(&b, "- **%s** (%s): %s — `%s`\n", a.RuleID, a.Severity, a.Msg, a.ContextJSON())
	}
	if len(notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

// AppendUpdate appends a triage update for alerts to an existing case.
func AppendUpdate(path string, alerts []alert.Alert, notes []string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNoCase)
		}
		return fmt.Errorf("stat case %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open case %s: %w", path, err)
	}
	if _, err := f.WriteString(UpdateBlock(alerts, notes)); err != nil {
		f.Close()
		return fmt.Errorf("append case %s: %w", path, err)
	}
	return f.Close()
}

// Headline picks the most severe alert to title a new case.
// The first alert wins ties. ok is false for an empty slice.
func Headline(alerts []alert.Alert) (a alert.Alert, ok bool) {
	best := -1
	for i, cand := range alerts {
		if best < 0 || rank(cand.Severity) > rank(alerts[best].Severity) {
			best = i
		}
	}
	if best < 0 {
		return alert.Alert{}, false
	}
	return alerts[best], true
}

func rank(sev string) int {
	switch sev {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	}
	return 0
}
