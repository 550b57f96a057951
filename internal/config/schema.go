package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Catalog is the top-level YAML structure of a rule catalog.
type Catalog struct {
	Version string     `yaml:"version" json:"version"`
	Engine  EngineConf `yaml:"engine" json:"engine"`
	Rules   []RuleSpec `yaml:"rules" json:"rules"`
}

// EngineConf holds tunable evaluation settings.
type EngineConf struct {
	// Workers > 1 evaluates sessions in parallel. Output order is unaffected.
	Workers int `yaml:"workers" json:"workers"`
}

// Severity of the alerts a rule produces.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RuleSpec is one declarative detection rule. Match is opaque here; only the
// evaluator selected by ID knows its shape.
type RuleSpec struct {
	ID       string         `yaml:"id" json:"id"`
	Title    string         `yaml:"title" json:"title"`
	Severity Severity       `yaml:"severity" json:"severity"`
	Match    map[string]any `yaml:"match" json:"match"`
}

// DecodeMatch decodes the match parameters into v. Keys v does not declare
// are rejected so that a misspelled parameter fails at load time.
func (r RuleSpec) DecodeMatch(v any) error {
	data, err := yaml.Marshal(r.Match)
	if err != nil {
		return fmt.Errorf("rule %s: encode match: %w", r.ID, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("rule %s: match: %w", r.ID, err)
	}
	return nil
}
