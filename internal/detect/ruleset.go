package detect

import (
	"fmt"
	"log/slog"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
)

// CompiledRule pairs a rule spec with its ready detector.
type CompiledRule struct {
	Spec     config.RuleSpec
	Detector Detector
}

// Ruleset is an immutable, compiled catalog. Hot-reload builds a new
// Ruleset and swaps it in atomically.
type Ruleset struct {
	catalog *config.Catalog
	rules   []CompiledRule
	skipped []string
	workers int
}

// Compile builds a Ruleset from a validated catalog. All parameter decoding
// and regex compilation happens here; nothing is parsed at evaluation time.
// Rules whose id has no registered evaluator are skipped.
func Compile(cat *config.Catalog, reg *Registry) (*Ruleset, error) {
	rs := &Ruleset{catalog: cat, workers: cat.Engine.Workers}
	for _, spec := range cat.Rules {
		ev, ok := reg.Get(spec.ID)
		if !ok {
			slog.Debug("no evaluator for rule, skipping", "rule_id", spec.ID)
			rs.skipped = append(rs.skipped, spec.ID)
			continue
		}
		d, err := ev.Compile(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.ID, err)
		}
		rs.rules = append(rs.rules, CompiledRule{Spec: spec, Detector: d})
	}
	return rs, nil
}

// Catalog returns the source catalog, including skipped rules.
func (rs *Ruleset) Catalog() *config.Catalog { return rs.catalog }

// Rules returns the compiled rules in catalog order.
func (rs *Ruleset) Rules() []CompiledRule { return rs.rules }

// Skipped returns the ids that had no evaluator.
func (rs *Ruleset) Skipped() []string { return rs.skipped }

// Len returns the number of runnable rules.
func (rs *Ruleset) Len() int { return len(rs.rules) }

// Workers returns the configured session parallelism.
func (rs *Ruleset) Workers() int { return rs.workers }
