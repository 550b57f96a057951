package config

import (
	"fmt"
	"strings"
)

// Validate checks the catalog for:
//   - Required rule fields (id, title, severity)
//   - Duplicate rule IDs
//   - Unknown severities
//
// Match parameters are checked later, by the evaluator that owns them.
func Validate(cat *Catalog) error {
	if cat.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	if cat.Engine.Workers < 0 {
		return fmt.Errorf("config: engine.workers must not be negative")
	}
	ids := make(map[string]int) // id → position
	var errs []string

	for i, r := range cat.Rules {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d]: id is required", i))
			continue
		}
		if prev, ok := ids[r.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %q (first seen at rules[%d], again at rules[%d])", r.ID, prev, i))
		} else {
			ids[r.ID] = i
		}
		if r.Title == "" {
			errs = append(errs, fmt.Sprintf("rule %s: title is required", r.ID))
		}
		if r.Severity == "" {
			errs = append(errs, fmt.Sprintf("rule %s: severity is required", r.ID))
		} else if !r.Severity.Valid() {
			errs = append(errs, fmt.Sprintf("rule %s: unknown severity %q", r.ID, r.Severity))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
