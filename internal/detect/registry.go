package detect

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps rule ids to their evaluators.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// Register adds an evaluator. Panics on duplicate id to surface misconfiguration early.
func (r *Registry) Register(e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.evaluators[e.RuleID()]; exists {
		panic(fmt.Sprintf("detect registry: duplicate rule id %q", e.RuleID()))
	}
	r.evaluators[e.RuleID()] = e
}

// Get returns the evaluator for ruleID. Unknown ids are not an error.
func (r *Registry) Get(ruleID string) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[ruleID]
	return e, ok
}

// RuleIDs returns all registered rule ids, sorted.
func (r *Registry) RuleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.evaluators))
	for k := range r.evaluators {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
