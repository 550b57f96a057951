package simulate

import (
	"github.com/brianvoe/gofakeit/v6"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

var benignTools = []string{"kb_search", "calendar_read", "summarize", "ticket_lookup", "translate"}

// Noise returns n benign scenarios generated from seed. The same seed
// always yields the same scenarios. Sessions only use internal tools and
// stay inside their own tenant.
func Noise(n int, seed int64) []*Scenario {
	f := gofakeit.New(seed)
	out := make([]*Scenario, 0, n)
	for range n {
		sc := &Scenario{
			TraceID:     f.UUID(),
			SessionID:   f.UUID(),
			Tenant:      f.Word(),
			Env:         DefaultEnv,
			Actor:       &event.Actor{ID: "user:" + f.Username(), Kind: "user"},
			AuthnMethod: f.RandomString([]string{"password", "sso", "passkey"}),
			MFA:         f.Bool(),
		}
		steps := f.Number(1, 6)
		for range steps {
			sc.Steps = append(sc.Steps, noiseStep(f))
		}
		out = append(out, sc)
	}
	return out
}

func noiseStep(f *gofakeit.Faker) Step {
	switch f.Number(0, 2) {
	case 0:
		tool := f.RandomString(benignTools)
		args := map[string]any{"q": f.Word()}
		target := "internal://" + f.Word()
		return Step{
			EventType: event.TypeToolCall,
			Tool:      tool,
			Args:      args,
			Target:    &target,
		}
	case 1:
		return Step{
			EventType: event.TypeRetrieval,
			Resource:  "kb://" + f.Word(),
			Query:     f.Word(),
			Records:   f.Number(0, 20),
		}
	default:
		return Step{
			EventType: event.TypePolicyDecision,
			Decision:  event.DecisionAllow,
			PolicyID:  "policy:default",
			RuleID:    "rule:" + f.Word(),
		}
	}
}
