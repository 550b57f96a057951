package simulate_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect/builtin"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/engine"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/eventlog"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/simulate"
)

func fixedEmitter() *simulate.Emitter {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return &simulate.Emitter{
		Now: func() time.Time {
			n++
			return t0.Add(time.Duration(n) * time.Second)
		},
		NewID: func() string { return fmt.Sprintf("id-%d", n) },
	}
}

func shippedRuleset(t *testing.T) *detect.Ruleset {
	t.Helper()
	cat, err := config.Load("../../configs/rules.yaml")
	require.NoError(t, err)
	rs, err := detect.Compile(cat, builtin.NewRegistry())
	require.NoError(t, err)
	return rs
}

func emitFile(t *testing.T, path string) []*event.Event {
	t.Helper()
	sc, err := simulate.LoadFile(path)
	require.NoError(t, err)
	var buf bytes.Buffer
	evs, err := fixedEmitter().Emit(eventlog.NewWriter(&buf), sc)
	require.NoError(t, err)

	res, err := eventlog.Verify(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, len(evs), res.Events)
	return evs
}

func TestBuild_Defaults(t *testing.T) {
	sc := &simulate.Scenario{
		Tenant: "acme",
		Steps: []simulate.Step{
			{EventType: event.TypeToolCall, Tool: "kb_search"},
			{EventType: event.TypeRetrieval, Resource: "kb://x"},
			{EventType: event.TypePolicyDecision, Decision: event.DecisionDeny},
		},
	}
	evs, err := fixedEmitter().Build(sc)
	require.NoError(t, err)
	require.Len(t, evs, 4)

	first := evs[0]
	assert.Equal(t, event.TypeAuthn, first.Type)
	assert.Equal(t, "lab", first.Env)
	assert.Equal(t, simulate.DefaultActor, first.Actor)
	authn, ok := first.Authn()
	require.True(t, ok)
	assert.Equal(t, "password", authn.Method)
	assert.False(t, authn.MFA)
	for _, ev := range evs {
		assert.Equal(t, first.SessionID, ev.SessionID)
		assert.Equal(t, first.TraceID, ev.TraceID)
	}

	tc, ok := evs[1].ToolCall()
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, tc.Args)
	assert.Equal(t, map[string]any{"status": "ok"}, tc.Result)
	assert.Nil(t, tc.Target)

	r, ok := evs[2].Retrieval()
	require.True(t, ok)
	require.NotNil(t, r.RequestedTenant)
	assert.Equal(t, "acme", *r.RequestedTenant)
	assert.Equal(t, "default", r.Scope)
	assert.Equal(t, 0, r.Records)

	p, ok := evs[3].Policy()
	require.True(t, ok)
	assert.Equal(t, "policy:default", p.PolicyID)
	assert.Equal(t, "rule:unknown", p.RuleID)
}

func TestBuild_Rejects(t *testing.T) {
	cases := []struct {
		name string
		sc   simulate.Scenario
	}{
		{"no tenant", simulate.Scenario{}},
		{"unsupported step", simulate.Scenario{Tenant: "a", Steps: []simulate.Step{{EventType: event.TypeAlert}}}},
		{"tool call without tool", simulate.Scenario{Tenant: "a", Steps: []simulate.Step{{EventType: event.TypeToolCall}}}},
		{"retrieval without resource", simulate.Scenario{Tenant: "a", Steps: []simulate.Step{{EventType: event.TypeRetrieval}}}},
		{"bad decision", simulate.Scenario{Tenant: "a", Steps: []simulate.Step{{EventType: event.TypePolicyDecision, Decision: "maybe"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fixedEmitter().Build(&tc.sc)
			assert.Error(t, err)
		})
	}
}

func TestMaliciousScenario_FiresEveryRule(t *testing.T) {
	evs := emitFile(t, "../../data/scenarios/malicious_session.json")
	alerts, err := engine.Evaluate(context.Background(), evs, shippedRuleset(t))
	require.NoError(t, err)

	var ids []string
	for _, a := range alerts {
		ids = append(ids, a.RuleID)
		assert.Equal(t, "sess-mal-0001", a.SessionID)
	}
	assert.Equal(t, []string{"D001", "D002", "D003", "D004"}, ids)
}

func TestNormalScenario_NoHighSeverity(t *testing.T) {
	evs := emitFile(t, "../../data/scenarios/normal_session.json")
	alerts, err := engine.Evaluate(context.Background(), evs, shippedRuleset(t))
	require.NoError(t, err)
	for _, a := range alerts {
		assert.NotContains(t, []string{"high", "critical"}, a.Severity, a.Summary())
	}
}

func TestNoise_DeterministicAndBenign(t *testing.T) {
	a := simulate.Noise(25, 42)
	b := simulate.Noise(25, 42)
	require.Len(t, a, 25)
	assert.Equal(t, a, b)

	var evs []*event.Event
	for _, sc := range a {
		built, err := fixedEmitter().Build(sc)
		require.NoError(t, err)
		evs = append(evs, built...)
	}
	alerts, err := engine.Evaluate(context.Background(), evs, shippedRuleset(t))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
