package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is implemented by every type-specific event body.
type Payload interface {
	EventType() Type
}

var payloadKeys = map[Type]string{
	TypeAuthn:          "authn",
	TypeToolCall:       "tool_call",
	TypeRetrieval:      "retrieval",
	TypePolicyDecision: "policy",
}

func newPayload(t Type) Payload {
	switch t {
	case TypeAuthn:
		return &Authn{}
	case TypeToolCall:
		return &ToolCall{}
	case TypeRetrieval:
		return &Retrieval{}
	case TypePolicyDecision:
		return &PolicyDecision{}
	}
	return nil
}

// Authn is the body of an AUTHN event.
type Authn struct {
	Method string `json:"method"`
	MFA    bool   `json:"mfa"`
}

func (*Authn) EventType() Type { return TypeAuthn }

// ToolCall is the body of a TOOL_CALL event. Args and Result are whatever
// the producer sent: an object, an argv array or a bare command string.
// Target is nil when the producer omitted it or sent null.
type ToolCall struct {
	Tool   string  `json:"tool"`
	Args   any     `json:"args"`
	Target *string `json:"target"`
	Result any     `json:"result"`
}

func (*ToolCall) EventType() Type { return TypeToolCall }

// TargetValue returns the target as a string, or nil when there is none.
func (tc *ToolCall) TargetValue() any {
	if tc.Target == nil {
		return nil
	}
	return *tc.Target
}

// Canonical serializes the whole tool call as compact JSON with every
// object's keys sorted, so the same call always yields the same string.
func (tc *ToolCall) Canonical() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(map[string]any{
		"tool":   tc.Tool,
		"args":   tc.Args,
		"target": tc.Target,
		"result": tc.Result,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Retrieval is the body of a RETRIEVAL event.
// RequestedTenant is nil when the producer omitted it or sent null;
// RequestedTenantNull tells the two apart. Records is kept as sent.
type Retrieval struct {
	Resource            string  `json:"resource"`
	RequestedTenant     *string `json:"requested_tenant,omitempty"`
	RequestedTenantNull bool    `json:"-"`
	Scope               string  `json:"scope"`
	Query               string  `json:"query"`
	Records             any     `json:"records"`
}

func (*Retrieval) EventType() Type { return TypeRetrieval }

// ResolveRequestedTenant returns the tenant the retrieval asked for. An
// omitted field resolves to own; an explicit null reports ok false.
func (r *Retrieval) ResolveRequestedTenant(own string) (tenant string, ok bool) {
	switch {
	case r.RequestedTenant != nil:
		return *r.RequestedTenant, true
	case r.RequestedTenantNull:
		return "", false
	}
	return own, true
}

type plainRetrieval Retrieval

var jsonNull = []byte("null")

// MarshalJSON writes requested_tenant as null when it arrived as null and
// leaves it out when it was omitted.
func (r *Retrieval) MarshalJSON() ([]byte, error) {
	var requested json.RawMessage
	switch {
	case r.RequestedTenant != nil:
		b, err := json.Marshal(*r.RequestedTenant)
		if err != nil {
			return nil, err
		}
		requested = b
	case r.RequestedTenantNull:
		requested = jsonNull
	}
	return json.Marshal(struct {
		*plainRetrieval
		RequestedTenant json.RawMessage `json:"requested_tenant,omitempty"`
	}{(*plainRetrieval)(r), requested})
}

func (r *Retrieval) UnmarshalJSON(data []byte) error {
	w := struct {
		*plainRetrieval
		RequestedTenant json.RawMessage `json:"requested_tenant"`
	}{plainRetrieval: (*plainRetrieval)(r)}
	if err := useNumber(data, &w); err != nil {
		return err
	}
	r.RequestedTenant, r.RequestedTenantNull = nil, false
	switch raw := bytes.TrimSpace(w.RequestedTenant); {
	case len(raw) == 0:
	case bytes.Equal(raw, jsonNull):
		r.RequestedTenantNull = true
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("requested_tenant: %w", err)
		}
		r.RequestedTenant = &s
	}
	return nil
}

// Decision is the outcome of a policy evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// PolicyDecision is the body of a POLICY_DECISION event.
type PolicyDecision struct {
	Decision Decision `json:"decision"`
	PolicyID string   `json:"policy_id"`
	RuleID   string   `json:"rule_id"`
	Reason   string   `json:"reason"`
}

func (*PolicyDecision) EventType() Type { return TypePolicyDecision }
