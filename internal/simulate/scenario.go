// Package simulate turns scenario descriptions into agent session timelines.
package simulate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
)

// Defaults applied to fields a scenario leaves out.
const (
	DefaultEnv         = "lab"
	DefaultAuthnMethod = "password"
	DefaultScope       = "default"
	DefaultPolicyID    = "policy:default"
	DefaultPolicyRule  = "rule:unknown"
)

// DefaultActor is used when a scenario names no actor.
var DefaultActor = event.Actor{ID: "user:demo", Kind: "user"}

// Scenario is one scripted session. Empty TraceID or SessionID get fresh ids.
type Scenario struct {
	TraceID     string       `json:"trace_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	Tenant      string       `json:"tenant" validate:"required"`
	Env         string       `json:"env,omitempty"`
	Actor       *event.Actor `json:"actor,omitempty"`
	AuthnMethod string       `json:"authn_method,omitempty"`
	MFA         bool         `json:"mfa,omitempty"`
	Steps       []Step       `json:"steps" validate:"dive"`
}

// Step is one event after the initial AUTHN. Which fields apply depends
// on EventType.
type Step struct {
	EventType event.Type `json:"event_type" validate:"required"`

	// TOOL_CALL
	Tool   string  `json:"tool,omitempty" validate:"required_if=EventType TOOL_CALL"`
	Args   any     `json:"args,omitempty"`
	Target *string `json:"target,omitempty"`
	Result any     `json:"result,omitempty"`

	// RETRIEVAL
	Resource        string  `json:"resource,omitempty" validate:"required_if=EventType RETRIEVAL"`
	RequestedTenant *string `json:"requested_tenant,omitempty"`
	Scope           string  `json:"scope,omitempty"`
	Query           string  `json:"query,omitempty"`
	Records         any     `json:"records,omitempty"`

	// POLICY_DECISION
	Decision event.Decision `json:"decision,omitempty" validate:"required_if=EventType POLICY_DECISION"`
	PolicyID string         `json:"policy_id,omitempty"`
	RuleID   string         `json:"rule_id,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

var validate = validator.New()

// Validate checks required fields per step type.
func (sc *Scenario) Validate() error {
	if err := validate.Struct(sc); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	return nil
}

// LoadFile reads a JSON scenario from path.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &sc, nil
}
