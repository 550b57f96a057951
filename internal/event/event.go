package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Type is the event_type discriminator.
type Type string

const (
	TypeAuthn          Type = "AUTHN"
	TypeToolCall       Type = "TOOL_CALL"
	TypeRetrieval      Type = "RETRIEVAL"
	TypePolicyDecision Type = "POLICY_DECISION"
	TypeAlert          Type = "ALERT"
	TypeCaseNote       Type = "CASE_NOTE"
)

// Valid reports whether t is one of the known event types.
func (t Type) Valid() bool {
	switch t {
	case TypeAuthn, TypeToolCall, TypeRetrieval, TypePolicyDecision, TypeAlert, TypeCaseNote:
		return true
	}
	return false
}

// TimeFormat is the wire format of the ts field.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Actor identifies who or what produced an event.
type Actor struct {
	ID   string `json:"id" validate:"required"`
	Kind string `json:"kind" validate:"required"`
}

// Integrity is the hash-chain link written by the event log.
type Integrity struct {
	Prev string `json:"prev"`
	Hash string `json:"hash"`
}

// Event is one record of an agent session timeline.
// Payload holds the type-specific body and is nil for types without one.
type Event struct {
	Timestamp string     `json:"ts" validate:"required,iso8601z"`
	Type      Type       `json:"event_type" validate:"required,event_type"`
	TraceID   string     `json:"trace_id" validate:"required"`
	SessionID string     `json:"session_id" validate:"required"`
	Tenant    string     `json:"tenant" validate:"required"`
	Env       string     `json:"env" validate:"required"`
	Actor     Actor      `json:"actor"`
	Payload   Payload    `json:"-" validate:"-"`
	Integrity *Integrity `json:"integrity,omitempty" validate:"-"`

	// Extra keeps top-level keys this model does not know (alert fields,
	// case-note bodies) so that a decode/encode round trip is lossless.
	Extra map[string]json.RawMessage `json:"-" validate:"-"`
}

// New builds an event with the base shape filled in and no payload.
func New(t Type, traceID, sessionID, tenant, env string, actor Actor, ts time.Time) *Event {
	return &Event{
		Timestamp: ts.UTC().Format(TimeFormat),
		Type:      t,
		TraceID:   traceID,
		SessionID: sessionID,
		Tenant:    tenant,
		Env:       env,
		Actor:     actor,
	}
}

// WithPayload sets p as the body and returns e.
func (e *Event) WithPayload(p Payload) *Event {
	e.Payload = p
	return e
}

// ToolCall returns the tool-call body when the event is a TOOL_CALL.
func (e *Event) ToolCall() (*ToolCall, bool) {
	if e.Type != TypeToolCall {
		return nil, false
	}
	tc, ok := e.Payload.(*ToolCall)
	return tc, ok && tc != nil
}

// Retrieval returns the retrieval body when the event is a RETRIEVAL.
func (e *Event) Retrieval() (*Retrieval, bool) {
	if e.Type != TypeRetrieval {
		return nil, false
	}
	r, ok := e.Payload.(*Retrieval)
	return r, ok && r != nil
}

// Policy returns the decision body when the event is a POLICY_DECISION.
func (e *Event) Policy() (*PolicyDecision, bool) {
	if e.Type != TypePolicyDecision {
		return nil, false
	}
	p, ok := e.Payload.(*PolicyDecision)
	return p, ok && p != nil
}

// Authn returns the authentication body when the event is an AUTHN.
func (e *Event) Authn() (*Authn, bool) {
	if e.Type != TypeAuthn {
		return nil, false
	}
	a, ok := e.Payload.(*Authn)
	return a, ok && a != nil
}

var baseKeys = map[string]struct{}{
	"ts": {}, "event_type": {}, "trace_id": {}, "session_id": {},
	"tenant": {}, "env": {}, "actor": {}, "integrity": {},
}

// MarshalJSON writes the event with its payload under the key matching
// event_type. Keys come out sorted, so equal events encode identically.
func (e *Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(baseKeys)+len(e.Extra)+1)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["ts"] = e.Timestamp
	m["event_type"] = e.Type
	m["trace_id"] = e.TraceID
	m["session_id"] = e.SessionID
	m["tenant"] = e.Tenant
	m["env"] = e.Env
	m["actor"] = e.Actor
	if e.Integrity != nil {
		m["integrity"] = e.Integrity
	}
	if e.Payload != nil {
		key, ok := payloadKeys[e.Payload.EventType()]
		if !ok {
			return nil, fmt.Errorf("event: no wire key for payload %T", e.Payload)
		}
		m[key] = e.Payload
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the base shape and decodes the payload selected by
// event_type. A missing payload leaves Payload nil; evaluators that need
// it report the event as malformed.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := useNumber(data, &raw); err != nil {
		return err
	}
	*e = Event{}

	fields := []struct {
		key string
		dst any
	}{
		{"ts", &e.Timestamp},
		{"event_type", &e.Type},
		{"trace_id", &e.TraceID},
		{"session_id", &e.SessionID},
		{"tenant", &e.Tenant},
		{"env", &e.Env},
		{"actor", &e.Actor},
		{"integrity", &e.Integrity},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := useNumber(v, f.dst); err != nil {
			return fmt.Errorf("field %s: %w", f.key, err)
		}
	}

	payloadKey, hasPayload := payloadKeys[e.Type]
	for k, v := range raw {
		if _, ok := baseKeys[k]; ok {
			continue
		}
		if hasPayload && k == payloadKey {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]json.RawMessage)
		}
		e.Extra[k] = v
	}

	if !hasPayload {
		return nil
	}
	body, ok := raw[payloadKey]
	if !ok || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil
	}
	p := newPayload(e.Type)
	if err := useNumber(body, p); err != nil {
		return fmt.Errorf("field %s: %w", payloadKey, err)
	}
	e.Payload = p
	return nil
}

func useNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
