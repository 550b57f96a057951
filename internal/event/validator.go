package event

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// tsPattern is ISO-8601 UTC with an optional fraction and a trailing Z.
var tsPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z$`)

// Validator checks the base shape shared by every event.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the event-specific tags registered.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("iso8601z", func(fl validator.FieldLevel) bool {
		return tsPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).Valid()
	})

	return &Validator{validate: v}
}

// Validate returns an error describing the first problems found in ev.
func (v *Validator) Validate(ev *Event) error {
	if ev == nil {
		return fmt.Errorf("validation failed: nil event")
	}
	if err := v.validate.Struct(ev); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if _, ok := payloadKeys[ev.Type]; ok && ev.Payload != nil && ev.Payload.EventType() != ev.Type {
		return fmt.Errorf("validation failed: %s event carries %s payload", ev.Type, ev.Payload.EventType())
	}
	return nil
}
