// Package builtin implements the four shipped rule classes:
//
//	D001 repeated tool invocation (windowed count)
//	D002 retrieval tenant-boundary violation
//	D003 sensitive-pattern egress
//	D004 egress after a policy denial (two-stage sequence)
package builtin

import "github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"

// Register adds every builtin evaluator to reg.
func Register(reg *detect.Registry) {
	reg.Register(NewToolLoop())
	reg.Register(NewScopeMismatch())
	reg.Register(NewSensitiveEgress())
	reg.Register(NewDenyThenExfil())
}

// NewRegistry returns a registry holding the builtin evaluators.
func NewRegistry() *detect.Registry {
	reg := detect.NewRegistry()
	Register(reg)
	return reg
}
