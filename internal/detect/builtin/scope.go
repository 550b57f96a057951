package builtin

import (
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
)

// ScopeMismatchID is the catalog id of the tenant-boundary rule.
const ScopeMismatchID = "D002"

// ScopeMismatch fires on the first retrieval whose requested tenant differs
// from the tenant the event belongs to. An explicit null requested tenant
// counts as different. Match parameters are ignored.
type ScopeMismatch struct{}

func NewScopeMismatch() *ScopeMismatch { return &ScopeMismatch{} }

func (*ScopeMismatch) RuleID() string { return ScopeMismatchID }

func (*ScopeMismatch) Compile(spec config.RuleSpec) (detect.Detector, error) {
	return detect.DetectorFunc(func(s *session.Session) ([]alert.Alert, error) {
		for i, ev := range s.Events {
			if ev.Type != event.TypeRetrieval {
				continue
			}
			r, ok := ev.Retrieval()
			if !ok {
				return nil, detect.MissingPayload(s, i)
			}
			requested, ok := r.ResolveRequestedTenant(ev.Tenant)
			if ok && requested == ev.Tenant {
				continue
			}
			var shown any
			if ok {
				shown = requested
			}
			return []alert.Alert{detect.NewAlert(spec, s, ev, alert.Context{
				"tenant":           ev.Tenant,
				"requested_tenant": shown,
				"resource":         r.Resource,
			})}, nil
		}
		return nil, nil
	}), nil
}
