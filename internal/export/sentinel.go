package export

// DefaultTable is the custom Log Analytics table hint.
const DefaultTable = "AgenticSocLab_CL"

// LogAnalyticsRecord is the flat shape Sentinel queries against. Fields
// missing from the source record are null. RawEvent keeps full fidelity.
type LogAnalyticsRecord struct {
	EventTime     any    `json:"EventTime"`
	EventType     any    `json:"EventType"`
	RuleID        any    `json:"RuleId"`
	Severity      any    `json:"Severity"`
	TraceID       any    `json:"TraceId"`
	SessionID     any    `json:"SessionId"`
	Tenant        any    `json:"Tenant"`
	Environment   any    `json:"Environment"`
	ActorID       any    `json:"ActorId"`
	ActorKind     any    `json:"ActorKind"`
	IntegrityHash any    `json:"IntegrityHash"`
	IntegrityPrev any    `json:"IntegrityPrev"`
	RawEvent      Record `json:"RawEvent"`
	TargetTable   string `json:"TargetTable"`
}

// LogAnalytics flattens rec for a Sentinel custom table.
func LogAnalytics(rec Record, table string) LogAnalyticsRecord {
	if table == "" {
		table = DefaultTable
	}
	actor, _ := rec["actor"].(map[string]any)
	integrity, _ := rec["integrity"].(map[string]any)
	return LogAnalyticsRecord{
		EventTime:     rec["ts"],
		EventType:     rec["event_type"],
		RuleID:        rec["rule_id"],
		Severity:      rec["severity"],
		TraceID:       rec["trace_id"],
		SessionID:     rec["session_id"],
		Tenant:        rec["tenant"],
		Environment:   rec["env"],
		ActorID:       actor["id"],
		ActorKind:     actor["kind"],
		IntegrityHash: integrity["hash"],
		IntegrityPrev: integrity["prev"],
		RawEvent:      rec,
		TargetTable:   table,
	}
}

// LogAnalyticsAll converts every record.
func LogAnalyticsAll(recs []Record, table string) []LogAnalyticsRecord {
	out := make([]LogAnalyticsRecord, len(recs))
	for i, r := range recs {
		out[i] = LogAnalytics(r, table)
	}
	return out
}
