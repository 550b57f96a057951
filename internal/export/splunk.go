package export

// Splunk HEC defaults.
const (
	DefaultHECIndex      = "agentic_soc"
	DefaultHECSourcetype = "agentic:soc:json"
	DefaultHECHost       = "agentic-soc-lab"
)

// HECOptions names where HEC events land.
type HECOptions struct {
	Index      string
	Sourcetype string
	Host       string
}

func (o HECOptions) withDefaults() HECOptions {
	if o.Index == "" {
		o.Index = DefaultHECIndex
	}
	if o.Sourcetype == "" {
		o.Sourcetype = DefaultHECSourcetype
	}
	if o.Host == "" {
		o.Host = DefaultHECHost
	}
	return o
}

// HECEvent is one Splunk HTTP Event Collector envelope.
// Time is null when the record has no parseable ts.
type HECEvent struct {
	Time       *float64 `json:"time"`
	Host       string   `json:"host"`
	Index      string   `json:"index"`
	Sourcetype string   `json:"sourcetype"`
	Event      Record   `json:"event"`
}

// SplunkHEC wraps rec in a HEC envelope. The full record stays under event.
func SplunkHEC(rec Record, opts HECOptions) HECEvent {
	opts = opts.withDefaults()
	ev := HECEvent{
		Host:       opts.Host,
		Index:      opts.Index,
		Sourcetype: opts.Sourcetype,
		Event:      rec,
	}
	if ts, ok := str(rec, "ts"); ok {
		if sec, ok := epoch(ts); ok {
			ev.Time = &sec
		}
	}
	return ev
}

// SplunkHECAll converts every record.
func SplunkHECAll(recs []Record, opts HECOptions) []HECEvent {
	out := make([]HECEvent, len(recs))
	for i, r := range recs {
		out[i] = SplunkHEC(r, opts)
	}
	return out
}
