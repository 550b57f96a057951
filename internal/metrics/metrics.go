package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soclab_events_evaluated_total",
		Help: "Total number of events passed through the correlation engine.",
	})

	SessionsEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soclab_sessions_evaluated_total",
		Help: "Total number of sessions replayed against the rule catalog.",
	})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soclab_alerts_total",
		Help: "Total number of alerts raised, labelled by rule ID and severity.",
	}, []string{"rule_id", "severity"})

	EvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soclab_evaluation_errors_total",
		Help: "Total number of aborted evaluation runs, labelled by rule ID.",
	}, []string{"rule_id"})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soclab_evaluation_duration_ms",
		Help:    "Wall time of one batch evaluation in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	RulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soclab_rules_loaded",
		Help: "Number of runnable rules in the installed catalog.",
	})

	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soclab_alerts_published_total",
		Help: "Alerts handed to sinks, labelled by sink and status.",
	}, []string{"sink", "status"})
)
