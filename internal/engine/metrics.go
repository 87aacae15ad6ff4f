package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts routing decisions by route, strategy and result.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_decisions_total",
			Help: "Total routing decisions",
		},
		[]string{"route", "strategy", "result"},
	)

	// DecisionDuration observes decision latency per route.
	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avroute_decision_duration_seconds",
			Help:    "Routing decision duration in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"route"},
	)

	// OutcomesTotal counts reported request outcomes per backend.
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_outcomes_total",
			Help: "Total reported request outcomes",
		},
		[]string{"backend", "result"},
	)

	// OutcomeLatency observes reported request latency per backend.
	OutcomeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avroute_outcome_latency_seconds",
			Help:    "Reported request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

// RecordDecision records a routing decision.
func RecordDecision(route, strategy, result string, duration time.Duration) {
	DecisionsTotal.WithLabelValues(route, strategy, result).Inc()
	DecisionDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordOutcome records a reported request outcome.
func RecordOutcome(backend string, success bool, latency time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	OutcomesTotal.WithLabelValues(backend, result).Inc()
	OutcomeLatency.WithLabelValues(backend).Observe(latency.Seconds())
}
