package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState shows the current state per backend.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avroute_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"backend"},
	)

	// BreakerAdmissionsTotal counts admission checks per backend.
	BreakerAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_breaker_admissions_total",
			Help: "Total admission checks against circuit breakers",
		},
		[]string{"backend", "result"},
	)

	// BreakerResultsTotal counts recorded request outcomes per backend.
	BreakerResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_breaker_results_total",
			Help: "Total request outcomes recorded by circuit breakers",
		},
		[]string{"backend", "result"},
	)

	// BreakerStateChangesTotal counts state transitions per backend.
	BreakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_breaker_state_changes_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"backend", "from", "to"},
	)

	// BreakerTrialsTotal counts admitted half-open trial requests.
	BreakerTrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_breaker_trials_total",
			Help: "Total half-open trial requests admitted",
		},
		[]string{"backend"},
	)
)

// RecordState records the current state of a breaker.
func RecordState(backend string, state State) {
	BreakerState.WithLabelValues(backend).Set(float64(state))
}

// RecordAdmission records an admission check result.
func RecordAdmission(backend string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	BreakerAdmissionsTotal.WithLabelValues(backend, result).Inc()
}

// RecordResult records a request outcome.
func RecordResult(backend string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	BreakerResultsTotal.WithLabelValues(backend, result).Inc()
}

// RecordStateChange records a state transition.
func RecordStateChange(backend string, from, to State) {
	BreakerStateChangesTotal.WithLabelValues(backend, from.String(), to.String()).Inc()
	RecordState(backend, to)
}

// RecordTrial records an admitted half-open trial.
func RecordTrial(backend string) {
	BreakerTrialsTotal.WithLabelValues(backend).Inc()
}
