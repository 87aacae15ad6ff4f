package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	// OperationsTotal counts store operations by result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_store_operations_total",
			Help: "Total coordination store operations",
		},
		[]string{"op", "result"},
	)

	// OperationDuration observes store operation latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avroute_store_operation_duration_seconds",
			Help:    "Coordination store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// StoreBreakerState shows the store circuit breaker state.
	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avroute_store_breaker_state",
			Help: "Coordination store breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// SyncsTotal counts route synchronizations from the store.
	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_store_syncs_total",
			Help: "Total route synchronizations from the coordination store",
		},
		[]string{"result"},
	)
)

// RecordOperation records a store operation result.
func RecordOperation(op, result string) {
	OperationsTotal.WithLabelValues(op, result).Inc()
}

// RecordOperationDuration records a store operation duration.
func RecordOperationDuration(op string, d time.Duration) {
	OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordBreakerState records the store breaker state.
func RecordBreakerState(state gobreaker.State) {
	StoreBreakerState.Set(float64(state))
}

// RecordSync records the result of a sync pass.
func RecordSync(success bool) {
	result := "error"
	if success {
		result = "ok"
	}
	SyncsTotal.WithLabelValues(result).Inc()
}
