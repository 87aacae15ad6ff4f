package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal counts health probes per backend and result.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avroute_health_probes_total",
			Help: "Total health probes per backend",
		},
		[]string{"backend", "result"},
	)

	// ProbeDuration observes probe latency per backend.
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avroute_health_probe_duration_seconds",
			Help:    "Health probe duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

// RecordProbe records a probe result and its duration.
func RecordProbe(backend string, success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	ProbesTotal.WithLabelValues(backend, result).Inc()
	ProbeDuration.WithLabelValues(backend).Observe(duration.Seconds())
}
