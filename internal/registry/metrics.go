package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegisteredBackends shows the current backend count per route.
	RegisteredBackends = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avroute_registry_backends",
			Help: "Number of backends currently registered per route",
		},
		[]string{"route"},
	)
)

// RecordBackendCount records the backend count for a route.
func RecordBackendCount(route string, count int) {
	RegisteredBackends.WithLabelValues(route).Set(float64(count))
}
