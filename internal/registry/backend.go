package registry

import (
	"sync"
	"time"

	"github.com/vyrodovalexey/avroute/internal/circuitbreaker"
	"github.com/vyrodovalexey/avroute/internal/observability"
	"github.com/vyrodovalexey/avroute/internal/window"
)

// BackendSpec is the immutable configuration of a backend.
type BackendSpec struct {
	// ID uniquely identifies the backend across all routes.
	ID string `json:"id"`

	// URL is the backend base URL.
	URL string `json:"url"`

	// Weight is the relative share for load-balanced routing.
	// A zero weight backend receives no load-balanced traffic but
	// remains eligible for other strategies.
	Weight int `json:"weight"`

	// Cost is the per-request cost used by cost-optimized routing.
	Cost float64 `json:"cost"`

	// Priority orders backends for failover routing; lower is preferred.
	Priority int `json:"priority"`

	// HealthPath is the probe path, defaulting to /health.
	HealthPath string `json:"healthPath,omitempty"`
}

// Backend is a registered backend with its live routing state.
type Backend struct {
	spec BackendSpec

	// mu guards the window and breaker together so snapshots and
	// breaker transitions observe a consistent view.
	mu      sync.Mutex
	window  *window.Window
	breaker *circuitbreaker.Breaker

	lastProbe        time.Time
	lastProbeHealthy bool
}

// newBackend creates a backend with a fresh window and breaker.
func newBackend(spec BackendSpec, windowSize int, breakerCfg *circuitbreaker.Config, logger observability.Logger) *Backend {
	return &Backend{
		spec:    spec,
		window:  window.New(windowSize),
		breaker: circuitbreaker.New(spec.ID, breakerCfg, logger),
	}
}

// Spec returns the backend's immutable configuration.
func (b *Backend) Spec() BackendSpec {
	return b.spec
}

// ID returns the backend identifier.
func (b *Backend) ID() string {
	return b.spec.ID
}

// URL returns the backend base URL.
func (b *Backend) URL() string {
	return b.spec.URL
}

// HealthURL returns the full probe URL.
func (b *Backend) HealthURL() string {
	path := b.spec.HealthPath
	if path == "" {
		path = "/health"
	}
	return b.spec.URL + path
}

// RecordOutcome records a request outcome into the window and feeds the
// breaker with the post-record snapshot.
func (b *Backend) RecordOutcome(success bool, latency time.Duration, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasHalfOpen := b.breaker.State() == circuitbreaker.StateHalfOpen
	b.window.Record(window.Outcome{Success: success, Latency: latency})
	b.breaker.RecordOutcome(success, b.window.Snapshot(), now)

	// A successful trial closed the circuit. Drop the pre-outage
	// failures so the error-rate trigger starts clean; otherwise the
	// first failure after recovery would re-trip immediately. The trial
	// sample itself is kept.
	if wasHalfOpen && b.breaker.State() == circuitbreaker.StateClosed {
		b.window.Reset()
		b.window.Record(window.Outcome{Success: success, Latency: latency})
	}
}

// Snapshot returns the current window aggregate.
func (b *Backend) Snapshot() window.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window.Snapshot()
}

// CanAttempt reports whether the breaker would admit a request now,
// without mutating breaker state.
func (b *Backend) CanAttempt(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breaker.CanAttempt(now)
}

// Acquire admits a request through the breaker, possibly consuming the
// single half-open trial slot.
func (b *Backend) Acquire(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breaker.Acquire(now)
}

// BreakerState returns the current breaker state.
func (b *Backend) BreakerState() circuitbreaker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breaker.State()
}

// BreakerStats returns the current breaker statistics.
func (b *Backend) BreakerStats() circuitbreaker.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breaker.Stats()
}

// ResetBreaker forces the breaker closed and clears the window.
func (b *Backend) ResetBreaker(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.Reset()
	b.breaker.Reset(now)
}

// RecordProbe records the result of a health probe.
func (b *Backend) RecordProbe(healthy bool, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastProbe = at
	b.lastProbeHealthy = healthy
}

// LastProbe returns the time and result of the most recent health probe.
func (b *Backend) LastProbe() (at time.Time, healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastProbe, b.lastProbeHealthy
}
