package registry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Route is a logical route with a strategy and a copy-on-write backend set.
type Route struct {
	name string

	// strategyMu guards strategy; backend sets are replaced wholesale
	// under the registry lock and read via the atomic pointer.
	strategyMu sync.RWMutex
	strategy   string

	backends atomic.Pointer[[]*Backend]

	// cursor advances on each load-balanced decision.
	cursor atomic.Uint64
}

// newRoute creates a route with the given strategy and no backends.
func newRoute(name, strategy string) *Route {
	r := &Route{
		name:     name,
		strategy: strategy,
	}
	empty := make([]*Backend, 0)
	r.backends.Store(&empty)
	return r
}

// Name returns the route name.
func (r *Route) Name() string {
	return r.name
}

// Strategy returns the route's current strategy name.
func (r *Route) Strategy() string {
	r.strategyMu.RLock()
	defer r.strategyMu.RUnlock()
	return r.strategy
}

// setStrategy replaces the route's strategy.
func (r *Route) setStrategy(strategy string) {
	r.strategyMu.Lock()
	defer r.strategyMu.Unlock()
	r.strategy = strategy
}

// Backends returns the current backend set. The returned slice is
// shared and must not be modified.
func (r *Route) Backends() []*Backend {
	return *r.backends.Load()
}

// Eligible returns the backends whose breakers would admit a request at
// the given time.
func (r *Route) Eligible(now time.Time) []*Backend {
	all := r.Backends()
	eligible := make([]*Backend, 0, len(all))
	for _, b := range all {
		if b.CanAttempt(now) {
			eligible = append(eligible, b)
		}
	}
	return eligible
}

// NextCursor advances and returns the route's round-robin cursor.
func (r *Route) NextCursor() uint64 {
	return r.cursor.Add(1) - 1
}

// setBackends replaces the backend set.
func (r *Route) setBackends(backends []*Backend) {
	r.backends.Store(&backends)
}

// findBackend returns the backend with the given ID, if present.
func (r *Route) findBackend(id string) (*Backend, bool) {
	for _, b := range r.Backends() {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}
