package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avroute/internal/circuitbreaker"
	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/observability"
)

// Registry errors.
var (
	// ErrRouteNotFound is returned when a route does not exist.
	ErrRouteNotFound = errors.New("route not found")

	// ErrBackendNotFound is returned when a backend does not exist.
	ErrBackendNotFound = errors.New("backend not found")

	// ErrDuplicateBackend is returned when a backend ID is already registered.
	ErrDuplicateBackend = errors.New("backend already registered")
)

// Registry holds all routes and backends.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]*Route

	// backendIndex maps backend ID to owning route name. Backend IDs
	// are unique across routes.
	backendIndex map[string]string

	windowSize      int
	breakerCfg      *circuitbreaker.Config
	defaultStrategy string
	logger          observability.Logger
}

// New creates a registry tuned by the routing configuration.
func New(cfg *config.RoutingConfig, logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}

	breakerCfg := &circuitbreaker.Config{
		ErrorRateThreshold:  cfg.ErrorRateThreshold,
		MinSamples:          cfg.CircuitBreakerFailureCount,
		ConsecutiveFailures: cfg.CircuitBreakerThreshold,
		Cooldown:            cfg.BaseCooldown.Duration(),
		MaxCooldown:         cfg.MaxCooldown.Duration(),
	}
	breakerCfg.Validate()

	return &Registry{
		routes:          make(map[string]*Route),
		backendIndex:    make(map[string]string),
		windowSize:      cfg.WindowSize,
		breakerCfg:      breakerCfg,
		defaultStrategy: cfg.DefaultStrategy,
		logger:          logger,
	}
}

// Seed registers routes and backends from static configuration.
func (r *Registry) Seed(routes []config.Route) error {
	for _, route := range routes {
		strategy := route.Strategy
		if strategy == "" {
			strategy = r.defaultStrategy
		}
		specs := make([]BackendSpec, 0, len(route.Backends))
		for _, b := range route.Backends {
			specs = append(specs, BackendSpec{
				ID:         b.ID,
				URL:        b.URL,
				Weight:     b.Weight,
				Cost:       b.Cost,
				Priority:   b.Priority,
				HealthPath: b.HealthPath,
			})
		}
		if err := r.ApplyRoute(route.Name, strategy, specs); err != nil {
			return fmt.Errorf("route %s: %w", route.Name, err)
		}
	}
	return nil
}

// RegisterBackend adds a backend to a route, creating the route with
// the default strategy if it does not exist. A backend without an ID is
// assigned a generated one. The registered spec is returned.
func (r *Registry) RegisterBackend(routeName string, spec BackendSpec) (BackendSpec, error) {
	if err := validateSpec(&spec); err != nil {
		return BackendSpec{}, err
	}
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, exists := r.backendIndex[spec.ID]; exists {
		return BackendSpec{}, fmt.Errorf("%w: %s (route %s)", ErrDuplicateBackend, spec.ID, owner)
	}

	route, ok := r.routes[routeName]
	if !ok {
		route = newRoute(routeName, r.defaultStrategy)
		r.routes[routeName] = route
	}

	backend := newBackend(spec, r.windowSize, r.breakerCfg, r.logger)

	current := route.Backends()
	next := make([]*Backend, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, backend)
	route.setBackends(next)
	r.backendIndex[spec.ID] = routeName

	RecordBackendCount(routeName, len(next))

	r.logger.Info("backend registered",
		observability.String("route", routeName),
		observability.String("backend", spec.ID),
		observability.String("url", spec.URL),
	)

	return spec, nil
}

// DeregisterBackend removes a backend by ID from whichever route owns it.
func (r *Registry) DeregisterBackend(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	routeName, ok := r.backendIndex[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackendNotFound, id)
	}
	route := r.routes[routeName]

	current := route.Backends()
	next := make([]*Backend, 0, len(current)-1)
	for _, b := range current {
		if b.ID() != id {
			next = append(next, b)
		}
	}
	route.setBackends(next)
	delete(r.backendIndex, id)

	RecordBackendCount(routeName, len(next))

	r.logger.Info("backend deregistered",
		observability.String("route", routeName),
		observability.String("backend", id),
	)

	return nil
}

// SetStrategy changes a route's strategy.
func (r *Registry) SetStrategy(routeName, strategy string) error {
	if !config.ValidStrategy(strategy) {
		return fmt.Errorf("unknown strategy %q", strategy)
	}

	r.mu.RLock()
	route, ok := r.routes[routeName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, routeName)
	}

	route.setStrategy(strategy)

	r.logger.Info("route strategy changed",
		observability.String("route", routeName),
		observability.String("strategy", strategy),
	)

	return nil
}

// ApplyRoute declaratively replaces a route's strategy and backend set.
// Backends whose ID already exists on the route keep their window and
// breaker state; new backends start fresh; missing ones are removed.
func (r *Registry) ApplyRoute(routeName, strategy string, specs []BackendSpec) error {
	if strategy == "" {
		strategy = r.defaultStrategy
	}
	if !config.ValidStrategy(strategy) {
		return fmt.Errorf("unknown strategy %q", strategy)
	}
	for i := range specs {
		if err := validateSpec(&specs[i]); err != nil {
			return fmt.Errorf("backend %d: %w", i, err)
		}
		if specs[i].ID == "" {
			specs[i].ID = uuid.NewString()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Reject IDs owned by other routes or repeated within the new set
	// before touching the route map or strategy, so a rejected apply
	// leaves no partial state behind.
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if owner, exists := r.backendIndex[spec.ID]; exists && owner != routeName {
			return fmt.Errorf("%w: %s (route %s)", ErrDuplicateBackend, spec.ID, owner)
		}
		if seen[spec.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateBackend, spec.ID)
		}
		seen[spec.ID] = true
	}

	route, ok := r.routes[routeName]
	if !ok {
		route = newRoute(routeName, strategy)
		r.routes[routeName] = route
	}
	route.setStrategy(strategy)

	existing := make(map[string]*Backend)
	for _, b := range route.Backends() {
		existing[b.ID()] = b
		delete(r.backendIndex, b.ID())
	}

	next := make([]*Backend, 0, len(specs))
	for _, spec := range specs {
		if prev, ok := existing[spec.ID]; ok && prev.Spec() == spec {
			next = append(next, prev)
		} else {
			next = append(next, newBackend(spec, r.windowSize, r.breakerCfg, r.logger))
		}
		r.backendIndex[spec.ID] = routeName
	}
	route.setBackends(next)

	RecordBackendCount(routeName, len(next))

	r.logger.Info("route applied",
		observability.String("route", routeName),
		observability.String("strategy", strategy),
		observability.Int("backends", len(next)),
	)

	return nil
}

// RemoveRoute deletes a route and all its backends.
func (r *Registry) RemoveRoute(routeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	route, ok := r.routes[routeName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, routeName)
	}
	for _, b := range route.Backends() {
		delete(r.backendIndex, b.ID())
	}
	delete(r.routes, routeName)

	RecordBackendCount(routeName, 0)

	r.logger.Info("route removed",
		observability.String("route", routeName),
	)

	return nil
}

// GetRoute returns a route by name.
func (r *Registry) GetRoute(name string) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[name]
	return route, ok
}

// RouteOf returns the name of the route owning a backend.
func (r *Registry) RouteOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routeName, ok := r.backendIndex[id]
	return routeName, ok
}

// GetBackend returns a backend by ID.
func (r *Registry) GetBackend(id string) (*Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routeName, ok := r.backendIndex[id]
	if !ok {
		return nil, false
	}
	return r.routes[routeName].findBackend(id)
}

// Routes returns all routes sorted by name.
func (r *Registry) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].name < routes[j].name })
	return routes
}

// Backends returns all backends across all routes.
func (r *Registry) Backends() []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var backends []*Backend
	for _, route := range r.routes {
		backends = append(backends, route.Backends()...)
	}
	return backends
}

// ResetBackend forces a backend's breaker closed and clears its window.
func (r *Registry) ResetBackend(id string, now time.Time) error {
	b, ok := r.GetBackend(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackendNotFound, id)
	}
	b.ResetBreaker(now)
	return nil
}

// validateSpec validates a backend spec using the shared config rules.
func validateSpec(spec *BackendSpec) error {
	cb := config.Backend{
		ID:         spec.ID,
		URL:        spec.URL,
		Weight:     spec.Weight,
		Cost:       spec.Cost,
		Priority:   spec.Priority,
		HealthPath: spec.HealthPath,
	}
	return config.ValidateBackend(&cb)
}
