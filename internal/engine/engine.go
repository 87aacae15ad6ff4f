// Package engine implements the route decision core.
//
// The engine ties the registry, strategies, and circuit breakers
// together: a decision takes the route's eligible backends, ranks them
// by the route's strategy, and returns the first backend whose breaker
// admits the request. Outcome reports feed back into the windows and
// breakers that the next decision reads.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avroute/internal/circuitbreaker"
	"github.com/vyrodovalexey/avroute/internal/observability"
	"github.com/vyrodovalexey/avroute/internal/registry"
	"github.com/vyrodovalexey/avroute/internal/store"
	"github.com/vyrodovalexey/avroute/internal/strategy"
	"github.com/vyrodovalexey/avroute/internal/window"
)

const engineTracerName = "github.com/vyrodovalexey/avroute/internal/engine"

// Engine errors.
var (
	// ErrNoEligibleBackend is returned when every backend of a route is
	// excluded by its circuit breaker or the route has no backends.
	ErrNoEligibleBackend = errors.New("no eligible backend")

	// ErrStoreDisabled is returned by store-backed queries when no
	// coordination store is configured.
	ErrStoreDisabled = errors.New("coordination store disabled")
)

// Decision is the result of routing a single request.
type Decision struct {
	Route     string               `json:"route"`
	Strategy  string               `json:"strategy"`
	Backend   registry.BackendSpec `json:"backend"`
	Trial     bool                 `json:"trial,omitempty"`
	DecidedAt time.Time            `json:"decidedAt"`
}

// BackendStatus describes a backend's live state.
type BackendStatus struct {
	Spec         registry.BackendSpec `json:"spec"`
	BreakerState string               `json:"breakerState"`
	Window       window.Snapshot      `json:"window"`
}

// RouteStatus describes a route and its backends.
type RouteStatus struct {
	Name     string          `json:"name"`
	Strategy string          `json:"strategy"`
	Backends []BackendStatus `json:"backends"`
}

// Engine is the route decision core.
type Engine struct {
	registry *registry.Registry
	store    store.Store
	logger   observability.Logger
}

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithStore attaches a coordination store; local route changes are
// published to it best-effort.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// New creates an engine over the given registry.
func New(reg *registry.Registry, logger observability.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}

	e := &Engine{
		registry: reg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the underlying registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Decide selects a backend for the route.
func (e *Engine) Decide(ctx context.Context, routeName string) (Decision, error) {
	_, span := otel.Tracer(engineTracerName).Start(ctx, "engine.Decide",
		trace.WithAttributes(attribute.String("route.name", routeName)),
	)
	defer span.End()

	start := time.Now()

	route, ok := e.registry.GetRoute(routeName)
	if !ok {
		RecordDecision(routeName, "", "route_not_found", time.Since(start))
		return Decision{}, fmt.Errorf("%w: %s", registry.ErrRouteNotFound, routeName)
	}

	strategyName := route.Strategy()
	span.SetAttributes(attribute.String("route.strategy", strategyName))

	strat, err := strategy.ByName(strategyName)
	if err != nil {
		RecordDecision(routeName, strategyName, "bad_strategy", time.Since(start))
		return Decision{}, err
	}

	now := time.Now()
	eligible := route.Eligible(now)
	if len(eligible) == 0 {
		RecordDecision(routeName, strategyName, "no_backend", time.Since(start))
		e.logger.Warn("no eligible backend",
			observability.String("route", routeName),
			observability.Int("backends", len(route.Backends())),
		)
		return Decision{}, fmt.Errorf("%w: route %s", ErrNoEligibleBackend, routeName)
	}

	// Walk the ranked candidates: a breaker can still refuse admission
	// when its single half-open trial slot is already taken.
	for _, b := range strat.Rank(route, eligible) {
		// A non-closed breaker that admits the request is handing out
		// its half-open trial slot.
		wasOpen := b.BreakerState() != circuitbreaker.StateClosed
		if !b.Acquire(now) {
			continue
		}

		decision := Decision{
			Route:     routeName,
			Strategy:  strategyName,
			Backend:   b.Spec(),
			Trial:     wasOpen,
			DecidedAt: now,
		}

		span.SetAttributes(
			attribute.String("backend.id", b.ID()),
			attribute.Bool("decision.trial", decision.Trial),
		)
		RecordDecision(routeName, strategyName, "ok", time.Since(start))

		e.logger.Debug("decision made",
			observability.String("route", routeName),
			observability.String("strategy", strategyName),
			observability.String("backend", b.ID()),
			observability.Bool("trial", decision.Trial),
		)

		return decision, nil
	}

	RecordDecision(routeName, strategyName, "no_backend", time.Since(start))
	return Decision{}, fmt.Errorf("%w: route %s", ErrNoEligibleBackend, routeName)
}

// ReportOutcome records the observed result of a routed request.
func (e *Engine) ReportOutcome(ctx context.Context, backendID string, success bool, latency time.Duration) error {
	_, span := otel.Tracer(engineTracerName).Start(ctx, "engine.ReportOutcome",
		trace.WithAttributes(
			attribute.String("backend.id", backendID),
			attribute.Bool("outcome.success", success),
		),
	)
	defer span.End()

	b, ok := e.registry.GetBackend(backendID)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrBackendNotFound, backendID)
	}

	b.RecordOutcome(success, latency, time.Now())
	RecordOutcome(backendID, success, latency)

	return nil
}

// RegisterBackend adds a backend to a route and publishes the updated
// route definition.
func (e *Engine) RegisterBackend(ctx context.Context, routeName string, spec registry.BackendSpec) (registry.BackendSpec, error) {
	registered, err := e.registry.RegisterBackend(routeName, spec)
	if err != nil {
		return registry.BackendSpec{}, err
	}

	e.publishRoute(ctx, routeName)
	return registered, nil
}

// DeregisterBackend removes a backend and publishes the updated route
// definition.
func (e *Engine) DeregisterBackend(ctx context.Context, backendID string) error {
	routeName, ok := e.registry.RouteOf(backendID)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrBackendNotFound, backendID)
	}

	if err := e.registry.DeregisterBackend(backendID); err != nil {
		return err
	}

	e.publishRoute(ctx, routeName)
	return nil
}

// SetStrategy changes a route's strategy and publishes the updated
// route definition.
func (e *Engine) SetStrategy(ctx context.Context, routeName, strategyName string) error {
	if err := e.registry.SetStrategy(routeName, strategyName); err != nil {
		return err
	}

	e.publishRoute(ctx, routeName)
	return nil
}

// ApplyRoute declaratively replaces a route. Used by configuration
// reloads and the store syncer.
func (e *Engine) ApplyRoute(routeName, strategyName string, specs []registry.BackendSpec) error {
	return e.registry.ApplyRoute(routeName, strategyName, specs)
}

// ResetBackend forces a backend's breaker closed.
func (e *Engine) ResetBackend(backendID string) error {
	return e.registry.ResetBackend(backendID, time.Now())
}

// Routes returns the status of all routes.
func (e *Engine) Routes() []RouteStatus {
	routes := e.registry.Routes()
	statuses := make([]RouteStatus, 0, len(routes))
	for _, route := range routes {
		statuses = append(statuses, e.routeStatus(route))
	}
	return statuses
}

// RouteStatus returns the status of a single route.
func (e *Engine) RouteStatus(routeName string) (RouteStatus, error) {
	route, ok := e.registry.GetRoute(routeName)
	if !ok {
		return RouteStatus{}, fmt.Errorf("%w: %s", registry.ErrRouteNotFound, routeName)
	}
	return e.routeStatus(route), nil
}

func (e *Engine) routeStatus(route *registry.Route) RouteStatus {
	backends := route.Backends()
	status := RouteStatus{
		Name:     route.Name(),
		Strategy: route.Strategy(),
		Backends: make([]BackendStatus, 0, len(backends)),
	}
	for _, b := range backends {
		status.Backends = append(status.Backends, BackendStatus{
			Spec:         b.Spec(),
			BreakerState: b.BreakerState().String(),
			Window:       b.Snapshot(),
		})
	}
	return status
}

// RouteHealth returns this instance's health view in the store's
// shared shape. It implements store.Reporter.
func (e *Engine) RouteHealth() []store.RouteHealth {
	routes := e.registry.Routes()
	health := make([]store.RouteHealth, 0, len(routes))
	for _, route := range routes {
		backends := route.Backends()
		rh := store.RouteHealth{
			Route:    route.Name(),
			Backends: make([]store.BackendHealth, 0, len(backends)),
		}
		for _, b := range backends {
			snap := b.Snapshot()
			rh.Backends = append(rh.Backends, store.BackendHealth{
				ID:           b.ID(),
				BreakerState: b.BreakerState().String(),
				SuccessRate:  snap.SuccessRate,
				P95Ms:        float64(snap.P95.Microseconds()) / 1000,
				SampleCount:  snap.SampleCount,
			})
		}
		health = append(health, rh)
	}
	return health
}

// InstanceReports returns the health reports published by all engine
// instances sharing the coordination store.
func (e *Engine) InstanceReports(ctx context.Context) ([]store.HealthReport, error) {
	if e.store == nil {
		return nil, ErrStoreDisabled
	}
	return e.store.LoadHealth(ctx)
}

// publishRoute pushes the current local state of a route to the store.
// Store failures are logged, not propagated: routing keeps working on
// local state.
func (e *Engine) publishRoute(ctx context.Context, routeName string) {
	if e.store == nil {
		return
	}

	route, ok := e.registry.GetRoute(routeName)
	if !ok {
		// Route was removed; drop it from the store too.
		if err := e.store.DeleteRoute(ctx, routeName); err != nil {
			e.logger.Warn("failed to delete route from store",
				observability.String("route", routeName),
				observability.Error(err),
			)
		}
		return
	}

	backends := route.Backends()
	def := store.RouteDefinition{
		Name:     route.Name(),
		Strategy: route.Strategy(),
		Backends: make([]registry.BackendSpec, 0, len(backends)),
	}
	for _, b := range backends {
		def.Backends = append(def.Backends, b.Spec())
	}

	if err := e.store.SaveRoute(ctx, def); err != nil {
		e.logger.Warn("failed to publish route to store",
			observability.String("route", routeName),
			observability.Error(err),
		)
	}
}
