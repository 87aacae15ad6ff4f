// Package store provides the coordination store that shares route
// definitions between routing engine instances.
//
// The Redis implementation keeps all route definitions in a single
// hash. Store calls are retried with backoff and guarded by a circuit
// breaker so a store outage degrades to local-only operation instead of
// blocking the decision path.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/avroute/internal/registry"
)

// Store errors.
var (
	// ErrNotFound is returned when a route definition does not exist.
	ErrNotFound = errors.New("route definition not found")

	// ErrUnavailable is returned when the store breaker is open.
	ErrUnavailable = errors.New("store unavailable")
)

// RouteDefinition is the shared representation of a route.
type RouteDefinition struct {
	Name      string                 `json:"name"`
	Strategy  string                 `json:"strategy"`
	Backends  []registry.BackendSpec `json:"backends"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// BackendHealth summarizes one backend as seen by one engine instance.
type BackendHealth struct {
	ID           string  `json:"id"`
	BreakerState string  `json:"breakerState"`
	SuccessRate  float64 `json:"successRate"`
	P95Ms        float64 `json:"p95Ms"`
	SampleCount  int     `json:"sampleCount"`
}

// RouteHealth groups backend health by route.
type RouteHealth struct {
	Route    string          `json:"route"`
	Backends []BackendHealth `json:"backends"`
}

// HealthReport is one engine instance's view of backend health,
// published so operators can compare what different instances observe.
type HealthReport struct {
	Instance  string        `json:"instance"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Routes    []RouteHealth `json:"routes"`
}

// Store persists route definitions and instance health reports.
type Store interface {
	// SaveRoute stores a route definition.
	SaveRoute(ctx context.Context, def RouteDefinition) error

	// LoadRoute returns a single route definition.
	LoadRoute(ctx context.Context, name string) (RouteDefinition, error)

	// LoadRoutes returns all route definitions.
	LoadRoutes(ctx context.Context) ([]RouteDefinition, error)

	// DeleteRoute removes a route definition.
	DeleteRoute(ctx context.Context, name string) error

	// SaveHealth publishes an instance health report.
	SaveHealth(ctx context.Context, report HealthReport) error

	// LoadHealth returns the health reports of all instances.
	LoadHealth(ctx context.Context) ([]HealthReport, error)

	// Close releases store resources.
	Close() error
}

// Applier applies a route definition to the local registry. It is
// implemented by *registry.Registry.
type Applier interface {
	ApplyRoute(routeName, strategy string, specs []registry.BackendSpec) error
}

// Reporter provides the local health view published by the syncer. It
// is implemented by *engine.Engine.
type Reporter interface {
	RouteHealth() []RouteHealth
}
