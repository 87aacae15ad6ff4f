package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avroute/internal/circuitbreaker"
	"github.com/vyrodovalexey/avroute/internal/config"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Routing.CircuitBreakerThreshold = 3
	return New(&cfg.Routing, nil)
}

func spec(id string) BackendSpec {
	return BackendSpec{
		ID:     id,
		URL:    "http://" + id + ".internal:8080",
		Weight: 1,
	}
}

func TestRegistry_RegisterBackend(t *testing.T) {
	r := testRegistry(t)

	got, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	route, ok := r.GetRoute("payments")
	require.True(t, ok)
	assert.Equal(t, config.StrategyLatencyOptimized, route.Strategy())
	require.Len(t, route.Backends(), 1)
	assert.Equal(t, "a", route.Backends()[0].ID())
}

func TestRegistry_RegisterBackend_GeneratesID(t *testing.T) {
	r := testRegistry(t)

	got, err := r.RegisterBackend("payments", BackendSpec{URL: "http://a.internal:8080"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)

	_, ok := r.GetBackend(got.ID)
	assert.True(t, ok)
}

func TestRegistry_RegisterBackend_Invalid(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterBackend("payments", BackendSpec{URL: ""})
	require.Error(t, err)

	_, err = r.RegisterBackend("payments", BackendSpec{URL: "ftp://a.internal"})
	require.Error(t, err)

	_, err = r.RegisterBackend("payments", BackendSpec{URL: "http://a.internal", Weight: -1})
	require.Error(t, err)
}

func TestRegistry_RegisterBackend_DuplicateID(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)

	_, err = r.RegisterBackend("payments", spec("a"))
	require.ErrorIs(t, err, ErrDuplicateBackend)

	// IDs are unique across routes too.
	_, err = r.RegisterBackend("search", spec("a"))
	require.ErrorIs(t, err, ErrDuplicateBackend)
}

func TestRegistry_DeregisterBackend(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)
	_, err = r.RegisterBackend("payments", spec("b"))
	require.NoError(t, err)

	require.NoError(t, r.DeregisterBackend("a"))

	route, _ := r.GetRoute("payments")
	require.Len(t, route.Backends(), 1)
	assert.Equal(t, "b", route.Backends()[0].ID())

	_, ok := r.GetBackend("a")
	assert.False(t, ok)

	require.ErrorIs(t, r.DeregisterBackend("a"), ErrBackendNotFound)
}

func TestRegistry_SetStrategy(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)

	require.NoError(t, r.SetStrategy("payments", config.StrategyFailover))
	route, _ := r.GetRoute("payments")
	assert.Equal(t, config.StrategyFailover, route.Strategy())

	require.Error(t, r.SetStrategy("payments", "fastest"))
	require.ErrorIs(t, r.SetStrategy("missing", config.StrategyFailover), ErrRouteNotFound)
}

func TestRegistry_ApplyRoute_PreservesState(t *testing.T) {
	r := testRegistry(t)
	now := time.Now()

	_, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)

	a, _ := r.GetBackend("a")
	a.RecordOutcome(true, 20*time.Millisecond, now)
	a.RecordOutcome(true, 30*time.Millisecond, now)

	// Reapply with the same spec for a plus a new backend b.
	err = r.ApplyRoute("payments", config.StrategyCostOptimized, []BackendSpec{spec("a"), spec("b")})
	require.NoError(t, err)

	route, _ := r.GetRoute("payments")
	assert.Equal(t, config.StrategyCostOptimized, route.Strategy())
	require.Len(t, route.Backends(), 2)

	// a kept its window, b starts empty.
	kept, _ := r.GetBackend("a")
	assert.Same(t, a, kept)
	assert.Equal(t, 2, kept.Snapshot().SampleCount)
	fresh, _ := r.GetBackend("b")
	assert.False(t, fresh.Snapshot().HasData)
}

func TestRegistry_ApplyRoute_ChangedSpecResetsState(t *testing.T) {
	r := testRegistry(t)
	now := time.Now()

	_, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)
	a, _ := r.GetBackend("a")
	a.RecordOutcome(true, 20*time.Millisecond, now)

	changed := spec("a")
	changed.Cost = 9.5
	require.NoError(t, r.ApplyRoute("payments", "", []BackendSpec{changed}))

	replaced, _ := r.GetBackend("a")
	assert.NotSame(t, a, replaced)
	assert.False(t, replaced.Snapshot().HasData)
	assert.Equal(t, 9.5, replaced.Spec().Cost)
}

func TestRegistry_ApplyRoute_RemovesMissing(t *testing.T) {
	r := testRegistry(t)

	require.NoError(t, r.ApplyRoute("payments", "", []BackendSpec{spec("a"), spec("b")}))
	require.NoError(t, r.ApplyRoute("payments", "", []BackendSpec{spec("b")}))

	_, ok := r.GetBackend("a")
	assert.False(t, ok)
	_, ok = r.GetBackend("b")
	assert.True(t, ok)
}

func TestRegistry_ApplyRoute_RejectsForeignID(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterBackend("search", spec("a"))
	require.NoError(t, err)

	err = r.ApplyRoute("payments", "", []BackendSpec{spec("a")})
	require.ErrorIs(t, err, ErrDuplicateBackend)
}

func TestRegistry_ApplyRoute_RejectedApplyLeavesNoState(t *testing.T) {
	r := testRegistry(t)

	_, err := r.RegisterBackend("search", spec("a"))
	require.NoError(t, err)

	// A rejected apply must not register the new route.
	err = r.ApplyRoute("payments", config.StrategyFailover, []BackendSpec{spec("a")})
	require.ErrorIs(t, err, ErrDuplicateBackend)
	_, ok := r.GetRoute("payments")
	assert.False(t, ok)

	// A rejected apply must not change an existing route's strategy or
	// backend set.
	err = r.ApplyRoute("search", config.StrategyCostOptimized, []BackendSpec{spec("b"), spec("b")})
	require.ErrorIs(t, err, ErrDuplicateBackend)

	route, ok := r.GetRoute("search")
	require.True(t, ok)
	assert.Equal(t, config.StrategyLatencyOptimized, route.Strategy())
	require.Len(t, route.Backends(), 1)
	assert.Equal(t, "a", route.Backends()[0].ID())
}

func TestBackend_SuccessfulTrialClearsWindowFailures(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Routing.CircuitBreakerThreshold = 3
	cfg.Routing.BaseCooldown = config.Duration(time.Second)
	r := New(&cfg.Routing, nil)

	_, err := r.RegisterBackend("payments", spec("a"))
	require.NoError(t, err)
	b, ok := r.GetBackend("a")
	require.True(t, ok)

	now := time.Now()
	for i := 0; i < 3; i++ {
		b.RecordOutcome(false, time.Second, now)
	}
	require.Equal(t, circuitbreaker.StateOpen, b.BreakerState())

	// Cooldown elapses, the trial is admitted and succeeds.
	trialAt := now.Add(2 * time.Second)
	require.True(t, b.Acquire(trialAt))
	b.RecordOutcome(true, 50*time.Millisecond, trialAt)
	require.Equal(t, circuitbreaker.StateClosed, b.BreakerState())

	// Recovery starts from a clean window holding only the trial sample,
	// so one new failure cannot re-trip through the error-rate trigger.
	snap := b.Snapshot()
	assert.Equal(t, 1, snap.SampleCount)
	assert.Equal(t, 1.0, snap.SuccessRate)

	b.RecordOutcome(false, time.Second, trialAt.Add(time.Second))
	assert.Equal(t, circuitbreaker.StateClosed, b.BreakerState())
}

func TestRegistry_RemoveRoute(t *testing.T) {
	r := testRegistry(t)

	require.NoError(t, r.ApplyRoute("payments", "", []BackendSpec{spec("a")}))
	require.NoError(t, r.RemoveRoute("payments"))

	_, ok := r.GetRoute("payments")
	assert.False(t, ok)
	_, ok = r.GetBackend("a")
	assert.False(t, ok)

	require.ErrorIs(t, r.RemoveRoute("payments"), ErrRouteNotFound)
}

func TestRegistry_Seed(t *testing.T) {
	r := testRegistry(t)

	err := r.Seed([]config.Route{
		{
			Name:     "payments",
			Strategy: config.StrategyFailover,
			Backends: []config.Backend{
				{ID: "a", URL: "http://a.internal:8080", Priority: 1},
				{ID: "b", URL: "http://b.internal:8080", Priority: 2},
			},
		},
		{
			Name: "search",
			Backends: []config.Backend{
				{ID: "c", URL: "http://c.internal:8080"},
			},
		},
	})
	require.NoError(t, err)

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "payments", routes[0].Name())
	assert.Equal(t, config.StrategyFailover, routes[0].Strategy())
	assert.Equal(t, "search", routes[1].Name())
	assert.Equal(t, config.StrategyLatencyOptimized, routes[1].Strategy())
	assert.Len(t, r.Backends(), 3)
}

func TestRoute_EligibleFiltersOpenBreakers(t *testing.T) {
	r := testRegistry(t)
	now := time.Now()

	require.NoError(t, r.ApplyRoute("payments", "", []BackendSpec{spec("a"), spec("b")}))

	// Trip a's breaker with consecutive failures.
	a, _ := r.GetBackend("a")
	for i := 0; i < 3; i++ {
		a.RecordOutcome(false, time.Second, now)
	}
	require.Equal(t, circuitbreaker.StateOpen, a.BreakerState())

	route, _ := r.GetRoute("payments")
	eligible := route.Eligible(now)
	require.Len(t, eligible, 1)
	assert.Equal(t, "b", eligible[0].ID())

	// After cooldown, a becomes eligible for a trial again.
	later := now.Add(31 * time.Second)
	assert.Len(t, route.Eligible(later), 2)
}

func TestRegistry_ResetBackend(t *testing.T) {
	r := testRegistry(t)
	now := time.Now()

	require.NoError(t, r.ApplyRoute("payments", "", []BackendSpec{spec("a")}))
	a, _ := r.GetBackend("a")
	for i := 0; i < 3; i++ {
		a.RecordOutcome(false, time.Second, now)
	}
	require.Equal(t, circuitbreaker.StateOpen, a.BreakerState())

	require.NoError(t, r.ResetBackend("a", now))
	assert.Equal(t, circuitbreaker.StateClosed, a.BreakerState())
	assert.False(t, a.Snapshot().HasData)

	require.ErrorIs(t, r.ResetBackend("missing", now), ErrBackendNotFound)
}

func TestBackend_HealthURL(t *testing.T) {
	b := newBackend(BackendSpec{ID: "a", URL: "http://a.internal:8080"}, 10, nil, nil)
	assert.Equal(t, "http://a.internal:8080/health", b.HealthURL())

	b = newBackend(BackendSpec{ID: "a", URL: "http://a.internal:8080", HealthPath: "/status"}, 10, nil, nil)
	assert.Equal(t, "http://a.internal:8080/status", b.HealthURL())
}

func TestRoute_NextCursor(t *testing.T) {
	route := newRoute("payments", config.StrategyLoadBalanced)
	assert.Equal(t, uint64(0), route.NextCursor())
	assert.Equal(t, uint64(1), route.NextCursor())
	assert.Equal(t, uint64(2), route.NextCursor())
}
