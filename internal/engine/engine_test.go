package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/registry"
	"github.com/vyrodovalexey/avroute/internal/store"
)

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Routing.CircuitBreakerThreshold = 3
	cfg.Routing.CircuitBreakerFailureCount = 5
	reg := registry.New(&cfg.Routing, nil)
	return New(reg, nil, opts...)
}

func mustRegister(t *testing.T, e *Engine, route string, spec registry.BackendSpec) {
	t.Helper()
	_, err := e.RegisterBackend(context.Background(), route, spec)
	require.NoError(t, err)
}

func TestDecide_RouteNotFound(t *testing.T) {
	e := testEngine(t)

	_, err := e.Decide(context.Background(), "missing")
	require.ErrorIs(t, err, registry.ErrRouteNotFound)
}

func TestDecide_NoBackends(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.ApplyRoute("empty", config.StrategyLatencyOptimized, nil))

	_, err := e.Decide(context.Background(), "empty")
	require.ErrorIs(t, err, ErrNoEligibleBackend)
}

func TestDecide_SingleBackend(t *testing.T) {
	e := testEngine(t)
	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080"})

	d, err := e.Decide(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, "payments", d.Route)
	assert.Equal(t, config.StrategyLatencyOptimized, d.Strategy)
	assert.Equal(t, "a", d.Backend.ID)
	assert.False(t, d.Trial)
	assert.False(t, d.DecidedAt.IsZero())
}

func TestDecide_FailoverPrefersPrimary(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "secondary", URL: "http://secondary.internal:8080", Priority: 2})
	mustRegister(t, e, "payments", registry.BackendSpec{ID: "primary", URL: "http://primary.internal:8080", Priority: 1})
	require.NoError(t, e.SetStrategy(ctx, "payments", config.StrategyFailover))

	for i := 0; i < 5; i++ {
		d, err := e.Decide(ctx, "payments")
		require.NoError(t, err)
		assert.Equal(t, "primary", d.Backend.ID)
	}

	// Primary trips after 3 consecutive failures; decisions fail over.
	for i := 0; i < 3; i++ {
		require.NoError(t, e.ReportOutcome(ctx, "primary", false, time.Second))
	}
	d, err := e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "secondary", d.Backend.ID)
}

func TestDecide_CostOptimizedRespectsErrorRate(t *testing.T) {
	// A cheap backend serves until its error rate trips the breaker,
	// then traffic shifts to the expensive one; after the cooldown the
	// cheap backend gets a single trial.
	e := testEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "cheap", URL: "http://cheap.internal:8080", Cost: 1})
	mustRegister(t, e, "payments", registry.BackendSpec{ID: "pricey", URL: "http://pricey.internal:8080", Cost: 10})
	require.NoError(t, e.SetStrategy(ctx, "payments", config.StrategyCostOptimized))

	d, err := e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "cheap", d.Backend.ID)

	// 2 failures among 6 samples: 33% error rate over MinSamples=5.
	for i := 0; i < 4; i++ {
		require.NoError(t, e.ReportOutcome(ctx, "cheap", true, 50*time.Millisecond))
	}
	require.NoError(t, e.ReportOutcome(ctx, "cheap", false, time.Second))
	require.NoError(t, e.ReportOutcome(ctx, "cheap", false, time.Second))

	d, err = e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "pricey", d.Backend.ID)
}

func TestDecide_TrialAfterCooldown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Routing.CircuitBreakerThreshold = 2
	cfg.Routing.BaseCooldown = config.Duration(50 * time.Millisecond)
	reg := registry.New(&cfg.Routing, nil)
	e := New(reg, nil)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080"})

	require.NoError(t, e.ReportOutcome(ctx, "a", false, time.Second))
	require.NoError(t, e.ReportOutcome(ctx, "a", false, time.Second))

	_, err := e.Decide(ctx, "payments")
	require.ErrorIs(t, err, ErrNoEligibleBackend)

	time.Sleep(60 * time.Millisecond)

	// One trial admitted, the next decision finds no backend while the
	// trial outcome is pending.
	d, err := e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Backend.ID)
	assert.True(t, d.Trial)

	_, err = e.Decide(ctx, "payments")
	require.ErrorIs(t, err, ErrNoEligibleBackend)

	// Successful trial closes the breaker and restores normal routing.
	require.NoError(t, e.ReportOutcome(ctx, "a", true, 20*time.Millisecond))
	d, err = e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.False(t, d.Trial)
}

func TestDecide_TrialFallsThroughToNextCandidate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Routing.CircuitBreakerThreshold = 2
	cfg.Routing.BaseCooldown = config.Duration(10 * time.Millisecond)
	reg := registry.New(&cfg.Routing, nil)
	e := New(reg, nil)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "cheap", URL: "http://cheap.internal:8080", Cost: 1})
	mustRegister(t, e, "payments", registry.BackendSpec{ID: "pricey", URL: "http://pricey.internal:8080", Cost: 10})
	require.NoError(t, e.SetStrategy(ctx, "payments", config.StrategyCostOptimized))

	require.NoError(t, e.ReportOutcome(ctx, "cheap", false, time.Second))
	require.NoError(t, e.ReportOutcome(ctx, "cheap", false, time.Second))

	time.Sleep(20 * time.Millisecond)

	// Cooldown elapsed: cheap ranks first again and takes the trial.
	d, err := e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "cheap", d.Backend.ID)
	assert.True(t, d.Trial)

	// Trial slot taken: the next decision falls through to pricey.
	d, err = e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "pricey", d.Backend.ID)
}

func TestReportOutcome_UnknownBackend(t *testing.T) {
	e := testEngine(t)
	err := e.ReportOutcome(context.Background(), "missing", true, time.Millisecond)
	require.ErrorIs(t, err, registry.ErrBackendNotFound)
}

func TestRegisterAndDeregisterPublishToStore(t *testing.T) {
	st := store.NewMemory()
	e := testEngine(t, WithStore(st))
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080"})

	def, err := st.LoadRoute(ctx, "payments")
	require.NoError(t, err)
	require.Len(t, def.Backends, 1)
	assert.Equal(t, "a", def.Backends[0].ID)

	require.NoError(t, e.SetStrategy(ctx, "payments", config.StrategyFailover))
	def, err = st.LoadRoute(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, config.StrategyFailover, def.Strategy)

	require.NoError(t, e.DeregisterBackend(ctx, "a"))
	def, err = st.LoadRoute(ctx, "payments")
	require.NoError(t, err)
	assert.Empty(t, def.Backends)
}

func TestDeregisterBackend_Unknown(t *testing.T) {
	e := testEngine(t)
	err := e.DeregisterBackend(context.Background(), "missing")
	require.ErrorIs(t, err, registry.ErrBackendNotFound)
}

func TestRoutes_Status(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080"})
	mustRegister(t, e, "search", registry.BackendSpec{ID: "b", URL: "http://b.internal:8080"})

	require.NoError(t, e.ReportOutcome(ctx, "a", true, 10*time.Millisecond))

	statuses := e.Routes()
	require.Len(t, statuses, 2)
	assert.Equal(t, "payments", statuses[0].Name)
	require.Len(t, statuses[0].Backends, 1)
	assert.Equal(t, "closed", statuses[0].Backends[0].BreakerState)
	assert.Equal(t, 1, statuses[0].Backends[0].Window.SampleCount)

	status, err := e.RouteStatus("search")
	require.NoError(t, err)
	assert.Equal(t, "search", status.Name)

	_, err = e.RouteStatus("missing")
	require.ErrorIs(t, err, registry.ErrRouteNotFound)
}

func TestResetBackend(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080"})
	for i := 0; i < 3; i++ {
		require.NoError(t, e.ReportOutcome(ctx, "a", false, time.Second))
	}
	_, err := e.Decide(ctx, "payments")
	require.ErrorIs(t, err, ErrNoEligibleBackend)

	require.NoError(t, e.ResetBackend("a"))
	d, err := e.Decide(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Backend.ID)

	require.ErrorIs(t, e.ResetBackend("missing"), registry.ErrBackendNotFound)
}

func TestDecide_LoadBalancedSpread(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080", Weight: 1})
	mustRegister(t, e, "payments", registry.BackendSpec{ID: "b", URL: "http://b.internal:8080", Weight: 1})
	require.NoError(t, e.SetStrategy(ctx, "payments", config.StrategyLoadBalanced))

	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		d, err := e.Decide(ctx, "payments")
		require.NoError(t, err)
		counts[d.Backend.ID]++
	}
	assert.Equal(t, 5, counts["a"])
	assert.Equal(t, 5, counts["b"])
}

func TestRouteHealth(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "payments", registry.BackendSpec{ID: "a", URL: "http://a.internal:8080"})
	require.NoError(t, e.ReportOutcome(ctx, "a", true, 100*time.Millisecond))
	require.NoError(t, e.ReportOutcome(ctx, "a", false, 200*time.Millisecond))

	health := e.RouteHealth()
	require.Len(t, health, 1)
	assert.Equal(t, "payments", health[0].Route)
	require.Len(t, health[0].Backends, 1)

	bh := health[0].Backends[0]
	assert.Equal(t, "a", bh.ID)
	assert.Equal(t, "closed", bh.BreakerState)
	assert.Equal(t, 0.5, bh.SuccessRate)
	assert.Equal(t, 2, bh.SampleCount)
	assert.Equal(t, float64(200), bh.P95Ms)
}

func TestInstanceReports(t *testing.T) {
	e := testEngine(t)
	_, err := e.InstanceReports(context.Background())
	require.ErrorIs(t, err, ErrStoreDisabled)

	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.SaveHealth(ctx, store.HealthReport{Instance: "node-1"}))

	e = testEngine(t, WithStore(st))
	reports, err := e.InstanceReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "node-1", reports[0].Instance)
}
