package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StrategyLatencyOptimized, cfg.Routing.DefaultStrategy)
	assert.Equal(t, 30*time.Second, cfg.Routing.HealthCheckInterval.Duration())
	assert.Equal(t, 3, cfg.Routing.MaxRetries)
	assert.Equal(t, 5, cfg.Routing.CircuitBreakerThreshold)
	assert.Equal(t, 0.1, cfg.Routing.ErrorRateThreshold)
	assert.Equal(t, 0.95, cfg.Routing.SuccessRateThreshold)
	assert.Equal(t, 100, cfg.Routing.WindowSize)
	assert.Equal(t, 30*time.Second, cfg.Routing.BaseCooldown.Duration())
	assert.Equal(t, 5*time.Minute, cfg.Routing.MaxCooldown.Duration())
	assert.Equal(t, "avroute:", cfg.Store.KeyPrefix)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)

	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigFromReader(t *testing.T) {
	yaml := `
environment: staging
server:
  port: 9090
routing:
  defaultStrategy: cost_optimized
  healthCheckInterval: 10s
  errorRateThreshold: 0.2
  windowSize: 50
routes:
  - name: payments
    strategy: failover
    backends:
      - id: payments-eu-1
        url: http://payments-eu-1.internal:8080
        weight: 2
        cost: 10
      - id: payments-us-1
        url: http://payments-us-1.internal:8080
        weight: 1
        cost: 5
        priority: 1
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, StrategyCostOptimized, cfg.Routing.DefaultStrategy)
	assert.Equal(t, 10*time.Second, cfg.Routing.HealthCheckInterval.Duration())
	assert.Equal(t, 0.2, cfg.Routing.ErrorRateThreshold)
	assert.Equal(t, 50, cfg.Routing.WindowSize)

	require.Len(t, cfg.Routes, 1)
	route := cfg.Routes[0]
	assert.Equal(t, "payments", route.Name)
	assert.Equal(t, StrategyFailover, route.Strategy)
	require.Len(t, route.Backends, 2)
	assert.Equal(t, "payments-eu-1", route.Backends[0].ID)
	assert.Equal(t, float64(10), route.Backends[0].Cost)
	assert.Equal(t, 1, route.Backends[1].Priority)

	// Defaults still fill untouched fields
	assert.Equal(t, 3, cfg.Routing.MaxRetries)

	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigFromReader_InvalidYAML(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("routing: ["))
	require.Error(t, err)
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_ROUTE_NAME", "search")

	yaml := `
routes:
  - name: ${TEST_ROUTE_NAME}
    backends:
      - url: http://search-1.internal:8080
  - name: ${TEST_MISSING_ROUTE:-fallback}
    backends:
      - url: http://fallback-1.internal:8080
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	require.Len(t, cfg.Routes, 2)
	assert.Equal(t, "search", cfg.Routes[0].Name)
	assert.Equal(t, "fallback", cfg.Routes[1].Name)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("API_PORT", "7070")
	t.Setenv("DEFAULT_ROUTING_STRATEGY", "load_balanced")
	t.Setenv("HEALTH_CHECK_INTERVAL", "12")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("TIMEOUT_SECONDS", "8")
	t.Setenv("CIRCUIT_BREAKER_THRESHOLD", "7")
	t.Setenv("ERROR_RATE_THRESHOLD", "0.25")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := LoadConfigFromReader(strings.NewReader("environment: development\n"))
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, StrategyLoadBalanced, cfg.Routing.DefaultStrategy)
	assert.Equal(t, 12*time.Second, cfg.Routing.HealthCheckInterval.Duration())
	assert.Equal(t, 5, cfg.Routing.MaxRetries)
	assert.Equal(t, 8*time.Second, cfg.Routing.Timeout.Duration())
	assert.Equal(t, 7, cfg.Routing.CircuitBreakerThreshold)
	assert.Equal(t, 0.25, cfg.Routing.ErrorRateThreshold)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Store.URL)
}

func TestDuration_YAML(t *testing.T) {
	var d Duration
	err := d.UnmarshalYAML(func(v interface{}) error {
		*(v.(*string)) = "1h30m"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d.Duration())

	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1h30m0s", out)
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"45s"`)))
	assert.Equal(t, 45*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, time.Duration(0), d.Duration())

	d = Duration(2 * time.Second)
	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
