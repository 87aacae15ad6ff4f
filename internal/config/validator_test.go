package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Routes = []Route{
		{
			Name:     "payments",
			Strategy: StrategyLatencyOptimized,
			Backends: []Backend{
				{ID: "a", URL: "http://a.internal:8080", Weight: 1},
				{ID: "b", URL: "http://b.internal:8080", Weight: 1},
			},
		},
	}
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	assert.NoError(t, ValidateConfig(validTestConfig()))
}

func TestValidateConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "nil handled separately",
			mutate:  nil,
			wantMsg: "nil",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "qa" },
			wantMsg: "invalid environment",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantMsg: "out of range",
		},
		{
			name:    "unknown default strategy",
			mutate:  func(c *Config) { c.Routing.DefaultStrategy = "fastest" },
			wantMsg: "unknown default strategy",
		},
		{
			name:    "error rate above one",
			mutate:  func(c *Config) { c.Routing.ErrorRateThreshold = 1.5 },
			wantMsg: "error rate threshold",
		},
		{
			name:    "max cooldown below base",
			mutate:  func(c *Config) { c.Routing.MaxCooldown = c.Routing.BaseCooldown / 2 },
			wantMsg: "max cooldown",
		},
		{
			name:    "store enabled without URL",
			mutate:  func(c *Config) { c.Store.Enabled = true },
			wantMsg: "store is enabled",
		},
		{
			name: "duplicate route",
			mutate: func(c *Config) {
				c.Routes = append(c.Routes, Route{Name: "payments"})
			},
			wantMsg: "duplicate route",
		},
		{
			name: "unknown route strategy",
			mutate: func(c *Config) {
				c.Routes[0].Strategy = "cheapest"
			},
			wantMsg: "unknown strategy",
		},
		{
			name: "backend without url",
			mutate: func(c *Config) {
				c.Routes[0].Backends[0].URL = ""
			},
			wantMsg: "url is required",
		},
		{
			name: "backend bad scheme",
			mutate: func(c *Config) {
				c.Routes[0].Backends[0].URL = "ftp://a.internal"
			},
			wantMsg: "scheme",
		},
		{
			name: "backend negative weight",
			mutate: func(c *Config) {
				c.Routes[0].Backends[0].Weight = -1
			},
			wantMsg: "weight",
		},
		{
			name: "duplicate backend id",
			mutate: func(c *Config) {
				c.Routes[0].Backends[1].ID = "a"
			},
			wantMsg: "duplicate backend id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate == nil {
				err := ValidateConfig(nil)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateConfig_ProductionGuards(t *testing.T) {
	t.Run("debug rejected", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigins = []string{"https://app.example.com"}
		cfg.Server.Debug = true
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "debug mode")
	})

	t.Run("wildcard CORS rejected", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Environment = EnvProduction
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wildcard CORS")
	})

	t.Run("valid production config", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigins = []string{"https://app.example.com"}
		assert.NoError(t, ValidateConfig(cfg))
	})
}

func TestValidStrategy(t *testing.T) {
	assert.True(t, ValidStrategy(StrategyLatencyOptimized))
	assert.True(t, ValidStrategy(StrategyCostOptimized))
	assert.True(t, ValidStrategy(StrategyLoadBalanced))
	assert.True(t, ValidStrategy(StrategyFailover))
	assert.False(t, ValidStrategy("round_robin"))
	assert.False(t, ValidStrategy(""))
}
