package config

import "time"

// Default configuration values.
const (
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultShutdownTimeout = 30 * time.Second

	defaultAdminRateLimit = 10.0
	defaultAdminRateBurst = 20

	defaultHealthCheckInterval = 30 * time.Second
	defaultMaxRetries          = 3
	defaultProbeTimeout        = 30 * time.Second

	defaultBreakerThreshold    = 5
	defaultBreakerFailureCount = 5

	defaultErrorRateThreshold   = 0.1
	defaultSuccessRateThreshold = 0.95
	defaultLatencyThresholdMs   = 1000

	defaultWindowSize = 100

	defaultBaseCooldown = 30 * time.Second
	defaultMaxCooldown  = 5 * time.Minute

	defaultStoreRefreshInterval = 15 * time.Second
	defaultStoreWriteTimeout    = 5 * time.Second
)
