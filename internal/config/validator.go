package config

import (
	"fmt"
	"net/url"
)

// validEnvironments is the set of accepted environment names.
var validEnvironments = map[string]bool{
	EnvDevelopment: true,
	EnvStaging:     true,
	EnvProduction:  true,
}

// validStrategies is the set of accepted routing strategy names.
var validStrategies = map[string]bool{
	StrategyLatencyOptimized: true,
	StrategyCostOptimized:    true,
	StrategyLoadBalanced:     true,
	StrategyFailover:         true,
}

// ValidStrategy reports whether name is a known routing strategy.
func ValidStrategy(name string) bool {
	return validStrategies[name]
}

// ValidateConfig validates the configuration.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("configuration is nil")
	}

	if !validEnvironments[c.Environment] {
		return fmt.Errorf("invalid environment %q", c.Environment)
	}

	if err := validateServer(&c.Server, c.IsProduction()); err != nil {
		return err
	}

	if err := validateRouting(&c.Routing); err != nil {
		return err
	}

	if c.Store.Enabled && c.Store.URL == "" {
		return fmt.Errorf("store is enabled but no URL is configured")
	}

	seen := make(map[string]bool, len(c.Routes))
	for i := range c.Routes {
		route := &c.Routes[i]
		if route.Name == "" {
			return fmt.Errorf("route %d: name is required", i)
		}
		if seen[route.Name] {
			return fmt.Errorf("duplicate route name %q", route.Name)
		}
		seen[route.Name] = true

		if route.Strategy != "" && !ValidStrategy(route.Strategy) {
			return fmt.Errorf("route %s: unknown strategy %q", route.Name, route.Strategy)
		}

		ids := make(map[string]bool, len(route.Backends))
		for j := range route.Backends {
			b := &route.Backends[j]
			if err := ValidateBackend(b); err != nil {
				return fmt.Errorf("route %s: backend %d: %w", route.Name, j, err)
			}
			if b.ID != "" {
				if ids[b.ID] {
					return fmt.Errorf("route %s: duplicate backend id %q", route.Name, b.ID)
				}
				ids[b.ID] = true
			}
		}
	}

	return nil
}

// ValidateBackend validates a single backend definition.
func ValidateBackend(b *Backend) error {
	if b.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", b.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q: scheme must be http or https", b.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q: host is required", b.URL)
	}
	if b.Weight < 0 {
		return fmt.Errorf("weight must be non-negative, got %d", b.Weight)
	}
	if b.Cost < 0 {
		return fmt.Errorf("cost must be non-negative, got %v", b.Cost)
	}
	if b.Priority < 0 {
		return fmt.Errorf("priority must be non-negative, got %d", b.Priority)
	}
	return nil
}

// validateServer validates server settings, enforcing production guards.
func validateServer(s *ServerConfig, production bool) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server port %d out of range", s.Port)
	}
	if s.AdminRateLimit < 0 {
		return fmt.Errorf("admin rate limit must be non-negative")
	}

	if production {
		if s.Debug {
			return fmt.Errorf("debug mode cannot be enabled in production")
		}
		for _, origin := range s.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origins not allowed in production")
			}
		}
	}

	return nil
}

// validateRouting validates decision-core thresholds.
func validateRouting(r *RoutingConfig) error {
	if !ValidStrategy(r.DefaultStrategy) {
		return fmt.Errorf("unknown default strategy %q", r.DefaultStrategy)
	}
	if r.HealthCheckInterval.Duration() <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}
	if r.Timeout.Duration() <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if r.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("circuit breaker threshold must be at least 1")
	}
	if r.CircuitBreakerFailureCount < 1 {
		return fmt.Errorf("circuit breaker failure count must be at least 1")
	}
	if r.ErrorRateThreshold <= 0 || r.ErrorRateThreshold > 1 {
		return fmt.Errorf("error rate threshold must be in (0, 1], got %v", r.ErrorRateThreshold)
	}
	if r.SuccessRateThreshold <= 0 || r.SuccessRateThreshold > 1 {
		return fmt.Errorf("success rate threshold must be in (0, 1], got %v", r.SuccessRateThreshold)
	}
	if r.WindowSize < 1 {
		return fmt.Errorf("window size must be at least 1")
	}
	if r.BaseCooldown.Duration() <= 0 {
		return fmt.Errorf("base cooldown must be positive")
	}
	if r.MaxCooldown.Duration() < r.BaseCooldown.Duration() {
		return fmt.Errorf("max cooldown must be at least base cooldown")
	}
	return nil
}
