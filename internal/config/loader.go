package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LoadConfig loads configuration from a file path, applies environment
// overrides, and fills defaults.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return parseConfig(data)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(data)
}

// parseConfig parses YAML data into a Config.
func parseConfig(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyEnvOverrides(&config)
	config.applyDefaults()

	return &config, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values.
func substituteEnvVars(content string) string {
	// Handle escaped dollar signs first
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// applyEnvOverrides applies well-known environment variables on top of the
// file configuration. Variable names follow the engine's original
// deployment conventions.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("API_HOST"); v != "" {
		c.Server.Host = v
	}
	if v, ok := envInt("API_PORT"); ok {
		c.Server.Port = v
	}
	if v := os.Getenv("API_DEBUG"); v != "" {
		c.Server.Debug = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DEFAULT_ROUTING_STRATEGY"); v != "" {
		c.Routing.DefaultStrategy = v
	}
	if v, ok := envSeconds("HEALTH_CHECK_INTERVAL"); ok {
		c.Routing.HealthCheckInterval = Duration(v)
	}
	if v, ok := envInt("MAX_RETRIES"); ok {
		c.Routing.MaxRetries = v
	}
	if v, ok := envSeconds("TIMEOUT_SECONDS"); ok {
		c.Routing.Timeout = Duration(v)
	}
	if v, ok := envInt("CIRCUIT_BREAKER_THRESHOLD"); ok {
		c.Routing.CircuitBreakerThreshold = v
	}
	if v, ok := envInt("LATENCY_THRESHOLD_MS"); ok {
		c.Routing.LatencyThresholdMs = v
	}
	if v, ok := envFloat("ERROR_RATE_THRESHOLD"); ok {
		c.Routing.ErrorRateThreshold = v
	}
	if v, ok := envFloat("SUCCESS_RATE_THRESHOLD"); ok {
		c.Routing.SuccessRateThreshold = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.URL = v
		c.Store.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Observability.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Observability.Logging.Format = strings.ToLower(v)
	}
}

// envInt reads an integer environment variable.
func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envFloat reads a float environment variable.
func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// envSeconds reads an integer environment variable expressed in seconds.
func envSeconds(name string) (time.Duration, bool) {
	n, ok := envInt(name)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
