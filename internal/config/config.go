package config

// Environment names.
const (
	// EnvDevelopment is the development environment.
	EnvDevelopment = "development"
	// EnvStaging is the staging environment.
	EnvStaging = "staging"
	// EnvProduction is the production environment.
	EnvProduction = "production"
)

// Routing strategy names.
const (
	// StrategyLatencyOptimized ranks backends by observed p95 latency.
	StrategyLatencyOptimized = "latency_optimized"
	// StrategyCostOptimized ranks backends by configured cost.
	StrategyCostOptimized = "cost_optimized"
	// StrategyLoadBalanced spreads traffic by weighted round-robin.
	StrategyLoadBalanced = "load_balanced"
	// StrategyFailover uses strict configured priority order.
	StrategyFailover = "failover"
)

// Config is the root configuration for the routing engine.
type Config struct {
	Environment   string              `yaml:"environment" json:"environment"`
	Server        ServerConfig        `yaml:"server" json:"server"`
	Routing       RoutingConfig       `yaml:"routing" json:"routing"`
	Store         StoreConfig         `yaml:"store" json:"store"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Routes        []Route             `yaml:"routes" json:"routes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `yaml:"host" json:"host"`
	Port            int      `yaml:"port" json:"port"`
	Debug           bool     `yaml:"debug" json:"debug"`
	CORSOrigins     []string `yaml:"corsOrigins" json:"corsOrigins"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`

	// AdminRateLimit is the sustained request rate allowed on /v1/admin
	// endpoints, in requests per second. AdminRateBurst is the burst size.
	AdminRateLimit float64 `yaml:"adminRateLimit" json:"adminRateLimit"`
	AdminRateBurst int     `yaml:"adminRateBurst" json:"adminRateBurst"`
}

// RoutingConfig holds the decision-core tuning knobs.
type RoutingConfig struct {
	DefaultStrategy     string   `yaml:"defaultStrategy" json:"defaultStrategy"`
	HealthCheckInterval Duration `yaml:"healthCheckInterval" json:"healthCheckInterval"`
	MaxRetries          int      `yaml:"maxRetries" json:"maxRetries"`
	Timeout             Duration `yaml:"timeout" json:"timeout"`

	// CircuitBreakerThreshold is the consecutive-failure trip count.
	CircuitBreakerThreshold int `yaml:"circuitBreakerThreshold" json:"circuitBreakerThreshold"`

	// CircuitBreakerFailureCount is the minimum number of window samples
	// required before the error-rate trigger is evaluated.
	CircuitBreakerFailureCount int `yaml:"circuitBreakerFailureCount" json:"circuitBreakerFailureCount"`

	ErrorRateThreshold   float64 `yaml:"errorRateThreshold" json:"errorRateThreshold"`
	SuccessRateThreshold float64 `yaml:"successRateThreshold" json:"successRateThreshold"`
	LatencyThresholdMs   int     `yaml:"latencyThresholdMs" json:"latencyThresholdMs"`

	// WindowSize is the per-backend rolling window capacity in samples.
	WindowSize int `yaml:"windowSize" json:"windowSize"`

	BaseCooldown Duration `yaml:"baseCooldown" json:"baseCooldown"`
	MaxCooldown  Duration `yaml:"maxCooldown" json:"maxCooldown"`
}

// StoreConfig holds coordination-store (Redis) settings.
type StoreConfig struct {
	Enabled         bool     `yaml:"enabled" json:"enabled"`
	URL             string   `yaml:"url" json:"url"`
	KeyPrefix       string   `yaml:"keyPrefix" json:"keyPrefix"`
	RefreshInterval Duration `yaml:"refreshInterval" json:"refreshInterval"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout"`
	PoolSize        int      `yaml:"poolSize" json:"poolSize"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// Route defines a logical route and its candidate backends.
type Route struct {
	Name     string    `yaml:"name" json:"name"`
	Strategy string    `yaml:"strategy" json:"strategy"`
	Backends []Backend `yaml:"backends" json:"backends"`
}

// Backend defines a single candidate backend for a route.
type Backend struct {
	ID         string  `yaml:"id" json:"id"`
	URL        string  `yaml:"url" json:"url"`
	Weight     int     `yaml:"weight" json:"weight"`
	Cost       float64 `yaml:"cost" json:"cost"`
	Priority   int     `yaml:"priority" json:"priority"`
	HealthPath string  `yaml:"healthPath" json:"healthPath"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(defaultShutdownTimeout)
	}
	if c.Server.AdminRateLimit == 0 {
		c.Server.AdminRateLimit = defaultAdminRateLimit
	}
	if c.Server.AdminRateBurst == 0 {
		c.Server.AdminRateBurst = defaultAdminRateBurst
	}

	if c.Routing.DefaultStrategy == "" {
		c.Routing.DefaultStrategy = StrategyLatencyOptimized
	}
	if c.Routing.HealthCheckInterval == 0 {
		c.Routing.HealthCheckInterval = Duration(defaultHealthCheckInterval)
	}
	if c.Routing.MaxRetries == 0 {
		c.Routing.MaxRetries = defaultMaxRetries
	}
	if c.Routing.Timeout == 0 {
		c.Routing.Timeout = Duration(defaultProbeTimeout)
	}
	if c.Routing.CircuitBreakerThreshold == 0 {
		c.Routing.CircuitBreakerThreshold = defaultBreakerThreshold
	}
	if c.Routing.CircuitBreakerFailureCount == 0 {
		c.Routing.CircuitBreakerFailureCount = defaultBreakerFailureCount
	}
	if c.Routing.ErrorRateThreshold == 0 {
		c.Routing.ErrorRateThreshold = defaultErrorRateThreshold
	}
	if c.Routing.SuccessRateThreshold == 0 {
		c.Routing.SuccessRateThreshold = defaultSuccessRateThreshold
	}
	if c.Routing.LatencyThresholdMs == 0 {
		c.Routing.LatencyThresholdMs = defaultLatencyThresholdMs
	}
	if c.Routing.WindowSize == 0 {
		c.Routing.WindowSize = defaultWindowSize
	}
	if c.Routing.BaseCooldown == 0 {
		c.Routing.BaseCooldown = Duration(defaultBaseCooldown)
	}
	if c.Routing.MaxCooldown == 0 {
		c.Routing.MaxCooldown = Duration(defaultMaxCooldown)
	}

	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "avroute:"
	}
	if c.Store.RefreshInterval == 0 {
		c.Store.RefreshInterval = Duration(defaultStoreRefreshInterval)
	}
	if c.Store.WriteTimeout == 0 {
		c.Store.WriteTimeout = Duration(defaultStoreWriteTimeout)
	}

	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = 1.0
	}
}

// IsProduction reports whether the configuration targets production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
