package circuitbreaker

import "time"

// Default configuration values.
const (
	// DefaultErrorRateThreshold is the window error rate that trips the
	// breaker once MinSamples have been observed.
	DefaultErrorRateThreshold = 0.1

	// DefaultMinSamples is the minimum number of window samples required
	// before the error-rate trigger is evaluated.
	DefaultMinSamples = 5

	// DefaultConsecutiveFailures is the consecutive-failure trip count.
	DefaultConsecutiveFailures = 5

	// DefaultCooldown is the initial open-state cooldown.
	DefaultCooldown = 30 * time.Second

	// DefaultMaxCooldown caps the doubling cooldown.
	DefaultMaxCooldown = 5 * time.Minute
)

// Config contains circuit breaker configuration parameters.
type Config struct {
	// ErrorRateThreshold trips the breaker when the rolling-window error
	// rate exceeds it. Only evaluated once the window holds at least
	// MinSamples outcomes.
	ErrorRateThreshold float64

	// MinSamples is the minimum window sample count before the
	// error-rate trigger is considered.
	MinSamples int

	// ConsecutiveFailures trips the breaker after this many failures in
	// a row, regardless of window contents.
	ConsecutiveFailures int

	// Cooldown is the initial open-state duration before a trial
	// request is admitted.
	Cooldown time.Duration

	// MaxCooldown caps the cooldown as it doubles on failed trials.
	MaxCooldown time.Duration

	// OnStateChange is called after each state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the default circuit breaker configuration.
func DefaultConfig() *Config {
	return &Config{
		ErrorRateThreshold:  DefaultErrorRateThreshold,
		MinSamples:          DefaultMinSamples,
		ConsecutiveFailures: DefaultConsecutiveFailures,
		Cooldown:            DefaultCooldown,
		MaxCooldown:         DefaultMaxCooldown,
	}
}

// Validate fills invalid fields with defaults.
func (c *Config) Validate() {
	if c.ErrorRateThreshold <= 0 || c.ErrorRateThreshold > 1 {
		c.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if c.MinSamples < 1 {
		c.MinSamples = DefaultMinSamples
	}
	if c.ConsecutiveFailures < 1 {
		c.ConsecutiveFailures = DefaultConsecutiveFailures
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = DefaultMaxCooldown
	}
	if c.MaxCooldown < c.Cooldown {
		c.MaxCooldown = c.Cooldown
	}
}
