package circuitbreaker

import (
	"time"

	"github.com/vyrodovalexey/avroute/internal/observability"
	"github.com/vyrodovalexey/avroute/internal/window"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and the backend is routable.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and the backend is excluded.
	StateOpen

	// StateHalfOpen indicates the breaker has admitted a trial request.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker implements the per-backend circuit breaker state machine.
//
// Breaker is not safe for concurrent use; the owning backend serializes
// access together with its rolling window so that window snapshots and
// breaker decisions stay consistent.
type Breaker struct {
	name   string
	config *Config
	logger observability.Logger

	state            State
	consecutiveFails int

	// cooldown is the current open-state duration. It doubles on each
	// failed trial and resets to the configured base when the circuit
	// closes.
	cooldown time.Duration

	// trialInFlight marks that the single half-open trial has been
	// admitted and its outcome is still pending.
	trialInFlight bool

	openedAt        time.Time
	lastStateChange time.Time
}

// New creates a circuit breaker in the closed state.
func New(name string, config *Config, logger observability.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	config.Validate()

	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Breaker{
		name:     name,
		config:   config,
		logger:   logger,
		state:    StateClosed,
		cooldown: config.Cooldown,
	}
}

// CanAttempt reports whether the backend could serve a request at the
// given time without mutating breaker state. Open circuits whose
// cooldown has elapsed report true because a trial could be admitted.
func (b *Breaker) CanAttempt(now time.Time) bool {
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return now.Sub(b.openedAt) >= b.cooldown
	case StateHalfOpen:
		return !b.trialInFlight
	default:
		return false
	}
}

// Acquire admits a request at the given time, mutating breaker state.
// For an open circuit whose cooldown has elapsed it transitions to
// half-open and admits exactly one trial; further acquisitions fail
// until the trial outcome is recorded.
func (b *Breaker) Acquire(now time.Time) bool {
	switch b.state {
	case StateClosed:
		RecordAdmission(b.name, true)
		return true

	case StateOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			RecordAdmission(b.name, false)
			return false
		}
		b.transitionTo(StateHalfOpen, now)
		b.trialInFlight = true
		RecordTrial(b.name)
		RecordAdmission(b.name, true)
		return true

	case StateHalfOpen:
		if b.trialInFlight {
			RecordAdmission(b.name, false)
			return false
		}
		b.trialInFlight = true
		RecordTrial(b.name)
		RecordAdmission(b.name, true)
		return true

	default:
		RecordAdmission(b.name, false)
		return false
	}
}

// RecordOutcome feeds a request outcome and the post-record window
// snapshot into the state machine.
func (b *Breaker) RecordOutcome(success bool, snap window.Snapshot, now time.Time) {
	RecordResult(b.name, success)

	if success {
		b.consecutiveFails = 0
	} else {
		b.consecutiveFails++
	}

	switch b.state {
	case StateClosed:
		if !success && b.shouldTrip(snap) {
			b.open(now)
		}

	case StateHalfOpen:
		b.trialInFlight = false
		if success {
			b.close(now)
		} else {
			// Failed trial: reopen with doubled cooldown.
			b.cooldown = minDuration(b.cooldown*2, b.config.MaxCooldown)
			b.open(now)
		}

	case StateOpen:
		// Outcomes reported while open (late responses, probes) adjust
		// counters but never shorten the cooldown.
	}
}

// shouldTrip determines whether a failure in the closed state should
// open the circuit.
func (b *Breaker) shouldTrip(snap window.Snapshot) bool {
	if b.consecutiveFails >= b.config.ConsecutiveFailures {
		return true
	}
	if snap.HasData && snap.SampleCount >= b.config.MinSamples &&
		snap.ErrorRate > b.config.ErrorRateThreshold {
		return true
	}
	return false
}

// open transitions to the open state and starts the cooldown clock.
func (b *Breaker) open(now time.Time) {
	b.openedAt = now
	b.trialInFlight = false
	b.transitionTo(StateOpen, now)
}

// close transitions to the closed state and resets the cooldown.
func (b *Breaker) close(now time.Time) {
	b.cooldown = b.config.Cooldown
	b.consecutiveFails = 0
	b.trialInFlight = false
	b.transitionTo(StateClosed, now)
}

// transitionTo moves the breaker to a new state.
func (b *Breaker) transitionTo(newState State, now time.Time) {
	oldState := b.state
	if oldState == newState {
		return
	}
	b.state = newState
	b.lastStateChange = now

	RecordStateChange(b.name, oldState, newState)

	b.logger.Info("circuit breaker state changed",
		observability.String("backend", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
		observability.Duration("cooldown", b.cooldown),
	)

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, oldState, newState)
	}
}

// Reset forces the breaker back to the closed state.
func (b *Breaker) Reset(now time.Time) {
	b.consecutiveFails = 0
	b.cooldown = b.config.Cooldown
	b.trialInFlight = false
	if b.state != StateClosed {
		b.transitionTo(StateClosed, now)
	}

	b.logger.Info("circuit breaker reset",
		observability.String("backend", b.name),
	)
}

// State returns the current state.
func (b *Breaker) State() State {
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Stats returns the current breaker statistics.
func (b *Breaker) Stats() Stats {
	return Stats{
		State:            b.state,
		ConsecutiveFails: b.consecutiveFails,
		Cooldown:         b.cooldown,
		TrialInFlight:    b.trialInFlight,
		OpenedAt:         b.openedAt,
		LastStateChange:  b.lastStateChange,
	}
}

// Stats holds circuit breaker statistics.
type Stats struct {
	State            State
	ConsecutiveFails int
	Cooldown         time.Duration
	TrialInFlight    bool
	OpenedAt         time.Time
	LastStateChange  time.Time
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
