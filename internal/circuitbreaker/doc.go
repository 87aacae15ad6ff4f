// Package circuitbreaker implements the per-backend circuit breaker for
// the routing engine.
//
// A breaker trips on either of two triggers, whichever fires first: the
// rolling-window error rate exceeding a threshold once enough samples
// exist, or a run of consecutive failures. While open, the backend is
// excluded from routing until a cooldown elapses; the breaker then
// admits exactly one trial request. A successful trial closes the
// circuit, a failed trial reopens it with a doubled cooldown, capped at
// a maximum.
package circuitbreaker
