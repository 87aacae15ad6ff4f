// Package registry maintains the live set of routes and their candidate
// backends.
//
// Each backend owns a rolling outcome window and a circuit breaker,
// guarded by a single mutex so that window snapshots and breaker
// decisions stay mutually consistent. Route backend sets are
// copy-on-write: decision paths read them via an atomic pointer without
// taking the registry lock.
package registry
