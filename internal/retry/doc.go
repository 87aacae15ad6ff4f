// Package retry provides exponential backoff retry functionality for
// the routing engine.
//
// Health probes and coordination-store calls go through this package so
// that transient failures do not immediately count against a backend or
// abort a store write.
//
// # Usage
//
// Execute an operation with retry:
//
//	cfg := retry.DefaultConfig()
//	err := retry.Do(ctx, cfg, func() error {
//	    return probeBackend(ctx)
//	}, nil)
package retry
