// Package health implements periodic backend health probing.
//
// The monitor sweeps all registered backends on a fixed interval and
// issues an HTTP GET against each backend's health URL. Probe results
// feed the same rolling window and circuit breaker as real traffic, so
// an idle unhealthy backend still trips its breaker and an idle
// recovered backend still produces the trial that closes it.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/observability"
	"github.com/vyrodovalexey/avroute/internal/registry"
	"github.com/vyrodovalexey/avroute/internal/retry"
)

// Monitor periodically probes all backends in the registry.
type Monitor struct {
	registry *registry.Registry
	logger   observability.Logger

	interval time.Duration
	timeout  time.Duration
	retryCfg *retry.Config

	client *http.Client

	mu        sync.Mutex
	running   bool
	probing   map[string]bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	sweeps    sync.WaitGroup
}

// Option is a functional option for configuring the monitor.
type Option func(*Monitor)

// WithHTTPClient sets the HTTP client used for probes.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Monitor) {
		m.client = client
	}
}

// WithInterval overrides the probe interval.
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// New creates a monitor tuned by the routing configuration.
func New(reg *registry.Registry, cfg *config.RoutingConfig, logger observability.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = observability.NopLogger()
	}

	m := &Monitor{
		registry: reg,
		logger:   logger,
		interval: cfg.HealthCheckInterval.Duration(),
		timeout:  cfg.Timeout.Duration(),
		retryCfg: &retry.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			JitterFactor:   retry.DefaultJitterFactor,
		},
		probing:   make(map[string]bool),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		m.client = &http.Client{Timeout: m.timeout}
	}

	return m
}

// Start begins the probe loop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.logger.Info("health monitor started",
		observability.Duration("interval", m.interval),
		observability.Duration("timeout", m.timeout),
	)

	go m.run(ctx)
}

// Stop stops the probe loop and waits for in-flight probes to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	<-m.stoppedCh

	m.logger.Info("health monitor stopped")
}

// run is the main probe loop.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.stoppedCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Probe immediately on start so cold backends get data before the
	// first interval elapses.
	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.sweeps.Wait()
			return
		case <-m.stopCh:
			m.sweeps.Wait()
			return
		case <-ticker.C:
			// Sweeps run detached so one backend's long retry sequence
			// cannot delay the cadence for the others; the per-backend
			// guard keeps a still-running probe from being doubled.
			m.sweeps.Add(1)
			go func() {
				defer m.sweeps.Done()
				m.Sweep(ctx)
			}()
		}
	}
}

// Sweep probes every registered backend once, concurrently. Backends
// whose probe from a previous sweep is still in flight are skipped.
func (m *Monitor) Sweep(ctx context.Context) {
	backends := m.registry.Backends()

	var wg sync.WaitGroup
	for _, b := range backends {
		if !m.beginProbe(b.ID()) {
			continue
		}
		wg.Add(1)
		go func(b *registry.Backend) {
			defer wg.Done()
			defer m.endProbe(b.ID())
			m.probe(ctx, b)
		}(b)
	}
	wg.Wait()
}

// beginProbe marks a backend probe as in flight, refusing when one
// already is.
func (m *Monitor) beginProbe(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probing[id] {
		return false
	}
	m.probing[id] = true
	return true
}

func (m *Monitor) endProbe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.probing, id)
}

// probe checks a single backend. Transient failures are retried with
// backoff; the retried sequence collapses into a single recorded
// outcome so one flaky probe round cannot flood the window.
func (m *Monitor) probe(ctx context.Context, b *registry.Backend) {
	var lastLatency time.Duration

	err := retry.Do(ctx, m.retryCfg, func() error {
		attemptStart := time.Now()
		err := m.probeOnce(ctx, b)
		lastLatency = time.Since(attemptStart)
		return err
	}, &retry.Options{
		// 5xx answers and transient network failures are worth another
		// attempt; a definitive 4xx will not change on retry.
		ShouldRetry: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code >= http.StatusInternalServerError
			}
			return retry.IsTransient(err)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			m.logger.Debug("health probe retry",
				observability.String("backend", b.ID()),
				observability.Int("attempt", attempt),
				observability.Error(err),
			)
		},
	})

	now := time.Now()
	success := err == nil

	latency := lastLatency
	if !success && isTimeout(err) {
		// A timed-out probe counts as a full-timeout observation. Fast
		// failures keep their measured latency.
		latency = m.timeout
	}

	b.RecordOutcome(success, latency, now)
	b.RecordProbe(success, now)
	RecordProbe(b.ID(), success, lastLatency)

	if success {
		m.logger.Debug("health probe succeeded",
			observability.String("backend", b.ID()),
			observability.Duration("latency", lastLatency),
		)
	} else {
		m.logger.Warn("health probe failed",
			observability.String("backend", b.ID()),
			observability.Error(err),
		)
	}
}

// probeOnce performs a single probe attempt.
func (m *Monitor) probeOnce(ctx context.Context, b *registry.Backend) error {
	attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, b.HealthURL(), nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// statusError is a probe response outside the 2xx range.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// isTimeout reports whether a probe failed by exceeding its deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
