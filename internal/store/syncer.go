package store

import (
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/avroute/internal/observability"
)

// Syncer periodically pulls route definitions from the store and
// applies them to the local registry, so engine instances converge on
// the same route set. When a reporter is attached it also publishes
// this instance's health view on each tick.
type Syncer struct {
	store    Store
	applier  Applier
	interval time.Duration
	logger   observability.Logger
	reporter Reporter
	instance string

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// SyncerOption is a functional option for configuring the syncer.
type SyncerOption func(*Syncer)

// WithReporter attaches a health reporter published under the given
// instance identifier.
func WithReporter(reporter Reporter, instance string) SyncerOption {
	return func(s *Syncer) {
		s.reporter = reporter
		s.instance = instance
	}
}

// NewSyncer creates a syncer.
func NewSyncer(store Store, applier Applier, interval time.Duration, logger observability.Logger, opts ...SyncerOption) *Syncer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Syncer{
		store:     store,
		applier:   applier,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the sync loop.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("store syncer started",
		observability.Duration("interval", s.interval),
	)

	go s.run(ctx)
}

// Stop stops the sync loop.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.stoppedCh

	s.logger.Info("store syncer stopped")
}

// run is the main sync loop.
func (s *Syncer) run(ctx context.Context) {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// Sync pulls all route definitions once and applies them.
func (s *Syncer) Sync(ctx context.Context) {
	defs, err := s.store.LoadRoutes(ctx)
	if err != nil {
		RecordSync(false)
		s.logger.Warn("route sync failed",
			observability.Error(err),
		)
		return
	}

	applied := 0
	for _, def := range defs {
		if err := s.applier.ApplyRoute(def.Name, def.Strategy, def.Backends); err != nil {
			s.logger.Warn("failed to apply synced route",
				observability.String("route", def.Name),
				observability.Error(err),
			)
			continue
		}
		applied++
	}

	RecordSync(true)
	s.logger.Debug("route sync completed",
		observability.Int("routes", applied),
	)

	s.publishHealth(ctx)
}

// publishHealth pushes this instance's health view to the store.
// Failures are logged; the next tick retries.
func (s *Syncer) publishHealth(ctx context.Context) {
	if s.reporter == nil {
		return
	}

	report := HealthReport{
		Instance:  s.instance,
		UpdatedAt: time.Now().UTC(),
		Routes:    s.reporter.RouteHealth(),
	}
	if err := s.store.SaveHealth(ctx, report); err != nil {
		s.logger.Warn("failed to publish health report",
			observability.Error(err),
		)
	}
}
