package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/engine"
	"github.com/vyrodovalexey/avroute/internal/health"
	"github.com/vyrodovalexey/avroute/internal/observability"
	"github.com/vyrodovalexey/avroute/internal/registry"
	"github.com/vyrodovalexey/avroute/internal/server"
	"github.com/vyrodovalexey/avroute/internal/store"
)

// application wires the routing engine components together.
type application struct {
	cfg      *config.Config
	logger   observability.Logger
	registry *registry.Registry
	engine   *engine.Engine
	monitor  *health.Monitor
	server   *server.Server
	store    store.Store
	syncer   *store.Syncer
	tracer   *observability.Tracer
	watcher  *config.Watcher
}

// newApplication builds all components from the configuration.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	app := &application{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Observability.Tracing.Enabled {
		tracer, err := observability.NewTracer(observability.TracerConfig{
			ServiceName:  "avroute",
			OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
			SamplingRate: cfg.Observability.Tracing.SamplingRate,
			Enabled:      true,
		})
		if err != nil {
			return nil, err
		}
		app.tracer = tracer
	}

	app.registry = registry.New(&cfg.Routing, logger)
	if err := app.registry.Seed(cfg.Routes); err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{}
	if cfg.Store.Enabled {
		st, err := store.NewRedis(&cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		app.store = st
		engineOpts = append(engineOpts, engine.WithStore(st))
	}

	app.engine = engine.New(app.registry, logger, engineOpts...)

	if app.store != nil {
		app.syncer = store.NewSyncer(app.store, app.registry, cfg.Store.RefreshInterval.Duration(), logger,
			store.WithReporter(app.engine, instanceID()),
		)
	}
	app.monitor = health.New(app.registry, &cfg.Routing, logger)
	app.server = server.New(cfg, app.engine, logger)

	return app, nil
}

// instanceID identifies this engine instance in the shared store.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "router"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Start runs all components and begins watching the configuration file.
func (a *application) Start(ctx context.Context, configPath string) (<-chan error, error) {
	a.monitor.Start(ctx)
	if a.syncer != nil {
		a.syncer.Start(ctx)
	}

	watcher, err := config.NewWatcher(configPath, a.onConfigReload,
		config.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	a.watcher = watcher

	return a.server.Start(), nil
}

// onConfigReload reapplies the route set from a reloaded configuration.
// Server and store settings require a restart and are left untouched.
func (a *application) onConfigReload(cfg *config.Config) {
	a.logger.Info("applying reloaded configuration",
		observability.Int("routes", len(cfg.Routes)),
	)

	for _, route := range cfg.Routes {
		specs := make([]registry.BackendSpec, 0, len(route.Backends))
		for _, b := range route.Backends {
			specs = append(specs, registry.BackendSpec{
				ID:         b.ID,
				URL:        b.URL,
				Weight:     b.Weight,
				Cost:       b.Cost,
				Priority:   b.Priority,
				HealthPath: b.HealthPath,
			})
		}
		if err := a.engine.ApplyRoute(route.Name, route.Strategy, specs); err != nil {
			a.logger.Error("failed to apply reloaded route",
				observability.String("route", route.Name),
				observability.Error(err),
			)
		}
	}
}

// Shutdown stops all components in reverse start order.
func (a *application) Shutdown(logger observability.Logger) {
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", observability.Error(err))
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			logger.Error("config watcher stop failed", observability.Error(err))
		}
	}

	a.monitor.Stop()

	if a.syncer != nil {
		a.syncer.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("store close failed", observability.Error(err))
		}
	}

	if a.tracer != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tracerCancel()
		if err := a.tracer.Shutdown(tracerCtx); err != nil {
			logger.Error("tracer shutdown failed", observability.Error(err))
		}
	}

	logger.Info("shutdown complete")
}
