// Package server provides the HTTP API of the routing engine: the
// decision and outcome endpoints, the admin surface for mutating routes,
// and the operational endpoints (health, readiness, metrics).
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/engine"
	"github.com/vyrodovalexey/avroute/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Server is the HTTP server for the routing engine API.
type Server struct {
	cfg        *config.Config
	engine     *engine.Engine
	logger     observability.Logger
	router     *gin.Engine
	httpServer *http.Server
	ready      atomic.Bool
}

// New creates a server and builds its routes.
func New(cfg *config.Config, eng *engine.Engine, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		if cfg.Server.Debug {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	})

	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: logger,
		router: gin.New(),
	}

	s.router.Use(
		RequestID(),
		Logging(logger),
		Recovery(logger),
		CORS(cfg.Server.CORSOrigins),
	)

	s.registerRoutes()

	return s
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// registerRoutes wires all endpoints.
func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/readyz", s.handleReadyz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	{
		v1.GET("/routes", s.handleListRoutes)
		v1.GET("/routes/:route", s.handleRouteStatus)
		v1.GET("/routes/:route/decision", s.handleDecision)
		v1.POST("/routes/:route/outcome", s.handleOutcome)
		v1.GET("/instances", s.handleListInstances)
	}

	admin := v1.Group("/admin")
	admin.Use(AdminRateLimit(
		rate.Limit(s.cfg.Server.AdminRateLimit),
		s.cfg.Server.AdminRateBurst,
	))
	{
		admin.POST("/routes/:route/backends", s.handleRegisterBackend)
		admin.DELETE("/backends/:id", s.handleDeregisterBackend)
		admin.PUT("/routes/:route/strategy", s.handleSetStrategy)
		admin.POST("/backends/:id/reset", s.handleResetBackend)
	}
}

// Start begins serving. It returns once the listener is running; serve
// errors are reported on the returned channel.
func (s *Server) Start() <-chan error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting",
			observability.String("addr", addr),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.ready.Store(true)
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// SetReady overrides the readiness flag, used during startup and tests.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}
