package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avroute/internal/config"
	"github.com/vyrodovalexey/avroute/internal/engine"
	"github.com/vyrodovalexey/avroute/internal/registry"
)

// outcomeRequest is the body of the outcome report endpoint.
type outcomeRequest struct {
	BackendID string  `json:"backendId" binding:"required"`
	Success   bool    `json:"success"`
	LatencyMs float64 `json:"latencyMs" binding:"min=0"`
}

// strategyRequest is the body of the strategy change endpoint.
type strategyRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleListRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"routes": s.engine.Routes()})
}

func (s *Server) handleRouteStatus(c *gin.Context) {
	status, err := s.engine.RouteStatus(c.Param("route"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListInstances(c *gin.Context) {
	reports, err := s.engine.InstanceReports(c.Request.Context())
	if errors.Is(err, engine.ErrStoreDisabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": reports})
}

func (s *Server) handleDecision(c *gin.Context) {
	decision, err := s.engine.Decide(c.Request.Context(), c.Param("route"))
	switch {
	case errors.Is(err, registry.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrNoEligibleBackend):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, decision)
	}
}

func (s *Server) handleOutcome(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The backend must belong to the route in the path.
	routeName := c.Param("route")
	if owner, ok := s.engine.Registry().RouteOf(req.BackendID); !ok || owner != routeName {
		c.JSON(http.StatusNotFound, gin.H{"error": "backend not found on route " + routeName})
		return
	}

	latency := time.Duration(req.LatencyMs * float64(time.Millisecond))
	if err := s.engine.ReportOutcome(c.Request.Context(), req.BackendID, req.Success, latency); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

func (s *Server) handleRegisterBackend(c *gin.Context) {
	var spec registry.BackendSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	registered, err := s.engine.RegisterBackend(c.Request.Context(), c.Param("route"), spec)
	switch {
	case errors.Is(err, registry.ErrDuplicateBackend):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, registered)
	}
}

func (s *Server) handleDeregisterBackend(c *gin.Context) {
	err := s.engine.DeregisterBackend(c.Request.Context(), c.Param("id"))
	if errors.Is(err, registry.ErrBackendNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !config.ValidStrategy(req.Strategy) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown strategy " + req.Strategy})
		return
	}

	err := s.engine.SetStrategy(c.Request.Context(), c.Param("route"), req.Strategy)
	if errors.Is(err, registry.ErrRouteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route":    c.Param("route"),
		"strategy": req.Strategy,
	})
}

func (s *Server) handleResetBackend(c *gin.Context) {
	err := s.engine.ResetBackend(c.Param("id"))
	if errors.Is(err, registry.ErrBackendNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
