package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"constraint-engine/internal/engine"
	"constraint-engine/internal/store"
	"constraint-engine/internal/supervisor"
)

// HealthHandler exposes liveness and readiness endpoints.
type HealthHandler struct {
	engine     *engine.Engine
	store      *store.ConstraintStore
	supervisor *supervisor.Supervisor
	logger     *zap.Logger
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(eng *engine.Engine, st *store.ConstraintStore, sv *supervisor.Supervisor, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		engine:     eng,
		store:      st,
		supervisor: sv,
		logger:     logger,
	}
}

// Health returns basic service health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "constraint-engine",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC(),
	})
}

// Ready checks that the engine's backing files are accessible and
// reports rule-set readiness. A missing file is fine; it is created on
// first write.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := make(map[string]interface{})
	allReady := true

	check, ok := fileCheck(h.store.Path())
	checks["rules_file"] = check
	allReady = allReady && ok

	check, ok = fileCheck(h.supervisor.Path())
	checks["analytics_file"] = check
	allReady = allReady && ok

	stats := h.engine.Stats()
	checks["rule_set"] = gin.H{
		"status":              "healthy",
		"total_constraints":   stats.TotalConstraints,
		"enabled_constraints": stats.EnabledConstraints,
	}

	status := http.StatusOK
	overall := "ready"
	if !allReady {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
		h.logger.Warn("Readiness check failed", zap.Any("checks", checks))
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// Live returns liveness for orchestrator probes.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

func fileCheck(path string) (gin.H, bool) {
	start := time.Now()
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return gin.H{
			"status":     "healthy",
			"size_bytes": info.Size(),
			"duration":   time.Since(start).String(),
		}, true
	case os.IsNotExist(err):
		return gin.H{
			"status":   "healthy",
			"exists":   false,
			"duration": time.Since(start).String(),
		}, true
	default:
		return gin.H{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": time.Since(start).String(),
		}, false
	}
}
