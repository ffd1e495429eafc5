package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-dashboards/pkg/cache"
	"github.com/platformbuilds/mirador-dashboards/pkg/logger"
)

const serviceName = "mirador-dashboards"

// Pinger is a dependency that can report its own health.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	cache   cache.ValkeyCluster
	deps    map[string]Pinger
	version string
	logger  logger.Logger
}

// NewHealthHandler builds the probe handler. deps are checked by /ready in
// addition to the cache; any of them may be nil.
func NewHealthHandler(c cache.ValkeyCluster, deps map[string]Pinger, version string, log logger.Logger) *HealthHandler {
	return &HealthHandler{cache: c, deps: deps, version: version, logger: log}
}

// GET /health - liveness
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /ready - readiness of the cache and the record store
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	probe := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.HealthCheck(ctx); err != nil {
			ready = false
			checks[name] = gin.H{"status": "unhealthy", "error": err.Error()}
			h.logger.Warn("Readiness check failed", "dependency", name, "error", err)
			return
		}
		checks[name] = gin.H{"status": "healthy"}
	}
	if h.cache != nil {
		probe("valkey", h.cache)
	}
	for name, p := range h.deps {
		probe(name, p)
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   h.version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
