package endpoints

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reloved/flutter-openwrap-sdk/internal/openwrap"
)

// readinessTimeout bounds all dependency checks of one readiness probe
const readinessTimeout = 2 * time.Second

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checks    map[string]Check
	startTime time.Time
}

// NewHealthHandler creates a health handler. A nil check reports the
// dependency as disabled.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &HealthHandler{checks: checks, startTime: time.Now()}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"version":   openwrap.Version,
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]any, len(names))
	allHealthy := true
	for _, name := range names {
		check := h.checks[name]
		switch {
		case check == nil:
			checks[name] = gin.H{"status": "disabled"}
		default:
			if err := check(ctx); err != nil {
				checks[name] = gin.H{"status": "unhealthy", "error": err.Error()}
				allHealthy = false
			} else {
				checks[name] = gin.H{"status": "healthy"}
			}
		}
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":     allHealthy,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
