package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency checked by the readiness endpoint.
type Pinger func(ctx context.Context) error

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks map[string]Pinger
	stats  func() any
}

// NewHealthHandler checks every named dependency on /health/ready.
// stats, when set, is reported by /health/info.
func NewHealthHandler(checks map[string]Pinger, stats func() any) *HealthHandler {
	return &HealthHandler{checks: checks, stats: stats}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(c.Request.Context()); err != nil {
			results[name] = "unhealthy: " + err.Error()
			status, code = "error", http.StatusServiceUnavailable
			continue
		}
		results[name] = "healthy"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}

// Info handles GET /health/info.
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{"app": "dentallab"}
	if h.stats != nil {
		body["database"] = h.stats()
	}
	c.JSON(http.StatusOK, body)
}
