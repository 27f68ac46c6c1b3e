package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	hubID     string
	version   string
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(hubID, version string) *HealthHandler {
	return &HealthHandler{hubID: hubID, version: version, startedAt: time.Now().UTC()}
}

// Register mounts the probes at the router root.
func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/live", h.Live)
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"hub_id":         h.hubID,
		"version":        h.version,
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
	})
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"hub_id":  h.hubID,
		"version": h.version,
	})
}

// Live handles GET /live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
