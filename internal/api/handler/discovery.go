package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sagenet/sage-hub/internal/discovery"
	"go.uber.org/zap"
)

// DiscoveryHandler serves the hub directory and peer registration and
// heartbeat endpoints.
type DiscoveryHandler struct {
	svc    *discovery.Service
	resp   responder
	logger *zap.Logger
}

// NewDiscoveryHandler creates a DiscoveryHandler. status may be nil.
func NewDiscoveryHandler(svc *discovery.Service, status StatusSource, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{svc: svc, resp: responder{status: status}, logger: logger}
}

// Register mounts the discovery routes on the given group.
func (h *DiscoveryHandler) Register(rg *gin.RouterGroup) {
	disco := rg.Group("/discovery")
	{
		disco.GET("/hubs", h.ListHubs)
		disco.POST("/register", h.RegisterHub)
		disco.POST("/heartbeat", h.Heartbeat)
	}
}

// ListHubs handles GET /discovery/hubs — the directory snapshot.
func (h *DiscoveryHandler) ListHubs(c *gin.Context) {
	list, err := h.svc.KnownHubs(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, list)
}

// RegisterHub handles POST /discovery/register on a primary hub.
func (h *DiscoveryHandler) RegisterHub(c *gin.Context) {
	var req discovery.RegisterHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	resp, err := h.svc.RegisterHub(req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, resp)
}

// Heartbeat handles POST /discovery/heartbeat on a primary hub.
func (h *DiscoveryHandler) Heartbeat(c *gin.Context) {
	var req discovery.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	resp, err := h.svc.ProcessHeartbeat(req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, resp)
}
