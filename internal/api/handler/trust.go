package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/trust"
	"go.uber.org/zap"
)

// TrustHandler serves trust path, score, and graph queries.
type TrustHandler struct {
	engine *trust.Engine
	resp   responder
	logger *zap.Logger
}

// NewTrustHandler creates a TrustHandler. status may be nil.
func NewTrustHandler(engine *trust.Engine, status StatusSource, logger *zap.Logger) *TrustHandler {
	return &TrustHandler{engine: engine, resp: responder{status: status}, logger: logger}
}

// Register mounts the trust routes on the given group.
func (h *TrustHandler) Register(rg *gin.RouterGroup) {
	tr := rg.Group("/trust")
	{
		tr.GET("/path", h.GetPath)
		tr.GET("/score", h.GetScore)
		tr.GET("/graph", h.GetGraph)
	}
}

// GetPath handles GET /trust/path?from=&to= — best path or 404.
func (h *TrustHandler) GetPath(c *gin.Context) {
	from, err := model.ParseAddress(c.Query("from"))
	if err != nil {
		h.resp.fail(c, model.Validation("invalid from address: "+err.Error()))
		return
	}
	to, err := model.ParseAddress(c.Query("to"))
	if err != nil {
		h.resp.fail(c, model.Validation("invalid to address: "+err.Error()))
		return
	}

	recordTrustPathQuery()

	path, err := h.engine.FindBestPath(c.Request.Context(), from, to)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	if path == nil {
		h.resp.fail(c, model.TrustPathNotFound(from.String(), to.String()))
		return
	}
	h.resp.ok(c, http.StatusOK, path)
}

// GetScore handles GET /trust/score?entity=&viewer=.
func (h *TrustHandler) GetScore(c *gin.Context) {
	entityAddr, err := model.ParseAddress(c.Query("entity"))
	if err != nil {
		h.resp.fail(c, model.Validation("invalid entity address: "+err.Error()))
		return
	}
	viewer, err := model.ParseAddress(c.Query("viewer"))
	if err != nil {
		h.resp.fail(c, model.Validation("invalid viewer address: "+err.Error()))
		return
	}

	score, err := h.engine.Score(c.Request.Context(), entityAddr, viewer)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, score)
}

// GetGraph handles GET /trust/graph?center=&depth= — the reachable
// neighborhood for visualization.
func (h *TrustHandler) GetGraph(c *gin.Context) {
	center, err := model.ParseAddress(c.Query("center"))
	if err != nil {
		h.resp.fail(c, model.Validation("invalid center address: "+err.Error()))
		return
	}
	depth, _ := strconv.Atoi(c.Query("depth"))

	graph, err := h.engine.BuildGraph(c.Request.Context(), center, depth)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, graph)
}
