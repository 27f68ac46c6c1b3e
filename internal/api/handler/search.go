package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/search"
	"go.uber.org/zap"
)

// SearchHandler serves the federated search endpoint.
type SearchHandler struct {
	svc    *search.Service
	resp   responder
	logger *zap.Logger
}

// NewSearchHandler creates a SearchHandler. status may be nil.
func NewSearchHandler(svc *search.Service, status StatusSource, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, resp: responder{status: status}, logger: logger}
}

// Register mounts the search route on the given group.
func (h *SearchHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
}

// Search handles GET /search?q=&federate=&min_results=&limit=.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		h.resp.fail(c, model.Validation("query parameter q is required"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	federate := c.DefaultQuery("federate", "false") == "true"
	minResults, _ := strconv.Atoi(c.Query("min_results"))

	recordFederatedSearch()

	resp, err := h.svc.Search(c.Request.Context(), query, limit, federate, minResults)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, resp)
}
