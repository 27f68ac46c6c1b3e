package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sagenet/sage-hub/internal/entity"
	"github.com/sagenet/sage-hub/internal/model"
	"go.uber.org/zap"
)

// EntityHandler serves the CRUD surface for all five entity kinds.
type EntityHandler struct {
	svc    *entity.Service
	resp   responder
	logger *zap.Logger
}

// NewEntityHandler creates an EntityHandler. status may be nil.
func NewEntityHandler(svc *entity.Service, status StatusSource, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{svc: svc, resp: responder{status: status}, logger: logger}
}

// Register mounts the entity routes on the given group.
func (h *EntityHandler) Register(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.GET("", h.ListAgents)
		agents.POST("", h.CreateAgent)
		agents.GET("/:uuid", h.GetAgent)
		agents.PUT("/:uuid", h.UpdateAgent)
		agents.DELETE("/:uuid", h.DeleteAgent)
	}

	fragments := rg.Group("/fragments")
	{
		fragments.GET("", h.ListFragments)
		fragments.POST("", h.CreateFragment)
		fragments.GET("/search", h.SearchFragments)
		fragments.GET("/:uuid", h.GetFragment)
		fragments.DELETE("/:uuid", h.DeleteFragment)
	}

	relations := rg.Group("/relations")
	{
		relations.GET("", h.ListRelations)
		relations.POST("", h.CreateRelation)
		relations.GET("/:uuid", h.GetRelation)
	}

	tags := rg.Group("/tags")
	{
		tags.GET("", h.ListTags)
		tags.POST("", h.CreateTag)
		tags.GET("/:uuid", h.GetTag)
	}

	transforms := rg.Group("/transforms")
	{
		transforms.GET("", h.ListTransforms)
		transforms.POST("", h.CreateTransform)
		transforms.GET("/:uuid", h.GetTransform)
	}
}

// pagination pulls (cursor, limit) from the query string.
func pagination(c *gin.Context) (string, int) {
	cursor := c.Query("cursor")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	return cursor, limit
}

// ── Agents ──────────────────────────────────────────────────────────────

func (h *EntityHandler) CreateAgent(c *gin.Context) {
	var req model.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	agent, err := h.svc.CreateAgent(c.Request.Context(), &req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusCreated, agent)
}

func (h *EntityHandler) UpdateAgent(c *gin.Context) {
	var req model.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	req.UUID = c.Param("uuid")
	agent, err := h.svc.UpdateAgent(c.Request.Context(), &req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, agent)
}

func (h *EntityHandler) GetAgent(c *gin.Context) {
	agent, err := h.svc.GetAgent(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, agent)
}

func (h *EntityHandler) ListAgents(c *gin.Context) {
	cursor, limit := pagination(c)
	result, err := h.svc.ListAgents(c.Request.Context(), cursor, limit)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, result)
}

func (h *EntityHandler) DeleteAgent(c *gin.Context) {
	if err := h.svc.DeleteAgent(c.Request.Context(), c.Param("uuid")); err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, gin.H{"deleted": true})
}

// ── Fragments ───────────────────────────────────────────────────────────

func (h *EntityHandler) CreateFragment(c *gin.Context) {
	var req model.CreateFragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	fragment, err := h.svc.CreateFragment(c.Request.Context(), &req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusCreated, fragment)
}

func (h *EntityHandler) GetFragment(c *gin.Context) {
	fragment, err := h.svc.GetFragment(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, fragment)
}

func (h *EntityHandler) ListFragments(c *gin.Context) {
	cursor, limit := pagination(c)
	result, err := h.svc.ListFragments(c.Request.Context(), cursor, limit)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, result)
}

// SearchFragments serves the local substring search. The reply data is
// the {items} shape peers parse during federated fan-out.
func (h *EntityHandler) SearchFragments(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		h.resp.fail(c, model.Validation("query parameter q is required"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	fragments, err := h.svc.SearchFragments(c.Request.Context(), query, limit)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, gin.H{"items": fragments, "total": len(fragments)})
}

func (h *EntityHandler) DeleteFragment(c *gin.Context) {
	if err := h.svc.DeleteFragment(c.Request.Context(), c.Param("uuid")); err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, gin.H{"deleted": true})
}

// ── Relations ───────────────────────────────────────────────────────────

func (h *EntityHandler) CreateRelation(c *gin.Context) {
	var req model.CreateRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	relation, err := h.svc.CreateRelation(c.Request.Context(), &req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusCreated, relation)
}

func (h *EntityHandler) GetRelation(c *gin.Context) {
	relation, err := h.svc.GetRelation(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, relation)
}

func (h *EntityHandler) ListRelations(c *gin.Context) {
	cursor, limit := pagination(c)
	result, err := h.svc.ListRelations(c.Request.Context(), cursor, limit)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, result)
}

// ── Tags ────────────────────────────────────────────────────────────────

func (h *EntityHandler) CreateTag(c *gin.Context) {
	var req model.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	tag, err := h.svc.CreateTag(c.Request.Context(), &req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusCreated, tag)
}

func (h *EntityHandler) GetTag(c *gin.Context) {
	tag, err := h.svc.GetTag(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, tag)
}

func (h *EntityHandler) ListTags(c *gin.Context) {
	cursor, limit := pagination(c)
	result, err := h.svc.ListTags(c.Request.Context(), cursor, limit)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, result)
}

// ── Transforms ──────────────────────────────────────────────────────────

func (h *EntityHandler) CreateTransform(c *gin.Context) {
	var req model.CreateTransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.failValidation(c, err)
		return
	}
	transform, err := h.svc.CreateTransform(c.Request.Context(), &req)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusCreated, transform)
}

func (h *EntityHandler) GetTransform(c *gin.Context) {
	transform, err := h.svc.GetTransform(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, transform)
}

func (h *EntityHandler) ListTransforms(c *gin.Context) {
	cursor, limit := pagination(c)
	result, err := h.svc.ListTransforms(c.Request.Context(), cursor, limit)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.resp.ok(c, http.StatusOK, result)
}
