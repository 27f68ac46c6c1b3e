// Package handler implements the hub's HTTP surface with gin: entity
// CRUD, trust queries, discovery, federated search, health probes, and
// the middleware stack.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/resources"
)

// StatusSource yields the hub status summary attached to responses when
// the resource level is not normal. *resources.Monitor satisfies this.
type StatusSource interface {
	Summary() *resources.StatusSummary
}

// APIResponse is the uniform reply envelope.
type APIResponse struct {
	Success   bool                     `json:"success"`
	Data      any                      `json:"data,omitempty"`
	Error     string                   `json:"error,omitempty"`
	HubStatus *resources.StatusSummary `json:"hub_status,omitempty"`
}

// statusForKind maps every error kind to its one HTTP status.
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound, model.KindTrustPathNotFound:
		return http.StatusNotFound
	case model.KindAlreadyExists:
		return http.StatusConflict
	case model.KindInvalidSignature, model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindInvalidContentHash, model.KindInvalidPublicKey,
		model.KindValidation, model.KindSerialization:
		return http.StatusBadRequest
	case model.KindResourceLimitExceeded:
		return http.StatusServiceUnavailable
	case model.KindNetwork, model.KindFederation:
		return http.StatusBadGateway
	case model.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// responder attaches the hub status to every reply it writes.
type responder struct {
	status StatusSource // nil = never attach hub_status
}

func (r responder) summary() *resources.StatusSummary {
	if r.status == nil {
		return nil
	}
	return r.status.Summary()
}

// ok writes a success envelope.
func (r responder) ok(c *gin.Context, code int, data any) {
	c.JSON(code, APIResponse{Success: true, Data: data, HubStatus: r.summary()})
}

// fail maps err to its status and writes an error envelope. 5xx replies
// carry only the generic kind, not the internal detail.
func (r responder) fail(c *gin.Context, err error) {
	kind := model.KindOf(err)
	code := statusForKind(kind)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		msg = string(kind)
	}
	c.JSON(code, APIResponse{Success: false, Error: msg, HubStatus: r.summary()})
}

// failValidation writes a 400 envelope for a malformed request body.
func (r responder) failValidation(c *gin.Context, err error) {
	r.fail(c, model.Validation(err.Error()))
}
