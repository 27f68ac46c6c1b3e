package model

import (
	"time"

	"github.com/google/uuid"
)

// Transform defines how fragment content is converted between formats,
// e.g. "text/plain" to "text/markdown". Transforms are declarations; the
// hub never executes them.
type Transform struct {
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Tags          []Address `json:"tags"`
	TransformTo   string    `json:"transform_to"`
	TransformFrom string    `json:"transform_from"`
	// AdditionalData is an opaque JSON string with extra configuration.
	AdditionalData string    `json:"additional_data"`
	Agent          Address   `json:"agent"`
	Version        uint32    `json:"version"`
	Signature      string    `json:"signature"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the transform invariants.
func (t *Transform) Validate() error {
	if t.UUID == "" {
		return Validation("uuid is required")
	}
	if t.Name == "" {
		return Validation("name is required")
	}
	if t.Agent.Entity == "" {
		return Validation("agent is required")
	}
	if t.Signature == "" {
		return Validation("signature is required")
	}
	return nil
}

// CreateTransformRequest is the signed payload for creating a transform.
type CreateTransformRequest struct {
	UUID           string    `json:"uuid"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Tags           []Address `json:"tags"`
	TransformFrom  string    `json:"transform_from"`
	TransformTo    string    `json:"transform_to"`
	AdditionalData string    `json:"additional_data"`
	Agent          Address   `json:"agent"`
	Signature      string    `json:"signature"`
}

// ToTransform materialises the transform described by the request.
func (r *CreateTransformRequest) ToTransform() *Transform {
	id := r.UUID
	if id == "" {
		id = uuid.NewString()
	}
	return &Transform{
		UUID:           id,
		Name:           r.Name,
		Description:    r.Description,
		Tags:           r.Tags,
		TransformFrom:  r.TransformFrom,
		TransformTo:    r.TransformTo,
		AdditionalData: r.AdditionalData,
		Agent:          r.Agent,
		Version:        1,
		Signature:      r.Signature,
		CreatedAt:      time.Now().UTC(),
	}
}
