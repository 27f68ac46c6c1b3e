package entity

import (
	"time"

	"github.com/sagenet/sage-hub/internal/model"
)

// Signable payload builders. Each create request signs a fixed field set;
// canonical JSON of the returned map is the exact byte surface the
// Ed25519 signature covers. Clients must build the identical map.

// whenMillis renders a timestamp as ISO-8601 with millisecond precision,
// or the empty string when absent.
func whenMillis(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// AgentSignablePayload returns the signed field set of an agent create
// request. Trust is always the empty object at create time; edges are
// published by replacement.
func AgentSignablePayload(req *model.CreateAgentRequest) map[string]any {
	return map[string]any{
		"description": req.Description,
		"primary_hub": req.PrimaryHub,
		"public_key":  req.PublicKey,
		"trust":       map[string]any{},
		"uuid":        req.UUID,
	}
}

// FragmentSignablePayload returns the signed field set of a fragment
// create request.
func FragmentSignablePayload(req *model.CreateFragmentRequest) map[string]any {
	confidence := float32(0.5)
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	evidenceType := req.EvidenceType
	if evidenceType == "" {
		evidenceType = string(model.EvidenceUnknown)
	}
	tags := make([]any, 0, len(req.Tags))
	for _, t := range req.Tags {
		tags = append(tags, t)
	}
	var transform any
	if req.Transform != nil {
		transform = *req.Transform
	}
	return map[string]any{
		"confidence":    confidence,
		"content":       req.Content,
		"creator":       req.Creator,
		"evidence_type": evidenceType,
		"tags":          tags,
		"transform":     transform,
		"uuid":          req.UUID,
		"when":          whenMillis(req.When),
	}
}

// RelationSignablePayload returns the signed field set of a relation
// create request.
func RelationSignablePayload(req *model.CreateRelationRequest) map[string]any {
	return map[string]any{
		"by":      req.By,
		"content": req.Content,
		"creator": req.Creator,
		"from":    req.From,
		"to":      req.To,
		"type":    req.RelationTypeString(),
		"uuid":    req.UUID,
		"when":    whenMillis(req.When),
	}
}

// TagSignablePayload returns the signed field set of a tag create request.
// The category is normalised to its canonical upper-case form.
func TagSignablePayload(req *model.CreateTagRequest) map[string]any {
	category := req.Category
	if parsed, err := model.ParseTagCategory(req.Category); err == nil {
		category = string(parsed)
	}
	return map[string]any{
		"category": category,
		"content":  req.Content,
		"creator":  req.Creator,
		"name":     req.Name,
		"uuid":     req.UUID,
	}
}

// TransformSignablePayload returns the signed field set of a transform
// create request.
func TransformSignablePayload(req *model.CreateTransformRequest) map[string]any {
	tags := make([]any, 0, len(req.Tags))
	for _, t := range req.Tags {
		tags = append(tags, t)
	}
	return map[string]any{
		"additional_data": req.AdditionalData,
		"agent":           req.Agent,
		"description":     req.Description,
		"name":            req.Name,
		"tags":            tags,
		"transform_from":  req.TransformFrom,
		"transform_to":    req.TransformTo,
		"uuid":            req.UUID,
	}
}
