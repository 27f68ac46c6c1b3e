package rpc

import (
	"github.com/sagenet/sage-hub/internal/model"
)

// GetRequest fetches one entity by UUID.
type GetRequest struct {
	UUID string `json:"uuid"`
}

// ListRequest is a cursored page request.
type ListRequest struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

// DeleteResponse acknowledges an idempotent delete.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// SearchRequest drives the streaming fragment search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// TrustPathRequest asks for the best path between two addresses.
type TrustPathRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TrustScoreRequest asks for an entity's score from a viewer.
type TrustScoreRequest struct {
	Entity string `json:"entity"`
	Viewer string `json:"viewer"`
}

// AgentList is one page of agents.
type AgentList struct {
	Items      []model.Agent `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// FragmentList is one page of fragments.
type FragmentList struct {
	Items      []model.Fragment `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

// RelationList is one page of relations.
type RelationList struct {
	Items      []model.Relation `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

// TagList is one page of tags.
type TagList struct {
	Items      []model.Tag `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// TransformList is one page of transforms.
type TransformList struct {
	Items      []model.Transform `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}
