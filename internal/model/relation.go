package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RelationType classifies a relation between entities. Fragment typing
// (question, hypothesis, ...) uses TYPE tags via RELATED_TO rather than
// dedicated relation types.
type RelationType string

const (
	RelationTrust       RelationType = "TRUST"
	RelationSupports    RelationType = "SUPPORTS"
	RelationContradicts RelationType = "CONTRADICTS"
	RelationExtends     RelationType = "EXTENDS"
	RelationSupersedes  RelationType = "SUPERSEDES"
	RelationDerivedFrom RelationType = "DERIVED_FROM"
	RelationRelatedTo   RelationType = "RELATED_TO"
	RelationExampleOf   RelationType = "EXAMPLE_OF"
	RelationSpecializes RelationType = "SPECIALIZES"
	RelationClarifies   RelationType = "CLARIFIES"
	RelationGeneralizes RelationType = "GENERALIZES"
)

// RelationTypes lists every valid relation type.
func RelationTypes() []RelationType {
	return []RelationType{
		RelationTrust, RelationSupports, RelationContradicts, RelationExtends,
		RelationSupersedes, RelationDerivedFrom, RelationRelatedTo,
		RelationExampleOf, RelationSpecializes, RelationClarifies,
		RelationGeneralizes,
	}
}

// ParseRelationType parses a relation type case-insensitively.
func ParseRelationType(s string) (RelationType, error) {
	upper := RelationType(strings.ToUpper(s))
	for _, rt := range RelationTypes() {
		if rt == upper {
			return rt, nil
		}
	}
	return "", fmt.Errorf("invalid relation type %q", s)
}

// Relation is a typed, signed edge between entities. A relation whose To
// entity is empty is a self-reference used to type its From entity.
type Relation struct {
	UUID         string       `json:"uuid"`
	From         Address      `json:"from"`
	To           Address      `json:"to"`
	By           Address      `json:"by"`
	RelationType RelationType `json:"type"`
	Content      string       `json:"content"`
	Creator      Address      `json:"creator"`
	Version      uint32       `json:"version"`
	Signature    string       `json:"signature"`
	When         time.Time    `json:"when"`
	CreatedAt    time.Time    `json:"created_at"`
	Confidence   float32      `json:"confidence"`
}

// NewRelation creates a relation at version 1 with full confidence.
func NewRelation(id string, from, to, creator Address, rt RelationType) *Relation {
	now := time.Now().UTC()
	return &Relation{
		UUID:         id,
		From:         from,
		To:           to,
		By:           creator,
		RelationType: rt,
		Creator:      creator,
		Version:      1,
		When:         now,
		CreatedAt:    now,
		Confidence:   1.0,
	}
}

// IsSelfReference reports whether this relation types its own From entity.
func (r *Relation) IsSelfReference() bool {
	return r.To.Entity == "" || r.From == r.To
}

// Validate checks the relation invariants.
func (r *Relation) Validate() error {
	if r.UUID == "" {
		return Validation("uuid is required")
	}
	if r.From.Entity == "" {
		return Validation("from is required")
	}
	if r.Creator.Entity == "" {
		return Validation("creator is required")
	}
	if r.Signature == "" {
		return Validation("signature is required")
	}
	return nil
}

// CreateRelationRequest is the signed payload for creating a relation.
// The type field accepts both "type" and "relation_type" spellings.
type CreateRelationRequest struct {
	UUID       string     `json:"uuid"`
	From       Address    `json:"from"`
	To         Address    `json:"to"`
	By         Address    `json:"by"`
	Type       string     `json:"type"`
	AltType    string     `json:"relation_type"`
	Content    string     `json:"content"`
	Creator    Address    `json:"creator"`
	When       *time.Time `json:"when"`
	Signature  string     `json:"signature"`
	Confidence *float32   `json:"confidence"`
}

// RelationTypeString returns the declared relation type, whichever field
// carried it.
func (r *CreateRelationRequest) RelationTypeString() string {
	if r.Type != "" {
		return r.Type
	}
	return r.AltType
}

// ToRelation materialises the relation described by the request. An
// unknown type string falls back to RELATED_TO.
func (r *CreateRelationRequest) ToRelation() *Relation {
	id := r.UUID
	if id == "" {
		id = uuid.NewString()
	}
	rt, err := ParseRelationType(r.RelationTypeString())
	if err != nil {
		rt = RelationRelatedTo
	}
	relation := NewRelation(id, r.From, r.To, r.Creator, rt)
	relation.Signature = r.Signature
	relation.Content = r.Content
	if r.By.Entity != "" {
		relation.By = r.By
	}
	if r.When != nil {
		relation.When = *r.When
	}
	if r.Confidence != nil {
		relation.Confidence = clamp(*r.Confidence, 0, 1)
	}
	return relation
}
