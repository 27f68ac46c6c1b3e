package model

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EvidenceType records how a fragment's content was derived.
type EvidenceType string

const (
	EvidenceEmpirical   EvidenceType = "empirical"
	EvidenceLogical     EvidenceType = "logical"
	EvidenceConsensus   EvidenceType = "consensus"
	EvidenceSpeculation EvidenceType = "speculation"
	EvidenceUnknown     EvidenceType = "unknown"
)

// ParseEvidenceType parses an evidence type case-insensitively.
func ParseEvidenceType(s string) (EvidenceType, error) {
	switch EvidenceType(strings.ToLower(s)) {
	case EvidenceEmpirical, EvidenceLogical, EvidenceConsensus, EvidenceSpeculation, EvidenceUnknown:
		return EvidenceType(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("invalid evidence type %q", s)
}

// Fragment is a signed unit of knowledge content. Fragments stay minimal;
// typing and state are expressed through relations.
type Fragment struct {
	UUID         string       `json:"uuid"`
	Tags         []Address    `json:"tags"`
	Transform    *Address     `json:"transform"`
	Content      string       `json:"content"`
	ContentHash  string       `json:"content_hash"`
	Creator      Address      `json:"creator"`
	Version      uint32       `json:"version"`
	When         time.Time    `json:"when"`
	Signature    string       `json:"signature"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Confidence   float32      `json:"confidence"`
	EvidenceType EvidenceType `json:"evidence_type"`
}

// ContentHash returns base64(SHA-256(content)).
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewFragment creates a fragment at version 1 with the hash of content.
func NewFragment(id, content string, creator Address) *Fragment {
	now := time.Now().UTC()
	return &Fragment{
		UUID:         id,
		Content:      content,
		ContentHash:  ContentHash(content),
		Creator:      creator,
		Version:      1,
		When:         now,
		CreatedAt:    now,
		UpdatedAt:    now,
		Confidence:   0.5,
		EvidenceType: EvidenceUnknown,
	}
}

// HasTag reports whether the fragment references the tag with the given UUID.
func (f *Fragment) HasTag(tagUUID string) bool {
	for _, t := range f.Tags {
		if t.Entity == tagUUID {
			return true
		}
	}
	return false
}

// Validate checks the fragment invariants.
func (f *Fragment) Validate() error {
	if f.UUID == "" {
		return Validation("uuid is required")
	}
	if f.Content == "" {
		return Validation("content is required")
	}
	if f.Creator.Entity == "" {
		return Validation("creator is required")
	}
	if f.Signature == "" {
		return Validation("signature is required")
	}
	return nil
}

// CreateFragmentRequest is the signed payload for creating a fragment.
type CreateFragmentRequest struct {
	UUID         string     `json:"uuid"`
	Tags         []Address  `json:"tags"`
	Transform    *Address   `json:"transform"`
	Content      string     `json:"content"`
	Creator      Address    `json:"creator"`
	When         *time.Time `json:"when"`
	Signature    string     `json:"signature"`
	Confidence   *float32   `json:"confidence"`
	EvidenceType string     `json:"evidence_type"`
}

// ToFragment materialises the fragment described by the request.
func (r *CreateFragmentRequest) ToFragment() *Fragment {
	id := r.UUID
	if id == "" {
		id = uuid.NewString()
	}
	fragment := NewFragment(id, r.Content, r.Creator)
	fragment.Tags = append(fragment.Tags, r.Tags...)
	fragment.Transform = r.Transform
	fragment.Signature = r.Signature
	if r.When != nil {
		fragment.When = *r.When
	}
	if r.Confidence != nil {
		fragment.Confidence = clamp(*r.Confidence, 0, 1)
	}
	if r.EvidenceType != "" {
		if et, err := ParseEvidenceType(r.EvidenceType); err == nil {
			fragment.EvidenceType = et
		}
	}
	return fragment
}
