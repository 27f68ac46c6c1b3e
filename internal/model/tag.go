package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TagCategory classifies tags for filtering.
type TagCategory string

const (
	CategoryPlatform     TagCategory = "PLATFORM"
	CategoryLanguage     TagCategory = "LANGUAGE"
	CategoryFramework    TagCategory = "FRAMEWORK"
	CategoryLibrary      TagCategory = "LIBRARY"
	CategoryVersion      TagCategory = "VERSION"
	CategoryDomain       TagCategory = "DOMAIN"
	CategoryType         TagCategory = "TYPE"
	CategoryEnvironment  TagCategory = "ENVIRONMENT"
	CategoryArchitecture TagCategory = "ARCHITECTURE"
	CategoryCountry      TagCategory = "COUNTRY"
	CategoryField        TagCategory = "FIELD"
)

// TagCategories lists every valid tag category.
func TagCategories() []TagCategory {
	return []TagCategory{
		CategoryPlatform, CategoryLanguage, CategoryFramework,
		CategoryLibrary, CategoryVersion, CategoryDomain, CategoryType,
		CategoryEnvironment, CategoryArchitecture, CategoryCountry,
		CategoryField,
	}
}

// ParseTagCategory parses a tag category case-insensitively.
func ParseTagCategory(s string) (TagCategory, error) {
	upper := TagCategory(strings.ToUpper(s))
	for _, c := range TagCategories() {
		if c == upper {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid tag category %q", s)
}

// Tag categorises fragments. Tag names are unique within a hub.
type Tag struct {
	UUID      string      `json:"uuid"`
	Name      string      `json:"name"`
	Content   string      `json:"content"`
	Version   uint32      `json:"version"`
	Category  TagCategory `json:"category"`
	Creator   Address     `json:"creator"`
	Signature string      `json:"signature"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks the tag invariants.
func (t *Tag) Validate() error {
	if t.UUID == "" {
		return Validation("uuid is required")
	}
	if t.Name == "" {
		return Validation("name is required")
	}
	if t.Creator.Entity == "" {
		return Validation("creator is required")
	}
	if t.Signature == "" {
		return Validation("signature is required")
	}
	return nil
}

// CreateTagRequest is the signed payload for creating a tag.
type CreateTagRequest struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Content   string  `json:"content"`
	Category  string  `json:"category"`
	Creator   Address `json:"creator"`
	Signature string  `json:"signature"`
}

// ToTag materialises the tag described by the request. An unknown category
// falls back to DOMAIN.
func (r *CreateTagRequest) ToTag() *Tag {
	id := r.UUID
	if id == "" {
		id = uuid.NewString()
	}
	category, err := ParseTagCategory(r.Category)
	if err != nil {
		category = CategoryDomain
	}
	return &Tag{
		UUID:      id,
		Name:      r.Name,
		Content:   r.Content,
		Version:   1,
		Category:  category,
		Creator:   r.Creator,
		Signature: r.Signature,
		CreatedAt: time.Now().UTC(),
	}
}
