// Package store persists hub entities in column families keyed by UUID,
// with canonical JSON bytes as values. Two backends implement the KV
// interface: an in-memory map for tests and single-node development, and
// postgres for durable deployments.
package store

import "context"

// Column family names. Each entity kind lives in its own family.
const (
	FamilyAgents     = "agents"
	FamilyFragments  = "fragments"
	FamilyRelations  = "relations"
	FamilyTags       = "tags"
	FamilyTransforms = "transforms"
)

// Families lists every column family the store manages.
func Families() []string {
	return []string{FamilyAgents, FamilyFragments, FamilyRelations, FamilyTags, FamilyTransforms}
}

// Pair is one key/value entry from a scan.
type Pair struct {
	Key   string
	Value []byte
}

// KV is the low-level key-value backend. Writes are durable and atomic
// per key; there are no multi-key transactions. Scans iterate keys in
// byte-lexicographic order.
type KV interface {
	// Put stores value under key in the given family, replacing any
	// previous value.
	Put(ctx context.Context, family, key string, value []byte) error

	// Get returns the value for key, or (nil, nil) when absent.
	Get(ctx context.Context, family, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, family, key string) error

	// Scan returns pairs with keys strictly after `after` in
	// byte-lexicographic order, up to limit. limit <= 0 means unbounded.
	Scan(ctx context.Context, family, after string, limit int) ([]Pair, error)

	// Count returns the number of keys in the family.
	Count(ctx context.Context, family string) (uint64, error)

	// Close releases backend resources.
	Close()
}

// Cursor marks a position in a paginated list. The empty cursor is the
// start; otherwise it holds the UUID of the last key already returned.
type Cursor string

// CursorStart is the beginning of a family.
const CursorStart Cursor = ""

// ListResult is one page of a paginated list.
type ListResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// MaxListLimit caps list and search page sizes.
const MaxListLimit = 100

// ClampLimit bounds a requested limit to (0, MaxListLimit], applying the
// given default for non-positive requests.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit
}
