package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sagenet/sage-hub/internal/identity"
	"github.com/sagenet/sage-hub/internal/model"
)

// EntityStore provides typed CRUD over the KV backend. It exclusively
// owns entity bytes; services hold shared references to it.
type EntityStore struct {
	kv KV
}

// NewEntityStore wraps a KV backend.
func NewEntityStore(kv KV) *EntityStore {
	return &EntityStore{kv: kv}
}

// Close closes the underlying backend.
func (s *EntityStore) Close() { s.kv.Close() }

func putEntity[T any](ctx context.Context, kv KV, family, key string, entity *T) error {
	value, err := identity.CanonicalJSON(entity)
	if err != nil {
		return model.SerializationError(err.Error())
	}
	return kv.Put(ctx, family, key, value)
}

func getEntity[T any](ctx context.Context, kv KV, family, key string) (*T, error) {
	value, err := kv.Get(ctx, family, key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	var entity T
	if err := json.Unmarshal(value, &entity); err != nil {
		return nil, model.SerializationError(err.Error())
	}
	return &entity, nil
}

func listEntities[T any](ctx context.Context, kv KV, family string, cursor Cursor, limit int) (*ListResult[T], error) {
	limit = ClampLimit(limit, MaxListLimit)

	pairs, err := kv.Scan(ctx, family, string(cursor), limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(pairs) > limit
	if hasMore {
		pairs = pairs[:limit]
	}

	items := make([]T, 0, len(pairs))
	for _, p := range pairs {
		var entity T
		if err := json.Unmarshal(p.Value, &entity); err != nil {
			return nil, model.SerializationError(err.Error())
		}
		items = append(items, entity)
	}

	result := &ListResult[T]{Items: items, HasMore: hasMore}
	if hasMore && len(pairs) > 0 {
		result.NextCursor = pairs[len(pairs)-1].Key
	}
	return result, nil
}

// ── Agents ──────────────────────────────────────────────────────────────

// PutAgent stores an agent keyed by UUID.
func (s *EntityStore) PutAgent(ctx context.Context, agent *model.Agent) error {
	return putEntity(ctx, s.kv, FamilyAgents, agent.UUID, agent)
}

// GetAgent returns the agent or (nil, nil) when absent.
func (s *EntityStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return getEntity[model.Agent](ctx, s.kv, FamilyAgents, id)
}

// ListAgents returns a page of agents after the cursor.
func (s *EntityStore) ListAgents(ctx context.Context, cursor Cursor, limit int) (*ListResult[model.Agent], error) {
	return listEntities[model.Agent](ctx, s.kv, FamilyAgents, cursor, limit)
}

// DeleteAgent removes an agent. Idempotent.
func (s *EntityStore) DeleteAgent(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, FamilyAgents, id)
}

// CountAgents returns the number of stored agents.
func (s *EntityStore) CountAgents(ctx context.Context) (uint64, error) {
	return s.kv.Count(ctx, FamilyAgents)
}

// ── Fragments ───────────────────────────────────────────────────────────

// PutFragment stores a fragment keyed by UUID.
func (s *EntityStore) PutFragment(ctx context.Context, fragment *model.Fragment) error {
	return putEntity(ctx, s.kv, FamilyFragments, fragment.UUID, fragment)
}

// GetFragment returns the fragment or (nil, nil) when absent.
func (s *EntityStore) GetFragment(ctx context.Context, id string) (*model.Fragment, error) {
	return getEntity[model.Fragment](ctx, s.kv, FamilyFragments, id)
}

// ListFragments returns a page of fragments after the cursor.
func (s *EntityStore) ListFragments(ctx context.Context, cursor Cursor, limit int) (*ListResult[model.Fragment], error) {
	return listEntities[model.Fragment](ctx, s.kv, FamilyFragments, cursor, limit)
}

// DeleteFragment removes a fragment. Idempotent.
func (s *EntityStore) DeleteFragment(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, FamilyFragments, id)
}

// CountFragments returns the number of stored fragments.
func (s *EntityStore) CountFragments(ctx context.Context) (uint64, error) {
	return s.kv.Count(ctx, FamilyFragments)
}

// SearchFragments scans the fragments family for content containing the
// query, case-insensitively, in iteration order, up to limit results.
func (s *EntityStore) SearchFragments(ctx context.Context, query string, limit int) ([]model.Fragment, error) {
	limit = ClampLimit(limit, MaxListLimit)
	queryLower := strings.ToLower(query)

	pairs, err := s.kv.Scan(ctx, FamilyFragments, "", 0)
	if err != nil {
		return nil, err
	}

	results := make([]model.Fragment, 0)
	for _, p := range pairs {
		if len(results) >= limit {
			break
		}
		var fragment model.Fragment
		if err := json.Unmarshal(p.Value, &fragment); err != nil {
			return nil, model.SerializationError(err.Error())
		}
		if strings.Contains(strings.ToLower(fragment.Content), queryLower) {
			results = append(results, fragment)
		}
	}
	return results, nil
}

// ── Relations ───────────────────────────────────────────────────────────

// PutRelation stores a relation keyed by UUID.
func (s *EntityStore) PutRelation(ctx context.Context, relation *model.Relation) error {
	return putEntity(ctx, s.kv, FamilyRelations, relation.UUID, relation)
}

// GetRelation returns the relation or (nil, nil) when absent.
func (s *EntityStore) GetRelation(ctx context.Context, id string) (*model.Relation, error) {
	return getEntity[model.Relation](ctx, s.kv, FamilyRelations, id)
}

// ListRelations returns a page of relations after the cursor.
func (s *EntityStore) ListRelations(ctx context.Context, cursor Cursor, limit int) (*ListResult[model.Relation], error) {
	return listEntities[model.Relation](ctx, s.kv, FamilyRelations, cursor, limit)
}

// DeleteRelation removes a relation. Idempotent.
func (s *EntityStore) DeleteRelation(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, FamilyRelations, id)
}

// RelationsByFrom returns relations whose From address points at entity.
func (s *EntityStore) RelationsByFrom(ctx context.Context, entity string) ([]model.Relation, error) {
	return s.filterRelations(ctx, func(r *model.Relation) bool { return r.From.Entity == entity })
}

// RelationsByTo returns relations whose To address points at entity.
func (s *EntityStore) RelationsByTo(ctx context.Context, entity string) ([]model.Relation, error) {
	return s.filterRelations(ctx, func(r *model.Relation) bool { return r.To.Entity == entity })
}

func (s *EntityStore) filterRelations(ctx context.Context, keep func(*model.Relation) bool) ([]model.Relation, error) {
	pairs, err := s.kv.Scan(ctx, FamilyRelations, "", 0)
	if err != nil {
		return nil, err
	}
	results := make([]model.Relation, 0)
	for _, p := range pairs {
		var relation model.Relation
		if err := json.Unmarshal(p.Value, &relation); err != nil {
			return nil, model.SerializationError(err.Error())
		}
		if keep(&relation) {
			results = append(results, relation)
		}
	}
	return results, nil
}

// ── Tags ────────────────────────────────────────────────────────────────

// PutTag stores a tag keyed by UUID.
func (s *EntityStore) PutTag(ctx context.Context, tag *model.Tag) error {
	return putEntity(ctx, s.kv, FamilyTags, tag.UUID, tag)
}

// GetTag returns the tag or (nil, nil) when absent.
func (s *EntityStore) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	return getEntity[model.Tag](ctx, s.kv, FamilyTags, id)
}

// ListTags returns a page of tags after the cursor.
func (s *EntityStore) ListTags(ctx context.Context, cursor Cursor, limit int) (*ListResult[model.Tag], error) {
	return listEntities[model.Tag](ctx, s.kv, FamilyTags, cursor, limit)
}

// DeleteTag removes a tag. Idempotent.
func (s *EntityStore) DeleteTag(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, FamilyTags, id)
}

// FindTagByName scans the tags family for an exact name match. Name
// uniqueness is enforced by this scan at create time.
func (s *EntityStore) FindTagByName(ctx context.Context, name string) (*model.Tag, error) {
	pairs, err := s.kv.Scan(ctx, FamilyTags, "", 0)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		var tag model.Tag
		if err := json.Unmarshal(p.Value, &tag); err != nil {
			return nil, model.SerializationError(err.Error())
		}
		if tag.Name == name {
			return &tag, nil
		}
	}
	return nil, nil
}

// ── Transforms ──────────────────────────────────────────────────────────

// PutTransform stores a transform keyed by UUID.
func (s *EntityStore) PutTransform(ctx context.Context, transform *model.Transform) error {
	return putEntity(ctx, s.kv, FamilyTransforms, transform.UUID, transform)
}

// GetTransform returns the transform or (nil, nil) when absent.
func (s *EntityStore) GetTransform(ctx context.Context, id string) (*model.Transform, error) {
	return getEntity[model.Transform](ctx, s.kv, FamilyTransforms, id)
}

// ListTransforms returns a page of transforms after the cursor.
func (s *EntityStore) ListTransforms(ctx context.Context, cursor Cursor, limit int) (*ListResult[model.Transform], error) {
	return listEntities[model.Transform](ctx, s.kv, FamilyTransforms, cursor, limit)
}

// DeleteTransform removes a transform. Idempotent.
func (s *EntityStore) DeleteTransform(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, FamilyTransforms, id)
}
