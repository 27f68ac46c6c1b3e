// Package entity implements the signature-verified entity service: CRUD
// with Ed25519 verification, referential-integrity checks across
// polymorphic addresses, and resource gating.
package entity

import (
	"context"

	"github.com/sagenet/sage-hub/internal/identity"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/resources"
	"github.com/sagenet/sage-hub/internal/store"
	"go.uber.org/zap"
)

// ResourceGate reads the latest resource snapshot. *resources.Monitor
// satisfies this interface.
type ResourceGate interface {
	Status() resources.Status
}

// Stats summarises entity counts for heartbeats and metrics.
type Stats struct {
	AgentsCount    uint64 `json:"agents_count"`
	FragmentsCount uint64 `json:"fragments_count"`
}

// Service contains the business logic for entity lifecycle management.
// Unless built with NewServiceWithoutVerification, every create verifies
// the request signature before anything is persisted: agents against the
// public key carried in the request, other entities against the creator's
// recorded public key.
type Service struct {
	store            *store.EntityStore
	gate             ResourceGate // nil = no resource gating
	verifySignatures bool
	logger           *zap.Logger
}

// NewService creates a Service. gate may be nil to disable gating.
func NewService(st *store.EntityStore, gate ResourceGate, logger *zap.Logger) *Service {
	return &Service{store: st, gate: gate, verifySignatures: true, logger: logger}
}

// NewServiceWithoutVerification creates a Service that skips signature
// checks. Test use only.
func NewServiceWithoutVerification(st *store.EntityStore, logger *zap.Logger) *Service {
	return &Service{store: st, verifySignatures: false, logger: logger}
}

// Store exposes the underlying entity store.
func (s *Service) Store() *store.EntityStore { return s.store }

func (s *Service) gateLevel() resources.Level {
	if s.gate == nil {
		return resources.LevelNormal
	}
	return s.gate.Status().Level
}

// ── Agents ──────────────────────────────────────────────────────────────

// CreateAgent validates, verifies, and persists a new agent. At critical
// resource level agent creation is rejected.
func (s *Service) CreateAgent(ctx context.Context, req *model.CreateAgentRequest) (*model.Agent, error) {
	if req.PublicKey == "" {
		return nil, model.InvalidPublicKey("public key cannot be empty")
	}

	if !resources.CanAcceptAgent(s.gateLevel()) {
		return nil, model.ResourceLimitExceeded("hub is at critical resource level; new agents are not accepted")
	}

	if s.verifySignatures {
		ok, err := identity.VerifyWithKey(req.PublicKey, mustCanonical(AgentSignablePayload(req)), req.Signature)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidSignature("agent")
		}
	}

	agent := req.ToAgent()
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutAgent(ctx, agent); err != nil {
		return nil, err
	}

	s.logger.Info("agent created", zap.String("uuid", agent.UUID))
	return agent, nil
}

// UpdateAgent replaces an agent wholesale. The replacement is self-signed
// with the public key carried in the request; the version is bumped past
// the stored one and the original creation time is preserved.
func (s *Service) UpdateAgent(ctx context.Context, req *model.CreateAgentRequest) (*model.Agent, error) {
	existing, err := s.store.GetAgent(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.NotFound("agent", req.UUID)
	}

	if s.verifySignatures {
		ok, err := identity.VerifyWithKey(req.PublicKey, mustCanonical(AgentSignablePayload(req)), req.Signature)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidSignature("agent")
		}
	}

	agent := req.ToAgent()
	agent.Version = existing.Version + 1
	agent.CreatedAt = existing.CreatedAt
	agent.Profile = existing.Profile
	if err := agent.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutAgent(ctx, agent); err != nil {
		return nil, err
	}

	s.logger.Info("agent replaced",
		zap.String("uuid", agent.UUID),
		zap.Uint32("version", agent.Version),
	)
	return agent, nil
}

// GetAgent returns an agent or NotFound.
func (s *Service) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, model.NotFound("agent", id)
	}
	return agent, nil
}

// ListAgents returns a page of agents.
func (s *Service) ListAgents(ctx context.Context, cursor string, limit int) (*store.ListResult[model.Agent], error) {
	return s.store.ListAgents(ctx, store.Cursor(cursor), limit)
}

// DeleteAgent removes an agent. Idempotent; references may dangle.
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	return s.store.DeleteAgent(ctx, id)
}

// ── Fragments ───────────────────────────────────────────────────────────

// CreateFragment validates, verifies, and persists a new fragment. The
// creator agent must exist; at critical resource level unknown creators
// are rejected outright.
func (s *Service) CreateFragment(ctx context.Context, req *model.CreateFragmentRequest) (*model.Fragment, error) {
	creator, err := s.store.GetAgent(ctx, req.Creator.Entity)
	if err != nil {
		return nil, err
	}
	if !resources.CanAcceptContent(s.gateLevel(), creator != nil) {
		return nil, model.ResourceLimitExceeded("hub is at critical resource level; content from unknown agents is not accepted")
	}
	if creator == nil {
		return nil, model.NotFound("agent", req.Creator.Entity)
	}

	if s.verifySignatures {
		ok, err := identity.VerifyWithKey(creator.PublicKey, mustCanonical(FragmentSignablePayload(req)), req.Signature)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidSignature("fragment")
		}
	}

	for _, tag := range req.Tags {
		if err := s.verifyEntityExists(ctx, tag); err != nil {
			return nil, err
		}
	}
	if req.Transform != nil {
		if err := s.verifyEntityExists(ctx, *req.Transform); err != nil {
			return nil, err
		}
	}

	fragment := req.ToFragment()
	if err := fragment.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutFragment(ctx, fragment); err != nil {
		return nil, err
	}

	s.logger.Info("fragment created",
		zap.String("uuid", fragment.UUID),
		zap.String("creator", fragment.Creator.Entity),
	)
	return fragment, nil
}

// GetFragment returns a fragment or NotFound.
func (s *Service) GetFragment(ctx context.Context, id string) (*model.Fragment, error) {
	fragment, err := s.store.GetFragment(ctx, id)
	if err != nil {
		return nil, err
	}
	if fragment == nil {
		return nil, model.NotFound("fragment", id)
	}
	return fragment, nil
}

// ListFragments returns a page of fragments.
func (s *Service) ListFragments(ctx context.Context, cursor string, limit int) (*store.ListResult[model.Fragment], error) {
	return s.store.ListFragments(ctx, store.Cursor(cursor), limit)
}

// SearchFragments selects fragments whose content contains the query,
// case-insensitively, in iteration order.
func (s *Service) SearchFragments(ctx context.Context, query string, limit int) ([]model.Fragment, error) {
	return s.store.SearchFragments(ctx, query, limit)
}

// DeleteFragment removes a fragment. Idempotent.
func (s *Service) DeleteFragment(ctx context.Context, id string) error {
	return s.store.DeleteFragment(ctx, id)
}

// ── Relations ───────────────────────────────────────────────────────────

// CreateRelation validates, verifies, and persists a new relation. From
// must resolve; To must resolve when it names an entity.
func (s *Service) CreateRelation(ctx context.Context, req *model.CreateRelationRequest) (*model.Relation, error) {
	creator, err := s.GetAgent(ctx, req.Creator.Entity)
	if err != nil {
		return nil, err
	}

	if s.verifySignatures {
		ok, err := identity.VerifyWithKey(creator.PublicKey, mustCanonical(RelationSignablePayload(req)), req.Signature)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidSignature("relation")
		}
	}

	if err := s.verifyEntityExists(ctx, req.From); err != nil {
		return nil, err
	}
	if req.To.Entity != "" {
		if err := s.verifyEntityExists(ctx, req.To); err != nil {
			return nil, err
		}
	}

	relation := req.ToRelation()
	if err := relation.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutRelation(ctx, relation); err != nil {
		return nil, err
	}

	s.logger.Info("relation created",
		zap.String("uuid", relation.UUID),
		zap.String("type", string(relation.RelationType)),
	)
	return relation, nil
}

// GetRelation returns a relation or NotFound.
func (s *Service) GetRelation(ctx context.Context, id string) (*model.Relation, error) {
	relation, err := s.store.GetRelation(ctx, id)
	if err != nil {
		return nil, err
	}
	if relation == nil {
		return nil, model.NotFound("relation", id)
	}
	return relation, nil
}

// ListRelations returns a page of relations.
func (s *Service) ListRelations(ctx context.Context, cursor string, limit int) (*store.ListResult[model.Relation], error) {
	return s.store.ListRelations(ctx, store.Cursor(cursor), limit)
}

// RelationsByFrom returns relations originating at the given entity.
func (s *Service) RelationsByFrom(ctx context.Context, entity string) ([]model.Relation, error) {
	return s.store.RelationsByFrom(ctx, entity)
}

// RelationsByTo returns relations targeting the given entity.
func (s *Service) RelationsByTo(ctx context.Context, entity string) ([]model.Relation, error) {
	return s.store.RelationsByTo(ctx, entity)
}

// ── Tags ────────────────────────────────────────────────────────────────

// CreateTag validates, verifies, and persists a new tag. Tag names are
// unique within the hub.
func (s *Service) CreateTag(ctx context.Context, req *model.CreateTagRequest) (*model.Tag, error) {
	creator, err := s.GetAgent(ctx, req.Creator.Entity)
	if err != nil {
		return nil, err
	}

	if s.verifySignatures {
		ok, err := identity.VerifyWithKey(creator.PublicKey, mustCanonical(TagSignablePayload(req)), req.Signature)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidSignature("tag")
		}
	}

	existing, err := s.store.FindTagByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.AlreadyExists("tag", req.Name)
	}

	tag := req.ToTag()
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutTag(ctx, tag); err != nil {
		return nil, err
	}

	s.logger.Info("tag created",
		zap.String("uuid", tag.UUID),
		zap.String("name", tag.Name),
	)
	return tag, nil
}

// GetTag returns a tag or NotFound.
func (s *Service) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	tag, err := s.store.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, model.NotFound("tag", id)
	}
	return tag, nil
}

// ListTags returns a page of tags.
func (s *Service) ListTags(ctx context.Context, cursor string, limit int) (*store.ListResult[model.Tag], error) {
	return s.store.ListTags(ctx, store.Cursor(cursor), limit)
}

// FindTagByName returns the tag with the given name, or nil.
func (s *Service) FindTagByName(ctx context.Context, name string) (*model.Tag, error) {
	return s.store.FindTagByName(ctx, name)
}

// ── Transforms ──────────────────────────────────────────────────────────

// CreateTransform validates, verifies, and persists a new transform.
func (s *Service) CreateTransform(ctx context.Context, req *model.CreateTransformRequest) (*model.Transform, error) {
	creator, err := s.GetAgent(ctx, req.Agent.Entity)
	if err != nil {
		return nil, err
	}

	if s.verifySignatures {
		ok, err := identity.VerifyWithKey(creator.PublicKey, mustCanonical(TransformSignablePayload(req)), req.Signature)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidSignature("transform")
		}
	}

	for _, tag := range req.Tags {
		if err := s.verifyEntityExists(ctx, tag); err != nil {
			return nil, err
		}
	}

	transform := req.ToTransform()
	if err := transform.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.PutTransform(ctx, transform); err != nil {
		return nil, err
	}

	s.logger.Info("transform created",
		zap.String("uuid", transform.UUID),
		zap.String("name", transform.Name),
	)
	return transform, nil
}

// GetTransform returns a transform or NotFound.
func (s *Service) GetTransform(ctx context.Context, id string) (*model.Transform, error) {
	transform, err := s.store.GetTransform(ctx, id)
	if err != nil {
		return nil, err
	}
	if transform == nil {
		return nil, model.NotFound("transform", id)
	}
	return transform, nil
}

// ListTransforms returns a page of transforms.
func (s *Service) ListTransforms(ctx context.Context, cursor string, limit int) (*store.ListResult[model.Transform], error) {
	return s.store.ListTransforms(ctx, store.Cursor(cursor), limit)
}

// ── Shared helpers ──────────────────────────────────────────────────────

// verifyEntityExists checks that an address resolves to a stored entity of
// the matching domain. HUB addresses need no entity lookup.
func (s *Service) verifyEntityExists(ctx context.Context, addr model.Address) error {
	var (
		found bool
		err   error
	)
	switch addr.Domain {
	case model.DomainAgent:
		var a *model.Agent
		a, err = s.store.GetAgent(ctx, addr.Entity)
		found = a != nil
	case model.DomainFragment:
		var f *model.Fragment
		f, err = s.store.GetFragment(ctx, addr.Entity)
		found = f != nil
	case model.DomainTag:
		var t *model.Tag
		t, err = s.store.GetTag(ctx, addr.Entity)
		found = t != nil
	case model.DomainTransformation:
		var t *model.Transform
		t, err = s.store.GetTransform(ctx, addr.Entity)
		found = t != nil
	case model.DomainRelation:
		var r *model.Relation
		r, err = s.store.GetRelation(ctx, addr.Entity)
		found = r != nil
	case model.DomainHub:
		return nil
	default:
		return model.Validation("unknown domain " + string(addr.Domain))
	}
	if err != nil {
		return err
	}
	if !found {
		return model.NotFound(string(addr.Domain), addr.Entity)
	}
	return nil
}

// GetStats counts stored agents and fragments.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	agents, err := s.store.CountAgents(ctx)
	if err != nil {
		return Stats{}, err
	}
	fragments, err := s.store.CountFragments(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{AgentsCount: agents, FragmentsCount: fragments}, nil
}

// mustCanonical canonicalizes a payload map built by this package. The
// maps contain only JSON-encodable values, so failure is impossible.
func mustCanonical(payload map[string]any) []byte {
	data, err := identity.CanonicalJSON(payload)
	if err != nil {
		panic(err)
	}
	return data
}
