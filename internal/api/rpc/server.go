package rpc

import (
	"context"

	"github.com/sagenet/sage-hub/internal/entity"
	"github.com/sagenet/sage-hub/internal/model"
	"github.com/sagenet/sage-hub/internal/trust"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements the sagehub.v1.HubService RPC surface.
type Server struct {
	entities *entity.Service
	trust    *trust.Engine
	logger   *zap.Logger
}

// NewServer creates a Server.
func NewServer(entities *entity.Service, trustEngine *trust.Engine, logger *zap.Logger) *Server {
	return &Server{entities: entities, trust: trustEngine, logger: logger}
}

// RegisterWith registers the service on a grpc server. The JSON codec is
// installed by whoever builds the server (grpc.ForceServerCodec(JSONCodec{})
// in cmd/hub).
func (s *Server) RegisterWith(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// codeForKind maps every error kind to its one gRPC code.
func codeForKind(kind model.ErrorKind) codes.Code {
	switch kind {
	case model.KindNotFound, model.KindTrustPathNotFound:
		return codes.NotFound
	case model.KindAlreadyExists:
		return codes.AlreadyExists
	case model.KindInvalidSignature, model.KindUnauthorized:
		return codes.Unauthenticated
	case model.KindInvalidContentHash, model.KindInvalidPublicKey,
		model.KindValidation, model.KindSerialization:
		return codes.InvalidArgument
	case model.KindResourceLimitExceeded, model.KindRateLimitExceeded:
		return codes.ResourceExhausted
	case model.KindNetwork, model.KindFederation:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func rpcError(err error) error {
	return status.Error(codeForKind(model.KindOf(err)), err.Error())
}

// ── Agents ──────────────────────────────────────────────────────────────

func (s *Server) CreateAgent(ctx context.Context, req *model.CreateAgentRequest) (*model.Agent, error) {
	agent, err := s.entities.CreateAgent(ctx, req)
	if err != nil {
		return nil, rpcError(err)
	}
	return agent, nil
}

func (s *Server) GetAgent(ctx context.Context, req *GetRequest) (*model.Agent, error) {
	agent, err := s.entities.GetAgent(ctx, req.UUID)
	if err != nil {
		return nil, rpcError(err)
	}
	return agent, nil
}

func (s *Server) ListAgents(ctx context.Context, req *ListRequest) (*AgentList, error) {
	result, err := s.entities.ListAgents(ctx, req.Cursor, req.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return &AgentList{Items: result.Items, NextCursor: result.NextCursor, HasMore: result.HasMore}, nil
}

func (s *Server) DeleteAgent(ctx context.Context, req *GetRequest) (*DeleteResponse, error) {
	if err := s.entities.DeleteAgent(ctx, req.UUID); err != nil {
		return nil, rpcError(err)
	}
	return &DeleteResponse{Deleted: true}, nil
}

// ── Fragments ───────────────────────────────────────────────────────────

func (s *Server) CreateFragment(ctx context.Context, req *model.CreateFragmentRequest) (*model.Fragment, error) {
	fragment, err := s.entities.CreateFragment(ctx, req)
	if err != nil {
		return nil, rpcError(err)
	}
	return fragment, nil
}

func (s *Server) GetFragment(ctx context.Context, req *GetRequest) (*model.Fragment, error) {
	fragment, err := s.entities.GetFragment(ctx, req.UUID)
	if err != nil {
		return nil, rpcError(err)
	}
	return fragment, nil
}

func (s *Server) ListFragments(ctx context.Context, req *ListRequest) (*FragmentList, error) {
	result, err := s.entities.ListFragments(ctx, req.Cursor, req.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return &FragmentList{Items: result.Items, NextCursor: result.NextCursor, HasMore: result.HasMore}, nil
}

func (s *Server) DeleteFragment(ctx context.Context, req *GetRequest) (*DeleteResponse, error) {
	if err := s.entities.DeleteFragment(ctx, req.UUID); err != nil {
		return nil, rpcError(err)
	}
	return &DeleteResponse{Deleted: true}, nil
}

// SearchFragments streams matching fragments one at a time.
func (s *Server) SearchFragments(req *SearchRequest, stream grpc.ServerStream) error {
	fragments, err := s.entities.SearchFragments(stream.Context(), req.Query, req.Limit)
	if err != nil {
		return rpcError(err)
	}
	for i := range fragments {
		if err := stream.SendMsg(&fragments[i]); err != nil {
			return err
		}
	}
	return nil
}

// ── Relations ───────────────────────────────────────────────────────────

func (s *Server) CreateRelation(ctx context.Context, req *model.CreateRelationRequest) (*model.Relation, error) {
	relation, err := s.entities.CreateRelation(ctx, req)
	if err != nil {
		return nil, rpcError(err)
	}
	return relation, nil
}

func (s *Server) GetRelation(ctx context.Context, req *GetRequest) (*model.Relation, error) {
	relation, err := s.entities.GetRelation(ctx, req.UUID)
	if err != nil {
		return nil, rpcError(err)
	}
	return relation, nil
}

func (s *Server) ListRelations(ctx context.Context, req *ListRequest) (*RelationList, error) {
	result, err := s.entities.ListRelations(ctx, req.Cursor, req.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return &RelationList{Items: result.Items, NextCursor: result.NextCursor, HasMore: result.HasMore}, nil
}

// ── Tags ────────────────────────────────────────────────────────────────

func (s *Server) CreateTag(ctx context.Context, req *model.CreateTagRequest) (*model.Tag, error) {
	tag, err := s.entities.CreateTag(ctx, req)
	if err != nil {
		return nil, rpcError(err)
	}
	return tag, nil
}

func (s *Server) GetTag(ctx context.Context, req *GetRequest) (*model.Tag, error) {
	tag, err := s.entities.GetTag(ctx, req.UUID)
	if err != nil {
		return nil, rpcError(err)
	}
	return tag, nil
}

func (s *Server) ListTags(ctx context.Context, req *ListRequest) (*TagList, error) {
	result, err := s.entities.ListTags(ctx, req.Cursor, req.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return &TagList{Items: result.Items, NextCursor: result.NextCursor, HasMore: result.HasMore}, nil
}

// ── Transforms ──────────────────────────────────────────────────────────

func (s *Server) CreateTransform(ctx context.Context, req *model.CreateTransformRequest) (*model.Transform, error) {
	transform, err := s.entities.CreateTransform(ctx, req)
	if err != nil {
		return nil, rpcError(err)
	}
	return transform, nil
}

func (s *Server) GetTransform(ctx context.Context, req *GetRequest) (*model.Transform, error) {
	transform, err := s.entities.GetTransform(ctx, req.UUID)
	if err != nil {
		return nil, rpcError(err)
	}
	return transform, nil
}

func (s *Server) ListTransforms(ctx context.Context, req *ListRequest) (*TransformList, error) {
	result, err := s.entities.ListTransforms(ctx, req.Cursor, req.Limit)
	if err != nil {
		return nil, rpcError(err)
	}
	return &TransformList{Items: result.Items, NextCursor: result.NextCursor, HasMore: result.HasMore}, nil
}

// ── Trust ───────────────────────────────────────────────────────────────

func (s *Server) FindTrustPath(ctx context.Context, req *TrustPathRequest) (*model.TrustPath, error) {
	from, err := model.ParseAddress(req.From)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid from address: "+err.Error())
	}
	to, err := model.ParseAddress(req.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid to address: "+err.Error())
	}

	path, err := s.trust.FindBestPath(ctx, from, to)
	if err != nil {
		return nil, rpcError(err)
	}
	if path == nil {
		return nil, rpcError(model.TrustPathNotFound(from.String(), to.String()))
	}
	return path, nil
}

func (s *Server) GetTrustScore(ctx context.Context, req *TrustScoreRequest) (*model.TrustScore, error) {
	entityAddr, err := model.ParseAddress(req.Entity)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid entity address: "+err.Error())
	}
	viewer, err := model.ParseAddress(req.Viewer)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid viewer address: "+err.Error())
	}

	score, err := s.trust.Score(ctx, entityAddr, viewer)
	if err != nil {
		return nil, rpcError(err)
	}
	return &score, nil
}
