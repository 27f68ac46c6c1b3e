package rpc

import (
	"context"

	"github.com/sagenet/sage-hub/internal/model"
	"google.golang.org/grpc"
)

const serviceName = "sagehub.v1.HubService"

// unaryHandler adapts a typed Server method into a grpc method handler.
func unaryHandler[Req any, Resp any](
	method string,
	call func(*Server, context.Context, *Req) (Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(*Server), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(*Server), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func searchFragmentsStreamHandler(srv any, stream grpc.ServerStream) error {
	var req SearchRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	return srv.(*Server).SearchFragments(&req, stream)
}

// ServiceDesc is the hand-declared descriptor of the HubService. The
// reserved discovery methods (RegisterHub, Heartbeat, ListHubs) are
// intentionally absent.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAgent", Handler: unaryHandler("CreateAgent",
			func(s *Server, ctx context.Context, req *model.CreateAgentRequest) (*model.Agent, error) {
				return s.CreateAgent(ctx, req)
			})},
		{MethodName: "GetAgent", Handler: unaryHandler("GetAgent",
			func(s *Server, ctx context.Context, req *GetRequest) (*model.Agent, error) {
				return s.GetAgent(ctx, req)
			})},
		{MethodName: "ListAgents", Handler: unaryHandler("ListAgents",
			func(s *Server, ctx context.Context, req *ListRequest) (*AgentList, error) {
				return s.ListAgents(ctx, req)
			})},
		{MethodName: "DeleteAgent", Handler: unaryHandler("DeleteAgent",
			func(s *Server, ctx context.Context, req *GetRequest) (*DeleteResponse, error) {
				return s.DeleteAgent(ctx, req)
			})},
		{MethodName: "CreateFragment", Handler: unaryHandler("CreateFragment",
			func(s *Server, ctx context.Context, req *model.CreateFragmentRequest) (*model.Fragment, error) {
				return s.CreateFragment(ctx, req)
			})},
		{MethodName: "GetFragment", Handler: unaryHandler("GetFragment",
			func(s *Server, ctx context.Context, req *GetRequest) (*model.Fragment, error) {
				return s.GetFragment(ctx, req)
			})},
		{MethodName: "ListFragments", Handler: unaryHandler("ListFragments",
			func(s *Server, ctx context.Context, req *ListRequest) (*FragmentList, error) {
				return s.ListFragments(ctx, req)
			})},
		{MethodName: "DeleteFragment", Handler: unaryHandler("DeleteFragment",
			func(s *Server, ctx context.Context, req *GetRequest) (*DeleteResponse, error) {
				return s.DeleteFragment(ctx, req)
			})},
		{MethodName: "CreateRelation", Handler: unaryHandler("CreateRelation",
			func(s *Server, ctx context.Context, req *model.CreateRelationRequest) (*model.Relation, error) {
				return s.CreateRelation(ctx, req)
			})},
		{MethodName: "GetRelation", Handler: unaryHandler("GetRelation",
			func(s *Server, ctx context.Context, req *GetRequest) (*model.Relation, error) {
				return s.GetRelation(ctx, req)
			})},
		{MethodName: "ListRelations", Handler: unaryHandler("ListRelations",
			func(s *Server, ctx context.Context, req *ListRequest) (*RelationList, error) {
				return s.ListRelations(ctx, req)
			})},
		{MethodName: "CreateTag", Handler: unaryHandler("CreateTag",
			func(s *Server, ctx context.Context, req *model.CreateTagRequest) (*model.Tag, error) {
				return s.CreateTag(ctx, req)
			})},
		{MethodName: "GetTag", Handler: unaryHandler("GetTag",
			func(s *Server, ctx context.Context, req *GetRequest) (*model.Tag, error) {
				return s.GetTag(ctx, req)
			})},
		{MethodName: "ListTags", Handler: unaryHandler("ListTags",
			func(s *Server, ctx context.Context, req *ListRequest) (*TagList, error) {
				return s.ListTags(ctx, req)
			})},
		{MethodName: "CreateTransform", Handler: unaryHandler("CreateTransform",
			func(s *Server, ctx context.Context, req *model.CreateTransformRequest) (*model.Transform, error) {
				return s.CreateTransform(ctx, req)
			})},
		{MethodName: "GetTransform", Handler: unaryHandler("GetTransform",
			func(s *Server, ctx context.Context, req *GetRequest) (*model.Transform, error) {
				return s.GetTransform(ctx, req)
			})},
		{MethodName: "ListTransforms", Handler: unaryHandler("ListTransforms",
			func(s *Server, ctx context.Context, req *ListRequest) (*TransformList, error) {
				return s.ListTransforms(ctx, req)
			})},
		{MethodName: "FindTrustPath", Handler: unaryHandler("FindTrustPath",
			func(s *Server, ctx context.Context, req *TrustPathRequest) (*model.TrustPath, error) {
				return s.FindTrustPath(ctx, req)
			})},
		{MethodName: "GetTrustScore", Handler: unaryHandler("GetTrustScore",
			func(s *Server, ctx context.Context, req *TrustScoreRequest) (*model.TrustScore, error) {
				return s.GetTrustScore(ctx, req)
			})},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SearchFragments",
			Handler:       searchFragmentsStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "sagehub/v1/hub_service",
}
