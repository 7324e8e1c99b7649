package research

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/bytelense/internal/llm"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

// AgentServer is the server side of the research stream.
type AgentServer interface {
	Research(ctx context.Context, req AgentRequest, send func(AgentUpdate) error) error
}

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: "bytelense.agent.v1.ResearchAgent",
	HandlerType: (*AgentServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Research",
		Handler:       researchHandler,
		ServerStreams: true,
	}},
	Metadata: "bytelense/agent/v1/agent.proto",
}

// RegisterAgentServer registers an AgentServer on a gRPC server.
func RegisterAgentServer(s grpc.ServiceRegistrar, srv AgentServer) {
	s.RegisterService(&agentServiceDesc, srv)
}

func researchHandler(srv any, stream grpc.ServerStream) error {
	in := &structpb.Struct{}
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req AgentRequest
	if err := utils.FromStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(AgentServer).Research(stream.Context(), req, func(u AgentUpdate) error {
		st, err := utils.ToStruct(u)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		return stream.SendMsg(st)
	})
}

// LocalAgent serves the research stream from an in-process Researcher.
type LocalAgent struct {
	Researcher Researcher
	Logger     *slog.Logger
}

func (a *LocalAgent) Research(ctx context.Context, req AgentRequest, send func(AgentUpdate) error) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if req.Task == "" && req.Hints.Query() == "" {
		return status.Error(codes.InvalidArgument, "task or hints required")
	}
	rec, cites, conf, err := a.Researcher.Research(ctx, req.Task, req.Hints, req.DataType)
	if err != nil && !HasFindings(rec) {
		logger.Warn("research.local.failed", "task", req.Task, "error", err)
		if ctx.Err() != nil {
			return status.FromContextError(ctx.Err()).Err()
		}
		return status.Error(codes.Unavailable, err.Error())
	}
	u := AgentUpdate{Findings: llm.FieldsFromRecord(rec), Confidence: conf, Done: err == nil}
	for _, c := range cites {
		u.Citations = append(u.Citations, AgentCitation{
			SourceType: string(c.SourceType),
			Title:      c.Title,
			URL:        c.URL,
			Snippet:    c.Snippet,
		})
	}
	if sendErr := send(u); sendErr != nil {
		return sendErr
	}
	if err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}
