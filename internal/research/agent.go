package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/llm"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

// ResearchMethod is the full gRPC method name of the agent's research stream.
const ResearchMethod = "/bytelense.agent.v1.ResearchAgent/Research"

var researchStreamDesc = grpc.StreamDesc{StreamName: "Research", ServerStreams: true}

// AgentRequest is the request message, carried as a google.protobuf.Struct.
type AgentRequest struct {
	Task     string `json:"task"`
	DataType string `json:"data_type"`
	Hints    Hints  `json:"hints"`
}

// AgentCitation is a source the agent relied on.
type AgentCitation struct {
	SourceType string `json:"source_type"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// AgentUpdate is one message of the research stream. Findings are cumulative:
// each update replaces the previous one.
type AgentUpdate struct {
	Findings   llm.LabelFields `json:"findings"`
	Citations  []AgentCitation `json:"citations,omitempty"`
	Confidence float64         `json:"confidence"`
	Done       bool            `json:"done"`
}

// DialAgent opens a plaintext client connection to the research agent.
func DialAgent(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// AgentClient calls a remote research agent over a server-streaming RPC.
type AgentClient struct {
	conn   grpc.ClientConnInterface
	logger *slog.Logger
}

func NewAgentClient(conn grpc.ClientConnInterface, logger *slog.Logger) *AgentClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentClient{conn: conn, logger: logger}
}

// Research streams findings until the agent is done. If the context expires
// first, the latest valid findings are returned together with the context error.
func (c *AgentClient) Research(ctx context.Context, task string, hints Hints, dataType string) (entity.NutritionRecord, []entity.CitationSource, float64, error) {
	start := time.Now()
	req, err := utils.ToStruct(AgentRequest{Task: task, DataType: dataType, Hints: hints})
	if err != nil {
		return entity.NutritionRecord{}, nil, 0, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.logger.Info("research.agent.start", "task", task, "data_type", dataType)
	stream, err := c.conn.NewStream(streamCtx, &researchStreamDesc, ResearchMethod)
	if err != nil {
		return entity.NutritionRecord{}, nil, 0, fmt.Errorf("open research stream: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return entity.NutritionRecord{}, nil, 0, c.streamErr(ctx, err)
	}
	if err := stream.CloseSend(); err != nil {
		return entity.NutritionRecord{}, nil, 0, c.streamErr(ctx, err)
	}

	var (
		best      entity.NutritionRecord
		conf      float64
		citations []entity.CitationSource
		seen      = map[string]bool{}
		updates   int
	)
	for {
		msg := &structpb.Struct{}
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.logger.Warn("research.agent.recv_failed",
				"error", err, "updates", updates,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			best.Confidence = conf
			return best, citations, conf, c.streamErr(ctx, err)
		}

		var u AgentUpdate
		if err := utils.FromStruct(msg, &u); err != nil {
			c.logger.Warn("research.agent.decode_failed", "error", err)
			continue
		}
		rec := u.Findings.Record(constants.MethodResearch)
		if err := ValidateFindings(rec); err != nil {
			c.logger.Warn("research.agent.invalid_findings", "error", err)
			continue
		}
		best, conf = rec, utils.Clamp(u.Confidence, 0, 1)
		updates++
		for _, ac := range u.Citations {
			key := ac.URL + "|" + ac.Title
			if seen[key] {
				continue
			}
			seen[key] = true
			citations = append(citations, citation(sourceType(ac.SourceType), ac.Title, ac.URL, ac.Snippet))
		}
		if u.Done {
			break
		}
	}

	best.Confidence = conf
	c.logger.Info("research.agent.ok",
		"updates", updates, "citations", len(citations), "confidence", conf,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return best, citations, conf, nil
}

// streamErr prefers the caller's context error so deadlines stay recognizable.
func (c *AgentClient) streamErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("research agent: %w", ctxErr)
	}
	return fmt.Errorf("research agent: %w", err)
}

func sourceType(s string) constants.SourceType {
	switch t := constants.SourceType(s); t {
	case constants.SourceOpenFoodFacts, constants.SourceWeb, constants.SourceHealthGuideline,
		constants.SourceUserProfile, constants.SourceLabelOCR:
		return t
	default:
		return constants.SourceWeb
	}
}
