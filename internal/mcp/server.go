package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coderag/engine/internal/config"
	"github.com/coderag/engine/internal/feedback"
	"github.com/coderag/engine/internal/pipeline"
	"github.com/coderag/engine/internal/ragquery"
	"github.com/coderag/engine/pkg/version"
)

// maxPendingQueries bounds the server's QueryID -> correlation-context
// map so a client that never submits feedback cannot grow it unbounded.
// Eviction is oldest-first once the cap is hit.
const maxPendingQueries = 10000

// queryContext is what the server remembers about a query long enough
// to translate a later submit_feedback call, which only carries the
// opaque QueryID and a ResultID, back into a ragquery.FeedbackRecord.
type queryContext struct {
	fingerprint string
	intent      ragquery.Intent
	resultIDs   map[string]bool
}

// Server is the MCP binding over the query pipeline. It exposes
// exactly two tools: search and submit_feedback.
type Server struct {
	mcp      *mcp.Server
	pipeline *pipeline.Coordinator
	feedback *feedback.Collector
	config   *config.Config
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]queryContext
	order   []string // insertion order of pending, for bounded eviction
}

// NewServer wires a pipeline Coordinator and a feedback Collector into
// an MCP server. feedbackCollector may be nil, in which case
// submit_feedback is still registered but always reports accepted=false.
func NewServer(coordinator *pipeline.Coordinator, feedbackCollector *feedback.Collector, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if coordinator == nil {
		return nil, errors.New("pipeline coordinator is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: coordinator,
		feedback: feedbackCollector,
		config:   cfg,
		logger:   logger,
		pending:  make(map[string]queryContext),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "coderag",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "coderag", version.Version
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve ranked code and documentation snippets for a natural-language or code-shaped query, blending keyword, vector, and semantic retrieval.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Report what happened to a search result (click, copy, no_click, explicit_positive, explicit_negative) so ranking weights adapt over time.",
	}, s.mcpFeedbackHandler)

	s.logger.Info("registered MCP tools", slog.Int("count", 2))
}

func (s *Server) mcpSearchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required and must be non-empty")
	}

	q := ragquery.Query{
		Text:                input.Query,
		CurrentFile:         input.CurrentFile,
		CurrentLanguage:     input.CurrentLanguage,
		RepositoryFilter:    input.RepositoryFilter,
		ExplicitIntent:      ragquery.Intent(input.Intent),
		MaxResults:          clampLimit(input.Limit, 10, 1, 50),
		Detail:              detailFromString(input.Detail),
		BM25Only:            input.BM25Only,
		DisableCache:        input.DisableCache,
		IncludeDependencies: input.IncludeDependencies,
		IncludeTimings:      input.IncludeTimings,
	}

	start := time.Now()
	resp, err := s.pipeline.Search(ctx, q)
	if err != nil {
		s.logger.Warn("search failed", slog.String("query", input.Query), slog.String("error", err.Error()))
		mapped := MapError(err)
		return nil, SearchOutput{}, mapped
	}

	s.remember(resp)

	out := toSearchOutput(resp)
	s.logger.Info("search completed",
		slog.String("query_id", resp.QueryID),
		slog.Int("results", len(out.Results)),
		slog.Duration("elapsed", time.Since(start)))

	return nil, out, nil
}

func (s *Server) mcpFeedbackHandler(ctx context.Context, req *mcp.CallToolRequest, input FeedbackInput) (*mcp.CallToolResult, FeedbackOutput, error) {
	if input.QueryID == "" || input.ResultID == "" {
		return nil, FeedbackOutput{}, NewInvalidParamsError("query_id and result_id are required")
	}

	qc, ok := s.lookup(input.QueryID)
	if !ok {
		return nil, FeedbackOutput{}, NewInvalidParamsError(fmt.Sprintf("unknown or expired query_id %q", input.QueryID))
	}
	if !qc.resultIDs[input.ResultID] {
		return nil, FeedbackOutput{}, NewInvalidParamsError(fmt.Sprintf("result_id %q was not part of query %q", input.ResultID, input.QueryID))
	}

	rec := ragquery.FeedbackRecord{
		QueryFingerprint: qc.fingerprint,
		ResultID:         input.ResultID,
		Rank:             input.Rank,
		Outcome:          ragquery.FeedbackOutcome(input.Outcome),
		Timestamp:        time.Now(),
		Intent:           qc.intent,
	}

	if s.feedback == nil {
		return nil, FeedbackOutput{Accepted: false}, nil
	}

	if err := s.feedback.Record(rec); err != nil {
		return nil, FeedbackOutput{}, MapError(err)
	}

	return nil, FeedbackOutput{Accepted: true}, nil
}

// remember records enough of resp to translate a later submit_feedback
// call back into a FeedbackRecord.
func (s *Server) remember(resp ragquery.Response) {
	if resp.QueryID == "" {
		return
	}
	ids := make(map[string]bool, len(resp.Results))
	for _, rr := range resp.Results {
		ids[rr.Result.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[resp.QueryID]; !exists {
		s.order = append(s.order, resp.QueryID)
	}
	s.pending[resp.QueryID] = queryContext{
		fingerprint: resp.Fingerprint,
		intent:      resp.Intent,
		resultIDs:   ids,
	}
	for len(s.order) > maxPendingQueries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.pending, oldest)
	}
}

func (s *Server) lookup(queryID string) (queryContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qc, ok := s.pending[queryID]
	return qc, ok
}

// Serve runs the MCP server on the given transport until ctx is
// canceled. Only the stdio transport is implemented.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The MCP server itself stops when
// its context is canceled; Close flushes any buffered feedback.
func (s *Server) Close() error {
	if s.feedback == nil {
		return nil
	}
	return s.feedback.Flush()
}

func detailFromString(s string) ragquery.DetailLevel {
	switch ragquery.DetailLevel(s) {
	case ragquery.DetailCompact:
		return ragquery.DetailCompact
	case ragquery.DetailUltra:
		return ragquery.DetailUltra
	default:
		return ragquery.DetailFull
	}
}
