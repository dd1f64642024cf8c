package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/fttf/internal/backend"
	"github.com/Aman-CERP/fttf/internal/search"
	"github.com/Aman-CERP/fttf/pkg/version"
)

const (
	serverName = "fttf"

	defaultToolLimit = 10
	maxToolLimit     = 100
)

// Backend is the part of *backend.Backend the server uses.
type Backend interface {
	Status() backend.Status
	PeekPageStatus(ctx context.Context, url string) (backend.PageStatus, error)
	Search(ctx context.Context, opts search.FullTextOptions) (*search.FullTextResults, error)
	SearchTrigram(ctx context.Context, query string, limit int) ([]search.ScoredResult, error)
	SearchSemantic(ctx context.Context, query string, opts search.SemanticOptions) ([]search.ScoredResult, error)
	GetStats(ctx context.Context) (backend.Stats, error)
}

var _ Backend = (*backend.Backend)(nil)

// Server is the MCP server over the history backend.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server with the history tools registered.
func NewServer(b Backend, opts ...Option) (*Server, error) {
	if b == nil {
		return nil, errors.New("backend is required")
	}
	s := &Server{backend: b, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run runs the server over t.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("mcp_server_started", slog.String("version", version.Version))
	err := s.mcp.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_history",
		Description: "Search the pages you have visited in your browser. Full-text mode matches words " +
			"(the last one as a prefix) and ranks search engines and shopping sites below other pages; " +
			"trigram mode tolerates typos; semantic mode matches by meaning.",
	}, s.searchHistoryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "page_status",
		Description: "Check whether a URL is stored in the history, how it would be indexed under the blacklist rules, and whether its content is still missing.",
	}, s.pageStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report whether the history database is ready, how many pages and fragments it holds, the embedding model, and queued or failed background tasks.",
	}, s.indexStatsHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 3))
}

func (s *Server) searchHistoryHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchHistoryInput) (
	*mcp.CallToolResult,
	SearchHistoryOutput,
	error,
) {
	start := time.Now()
	requestID := generateRequestID()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchHistoryOutput{}, NewInvalidParamsError("query parameter is required")
	}
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if mode == "" {
		mode = ModeFullText
	}
	limit := clampLimit(input.Limit, defaultToolLimit, maxToolLimit)

	out := SearchHistoryOutput{Query: query, Mode: mode}
	switch mode {
	case ModeFullText:
		order, err := search.ParseOrderBy(input.OrderBy)
		if err != nil {
			return nil, SearchHistoryOutput{}, NewInvalidParamsError(err.Error())
		}
		res, err := s.backend.Search(ctx, search.FullTextOptions{
			Query: query, Limit: limit, Offset: input.Offset, OrderBy: order,
		})
		if err != nil {
			return nil, SearchHistoryOutput{}, s.toolError(requestID, "search_history", err)
		}
		out.Query = res.Query
		out.Total = int(res.Count)
		out.PerfMs = res.PerfMs
		out.Results = fullTextHits(res)

	case ModeTrigram:
		res, err := s.backend.SearchTrigram(ctx, query, limit)
		if err != nil {
			return nil, SearchHistoryOutput{}, s.toolError(requestID, "search_history", err)
		}
		out.Results = scoredHits(res)
		out.Total = len(out.Results)

	case ModeSemantic:
		opts := search.SemanticOptions{Limit: limit}
		if input.Threshold != nil {
			opts.Threshold = *input.Threshold
		}
		res, err := s.backend.SearchSemantic(ctx, query, opts)
		if err != nil {
			return nil, SearchHistoryOutput{}, s.toolError(requestID, "search_history", err)
		}
		out.Results = scoredHits(res)
		out.Total = len(out.Results)

	default:
		return nil, SearchHistoryOutput{}, NewInvalidParamsError("mode must be fulltext, trigram or semantic")
	}
	if out.PerfMs == 0 {
		out.PerfMs = float64(time.Since(start).Microseconds()) / 1000
	}

	s.logger.Info("search_history_completed",
		slog.String("request_id", requestID),
		slog.String("mode", mode),
		slog.Int("result_count", len(out.Results)),
		slog.Duration("duration", time.Since(start)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatHistoryResults(out)}},
	}, out, nil
}

func (s *Server) pageStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input PageStatusInput) (
	*mcp.CallToolResult,
	PageStatusOutput,
	error,
) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, PageStatusOutput{}, NewInvalidParamsError("url parameter is required")
	}
	st, err := s.backend.PeekPageStatus(ctx, input.URL)
	if err != nil {
		return nil, PageStatusOutput{}, s.toolError(generateRequestID(), "page_status", err)
	}
	return nil, PageStatusOutput{
		NormalizedURL: st.NormalizedURL,
		IndexLevel:    st.IndexLevel,
		Stored:        st.DocumentID != 0,
		ShouldIndex:   st.ShouldIndex,
		DocumentID:    st.DocumentID,
		Error:         st.Error,
	}, nil
}

// indexStatsHandler reports readiness even when the database is not open,
// so clients can tell a broken setup from an empty history.
func (s *Server) indexStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatsInput) (
	*mcp.CallToolResult,
	IndexStatsOutput,
	error,
) {
	status := s.backend.Status()
	out := IndexStatsOutput{Ready: status.OK, State: string(status.State), Error: status.Error}
	if !status.OK {
		return nil, out, nil
	}

	st, err := s.backend.GetStats(ctx)
	if err != nil {
		return nil, IndexStatsOutput{}, s.toolError(generateRequestID(), "index_stats", err)
	}
	out.Stats = st.Stats
	out.SchemaVersion = st.SchemaVersion
	out.EmbeddingModel = st.EmbeddingModel
	out.VectorIndex = st.VectorIndex
	out.SemanticSearch = st.EmbeddingModel != "" && st.FragmentsWithVectors > 0
	return nil, out, nil
}

func (s *Server) toolError(requestID, tool string, err error) error {
	mapped := MapError(err)
	s.logger.Error(tool+"_failed",
		slog.String("request_id", requestID),
		slog.Int("code", mapped.Code),
		slog.String("error", err.Error()))
	return mapped
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
