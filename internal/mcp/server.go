package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docfuse/internal/config"
	"github.com/Aman-CERP/docfuse/internal/ingest"
	"github.com/Aman-CERP/docfuse/internal/search"
	"github.com/Aman-CERP/docfuse/pkg/version"
)

const (
	defaultNumResults = 5
	maxNumResults     = 50
)

// Searcher answers queries. *search.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) (*search.Response, error)
}

// StatusProvider reports index state. *ingest.Service implements it.
type StatusProvider interface {
	Status(ctx context.Context) (*ingest.Status, error)
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: "search",
		Description: "Search the project documentation. Combines keyword and semantic ranking and returns " +
			"numbered sources with the matching passage. Cite results as [Source N].",
	},
	{
		Name:        "index_status",
		Description: "Report how many documents and chunks are indexed and whether semantic ranking is active.",
	},
}

// Server is the MCP server for docfuse.
type Server struct {
	mcp        *mcp.Server
	engine     Searcher
	status     StatusProvider
	numResults int
	logger     *slog.Logger
}

// NewServer creates a server. status may be nil, in which case
// index_status reports an error.
func NewServer(engine Searcher, status StatusProvider, cfg *config.Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:     engine,
		status:     status,
		numResults: clampLimit(cfg.Search.NumResults, defaultNumResults, 1, maxNumResults),
		logger:     slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "docfuse", Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		in := SearchInput{}
		in.Query, _ = args["query"].(string)
		in.Mode, _ = args["mode"].(string)
		if n, ok := args["num_results"].(float64); ok {
			in.NumResults = int(n)
		}
		text, _, err := s.search(ctx, in)
		return text, err
	case "index_status":
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	text, resp, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, ToSearchOutput(resp), nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (string, *search.Response, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "", nil, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	mode, ok := search.ParseMode(in.Mode)
	if !ok {
		return "", nil, NewInvalidParamsError(fmt.Sprintf("mode must be hybrid, lexical or semantic, got %q", in.Mode))
	}

	requestID := uuid.NewString()
	opts := search.Options{
		NumResults: clampLimit(in.NumResults, s.numResults, 1, maxNumResults),
		Mode:       mode,
	}

	start := time.Now()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("num_results", opts.NumResults),
		slog.String("mode", string(mode)))

	resp, err := s.engine.Search(ctx, query, opts)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", nil, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.String("mode", string(resp.Mode)),
		slog.Int("result_count", len(resp.Hits)),
		slog.Duration("duration", time.Since(start)))
	return FormatSearchResults(resp), resp, nil
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	if s.status == nil {
		return nil, MapError(errors.New("status provider not configured"))
	}
	st, err := s.status.Status(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	out := &IndexStatusOutput{
		DocsDir:     st.DocsDir,
		Documents:   st.Documents,
		Chunks:      st.Chunks,
		ChunkSize:   st.ChunkSize,
		StepSize:    st.StepSize,
		Vectors:     st.Vectors,
		Model:       st.Model,
		Dimensions:  st.Dimensions,
		VectorState: st.VectorState,
		Semantic:    st.Semantic,
		Backend:     st.Backend,
	}
	if !st.UpdatedAt.IsZero() {
		out.LastIngest = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out, nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
