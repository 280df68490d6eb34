// Package mcp exposes hybrid code search as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	"github.com/Creeper5261/Rikki-sub002/internal/search"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
	"github.com/Creeper5261/Rikki-sub002/pkg/version"
)

const (
	serverName = "codeagent"

	defaultLimit = 5
	maxLimit     = 30
)

// IndexInspector reports on a document store index. *docstore.Client
// satisfies it.
type IndexInspector interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	VectorDims(ctx context.Context, index string) int
}

// Options wires a Server.
type Options struct {
	Searcher  search.Searcher
	Inspector IndexInspector
	Embedder  embed.Embedder
	// RootPath is the workspace searched when a call names none.
	RootPath string
	// Dimensions is the configured vector size, for index_status.
	Dimensions int
}

// Server bridges MCP clients and the hybrid searcher.
type Server struct {
	mcp       *mcp.Server
	searcher  search.Searcher
	inspector IndexInspector
	embedder  embed.Embedder
	rootPath  string
	dims      int
	logger    *slog.Logger
}

// SearchCodeInput is the search_code tool input.
type SearchCodeInput struct {
	Query string `json:"query" jsonschema:"what to look for: a symbol name, file name or natural language description"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 5"`
	Root  string `json:"root,omitempty" jsonschema:"absolute workspace root; defaults to the server's root"`
}

// SearchCodeOutput is the search_code tool output.
type SearchCodeOutput struct {
	Query   string         `json:"query"`
	Root    string         `json:"root"`
	Results []ResultOutput `json:"results"`
}

// ResultOutput is one ranked hit.
type ResultOutput struct {
	FilePath   string  `json:"file_path" jsonschema:"file path relative to the workspace root"`
	SymbolKind string  `json:"symbol_kind,omitempty"`
	SymbolName string  `json:"symbol_name,omitempty"`
	StartLine  int     `json:"start_line,omitempty"`
	EndLine    int     `json:"end_line,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	Truncated  bool    `json:"truncated,omitempty"`
	Score      float64 `json:"score"`
}

// IndexStatusInput is the index_status tool input.
type IndexStatusInput struct {
	Root string `json:"root,omitempty" jsonschema:"absolute workspace root; defaults to the server's root"`
}

// IndexStatusOutput describes the index backing a workspace.
type IndexStatusOutput struct {
	Root             string        `json:"root"`
	Index            string        `json:"index"`
	Exists           bool          `json:"exists"`
	VectorDims       int           `json:"vector_dims,omitempty"`
	ConfiguredDims   int           `json:"configured_dims"`
	DimensionsMatch  bool          `json:"dimensions_match"`
	Embeddings       EmbeddingInfo `json:"embeddings"`
	ServerVersion    string        `json:"server_version"`
	StatusCheckedAt  string        `json:"status_checked_at"`
	InspectionFailed string        `json:"inspection_failed,omitempty"`
}

// EmbeddingInfo describes the active embedder.
type EmbeddingInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
}

// NewServer creates a server with search_code and index_status registered.
func NewServer(opts Options) (*Server, error) {
	if opts.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	s := &Server{
		searcher:  opts.Searcher,
		inspector: opts.Inspector,
		embedder:  opts.Embedder,
		rootPath:  opts.RootPath,
		dims:      opts.Dimensions,
		logger:    slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "search_code",
		Description: "Hybrid code search over the workspace. Combines symbol lookup, file name matching " +
			"and semantic similarity, then returns ranked snippets with file and line locations.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the workspace index exists, its vector dimensions and the active embedder.",
	}, s.handleIndexStatus)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 2))
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, in SearchCodeInput) (
	*mcp.CallToolResult,
	SearchCodeOutput,
	error,
) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return toolError("query cannot be empty"), SearchCodeOutput{}, nil
	}
	root := s.root(in.Root)
	if root == "" {
		return toolError("no workspace root configured; pass root"), SearchCodeOutput{}, nil
	}
	limit := clampLimit(in.Limit, defaultLimit, 1, maxLimit)

	requestID := generateRequestID()
	start := time.Now()
	hits := s.searcher.Search(ctx, root, query, limit)
	s.logger.Info("mcp_search_code",
		slog.String("request_id", requestID),
		slog.String("root", root),
		slog.Int("limit", limit),
		slog.Int("results", len(hits)),
		slog.Duration("took", time.Since(start)))

	out := SearchCodeOutput{Query: query, Root: root, Results: make([]ResultOutput, 0, len(hits))}
	for _, h := range hits {
		out.Results = append(out.Results, ResultOutput{
			FilePath:   h.Hit.FilePath,
			SymbolKind: h.Hit.SymbolKind,
			SymbolName: h.Hit.SymbolName,
			StartLine:  h.Hit.StartLine,
			EndLine:    h.Hit.EndLine,
			Snippet:    h.Hit.Snippet,
			Truncated:  h.Hit.Truncated,
			Score:      h.Score,
		})
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatResults(query, hits)}},
	}, out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, in IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	root := s.root(in.Root)
	if root == "" {
		return toolError("no workspace root configured; pass root"), IndexStatusOutput{}, nil
	}
	return nil, s.Status(ctx, root), nil
}

// Status inspects the index for root.
func (s *Server) Status(ctx context.Context, root string) IndexStatusOutput {
	out := IndexStatusOutput{
		Root:            root,
		Index:           workspace.IndexName(root),
		ConfiguredDims:  s.dims,
		ServerVersion:   version.Version,
		StatusCheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if s.embedder != nil {
		out.Embeddings = EmbeddingInfo{
			Model:      s.embedder.ModelName(),
			Dimensions: s.embedder.Dimensions(),
			Available:  s.embedder.Available(ctx),
		}
	}
	if s.inspector == nil {
		return out
	}
	exists, err := s.inspector.IndexExists(ctx, out.Index)
	if err != nil {
		out.InspectionFailed = err.Error()
		return out
	}
	out.Exists = exists
	if exists {
		out.VectorDims = s.inspector.VectorDims(ctx, out.Index)
		out.DimensionsMatch = out.VectorDims == 0 || out.VectorDims == s.dims
	}
	return out
}

// Serve runs the stdio transport until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_start", slog.String("root", s.rootPath), slog.String("version", version.Version))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return fmt.Errorf("mcp server: %w", err)
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func (s *Server) root(override string) string {
	if r := strings.TrimSpace(override); r != "" {
		return r
	}
	return s.rootPath
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// clampLimit applies def to non-positive values and bounds the result.
func clampLimit(limit, def, lo, hi int) int {
	if limit <= 0 {
		limit = def
	}
	return max(lo, min(hi, limit))
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
