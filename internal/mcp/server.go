// Package mcp implements the MCP server for grounded repository context.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/internal/recommend"
	"github.com/spetr/grounded-context-mcp/internal/toolset"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// Tool names.
const (
	ToolSearchRepo         = "search_repo"
	ToolGitInsights        = "git_insights"
	ToolGetGroundedContext = "get_grounded_context"
	ToolEnvSpecs           = "env_specs"
	ToolRecommendContext   = "recommend_context"
)

// Server implements the MCP server.
type Server struct {
	mcpServer   *server.MCPServer
	tools       *toolset.Toolset
	config      *config.Config
	defaultRoot string
	logger      *slog.Logger
}

// Config contains server configuration.
type Config struct {
	Toolset     *toolset.Toolset
	Config      *config.Config
	DefaultRoot string // used when a call omits root, "." if empty
	Logger      *slog.Logger
}

// New creates a new MCP server.
func New(cfg Config) (*Server, error) {
	if cfg.Toolset == nil {
		return nil, errors.New("toolset is required")
	}
	if cfg.Config == nil {
		cfg.Config = config.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultRoot == "" {
		cfg.DefaultRoot = "."
	}

	s := &Server{
		tools:       cfg.Toolset,
		config:      cfg.Config,
		defaultRoot: cfg.DefaultRoot,
		logger:      cfg.Logger,
	}

	mcpServer := server.NewMCPServer(
		cfg.Config.MCP.Name,
		cfg.Config.MCP.Version,
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(s.withRequestLogging),
		server.WithRecovery(),
		server.WithLogging(),
		server.WithInstructions("Local-only repository context. Start with recommend_context; use get_grounded_context for exact file content."),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s, nil
}

// registerTools registers all MCP tools.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	// search_repo - Lexical search
	mcpServer.AddTool(mcp.NewTool(ToolSearchRepo,
		mcp.WithDescription("Search the local repository and return grounded snippets (no network)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for (matched case-insensitively in paths and content)")),
		mcp.WithString("root", mcp.Description("Repository root (default: server project directory)")),
		mcp.WithNumber("max_results", mcp.Description("Maximum results (default 10)")),
		mcp.WithArray("file_globs", mcp.WithStringItems(), mcp.Description("Only search files matching these globs, e.g. **/*.go")),
		mcp.WithOutputSchema[types.SearchResult](),
	), s.handleSearchRepo)

	// git_insights - Fixed git metadata queries
	mcpServer.AddTool(mcp.NewTool(ToolGitInsights,
		mcp.WithDescription("Return git branch, last commit, working tree status and files changed by the last commit."),
		mcp.WithString("root", mcp.Description("Repository root (default: server project directory)")),
		mcp.WithOutputSchema[types.VcsSnapshot](),
	), s.handleGitInsights)

	// get_grounded_context - Literal file content
	mcpServer.AddTool(mcp.NewTool(ToolGetGroundedContext,
		mcp.WithDescription("Return grounded file content for a set of paths (safe, truncated)."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(), mcp.Description("File paths relative to root")),
		mcp.WithString("root", mcp.Description("Repository root (default: server project directory)")),
		mcp.WithNumber("max_chars", mcp.Description(fmt.Sprintf("Total character budget across all files (default %d)", s.config.Limits.DefaultMaxChars))),
		mcp.WithOutputSchema[types.GroundedContext](),
	), s.handleGetGroundedContext)

	// env_specs - Capability descriptor
	mcpServer.AddTool(mcp.NewTool(ToolEnvSpecs,
		mcp.WithDescription("Describe the server environment and its constraints."),
		mcp.WithOutputSchema[types.EnvSpecs](),
	), s.handleEnvSpecs)

	// recommend_context - Ranked files plus grounded context
	mcpServer.AddTool(mcp.NewTool(ToolRecommendContext,
		mcp.WithDescription("Recommend the most relevant files for a coding task, then return grounded context for the top files. "+
			"intent: implement prefers API/service/router files; debug boosts likely hot paths and uses git status when available; "+
			"validate prioritizes config and dependency files and surfaces unsupported-environment risks."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Task description or keywords")),
		mcp.WithString("intent", mcp.Enum(intentNames()...), mcp.DefaultString("implement"), mcp.Description("Task intent")),
		mcp.WithString("root", mcp.Description("Repository root (default: server project directory)")),
		mcp.WithNumber("max_results", mcp.Description(fmt.Sprintf("Maximum ranked files (default %d)", recommend.DefaultMaxResults))),
		mcp.WithNumber("max_files_for_context", mcp.Description(fmt.Sprintf("How many top files to include as grounded context (default %d)", recommend.DefaultMaxFilesForContext))),
		mcp.WithNumber("max_chars", mcp.Description(fmt.Sprintf("Total grounded context character budget (default %d)", s.config.Limits.DefaultMaxChars))),
		mcp.WithOutputSchema[types.RecommendationResult](),
	), s.handleRecommendContext)
}

func (s *Server) handleSearchRepo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.tools.SearchRepo(ctx, toolset.SearchArgs{
		Query:      query,
		Root:       s.root(req),
		MaxResults: req.GetInt("max_results", 0),
		FileGlobs:  req.GetStringSlice("file_globs", nil),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return structured(result), nil
}

func (s *Server) handleGitInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return structured(s.tools.GitInsights(ctx, s.root(req))), nil
}

func (s *Server) handleGetGroundedContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := req.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.tools.GetGroundedContext(ctx, paths, s.root(req), req.GetInt("max_chars", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get grounded context failed: %v", err)), nil
	}
	return structured(result), nil
}

func (s *Server) handleEnvSpecs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := s.tools.EnvSpecs()
	return structured(&env), nil
}

func (s *Server) handleRecommendContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	intent, err := types.ParseIntent(req.GetString("intent", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.tools.RecommendContext(ctx, recommend.Request{
		Query:              query,
		Intent:             intent,
		Root:               s.root(req),
		MaxResults:         req.GetInt("max_results", 0),
		MaxFilesForContext: req.GetInt("max_files_for_context", 0),
		MaxChars:           req.GetInt("max_chars", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recommend failed: %v", err)), nil
	}
	return structured(result), nil
}

// withRequestLogging tags each tool call with a request id and logs its outcome.
func (s *Server) withRequestLogging(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := s.logger.With("request_id", uuid.NewString(), "tool", req.Params.Name)
		start := time.Now()
		logger.Debug("tool call started", "args", req.GetArguments())

		result, err := next(ctx, req)

		switch {
		case err != nil:
			logger.Error("tool call failed", "error", err, "elapsed", time.Since(start))
		case result != nil && result.IsError:
			logger.Warn("tool call returned error", "elapsed", time.Since(start))
		default:
			logger.Info("tool call completed", "elapsed", time.Since(start))
		}
		return result, err
	}
}

func intentNames() []string {
	names := make([]string, len(types.Intents))
	for i, intent := range types.Intents {
		names[i] = string(intent)
	}
	return names
}

// root returns the root argument or the server default.
func (s *Server) root(req mcp.CallToolRequest) string {
	if r := req.GetString("root", ""); r != "" {
		return r
	}
	return s.defaultRoot
}

// structured wraps a result as structured content with an indented JSON
// text fallback.
func structured(v any) *mcp.CallToolResult {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultStructured(v, string(text))
}

// HandleMessage processes a single JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	errLog := slog.NewLogLogger(s.logger.Handler(), slog.LevelError)
	return server.ServeStdio(s.mcpServer, server.WithErrorLogger(errLog))
}
