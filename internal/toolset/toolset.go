// Package toolset exposes the grounded-context operations as plain Go methods,
// independent of any transport.
package toolset

import (
	"context"
	"log/slog"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/internal/grounding"
	"github.com/spetr/grounded-context-mcp/internal/recommend"
	"github.com/spetr/grounded-context-mcp/internal/scoring"
	"github.com/spetr/grounded-context-mcp/internal/search"
	"github.com/spetr/grounded-context-mcp/internal/vcs"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// Environment descriptor values.
const (
	EnvScope   = "local repo only"
	EnvNetwork = "disabled/not required"
)

var envNotes = []string{
	"No GitHub API",
	"Tools return grounded snippets with file paths",
	"Stable schemas enforced via snapshot tests",
}

// Toolset implements the five tools.
type Toolset struct {
	cfg       *config.Config
	prober    vcs.Prober
	search    *search.Engine
	recommend *recommend.Engine
	collector *grounding.Collector
	logger    *slog.Logger
}

// Config contains toolset dependencies.
type Config struct {
	Scanner corpus.Scanner
	Prober  vcs.Prober
	Config  *config.Config // nil uses defaults
	Logger  *slog.Logger
}

// SearchArgs are the search_repo arguments.
type SearchArgs struct {
	Query      string
	Root       string
	MaxResults int
	FileGlobs  []string
}

// New creates a toolset from explicit dependencies.
func New(cfg Config) *Toolset {
	if cfg.Config == nil {
		cfg.Config = config.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Toolset{
		cfg:       cfg.Config,
		prober:    cfg.Prober,
		collector: grounding.NewCollector(cfg.Logger),
		logger:    cfg.Logger,
	}
	weights := scoring.FromConfig(cfg.Config.Scoring)

	t.search = search.New(search.Config{
		Scanner:      cfg.Scanner,
		Weights:      weights,
		SnippetChars: cfg.Config.Limits.SnippetChars,
		Logger:       cfg.Logger,
	})
	t.recommend = recommend.New(recommend.Config{
		Scanner:      cfg.Scanner,
		Prober:       cfg.Prober,
		Weights:      weights,
		Env:          t.EnvSpecs(),
		PreviewChars: cfg.Config.Limits.PreviewChars,
		Logger:       cfg.Logger,
	})
	return t
}

// NewLocal creates a toolset backed by the local filesystem and git binary.
func NewLocal(cfg *config.Config, logger *slog.Logger) *Toolset {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	runner := vcs.NewExecRunner(cfg.VCS.Binary, logger)
	return New(Config{
		Scanner: corpus.NewFSScanner(cfg.Scan, logger),
		Prober:  vcs.NewProbe(runner, cfg, logger),
		Config:  cfg,
		Logger:  logger,
	})
}

// SearchRepo runs search_repo.
func (t *Toolset) SearchRepo(ctx context.Context, args SearchArgs) (*types.SearchResult, error) {
	return t.search.Search(ctx, search.Request(args))
}

// GitInsights runs git_insights. It never fails; an unusable root is
// reported as OK=false.
func (t *Toolset) GitInsights(ctx context.Context, root string) *types.VcsSnapshot {
	resolved, err := corpus.ResolveRoot(root)
	if err != nil {
		return &types.VcsSnapshot{
			Root:                 root,
			StatusPorcelain:      []string{},
			WorktreeChangedFiles: []string{},
			LastCommitFiles:      []string{},
			Error:                err.Error(),
		}
	}
	snap := t.prober.Snapshot(ctx, resolved)
	return &snap
}

// GetGroundedContext runs get_grounded_context. A non-positive maxChars
// uses the configured default.
func (t *Toolset) GetGroundedContext(ctx context.Context, paths []string, root string, maxChars int) (*types.GroundedContext, error) {
	if maxChars <= 0 {
		maxChars = t.cfg.Limits.DefaultMaxChars
	}
	resolved, err := corpus.ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	return t.collector.Collect(ctx, resolved, paths, maxChars)
}

// EnvSpecs returns the constant environment descriptor.
func (t *Toolset) EnvSpecs() types.EnvSpecs {
	return types.EnvSpecs{
		Server:  t.cfg.MCP.Name,
		Scope:   EnvScope,
		Network: EnvNetwork,
		Notes:   append([]string(nil), envNotes...),
	}
}

// RecommendContext runs recommend_context.
func (t *Toolset) RecommendContext(ctx context.Context, req recommend.Request) (*types.RecommendationResult, error) {
	if req.MaxChars <= 0 {
		req.MaxChars = t.cfg.Limits.DefaultMaxChars
	}
	return t.recommend.Recommend(ctx, req)
}
