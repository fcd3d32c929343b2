// Package recommend ranks repository files for a coding task and returns
// grounded context for the best of them.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/internal/grounding"
	"github.com/spetr/grounded-context-mcp/internal/scoring"
	"github.com/spetr/grounded-context-mcp/internal/vcs"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// Defaults applied when a request leaves a limit unset or non-positive.
const (
	DefaultMaxResults         = 5
	DefaultMaxFilesForContext = 3
	DefaultMaxChars           = 6000
	DefaultPreviewChars       = 400
)

const (
	whyDebug     = "Debug intent: boosted likely hot paths and recent activity signals (when available)."
	whyValidate  = "Validate intent: boosted config/dependency files to check support and constraints."
	whyImplement = "Implement intent: boosted common API/service/router patterns."
	whyMatched   = "Selected top matches based on query presence in path/content and deterministic heuristics."
	whyNoMatch   = "No strong matches found; consider refining query keywords."

	warnLocalOnly = "Environment is local-only; network/GitHub API usage may be unsupported."
)

var networkKeywords = []string{"github", "http", "api", "network"}

// Request is a recommend_context request.
type Request struct {
	Query              string
	Intent             types.Intent
	Root               string
	MaxResults         int
	MaxFilesForContext int
	MaxChars           int
}

// Engine orchestrates scanning, scoring, ranking and context collection.
// It holds no state between calls.
type Engine struct {
	scanner      corpus.Scanner
	prober       vcs.Prober
	collector    *grounding.Collector
	weights      scoring.Weights
	env          types.EnvSpecs
	previewChars int
	logger       *slog.Logger
}

// Config contains engine dependencies.
type Config struct {
	Scanner      corpus.Scanner
	Prober       vcs.Prober
	Weights      scoring.Weights
	Env          types.EnvSpecs
	PreviewChars int
	Logger       *slog.Logger
}

// New creates a recommendation engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}
	return &Engine{
		scanner:      cfg.Scanner,
		prober:       cfg.Prober,
		collector:    grounding.NewCollector(cfg.Logger),
		weights:      cfg.Weights,
		env:          cfg.Env,
		previewChars: cfg.PreviewChars,
		logger:       cfg.Logger,
	}
}

// Recommend ranks files for the query and intent. Only an unusable root or
// a cancelled context produce an error; degraded signals such as a failed
// git probe are reported inside the result.
func (e *Engine) Recommend(ctx context.Context, req Request) (*types.RecommendationResult, error) {
	req = withDefaults(req)

	root, err := corpus.ResolveRoot(req.Root)
	if err != nil {
		return nil, err
	}

	snap := e.prober.Snapshot(ctx, root)

	ranked, err := e.rank(ctx, root, req, &snap)
	if err != nil {
		return nil, err
	}

	files := make([]types.RecommendedFile, 0, len(ranked))
	sources := make([]types.Source, 0, len(ranked))
	for _, r := range ranked {
		files = append(files, types.RecommendedFile{
			Path:           r.File.Path,
			Score:          r.Score,
			SnippetPreview: types.Truncate(r.File.Content, e.previewChars),
		})
		sources = append(sources, types.Source{Type: "repo", Path: r.File.Path})
	}

	contextPaths := make([]string, 0, req.MaxFilesForContext)
	for _, f := range files[:min(len(files), req.MaxFilesForContext)] {
		contextPaths = append(contextPaths, f.Path)
	}
	grounded, err := e.collector.Collect(ctx, root, contextPaths, req.MaxChars)
	if err != nil {
		return nil, err
	}

	result := &types.RecommendationResult{
		Summary: fmt.Sprintf("Recommended %d file(s) for intent='%s'. Returning grounded context for top %d file(s).",
			len(files), req.Intent, len(grounded.Items)),
		Intent:             req.Intent,
		Query:              req.Query,
		Env:                e.env,
		Git:                snap,
		Warnings:           warnings(req.Intent, e.env, req.Query),
		RecommendedFiles:   files,
		RecommendedContext: *grounded,
		WhySelected:        whySelected(req.Intent, len(files) > 0),
		Confidence:         e.weights.Confidence(ranked),
		Sources:            sources,
	}

	e.logger.Debug("recommendation complete",
		"query", req.Query,
		"intent", req.Intent,
		"root", root,
		"ranked", len(files),
		"context_items", len(grounded.Items),
		"context_chars", grounded.TotalChars(),
		"confidence", result.Confidence,
		"vcs_ok", snap.OK,
	)
	return result, nil
}

// rank scores every scanned file, applies intent boosts, drops non-positive
// scores and returns the top MaxResults in stable descending order.
func (e *Engine) rank(ctx context.Context, root string, req Request, snap *types.VcsSnapshot) ([]types.ScoredFile, error) {
	tokens := scoring.Tokenize(req.Query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var hits []types.ScoredFile
	scanned := 0
	for f := range e.scanner.Scan(ctx, root, nil) {
		scanned++
		s := e.weights.ScoreTokens(tokens, f.Path, f.Content)
		s = e.weights.ApplyBoost(s, f.Path, req.Intent, snap.OK, snap)
		if s > 0 {
			hits = append(hits, types.ScoredFile{File: f, Score: s})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > req.MaxResults {
		hits = hits[:req.MaxResults]
	}

	e.logger.Debug("ranked candidates", "tokens", len(tokens), "scanned", scanned, "kept", len(hits))
	return hits, nil
}

func withDefaults(req Request) Request {
	if req.Intent == "" {
		req.Intent = types.IntentImplement
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}
	if req.MaxFilesForContext <= 0 {
		req.MaxFilesForContext = DefaultMaxFilesForContext
	}
	if req.MaxChars <= 0 {
		req.MaxChars = DefaultMaxChars
	}
	return req
}

func whySelected(intent types.Intent, matched bool) []string {
	why := make([]string, 0, 2)
	switch intent {
	case types.IntentDebug:
		why = append(why, whyDebug)
	case types.IntentValidate:
		why = append(why, whyValidate)
	default:
		why = append(why, whyImplement)
	}
	if matched {
		return append(why, whyMatched)
	}
	return append(why, whyNoMatch)
}

func warnings(intent types.Intent, env types.EnvSpecs, query string) []string {
	out := []string{}
	if intent != types.IntentValidate {
		return out
	}
	if !strings.Contains(strings.ToLower(env.Scope), "local") {
		return out
	}
	q := strings.ToLower(query)
	for _, k := range networkKeywords {
		if strings.Contains(q, k) {
			return append(out, warnLocalOnly)
		}
	}
	return out
}
