// Package search implements lexical full-text search over a repository.
package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/internal/scoring"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

// DefaultMaxResults is used when a request does not set MaxResults.
const DefaultMaxResults = 10

// Engine handles search operations.
type Engine struct {
	scanner      corpus.Scanner
	weights      scoring.Weights
	snippetChars int
	logger       *slog.Logger
}

// Config contains search engine configuration.
type Config struct {
	Scanner      corpus.Scanner
	Weights      scoring.Weights
	SnippetChars int // runes kept per snippet
	Logger       *slog.Logger
}

// Request is a search_repo request.
type Request struct {
	Query      string
	Root       string
	MaxResults int
	FileGlobs  []string
}

// New creates a new search engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = 800
	}
	return &Engine{
		scanner:      cfg.Scanner,
		weights:      cfg.Weights,
		snippetChars: cfg.SnippetChars,
		logger:       cfg.Logger,
	}
}

// Search scans the repository once and returns the best matching files.
// The whole query is scored as a single token.
func (e *Engine) Search(ctx context.Context, req Request) (*types.SearchResult, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}

	root, err := corpus.ResolveRoot(req.Root)
	if err != nil {
		return nil, err
	}

	var hits []types.ScoredFile
	for f := range e.scanner.Scan(ctx, root, req.FileGlobs) {
		if s := e.weights.Score(req.Query, f.Path, f.Content); s > 0 {
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

	result := &types.SearchResult{Query: req.Query, Results: make([]types.SearchHit, 0, len(hits))}
	for _, h := range hits {
		result.Results = append(result.Results, types.SearchHit{
			Path:    h.File.Path,
			Score:   h.Score,
			Snippet: types.Truncate(h.File.Content, e.snippetChars),
		})
	}

	e.logger.Debug("search complete", "query", req.Query, "root", root, "results", len(result.Results))
	return result, nil
}
