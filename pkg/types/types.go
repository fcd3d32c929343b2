// Package types contains shared data types used across the grounded-context project.
package types

import (
	"fmt"
	"strings"
)

// CandidateFile is a text file produced by a corpus scan.
type CandidateFile struct {
	Path    string // Path relative to the scan root, slash separated
	Content string // Decoded text, invalid UTF-8 replaced
	Size    int64  // Size on disk in bytes
}

// ScoredFile is a candidate together with its relevance score.
type ScoredFile struct {
	File  CandidateFile
	Score float64
}

// Intent selects which heuristic boost table applies to a recommendation.
type Intent string

const (
	IntentImplement Intent = "implement"
	IntentDebug     Intent = "debug"
	IntentValidate  Intent = "validate"
)

// Intents lists all valid intents in declaration order.
var Intents = []Intent{IntentImplement, IntentDebug, IntentValidate}

// ParseIntent parses an intent name. Empty input yields IntentImplement.
func ParseIntent(s string) (Intent, error) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntentImplement:
		return IntentImplement, nil
	case IntentDebug:
		return IntentDebug, nil
	case IntentValidate:
		return IntentValidate, nil
	}
	return "", fmt.Errorf("%w: %q (valid: implement, debug, validate)", ErrInvalidIntent, s)
}

// VcsSnapshot is a point-in-time summary of version control state.
type VcsSnapshot struct {
	OK                   bool     `json:"ok"`
	Root                 string   `json:"root"`
	Branch               string   `json:"branch"`
	LastCommit           string   `json:"last_commit"`
	Dirty                bool     `json:"dirty"`
	StatusPorcelain      []string `json:"status_porcelain"`
	WorktreeChangedFiles []string `json:"worktree_changed_files"`
	LastCommitFiles      []string `json:"last_commit_files"`
	Error                string   `json:"error,omitempty"`
}

// EnvSpecs describes the server's operating environment and constraints.
type EnvSpecs struct {
	Server  string   `json:"server"`
	Scope   string   `json:"scope"`
	Network string   `json:"network"`
	Notes   []string `json:"notes"`
}

// SearchHit is a single search_repo result.
type SearchHit struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// SearchResult is the result of search_repo.
type SearchResult struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// ContextItem is the grounded content (or failure) for one requested path.
type ContextItem struct {
	Path    string `json:"path"`
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GroundedContext is the result of get_grounded_context.
type GroundedContext struct {
	Root     string        `json:"root"`
	Items    []ContextItem `json:"items"`
	MaxChars int           `json:"max_chars"`
}

// TotalChars returns the number of characters of content across all items.
func (g *GroundedContext) TotalChars() int {
	n := 0
	for _, item := range g.Items {
		n += len([]rune(item.Content))
	}
	return n
}

// RecommendedFile is one entry of the ranked file list.
type RecommendedFile struct {
	Path           string  `json:"path"`
	Score          float64 `json:"score"`
	SnippetPreview string  `json:"snippet_preview"`
}

// Source attributes a recommendation to a repository file.
type Source struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// RecommendationResult is the result of recommend_context.
type RecommendationResult struct {
	Summary            string            `json:"summary"`
	Intent             Intent            `json:"intent"`
	Query              string            `json:"query"`
	Env                EnvSpecs          `json:"env"`
	Git                VcsSnapshot       `json:"git"`
	Warnings           []string          `json:"warnings"`
	RecommendedFiles   []RecommendedFile `json:"recommended_files"`
	RecommendedContext GroundedContext   `json:"recommended_context"`
	WhySelected        []string          `json:"why_selected"`
	Confidence         float64           `json:"confidence"`
	Sources            []Source          `json:"sources"`
}

// Truncate returns the first n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
