// Package scoring implements lexical relevance scoring and intent heuristics.
package scoring

import (
	"math"
	"strings"

	"github.com/spetr/grounded-context-mcp/internal/config"
)

// Weights holds the scoring and confidence constants.
type Weights struct {
	PathMatch       float64 // token appears in the path
	PerOccurrence   float64 // per content occurrence
	OccurrenceCap   float64 // cap on the occurrence contribution
	DefinitionBonus float64 // content contains a definition marker
	DebugBoost      float64
	DirtyBoost      float64 // debug only, requires a usable snapshot
	ValidateBoost   float64
	ImplementBoost  float64
	ConfidenceFloor float64
	ConfidenceCeil  float64
	ConfidenceEmpty float64 // confidence when nothing was ranked
}

// DefaultWeights returns the built-in tuning.
func DefaultWeights() Weights {
	return FromConfig(config.DefaultConfig().Scoring)
}

// FromConfig maps the scoring section of the configuration to Weights.
func FromConfig(c config.ScoringConfig) Weights {
	return Weights{
		PathMatch:       c.PathMatch,
		PerOccurrence:   c.PerOccurrence,
		OccurrenceCap:   c.OccurrenceCap,
		DefinitionBonus: c.DefinitionBonus,
		DebugBoost:      c.DebugBoost,
		DirtyBoost:      c.DirtyBoost,
		ValidateBoost:   c.ValidateBoost,
		ImplementBoost:  c.ImplementBoost,
		ConfidenceFloor: c.ConfidenceFloor,
		ConfidenceCeil:  c.ConfidenceCeil,
		ConfidenceEmpty: c.ConfidenceEmpty,
	}
}

// definitionMarkers hint that a file declares code rather than mentions it.
var definitionMarkers = []string{
	"def ", "class ", "func ", "function ", "fn ", "interface ", "struct ",
}

// Tokenize splits a query on whitespace.
func Tokenize(query string) []string {
	return strings.Fields(query)
}

// Score rates how well a single token matches a file.
func (w Weights) Score(token, path, content string) float64 {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return 0
	}

	score := 0.0
	if strings.Contains(strings.ToLower(path), token) {
		score += w.PathMatch
	}

	lower := strings.ToLower(content)
	if n := strings.Count(lower, token); n > 0 {
		score += math.Min(w.OccurrenceCap, w.PerOccurrence*float64(n))
	}

	for _, m := range definitionMarkers {
		if strings.Contains(lower, m) {
			score += w.DefinitionBonus
			break
		}
	}
	return score
}

// ScoreTokens sums Score over all tokens.
func (w Weights) ScoreTokens(tokens []string, path, content string) float64 {
	total := 0.0
	for _, tok := range tokens {
		total += w.Score(tok, path, content)
	}
	return total
}

var defaultWeights = DefaultWeights()

// Score rates a token with the default weights.
func Score(token, path, content string) float64 {
	return defaultWeights.Score(token, path, content)
}
