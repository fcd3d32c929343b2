package scoring

import (
	"math"
	"strings"

	"github.com/spetr/grounded-context-mcp/pkg/types"
)

var (
	debugKeywords     = []string{"auth", "middleware", "error", "exception", "logging", "trace", "bug", "fix"}
	validateKeywords  = []string{"pyproject.toml", "requirements", "environment", "docker", "compose", "config", "go.mod", "go.sum", "package.json", "cargo.toml"}
	implementKeywords = []string{"router", "api", "service", "handler", "controller", "endpoint"}
)

// ApplyBoost adjusts a base score for the given intent. Scores that are not
// positive are returned unchanged so heuristics never promote a non-match.
// snap may be nil.
func (w Weights) ApplyBoost(base float64, path string, intent types.Intent, vcsOK bool, snap *types.VcsSnapshot) float64 {
	if base <= 0 {
		return base
	}

	p := normPath(path)
	switch intent {
	case types.IntentDebug:
		if containsAny(p, debugKeywords) {
			base += w.DebugBoost
		}
		if vcsOK && snap != nil && snap.Dirty {
			base += w.DirtyBoost
		}
	case types.IntentValidate:
		if containsAny(p, validateKeywords) {
			base += w.ValidateBoost
		}
	default:
		if containsAny(p, implementKeywords) {
			base += w.ImplementBoost
		}
	}
	return base
}

// Confidence maps the top ranked score to a value in [floor, ceil], rounded
// to two decimals. With nothing ranked it returns the empty confidence.
func (w Weights) Confidence(ranked []types.ScoredFile) float64 {
	if len(ranked) == 0 {
		return round2(w.ConfidenceEmpty)
	}
	c := w.ConfidenceFloor + ranked[0].Score/10
	c = math.Max(w.ConfidenceFloor, math.Min(w.ConfidenceCeil, c))
	return round2(c)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// normPath lowercases a path and unifies separators.
func normPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
