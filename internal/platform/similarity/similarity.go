// Package similarity scores free-text names on a 0-100 scale for entity
// resolution. The default scorer uses partial-ratio semantics: the score
// of the best-aligned substring of the longer string against the whole
// shorter string.
package similarity

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Scorer rates how alike two strings are, from 0 (unrelated) to 100
// (identical). Resolution services take a Scorer so the matching
// behavior stays pluggable.
type Scorer func(a, b string) int

// Ratio is the plain Levenshtein similarity of the two whole strings.
func Ratio(a, b string) int {
	return toScale(levenshtein.Similarity(fold(a), fold(b), nil))
}

// PartialRatio slides the shorter string across the longer one and
// returns the similarity of the best-matching window.
func PartialRatio(a, b string) int {
	a, b = fold(a), fold(b)
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	window := len(shorter)
	best := 0.0
	for start := 0; start+window <= len(longer); start++ {
		score := levenshtein.Similarity(string(shorter), string(longer[start:start+window]), nil)
		if score > best {
			best = score
		}
		if best == 1.0 {
			break
		}
	}

	return toScale(best)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toScale(score float64) int {
	return int(score*100 + 0.5)
}
