// Package textsim implements the one similarity measure spec.md names
// twice over: normalized-token Jaccard similarity, used both by the
// within-run tool memoization in internal/agent and by the cross-run
// Query Cache in internal/cache (spec.md §4.9 step 2). Both callers need
// the exact same normalization (lowercase, strip punctuation but keep
// underscores, split on whitespace) so a cache hit and a memo hit agree
// on what counts as "the same question".
package textsim

import (
	"regexp"
	"strings"
)

var stripPattern = regexp.MustCompile(`[^\w\s]`)

// NormalizeTokens lowercases s, strips punctuation (keeping word
// characters and underscores), and splits on whitespace into a set.
func NormalizeTokens(s string) map[string]bool {
	s = strings.ToLower(s)
	s = stripPattern.ReplaceAllString(s, "")
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| over a and b's normalized token sets.
func Jaccard(a, b string) float64 {
	sa, sb := NormalizeTokens(a), NormalizeTokens(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for tok := range sa {
		if sb[tok] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
