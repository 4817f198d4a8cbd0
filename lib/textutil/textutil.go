package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and drops every space so "Van Der
// Berg" and "vanderberg" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports whether name contains any of the matchers after
// both sides are normalized, or failing that is close enough to one
// of them by Jaro-Winkler similarity.
func MatchName(name string, matchers []string, threshold float64) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		m = NormalizeName(m)
		if m == "" {
			continue
		}
		if strings.Contains(name, m) {
			return true
		}
		if threshold > 0 && matchr.JaroWinkler(name, m, false) >= threshold {
			return true
		}
	}
	return false
}

// Closest returns the candidate most similar to input and its
// similarity, or "" and 0 when there are no candidates.
func Closest(input string, candidates []string) (string, float64) {
	var best string
	var bestSimilarity float64
	for _, c := range candidates {
		similarity := matchr.JaroWinkler(input, c, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = c
		}
	}
	return best, bestSimilarity
}
