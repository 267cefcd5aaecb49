package googlebooks

import (
	"github.com/lehigh-university-libraries/bookmerge/internal/normalize"
)

// Similarity is 1 - levenshtein/maxLen over the key forms of a and b, 0 when
// either is empty.
func Similarity(a, b string) float64 {
	ra := []rune(normalize.Key(a))
	rb := []rune(normalize.Key(b))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	maxLen := max(len(ra), len(rb))
	return 1.0 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

// levenshteinDistance uses two rolling rows
func levenshteinDistance(s1, s2 []rune) int {
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
