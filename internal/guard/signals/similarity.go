package signals

import "unicode/utf8"

// Similarity reports how close two strings are on a 0.0 (nothing in
// common) to 1.0 (identical) scale, based on their edit distance relative
// to the longer string.
func Similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0.0
	}

	longest := max(utf8.RuneCountInString(s1), utf8.RuneCountInString(s2))

	return 1.0 - float64(EditDistance(s1, s2))/float64(longest)
}

// EditDistance returns the Levenshtein distance between two strings: the
// minimum number of single-rune insertions, deletions, or substitutions
// turning one into the other.
func EditDistance(s1, s2 string) int {
	a := []rune(s1)
	b := []rune(s2)

	// Two rolling rows are enough, each cell only looks one row back.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i

		for j := 1; j <= len(b); j++ {
			substitution := prev[j-1]
			if a[i-1] != b[j-1] {
				substitution++
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, substitution)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
