package util

// Levenshtein returns the edit distance between a and b, counted in runes
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// two rolling rows instead of the full matrix
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
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
	return prev[len(rb)]
}

// LevenshteinWithin reports the edit distance between a and b when it is at
// most limit. It stops as soon as every cell of a row exceeds limit, so long
// unrelated strings cost little. The returned distance is only meaningful
// when ok is true.
func LevenshteinWithin(a, b string, limit int) (int, bool) {
	if limit < 0 {
		return 0, false
	}
	ra, rb := []rune(a), []rune(b)
	if diff := len(ra) - len(rb); diff > limit || -diff > limit {
		return limit + 1, false
	}
	if len(ra) == 0 || len(rb) == 0 {
		d := len(ra) + len(rb)
		return d, d <= limit
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		// distances never shrink from one row to the next
		if rowMin > limit {
			return limit + 1, false
		}
		prev, curr = curr, prev
	}
	d := prev[len(rb)]
	return d, d <= limit
}

// Similarity returns 1 - distance/maxLen, in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}
