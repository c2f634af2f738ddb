package search

import (
	"strings"
)

// globSegments splits a glob-form pattern on unescaped '*' and unescapes
// each literal segment. "a*b*" yields ["a", "b", ""].
func globSegments(pattern string) []string {
	var segs []string
	var cur strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			cur.WriteByte(pattern[i])
		case c == '*':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(segs, cur.String())
}

// matchGlob reports whether text matches pattern, where '*' matches zero or
// more characters. Runs in O(len(text) * segments) without backtracking.
func matchGlob(pattern, text string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
		text = strings.ToLower(text)
	}

	segs := globSegments(pattern)
	if len(segs) == 1 {
		return segs[0] == text
	}

	first, last := segs[0], segs[len(segs)-1]
	if !strings.HasPrefix(text, first) {
		return false
	}
	text = text[len(first):]

	for _, mid := range segs[1 : len(segs)-1] {
		idx := strings.Index(text, mid)
		if idx < 0 {
			return false
		}
		text = text[idx+len(mid):]
	}

	return strings.HasSuffix(text, last)
}
