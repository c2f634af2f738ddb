package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"source_ip", "sourc_ip", 1},
		{"münchen", "munchen", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
			assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a), "distance is symmetric")
		})
	}
}

func TestLevenshteinWithin(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		max    int
		want   int
		wantOK bool
	}{
		{"equal", "same", "same", 0, 0, true},
		{"within", "kitten", "sitting", 3, 3, true},
		{"at the cutoff", "flaw", "lawn", 2, 2, true},
		{"over the cutoff", "kitten", "sitting", 2, 3, false},
		{"length gap exceeds max", "ip", "destination_ip", 2, 3, false},
		{"empty within", "", "ab", 2, 2, true},
		{"empty over", "", "abc", 2, 3, false},
		{"runes", "münchen", "munchen", 1, 1, true},
		{"unrelated long strings", "abcdefghijklmnop", "qrstuvwxyzabcdef", 2, 3, false},
		{"negative max", "a", "a", -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LevenshteinWithin(tt.a, tt.b, tt.max)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, Levenshtein(tt.a, tt.b), got)
			} else {
				assert.Greater(t, Levenshtein(tt.a, tt.b), tt.max)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("paris", "paris"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 0.8, Similarity("paris", "pari"), 1e-9)
	assert.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)
}
