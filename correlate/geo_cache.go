package correlate

import (
	"fmt"
	"strings"
	"unicode"

	"argus/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultGeoCacheSize is used when a non-positive size is requested
const DefaultGeoCacheSize = 1024

// placeAliases folds common abbreviations onto one spelling
var placeAliases = map[string]string{
	"us":                       "united states",
	"usa":                      "united states",
	"united states of america": "united states",
	"uk":                       "united kingdom",
	"gb":                       "united kingdom",
	"great britain":            "united kingdom",
	"uae":                      "united arab emirates",
	"nyc":                      "new york",
	"new york city":            "new york",
	"sf":                       "san francisco",
	"la":                       "los angeles",
}

// placePrefixes are expanded at the start of a name ("st louis")
var placePrefixes = map[string]string{
	"st":  "saint",
	"ste": "sainte",
	"ft":  "fort",
	"mt":  "mount",
}

// GeoCache memoises normalised place names. It is owned by whoever
// creates it and handed to the engine explicitly; the underlying LRU is
// safe for concurrent use.
type GeoCache struct {
	names *lru.Cache[string, string]
}

// NewGeoCache creates a cache holding up to size normalised names
func NewGeoCache(size int) (*GeoCache, error) {
	if size <= 0 {
		size = DefaultGeoCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create geo cache: %w", err)
	}
	return &GeoCache{names: c}, nil
}

// Normalize lower-cases a place name, strips punctuation, collapses
// whitespace and folds known abbreviations
func (g *GeoCache) Normalize(name string) string {
	if g == nil {
		return normalizePlace(name)
	}
	if v, ok := g.names.Get(name); ok {
		metrics.GeoCacheLookups.WithLabelValues("hit").Inc()
		return v
	}
	metrics.GeoCacheLookups.WithLabelValues("miss").Inc()
	v := normalizePlace(name)
	g.names.Add(name, v)
	return v
}

// Len returns the number of cached names
func (g *GeoCache) Len() int {
	if g == nil {
		return 0
	}
	return g.names.Len()
}

func normalizePlace(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return ""
	}
	if full, ok := placePrefixes[fields[0]]; ok && len(fields) > 1 {
		fields[0] = full
	}
	joined := strings.Join(fields, " ")
	if alias, ok := placeAliases[joined]; ok {
		return alias
	}
	return joined
}
