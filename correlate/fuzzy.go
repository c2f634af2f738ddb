package correlate

import (
	"math"
	"net/netip"
	"strings"

	"argus/core"
	"argus/util"
)

// Fuzzy score caps. A fuzzy match never reaches the 1.0 of an exact match.
const (
	textFuzzyCap    = 0.8
	numericFuzzyCap = 0.7
	geoFuzzyCap     = 0.6
)

// subnetScores indexes by the number of leading IPv4 octets shared
var subnetScores = [4]float64{0, 0.25, 0.5, 0.75}

// Matcher holds the fuzzy strategies for one correlation pass
type Matcher struct {
	cfg FuzzyConfig
	geo *GeoCache
}

// NewMatcher creates a matcher. A nil config disables fuzzy matching.
func NewMatcher(cfg *FuzzyConfig, geo *GeoCache) *Matcher {
	m := &Matcher{geo: geo}
	if cfg != nil {
		m.cfg = *cfg
	}
	return m
}

// Score compares two field values: 1.0 when equal, a fuzzy score in (0,1)
// when the field's match class allows it, else 0
func (m *Matcher) Score(def core.FieldDef, a, b interface{}) float64 {
	if valuesEqual(def, a, b) {
		return 1
	}
	if !m.cfg.Enabled {
		return 0
	}

	switch def.Class {
	case core.MatchIP:
		if m.cfg.IPSubnetMatching {
			return IPSubnetScore(core.ToString(a), core.ToString(b))
		}
	case core.MatchText:
		return TextScore(core.ToString(a), core.ToString(b), m.cfg.StringThreshold)
	case core.MatchNumeric:
		x, ok1 := core.ToFloat64(a)
		y, ok2 := core.ToFloat64(b)
		if ok1 && ok2 {
			return NumericScore(x, y, m.cfg.NumericTolerance)
		}
	case core.MatchGeo:
		return GeoScore(m.geo.Normalize(core.ToString(a)), m.geo.Normalize(core.ToString(b)), m.cfg.StringThreshold)
	}
	return 0
}

// valuesEqual is exact equality in the field's type. Strings compare
// case-insensitively.
func valuesEqual(def core.FieldDef, a, b interface{}) bool {
	switch def.Type {
	case core.FieldTypeNumber:
		x, ok1 := core.ToFloat64(a)
		y, ok2 := core.ToFloat64(b)
		return ok1 && ok2 && x == y
	case core.FieldTypeTimestamp:
		x, ok1 := core.ToEpochSeconds(a)
		y, ok2 := core.ToEpochSeconds(b)
		return ok1 && ok2 && x == y
	case core.FieldTypeBool:
		x, ok1 := core.ToBool(a)
		y, ok2 := core.ToBool(b)
		return ok1 && ok2 && x == y
	}
	return strings.EqualFold(strings.TrimSpace(core.ToString(a)), strings.TrimSpace(core.ToString(b)))
}

// IPSubnetScore scores two IPv4 addresses by the leading octets they share:
// 0.25, 0.5 or 0.75 for one, two or three. Identical addresses score 1.
// Anything that is not a pair of IPv4 addresses scores 0.
func IPSubnetScore(a, b string) float64 {
	x, err := netip.ParseAddr(strings.TrimSpace(a))
	if err != nil || !x.Unmap().Is4() {
		return 0
	}
	y, err := netip.ParseAddr(strings.TrimSpace(b))
	if err != nil || !y.Unmap().Is4() {
		return 0
	}

	xa, ya := x.Unmap().As4(), y.Unmap().As4()
	shared := 0
	for shared < 4 && xa[shared] == ya[shared] {
		shared++
	}
	if shared == 4 {
		return 1
	}
	return subnetScores[shared]
}

// TextScore returns similarity*0.8 when the normalised Levenshtein
// similarity reaches threshold, else 0
func TextScore(a, b string, threshold float64) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	sim := util.Similarity(a, b)
	if sim < threshold {
		return 0
	}
	return sim * textFuzzyCap
}

// NumericScore returns (1 - rel/tolerance)*0.7 when the relative
// difference is within tolerance, else 0
func NumericScore(a, b, tolerance float64) float64 {
	if tolerance <= 0 {
		return 0
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	rel := math.Abs(a-b) / denom
	if rel > tolerance {
		return 0
	}
	return (1 - rel/tolerance) * numericFuzzyCap
}

// GeoScore compares normalised place names by string similarity scaled by
// 0.6. It is not a distance metric; nearby places with unrelated names
// score 0.
func GeoScore(a, b string, threshold float64) float64 {
	if a == "" || b == "" {
		return 0
	}
	sim := util.Similarity(a, b)
	if sim < threshold {
		return 0
	}
	return sim * geoFuzzyCap
}
