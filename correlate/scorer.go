package correlate

import (
	"argus/core"
)

// Confidence buckets a correlation score
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Fixed confidence thresholds
const (
	highConfidence   = 0.8
	mediumConfidence = 0.5
)

// ConfidenceFor buckets a score: >= 0.8 High, >= 0.5 Medium, else Low
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= highConfidence:
		return ConfidenceHigh
	case score >= mediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MatchType summarises the per-field outcomes of a pair
type MatchType string

const (
	MatchTypeExact   MatchType = "Exact"
	MatchTypeFuzzy   MatchType = "Fuzzy"
	MatchTypePartial MatchType = "Partial"
)

// FieldOutcome is the comparison result for one correlation field
type FieldOutcome struct {
	Field string
	Score float64
	// Resolved is false when either record has no value for the field
	Resolved bool
}

// Scorer turns per-field outcomes into a pair score
type Scorer struct {
	weights map[string]float64
	combine CombineType
}

// NewScorer creates a scorer from defaulted params
func NewScorer(p Params) *Scorer {
	return &Scorer{weights: p.Weights, combine: p.Type}
}

// Score returns the weighted mean of the resolved field scores. Under AND
// it is further multiplied by matched/requested. The result is in [0,1].
func (s *Scorer) Score(outcomes []FieldOutcome) float64 {
	var sum, total float64
	matched := 0
	for _, o := range outcomes {
		if !o.Resolved {
			continue
		}
		w := s.weight(o.Field)
		sum += o.Score * w
		total += w
		if o.Score > 0 {
			matched++
		}
	}
	if total == 0 {
		return 0
	}

	score := sum / total
	if s.combine == CombineAnd && len(outcomes) > 0 {
		score *= float64(matched) / float64(len(outcomes))
	}
	return clamp01(score)
}

// Qualifies applies the combine rule: AND needs every field non-zero,
// OR needs at least one
func (s *Scorer) Qualifies(outcomes []FieldOutcome) bool {
	matched := 0
	for _, o := range outcomes {
		if o.Resolved && o.Score > 0 {
			matched++
		}
	}
	if s.combine == CombineOr {
		return matched > 0
	}
	return len(outcomes) > 0 && matched == len(outcomes)
}

func (s *Scorer) weight(field string) float64 {
	if w, ok := s.weights[field]; ok {
		return w
	}
	return DefaultWeight
}

// Classify derives the match type from the field outcomes
func Classify(outcomes []FieldOutcome) MatchType {
	exact := true
	for _, o := range outcomes {
		if !o.Resolved || o.Score <= 0 {
			return MatchTypePartial
		}
		if o.Score < 1 {
			exact = false
		}
	}
	if exact {
		return MatchTypeExact
	}
	return MatchTypeFuzzy
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// compareValues scores two possibly array-valued field values, keeping the
// best element pair
func compareValues(m *Matcher, def core.FieldDef, a, b interface{}) float64 {
	best := 0.0
	for _, x := range core.Elements(a) {
		for _, y := range core.Elements(b) {
			if s := m.Score(def, x, y); s > best {
				best = s
				if best == 1 {
					return 1
				}
			}
		}
	}
	return best
}
