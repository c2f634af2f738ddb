package correlate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"argus/core"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by Params.WithDefaults
const (
	DefaultWeight           = 0.5
	DefaultStringThreshold  = 0.8
	DefaultNumericTolerance = 0.1
	// MaxLimit caps the number of results of one correlation pass
	MaxLimit = 10000
)

// CombineType selects how per-field outcomes qualify a pair
type CombineType string

const (
	// CombineAnd requires every requested field to match
	CombineAnd CombineType = "AND"
	// CombineOr requires at least one requested field to match
	CombineOr CombineType = "OR"
)

// FuzzyConfig enables the fuzzy strategies. Disabled by default.
type FuzzyConfig struct {
	Enabled bool `json:"enabled"`
	// StringThreshold is the minimum normalised similarity for text and
	// place names; zero selects DefaultStringThreshold
	StringThreshold  float64 `json:"stringThreshold" validate:"gte=0,lte=1"`
	IPSubnetMatching bool    `json:"ipSubnetMatching"`
	// NumericTolerance is the maximum relative difference; zero selects
	// DefaultNumericTolerance
	NumericTolerance float64 `json:"numericTolerance" validate:"gte=0,lte=1"`
}

// TemporalWindow bounds the timestamp distance of a pair
type TemporalWindow struct {
	Size float64 `json:"size" validate:"gt=0"`
	Unit string  `json:"unit" validate:"required"`
}

// Params configures one correlation pass
type Params struct {
	Fields       []string           `json:"fields" validate:"required,min=1,dive,required"`
	Type         CombineType        `json:"correlationType" validate:"omitempty,oneof=AND OR"`
	Weights      map[string]float64 `json:"customWeights,omitempty" validate:"omitempty,dive,keys,required,endkeys,gt=0,lte=1"`
	Fuzzy        *FuzzyConfig       `json:"fuzzyMatching,omitempty"`
	MinimumScore float64            `json:"minimumScore" validate:"gte=0,lte=1"`
	Window       *TemporalWindow    `json:"temporalWindow,omitempty"`
}

var validate = validator.New()

// WithDefaults returns a copy with the documented defaults filled in:
// type AND, weight 0.5 for unlisted fields, fuzzy thresholds when zero.
// Field names are lower-cased and trimmed.
func (p Params) WithDefaults() Params {
	return p.withDefaults(DefaultWeight)
}

func (p Params) withDefaults(weight float64) Params {
	out := p
	if out.Type == "" {
		out.Type = CombineAnd
	}

	out.Fields = make([]string, len(p.Fields))
	for i, f := range p.Fields {
		out.Fields[i] = strings.ToLower(strings.TrimSpace(f))
	}

	out.Weights = make(map[string]float64, len(out.Fields))
	for k, w := range p.Weights {
		out.Weights[strings.ToLower(strings.TrimSpace(k))] = w
	}
	for _, f := range out.Fields {
		if _, ok := out.Weights[f]; !ok {
			out.Weights[f] = weight
		}
	}

	if p.Fuzzy != nil {
		fz := *p.Fuzzy
		if fz.StringThreshold == 0 {
			fz.StringThreshold = DefaultStringThreshold
		}
		if fz.NumericTolerance == 0 {
			fz.NumericTolerance = DefaultNumericTolerance
		}
		out.Fuzzy = &fz
	}
	return out
}

// Validate checks the parameters on their own, without entity types
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return &ConfigurationError{Msg: describeValidation(err)}
	}

	seen := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		key := strings.ToLower(strings.TrimSpace(f))
		if seen[key] {
			return &ConfigurationError{Field: f, Msg: "listed more than once"}
		}
		seen[key] = true
	}
	for k := range p.Weights {
		if !seen[strings.ToLower(strings.TrimSpace(k))] {
			return &ConfigurationError{Field: k, Msg: "weight given for a field that is not correlated"}
		}
	}

	if p.Window != nil {
		if _, err := p.Window.Duration(); err != nil {
			return &ConfigurationError{Field: "temporalWindow", Msg: err.Error()}
		}
	}
	return nil
}

// Seconds returns the window size in seconds
func (w TemporalWindow) Seconds() (float64, error) {
	d, err := w.Duration()
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// Duration returns the window as a time.Duration
func (w TemporalWindow) Duration() (time.Duration, error) {
	unit, err := core.ParseWindowUnit(w.Unit)
	if err != nil {
		return 0, err
	}
	return core.WindowDuration(w.Size, unit)
}

// describeValidation turns validator errors into a short message naming
// the offending parameter
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), describeTag(fe)))
	}
	return strings.Join(parts, "; ")
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
