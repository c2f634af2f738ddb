package search

import (
	"fmt"
	"sort"
	"strings"

	"argus/core"
	"argus/metrics"
	"argus/util"
)

// maxFieldSuggestions caps "did you mean" candidates
const maxFieldSuggestions = 3

// ValidationResult is the outcome of checking a tree against an entity type
type ValidationResult struct {
	IsValid bool
	Errors  []*SemanticError
	// CorrectedQuery is the mechanically fixed query, empty when nothing
	// could be fixed. It never makes an invalid result valid.
	CorrectedQuery string
}

// Err returns the first error, or nil when the result is valid
func (r ValidationResult) Err() error {
	if r.IsValid || len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// ValidationResponse is the query-only validation response
type ValidationResponse struct {
	IsValid        bool     `json:"is_valid"`
	Errors         []string `json:"errors"`
	Suggestions    []string `json:"suggestions"`
	CorrectedQuery *string  `json:"corrected_query"`
}

// Validator checks predicate trees against the field mapping table
type Validator struct {
	mapper    *core.FieldMapper
	sanitizer *Sanitizer
	maxLength int
}

// NewValidator creates a new query validator. A nil sanitizer uses the
// default rule set.
func NewValidator(mapper *core.FieldMapper, sanitizer *Sanitizer) *Validator {
	if mapper == nil {
		panic("mapper is required")
	}
	if sanitizer == nil {
		sanitizer = defaultSanitizer
	}
	return &Validator{
		mapper:    mapper,
		sanitizer: sanitizer,
		maxLength: sanitizer.maxLength,
	}
}

// Mapper returns the field mapper the validator checks against
func (v *Validator) Mapper() *core.FieldMapper {
	return v.mapper
}

// Prepare sanitizes and parses a raw query
func (v *Validator) Prepare(raw string) (Node, error) {
	// Screen keeps byte offsets, so syntax errors index raw
	clean, err := v.sanitizer.Screen(raw)
	if err != nil {
		return nil, err
	}
	tree, err := NewParser(clean).WithMaxLength(v.maxLength).Parse()
	if err != nil {
		metrics.QueriesParsed.WithLabelValues("syntax_error").Inc()
		return nil, err
	}
	metrics.QueriesParsed.WithLabelValues("ok").Inc()
	return tree, nil
}

// Validate checks, in order: field existence (with deprecated alias and
// "did you mean" handling), operator/type compatibility, boolean literals
// and range bounds.
func (v *Validator) Validate(tree Node, entityType core.EntityType) ValidationResult {
	var errs []*SemanticError
	seen := make(map[string]bool)
	renames := make(map[string]string)

	add := func(e *SemanticError) {
		key := string(e.Kind) + "\x00" + e.Field + "\x00" + e.Msg
		if seen[key] {
			return
		}
		seen[key] = true
		errs = append(errs, e)
	}

	for _, leaf := range Leaves(tree) {
		field := leaf.FieldName()
		if field == "" {
			continue
		}

		def, ok := v.mapper.Lookup(field, entityType)
		if !ok {
			canonical, isAlias := core.ResolveFieldAlias(field)
			if isAlias && v.mapper.IsValidField(canonical, entityType) {
				renames[field] = canonical
				add(&SemanticError{
					Kind:        DeprecatedField,
					Field:       field,
					EntityType:  entityType,
					Offset:      leaf.Offset(),
					Msg:         fmt.Sprintf("field %q is deprecated, use %q", field, canonical),
					Suggestions: []string{canonical},
				})
				def, _ = v.mapper.Lookup(canonical, entityType)
			} else {
				add(&SemanticError{
					Kind:        UnknownField,
					Field:       field,
					EntityType:  entityType,
					Offset:      leaf.Offset(),
					Msg:         fmt.Sprintf("unknown field %q for %s", field, entityType),
					Suggestions: SuggestFields(field, v.mapper.Fields(entityType)),
					ValidFields: v.mapper.Fields(entityType),
				})
				continue
			}
		}

		if e := checkLeaf(leaf, def); e != nil {
			e.Field = field
			e.EntityType = entityType
			e.Offset = leaf.Offset()
			add(e)
		}
	}

	result := ValidationResult{IsValid: len(errs) == 0, Errors: errs}
	if len(renames) > 0 {
		result.CorrectedQuery = Format(RenameFields(tree, renames))
	}

	outcome := "valid"
	if !result.IsValid {
		outcome = "invalid"
	}
	metrics.QueriesValidated.WithLabelValues(string(entityType), outcome).Inc()

	return result
}

// ValidateQuery sanitizes, parses and validates in one call
func (v *Validator) ValidateQuery(raw string, entityType core.EntityType) ValidationResponse {
	resp := ValidationResponse{Errors: []string{}, Suggestions: []string{}}

	tree, err := v.Prepare(raw)
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
		return resp
	}

	result := v.Validate(tree, entityType)
	resp.IsValid = result.IsValid

	seen := make(map[string]bool)
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, e.Error())
		for _, s := range e.Suggestions {
			if !seen[s] {
				seen[s] = true
				resp.Suggestions = append(resp.Suggestions, s)
			}
		}
	}
	if result.CorrectedQuery != "" {
		corrected := result.CorrectedQuery
		resp.CorrectedQuery = &corrected
	}
	return resp
}

// checkLeaf validates operator/type compatibility and literal values.
// The returned error has Kind and Msg set; the caller fills in location.
func checkLeaf(leaf Leaf, def core.FieldDef) *SemanticError {
	switch n := leaf.(type) {
	case *Numeric:
		if !def.Type.Comparable() {
			return &SemanticError{
				Kind: OperatorMismatch,
				Msg:  fmt.Sprintf("operator %s requires a numeric or temporal field, %q is %s", n.Op, def.Name, def.Type),
			}
		}
		if _, err := ResolveOperand(def, n.Value); err != nil {
			return &SemanticError{Kind: InvalidValue, Msg: fmt.Sprintf("field %q: %v", def.Name, err)}
		}

	case *Range:
		if !def.Type.Comparable() {
			return &SemanticError{
				Kind: OperatorMismatch,
				Msg:  fmt.Sprintf("ranges require a numeric or temporal field, %q is %s", def.Name, def.Type),
			}
		}
		lo, err := ResolveOperand(def, n.Min)
		if err != nil {
			return &SemanticError{Kind: InvalidValue, Msg: fmt.Sprintf("field %q: range min: %v", def.Name, err)}
		}
		hi, err := ResolveOperand(def, n.Max)
		if err != nil {
			return &SemanticError{Kind: InvalidValue, Msg: fmt.Sprintf("field %q: range max: %v", def.Name, err)}
		}
		if day, ok := dateOnly(def, n.Max.Raw); ok {
			hi = float64(day.Unix()) + secondsPerDay
		}
		if lo >= hi {
			return &SemanticError{
				Kind: InvalidBounds,
				Msg:  fmt.Sprintf("range on %q must have min < max (got %s and %s)", def.Name, n.Min.Raw, n.Max.Raw),
			}
		}

	case *Wildcard:
		if def.Type != core.FieldTypeString && def.Type != core.FieldTypeOrdinal {
			return &SemanticError{
				Kind: OperatorMismatch,
				Msg:  fmt.Sprintf("wildcards only apply to text fields, %q is %s", def.Name, def.Type),
			}
		}

	case *Literal:
		for _, val := range n.Values {
			if e := checkLiteralValue(def, val); e != nil {
				return e
			}
		}
	}
	return nil
}

func checkLiteralValue(def core.FieldDef, val Value) *SemanticError {
	switch def.Type {
	case core.FieldTypeBool:
		if _, ok := core.ToBool(val.Text); !ok {
			return &SemanticError{
				Kind: InvalidBoolean,
				Msg:  fmt.Sprintf("field %q accepts only true or false, got %q", def.Name, val.Text),
			}
		}
	case core.FieldTypeNumber, core.FieldTypeTimestamp, core.FieldTypeOrdinal:
		if _, err := ResolveOperand(def, parseOperand(val.Text)); err != nil {
			return &SemanticError{Kind: InvalidValue, Msg: fmt.Sprintf("field %q: %v", def.Name, err)}
		}
	}
	return nil
}

// ResolveOperand converts a query operand into the comparable float form of
// the field: base units for numbers, epoch seconds for timestamps and the
// rank for ordinals.
func ResolveOperand(def core.FieldDef, op Operand) (float64, error) {
	switch def.Type {
	case core.FieldTypeNumber:
		if !op.IsNumber {
			return 0, fmt.Errorf("%q is not a number", op.Raw)
		}
		return def.Units.Convert(op.Number, op.Unit)

	case core.FieldTypeTimestamp:
		if op.IsNumber && op.Unit == "" {
			secs, _ := core.ToEpochSeconds(op.Number)
			return secs, nil
		}
		t, err := core.ParseAbsoluteTime(op.Raw)
		if err != nil {
			return 0, fmt.Errorf("%q is not a timestamp (use epoch seconds or ISO8601)", op.Raw)
		}
		return float64(t.UnixNano()) / 1e9, nil

	case core.FieldTypeOrdinal:
		if r, ok := def.Rank(op.Raw); ok {
			return r, nil
		}
		if op.IsNumber && op.Unit == "" {
			return op.Number, nil
		}
		return 0, fmt.Errorf("%q is not one of %s", op.Raw, strings.Join(rankLabels(def), ", "))
	}
	return 0, fmt.Errorf("field type %s is not comparable", def.Type)
}

func rankLabels(def core.FieldDef) []string {
	labels := make([]string, 0, len(def.Ranks))
	for l := range def.Ranks {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		return def.Ranks[labels[i]] < def.Ranks[labels[j]]
	})
	return labels
}

// SuggestFields returns up to three known fields within edit distance
// max(2, len(name)/3) of name, nearest first, ties in table order.
func SuggestFields(name string, known []string) []string {
	limit := len([]rune(name)) / 3
	if limit < 2 {
		limit = 2
	}
	lower := strings.ToLower(name)

	type candidate struct {
		field string
		dist  int
		order int
	}
	var cands []candidate
	for i, f := range known {
		if d, ok := util.LevenshteinWithin(lower, strings.ToLower(f), limit); ok {
			cands = append(cands, candidate{field: f, dist: d, order: i})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].order < cands[j].order
	})

	out := make([]string, 0, maxFieldSuggestions)
	for _, c := range cands {
		if len(out) == maxFieldSuggestions {
			break
		}
		out = append(out, c.field)
	}
	return out
}

// RenameFields returns a copy of the tree with leaf fields renamed.
// The input tree is not modified.
func RenameFields(n Node, renames map[string]string) Node {
	rename := func(f string) string {
		if to, ok := renames[f]; ok {
			return to
		}
		return f
	}

	switch v := n.(type) {
	case *Literal:
		c := *v
		c.Field = rename(v.Field)
		c.Values = append([]Value(nil), v.Values...)
		return &c
	case *Numeric:
		c := *v
		c.Field = rename(v.Field)
		return &c
	case *Range:
		c := *v
		c.Field = rename(v.Field)
		return &c
	case *Wildcard:
		c := *v
		c.Field = rename(v.Field)
		return &c
	case *And:
		return &And{Left: RenameFields(v.Left, renames), Right: RenameFields(v.Right, renames)}
	case *Or:
		return &Or{Left: RenameFields(v.Left, renames), Right: RenameFields(v.Right, renames)}
	case *Not:
		return &Not{Inner: RenameFields(v.Inner, renames)}
	}
	return n
}
