package search

import (
	"strings"
	"time"

	"argus/core"
	"argus/metrics"
)

// secondsPerDay widens a date-only timestamp literal to the whole day
const secondsPerDay = 86400

// Evaluator applies validated predicate trees to records of one entity type.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	mapper *core.FieldMapper
	entity core.EntityType
	// textFields are searched by free-text terms
	textFields []core.FieldDef
}

// NewEvaluator creates an evaluator bound to one entity type
func NewEvaluator(mapper *core.FieldMapper, entity core.EntityType) *Evaluator {
	if mapper == nil {
		panic("mapper is required")
	}

	var text []core.FieldDef
	for _, def := range mapper.Definitions(entity) {
		if def.Type == core.FieldTypeString {
			text = append(text, def)
		}
	}
	return &Evaluator{mapper: mapper, entity: entity, textFields: text}
}

// Evaluate reports whether record matches tree. It never fails: values that
// cannot be coerced simply do not match.
func (e *Evaluator) Evaluate(tree Node, record core.Record) bool {
	return e.evaluateNode(tree, record)
}

// Filter returns the matching records in input order, at most limit of
// them. A limit <= 0 means no limit.
func (e *Evaluator) Filter(tree Node, records []core.Record, limit int) []core.Record {
	var out []core.Record
	evaluated := 0
	for _, r := range records {
		evaluated++
		if e.evaluateNode(tree, r) {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	metrics.RecordsEvaluated.WithLabelValues(string(e.entity)).Add(float64(evaluated))
	return out
}

func (e *Evaluator) evaluateNode(node Node, record core.Record) bool {
	switch n := node.(type) {
	case *And:
		return e.evaluateNode(n.Left, record) && e.evaluateNode(n.Right, record)
	case *Or:
		return e.evaluateNode(n.Left, record) || e.evaluateNode(n.Right, record)
	case *Not:
		return !e.evaluateNode(n.Inner, record)
	case *Literal:
		return e.evaluateLiteral(n, record) != n.Negated
	case *Wildcard:
		return e.evaluateWildcard(n, record)
	case *Numeric:
		return e.evaluateNumeric(n, record)
	case *Range:
		return e.evaluateRange(n, record)
	}
	return false
}

// values returns the elements of the field's resolved value
func (e *Evaluator) values(field string, record core.Record) (core.FieldDef, []interface{}, bool) {
	def, ok := e.mapper.Lookup(field, e.entity)
	if !ok {
		return core.FieldDef{}, nil, false
	}
	v, _, ok := e.mapper.ResolveValue(record, field, e.entity)
	if !ok {
		return def, nil, false
	}
	return def, core.Elements(v), true
}

func (e *Evaluator) evaluateLiteral(n *Literal, record core.Record) bool {
	if n.Field == "" {
		return e.freeText(record, func(s string) bool {
			for _, val := range n.Values {
				if containsText(s, val.Text, val.Quoted) {
					return true
				}
			}
			return false
		})
	}

	def, elems, ok := e.values(n.Field, record)
	if !ok {
		return false
	}
	for _, val := range n.Values {
		for _, elem := range elems {
			if literalMatches(def, val, elem) {
				return true
			}
		}
	}
	return false
}

func literalMatches(def core.FieldDef, val Value, elem interface{}) bool {
	switch def.Type {
	case core.FieldTypeBool:
		want, ok := core.ToBool(val.Text)
		if !ok {
			return false
		}
		got, ok := core.ToBool(elem)
		return ok && got == want

	case core.FieldTypeNumber:
		want, err := ResolveOperand(def, parseOperand(val.Text))
		if err != nil {
			return false
		}
		got, ok := core.ToFloat64(elem)
		return ok && got == want

	case core.FieldTypeTimestamp:
		got, ok := core.ToEpochSeconds(elem)
		if !ok {
			return false
		}
		if day, ok := dateOnly(def, val.Text); ok {
			start := float64(day.Unix())
			return got >= start && got < start+secondsPerDay
		}
		want, err := ResolveOperand(def, parseOperand(val.Text))
		return err == nil && got == want

	case core.FieldTypeOrdinal:
		return strings.EqualFold(core.ToString(elem), val.Text)
	}

	got := core.ToString(elem)
	if val.Quoted {
		return got == val.Text
	}
	return strings.EqualFold(got, val.Text)
}

func (e *Evaluator) evaluateWildcard(n *Wildcard, record core.Record) bool {
	if n.Field == "" {
		return e.freeText(record, func(s string) bool {
			return matchGlob(n.Pattern, s, n.CaseSensitive)
		})
	}

	_, elems, ok := e.values(n.Field, record)
	if !ok {
		return false
	}
	for _, elem := range elems {
		if matchGlob(n.Pattern, core.ToString(elem), n.CaseSensitive) {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluateNumeric(n *Numeric, record core.Record) bool {
	def, elems, ok := e.values(n.Field, record)
	if !ok {
		return false
	}
	want, err := ResolveOperand(def, n.Value)
	if err != nil {
		return false
	}
	for _, elem := range elems {
		got, ok := comparableValue(def, elem)
		if ok && compare(got, n.Op, want) {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluateRange(n *Range, record core.Record) bool {
	def, elems, ok := e.values(n.Field, record)
	if !ok {
		return false
	}
	lo, err := ResolveOperand(def, n.Min)
	if err != nil {
		return false
	}
	hi, err := ResolveOperand(def, n.Max)
	if err != nil {
		return false
	}
	// a date-only upper bound covers that whole day
	inRange := func(got float64) bool { return got >= lo && got <= hi }
	if day, ok := dateOnly(def, n.Max.Raw); ok {
		end := float64(day.Unix()) + secondsPerDay
		inRange = func(got float64) bool { return got >= lo && got < end }
	}
	for _, elem := range elems {
		if got, ok := comparableValue(def, elem); ok && inRange(got) {
			return true
		}
	}
	return false
}

// dateOnly parses a YYYY-MM-DD literal on a timestamp field as UTC midnight
func dateOnly(def core.FieldDef, raw string) (time.Time, bool) {
	if def.Type != core.FieldTypeTimestamp {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	return day, err == nil
}

// freeText applies match to every string field of the record
func (e *Evaluator) freeText(record core.Record, match func(string) bool) bool {
	for _, def := range e.textFields {
		v, _, ok := e.mapper.ResolveValue(record, def.Name, e.entity)
		if !ok {
			continue
		}
		for _, elem := range core.Elements(v) {
			if s, ok := elem.(string); ok && match(s) {
				return true
			}
		}
	}
	return false
}

// comparableValue coerces a record value into the field's comparable float form
func comparableValue(def core.FieldDef, v interface{}) (float64, bool) {
	switch def.Type {
	case core.FieldTypeTimestamp:
		return core.ToEpochSeconds(v)
	case core.FieldTypeOrdinal:
		if r, ok := def.Rank(core.ToString(v)); ok {
			return r, true
		}
	}
	return core.ToFloat64(v)
}

func compare(got float64, op CmpOp, want float64) bool {
	switch op {
	case OpGt:
		return got > want
	case OpGte:
		return got >= want
	case OpLt:
		return got < want
	case OpLte:
		return got <= want
	}
	return got == want
}

// containsText is free-text matching: substring, case-insensitive unless quoted
func containsText(s, sub string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(s, sub)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
