package core

import (
	"fmt"
	"strings"
)

// FieldType represents the data type of a logical field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeNumber    FieldType = "number"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeBool      FieldType = "bool"
	// FieldTypeOrdinal is a string field with a fixed rank order (e.g. severity)
	FieldTypeOrdinal FieldType = "ordinal"
)

// IsValid checks if the field type is known
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeTimestamp, FieldTypeBool, FieldTypeOrdinal:
		return true
	}
	return false
}

// Comparable reports whether >, >=, <, <= and ranges are legal on the type
func (t FieldType) Comparable() bool {
	return t == FieldTypeNumber || t == FieldTypeTimestamp || t == FieldTypeOrdinal
}

// MatchClass selects the fuzzy matching strategy used for a field when two
// values are not exactly equal.
type MatchClass string

const (
	// MatchExact never matches fuzzily
	MatchExact MatchClass = "exact"
	// MatchIP uses octet-by-octet subnet proximity
	MatchIP MatchClass = "ip"
	// MatchText uses normalized edit distance
	MatchText MatchClass = "text"
	// MatchNumeric uses relative tolerance
	MatchNumeric MatchClass = "numeric"
	// MatchGeo uses place-name proximity
	MatchGeo MatchClass = "geo"
)

// IsValid checks if the match class is known
func (c MatchClass) IsValid() bool {
	switch c {
	case MatchExact, MatchIP, MatchText, MatchNumeric, MatchGeo:
		return true
	}
	return false
}

// SeverityRanks orders alarm severities for comparison operators
var SeverityRanks = map[string]float64{
	"info":     0,
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

// FieldDef describes one logical field for one entity type
type FieldDef struct {
	Name  string
	Type  FieldType
	Class MatchClass
	// Paths are tried in order; the first present, non-null value wins
	Paths []string
	// Units converts suffixed query values (5MB, 30m) into the stored base unit
	Units UnitTable
	// Ranks maps ordinal labels to their rank (ordinal fields only)
	Ranks map[string]float64
}

// Rank returns the rank of an ordinal label
func (d FieldDef) Rank(label string) (float64, bool) {
	if d.Ranks == nil {
		return 0, false
	}
	r, ok := d.Ranks[strings.ToLower(strings.TrimSpace(label))]
	return r, ok
}

func (d FieldDef) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("field %q: invalid type %q", d.Name, d.Type)
	}
	if !d.Class.IsValid() {
		return fmt.Errorf("field %q: invalid match class %q", d.Name, d.Class)
	}
	if len(d.Paths) == 0 {
		return fmt.Errorf("field %q: at least one path is required", d.Name)
	}
	for _, p := range d.Paths {
		if strings.TrimSpace(p) == "" || strings.HasPrefix(p, ".") || strings.HasSuffix(p, ".") {
			return fmt.Errorf("field %q: invalid path %q", d.Name, p)
		}
	}
	if d.Type == FieldTypeOrdinal && len(d.Ranks) == 0 {
		return fmt.Errorf("field %q: ordinal fields need ranks", d.Name)
	}
	return nil
}
