package core

import (
	"fmt"
	"sort"
	"strings"
)

// UnitTable maps a unit suffix (upper-cased) to its multiplier into the base unit
type UnitTable map[string]float64

var (
	// ByteUnits converts byte counts; factor 1000 between steps
	ByteUnits = UnitTable{
		"B":  1,
		"KB": 1e3,
		"MB": 1e6,
		"GB": 1e9,
		"TB": 1e12,
	}

	// DurationUnits converts durations into seconds
	DurationUnits = UnitTable{
		"MS": 0.001,
		"S":  1,
		"M":  60,
		"H":  3600,
		"D":  86400,
	}
)

// Convert applies the unit multiplier to value. An empty unit is the base unit.
func (u UnitTable) Convert(value float64, unit string) (float64, error) {
	if unit == "" {
		return value, nil
	}
	if u == nil {
		return 0, fmt.Errorf("unit %q not supported for this field", unit)
	}
	factor, ok := u[strings.ToUpper(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q (valid: %s)", unit, strings.Join(u.Names(), ", "))
	}
	return value * factor, nil
}

// Names returns the unit suffixes sorted by multiplier
func (u UnitTable) Names() []string {
	names := make([]string, 0, len(u))
	for k := range u {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if u[names[i]] == u[names[j]] {
			return names[i] < names[j]
		}
		return u[names[i]] < u[names[j]]
	})
	return names
}

// unitTables names the tables a mapping file may reference
var unitTables = map[string]UnitTable{
	"bytes":    ByteUnits,
	"duration": DurationUnits,
}
