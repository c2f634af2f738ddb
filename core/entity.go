package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Record is one opaque entity record as delivered by the upstream API client.
// The core only reads it through path lookups; it is never mutated.
type Record map[string]interface{}

// GetNested walks a dot-separated path through nested maps.
// Returns (value, true) only when the final value is present and non-nil.
func GetNested(record Record, path string) (interface{}, bool) {
	if record == nil || path == "" {
		return nil, false
	}

	// Flat keys that contain dots win over nested traversal
	if v, ok := record[path]; ok {
		return v, v != nil
	}

	var current interface{} = map[string]interface{}(record)
	for _, part := range strings.Split(path, ".") {
		switch m := current.(type) {
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case Record:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}

	if current == nil {
		return nil, false
	}
	return current, true
}

// ToFloat64 coerces numeric values and numeric strings to float64
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case bool:
		return 0, false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// IsNumeric reports whether value is a Go numeric type (strings excluded)
func IsNumeric(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	}
	return false
}

// ToString renders scalar values in their canonical textual form.
// Floats without a fractional part render as integers so 5e6 == "5000000".
func ToString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case json.Number:
		return v.String()
	}
	if f, ok := ToFloat64(value); ok && IsNumeric(value) {
		return formatFloat(f)
	}
	return fmt.Sprintf("%v", value)
}

// ToBool coerces bools and "true"/"false" strings (case-insensitive)
func ToBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case float64:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	}
	return false, false
}

// Elements returns the elements of an array value, or the value itself as
// a single-element slice. Nil elements are dropped.
func Elements(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, e := range v {
			if e != nil {
				out = append(out, e)
			}
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	case nil:
		return nil
	}
	return []interface{}{value}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
