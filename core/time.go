package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds
const epochMillisThreshold = 1e12

var absoluteTimeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseAbsoluteTime parses ISO8601 timestamps and plain dates (UTC)
func ParseAbsoluteTime(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	for _, format := range absoluteTimeFormats {
		if t, err := time.Parse(format, expr); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid absolute time format: %s (expected ISO8601)", expr)
}

// ToEpochSeconds coerces a record or query value into epoch seconds.
// Accepts epoch seconds, epoch milliseconds, numeric strings and ISO8601.
func ToEpochSeconds(value interface{}) (float64, bool) {
	if t, ok := value.(time.Time); ok {
		return float64(t.UnixNano()) / 1e9, true
	}
	if f, ok := ToFloat64(value); ok {
		if f > epochMillisThreshold {
			return f / 1000, true
		}
		return f, true
	}
	s, ok := value.(string)
	if !ok {
		return 0, false
	}
	t, err := ParseAbsoluteTime(s)
	if err != nil {
		return 0, false
	}
	return float64(t.UnixNano()) / 1e9, true
}

// WindowUnit is the unit of a temporal correlation window
type WindowUnit string

const (
	WindowSeconds WindowUnit = "seconds"
	WindowMinutes WindowUnit = "minutes"
	WindowHours   WindowUnit = "hours"
	WindowDays    WindowUnit = "days"
)

// ParseWindowUnit accepts the long names plus the short forms s, m, h, d
func ParseWindowUnit(s string) (WindowUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return WindowSeconds, nil
	case "m", "min", "minute", "minutes":
		return WindowMinutes, nil
	case "h", "hour", "hours":
		return WindowHours, nil
	case "d", "day", "days":
		return WindowDays, nil
	}
	return "", fmt.Errorf("unsupported window unit: %s", s)
}

// WindowDuration converts a window size and unit into a duration
func WindowDuration(size float64, unit WindowUnit) (time.Duration, error) {
	if size <= 0 {
		return 0, fmt.Errorf("window size must be positive, got %s", strconv.FormatFloat(size, 'f', -1, 64))
	}

	var base time.Duration
	switch unit {
	case WindowSeconds:
		base = time.Second
	case WindowMinutes:
		base = time.Minute
	case WindowHours:
		base = time.Hour
	case WindowDays:
		base = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unsupported window unit: %s", unit)
	}
	return time.Duration(size * float64(base)), nil
}

var windowPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]+)$`)

// ParseWindow parses a compact window such as "1h", "24h" or "7d"
func ParseWindow(expr string) (time.Duration, error) {
	m := windowPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return 0, fmt.Errorf("invalid time window %q (expected <number><unit>, e.g. 24h)", expr)
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time window %q: %w", expr, err)
	}
	unit, err := ParseWindowUnit(m[2])
	if err != nil {
		return 0, err
	}
	return WindowDuration(size, unit)
}
