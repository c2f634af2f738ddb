package correlate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"argus/core"
)

var (
	// ErrConfiguration classifies correlation parameters that cannot be
	// applied to the requested entity types
	ErrConfiguration = errors.New("invalid correlation configuration")
	// ErrTimeout classifies a correlation pass that exceeded its budget
	ErrTimeout = errors.New("correlation time budget exceeded")
)

// ConfigurationError is raised before any pairing work starts
type ConfigurationError struct {
	Field      string
	EntityType core.EntityType
	Msg        string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("correlation configuration: ")
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Msg)
	if e.EntityType != "" {
		fmt.Fprintf(&b, " (entity type %s)", e.EntityType)
	}
	return b.String()
}

// Unwrap exposes ErrConfiguration
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// TimeoutError carries the statistics gathered before the budget ran out.
// Results scored up to that point are returned alongside it.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
	Stats   Stats
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("correlation exceeded its %s budget after %s (%d secondary records processed)",
		e.Budget, e.Elapsed.Round(time.Millisecond), e.Stats.TotalSecondary)
}

// Unwrap exposes ErrTimeout
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
