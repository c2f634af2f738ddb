package search

import (
	"errors"
	"fmt"
	"strings"

	"argus/core"
)

// Sentinel errors for errors.Is classification across layers
var (
	ErrSyntax   = errors.New("query syntax error")
	ErrSemantic = errors.New("query semantic error")
	ErrSecurity = errors.New("query rejected")
)

// SyntaxErrorKind classifies malformed query text
type SyntaxErrorKind string

const (
	UnmatchedParen    SyntaxErrorKind = "UnmatchedParen"
	UnmatchedQuote    SyntaxErrorKind = "UnmatchedQuote"
	DanglingOperator  SyntaxErrorKind = "DanglingOperator"
	InvalidRange      SyntaxErrorKind = "InvalidRange"
	UnexpectedToken   SyntaxErrorKind = "UnexpectedToken"
	EmptyQuery        SyntaxErrorKind = "EmptyQuery"
	QueryTooLong      SyntaxErrorKind = "QueryTooLong"
	WildcardInNumeric SyntaxErrorKind = "WildcardInNumeric"
)

// SyntaxError represents malformed query text. It is always reported and
// never corrected automatically.
type SyntaxError struct {
	Kind SyntaxErrorKind
	// Offset is the byte offset in the query where the problem starts
	Offset int
	Msg    string
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error (%s) at position %d: %s", e.Kind, e.Offset, e.Msg)
}

// Unwrap exposes ErrSyntax
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Is matches another SyntaxError of the same kind at the same offset
func (e *SyntaxError) Is(target error) bool {
	t, ok := target.(*SyntaxError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Offset == t.Offset
}

func newSyntaxError(kind SyntaxErrorKind, offset int, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// SemanticErrorKind classifies a well-formed query that is invalid for an entity type
type SemanticErrorKind string

const (
	UnknownField     SemanticErrorKind = "UnknownField"
	DeprecatedField  SemanticErrorKind = "DeprecatedField"
	OperatorMismatch SemanticErrorKind = "OperatorMismatch"
	InvalidBoolean   SemanticErrorKind = "InvalidBoolean"
	InvalidBounds    SemanticErrorKind = "InvalidRange"
	InvalidValue     SemanticErrorKind = "InvalidValue"
	AmbiguousEntity  SemanticErrorKind = "AmbiguousEntity"
)

// SemanticError reports a field or operator problem for a given entity type
type SemanticError struct {
	Kind       SemanticErrorKind
	Field      string
	EntityType core.EntityType
	Offset     int
	Msg        string
	// Suggestions are close field names ("did you mean")
	Suggestions []string
	// ValidFields lists the fields of EntityType for UnknownField errors
	ValidFields []string
}

// Error implements the error interface
func (e *SemanticError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Msg)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	if len(e.ValidFields) > 0 {
		fmt.Fprintf(&b, " (valid fields for %s: %s)", e.EntityType, strings.Join(e.ValidFields, ", "))
	}
	return b.String()
}

// Unwrap exposes ErrSemantic
func (e *SemanticError) Unwrap() error {
	return ErrSemantic
}

// Is matches another SemanticError of the same kind on the same field
func (e *SemanticError) Is(target error) bool {
	t, ok := target.(*SemanticError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Field == t.Field
}

// SecurityReason is a generic code describing why the sanitizer rejected input
type SecurityReason string

const (
	ReasonTooLong      SecurityReason = "too_long"
	ReasonScript       SecurityReason = "script"
	ReasonScheme       SecurityReason = "scheme"
	ReasonEventHandler SecurityReason = "event_handler"
	ReasonShell        SecurityReason = "shell"
	ReasonSQL          SecurityReason = "sql"
	ReasonTimeout      SecurityReason = "timeout"
)

// SecurityError is a sanitizer rejection. The offending fragment is never
// stored or echoed so injected payloads are not reflected back to callers.
type SecurityError struct {
	Reason SecurityReason
}

// Error implements the error interface
func (e *SecurityError) Error() string {
	return fmt.Sprintf("query rejected by security policy (%s)", e.Reason)
}

// Unwrap exposes ErrSecurity
func (e *SecurityError) Unwrap() error {
	return ErrSecurity
}

// Is matches another SecurityError with the same reason
func (e *SecurityError) Is(target error) bool {
	t, ok := target.(*SecurityError)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}
