package search

import (
	"strings"
	"time"
	"unicode/utf8"

	"argus/metrics"

	"github.com/dlclark/regexp2"
)

// DefaultPatternTimeout bounds a single sanitizer pattern match
const DefaultPatternTimeout = 100 * time.Millisecond

type securityRule struct {
	reason  SecurityReason
	pattern string
}

// Rules are checked in order; the first match decides the reported reason
var securityRules = []securityRule{
	{ReasonScript, `(?i)<\s*/?\s*script\b`},
	{ReasonScheme, `(?i)\b(?:javascript|vbscript)\s*:`},
	{ReasonEventHandler, `(?i)(?:^|[\s"'<>/;])on[a-z]+\s*=`},
	{ReasonShell, "`|\\$\\("},
	{ReasonSQL, `(?i)\bunion\s+(?:all\s+)?select\b`},
	{ReasonSQL, `(?i)\bdrop\s+(?:table|database)\b`},
	{ReasonSQL, `(?i)\binsert\s+into\b`},
	{ReasonSQL, `(?i)\bdelete\s+from\b`},
	{ReasonSQL, `;\s*--`},
	{ReasonSQL, `(?i)'\s*or\s*'?\w*'?\s*=\s*'?\w*`},
	{ReasonSQL, `(?i)\bexec(?:ute)?\s*\(|\bxp_\w+`},
	{ReasonSQL, `(?i);\s*(?:select|update|delete|insert|drop|alter|truncate)\b`},
}

type compiledRule struct {
	reason SecurityReason
	re     *regexp2.Regexp
}

// Sanitizer rejects queries carrying script, shell or SQL injection
// patterns before they reach the parser. It is pattern-based defence in
// depth; the parser still treats all content as data.
type Sanitizer struct {
	maxLength int
	rules     []compiledRule
}

// NewSanitizer compiles the rule set once. maxLength is capped at
// MaxQueryLength; timeout bounds each pattern match.
func NewSanitizer(maxLength int, timeout time.Duration) *Sanitizer {
	if maxLength <= 0 || maxLength > MaxQueryLength {
		maxLength = MaxQueryLength
	}
	if timeout <= 0 {
		timeout = DefaultPatternTimeout
	}

	rules := make([]compiledRule, 0, len(securityRules))
	for _, r := range securityRules {
		re := regexp2.MustCompile(r.pattern, regexp2.None)
		re.MatchTimeout = timeout
		rules = append(rules, compiledRule{reason: r.reason, re: re})
	}
	return &Sanitizer{maxLength: maxLength, rules: rules}
}

var defaultSanitizer = NewSanitizer(MaxQueryLength, DefaultPatternTimeout)

// Sanitize runs the default sanitizer
func Sanitize(raw string) (string, error) {
	return defaultSanitizer.Sanitize(raw)
}

// Sanitize screens the query and trims surrounding whitespace. The
// returned error never contains the input.
func (s *Sanitizer) Sanitize(raw string) (string, error) {
	cleaned, err := s.Screen(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cleaned), nil
}

// Screen replaces control characters with spaces, enforces the length
// limit and rejects dangerous patterns. The result has the same byte
// length as raw, so offsets into it index the caller's input.
func (s *Sanitizer) Screen(raw string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.SanitizerDuration.Observe(time.Since(start).Seconds())
	}()

	cleaned := blankControl(raw)

	if utf8.RuneCountInString(strings.TrimSpace(cleaned)) > s.maxLength {
		return "", reject(ReasonTooLong)
	}

	for _, rule := range s.rules {
		matched, err := rule.re.MatchString(cleaned)
		if err != nil {
			// regexp2 only fails on MatchTimeout
			return "", reject(ReasonTimeout)
		}
		if matched {
			return "", reject(rule.reason)
		}
	}

	return cleaned, nil
}

func reject(reason SecurityReason) *SecurityError {
	metrics.QueriesRejected.WithLabelValues(string(reason)).Inc()
	return &SecurityError{Reason: reason}
}

// blankControl replaces ASCII control characters with spaces so words on
// separate lines stay separate and byte offsets are preserved.
func blankControl(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isControl(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	b := []byte(s)
	for i, c := range b {
		if isControl(c) {
			b[i] = ' '
		}
	}
	return string(b)
}

func isControl(c byte) bool {
	return (c < 0x20 && c != '\t') || c == 0x7f
}
