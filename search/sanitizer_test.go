package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		reason SecurityReason
	}{
		{"script tag", `message:"<script>alert(1)</script>"`, ReasonScript},
		{"closing script tag", "a:1 </ script>", ReasonScript},
		{"javascript scheme", "domain:javascript:alert(1)", ReasonScheme},
		{"vbscript scheme", "domain:VBScript:msgbox", ReasonScheme},
		{"event handler", `message:"x onerror=alert(1)"`, ReasonEventHandler},
		{"backtick", "device_name:`id`", ReasonShell},
		{"command substitution", "device_name:$(whoami)", ReasonShell},
		{"tautology", "name:x' OR '1'='1", ReasonSQL},
		{"union select", "laptop UNION SELECT password", ReasonSQL},
		{"drop table", "a:1; DROP TABLE users", ReasonSQL},
		{"comment", "a:1;--", ReasonSQL},
		{"exec", "a:exec(xp_cmdshell)", ReasonSQL},
		{"stacked statement", "a:1; select 1", ReasonSQL},
		{"too long", strings.Repeat("x", MaxQueryLength+1), ReasonTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Sanitize(tt.query)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, errors.Is(err, ErrSecurity))

			var se *SecurityError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.reason, se.Reason)
			assert.NotContains(t, err.Error(), tt.query)
		})
	}
}

func TestSanitize_Allows(t *testing.T) {
	queries := []string{
		"protocol:tcp bytes:>1MB",
		`device_name:"O'Brien laptop"`,
		"domain:*.example.com,online.net",
		`message:"on call rotation"`,
		"timestamp:[2024-01-01 TO 2024-12-31]",
		"mac:aa:bb:cc:dd:ee:ff -blocked:true",
		"notes:selection",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			out, err := Sanitize(q)
			require.NoError(t, err)
			assert.Equal(t, q, out)
		})
	}
}

func TestSanitize_ControlCharacters(t *testing.T) {
	out, err := Sanitize("  protocol:tcp\x00\nbytes:>1\x7f  ")
	require.NoError(t, err)
	assert.Equal(t, "protocol:tcp  bytes:>1", out)

	out, err = Sanitize("a:1\tb:2")
	require.NoError(t, err)
	assert.Equal(t, "a:1\tb:2", out)
}

func TestSanitizer_ScreenKeepsOffsets(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"leading whitespace", "   protocol:tcp", "   protocol:tcp"},
		{"trailing whitespace", "protocol:tcp  ", "protocol:tcp  "},
		{"control characters", "a:1\x00\x07b:2\r\n", "a:1  b:2  "},
		{"tab kept", "a:1\tb:2", "a:1\tb:2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := defaultSanitizer.Screen(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Len(t, out, len(tt.query))
		})
	}

	// surrounding whitespace does not count towards the limit
	s := NewSanitizer(12, 0)
	_, err := s.Screen("    protocol:tcp    ")
	assert.NoError(t, err)
}

func TestNewSanitizer_Limits(t *testing.T) {
	s := NewSanitizer(10, 0)
	_, err := s.Sanitize("protocol:tcp")
	assert.True(t, errors.Is(err, &SecurityError{Reason: ReasonTooLong}))

	// limits above MaxQueryLength are capped
	s = NewSanitizer(MaxQueryLength*10, 0)
	_, err = s.Sanitize(strings.Repeat("x", MaxQueryLength+1))
	assert.True(t, errors.Is(err, &SecurityError{Reason: ReasonTooLong}))
}
