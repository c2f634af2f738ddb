package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, query string) Node {
	t.Helper()
	tree, err := Parse(query)
	require.NoError(t, err, "query %q", query)
	require.NotNil(t, tree)
	return tree
}

func TestParser_Literal(t *testing.T) {
	tree := mustParse(t, "protocol:tcp")

	lit, ok := tree.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "protocol", lit.Field)
	assert.Equal(t, []Value{{Text: "tcp"}}, lit.Values)
	assert.False(t, lit.Negated)
	assert.Equal(t, 0, lit.Pos)
}

func TestParser_ImplicitAnd(t *testing.T) {
	tree := mustParse(t, "protocol:tcp bytes:>1000000")

	and, ok := tree.(*And)
	require.True(t, ok)
	assert.IsType(t, &Literal{}, and.Left)

	num, ok := and.Right.(*Numeric)
	require.True(t, ok)
	assert.Equal(t, "bytes", num.Field)
	assert.Equal(t, OpGt, num.Op)
	assert.Equal(t, Operand{Raw: "1000000", Number: 1000000, IsNumber: true}, num.Value)
	assert.Equal(t, 13, num.Pos)
}

func TestParser_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		query string
		check func(t *testing.T, n Node)
	}{
		{
			name:  "AND binds tighter than OR",
			query: "a:1 OR b:2 AND c:3",
			check: func(t *testing.T, n Node) {
				or, ok := n.(*Or)
				require.True(t, ok)
				assert.IsType(t, &Literal{}, or.Left)
				assert.IsType(t, &And{}, or.Right)
			},
		},
		{
			name:  "NOT binds tighter than AND",
			query: "NOT a:1 AND b:2",
			check: func(t *testing.T, n Node) {
				and, ok := n.(*And)
				require.True(t, ok)
				lit := and.Left.(*Literal)
				assert.True(t, lit.Negated)
				assert.False(t, and.Right.(*Literal).Negated)
			},
		},
		{
			name:  "groups override precedence",
			query: "(a:1 OR b:2) c:3",
			check: func(t *testing.T, n Node) {
				and, ok := n.(*And)
				require.True(t, ok)
				assert.IsType(t, &Or{}, and.Left)
			},
		},
		{
			name:  "lowercase keywords and symbol aliases",
			query: "a:1 and b:2 || c:3",
			check: func(t *testing.T, n Node) {
				or, ok := n.(*Or)
				require.True(t, ok)
				assert.IsType(t, &And{}, or.Left)
			},
		},
		{
			name:  "OR is left associative",
			query: "a:1 OR b:2 OR c:3",
			check: func(t *testing.T, n Node) {
				or, ok := n.(*Or)
				require.True(t, ok)
				assert.IsType(t, &Or{}, or.Left)
				assert.IsType(t, &Literal{}, or.Right)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustParse(t, tt.query))
		})
	}
}

func TestParser_ValueForms(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		lit := mustParse(t, "protocol:tcp,udp,icmp").(*Literal)
		assert.Len(t, lit.Values, 3)
		assert.Equal(t, "icmp", lit.Values[2].Text)
	})

	t.Run("quoted escapes", func(t *testing.T) {
		lit := mustParse(t, `message:"say \"hi\" \\ \*"`).(*Literal)
		require.Len(t, lit.Values, 1)
		assert.Equal(t, `say "hi" \ *`, lit.Values[0].Text)
		assert.True(t, lit.Values[0].Quoted)
	})

	t.Run("unquoted wildcard", func(t *testing.T) {
		w := mustParse(t, "source_ip:192.168.*").(*Wildcard)
		assert.Equal(t, "source_ip", w.Field)
		assert.Equal(t, "192.168.*", w.Pattern)
		assert.False(t, w.CaseSensitive)
	})

	t.Run("quoted wildcard is case sensitive", func(t *testing.T) {
		w := mustParse(t, `device_name:"*Laptop*"`).(*Wildcard)
		assert.Equal(t, "*Laptop*", w.Pattern)
		assert.True(t, w.CaseSensitive)
	})

	t.Run("escaped star is not a wildcard", func(t *testing.T) {
		lit := mustParse(t, `notes:"a\*b"`).(*Literal)
		assert.Equal(t, "a*b", lit.Values[0].Text)
	})

	t.Run("list mixing wildcard and literal", func(t *testing.T) {
		or := mustParse(t, "domain:a.com,*.b.com").(*Or)
		assert.Equal(t, "a.com", or.Left.(*Literal).Values[0].Text)
		assert.Equal(t, "*.b.com", or.Right.(*Wildcard).Pattern)
	})

	t.Run("colons inside values", func(t *testing.T) {
		lit := mustParse(t, "mac:aa:bb:cc:dd:ee:ff").(*Literal)
		assert.Equal(t, "mac", lit.Field)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", lit.Values[0].Text)
	})

	t.Run("free text", func(t *testing.T) {
		lit := mustParse(t, "laptop").(*Literal)
		assert.Equal(t, "", lit.Field)
		assert.Equal(t, "laptop", lit.Values[0].Text)

		lit = mustParse(t, `"exact phrase"`).(*Literal)
		assert.Equal(t, "exact phrase", lit.Values[0].Text)
		assert.True(t, lit.Values[0].Quoted)
	})
}

func TestParser_Negation(t *testing.T) {
	lit := mustParse(t, "-protocol:tcp").(*Literal)
	assert.True(t, lit.Negated)

	not := mustParse(t, "-bytes:>5").(*Not)
	assert.IsType(t, &Numeric{}, not.Inner)

	not = mustParse(t, "NOT (a:1 OR b:2)").(*Not)
	assert.IsType(t, &Or{}, not.Inner)

	// double negation cancels
	lit = mustParse(t, "NOT -protocol:tcp").(*Literal)
	assert.False(t, lit.Negated)
}

func TestParser_Comparisons(t *testing.T) {
	tests := []struct {
		query string
		op    CmpOp
		value Operand
	}{
		{"bytes:>1000", OpGt, Operand{Raw: "1000", Number: 1000, IsNumber: true}},
		{"bytes:>=5MB", OpGte, Operand{Raw: "5MB", Number: 5, IsNumber: true, Unit: "MB"}},
		{"duration:<30m", OpLt, Operand{Raw: "30m", Number: 30, IsNumber: true, Unit: "m"}},
		{"bytes:<=1.5", OpLte, Operand{Raw: "1.5", Number: 1.5, IsNumber: true}},
		{"severity:>=medium", OpGte, Operand{Raw: "medium"}},
		{"timestamp:>2024-01-01", OpGt, Operand{Raw: "2024-01-01"}},
		{`timestamp:>"2024-01-01 10:00:00"`, OpGt, Operand{Raw: "2024-01-01 10:00:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			num, ok := mustParse(t, tt.query).(*Numeric)
			require.True(t, ok)
			assert.Equal(t, tt.op, num.Op)
			assert.Equal(t, tt.value, num.Value)
		})
	}
}

func TestParser_Ranges(t *testing.T) {
	t.Run("dash form inherits unit", func(t *testing.T) {
		r := mustParse(t, "bytes:1-5MB").(*Range)
		assert.Equal(t, Operand{Raw: "1", Number: 1, IsNumber: true, Unit: "MB"}, r.Min)
		assert.Equal(t, Operand{Raw: "5MB", Number: 5, IsNumber: true, Unit: "MB"}, r.Max)
		assert.False(t, r.Bracket)
	})

	t.Run("bracket form", func(t *testing.T) {
		r := mustParse(t, "timestamp:[2024-01-01 TO 2024-12-31]").(*Range)
		assert.Equal(t, "2024-01-01", r.Min.Raw)
		assert.Equal(t, "2024-12-31", r.Max.Raw)
		assert.True(t, r.Bracket)
	})

	t.Run("bracket keyword is case insensitive", func(t *testing.T) {
		r := mustParse(t, "bytes:[1 to 10]").(*Range)
		assert.Equal(t, 10.0, r.Max.Number)
	})

	t.Run("inverted bounds parse fine", func(t *testing.T) {
		// min < max is checked by the validator
		r := mustParse(t, "bytes:5-1").(*Range)
		assert.Equal(t, 5.0, r.Min.Number)
	})

	t.Run("dates are not dash ranges", func(t *testing.T) {
		lit := mustParse(t, "timestamp:2024-06-01").(*Literal)
		assert.Equal(t, "2024-06-01", lit.Values[0].Text)
	})
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		kind   SyntaxErrorKind
		offset int
	}{
		{"unclosed group", "severity:high AND (status:1", UnmatchedParen, 18},
		{"stray close paren", "a:1)", UnmatchedParen, 3},
		{"leading close paren", ") a:1", UnmatchedParen, 0},
		{"nested unclosed", "(a:1 OR (b:2)", UnmatchedParen, 0},
		{"unterminated quote", `message:"abc`, UnmatchedQuote, 8},
		{"trailing AND", "a:1 AND", DanglingOperator, 4},
		{"leading OR", "OR a:1", DanglingOperator, 0},
		{"doubled OR", "a:1 OR OR b:2", DanglingOperator, 4},
		{"AND before close paren", "(a:1 AND)", DanglingOperator, 5},
		{"lone NOT", "NOT", DanglingOperator, 0},
		{"lone minus", "a:1 -", DanglingOperator, 4},
		{"missing value", "a:", DanglingOperator, 1},
		{"space after colon", "a: b", DanglingOperator, 1},
		{"comparison without value", "bytes:>", DanglingOperator, 6},
		{"trailing comma", "a:1,", DanglingOperator, 3},
		{"malformed bracket", "timestamp:[2024 TO]", InvalidRange, 10},
		{"unterminated bracket", "timestamp:[2024 TO 2025", InvalidRange, 10},
		{"wildcard in comparison", "bytes:>5*", WildcardInNumeric, 7},
		{"wildcard in bracket", "bytes:[1 TO *]", WildcardInNumeric, 6},
		{"wildcard in dash range", "bytes:1*-5", WildcardInNumeric, 6},
		{"empty", "   ", EmptyQuery, 0},
		{"empty group", "()", UnexpectedToken, 1},
		{"stray bracket", "a:1 ]", UnexpectedToken, 4},
		{"word after bracket", "bytes:[1 TO 5]foo", InvalidRange, 13},
		{"colon after bracket", "ts:[1 TO 5]:", InvalidRange, 10},
		{"colon after quote", `message:"a":`, UnexpectedToken, 11},
		{"bare backslash", `a\b`, UnexpectedToken, 1},
		{"too long", strings.Repeat("a", MaxQueryLength+1), QueryTooLong, MaxQueryLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var se *SyntaxError
			require.True(t, errors.As(err, &se), "got %T: %v", err, err)
			assert.Equal(t, tt.kind, se.Kind, se.Error())
			assert.Equal(t, tt.offset, se.Offset, se.Error())
		})
	}
}

func TestParser_MaxLength(t *testing.T) {
	_, err := NewParser("protocol:tcp").WithMaxLength(5).Parse()
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, QueryTooLong, se.Kind)

	// the limit can only be lowered
	query := strings.Repeat("a", MaxQueryLength+1)
	_, err = NewParser(query).WithMaxLength(MaxQueryLength * 2).Parse()
	require.True(t, errors.As(err, &se))
	assert.Equal(t, QueryTooLong, se.Kind)
}

func TestSyntaxError_Is(t *testing.T) {
	err := &SyntaxError{Kind: UnmatchedParen, Offset: 3}
	assert.True(t, errors.Is(err, &SyntaxError{Kind: UnmatchedParen, Offset: 3}))
	assert.False(t, errors.Is(err, &SyntaxError{Kind: UnmatchedParen, Offset: 4}))
	assert.False(t, errors.Is(err, ErrSemantic))
}

func TestLeafFields(t *testing.T) {
	tree := mustParse(t, "a:1 OR (b:2 AND -a:3) laptop c:>4")
	assert.Equal(t, []string{"a", "b", "c"}, LeafFields(tree))
	assert.Len(t, Leaves(tree), 5)
}
