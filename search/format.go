package search

import (
	"strings"
)

// Format renders a predicate tree as canonical query text. Implicit ANDs
// become explicit and groups are parenthesised only where precedence needs
// it, so Parse(Format(t)) yields a tree equal to t.
func Format(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Literal:
		if v.Negated {
			b.WriteByte('-')
		}
		writeField(b, v.Field)
		for i, val := range v.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, val)
		}
	case *Wildcard:
		writeField(b, v.Field)
		if v.CaseSensitive {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(v.Pattern, `"`, `\"`))
			b.WriteByte('"')
		} else {
			b.WriteString(v.Pattern)
		}
	case *Numeric:
		writeField(b, v.Field)
		b.WriteString(v.Op.String())
		writeOperand(b, v.Value)
	case *Range:
		writeField(b, v.Field)
		if v.Bracket {
			b.WriteByte('[')
			b.WriteString(v.Min.Raw)
			b.WriteString(" TO ")
			b.WriteString(v.Max.Raw)
			b.WriteByte(']')
		} else {
			b.WriteString(v.Min.Raw)
			b.WriteByte('-')
			b.WriteString(v.Max.Raw)
		}
	case *And:
		writeChild(b, v.Left, NodeOr)
		b.WriteString(" AND ")
		writeChild(b, v.Right, NodeOr, NodeAnd)
	case *Or:
		writeNode(b, v.Left)
		b.WriteString(" OR ")
		writeChild(b, v.Right, NodeOr)
	case *Not:
		b.WriteString("NOT ")
		writeChild(b, v.Inner, NodeAnd, NodeOr)
	}
}

// writeChild wraps the child in parentheses when its type is one of wrap
func writeChild(b *strings.Builder, n Node, wrap ...NodeType) {
	for _, t := range wrap {
		if n.Type() == t {
			b.WriteByte('(')
			writeNode(b, n)
			b.WriteByte(')')
			return
		}
	}
	writeNode(b, n)
}

func writeField(b *strings.Builder, field string) {
	if field == "" {
		return
	}
	b.WriteString(field)
	b.WriteByte(':')
}

func writeValue(b *strings.Builder, v Value) {
	if !v.Quoted {
		b.WriteString(v.Text)
		return
	}
	b.WriteByte('"')
	for i := 0; i < len(v.Text); i++ {
		switch c := v.Text[i]; c {
		case '\\', '"', '*':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

func writeOperand(b *strings.Builder, op Operand) {
	if op.Raw == "" || strings.ContainsAny(op.Raw, " \t\r\n()[],\"\\*") || strings.IndexAny(op.Raw[:1], "<>=") == 0 {
		writeValue(b, Value{Text: op.Raw, Quoted: true})
		return
	}
	b.WriteString(op.Raw)
}
