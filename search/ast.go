package search

import (
	"regexp"
	"strconv"
)

// NodeType represents predicate tree node types
type NodeType int

const (
	NodeLiteral NodeType = iota
	NodeNumeric
	NodeRange
	NodeWildcard
	NodeAnd
	NodeOr
	NodeNot
)

// String returns the string representation
func (t NodeType) String() string {
	switch t {
	case NodeLiteral:
		return "literal"
	case NodeNumeric:
		return "numeric"
	case NodeRange:
		return "range"
	case NodeWildcard:
		return "wildcard"
	case NodeAnd:
		return "and"
	case NodeOr:
		return "or"
	case NodeNot:
		return "not"
	}
	return "unknown"
}

// Node is a predicate tree node. Trees are built once by Parse and never
// mutated afterwards, so they may be shared between goroutines.
type Node interface {
	Type() NodeType
}

// Leaf is a node that tests a single field
type Leaf interface {
	Node
	FieldName() string
	Offset() int
}

// CmpOp is a comparison operator
type CmpOp int

const (
	OpEq CmpOp = iota
	OpGt
	OpGte
	OpLt
	OpLte
)

// String returns the operator as written in a query
func (op CmpOp) String() string {
	switch op {
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	}
	return "="
}

// Value is one literal value of a term
type Value struct {
	Text string
	// Quoted values compare case-sensitively
	Quoted bool
}

// Operand is the right-hand side of a comparison or one bound of a range.
// Raw is kept because the meaning depends on the field type: a number with
// an optional unit, a date, or an ordinal label such as "high".
type Operand struct {
	Raw      string
	Number   float64
	IsNumber bool
	Unit     string
}

var operandPattern = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)([A-Za-z]+)?$`)

// parseOperand splits "5MB" into 5 and "MB"; anything else is kept raw
func parseOperand(raw string) Operand {
	op := Operand{Raw: raw}
	m := operandPattern.FindStringSubmatch(raw)
	if m == nil {
		return op
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return op
	}
	op.Number = n
	op.IsNumber = true
	op.Unit = m[2]
	return op
}

// Literal is equality or set membership. More than one value means
// OR-of-equality; Negated inverts the whole set.
type Literal struct {
	Field   string
	Values  []Value
	Negated bool
	Pos     int
}

// Numeric compares a field against a single operand
type Numeric struct {
	Field string
	Op    CmpOp
	Value Operand
	Pos   int
}

// Range is an inclusive range. Bracket records the [a TO b] form.
type Range struct {
	Field   string
	Min     Operand
	Max     Operand
	Bracket bool
	Pos     int
}

// Wildcard is a glob where '*' matches zero or more characters.
// Pattern keeps escapes: `\*` is a literal star and `\\` a literal backslash.
type Wildcard struct {
	Field   string
	Pattern string
	// CaseSensitive is set when the pattern was quoted
	CaseSensitive bool
	Pos           int
}

// And matches when both sides match
type And struct {
	Left, Right Node
}

// Or matches when either side matches
type Or struct {
	Left, Right Node
}

// Not inverts its inner node
type Not struct {
	Inner Node
}

func (*Literal) Type() NodeType  { return NodeLiteral }
func (*Numeric) Type() NodeType  { return NodeNumeric }
func (*Range) Type() NodeType    { return NodeRange }
func (*Wildcard) Type() NodeType { return NodeWildcard }
func (*And) Type() NodeType      { return NodeAnd }
func (*Or) Type() NodeType       { return NodeOr }
func (*Not) Type() NodeType      { return NodeNot }

func (n *Literal) FieldName() string  { return n.Field }
func (n *Numeric) FieldName() string  { return n.Field }
func (n *Range) FieldName() string    { return n.Field }
func (n *Wildcard) FieldName() string { return n.Field }

func (n *Literal) Offset() int  { return n.Pos }
func (n *Numeric) Offset() int  { return n.Pos }
func (n *Range) Offset() int    { return n.Pos }
func (n *Wildcard) Offset() int { return n.Pos }

// Walk visits the tree depth-first, left to right. Returning false from fn
// stops descent into that node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *And:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *Or:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *Not:
		Walk(v.Inner, fn)
	}
}

// Leaves returns every leaf in left-to-right order
func Leaves(n Node) []Leaf {
	var out []Leaf
	Walk(n, func(node Node) bool {
		if leaf, ok := node.(Leaf); ok {
			out = append(out, leaf)
		}
		return true
	})
	return out
}

// LeafFields returns the distinct qualified field names of the tree in order
// of first appearance. Free-text terms are skipped.
func LeafFields(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	for _, leaf := range Leaves(n) {
		f := leaf.FieldName()
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
