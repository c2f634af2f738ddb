package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the maximum query length in characters
const MaxQueryLength = 2000

// TokenType represents the type of token
type TokenType int

const (
	// TokenField is "name:"; Value holds the name
	TokenField TokenType = iota
	// TokenValue is a bare word
	TokenValue
	// TokenQuoted is a quoted string; Value holds the content in glob form
	TokenQuoted
	TokenCompare
	// TokenRange is "[a TO b]"; Value holds the bracket content
	TokenRange
	TokenComma
	TokenMinus
	TokenLogic
	TokenLParen
	TokenRParen
	TokenEOF
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	// End is the byte offset just past the token
	End int
	// Glob is set when the value holds an unescaped '*'
	Glob bool
}

var (
	dashRangePattern  = regexp.MustCompile(`^(\d+(?:\.\d+)?)([A-Za-z]*)-(\d+(?:\.\d+)?)([A-Za-z]*)$`)
	globRangePattern  = regexp.MustCompile(`^[\d.*]+[A-Za-z]*-[\d.*]+[A-Za-z]*$`)
	globOperandDigits = regexp.MustCompile(`\d`)
)

// Parser parses query strings into predicate trees
type Parser struct {
	input     string
	maxLength int
	tokens    []Token
	current   int
	// openParens holds the offsets of the currently open groups
	openParens []int
}

// NewParser creates a new parser
func NewParser(query string) *Parser {
	return &Parser{
		input:     query,
		maxLength: MaxQueryLength,
	}
}

// WithMaxLength lowers the accepted query length. Values above
// MaxQueryLength are ignored.
func (p *Parser) WithMaxLength(n int) *Parser {
	if n > 0 && n < MaxQueryLength {
		p.maxLength = n
	}
	return p
}

// Parse parses a query with the default length limit
func Parse(input string) (Node, error) {
	return NewParser(input).Parse()
}

// Parse parses the query and returns the predicate tree
func (p *Parser) Parse() (Node, error) {
	if strings.TrimSpace(p.input) == "" {
		return nil, newSyntaxError(EmptyQuery, 0, "query is empty")
	}
	body := strings.TrimLeft(p.input, " \t\n\r")
	lead := len(p.input) - len(body)
	body = strings.TrimRight(body, " \t\n\r")
	if n := utf8.RuneCountInString(body); n > p.maxLength {
		return nil, newSyntaxError(QueryTooLong, lead+byteOffsetOfRune(body, p.maxLength),
			"query is %d characters long (max %d)", n, p.maxLength)
	}

	if err := p.tokenize(); err != nil {
		return nil, err
	}

	tree, err := p.parseOrExpression()
	if err != nil {
		return nil, err
	}

	if !p.check(TokenEOF) {
		tok := p.peek()
		if tok.Type == TokenRParen {
			return nil, newSyntaxError(UnmatchedParen, tok.Pos, "unexpected ')' without matching '('")
		}
		return nil, newSyntaxError(UnexpectedToken, tok.Pos, "unexpected %s", describeToken(tok))
	}
	return tree, nil
}

// tokenize breaks the input into tokens. After "field:" and after a
// comparison operator the scanner is in value mode, where ':' and '-' are
// part of the word (MAC addresses, dates, ranges).
func (p *Parser) tokenize() error {
	input := p.input
	pos := 0
	valueMode := false

	for pos < len(input) {
		c := input[pos]

		if isSpace(c) {
			pos++
			valueMode = false
			continue
		}

		switch c {
		case '(':
			p.emit(TokenLParen, "(", pos, pos+1)
			pos++
			valueMode = false
			continue
		case ')':
			p.emit(TokenRParen, ")", pos, pos+1)
			pos++
			valueMode = false
			continue
		case ',':
			p.emit(TokenComma, ",", pos, pos+1)
			pos++
			continue
		case '"':
			tok, err := scanQuoted(input, pos)
			if err != nil {
				return err
			}
			p.tokens = append(p.tokens, tok)
			pos = tok.End
			if pos < len(input) && !isSpace(input[pos]) && input[pos] != ')' && input[pos] != ',' {
				return newSyntaxError(UnexpectedToken, pos, "unexpected %q after quoted string", input[pos])
			}
			continue
		case '[':
			end := strings.IndexByte(input[pos:], ']')
			if end < 0 {
				return newSyntaxError(InvalidRange, pos, "unterminated range, expected ']'")
			}
			p.emit(TokenRange, input[pos+1:pos+end], pos, pos+end+1)
			pos += end + 1
			// a range ends its term
			if pos < len(input) && !isSpace(input[pos]) && input[pos] != ')' {
				return newSyntaxError(InvalidRange, pos-1, "range must be followed by a space, ')' or the end of the query")
			}
			valueMode = false
			continue
		case ']':
			return newSyntaxError(UnexpectedToken, pos, "unexpected ']' without matching '['")
		}

		if valueMode {
			if c == '>' || c == '<' || c == '=' {
				op := string(c)
				if c != '=' && pos+1 < len(input) && input[pos+1] == '=' {
					op += "="
				}
				p.emit(TokenCompare, op, pos, pos+len(op))
				pos += len(op)
				continue
			}
			start := pos
			for pos < len(input) && !isValueDelim(input[pos]) {
				pos++
			}
			if err := p.emitWord(input[start:pos], start); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(input[pos:], "&&") {
			p.emit(TokenLogic, "AND", pos, pos+2)
			pos += 2
			continue
		}
		if strings.HasPrefix(input[pos:], "||") {
			p.emit(TokenLogic, "OR", pos, pos+2)
			pos += 2
			continue
		}
		if c == '-' {
			if pos+1 >= len(input) || isSpace(input[pos+1]) || input[pos+1] == ')' {
				return newSyntaxError(DanglingOperator, pos, "'-' must be followed by a term")
			}
			p.emit(TokenMinus, "-", pos, pos+1)
			pos++
			continue
		}

		start := pos
		for pos < len(input) && !isValueDelim(input[pos]) && input[pos] != ':' {
			pos++
		}
		word := input[start:pos]
		if word == "" {
			return newSyntaxError(UnexpectedToken, pos, "unexpected character %q", input[pos])
		}

		if pos < len(input) && input[pos] == ':' {
			if strings.ContainsAny(word, `*\`) {
				return newSyntaxError(UnexpectedToken, start, "invalid field name")
			}
			p.emit(TokenField, word, start, pos+1)
			pos++
			valueMode = true
			continue
		}

		switch upper := strings.ToUpper(word); upper {
		case "AND", "OR", "NOT":
			p.emit(TokenLogic, upper, start, pos)
			continue
		}
		if err := p.emitWord(word, start); err != nil {
			return err
		}
	}

	p.emit(TokenEOF, "", len(input), len(input))
	return nil
}

func (p *Parser) emit(t TokenType, value string, pos, end int) {
	p.tokens = append(p.tokens, Token{Type: t, Value: value, Pos: pos, End: end})
}

// emitWord appends a bare word. Backslash escapes are only meaningful
// inside quotes, so a bare backslash is rejected.
func (p *Parser) emitWord(word string, start int) error {
	if i := strings.IndexByte(word, '\\'); i >= 0 {
		return newSyntaxError(UnexpectedToken, start+i, "backslash escapes are only allowed inside quotes")
	}
	p.tokens = append(p.tokens, Token{
		Type:  TokenValue,
		Value: word,
		Pos:   start,
		End:   start + len(word),
		Glob:  strings.Contains(word, "*"),
	})
	return nil
}

// scanQuoted reads a quoted string starting at the opening quote.
// The token value is in glob form: an unescaped '*' is a wildcard,
// `\*` a literal star and `\\` a literal backslash.
func scanQuoted(input string, start int) (Token, error) {
	var b strings.Builder
	glob := false
	pos := start + 1

	for pos < len(input) {
		c := input[pos]
		switch {
		case c == '\\' && pos+1 < len(input):
			switch next := input[pos+1]; next {
			case '*':
				b.WriteString(`\*`)
			case '\\':
				b.WriteString(`\\`)
			case '"':
				b.WriteByte('"')
			default:
				b.WriteString(`\\`)
				b.WriteByte(next)
			}
			pos += 2
		case c == '"':
			return Token{Type: TokenQuoted, Value: b.String(), Pos: start, End: pos + 1, Glob: glob}, nil
		case c == '*':
			glob = true
			b.WriteByte('*')
			pos++
		default:
			b.WriteByte(c)
			pos++
		}
	}

	return Token{}, newSyntaxError(UnmatchedQuote, start, "unterminated quoted string")
}

// parseOrExpression handles OR, the lowest precedence
func (p *Parser) parseOrExpression() (Node, error) {
	left, err := p.parseAndExpression()
	if err != nil {
		return nil, err
	}

	for p.matchLogic("OR") {
		if err := p.checkDangling(p.previous()); err != nil {
			return nil, err
		}
		right, err := p.parseAndExpression()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}

	return left, nil
}

// parseAndExpression handles explicit and implicit AND
func (p *Parser) parseAndExpression() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		if p.matchLogic("AND") {
			if err := p.checkDangling(p.previous()); err != nil {
				return nil, err
			}
		} else if !p.startsTerm() {
			break
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}

	return left, nil
}

// parseUnary handles NOT and leading '-'
func (p *Parser) parseUnary() (Node, error) {
	if p.matchLogic("NOT") || p.match(TokenMinus) {
		if err := p.checkDangling(p.previous()); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate(inner), nil
	}
	return p.parsePrimary()
}

// parsePrimary parses a group or a single term
func (p *Parser) parsePrimary() (Node, error) {
	if p.match(TokenLParen) {
		open := p.previous()
		if p.check(TokenRParen) {
			return nil, newSyntaxError(UnexpectedToken, p.peek().Pos, "empty group")
		}

		p.openParens = append(p.openParens, open.Pos)
		expr, err := p.parseOrExpression()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenRParen) {
			if p.check(TokenEOF) {
				return nil, newSyntaxError(UnmatchedParen, open.Pos, "missing closing parenthesis")
			}
			tok := p.peek()
			return nil, newSyntaxError(UnexpectedToken, tok.Pos, "unexpected %s", describeToken(tok))
		}
		p.openParens = p.openParens[:len(p.openParens)-1]
		return expr, nil
	}

	tok := p.peek()
	switch tok.Type {
	case TokenField:
		p.advance()
		return p.parseFieldTerm(tok)
	case TokenValue, TokenQuoted:
		return p.parseLiteralMatch("", tok.Pos)
	case TokenLogic:
		return nil, newSyntaxError(DanglingOperator, tok.Pos, "%s is missing its left operand", tok.Value)
	case TokenRParen:
		return nil, newSyntaxError(UnmatchedParen, tok.Pos, "unexpected ')' without matching '('")
	case TokenEOF:
		if n := len(p.openParens); n > 0 {
			return nil, newSyntaxError(UnmatchedParen, p.openParens[n-1], "missing closing parenthesis")
		}
		return nil, newSyntaxError(UnexpectedToken, tok.Pos, "unexpected end of query")
	}
	return nil, newSyntaxError(UnexpectedToken, tok.Pos, "unexpected %s", describeToken(tok))
}

// parseFieldTerm parses what follows "field:"
func (p *Parser) parseFieldTerm(fieldTok Token) (Node, error) {
	field := fieldTok.Value
	next := p.peek()
	colon := fieldTok.End - 1

	if next.Pos != fieldTok.End {
		return nil, newSyntaxError(DanglingOperator, colon, "missing value after '%s:'", field)
	}

	switch next.Type {
	case TokenCompare:
		opTok := p.advance()
		operand := p.peek()
		if operand.Pos != opTok.End || (operand.Type != TokenValue && operand.Type != TokenQuoted) {
			return nil, newSyntaxError(DanglingOperator, opTok.Pos, "comparison '%s' is missing its value", opTok.Value)
		}
		p.advance()
		if operand.Glob {
			return nil, newSyntaxError(WildcardInNumeric, operand.Pos, "wildcards are not allowed in comparisons")
		}
		return &Numeric{
			Field: field,
			Op:    parseCmpOp(opTok.Value),
			Value: parseOperand(unescapeGlob(operand.Value)),
			Pos:   fieldTok.Pos,
		}, nil

	case TokenRange:
		p.advance()
		return parseBracketRange(field, next, fieldTok.Pos)

	case TokenValue:
		if !next.Glob && dashRangePattern.MatchString(next.Value) {
			p.advance()
			return parseDashRange(field, next.Value, fieldTok.Pos), nil
		}
		if next.Glob && globRangePattern.MatchString(next.Value) && globOperandDigits.MatchString(next.Value) {
			return nil, newSyntaxError(WildcardInNumeric, next.Pos, "wildcards are not allowed in ranges")
		}
		return p.parseLiteralMatch(field, fieldTok.Pos)

	case TokenQuoted:
		return p.parseLiteralMatch(field, fieldTok.Pos)
	}

	return nil, newSyntaxError(DanglingOperator, colon, "missing value after '%s:'", field)
}

// parseLiteralMatch parses literal ("," literal)*. Wildcard items become
// Wildcard leaves OR-ed with the plain literals.
func (p *Parser) parseLiteralMatch(field string, pos int) (Node, error) {
	var items []Token
	for {
		tok := p.peek()
		if tok.Type != TokenValue && tok.Type != TokenQuoted {
			break
		}
		p.advance()
		items = append(items, tok)

		if !p.check(TokenComma) {
			break
		}
		comma := p.advance()
		if nxt := p.peek(); nxt.Type != TokenValue && nxt.Type != TokenQuoted {
			return nil, newSyntaxError(DanglingOperator, comma.Pos, "trailing ',' in value list")
		}
	}

	var values []Value
	var wildcards []Node
	for _, tok := range items {
		quoted := tok.Type == TokenQuoted
		if tok.Glob {
			wildcards = append(wildcards, &Wildcard{Field: field, Pattern: tok.Value, CaseSensitive: quoted, Pos: pos})
			continue
		}
		values = append(values, Value{Text: unescapeGlob(tok.Value), Quoted: quoted})
	}

	var node Node
	if len(values) > 0 {
		node = &Literal{Field: field, Values: values, Pos: pos}
	}
	for _, w := range wildcards {
		if node == nil {
			node = w
			continue
		}
		node = &Or{Left: node, Right: w}
	}
	return node, nil
}

func parseDashRange(field, value string, pos int) *Range {
	m := dashRangePattern.FindStringSubmatch(value)
	minRaw := m[1] + m[2]
	maxRaw := m[3] + m[4]

	lo := parseOperand(minRaw)
	hi := parseOperand(maxRaw)
	// "1-5MB" means 1MB to 5MB
	if lo.Unit == "" && hi.Unit != "" {
		lo.Unit = hi.Unit
	} else if hi.Unit == "" && lo.Unit != "" {
		hi.Unit = lo.Unit
	}
	return &Range{Field: field, Min: lo, Max: hi, Pos: pos}
}

func parseBracketRange(field string, tok Token, pos int) (Node, error) {
	parts := strings.Fields(tok.Value)
	if len(parts) != 3 || !strings.EqualFold(parts[1], "TO") {
		return nil, newSyntaxError(InvalidRange, tok.Pos, "expected [min TO max]")
	}
	if strings.Contains(parts[0], "*") || strings.Contains(parts[2], "*") {
		return nil, newSyntaxError(WildcardInNumeric, tok.Pos, "wildcards are not allowed in ranges")
	}
	return &Range{
		Field:   field,
		Min:     parseOperand(parts[0]),
		Max:     parseOperand(parts[2]),
		Bracket: true,
		Pos:     pos,
	}, nil
}

// negate applies NOT. Literals flip their own flag and double negation cancels.
func negate(n Node) Node {
	switch v := n.(type) {
	case *Literal:
		c := *v
		c.Negated = !c.Negated
		return &c
	case *Not:
		return v.Inner
	}
	return &Not{Inner: n}
}

// checkDangling reports an operator that has nothing to its right
func (p *Parser) checkDangling(op Token) error {
	next := p.peek()
	switch next.Type {
	case TokenEOF, TokenRParen:
		return newSyntaxError(DanglingOperator, op.Pos, "%s is missing its right operand", op.Value)
	case TokenLogic:
		if next.Value != "NOT" {
			return newSyntaxError(DanglingOperator, op.Pos, "%s is missing its right operand", op.Value)
		}
	}
	return nil
}

// startsTerm reports whether the next token can begin a term (implicit AND)
func (p *Parser) startsTerm() bool {
	tok := p.peek()
	switch tok.Type {
	case TokenField, TokenValue, TokenQuoted, TokenLParen, TokenMinus:
		return true
	case TokenLogic:
		return tok.Value == "NOT"
	}
	return false
}

func parseCmpOp(s string) CmpOp {
	switch s {
	case ">":
		return OpGt
	case ">=":
		return OpGte
	case "<":
		return OpLt
	case "<=":
		return OpLte
	}
	return OpEq
}

func describeToken(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of query"
	case TokenComma:
		return "','"
	case TokenCompare:
		return "comparison operator"
	case TokenRange:
		return "range"
	case TokenLogic:
		return tok.Value
	}
	return "token"
}

// unescapeGlob turns glob form back into plain text
func unescapeGlob(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func byteOffsetOfRune(s string, runeIndex int) int {
	i := 0
	for off := range s {
		if i == runeIndex {
			return off
		}
		i++
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isValueDelim(c byte) bool {
	return isSpace(c) || c == '(' || c == ')' || c == ',' || c == '"' || c == '[' || c == ']'
}

// Helper methods
func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) matchLogic(values ...string) bool {
	if p.check(TokenLogic) {
		for _, v := range values {
			if p.peek().Value == v {
				p.advance()
				return true
			}
		}
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	return p.tokens[p.current-1]
}
