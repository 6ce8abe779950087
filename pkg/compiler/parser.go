package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program        = statement* EOF
//	statement      = constDecl | letDecl | assignment | print | exit | if
//	constDecl      = "const" IDENTIFIER "=" expression ";"
//	letDecl        = "let" IDENTIFIER "=" expression ";"
//	assignment     = IDENTIFIER "=" expression ";"
//	print          = "console" "." "print" "(" expression ")" ";"
//	exit           = "exit" "(" expression ")" ";"
//	if             = "if" "(" expression ")" block ("else" (block | if))?
//	block          = "{" statement* "}"
//	expression     = multiplicative (("+"|"-"|"=="|"!="|"<"|">"|"<="|">=") multiplicative)*
//	multiplicative = primary (("*"|"/") primary)*
//	primary        = NUMBER | "-" NUMBER | STRING | "true" | "false" | "null"
//	               | "[" (expression ("," expression)*)? "]" | IDENTIFIER | "(" expression ")"
//
// Comparison operators deliberately share the additive tier, so 1 < 2 + 3
// groups as (1 < 2) + 3.
//
// Every statement parser returns (nil, nil) and leaves the position where
// it started when its form does not match, so callers can try the next
// form. Errors are fatal.
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string

	// furthest and expected describe the deepest point any failed
	// alternative reached; used to make syntax errors specific.
	furthest int
	expected string
}

// reserved words cannot be declared or referenced as names.
var reserved = map[string]bool{
	"const": true,
	"let":   true,
	"if":    true,
	"else":  true,
	"true":  true,
	"false": true,
	"null":  true,
}

// additiveOps is the shared additive/comparison precedence tier.
var additiveOps = map[TokenType]BinOp{
	PLUS:       Add,
	MINUS:      Sub,
	EQUALS:     Equal,
	NOT_EQ:     NotEqual,
	LESS:       LessThan,
	GREATER:    GreaterThan,
	LESS_EQ:    LessOrEqual,
	GREATER_EQ: GreaterOrEqual,
}

var multiplicativeOps = map[TokenType]BinOp{
	STAR:  Mul,
	SLASH: Div,
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// IsFinished reports whether only the EOF sentinel remains.
func (p *Parser) IsFinished() bool {
	return p.peek().Type == EOF
}

// Pos returns the index of the next token to be consumed.
func (p *Parser) Pos() int {
	return p.pos
}

// fmtError builds a syntax error pointing at the token at index pos, with
// the source line it appears on.
func (p *Parser) fmtError(pos int, format string, args ...any) error {
	tok := p.at(pos)
	msg := fmt.Sprintf(format, args...)

	lineIdx := tok.Line - 1 // Lines are 1-based
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		if snippet := strings.TrimSpace(p.sourceLines[lineIdx]); snippet != "" {
			msg += "\n  |> " + snippet
		}
	}
	return &CompileError{Kind: SyntaxError, Line: tok.Line, Pos: pos, Msg: msg}
}

func (p *Parser) at(i int) Token {
	if i >= len(p.tokens) {
		line := 1
		if n := len(p.tokens); n > 0 {
			line = p.tokens[n-1].Line
		}
		return Token{Type: EOF, Line: line}
	}
	return p.tokens[i]
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.at(p.pos)
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	return p.at(p.pos + 1)
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// miss records that the current position needed something else.
func (p *Parser) miss(what string) {
	if p.pos >= p.furthest {
		p.furthest = p.pos
		p.expected = what
	}
}

// match consumes the current token if it has type tt.
func (p *Parser) match(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	p.miss(tt.String())
	return false
}

// matchWord consumes the current token if it is the identifier word.
func (p *Parser) matchWord(word string) bool {
	if p.peek().is(word) {
		p.advance()
		return true
	}
	p.miss(strconv.Quote(word))
	return false
}

// matchName consumes a non-reserved identifier and returns it.
func (p *Parser) matchName() (string, bool) {
	tok := p.peek()
	if tok.Type == IDENTIFIER && !reserved[tok.Lexeme] {
		p.advance()
		return tok.Lexeme, true
	}
	p.miss("name")
	return "", false
}

// attempt runs parse and rewinds to the starting position when parse
// reports no match.
func (p *Parser) attempt(parse func() (Stmt, error)) (Stmt, error) {
	start := p.pos
	stmt, err := parse()
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		p.pos = start
	}
	return stmt, nil
}

// parseExpression handles the shared additive/comparison tier.
func (p *Parser) parseExpression() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if expr == nil || err != nil {
		return nil, err
	}

	for {
		op, ok := additiveOps[p.peek().Type]
		if !ok {
			break
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if right == nil || err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseMultiplicative handles * and /
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parsePrimary()
	if expr == nil || err != nil {
		return nil, err
	}

	for {
		op, ok := multiplicativeOps[p.peek().Type]
		if !ok {
			break
		}
		p.advance()
		right, err := p.parsePrimary()
		if right == nil || err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parsePrimary handles literals, names, arrays and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case NUMBER:
		p.advance()
		return p.numberLiteral(p.pos-1, tok.Lexeme)

	case MINUS:
		// A minus directly in front of a number is part of the literal.
		if p.peekNext().Type != NUMBER {
			break
		}
		p.advance()
		num := p.advance()
		return p.numberLiteral(p.pos-1, "-"+num.Lexeme)

	case STRING:
		p.advance()
		return &StringLiteral{Value: tok.Lexeme}, nil

	case IDENTIFIER:
		switch tok.Lexeme {
		case "true", "false":
			p.advance()
			return &BoolLiteral{Value: tok.Lexeme == "true"}, nil
		case "null":
			p.advance()
			return &NullLiteral{}, nil
		}
		if reserved[tok.Lexeme] {
			break
		}
		p.advance()
		return &VarRef{Name: tok.Lexeme}, nil

	case LBRACKET:
		p.advance()
		return p.parseArray()

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if expr == nil || err != nil {
			return nil, err
		}
		if !p.match(RPAREN) {
			return nil, nil
		}
		return expr, nil
	}

	p.miss("expression")
	return nil, nil
}

// parseArray parses the elements of [e, e, ...]; the "[" is already consumed.
func (p *Parser) parseArray() (Expr, error) {
	elements := []Expr{}
	if p.peek().Type == RBRACKET {
		p.advance()
		return &ArrayLiteral{Elements: elements}, nil
	}
	for {
		elem, err := p.parseExpression()
		if elem == nil || err != nil {
			return nil, err
		}
		elements = append(elements, elem)
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if !p.match(RBRACKET) {
		return nil, nil
	}
	return &ArrayLiteral{Elements: elements}, nil
}

// numberLiteral converts verbatim digit text into an integer or float node.
func (p *Parser) numberLiteral(pos int, text string) (Expr, error) {
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.fmtError(pos, "invalid float literal %q", text)
		}
		return &FloatLiteral{Value: f}, nil
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return nil, p.fmtError(pos, "integer literal %q out of 32-bit range", text)
	}
	return &IntLiteral{Value: int32(n)}, nil
}

// parseDecl parses keyword NAME = expr ; for const and let.
func (p *Parser) parseDecl(keyword string, build func(name string, value Expr) Stmt) (Stmt, error) {
	return p.attempt(func() (Stmt, error) {
		if !p.matchWord(keyword) {
			return nil, nil
		}
		name, ok := p.matchName()
		if !ok || !p.match(ASSIGN) {
			return nil, nil
		}
		value, err := p.parseExpression()
		if value == nil || err != nil {
			return nil, err
		}
		if !p.match(SEMICOLON) {
			return nil, nil
		}
		return build(name, value), nil
	})
}

// ParseConstDeclaration parses const NAME = expr ;
func (p *Parser) ParseConstDeclaration() (Stmt, error) {
	return p.parseDecl("const", func(name string, value Expr) Stmt {
		return &ConstDecl{Name: name, Value: value}
	})
}

// ParseLetDeclaration parses let NAME = expr ;
func (p *Parser) ParseLetDeclaration() (Stmt, error) {
	return p.parseDecl("let", func(name string, value Expr) Stmt {
		return &LetDecl{Name: name, Value: value}
	})
}

// ParseAssignment parses NAME = expr ;
func (p *Parser) ParseAssignment() (Stmt, error) {
	return p.attempt(func() (Stmt, error) {
		name, ok := p.matchName()
		if !ok || !p.match(ASSIGN) {
			return nil, nil
		}
		value, err := p.parseExpression()
		if value == nil || err != nil {
			return nil, err
		}
		if !p.match(SEMICOLON) {
			return nil, nil
		}
		return &Assignment{Name: name, Value: value}, nil
	})
}

// parseCall parses name ( expr ) ; after the leading words have matched.
func (p *Parser) parseCall() (Expr, error) {
	if !p.match(LPAREN) {
		return nil, nil
	}
	expr, err := p.parseExpression()
	if expr == nil || err != nil {
		return nil, err
	}
	if !p.match(RPAREN) || !p.match(SEMICOLON) {
		return nil, nil
	}
	return expr, nil
}

// ParseConsolePrint parses console.print(expr);
func (p *Parser) ParseConsolePrint() (Stmt, error) {
	return p.attempt(func() (Stmt, error) {
		if !p.matchWord("console") || !p.match(DOT) || !p.matchWord("print") {
			return nil, nil
		}
		expr, err := p.parseCall()
		if expr == nil || err != nil {
			return nil, err
		}
		return &PrintStmt{Expr: expr}, nil
	})
}

// ParseExit parses exit(expr);
func (p *Parser) ParseExit() (Stmt, error) {
	return p.attempt(func() (Stmt, error) {
		if !p.matchWord("exit") {
			return nil, nil
		}
		expr, err := p.parseCall()
		if expr == nil || err != nil {
			return nil, err
		}
		return &ExitStmt{Expr: expr}, nil
	})
}

// ParseIf parses if (cond) { ... } with an optional else block or else-if
// chain. Once the opening brace is reached the form is committed and any
// failure inside is fatal.
func (p *Parser) ParseIf() (Stmt, error) {
	return p.attempt(func() (Stmt, error) {
		if !p.matchWord("if") || !p.match(LPAREN) {
			return nil, nil
		}
		cond, err := p.parseExpression()
		if cond == nil || err != nil {
			return nil, err
		}
		if !p.match(RPAREN) || !p.match(LBRACE) {
			return nil, nil
		}
		then, err := p.parseBlock()
		if err != nil {
			return nil, err
		}

		stmt := &IfStmt{Condition: cond, Then: then}
		if !p.peek().is("else") {
			return stmt, nil
		}
		elsePos := p.pos
		p.advance()

		switch {
		case p.peek().Type == LBRACE:
			p.advance()
			if stmt.Else, err = p.parseBlock(); err != nil {
				return nil, err
			}
		case p.peek().is("if"):
			nested, err := p.ParseIf()
			if err != nil {
				return nil, err
			}
			if nested == nil {
				return nil, p.fmtError(p.pos, "malformed else-if")
			}
			stmt.Else = []Stmt{nested}
		default:
			return nil, p.fmtError(elsePos, "expected { or if after else")
		}
		return stmt, nil
	})
}

// parseBlock parses statements up to the closing brace. The leading LBRACE
// has already been consumed.
func (p *Parser) parseBlock() ([]Stmt, error) {
	open := p.pos - 1
	stmts := []Stmt{}
	for {
		switch p.peek().Type {
		case RBRACE:
			p.advance()
			return stmts, nil
		case EOF:
			return nil, p.fmtError(open, "unclosed block")
		}
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			return nil, p.syntaxError()
		}
		stmts = append(stmts, stmt)
	}
}

// ParseStatement tries every statement form in turn. It returns (nil, nil)
// when none matches at the current position.
func (p *Parser) ParseStatement() (Stmt, error) {
	forms := []func() (Stmt, error){
		p.ParseConstDeclaration,
		p.ParseLetDeclaration,
		p.ParseAssignment,
		p.ParseConsolePrint,
		p.ParseExit,
		p.ParseIf,
	}
	for _, form := range forms {
		stmt, err := form()
		if err != nil || stmt != nil {
			return stmt, err
		}
	}
	return nil, nil
}

// syntaxError reports that no statement form matches at the current position.
func (p *Parser) syntaxError() error {
	tok := p.peek()
	if p.furthest > p.pos && p.expected != "" {
		got := p.at(p.furthest)
		return p.fmtError(p.pos, "no statement matches %s (%q); expected %s before %s (%q) at token %d",
			tok.Type, tok.Lexeme, p.expected, got.Type, got.Lexeme, p.furthest)
	}
	return p.fmtError(p.pos, "no statement matches %s (%q)", tok.Type, tok.Lexeme)
}

// Parse turns a token slice into the program's top-level statements.
func Parse(tokens []Token, rawSource string) ([]Stmt, error) {
	p := NewParser(tokens, rawSource)
	var stmts []Stmt
	for !p.IsFinished() {
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			return nil, p.syntaxError()
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}
