package compiler

import (
	"unicode"
)

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything up to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for !l.atEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// A comment left open runs to the end of the input.
func (l *Lexer) skipBlockComment() {
	for !l.atEnd() {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return
		}
		l.advance()
	}
}

// scanIdent collects a full identifier. Keywords stay IDENTIFIER tokens.
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for !l.atEnd() {
		r := l.peek()
		if !unicode.IsLetter(r) && !isDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	return Token{Type: IDENTIFIER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// isDigit accepts ASCII digits only.
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// scanNumber collects digits with at most one decimal point. The point is
// only taken when a digit follows it, so "1.foo" lexes as 1 . foo.
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	for !l.atEnd() && isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peek2()) {
		l.advance() // .
		for !l.atEnd() && isDigit(l.peek()) {
			l.advance()
		}
	}
	return Token{Type: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// scanString collects a string literal delimited by the quote at l.peek().
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	quote := l.advance()
	var val []rune

	for !l.atEnd() {
		r := l.peek()
		if r == quote {
			l.advance()
			return Token{Type: STRING, Lexeme: string(val), Line: line}, nil
		}
		if r == '\\' {
			l.advance() // consume backslash
			if l.atEnd() {
				break
			}
			next := l.advance()
			switch next {
			case 'n':
				val = append(val, '\n')
			case 't':
				val = append(val, '\t')
			case 'r':
				val = append(val, '\r')
			default:
				// \\ \' \" and any unknown escape yield the character itself.
				val = append(val, next)
			}
			continue
		}
		val = append(val, r)
		l.advance()
	}

	return Token{}, &CompileError{Kind: LexicalError, Line: line, Pos: -1, Msg: "unterminated string literal"}
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.atEnd() {
			return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
		}
		ch := l.peek()
		line := l.line

		switch {
		case ch == '/' && l.peek2() == '/':
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		case ch == '/' && l.peek2() == '*':
			l.advance()
			l.advance()
			l.skipBlockComment()
			continue
		case isDigit(ch):
			return l.scanNumber(), nil
		case ch == '"' || ch == '\'':
			return l.scanString()
		case unicode.IsLetter(ch) || ch == '_':
			return l.scanIdent(), nil
		}

		l.advance() // consume the character before the switch
		switch ch {
		case '{':
			return Token{LBRACE, "{", line}, nil
		case '}':
			return Token{RBRACE, "}", line}, nil
		case '(':
			return Token{LPAREN, "(", line}, nil
		case ')':
			return Token{RPAREN, ")", line}, nil
		case '[':
			return Token{LBRACKET, "[", line}, nil
		case ']':
			return Token{RBRACKET, "]", line}, nil
		case '.':
			return Token{DOT, ".", line}, nil
		case ';':
			return Token{SEMICOLON, ";", line}, nil
		case ',':
			return Token{COMMA, ",", line}, nil
		case '+':
			return Token{PLUS, "+", line}, nil
		case '-':
			return Token{MINUS, "-", line}, nil
		case '*':
			return Token{STAR, "*", line}, nil
		case '/':
			return Token{SLASH, "/", line}, nil
		case '=':
			if l.peek() == '=' { // lookahead: distinguish = vs ==
				l.advance()
				return Token{EQUALS, "==", line}, nil
			}
			return Token{ASSIGN, "=", line}, nil
		case '!':
			if l.peek() == '=' {
				l.advance()
				return Token{NOT_EQ, "!=", line}, nil
			}
		case '<':
			if l.peek() == '=' {
				l.advance()
				return Token{LESS_EQ, "<=", line}, nil
			}
			return Token{LESS, "<", line}, nil
		case '>':
			if l.peek() == '=' {
				l.advance()
				return Token{GREATER_EQ, ">=", line}, nil
			}
			return Token{GREATER, ">", line}, nil
		}
		// Anything else is skipped.
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// The only error it reports is an unterminated string literal.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
