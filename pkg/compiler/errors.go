package compiler

import "fmt"

// ErrorKind classifies a fatal compilation error.
type ErrorKind int

const (
	LexicalError    ErrorKind = iota // unterminated string literal
	SyntaxError                      // no statement form matches
	NameError                        // undeclared name, redeclaration, constant reassignment
	TypeError                        // operator applied to unsupported value kinds
	ArithmeticError                  // division by zero while folding
)

var errorKindNames = [...]string{
	LexicalError:    "lexical error",
	SyntaxError:     "syntax error",
	NameError:       "name error",
	TypeError:       "type error",
	ArithmeticError: "arithmetic error",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// CompileError aborts a compilation. Line is 1-based and Pos is a token
// index; either is zero/negative when unknown.
type CompileError struct {
	Kind ErrorKind
	Line int
	Pos  int
	Msg  string
}

func (e *CompileError) Error() string {
	switch {
	case e.Line > 0 && e.Pos >= 0:
		return fmt.Sprintf("%s at token position %d (line %d): %s", e.Kind, e.Pos, e.Line, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("%s on line %d: %s", e.Kind, e.Line, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func newError(kind ErrorKind, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

func nameErrorf(format string, args ...any) error {
	return newError(NameError, format, args...)
}

func typeErrorf(format string, args ...any) error {
	return newError(TypeError, format, args...)
}

func arithmeticErrorf(format string, args ...any) error {
	return newError(ArithmeticError, format, args...)
}
