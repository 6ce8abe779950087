package compiler

import (
	"github.com/ethereum/go-ethereum/log"
)

// Result holds every stage of one compilation, for callers that dump
// intermediate output.
type Result struct {
	Tokens   []Token
	Program  []Stmt
	Symbols  *SymbolTable
	Assembly string
}

// Compile runs the whole pipeline on src and returns the NASM text.
func Compile(src string) (string, error) {
	res, err := CompileStages(src)
	if err != nil {
		return "", err
	}
	return res.Assembly, nil
}

// CompileStages runs the pipeline and keeps each stage's output. On error
// the stages completed so far are returned alongside it.
func CompileStages(src string) (*Result, error) {
	res := &Result{}

	tokens, err := Lex(src)
	if err != nil {
		return res, err
	}
	res.Tokens = tokens
	log.Trace("Lexed source", "tokens", len(tokens))

	stmts, err := Parse(tokens, src)
	if err != nil {
		return res, err
	}
	res.Program = stmts
	log.Trace("Parsed program", "statements", len(stmts))

	res.Symbols = NewSymbolTable()
	assembly, err := Generate(stmts, res.Symbols)
	if err != nil {
		return res, err
	}
	res.Assembly = assembly

	log.Debug("Compiled program", "tokens", len(tokens), "statements", len(stmts), "bytes", len(assembly))
	return res, nil
}
