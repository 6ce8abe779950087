// Package compiler provides the SPP lexer, parser, constant evaluator and
// code generator targeting x86-64 NASM assembly for Linux.
//
// Pipeline: SPP source → Lex → Parse → Generate → NASM assembly text
package compiler
