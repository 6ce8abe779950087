package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

func parseSource(t *testing.T, src string) ([]Stmt, error) {
	t.Helper()
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	return Parse(tokens, src)
}

// TestParse verifies that Parse produces the correct AST for valid inputs.
func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Stmt
	}{
		{
			name:  "Const Declaration",
			input: "const x = 10;",
			expected: []Stmt{
				&ConstDecl{Name: "x", Value: &IntLiteral{Value: 10}},
			},
		},
		{
			name:  "Let Declaration",
			input: "let s = 'hi';",
			expected: []Stmt{
				&LetDecl{Name: "s", Value: &StringLiteral{Value: "hi"}},
			},
		},
		{
			name:  "Assignment",
			input: "x = 2.5;",
			expected: []Stmt{
				&Assignment{Name: "x", Value: &FloatLiteral{Value: 2.5}},
			},
		},
		{
			name:  "Console Print",
			input: "console.print(null);",
			expected: []Stmt{
				&PrintStmt{Expr: &NullLiteral{}},
			},
		},
		{
			name:  "Exit",
			input: "exit(x);",
			expected: []Stmt{
				&ExitStmt{Expr: &VarRef{Name: "x"}},
			},
		},
		{
			name:  "Negative Literal",
			input: "let n = -5;",
			expected: []Stmt{
				&LetDecl{Name: "n", Value: &IntLiteral{Value: -5}},
			},
		},
		{
			name:  "Array Literal",
			input: "console.print([1, \"a\", true, []]);",
			expected: []Stmt{
				&PrintStmt{Expr: &ArrayLiteral{Elements: []Expr{
					&IntLiteral{Value: 1},
					&StringLiteral{Value: "a"},
					&BoolLiteral{Value: true},
					&ArrayLiteral{Elements: []Expr{}},
				}}},
			},
		},
		{
			name:  "Multiplication Binds Tighter",
			input: "const v = 1 + 2 * 3;",
			expected: []Stmt{
				&ConstDecl{Name: "v", Value: &BinaryExpr{
					Op:   Add,
					Left: &IntLiteral{Value: 1},
					Right: &BinaryExpr{
						Op:    Mul,
						Left:  &IntLiteral{Value: 2},
						Right: &IntLiteral{Value: 3},
					},
				}},
			},
		},
		{
			name:  "Parentheses",
			input: "const v = (1 + 2) * 3;",
			expected: []Stmt{
				&ConstDecl{Name: "v", Value: &BinaryExpr{
					Op: Mul,
					Left: &BinaryExpr{
						Op:    Add,
						Left:  &IntLiteral{Value: 1},
						Right: &IntLiteral{Value: 2},
					},
					Right: &IntLiteral{Value: 3},
				}},
			},
		},
		{
			name:  "Comparison Shares Additive Tier",
			input: "const v = 1 < 2 + 3;",
			expected: []Stmt{
				&ConstDecl{Name: "v", Value: &BinaryExpr{
					Op: Add,
					Left: &BinaryExpr{
						Op:    LessThan,
						Left:  &IntLiteral{Value: 1},
						Right: &IntLiteral{Value: 2},
					},
					Right: &IntLiteral{Value: 3},
				}},
			},
		},
		{
			name:  "If Statement",
			input: "if (x == 1) { x = 2; }",
			expected: []Stmt{
				&IfStmt{
					Condition: &BinaryExpr{
						Op:    Equal,
						Left:  &VarRef{Name: "x"},
						Right: &IntLiteral{Value: 1},
					},
					Then: []Stmt{
						&Assignment{Name: "x", Value: &IntLiteral{Value: 2}},
					},
				},
			},
		},
		{
			name:  "If-Else Statement",
			input: "if (x >= 1) { exit(1); } else { exit(2); }",
			expected: []Stmt{
				&IfStmt{
					Condition: &BinaryExpr{
						Op:    GreaterOrEqual,
						Left:  &VarRef{Name: "x"},
						Right: &IntLiteral{Value: 1},
					},
					Then: []Stmt{&ExitStmt{Expr: &IntLiteral{Value: 1}}},
					Else: []Stmt{&ExitStmt{Expr: &IntLiteral{Value: 2}}},
				},
			},
		},
		{
			name:  "Else If Chain",
			input: "if (a) { } else if (b) { exit(1); }",
			expected: []Stmt{
				&IfStmt{
					Condition: &VarRef{Name: "a"},
					Then:      []Stmt{},
					Else: []Stmt{
						&IfStmt{
							Condition: &VarRef{Name: "b"},
							Then:      []Stmt{&ExitStmt{Expr: &IntLiteral{Value: 1}}},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSource(t, tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s\ngot: %s", diff, spew.Sdump(got))
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"Missing Semicolon", "let x = 1", "no statement matches"},
		{"Unclosed Block", "if (1) { exit(1);", "unclosed block"},
		{"Garbage Statement", "42;", "no statement matches"},
		{"Bad Statement In Block", "if (1) { 42; }", "no statement matches"},
		{"Else Without Block", "if (1) { } else exit(1);", "expected { or if after else"},
		{"Integer Out Of Range", "let x = 99999999999;", "out of 32-bit range"},
		{"Reserved Name", "let if = 1;", "no statement matches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSource(t, tt.input)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			var ce *CompileError
			if !errors.As(err, &ce) || ce.Kind != SyntaxError {
				t.Fatalf("expected syntax error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParse_ErrorReportsTokenPosition(t *testing.T) {
	src := "let a = 1;\nlet b = ;\n"
	_, err := parseSource(t, src)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError, got %v", err)
	}
	if ce.Pos != 5 {
		t.Errorf("Pos = %d, want 5", ce.Pos)
	}
	if ce.Line != 2 {
		t.Errorf("Line = %d, want 2", ce.Line)
	}
	if !strings.Contains(ce.Msg, "let b = ;") {
		t.Errorf("message should quote the source line, got %q", ce.Msg)
	}
}

func TestParser_StatementFormsRestorePosition(t *testing.T) {
	src := "exit(3);"
	tokens, err := Lex(src)
	if err != nil {
		t.Fatal(err)
	}
	p := NewParser(tokens, src)

	forms := map[string]func() (Stmt, error){
		"const":  p.ParseConstDeclaration,
		"let":    p.ParseLetDeclaration,
		"assign": p.ParseAssignment,
		"print":  p.ParseConsolePrint,
		"if":     p.ParseIf,
	}
	for name, form := range forms {
		stmt, err := form()
		if err != nil || stmt != nil {
			t.Errorf("%s: expected no match, got %v, %v", name, stmt, err)
		}
		if p.Pos() != 0 {
			t.Errorf("%s: position moved to %d", name, p.Pos())
		}
	}

	stmt, err := p.ParseExit()
	if err != nil || stmt == nil {
		t.Fatalf("ParseExit failed: %v", err)
	}
	if !p.IsFinished() {
		t.Errorf("expected parser to be finished at %d", p.Pos())
	}
}

// Every literal kind parses back to a node that folds to the written value.
func TestParse_LiteralRoundTrip(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{"42", NumberValue(42)},
		{"-7", NumberValue(-7)},
		{"2.5", FloatValue(2.5)},
		{`"text"`, StringValue("text")},
		{"true", BoolValue(true)},
		{"false", BoolValue(false)},
		{"null", NullValue{}},
		{`[1, "a", false]`, ArrayValue{NumberValue(1), StringValue("a"), BoolValue(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmts, err := parseSource(t, "const v = "+tt.src+";")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			got, err := Evaluate(stmts[0].(*ConstDecl).Value, nil)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
