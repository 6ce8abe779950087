package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	fuzz "github.com/google/gofuzz"
)

func TestCompile(t *testing.T) {
	src := `
// greeting
const name = "SPP";
let count = 3;
console.print("hello " + name);
count = count * 2;
if (count > 5) {
    console.print([count, "big"]);
} else {
    console.print(false);
}
exit(count - 6);
`
	code, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	assertContains(t, code, `const_name db "SPP", 10, 0`)
	assertContains(t, code, "mov rsi, const_name\n    call append_string")
	assertContains(t, code, "imul eax, ebx")
	assertContains(t, code, "setg al")
	assertContains(t, code, "mov rdi, rax")
}

func TestCompileStages(t *testing.T) {
	res, err := CompileStages("let x = 1; console.print(x);")
	if err != nil {
		t.Fatalf("CompileStages failed: %v", err)
	}
	if len(res.Tokens) == 0 || res.Tokens[len(res.Tokens)-1].Type != EOF {
		t.Errorf("token stream should end in EOF: %v", res.Tokens)
	}
	if len(res.Program) != 2 {
		t.Errorf("expected 2 statements, got %s", spew.Sdump(res.Program))
	}
	if _, ok := res.Symbols.Lookup("x"); !ok {
		t.Error("symbol table should hold x")
	}
	if res.Assembly == "" {
		t.Error("assembly missing")
	}
}

func TestCompile_StopsAtFirstFailingStage(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		kind  ErrorKind
		stage func(*Result) bool
	}{
		{"Lex", `console.print("open`, LexicalError, func(r *Result) bool { return r.Tokens == nil }},
		{"Parse", `console.print(1)`, SyntaxError, func(r *Result) bool { return r.Tokens != nil && r.Program == nil }},
		{"Generate", `const z = 10 / 0;`, ArithmeticError, func(r *Result) bool { return r.Program != nil && r.Assembly == "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CompileStages(tt.src)
			var ce *CompileError
			if !errors.As(err, &ce) || ce.Kind != tt.kind {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if !tt.stage(res) {
				t.Errorf("unexpected partial result: %s", spew.Sdump(res))
			}
			if code, _ := Compile(tt.src); code != "" {
				t.Error("Compile returned output for a failing program")
			}
		})
	}
}

// Random token soups must either compile or fail with a CompileError,
// never panic.
func TestCompile_RandomInputs(t *testing.T) {
	vocab := []string{
		"const", "let", "if", "else", "console", ".", "print", "exit",
		"(", ")", "{", "}", "[", "]", ";", ",", "=", "==", "!=", "<", ">",
		"<=", ">=", "+", "-", "*", "/", "x", "y", "0", "1", "2.5", `"s"`,
		"true", "false", "null",
	}

	f := fuzz.New().NilChance(0).NumElements(1, 40)
	for i := 0; i < 500; i++ {
		var picks []uint8
		f.Fuzz(&picks)
		words := make([]string, len(picks))
		for j, p := range picks {
			words[j] = vocab[int(p)%len(vocab)]
		}
		src := strings.Join(words, " ")

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("panic compiling %q: %v", src, r)
				}
			}()
			_, err := Compile(src)
			var ce *CompileError
			if err != nil && !errors.As(err, &ce) {
				t.Errorf("untyped error for %q: %v", src, err)
			}
		}()
	}
}

func TestCompileError_Format(t *testing.T) {
	tests := []struct {
		err  *CompileError
		want string
	}{
		{&CompileError{Kind: SyntaxError, Line: 2, Pos: 5, Msg: "boom"}, "syntax error at token position 5 (line 2): boom"},
		{&CompileError{Kind: LexicalError, Line: 3, Pos: -1, Msg: "open"}, "lexical error on line 3: open"},
		{&CompileError{Kind: NameError, Pos: -1, Msg: "dup"}, "name error: dup"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
