package compiler

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// CodeGen walks an AST and emits x86-64 NASM source text for Linux.
//
// Output is built in three buffers that are concatenated in a fixed order
// when generation finishes: data (printable blobs), bss (storage cells and
// scratch buffers) and text (instructions).
type CodeGen struct {
	syms *SymbolTable
	data strings.Builder
	bss  strings.Builder
	init strings.Builder // stores run at _start, one per variable
	out  strings.Builder

	// nextLabel mints every blob, history and branch label.
	nextLabel  int
	stringPool map[string]string // text -> literal blob label

	// depth is the number of enclosing if/else branches.
	depth int
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{
		syms:       syms,
		stringPool: make(map[string]string),
	}
}

func (cg *CodeGen) newLabel(prefix string) string {
	l := fmt.Sprintf("%s_%d", prefix, cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("    ; "+format, args...)
}

// blob appends a fresh printable blob to the data region.
func (cg *CodeGen) blob(label, text string) string {
	cg.data.WriteString(blobLine(label, text))
	cg.data.WriteByte('\n')
	return label
}

// literalBlob returns the pooled blob for text, creating it on first use.
func (cg *CodeGen) literalBlob(text string) string {
	if label, ok := cg.stringPool[text]; ok {
		return label
	}
	label := cg.blob(cg.newLabel("lit"), text)
	cg.stringPool[text] = label
	return label
}

// write emits a write(1, label, n) syscall.
func (cg *CodeGen) write(label string, n int) {
	cg.line("    mov rax, 1")
	cg.line("    mov rdi, 1")
	cg.line("    mov rsi, %s", label)
	cg.line("    mov rdx, %d", n)
	cg.line("    syscall")
}

func (cg *CodeGen) exit(operand string) {
	cg.line("    mov rax, 60")
	cg.line("    %s", operand)
	cg.line("    syscall")
}

// isLiteral reports whether e is a scalar literal printed straight from a
// compile-time blob.
func isLiteral(e Expr) bool {
	switch e.(type) {
	case *IntLiteral, *FloatLiteral, *StringLiteral, *BoolLiteral, *NullLiteral:
		return true
	}
	return false
}

// literalOutput returns the blob label and text length used to print a
// scalar literal.
func (cg *CodeGen) literalOutput(e Expr) (string, int) {
	switch n := e.(type) {
	case *BoolLiteral:
		if n.Value {
			return "true_str", fixedTokenLen["true_str"]
		}
		return "false_str", fixedTokenLen["false_str"]
	case *NullLiteral:
		return "null_str", fixedTokenLen["null_str"]
	case *StringLiteral:
		return cg.literalBlob(n.Value), len(n.Value)
	}
	text := e.String()
	return cg.literalBlob(text), len(text)
}

//  Expressions

// runtimeLowerable reports whether e can be computed with integer
// instructions: every leaf is an integer or boolean literal, or a name
// currently holding a number or boolean.
func (cg *CodeGen) runtimeLowerable(e Expr) bool {
	switch n := e.(type) {
	case *IntLiteral, *BoolLiteral:
		return true
	case *VarRef:
		sym, ok := cg.syms.Lookup(n.Name)
		return ok && (sym.Kind == KindNumber || sym.Kind == KindBool)
	case *BinaryExpr:
		return cg.runtimeLowerable(n.Left) && cg.runtimeLowerable(n.Right)
	}
	return false
}

// immediate converts a folded number or boolean to an integer operand.
func immediate(v Value) (int64, error) {
	switch v := v.(type) {
	case NumberValue:
		return int64(v), nil
	case BoolValue:
		if v {
			return 1, nil
		}
		return 0, nil
	case FloatValue:
		return int64(v), nil
	}
	return 0, typeErrorf("%s value %q used where a number is required", v.Kind(), v.String())
}

// genNumeric leaves the value of e in rax. Expressions made of integer and
// boolean leaves are computed at run time in 32-bit arithmetic; anything
// else is folded and loaded as an immediate.
func (cg *CodeGen) genNumeric(e Expr) error {
	if cg.runtimeLowerable(e) {
		if _, err := cg.numericKind(e); err != nil {
			return err
		}
		cg.lowerNumeric(e)
		return nil
	}
	v, err := Evaluate(e, cg.syms)
	if err != nil {
		return err
	}
	imm, err := immediate(v)
	if err != nil {
		return err
	}
	cg.line("    mov rax, %d", imm)
	return nil
}

// numericKind type-checks an expression accepted by runtimeLowerable and
// returns the kind it produces. Variables are never read, so a division is
// only rejected when its divisor is a constant zero.
func (cg *CodeGen) numericKind(e Expr) (Kind, error) {
	switch n := e.(type) {
	case *IntLiteral:
		return KindNumber, nil
	case *BoolLiteral:
		return KindBool, nil
	case *VarRef:
		sym, _ := cg.syms.Lookup(n.Name)
		return sym.Kind, nil
	case *BinaryExpr:
		l, err := cg.numericKind(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := cg.numericKind(n.Right)
		if err != nil {
			return 0, err
		}
		if n.Op.IsComparison() {
			if l != r {
				return 0, typeErrorf("cannot compare %s with %s", l, r)
			}
			if l == KindBool && n.Op != Equal && n.Op != NotEqual {
				return 0, typeErrorf("operator %s not supported between booleans", n.Op)
			}
			return KindBool, nil
		}
		if l != KindNumber || r != KindNumber {
			return 0, typeErrorf("operator %s not supported between %s and %s", n.Op, l, r)
		}
		if n.Op == Div && cg.isConstant(n.Right) {
			v, err := Evaluate(n.Right, cg.syms)
			if err != nil {
				return 0, err
			}
			if v == NumberValue(0) {
				return 0, arithmeticErrorf("integer division by zero")
			}
		}
		return KindNumber, nil
	}
	return 0, typeErrorf("%s cannot be computed at run time", e)
}

// isConstant reports whether e reads no storage cell.
func (cg *CodeGen) isConstant(e Expr) bool {
	switch n := e.(type) {
	case *VarRef:
		return cg.syms.IsConst(n.Name)
	case *BinaryExpr:
		return cg.isConstant(n.Left) && cg.isConstant(n.Right)
	case *ArrayLiteral:
		for _, elem := range n.Elements {
			if !cg.isConstant(elem) {
				return false
			}
		}
	}
	return true
}

// fold returns the value e has at this point of the program. An
// expression computed at run time whose folding divides by a variable
// holding zero is recorded as the zero of its kind.
func (cg *CodeGen) fold(e Expr) (Value, error) {
	v, err := Evaluate(e, cg.syms)
	if err == nil || !cg.runtimeLowerable(e) {
		return v, err
	}
	kind, kerr := cg.numericKind(e)
	if kerr != nil {
		return nil, kerr
	}
	if kind == KindBool {
		return BoolValue(false), nil
	}
	return NumberValue(0), nil
}

// lowerNumeric emits instructions for an expression already checked by
// runtimeLowerable and Evaluate.
func (cg *CodeGen) lowerNumeric(e Expr) {
	switch n := e.(type) {
	case *IntLiteral:
		cg.line("    mov rax, %d", n.Value)

	case *BoolLiteral:
		if n.Value {
			cg.line("    mov rax, 1")
		} else {
			cg.line("    mov rax, 0")
		}

	case *VarRef:
		sym, _ := cg.syms.Lookup(n.Name)
		if sym.Cell == "" {
			imm, _ := immediate(sym.Value)
			cg.line("    mov rax, %d", imm)
			return
		}
		cg.line("    mov rax, [%s]", sym.Cell)

	case *BinaryExpr:
		// Right operand first, saved across the left operand.
		cg.lowerNumeric(n.Right)
		cg.line("    push rax")
		cg.lowerNumeric(n.Left)
		cg.line("    pop rbx")

		switch n.Op {
		case Add:
			cg.line("    add eax, ebx")
		case Sub:
			cg.line("    sub eax, ebx")
		case Mul:
			cg.line("    imul eax, ebx")
		case Div:
			cg.line("    cdq")
			cg.line("    idiv ebx")
		default:
			cg.line("    cmp eax, ebx")
			cg.line("    %s al", setcc[n.Op])
			cg.line("    movzx rax, al")
			return
		}
		cg.line("    movsxd rax, eax")
	}
}

var setcc = map[BinOp]string{
	Equal:          "sete",
	NotEqual:       "setne",
	LessThan:       "setl",
	GreaterThan:    "setg",
	LessOrEqual:    "setle",
	GreaterOrEqual: "setge",
}

// isConcat reports whether e is an Add whose folded result is a string.
func isConcat(e Expr, v Value) bool {
	b, ok := e.(*BinaryExpr)
	return ok && b.Op == Add && v.Kind() == KindString
}

// appendExpr appends the printed text of e to the scratch buffer.
func (cg *CodeGen) appendExpr(e Expr) error {
	if ref, ok := e.(*VarRef); ok {
		sym, ok := cg.syms.Lookup(ref.Name)
		if !ok {
			return nameErrorf("undefined name %q", ref.Name)
		}
		switch {
		case sym.Cell == "":
			cg.line("    mov rsi, %s", sym.Blob)
			cg.line("    call append_string")
			return nil
		case sym.Kind != KindNumber && sym.Kind != KindBool:
			cg.line("    mov rsi, [%s]", sym.Cell)
			cg.line("    call append_string")
			return nil
		}
	}

	if cg.runtimeLowerable(e) {
		kind, err := cg.numericKind(e)
		if err != nil {
			return err
		}
		cg.lowerNumeric(e)
		if kind == KindBool {
			cg.line("    call append_bool")
		} else {
			cg.line("    call append_number")
		}
		return nil
	}

	v, err := Evaluate(e, cg.syms)
	if err != nil {
		return err
	}
	if isConcat(e, v) {
		b := e.(*BinaryExpr)
		if err := cg.appendExpr(b.Left); err != nil {
			return err
		}
		return cg.appendExpr(b.Right)
	}

	switch v.Kind() {
	case KindNumber:
		if err := cg.genNumeric(e); err != nil {
			return err
		}
		cg.line("    call append_number")
	case KindBool:
		if err := cg.genNumeric(e); err != nil {
			return err
		}
		cg.line("    call append_bool")
	case KindNull:
		cg.line("    call append_null")
	default:
		cg.line("    mov rsi, %s", cg.literalBlob(v.String()))
		cg.line("    call append_string")
	}
	return nil
}

// printBuffered prints e through the scratch buffer.
func (cg *CodeGen) printBuffered(e Expr, newline bool) error {
	if v, err := Evaluate(e, cg.syms); err == nil && len(v.String()) >= strBufferSize {
		return typeErrorf("printed text of %d bytes does not fit the %d-byte print buffer", len(v.String()), strBufferSize-1)
	}
	cg.line("    mov r15, str_buffer")
	if err := cg.appendExpr(e); err != nil {
		return err
	}
	if newline {
		cg.line("    call append_newline")
	}
	cg.line("    call flush_buffer")
	return nil
}

// printArray writes [e, e, ...] element by element with no newline.
func (cg *CodeGen) printArray(a *ArrayLiteral) error {
	cg.write("array_open", fixedTokenLen["array_open"])
	for i, elem := range a.Elements {
		if i > 0 {
			cg.write("array_sep", fixedTokenLen["array_sep"])
		}
		if err := cg.printInline(elem); err != nil {
			return err
		}
	}
	cg.write("array_close", fixedTokenLen["array_close"])
	return nil
}

// printInline prints e with no trailing newline.
func (cg *CodeGen) printInline(e Expr) error {
	switch n := e.(type) {
	case *ArrayLiteral:
		return cg.printArray(n)
	}
	if isLiteral(e) {
		label, size := cg.literalOutput(e)
		cg.write(label, size)
		return nil
	}
	return cg.printBuffered(e, false)
}

//  Statements

func (cg *CodeGen) genPrint(s *PrintStmt) error {
	cg.comment("print %s", s.Expr)
	switch n := s.Expr.(type) {
	case *ArrayLiteral:
		if err := cg.printArray(n); err != nil {
			return err
		}
		cg.write("newline_str", fixedTokenLen["newline_str"])
		return nil
	}
	if isLiteral(s.Expr) {
		label, size := cg.literalOutput(s.Expr)
		cg.write(label, size+1)
		return nil
	}
	return cg.printBuffered(s.Expr, true)
}

func (cg *CodeGen) genExit(s *ExitStmt) error {
	cg.comment("exit %s", s.Expr)
	switch n := s.Expr.(type) {
	case *IntLiteral:
		cg.exit(fmt.Sprintf("mov rdi, %d", n.Value))
		return nil

	case *VarRef:
		sym, ok := cg.syms.Lookup(n.Name)
		if !ok {
			return nameErrorf("undefined name %q", n.Name)
		}
		switch sym.Kind {
		case KindNumber, KindBool, KindFloat:
		default:
			return typeErrorf("exit code %q is a %s", n.Name, sym.Kind)
		}
		// Floats are kept as text at run time; exit with the truncated value.
		if sym.Cell == "" || sym.Kind == KindFloat {
			imm, _ := immediate(sym.Value)
			cg.exit(fmt.Sprintf("mov rdi, %d", imm))
			return nil
		}
		cg.exit(fmt.Sprintf("mov rdi, [%s]", sym.Cell))
		return nil
	}

	if err := cg.genNumeric(s.Expr); err != nil {
		return err
	}
	cg.exit("mov rdi, rax")
	return nil
}

func (cg *CodeGen) genConst(s *ConstDecl) error {
	v, err := Evaluate(s.Value, cg.syms)
	if err != nil {
		return err
	}
	if err := cg.syms.checkUnused(s.Name, "constant"); err != nil {
		return err
	}
	label := cg.blob("const_"+mangle(s.Name), v.String())
	if _, err := cg.syms.DefineConst(s.Name, v, label); err != nil {
		return err
	}
	cg.comment("const %s = %s", s.Name, v)
	return nil
}

func (cg *CodeGen) genLet(s *LetDecl) error {
	v, err := cg.fold(s.Value)
	if err != nil {
		return err
	}
	if err := cg.syms.checkUnused(s.Name, "variable"); err != nil {
		return err
	}

	name := mangle(s.Name)
	cell := "var_" + name
	blob := cg.blob(cg.newLabel("val_"+name), v.String())
	fmt.Fprintf(&cg.bss, "    %s resq 1\n", cell)
	cg.initCell(cell, blob, v)

	cg.comment("let %s = %s", s.Name, s.Value)
	switch n := s.Value.(type) {
	case *IntLiteral:
		cg.line("    mov qword [%s], %d", cell, n.Value)
	case *BoolLiteral:
		imm, _ := immediate(v)
		cg.line("    mov qword [%s], %d", cell, imm)
	default:
		if err := cg.store(cell, blob, s.Value, v); err != nil {
			return err
		}
	}

	_, err = cg.syms.DefineVar(s.Name, v, blob, cell)
	return err
}

// initCell stores the declared value of a variable at program start, so
// the cell is valid even where its let statement never runs.
func (cg *CodeGen) initCell(cell, blob string, v Value) {
	switch v.Kind() {
	case KindNumber, KindBool:
		imm, _ := immediate(v)
		fmt.Fprintf(&cg.init, "    mov qword [%s], %d\n", cell, imm)
	case KindNull:
		fmt.Fprintf(&cg.init, "    mov rax, null_str\n    mov [%s], rax\n", cell)
	default:
		fmt.Fprintf(&cg.init, "    mov rax, %s\n    mov [%s], rax\n", blob, cell)
	}
}

// store writes the runtime representation of v into cell: numbers and
// booleans by value, null as null_str, everything else as a pointer to
// blob.
func (cg *CodeGen) store(cell, blob string, e Expr, v Value) error {
	switch v.Kind() {
	case KindNumber, KindBool:
		if err := cg.genNumeric(e); err != nil {
			return err
		}
	case KindNull:
		cg.line("    mov rax, null_str")
	default:
		cg.line("    mov rax, %s", blob)
	}
	cg.line("    mov [%s], rax", cell)
	return nil
}

func (cg *CodeGen) genAssign(s *Assignment) error {
	sym, err := cg.syms.Variable(s.Name)
	if err != nil {
		return err
	}
	v, err := cg.fold(s.Value)
	if err != nil {
		return err
	}
	if cg.depth > 0 && v.Kind() != sym.Kind {
		return typeErrorf("assignment inside a branch changes %q from %s to %s", s.Name, sym.Kind, v.Kind())
	}

	cg.comment("%s = %s", s.Name, s.Value)
	var blob string
	switch v.Kind() {
	case KindString, KindArray, KindFloat:
		// Each reassignment gets its own blob; earlier ones stay in place.
		blob = cg.blob(cg.newLabel("val_"+mangle(s.Name)), v.String())
	}
	if err := cg.store(sym.Cell, blob, s.Value, v); err != nil {
		return err
	}
	return cg.syms.Assign(s.Name, v, blob)
}

func (cg *CodeGen) genIf(s *IfStmt) error {
	var v Value = BoolValue(false)
	if !cg.runtimeLowerable(s.Condition) {
		var err error
		if v, err = Evaluate(s.Condition, cg.syms); err != nil {
			return err
		}
	}

	n := cg.nextLabel
	cg.nextLabel++
	elseLabel := fmt.Sprintf("if_else_%d", n)
	endLabel := fmt.Sprintf("if_end_%d", n)

	cg.comment("if %s", s.Condition)
	switch v := v.(type) {
	case FloatValue:
		if v != 0 {
			cg.line("    mov rax, 1")
		} else {
			cg.line("    mov rax, 0")
		}
	default:
		if err := cg.genNumeric(s.Condition); err != nil {
			return err
		}
	}
	cg.line("    test rax, rax")
	if s.Else != nil {
		cg.line("    jz %s", elseLabel)
	} else {
		cg.line("    jz %s", endLabel)
	}

	cg.depth++
	defer func() { cg.depth-- }()

	if err := cg.genBlock(s.Then); err != nil {
		return err
	}
	if s.Else != nil {
		cg.line("    jmp %s", endLabel)
		cg.line("%s:", elseLabel)
		if err := cg.genBlock(s.Else); err != nil {
			return err
		}
	}
	cg.line("%s:", endLabel)
	return nil
}

func (cg *CodeGen) genBlock(stmts []Stmt) error {
	for _, s := range stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) genStmt(s Stmt) error {
	log.Trace("Lowering statement", "stmt", s)
	switch n := s.(type) {
	case *PrintStmt:
		return cg.genPrint(n)
	case *ExitStmt:
		return cg.genExit(n)
	case *ConstDecl:
		return cg.genConst(n)
	case *LetDecl:
		return cg.genLet(n)
	case *Assignment:
		return cg.genAssign(n)
	case *IfStmt:
		return cg.genIf(n)
	}
	return fmt.Errorf("unknown statement %T", s)
}

// Generate lowers a parsed program to a complete NASM document. syms must
// be fresh; it holds the program's names afterwards. On error no text is
// returned.
func Generate(stmts []Stmt, syms *SymbolTable) (string, error) {
	cg := newCodeGen(syms)

	for _, s := range stmts {
		if err := cg.genStmt(s); err != nil {
			return "", err
		}
	}

	// Fall-through exit, unless the program already ends in one.
	endsInExit := false
	if len(stmts) > 0 {
		_, endsInExit = stmts[len(stmts)-1].(*ExitStmt)
	}
	if !endsInExit {
		cg.comment("exit 0")
		cg.exit("xor rdi, rdi")
	}

	var sb strings.Builder
	sb.WriteString("default rel\n\n")

	sb.WriteString("section .data\n")
	for _, tok := range fixedTokens {
		fmt.Fprintf(&sb, "    %s db %s\n", tok.label, tok.bytes)
	}
	sb.WriteString(cg.data.String())

	sb.WriteString("\nsection .bss\n")
	fmt.Fprintf(&sb, "    num_buffer resb %d\n", numBufferSize)
	fmt.Fprintf(&sb, "    str_buffer resb %d\n", strBufferSize)
	sb.WriteString(cg.bss.String())

	sb.WriteString("\nsection .text\n")
	sb.WriteString("    global _start\n\n")
	sb.WriteString("_start:\n")
	if cg.init.Len() > 0 {
		sb.WriteString("    ; initial values\n")
		sb.WriteString(cg.init.String())
	}
	sb.WriteString(cg.out.String())
	sb.WriteString("\n")
	sb.WriteString(runtimeHelpers)

	log.Debug("Generated assembly", "statements", len(stmts), "labels", cg.nextLabel, "literals", len(cg.stringPool))
	return sb.String(), nil
}
