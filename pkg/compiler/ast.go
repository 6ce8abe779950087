package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	String() string
}

// IntLiteral is a decimal integer constant.
//
//	let x = 10;
//	        ^^  IntLiteral{Value: 10}
type IntLiteral struct {
	Value int32
}

func (*IntLiteral) exprNode()        {}
func (l *IntLiteral) String() string { return strconv.Itoa(int(l.Value)) }

// FloatLiteral is a decimal constant written with a point, e.g. 2.5.
type FloatLiteral struct {
	Value float64
}

func (*FloatLiteral) exprNode()        {}
func (l *FloatLiteral) String() string { return formatFloat(l.Value) }

// StringLiteral is a quoted string with escapes already decoded.
type StringLiteral struct {
	Value string
}

func (*StringLiteral) exprNode()        {}
func (s *StringLiteral) String() string { return strconv.Quote(s.Value) }

// BoolLiteral is true or false.
type BoolLiteral struct {
	Value bool
}

func (*BoolLiteral) exprNode()        {}
func (b *BoolLiteral) String() string { return strconv.FormatBool(b.Value) }

// NullLiteral is the null keyword.
type NullLiteral struct{}

func (*NullLiteral) exprNode()       {}
func (*NullLiteral) String() string { return "null" }

// ArrayLiteral represents [expr, expr, ...]
type ArrayLiteral struct {
	Elements []Expr
}

func (*ArrayLiteral) exprNode() {}
func (a *ArrayLiteral) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// VarRef is a read of a declared constant or variable.
//
//	console.print(x);
//	              ^  VarRef{Name: "x"}
type VarRef struct {
	Name string
}

func (*VarRef) exprNode()        {}
func (v *VarRef) String() string { return v.Name }

// BinOp is the operator of a BinaryExpr.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Equal
	NotEqual
	LessThan
	GreaterThan
	LessOrEqual
	GreaterOrEqual
)

var binOpSymbols = [...]string{
	Add:            "+",
	Sub:            "-",
	Mul:            "*",
	Div:            "/",
	Equal:          "==",
	NotEqual:       "!=",
	LessThan:       "<",
	GreaterThan:    ">",
	LessOrEqual:    "<=",
	GreaterOrEqual: ">=",
}

func (op BinOp) String() string {
	if int(op) >= 0 && int(op) < len(binOpSymbols) {
		return binOpSymbols[op]
	}
	return fmt.Sprintf("BinOp(%d)", int(op))
}

// IsComparison reports whether op yields a boolean.
func (op BinOp) IsComparison() bool {
	return op >= Equal
}

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    BinOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
}

// PrintStmt represents console.print(expr);
type PrintStmt struct {
	Expr Expr
}

func (*PrintStmt) stmtNode() {}
func (p *PrintStmt) String() string {
	return fmt.Sprintf("PrintStmt(%s)", p.Expr)
}

// ExitStmt represents exit(expr);
type ExitStmt struct {
	Expr Expr
}

func (*ExitStmt) stmtNode() {}
func (e *ExitStmt) String() string {
	return fmt.Sprintf("ExitStmt(%s)", e.Expr)
}

// ConstDecl represents const name = expr;
type ConstDecl struct {
	Name  string
	Value Expr
}

func (*ConstDecl) stmtNode() {}
func (d *ConstDecl) String() string {
	return fmt.Sprintf("ConstDecl(%s = %s)", d.Name, d.Value)
}

// LetDecl represents let name = expr;
type LetDecl struct {
	Name  string
	Value Expr
}

func (*LetDecl) stmtNode() {}
func (d *LetDecl) String() string {
	return fmt.Sprintf("LetDecl(%s = %s)", d.Name, d.Value)
}

// Assignment represents name = expr;
type Assignment struct {
	Name  string
	Value Expr
}

func (*Assignment) stmtNode() {}
func (a *Assignment) String() string {
	return fmt.Sprintf("Assignment(%s = %s)", a.Name, a.Value)
}

// IfStmt represents if (cond) { then } [else { else }].
// Else is nil when the statement has no else branch.
type IfStmt struct {
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.Else != nil {
		return fmt.Sprintf("IfStmt(if %s then %v else %v)", i.Condition, i.Then, i.Else)
	}
	return fmt.Sprintf("IfStmt(if %s then %v)", i.Condition, i.Then)
}
