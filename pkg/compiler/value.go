package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a folded Value.
type Kind int

const (
	KindNumber Kind = iota
	KindFloat
	KindString
	KindBool
	KindArray
	KindNull
)

var kindNames = [...]string{
	KindNumber: "number",
	KindFloat:  "float",
	KindString: "string",
	KindBool:   "boolean",
	KindArray:  "array",
	KindNull:   "null",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is the compile-time result of folding an expression. String returns
// the text the program prints for it.
type Value interface {
	Kind() Kind
	String() string
}

type NumberValue int32

type FloatValue float64

type StringValue string

type BoolValue bool

type ArrayValue []Value

type NullValue struct{}

func (NumberValue) Kind() Kind { return KindNumber }
func (FloatValue) Kind() Kind  { return KindFloat }
func (StringValue) Kind() Kind { return KindString }
func (BoolValue) Kind() Kind   { return KindBool }
func (ArrayValue) Kind() Kind  { return KindArray }
func (NullValue) Kind() Kind   { return KindNull }

func (n NumberValue) String() string { return strconv.Itoa(int(n)) }
func (f FloatValue) String() string  { return formatFloat(float64(f)) }
func (s StringValue) String() string { return string(s) }
func (b BoolValue) String() string   { return strconv.FormatBool(bool(b)) }
func (NullValue) String() string     { return "null" }

func (a ArrayValue) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatFloat renders the shortest decimal text that round-trips, without
// an exponent: 3.0 prints as 3 and 1.5 as 1.5.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Evaluate folds expr to a Value. Names resolve through syms, constants
// first; syms may be nil for name-free expressions.
func Evaluate(expr Expr, syms *SymbolTable) (Value, error) {
	switch n := expr.(type) {
	case *IntLiteral:
		return NumberValue(n.Value), nil
	case *FloatLiteral:
		return FloatValue(n.Value), nil
	case *StringLiteral:
		return StringValue(n.Value), nil
	case *BoolLiteral:
		return BoolValue(n.Value), nil
	case *NullLiteral:
		return NullValue{}, nil

	case *ArrayLiteral:
		elems := make(ArrayValue, len(n.Elements))
		for i, e := range n.Elements {
			v, err := Evaluate(e, syms)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil

	case *VarRef:
		if syms != nil {
			if sym, ok := syms.Lookup(n.Name); ok {
				return sym.Value, nil
			}
		}
		return nil, nameErrorf("undefined name %q", n.Name)

	case *BinaryExpr:
		left, err := Evaluate(n.Left, syms)
		if err != nil {
			return nil, err
		}
		right, err := Evaluate(n.Right, syms)
		if err != nil {
			return nil, err
		}
		return evalBinary(n.Op, left, right)
	}

	return nil, typeErrorf("cannot evaluate %T at compile time", expr)
}

func evalBinary(op BinOp, left, right Value) (Value, error) {
	if op == Add && (left.Kind() == KindString || right.Kind() == KindString) {
		return StringValue(left.String() + right.String()), nil
	}
	if op.IsComparison() {
		return compareValues(op, left, right)
	}

	switch l := left.(type) {
	case NumberValue:
		switch r := right.(type) {
		case NumberValue:
			return intArith(op, l, r)
		case FloatValue:
			return floatArith(op, FloatValue(l), r)
		}
	case FloatValue:
		switch r := right.(type) {
		case NumberValue:
			return floatArith(op, l, FloatValue(r))
		case FloatValue:
			return floatArith(op, l, r)
		}
	}
	return nil, typeErrorf("operator %s not supported between %s and %s", op, left.Kind(), right.Kind())
}

// intArith wraps on 32-bit overflow.
func intArith(op BinOp, l, r NumberValue) (Value, error) {
	switch op {
	case Add:
		return l + r, nil
	case Sub:
		return l - r, nil
	case Mul:
		return l * r, nil
	case Div:
		if r == 0 {
			return nil, arithmeticErrorf("integer division by zero")
		}
		return l / r, nil
	}
	return nil, typeErrorf("operator %s not supported between numbers", op)
}

func floatArith(op BinOp, l, r FloatValue) (Value, error) {
	switch op {
	case Add:
		return l + r, nil
	case Sub:
		return l - r, nil
	case Mul:
		return l * r, nil
	case Div:
		if r == 0 {
			return nil, arithmeticErrorf("float division by zero")
		}
		return l / r, nil
	}
	return nil, typeErrorf("operator %s not supported between floats", op)
}

func compareValues(op BinOp, left, right Value) (Value, error) {
	var cmp int
	switch l := left.(type) {
	case NumberValue:
		switch r := right.(type) {
		case NumberValue:
			cmp = compareOrdered(l, r)
		case FloatValue:
			cmp = compareOrdered(FloatValue(l), r)
		default:
			return nil, mismatch(op, left, right)
		}
	case FloatValue:
		switch r := right.(type) {
		case NumberValue:
			cmp = compareOrdered(l, FloatValue(r))
		case FloatValue:
			cmp = compareOrdered(l, r)
		default:
			return nil, mismatch(op, left, right)
		}
	case StringValue:
		r, ok := right.(StringValue)
		if !ok {
			return nil, mismatch(op, left, right)
		}
		cmp = strings.Compare(string(l), string(r))
	case BoolValue:
		r, ok := right.(BoolValue)
		if !ok {
			return nil, mismatch(op, left, right)
		}
		switch op {
		case Equal:
			return BoolValue(l == r), nil
		case NotEqual:
			return BoolValue(l != r), nil
		}
		return nil, typeErrorf("operator %s not supported between booleans", op)
	default:
		return nil, mismatch(op, left, right)
	}

	switch op {
	case Equal:
		return BoolValue(cmp == 0), nil
	case NotEqual:
		return BoolValue(cmp != 0), nil
	case LessThan:
		return BoolValue(cmp < 0), nil
	case GreaterThan:
		return BoolValue(cmp > 0), nil
	case LessOrEqual:
		return BoolValue(cmp <= 0), nil
	default:
		return BoolValue(cmp >= 0), nil
	}
}

func compareOrdered[T NumberValue | FloatValue](l, r T) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func mismatch(op BinOp, left, right Value) error {
	return typeErrorf("cannot compare %s %s %s", left.Kind(), op, right.Kind())
}
