// Package arithmetic compiles a small arithmetic expression tree (+ - * /
// and unary negation over attribute references and literals) into a linear
// stack-machine bytecode, then runs it against a record. Grounded on the
// original prototype's Function/ArithmeticOp (original_source/src/function.rs).
package arithmetic

import (
	"gopkg.in/src-d/go-errors.v1"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// ErrCompile covers every way a parse tree fails to compile into bytecode:
// an unknown attribute name, a string-typed operand, or an unsupported
// operator code.
var ErrCompile = errors.NewKind("arithmetic: compile error: %s")

// ErrEvaluation covers stack-machine faults during Run: malformed bytecode
// (a programmer error, since Compile is the only producer) or an integer
// division by zero. Float division by zero is not an error; it yields
// ±Inf or NaN.
var ErrEvaluation = errors.NewKind("arithmetic: evaluation error: %s")

// Code names one stack-machine opcode.
type Code uint8

const (
	PushInt Code = iota
	PushFlt
	IntNeg
	FltNeg
	ToFloat          // widen the top-of-stack int to float
	ToFloatFromUnder // widen the element just below top-of-stack from int to float
	IntAdd
	IntSub
	IntMul
	IntDiv
	FltAdd
	FltSub
	FltMul
	FltDiv
)

// Value is a tagged int64/float64 — the stack-machine's only value kind.
type Value struct {
	IsFloat bool
	Int     int64
	Flt     float64
}

// Op is one compiled instruction. RecordAttr selects a record column when
// HasRecordAttr is true; otherwise the literal int/float is used directly.
// Only PushInt and PushFlt read an operand; all other opcodes are niladic
// relative to their stack effect.
type Op struct {
	Code          Code
	HasRecordAttr bool
	RecordAttr    int
	LiteralInt    int64
	LiteralFlt    float64
}

// NodeKind distinguishes the three leaf operand forms an expression tree
// can bottom out at.
type NodeKind uint8

const (
	NodeAttr NodeKind = iota
	NodeInt
	NodeFloat
)

// Node is a parse-tree node: either a leaf (IsLeaf true, Kind/Name/IntVal/
// FloatVal populated) or an internal node with a single-character operator
// code and one or two children. Unary negation is expressed as a node with
// Code '-' and only Left populated.
type Node struct {
	IsLeaf   bool
	Kind     NodeKind
	Name     string
	IntVal   int64
	FloatVal float64

	Code  byte
	Left  *Node
	Right *Node
}

// Function is a compiled arithmetic expression: a flat bytecode program
// plus the result type, determined once at compile time.
type Function struct {
	ops         []Op
	returnsInt  bool
}

// Compile builds a Function from a parse tree against sch, resolving
// NodeAttr leaves to column indices and widening mixed int/float operands
// to float immediately before the binary opcode that combines them — the
// REDESIGN fix spec.md §9.3 calls for for a fixed, unambiguous widening
// point (original_source's ToFlt/ToFlt2Down pair, ported as ToFloat/
// ToFloatFromUnder).
func Compile(root *Node, sch *schema.Schema) (*Function, error) {
	f := &Function{}
	t, err := f.build(root, sch)
	if err != nil {
		return nil, err
	}
	f.returnsInt = t == schema.Integer
	return f, nil
}

func (f *Function) build(n *Node, sch *schema.Schema) (schema.Type, error) {
	if n.IsLeaf {
		switch n.Kind {
		case NodeAttr:
			idx := sch.IndexOf(n.Name)
			if idx < 0 {
				return 0, ErrCompile.New("unknown attribute: " + n.Name)
			}
			t, _ := sch.FindType(n.Name)
			switch t {
			case schema.Integer:
				f.ops = append(f.ops, Op{Code: PushInt, HasRecordAttr: true, RecordAttr: idx})
				return schema.Integer, nil
			case schema.Float:
				f.ops = append(f.ops, Op{Code: PushFlt, HasRecordAttr: true, RecordAttr: idx})
				return schema.Float, nil
			default:
				return 0, ErrCompile.New("attribute is not numeric: " + n.Name)
			}
		case NodeInt:
			f.ops = append(f.ops, Op{Code: PushInt, LiteralInt: n.IntVal})
			return schema.Integer, nil
		case NodeFloat:
			f.ops = append(f.ops, Op{Code: PushFlt, LiteralFlt: n.FloatVal})
			return schema.Float, nil
		}
		return 0, ErrCompile.New("malformed leaf node")
	}

	if n.Code == '-' && n.Right == nil {
		t, err := f.build(n.Left, sch)
		if err != nil {
			return 0, err
		}
		switch t {
		case schema.Integer:
			f.ops = append(f.ops, Op{Code: IntNeg})
			return schema.Integer, nil
		case schema.Float:
			f.ops = append(f.ops, Op{Code: FltNeg})
			return schema.Float, nil
		default:
			return 0, ErrCompile.New("cannot negate a non-numeric operand")
		}
	}

	leftType, err := f.build(n.Left, sch)
	if err != nil {
		return 0, err
	}
	rightType, err := f.build(n.Right, sch)
	if err != nil {
		return 0, err
	}

	if leftType == schema.Integer && rightType == schema.Integer {
		code, err := intBinaryOp(n.Code)
		if err != nil {
			return 0, err
		}
		f.ops = append(f.ops, Op{Code: code})
		return schema.Integer, nil
	}

	if leftType == schema.Integer {
		f.ops = append(f.ops, Op{Code: ToFloatFromUnder})
	}
	if rightType == schema.Integer {
		f.ops = append(f.ops, Op{Code: ToFloat})
	}
	code, err := fltBinaryOp(n.Code)
	if err != nil {
		return 0, err
	}
	f.ops = append(f.ops, Op{Code: code})
	return schema.Float, nil
}

func intBinaryOp(code byte) (Code, error) {
	switch code {
	case '+':
		return IntAdd, nil
	case '-':
		return IntSub, nil
	case '*':
		return IntMul, nil
	case '/':
		return IntDiv, nil
	default:
		return 0, ErrCompile.New("unsupported operator")
	}
}

func fltBinaryOp(code byte) (Code, error) {
	switch code {
	case '+':
		return FltAdd, nil
	case '-':
		return FltSub, nil
	case '*':
		return FltMul, nil
	case '/':
		return FltDiv, nil
	default:
		return 0, ErrCompile.New("unsupported operator")
	}
}

// ReturnsInt reports whether Run produces an Integer-typed Value.
func (f *Function) ReturnsInt() bool { return f.returnsInt }

// Run executes the compiled bytecode against rec, returning the single
// value left on the stack.
func (f *Function) Run(rec *record.Record) (Value, error) {
	stack := make([]Value, 0, len(f.ops))

	for _, op := range f.ops {
		switch op.Code {
		case PushInt:
			v := op.LiteralInt
			if op.HasRecordAttr {
				col, err := rec.GetColumn(op.RecordAttr)
				if err != nil {
					return Value{}, err
				}
				v = col.Int
			}
			stack = append(stack, Value{Int: v})
		case PushFlt:
			v := op.LiteralFlt
			if op.HasRecordAttr {
				col, err := rec.GetColumn(op.RecordAttr)
				if err != nil {
					return Value{}, err
				}
				v = col.Flt
			}
			stack = append(stack, Value{IsFloat: true, Flt: v})
		case ToFloat:
			top := len(stack) - 1
			if top < 0 || stack[top].IsFloat {
				return Value{}, ErrEvaluation.New("ToFloat: top of stack is not an int")
			}
			stack[top] = Value{IsFloat: true, Flt: float64(stack[top].Int)}
		case ToFloatFromUnder:
			idx := len(stack) - 2
			if idx < 0 || stack[idx].IsFloat {
				return Value{}, ErrEvaluation.New("ToFloatFromUnder: stack underflow or non-int operand")
			}
			stack[idx] = Value{IsFloat: true, Flt: float64(stack[idx].Int)}
		case IntNeg:
			top := len(stack) - 1
			if top < 0 {
				return Value{}, ErrEvaluation.New("stack underflow")
			}
			stack[top].Int = -stack[top].Int
		case FltNeg:
			top := len(stack) - 1
			if top < 0 {
				return Value{}, ErrEvaluation.New("stack underflow")
			}
			stack[top].Flt = -stack[top].Flt
		case IntAdd, IntSub, IntMul, IntDiv:
			l, r, err := popTwo(&stack)
			if err != nil {
				return Value{}, err
			}
			result, err := applyIntOp(op.Code, l.Int, r.Int)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{Int: result})
		case FltAdd, FltSub, FltMul, FltDiv:
			l, r, err := popTwo(&stack)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, Value{IsFloat: true, Flt: applyFltOp(op.Code, l.Flt, r.Flt)})
		default:
			return Value{}, ErrEvaluation.New("unknown opcode")
		}
	}

	if len(stack) != 1 {
		return Value{}, ErrEvaluation.New("program did not reduce to a single value")
	}
	return stack[0], nil
}

func popTwo(stack *[]Value) (left, right Value, err error) {
	s := *stack
	if len(s) < 2 {
		return Value{}, Value{}, ErrEvaluation.New("stack underflow")
	}
	right = s[len(s)-1]
	left = s[len(s)-2]
	*stack = s[:len(s)-2]
	return left, right, nil
}

func applyIntOp(code Code, l, r int64) (int64, error) {
	switch code {
	case IntAdd:
		return l + r, nil
	case IntSub:
		return l - r, nil
	case IntMul:
		return l * r, nil
	case IntDiv:
		if r == 0 {
			return 0, ErrEvaluation.New("integer division by zero")
		}
		return l / r, nil
	}
	return 0, ErrEvaluation.New("unknown integer opcode")
}

func applyFltOp(code Code, l, r float64) float64 {
	switch code {
	case FltAdd:
		return l + r
	case FltSub:
		return l - r
	case FltMul:
		return l * r
	case FltDiv:
		return l / r
	}
	return 0
}
