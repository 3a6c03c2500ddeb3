package plan

import (
	"github.com/tinyrel/tinyrel/plan/ast"
	"github.com/tinyrel/tinyrel/predicate"
	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// compileCondition lowers a WHERE expression into a (CNF, constants record)
// pair, per spec.md §4.G point 2 (compile_condition). Column leaves resolve
// to a predicate.Left operand against sch; every other leaf becomes a
// predicate.Literal appended to the returned constants record — the
// top-level WHERE CNF this produces never uses predicate.Right, since
// Right is reserved for comparing two distinct records inside a join
// operator's own predicate.
func compileCondition(expr ast.Expression, sch *schema.Schema) (predicate.CNF, *record.Record, error) {
	switch e := expr.(type) {
	case nil:
		return predicate.True(), record.New(), nil

	case *ast.BoolLiteral:
		if e.Value {
			return predicate.True(), record.New(), nil
		}
		return predicate.False(), record.New(), nil

	case *ast.And:
		return compileBoolCombinator(e.Left, e.Right, sch, predicate.And)

	case *ast.Or:
		return compileBoolCombinator(e.Left, e.Right, sch, predicate.Or)

	case *ast.Not:
		cnf, consts, err := compileCondition(e.Operand, sch)
		if err != nil {
			return predicate.CNF{}, nil, err
		}
		return cnf.Negate(), consts, nil

	case *ast.Comparison:
		return compileComparison(e, sch)

	default:
		return predicate.CNF{}, nil, ErrCompile.New("unsupported WHERE expression node")
	}
}

func compileBoolCombinator(
	leftExpr, rightExpr ast.Expression,
	sch *schema.Schema,
	combine func(a, b predicate.CNF) predicate.CNF,
) (predicate.CNF, *record.Record, error) {
	leftCNF, leftConsts, err := compileCondition(leftExpr, sch)
	if err != nil {
		return predicate.CNF{}, nil, err
	}
	rightCNF, rightConsts, err := compileCondition(rightExpr, sch)
	if err != nil {
		return predicate.CNF{}, nil, err
	}
	rightCNF = rightCNF.IncreaseConstantsOffset(leftConsts.NumColumns())
	leftConsts.MergeRight(rightConsts)
	return combine(leftCNF, rightCNF), leftConsts, nil
}

// compileComparison resolves both sides of `lhs op rhs` against sch. Each
// side becomes either a Left attribute (a Column name found in sch) or a
// Literal appended to a freshly built constants record; both sides must
// agree on type.
func compileComparison(c *ast.Comparison, sch *schema.Schema) (predicate.CNF, *record.Record, error) {
	consts := &literalBuilder{b: record.NewBuilder()}

	op1, idx1, typ1, err := resolveOperand(c.Left, sch, consts)
	if err != nil {
		return predicate.CNF{}, nil, err
	}
	op2, idx2, typ2, err := resolveOperand(c.Right, sch, consts)
	if err != nil {
		return predicate.CNF{}, nil, err
	}
	if typ1 != typ2 {
		return predicate.CNF{}, nil, ErrCompile.New("type mismatch in comparison")
	}

	comp := predicate.Comparison{
		Operand1: op1,
		Attr1:    idx1,
		Operand2: op2,
		Attr2:    idx2,
		Type:     typ1,
		Op:       compareOp(c.Op),
	}
	return predicate.FromComparison(comp), consts.b.Build(), nil
}

// literalBuilder wraps record.Builder with a running column count, since
// resolveOperand needs to know a pushed literal's index and Builder itself
// exposes no such accessor (it is meant to be filled and then Build() once).
type literalBuilder struct {
	b     *record.Builder
	count int
}

func (l *literalBuilder) pushInt(v int64) int {
	l.b.PushInt(v)
	idx := l.count
	l.count++
	return idx
}

func (l *literalBuilder) pushFloat(v float64) int {
	l.b.PushFloat(v)
	idx := l.count
	l.count++
	return idx
}

func (l *literalBuilder) pushString(v string) int {
	l.b.PushString(v)
	idx := l.count
	l.count++
	return idx
}

// resolveOperand resolves one side of a Comparison to either a Left
// attribute index (a Column found in sch) or a Literal index, pushing the
// literal's value onto consts when it isn't a column reference.
func resolveOperand(expr ast.Expression, sch *schema.Schema, consts *literalBuilder) (predicate.Target, int, schema.Type, error) {
	switch e := expr.(type) {
	case *ast.Column:
		idx := sch.IndexOf(e.Name)
		if idx < 0 {
			return 0, 0, 0, ErrCompile.New("unknown attribute: " + e.Name)
		}
		typ, _ := sch.FindType(e.Name)
		return predicate.Left, idx, typ, nil
	case *ast.IntLiteral:
		idx := consts.pushInt(e.Value)
		return predicate.Literal, idx, schema.Integer, nil
	case *ast.FloatLiteral:
		idx := consts.pushFloat(e.Value)
		return predicate.Literal, idx, schema.Float, nil
	case *ast.StringLiteral:
		idx := consts.pushString(e.Value)
		return predicate.Literal, idx, schema.String, nil
	default:
		return 0, 0, 0, ErrCompile.New("unsupported comparison operand")
	}
}

func compareOp(op ast.CompareOp) predicate.Op {
	switch op {
	case ast.OpLt:
		return predicate.Lt
	case ast.OpLe:
		return predicate.Le
	case ast.OpGt:
		return predicate.Gt
	case ast.OpGe:
		return predicate.Ge
	case ast.OpEq:
		return predicate.Eq
	case ast.OpNe:
		return predicate.Ne
	default:
		return predicate.Eq
	}
}
