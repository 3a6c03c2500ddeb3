package plan

import (
	"github.com/tinyrel/tinyrel/arithmetic"
	"github.com/tinyrel/tinyrel/plan/ast"
)

// astToArithNode translates a projected SELECT expression into the arith
// parse tree arithmetic.Compile consumes. Only the numeric leaves and
// operators spec.md §6 lists are legal here; a bare Column with a String
// type fails later in arithmetic.Compile, not here (this function never
// sees the schema).
func astToArithNode(expr ast.Expression) (*arithmetic.Node, error) {
	switch e := expr.(type) {
	case *ast.Column:
		return &arithmetic.Node{IsLeaf: true, Kind: arithmetic.NodeAttr, Name: e.Name}, nil
	case *ast.IntLiteral:
		return &arithmetic.Node{IsLeaf: true, Kind: arithmetic.NodeInt, IntVal: e.Value}, nil
	case *ast.FloatLiteral:
		return &arithmetic.Node{IsLeaf: true, Kind: arithmetic.NodeFloat, FloatVal: e.Value}, nil
	case *ast.Arith:
		left, err := astToArithNode(e.Left)
		if err != nil {
			return nil, err
		}
		if e.Right == nil {
			return &arithmetic.Node{Code: e.Code, Left: left}, nil
		}
		right, err := astToArithNode(e.Right)
		if err != nil {
			return nil, err
		}
		return &arithmetic.Node{Code: e.Code, Left: left, Right: right}, nil
	default:
		return nil, ErrCompile.New("unsupported expression in projected column")
	}
}

// isPlainColumn reports whether expr is a bare column reference, in which
// case the planner can fold it into a Project rather than wrapping an
// ApplyFunction around a one-node arithmetic program.
func isPlainColumn(expr ast.Expression) (string, bool) {
	c, ok := expr.(*ast.Column)
	if !ok {
		return "", false
	}
	return c.Name, true
}
