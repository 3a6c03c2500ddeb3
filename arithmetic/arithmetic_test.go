package arithmetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Attribute{
		{Name: "qty", Type: schema.Integer},
		{Name: "price", Type: schema.Float},
	})
	require.NoError(t, err)
	return s
}

func leaf(kind NodeKind, name string, i int64, f float64) *Node {
	return &Node{IsLeaf: true, Kind: kind, Name: name, IntVal: i, FloatVal: f}
}

func attr(name string) *Node { return leaf(NodeAttr, name, 0, 0) }
func intLit(v int64) *Node   { return leaf(NodeInt, "", v, 0) }
func floatLit(v float64) *Node { return leaf(NodeFloat, "", 0, v) }

func bin(code byte, l, r *Node) *Node { return &Node{Code: code, Left: l, Right: r} }
func neg(l *Node) *Node                { return &Node{Code: '-', Left: l} }

func TestCompileAllIntegerStaysInteger(t *testing.T) {
	sch := testSchema(t)
	tree := bin('+', attr("qty"), intLit(3))
	f, err := Compile(tree, sch)
	require.NoError(t, err)
	assert.True(t, f.ReturnsInt())

	r := record.NewBuilder().PushInt(7).PushFloat(1.5).Build()
	v, err := f.Run(r)
	require.NoError(t, err)
	assert.False(t, v.IsFloat)
	assert.EqualValues(t, 10, v.Int)
}

func TestCompileMixedWidensToFloat(t *testing.T) {
	sch := testSchema(t)
	tree := bin('*', attr("qty"), attr("price"))
	f, err := Compile(tree, sch)
	require.NoError(t, err)
	assert.False(t, f.ReturnsInt())

	r := record.NewBuilder().PushInt(4).PushFloat(2.5).Build()
	v, err := f.Run(r)
	require.NoError(t, err)
	assert.True(t, v.IsFloat)
	assert.InDelta(t, 10.0, v.Flt, 1e-9)
}

func TestCompileUnaryNegation(t *testing.T) {
	sch := testSchema(t)
	tree := neg(attr("qty"))
	f, err := Compile(tree, sch)
	require.NoError(t, err)

	r := record.NewBuilder().PushInt(5).PushFloat(0).Build()
	v, err := f.Run(r)
	require.NoError(t, err)
	assert.EqualValues(t, -5, v.Int)
}

func TestCompileUnknownAttributeFails(t *testing.T) {
	sch := testSchema(t)
	_, err := Compile(attr("nope"), sch)
	assert.Error(t, err)
}

func TestCompileNestedExpression(t *testing.T) {
	sch := testSchema(t)
	// (qty + 1) * price - 2.0
	tree := bin('-', bin('*', bin('+', attr("qty"), intLit(1)), attr("price")), floatLit(2.0))
	f, err := Compile(tree, sch)
	require.NoError(t, err)

	r := record.NewBuilder().PushInt(3).PushFloat(2.0).Build()
	v, err := f.Run(r)
	require.NoError(t, err)
	// (3+1)*2.0 - 2.0 = 6.0
	assert.InDelta(t, 6.0, v.Flt, 1e-9)
}

func TestRunIntegerDivisionByZero(t *testing.T) {
	sch := testSchema(t)
	tree := bin('/', attr("qty"), intLit(0))
	f, err := Compile(tree, sch)
	require.NoError(t, err)

	r := record.NewBuilder().PushInt(3).PushFloat(0).Build()
	_, err = f.Run(r)
	assert.Error(t, err)
}
