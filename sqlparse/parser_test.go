package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrel/tinyrel/plan/ast"
)

func TestParseSimpleSelect(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM customers WHERE id = 2")
	require.NoError(t, err)
	require.Equal(t, []string{"customers"}, stmt.From)
	require.Len(t, stmt.Columns, 2)

	col1, ok := stmt.Columns[0].Expr.(*ast.Column)
	require.True(t, ok)
	require.Equal(t, "id", col1.Name)

	cmp, ok := stmt.Where.(*ast.Comparison)
	require.True(t, ok)
	require.Equal(t, ast.OpEq, cmp.Op)
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t")
	require.NoError(t, err)
	require.Nil(t, stmt.Columns)
}

func TestParseDistinctAndOrderBy(t *testing.T) {
	stmt, err := Parse("SELECT DISTINCT name FROM t ORDER BY name DESC")
	require.NoError(t, err)
	require.True(t, stmt.Distinct)
	require.Len(t, stmt.OrderBy, 1)
	require.True(t, stmt.OrderBy[0].Desc)
}

func TestParseJoinOnSharedColumn(t *testing.T) {
	stmt, err := Parse("SELECT name FROM customers JOIN orders ON customers.cust_id = orders.cust_id")
	require.NoError(t, err)
	require.Len(t, stmt.Joins, 1)
	require.Equal(t, ast.InnerJoin, stmt.Joins[0].Kind)
	require.Equal(t, "orders", stmt.Joins[0].Table)
}

func TestParseLeftJoinParsesButIsRejectedLater(t *testing.T) {
	stmt, err := Parse("SELECT name FROM a LEFT JOIN b ON a.id = b.id")
	require.NoError(t, err)
	require.Equal(t, ast.LeftJoin, stmt.Joins[0].Kind)
}

func TestParseGroupBy(t *testing.T) {
	stmt, err := Parse("SELECT category FROM items GROUP BY category")
	require.NoError(t, err)
	require.Equal(t, []string{"category"}, stmt.GroupBy)
}

func TestParseArithmeticProjection(t *testing.T) {
	stmt, err := Parse("SELECT x + 2 * y AS total FROM t")
	require.NoError(t, err)
	require.Len(t, stmt.Columns, 1)
	require.Equal(t, "total", stmt.Columns[0].Alias)

	arith, ok := stmt.Columns[0].Expr.(*ast.Arith)
	require.True(t, ok)
	require.Equal(t, byte('+'), arith.Code)
}

func TestParseAndOrNotPrecedence(t *testing.T) {
	stmt, err := Parse("SELECT id FROM t WHERE NOT id = 1 AND id = 2 OR id = 3")
	require.NoError(t, err)
	// OR binds loosest: (NOT id=1 AND id=2) OR id=3
	or, ok := stmt.Where.(*ast.Or)
	require.True(t, ok)
	_, ok = or.Left.(*ast.And)
	require.True(t, ok)
	_, ok = or.Right.(*ast.Comparison)
	require.True(t, ok)
}

func TestParseSyntaxErrorMissingFrom(t *testing.T) {
	_, err := Parse("SELECT id customers")
	require.True(t, ErrSyntax.Is(err))
}
