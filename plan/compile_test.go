package plan

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/tinyrel/tinyrel/access"
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/plan/ast"
	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/rowexec"
	"github.com/tinyrel/tinyrel/schema"
	"github.com/tinyrel/tinyrel/storage"
)

func writeTable(t *testing.T, dir, name string, sch *schema.Schema, rows []*record.Record) string {
	t.Helper()
	path := filepath.Join(dir, name+".tbl")
	f := storage.New(nil, storage.DefaultPageSize)
	require.NoError(t, f.Create(path))
	f.SetSchema(sch)
	for _, r := range rows {
		require.NoError(t, f.Append(r))
	}
	require.NoError(t, f.Close())
	return path
}

// drainPlan runs op to completion. On error it dumps the full operator tree
// with go-spew before failing, since a bare error from deep in a join tree
// rarely says which physical operator produced it.
func drainPlan(t *testing.T, op rowexec.RelOp) {
	t.Helper()
	for {
		_, ok, err := op.Next()
		if err != nil {
			t.Logf("plan tree at failure:\n%s", spew.Sdump(op))
		}
		require.NoError(t, err)
		if !ok {
			return
		}
	}
}

func TestCompileSelectWhereProjectOrderBy(t *testing.T) {
	dir, err := ioutil.TempDir("", "plan_compile")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	custSchema, err := schema.New([]schema.Attribute{
		{Name: "id", Type: schema.Integer},
		{Name: "name", Type: schema.String},
	})
	require.NoError(t, err)
	rows := []*record.Record{
		record.NewBuilder().PushInt(2).PushString("bob").Build(),
		record.NewBuilder().PushInt(1).PushString("alice").Build(),
		record.NewBuilder().PushInt(3).PushString("carol").Build(),
	}
	path := writeTable(t, dir, "customers", custSchema, rows)

	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	require.NoError(t, cat.CreateTable(ctx, "customers", custSchema.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "customers", path))
	require.NoError(t, cat.SetTupleCount(ctx, "customers", int64(len(rows))))

	stmt := &ast.SelectStatement{
		Columns: []ast.SelectItem{{Expr: &ast.Column{Name: "name"}}},
		From:    []string{"customers"},
		Where: &ast.Comparison{
			Left: &ast.Column{Name: "id"}, Op: ast.OpGe, Right: &ast.IntLiteral{Value: 2},
		},
		OrderBy: []ast.OrderTerm{{Column: "name"}},
	}

	outPath := filepath.Join(dir, "out.tbl")
	op, outSchema, err := Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, outPath)
	require.NoError(t, err)
	require.Equal(t, 1, outSchema.NumAtts())

	drainPlan(t, op)

	data, err := ioutil.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "bob|\ncarol|\n", string(data))
}

func TestCompileJoinOnSharedAttribute(t *testing.T) {
	dir, err := ioutil.TempDir("", "plan_compile_join")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	custSchema, err := schema.New([]schema.Attribute{
		{Name: "cust_id", Type: schema.Integer},
		{Name: "name", Type: schema.String},
	})
	require.NoError(t, err)
	custRows := []*record.Record{
		record.NewBuilder().PushInt(1).PushString("alice").Build(),
		record.NewBuilder().PushInt(2).PushString("bob").Build(),
	}
	custPath := writeTable(t, dir, "customers", custSchema, custRows)

	orderSchema, err := schema.New([]schema.Attribute{
		{Name: "order_id", Type: schema.Integer},
		{Name: "cust_id", Type: schema.Integer},
		{Name: "amount", Type: schema.Float},
	})
	require.NoError(t, err)
	orderRows := []*record.Record{
		record.NewBuilder().PushInt(100).PushInt(1).PushFloat(9.5).Build(),
		record.NewBuilder().PushInt(101).PushInt(2).PushFloat(4.0).Build(),
	}
	orderPath := writeTable(t, dir, "orders", orderSchema, orderRows)

	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	require.NoError(t, cat.CreateTable(ctx, "customers", custSchema.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "customers", custPath))
	require.NoError(t, cat.SetTupleCount(ctx, "customers", 2))
	require.NoError(t, cat.CreateTable(ctx, "orders", orderSchema.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "orders", orderPath))
	require.NoError(t, cat.SetTupleCount(ctx, "orders", 2))

	stmt := &ast.SelectStatement{
		From:    []string{"customers", "orders"},
		OrderBy: []ast.OrderTerm{{Column: "name"}},
	}

	outPath := filepath.Join(dir, "out.tbl")
	op, outSchema, err := Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, outPath)
	require.NoError(t, err)
	require.Equal(t, 4, outSchema.NumAtts()) // cust_id, name, order_id, amount (deduped)

	drainPlan(t, op)
	data, err := ioutil.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "1|alice|100|9.5|\n2|bob|101|4|\n", string(data))
}

func TestCompileEmptyDataPathSubstitutesEmptyScan(t *testing.T) {
	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	s, err := schema.New([]schema.Attribute{{Name: "id", Type: schema.Integer}})
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable(ctx, "empty", s.Atts()))
	// no SetDataPath call: DataPath stays ""

	dir, err := ioutil.TempDir("", "plan_compile_empty")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	stmt := &ast.SelectStatement{From: []string{"empty"}}
	outPath := filepath.Join(dir, "out.tbl")
	op, _, err := Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, outPath)
	require.NoError(t, err)

	drainPlan(t, op)
	data, err := ioutil.ReadFile(outPath)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestCompileMissingDataFileFailsCompile(t *testing.T) {
	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	s, err := schema.New([]schema.Attribute{{Name: "id", Type: schema.Integer}})
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable(ctx, "t", s.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "t", "/nonexistent/path/t.tbl"))

	stmt := &ast.SelectStatement{From: []string{"t"}}
	_, _, err = Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, "out.tbl")
	require.True(t, ErrCompile.Is(err))
}

func TestCompileUnsupportedJoinKindFails(t *testing.T) {
	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	stmt := &ast.SelectStatement{
		From:  []string{"a"},
		Joins: []ast.JoinClause{{Table: "b", Kind: ast.LeftJoin}},
	}
	_, _, err := Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, "out.tbl")
	require.True(t, ErrUnsupportedJoinKind.Is(err))
}

func TestCompileRequiresPermissions(t *testing.T) {
	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	stmt := &ast.SelectStatement{From: []string{"a"}}
	_, _, err := Compile(ctx, cat, config.Default(), access.Permission(0), stmt, "out.tbl")
	require.True(t, ErrCompile.Is(err))
}

func TestCompileGroupByEmitsOneRowPerGroup(t *testing.T) {
	dir, err := ioutil.TempDir("", "plan_compile_groupby")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s, err := schema.New([]schema.Attribute{
		{Name: "category", Type: schema.String},
		{Name: "val", Type: schema.Integer},
	})
	require.NoError(t, err)
	rows := []*record.Record{
		record.NewBuilder().PushString("a").PushInt(1).Build(),
		record.NewBuilder().PushString("a").PushInt(2).Build(),
		record.NewBuilder().PushString("b").PushInt(3).Build(),
	}
	path := writeTable(t, dir, "items", s, rows)

	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	require.NoError(t, cat.CreateTable(ctx, "items", s.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "items", path))
	require.NoError(t, cat.SetTupleCount(ctx, "items", 3))

	stmt := &ast.SelectStatement{
		From:    []string{"items"},
		GroupBy: []string{"category"},
	}
	outPath := filepath.Join(dir, "out.tbl")
	op, _, err := Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, outPath)
	require.NoError(t, err)

	drainPlan(t, op)
	data, err := ioutil.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "a|1|\nb|3|\n", string(data))
}

func TestCompileDistinct(t *testing.T) {
	dir, err := ioutil.TempDir("", "plan_compile_distinct")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s, err := schema.New([]schema.Attribute{{Name: "v", Type: schema.Integer}})
	require.NoError(t, err)
	rows := []*record.Record{
		record.NewBuilder().PushInt(1).Build(),
		record.NewBuilder().PushInt(1).Build(),
		record.NewBuilder().PushInt(2).Build(),
	}
	path := writeTable(t, dir, "t", s, rows)

	cat := catalog.NewMemory()
	ctx := enginectx.New(nil, nil)
	require.NoError(t, cat.CreateTable(ctx, "t", s.Atts()))
	require.NoError(t, cat.SetDataPath(ctx, "t", path))
	require.NoError(t, cat.SetTupleCount(ctx, "t", 3))

	stmt := &ast.SelectStatement{Distinct: true, From: []string{"t"}}
	outPath := filepath.Join(dir, "out.tbl")
	op, _, err := Compile(ctx, cat, config.Default(), access.AllPermissions, stmt, outPath)
	require.NoError(t, err)

	drainPlan(t, op)
	data, err := ioutil.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "1|\n2|\n", string(data))
}

func TestApplyProjectionMixedColumnsAndArithmeticFails(t *testing.T) {
	s, err := schema.New([]schema.Attribute{
		{Name: "x", Type: schema.Integer},
		{Name: "y", Type: schema.Integer},
	})
	require.NoError(t, err)

	items := []ast.SelectItem{
		{Expr: &ast.Column{Name: "x"}},
		{Expr: &ast.Arith{Code: '+', Left: &ast.Column{Name: "x"}, Right: &ast.Column{Name: "y"}}},
	}
	_, _, err = applyProjection(nil, s, items)
	require.True(t, ErrCompile.Is(err))
}

func TestApplyProjectionSingleArithExpression(t *testing.T) {
	s, err := schema.New([]schema.Attribute{
		{Name: "x", Type: schema.Integer},
		{Name: "y", Type: schema.Float},
	})
	require.NoError(t, err)

	items := []ast.SelectItem{
		{Expr: &ast.Arith{Code: '+', Left: &ast.Column{Name: "x"}, Right: &ast.Column{Name: "y"}}, Alias: "total"},
	}
	op, outSchema, err := applyProjection(sliceOp{}, s, items)
	require.NoError(t, err)
	require.Equal(t, 1, outSchema.NumAtts())
	require.Equal(t, "total", outSchema.Atts()[0].Name)
	require.Equal(t, schema.Float, outSchema.Atts()[0].Type)
	require.NotNil(t, op)
}

// sliceOp is a no-op RelOp used where applyProjection needs a non-nil Child
// but the test never calls Next.
type sliceOp struct{}

func (sliceOp) Next() (*record.Record, bool, error) { return nil, false, nil }
