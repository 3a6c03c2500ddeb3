// Package plan implements the query compiler: spec.md §4.G lowered over
// Go types, bottom-up from a scan list to a tree of rowexec operators
// rooted in a WriteOut. Grounded on original_source/src/engine.rs's
// top-level compile entry point, restructured into the small per-concern
// files (scan.go for join-order search, condition.go for WHERE lowering,
// arith.go for projected arithmetic) a Go reviewer would expect instead of
// one monolithic function.
package plan

import (
	"path/filepath"

	"github.com/tinyrel/tinyrel/access"
	"github.com/tinyrel/tinyrel/arithmetic"
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/plan/ast"
	"github.com/tinyrel/tinyrel/predicate"
	"github.com/tinyrel/tinyrel/rowexec"
	"github.com/tinyrel/tinyrel/schema"
)

// Compile lowers stmt into a ready-to-run plan tree rooted in a WriteOut
// targeting outputPath (relative paths are joined against cfg.Output.
// Directory). perm must grant at least ReadPerm to read the named tables
// and WritePerm to write the result, since the plan root is always a
// WriteOut (spec.md §4.G, final paragraph).
func Compile(ctx *enginectx.Context, cat catalog.Catalog, cfg *config.Config, perm access.Permission, stmt *ast.SelectStatement, outputPath string) (rowexec.RelOp, *schema.Schema, error) {
	if err := access.Check(perm, access.WritePerm); err != nil {
		return nil, nil, ErrCompile.New(err.Error())
	}

	op, sch, err := compilePipeline(ctx, cat, cfg, perm, stmt)
	if err != nil {
		return nil, nil, err
	}

	path := outputPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Output.Directory, path)
	}
	return &rowexec.WriteOut{Path: path, Child: op}, sch, nil
}

// CompileToRows lowers stmt the same way Compile does, but roots the plan
// in a rowexec.MemorySink instead of a WriteOut — the driver package's
// substitution for callers that want rows back rather than a file
// (SPEC_FULL §4.M). Only ReadPerm is required: nothing is written.
func CompileToRows(ctx *enginectx.Context, cat catalog.Catalog, cfg *config.Config, perm access.Permission, stmt *ast.SelectStatement) (*rowexec.MemorySink, *schema.Schema, error) {
	op, sch, err := compilePipeline(ctx, cat, cfg, perm, stmt)
	if err != nil {
		return nil, nil, err
	}
	return &rowexec.MemorySink{Child: op}, sch, nil
}

// compilePipeline builds the scan-through-order-by tree every Compile
// variant shares, stopping short of the sink each one roots the plan in.
func compilePipeline(ctx *enginectx.Context, cat catalog.Catalog, cfg *config.Config, perm access.Permission, stmt *ast.SelectStatement) (rowexec.RelOp, *schema.Schema, error) {
	if err := access.Check(perm, access.ReadPerm); err != nil {
		return nil, nil, ErrCompile.New(err.Error())
	}

	tables, where, err := scanListAndWhere(stmt)
	if err != nil {
		return nil, nil, err
	}

	rels, err := openTables(ctx, cat, cfg, tables)
	if err != nil {
		return nil, nil, err
	}
	rels = chooseJoinOrder(rels, cfg.Planner.ExhaustiveJoinLimit)
	op, sch := buildJoinTree(rels)

	op, sch, err = applyWhere(op, sch, where, cfg)
	if err != nil {
		return nil, nil, err
	}

	op, sch, err = applyGroupBy(op, sch, stmt.GroupBy)
	if err != nil {
		return nil, nil, err
	}

	op, sch, err = applyProjection(op, sch, stmt.Columns)
	if err != nil {
		return nil, nil, err
	}

	if stmt.Distinct {
		op = &rowexec.DupElim{Child: op}
		sch = scaleTupleCount(sch, cfg.Planner.DefaultSelectivity)
	}

	op, err = applyOrderBy(op, sch, stmt.OrderBy)
	if err != nil {
		return nil, nil, err
	}

	return op, sch, nil
}

// scanListAndWhere collects every table name the statement touches (the
// FROM list plus each JOIN clause's table) and folds every JOIN's ON
// condition into the overall filter predicate, conjoined with the WHERE
// clause. Only InnerJoin is lowered; spec.md §4.G point 5 leaves outer
// joins unspecified and SPEC_FULL §4.H makes that an explicit compile
// error.
func scanListAndWhere(stmt *ast.SelectStatement) ([]string, ast.Expression, error) {
	tables := append([]string(nil), stmt.From...)
	where := stmt.Where

	for _, j := range stmt.Joins {
		if j.Kind != ast.InnerJoin {
			return nil, nil, ErrUnsupportedJoinKind.New(j.Kind.String())
		}
		tables = append(tables, j.Table)
		if j.On == nil {
			continue
		}
		if where == nil {
			where = j.On
		} else {
			where = &ast.And{Left: where, Right: j.On}
		}
	}
	return tables, where, nil
}

// applyWhere compiles where against sch and wraps op in a Select when a
// condition is present, scaling the estimated tuple count down per
// equality predicate per spec.md §9 point 5 (the source's "TODO: estimate"
// notes, resolved to config.Planner.DefaultSelectivity).
func applyWhere(op rowexec.RelOp, sch *schema.Schema, where ast.Expression, cfg *config.Config) (rowexec.RelOp, *schema.Schema, error) {
	if where == nil {
		return op, sch, nil
	}
	cnf, consts, err := compileCondition(where, sch)
	if err != nil {
		return nil, nil, err
	}
	cnf = cnf.Minimize()

	outSchema := sch.Clone()
	numEq := 0
	for _, c := range cnf.Comparisons() {
		if c.Op == predicate.Eq {
			numEq++
		}
	}
	for i := 0; i < numEq; i++ {
		outSchema = scaleTupleCount(outSchema, cfg.Planner.DefaultSelectivity)
	}

	return &rowexec.Select{Predicate: cnf, Constants: consts, Child: op}, outSchema, nil
}

func scaleTupleCount(sch *schema.Schema, selectivity float64) *schema.Schema {
	out := sch.Clone()
	out.TupleCount = int64(float64(out.TupleCount) * selectivity)
	return out
}

// applyGroupBy lowers a GROUP BY list into a sort over the grouping
// columns followed by a GroupBy operator (spec.md §4.G point 4), resolving
// each named column to an index against sch. Per-group aggregation, if
// any, is composed by the caller layering ApplyFunction over this
// operator's output — this function only produces one representative
// record per group.
func applyGroupBy(op rowexec.RelOp, sch *schema.Schema, groupBy []string) (rowexec.RelOp, *schema.Schema, error) {
	if len(groupBy) == 0 {
		return op, sch, nil
	}
	keep := make([]int, len(groupBy))
	for i, name := range groupBy {
		idx := sch.IndexOf(name)
		if idx < 0 {
			return nil, nil, ErrCompile.New("unknown GROUP BY attribute: " + name)
		}
		keep[i] = idx
	}
	orderer, err := predicate.NewProjectedOrderMaker(sch, keep)
	if err != nil {
		return nil, nil, ErrCompile.New(err.Error())
	}
	sorted := &rowexec.OrderBy{Ordering: orderer, Child: op}
	grouped := &rowexec.GroupBy{Grouping: orderer, Child: sorted}
	return grouped, sch, nil
}

// applyProjection lowers the SELECT column list. A list of bare column
// references becomes a Project (elided when it is the schema's identity,
// per spec.md §4.F); a single arithmetic expression becomes an
// ApplyFunction. Mixing plain columns and arithmetic in the same list is
// not supported: ApplyFunction replaces the whole record with its single
// result column, so there is no operator in this engine that can emit
// "some kept columns plus one computed column" in a single pass.
func applyProjection(op rowexec.RelOp, sch *schema.Schema, items []ast.SelectItem) (rowexec.RelOp, *schema.Schema, error) {
	if len(items) == 0 {
		return op, sch, nil
	}

	allPlain := true
	for _, it := range items {
		if _, ok := isPlainColumn(it.Expr); !ok {
			allPlain = false
			break
		}
	}

	if allPlain {
		keep := make([]int, len(items))
		for i, it := range items {
			name, _ := isPlainColumn(it.Expr)
			idx := sch.IndexOf(name)
			if idx < 0 {
				return nil, nil, ErrCompile.New("unknown attribute: " + name)
			}
			keep[i] = idx
		}
		if isIdentityProjection(keep, sch.NumAtts()) {
			return op, sch, nil
		}
		projSchema, err := sch.Project(keep)
		if err != nil {
			return nil, nil, ErrCompile.New(err.Error())
		}
		return &rowexec.Project{KeepIndices: keep, Child: op}, projSchema, nil
	}

	if len(items) != 1 {
		return nil, nil, ErrCompile.New("mixed column and arithmetic expressions in SELECT list are not supported")
	}

	node, err := astToArithNode(items[0].Expr)
	if err != nil {
		return nil, nil, err
	}
	fn, err := arithmetic.Compile(node, sch)
	if err != nil {
		return nil, nil, ErrCompile.New(err.Error())
	}

	resultType := schema.Float
	if fn.ReturnsInt() {
		resultType = schema.Integer
	}
	name := items[0].Alias
	if name == "" {
		name = "expr"
	}
	outSchema, err := schema.New([]schema.Attribute{{Name: name, Type: resultType}})
	if err != nil {
		return nil, nil, ErrCompile.New(err.Error())
	}
	outSchema.TupleCount = sch.TupleCount

	return &rowexec.ApplyFunction{Function: fn, Child: op}, outSchema, nil
}

func isIdentityProjection(keep []int, n int) bool {
	if len(keep) != n {
		return false
	}
	for i, idx := range keep {
		if idx != i {
			return false
		}
	}
	return true
}

// applyOrderBy lowers an ORDER BY list to a single OrderBy operator.
// Mixed ASC/DESC directions within one ORDER BY are not representable by
// a single OrderMaker + Descending flag, so the terms' Desc values must
// all agree, or compile fails.
func applyOrderBy(op rowexec.RelOp, sch *schema.Schema, terms []ast.OrderTerm) (rowexec.RelOp, error) {
	if len(terms) == 0 {
		return op, nil
	}
	keep := make([]int, len(terms))
	desc := terms[0].Desc
	for i, t := range terms {
		if t.Desc != desc {
			return nil, ErrCompile.New("ORDER BY terms with mixed ASC/DESC are not supported")
		}
		idx := sch.IndexOf(t.Column)
		if idx < 0 {
			return nil, ErrCompile.New("unknown ORDER BY attribute: " + t.Column)
		}
		keep[i] = idx
	}
	orderer, err := predicate.NewProjectedOrderMaker(sch, keep)
	if err != nil {
		return nil, ErrCompile.New(err.Error())
	}
	return &rowexec.OrderBy{Ordering: orderer, Descending: desc, Child: op}, nil
}
