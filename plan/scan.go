package plan

import (
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/predicate"
	"github.com/tinyrel/tinyrel/rowexec"
	"github.com/tinyrel/tinyrel/schema"
	"github.com/tinyrel/tinyrel/storage"
)

// relation is one opened scan-list entry, carrying both its operator and
// the schema that describes its output shape and cardinality.
type relation struct {
	name   string
	schema *schema.Schema
	op     rowexec.RelOp
}

// openTables looks up every named table in cat and opens its scan, per
// spec.md §4.G point 1 ("optimal_scan_relop"). A table whose catalog entry
// carries no data path substitutes an EmptyTableScan (spec.md §4.F); a
// table whose data path is set but fails to open fails compile instead of
// the original's log-and-continue (the REDESIGN fix spec.md §7 and
// SPEC_FULL §7 call for).
func openTables(ctx *enginectx.Context, cat catalog.Catalog, cfg *config.Config, tables []string) ([]relation, error) {
	rels := make([]relation, 0, len(tables))
	for _, name := range tables {
		sch, err := cat.Schema(ctx, name)
		if err != nil {
			return nil, ErrCompile.New("table " + name + ": " + err.Error())
		}

		var op rowexec.RelOp
		if sch.DataPath == "" {
			op = rowexec.EmptyTableScan{}
		} else {
			pf := storage.New(ctx.Log, cfg.Storage.PageSize)
			if err := pf.Open(sch.DataPath); err != nil {
				return nil, ErrCompile.New("table " + name + ": " + err.Error())
			}
			pf.SetSchema(sch)
			op = rowexec.NewScan(pf)
		}

		rels = append(rels, relation{name: name, schema: sch, op: op})
	}
	return rels, nil
}

// chooseJoinOrder picks a left-deep join order for rels. For relation
// counts at or below exhaustiveLimit every permutation is costed and the
// cheapest is kept (spec.md §4.G point 1; FIXED to minimum cost per §9
// point 1 — the original prototype picked the maximum). Above the limit a
// greedy nearest-neighbor heuristic is used instead.
func chooseJoinOrder(rels []relation, exhaustiveLimit int) []relation {
	if len(rels) <= 1 {
		return rels
	}
	if len(rels) <= exhaustiveLimit {
		return exhaustiveJoinOrder(rels)
	}
	return greedyJoinOrder(rels)
}

func exhaustiveJoinOrder(rels []relation) []relation {
	best := append([]relation(nil), rels...)
	bestCost := planCost(best)
	permuteRelations(rels, func(order []relation) {
		cost := planCost(order)
		if cost < bestCost {
			bestCost = cost
			best = append([]relation(nil), order...)
		}
	})
	return best
}

func permuteRelations(rels []relation, visit func([]relation)) {
	buf := append([]relation(nil), rels...)
	var helper func(k int)
	helper = func(k int) {
		if k == len(buf) {
			visit(buf)
			return
		}
		for i := k; i < len(buf); i++ {
			buf[k], buf[i] = buf[i], buf[k]
			helper(k + 1)
			buf[k], buf[i] = buf[i], buf[k]
		}
	}
	helper(0)
}

func greedyJoinOrder(rels []relation) []relation {
	remaining := append([]relation(nil), rels...)
	order := []relation{remaining[0]}
	remaining = remaining[1:]
	acc := order[0].schema

	for len(remaining) > 0 {
		bestIdx := 0
		bestCost := acc.JoinRight(remaining[0].schema).TupleCount
		for i := 1; i < len(remaining); i++ {
			cost := acc.JoinRight(remaining[i].schema).TupleCount
			if cost < bestCost {
				bestCost = cost
				bestIdx = i
			}
		}
		order = append(order, remaining[bestIdx])
		acc = acc.JoinRight(remaining[bestIdx].schema)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return order
}

// planCost sums, over every adjacent pair in a left-deep prefix, the
// resulting join's estimated tuple count (schema.JoinRight already folds in
// the shared-attribute distinct-count division spec.md §4.G point 1
// describes).
func planCost(order []relation) int64 {
	if len(order) == 0 {
		return 0
	}
	acc := order[0].schema
	var total int64
	for i := 1; i < len(order); i++ {
		joined := acc.JoinRight(order[i].schema)
		total += joined.TupleCount
		acc = joined
	}
	return total
}

// buildJoinTree folds a chosen left-deep order into a tree of join
// operators, choosing HashJoin whenever two adjacent relations share an
// attribute name (equi-join inference) and NestedLoopJoin otherwise.
// MergeJoin is not selected by the planner — it is left as a directly
// usable, independently tested operator for callers that already know
// both sides are sorted (see DESIGN.md).
func buildJoinTree(rels []relation) (rowexec.RelOp, *schema.Schema) {
	op := rels[0].op
	sch := rels[0].schema
	for i := 1; i < len(rels); i++ {
		op, sch = joinStep(op, sch, rels[i].op, rels[i].schema)
	}
	return op, sch
}

func joinStep(leftOp rowexec.RelOp, leftSchema *schema.Schema, rightOp rowexec.RelOp, rightSchema *schema.Schema) (rowexec.RelOp, *schema.Schema) {
	eqCNF, leftProj, rightProj, found := predicate.ExtractEquijoin(leftSchema, rightSchema)
	joined := leftSchema.JoinRight(rightSchema)

	if !found {
		return &rowexec.NestedLoopJoin{Predicate: predicate.True(), Left: leftOp, Right: rightOp}, joined
	}

	buildLeft := leftSchema.TupleCount <= rightSchema.TupleCount
	var joinOp rowexec.RelOp = &rowexec.HashJoin{
		Predicate:       eqCNF,
		BuildLeft:       buildLeft,
		LeftProjection:  leftProj,
		RightProjection: rightProj,
		Left:            leftOp,
		Right:           rightOp,
	}

	// The join operator concatenates ALL of left's columns with ALL of
	// right's (record.Record carries no attribute names, so it cannot drop
	// the right side's copy of the shared join key itself). schema.JoinRight
	// models the join key as a single deduped column, so a Project here
	// restores that logical shape on the physical record before any later
	// stage resolves a column by name against `joined`.
	keep := dedupJoinProjection(leftSchema.NumAtts(), rightSchema, rightProj)
	return &rowexec.Project{KeepIndices: keep, Child: joinOp}, joined
}

// dedupJoinProjection builds the KeepIndices that turn a physical
// left-columns-then-right-columns merge into the schema.JoinRight shape:
// every left column, then every right column whose index is not one of
// rightSharedIdx.
func dedupJoinProjection(leftN int, rightSchema *schema.Schema, rightSharedIdx []int) []int {
	shared := make(map[int]bool, len(rightSharedIdx))
	for _, i := range rightSharedIdx {
		shared[i] = true
	}
	keep := make([]int, 0, leftN+rightSchema.NumAtts())
	for i := 0; i < leftN; i++ {
		keep = append(keep, i)
	}
	for i := 0; i < rightSchema.NumAtts(); i++ {
		if !shared[i] {
			keep = append(keep, leftN+i)
		}
	}
	return keep
}
