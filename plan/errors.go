package plan

import (
	"gopkg.in/src-d/go-errors.v1"
)

// ErrCompile covers every way a query fails to lower to a plan tree: an
// unknown table or column, a type mismatch in a WHERE condition, a missing
// data file, or an unsupported AST shape. Compile returns this instead of a
// plan tree, before any record is read or any output is written (spec.md
// §7); scans already opened for the tables named before the failure are
// not closed.
var ErrCompile = errors.NewKind("plan: compile error: %s")

// ErrUnsupportedJoinKind is returned for any JoinClause.Kind other than
// ast.InnerJoin. Outer joins are an explicit Non-goal (spec.md §4.G point 5).
var ErrUnsupportedJoinKind = errors.NewKind("plan: unsupported join kind: %s")
