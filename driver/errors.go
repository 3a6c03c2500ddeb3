package driver

import "gopkg.in/src-d/go-errors.v1"

// ErrNoWritePath is returned by Stmt.Exec: this engine's SQL subset has no
// INSERT/UPDATE/DELETE (spec.md's Non-goals list "updates/deletes"
// explicitly), so there is nothing for Exec to run.
var ErrNoWritePath = errors.NewKind("driver: tinyrel has no write path; use Query")
