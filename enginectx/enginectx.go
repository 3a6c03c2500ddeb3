// Package enginectx provides the per-query execution context threaded
// through the catalog, planner and physical operators: a cancellable
// context.Context, a query id, and a logger scoped to that id. Grounded on
// the teacher module's sql.Context pattern (dolthub-go-mysql-server), which
// wraps the same three concerns for every query.
package enginectx

import (
	"context"

	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Context wraps a cancellable context.Context together with a per-query
// identity and logger. It does not implement context.Context itself
// (callers needing that interface use Context.Ctx directly) — this keeps
// the type an explicit carrier, matching the teacher's sql.Context rather
// than a confusing context.Context-that-isn't-quite-one.
type Context struct {
	Ctx    context.Context
	Cancel context.CancelFunc
	QueryID uuid.UUID
	Log    *logrus.Entry
}

// New returns a fresh Context with a new query id, deriving its
// cancellation from parent and tagging every log line with the id.
func New(parent context.Context, log *logrus.Logger) *Context {
	if parent == nil {
		parent = context.Background()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewV4()
	return &Context{
		Ctx:     ctx,
		Cancel:  cancel,
		QueryID: id,
		Log:     log.WithField("query_id", id.String()),
	}
}

// Done reports whether the query has been cancelled, used by Engine.Query
// as a check between the root operator's Next calls — not cooperative
// multitasking (nothing suspends mid-record), just an abort point for a
// runaway single-threaded query.
func (c *Context) Done() bool {
	select {
	case <-c.Ctx.Done():
		return true
	default:
		return false
	}
}

// Err returns the context's cancellation error, if any.
func (c *Context) Err() error {
	return c.Ctx.Err()
}
