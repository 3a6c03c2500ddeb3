// Package driver exposes tinyrel through the standard database/sql
// interfaces (SPEC_FULL §4.M), ported from the teacher module's driver
// package (dolthub-go-mysql-server/driver): a Driver/Conn/Stmt/Rows quartet
// wrapping the engine's own Query path instead of sql.Engine's.
package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"

	"github.com/tinyrel/tinyrel/access"
	"github.com/tinyrel/tinyrel/catalog"
	"github.com/tinyrel/tinyrel/config"
	"github.com/tinyrel/tinyrel/enginectx"
	"github.com/tinyrel/tinyrel/plan"
	"github.com/tinyrel/tinyrel/sqlparse"
)

func init() {
	sql.Register("tinyrel", &Driver{})
}

// Driver opens a catalog.Bolt at the DSN path, the way sql.Open("tinyrel",
// "/var/tinyrel/catalog.db") expects (SPEC_FULL §4.M). One Driver instance
// may back several Conns against the same catalog file.
type Driver struct {
	mu    sync.Mutex
	bolts map[string]*catalog.Bolt
}

// Open returns a new Conn against the catalog at dsn, opening it if this is
// the first Conn for that path.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bolts == nil {
		d.bolts = make(map[string]*catalog.Bolt)
	}
	b, ok := d.bolts[dsn]
	if !ok {
		var err error
		b, err = catalog.OpenBolt(dsn)
		if err != nil {
			return nil, err
		}
		d.bolts[dsn] = b
	}
	return &Conn{cat: b, cfg: config.Default()}, nil
}

// Conn is a connection to one tinyrel catalog. All capability this engine
// has is read-only query execution: Exec always fails since
// updates/deletes are an explicit Non-goal of the query language itself.
type Conn struct {
	cat catalog.Catalog
	cfg *config.Config
}

// Prepare validates query by parsing it; the parsed statement is re-parsed
// on every Query call rather than cached, since plan.CompileToRows needs a fresh
// enginectx.Context per execution anyway and re-parsing a short SELECT is
// not worth a cache.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	if _, err := sqlparse.Parse(query); err != nil {
		return nil, err
	}
	return &Stmt{conn: c, query: query}, nil
}

// Close does nothing; the underlying catalog.Bolt is owned by the Driver,
// not the Conn, and outlives any single connection.
func (c *Conn) Close() error { return nil }

// Begin returns a no-op transaction: this engine has no write path for a
// transaction to wrap.
func (c *Conn) Begin() (driver.Tx, error) { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

// Stmt is a parsed (but not cached) query string.
type Stmt struct {
	conn  *Conn
	query string
}

func (s *Stmt) Close() error  { return nil }
func (s *Stmt) NumInput() int { return -1 }

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, ErrNoWritePath.New()
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.query(context.Background())
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.query(ctx)
}

func (s *Stmt) query(ctx context.Context) (driver.Rows, error) {
	stmt, err := sqlparse.Parse(s.query)
	if err != nil {
		return nil, err
	}

	ectx := enginectx.New(ctx, nil)
	sink, sch, err := plan.CompileToRows(ectx, s.conn.cat, s.conn.cfg, access.ReadPerm, stmt)
	if err != nil {
		return nil, err
	}
	if _, _, err := sink.Next(); err != nil {
		return nil, err
	}

	return newRows(sch, sink.Rows), nil
}
