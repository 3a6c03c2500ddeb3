package driver

import (
	"database/sql/driver"
	"io"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// Rows adapts a drained rowexec.MemorySink's buffered records to
// database/sql/driver.Rows, the way the teacher driver's Rows adapts an
// sql.RowIter.
type Rows struct {
	names []string
	rows  []*record.Record
	pos   int
}

func newRows(sch *schema.Schema, rows []*record.Record) *Rows {
	names := make([]string, sch.NumAtts())
	for i, a := range sch.Atts() {
		names[i] = a.Name
	}
	return &Rows{names: names, rows: rows}
}

// Columns returns the result schema's attribute names in order.
func (r *Rows) Columns() []string { return r.names }

// Close is a no-op: the backing records are already fully materialized in
// memory, there is nothing left open to release.
func (r *Rows) Close() error { return nil }

// Next fills dest with the next buffered record's columns, or returns
// io.EOF once exhausted.
func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	rec := r.rows[r.pos]
	r.pos++

	for i := range dest {
		col, err := rec.GetColumn(i)
		if err != nil {
			return err
		}
		switch col.Kind {
		case schema.Integer:
			dest[i] = col.Int
		case schema.Float:
			dest[i] = col.Flt
		case schema.String:
			dest[i] = col.Str
		}
	}
	return nil
}
