// Package rowexec implements the demand-driven physical operator pipeline:
// Scan, EmptyTableScan, Select, Project, the three join strategies,
// DupElim, ApplyFunction, GroupBy, OrderBy and WriteOut. Grounded on the
// original prototype's RelOp enum (original_source/src/relop.rs), ported
// from its recursive "next() -> Option<Record>" Iterator protocol to Go's
// idiomatic "Next() (*record.Record, bool, error)" pull protocol: ok=false
// signals exhaustion, err signals an I/O or evaluation fault.
package rowexec

import (
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/tinyrel/tinyrel/arithmetic"
	"github.com/tinyrel/tinyrel/predicate"
	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/storage"
)

// RelOp is the shared contract every physical operator implements: pull one
// record at a time from its children, or report exhaustion.
type RelOp interface {
	Next() (*record.Record, bool, error)
}

// Scan wraps a paged file opened for read. Stateless beyond the file
// cursor.
type Scan struct {
	file *storage.PagedFile
}

// NewScan returns a Scan reading sequentially from file, which must already
// be open with its schema set.
func NewScan(file *storage.PagedFile) *Scan {
	return &Scan{file: file}
}

func (s *Scan) Next() (*record.Record, bool, error) {
	return s.file.GetNext()
}

// EmptyTableScan is always exhausted; used when the catalog supplies an
// empty data path for a table.
type EmptyTableScan struct{}

func (EmptyTableScan) Next() (*record.Record, bool, error) { return nil, false, nil }

// Select pulls from child and returns the first record R for which
// predicate.Run(R, constants) holds. constants is always the right-hand
// argument so Literal operands resolve against it; the planner normalizes
// every compiled condition to this convention.
type Select struct {
	Predicate predicate.CNF
	Constants *record.Record
	Child     RelOp
}

func (s *Select) Next() (*record.Record, bool, error) {
	for {
		rec, ok, err := s.Child.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		if s.Predicate.Run(rec, s.Constants) {
			return rec, true, nil
		}
	}
}

// Project pulls one record, projects it to KeepIndices, and returns it. The
// planner elides this operator entirely when the projection is the
// identity on the child schema.
type Project struct {
	KeepIndices []int
	Child       RelOp
}

func (p *Project) Next() (*record.Record, bool, error) {
	rec, ok, err := p.Child.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := rec.Project(p.KeepIndices); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// DupElim streams its child, suppressing records whose full content was
// already seen. Records are grouped by ContentHash to bound the
// equality-check cost, then compared with ContentEqual to resolve
// collisions.
type DupElim struct {
	Child RelOp
	seen  map[uint64][]*record.Record
}

func (d *DupElim) Next() (*record.Record, bool, error) {
	if d.seen == nil {
		d.seen = make(map[uint64][]*record.Record)
	}
	for {
		rec, ok, err := d.Child.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		h, err := rec.ContentHash()
		if err != nil {
			return nil, false, err
		}
		dup := false
		for _, prev := range d.seen[h] {
			if prev.ContentEqual(rec) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		d.seen[h] = append(d.seen[h], rec)
		return rec, true, nil
	}
}

// ApplyFunction applies a compiled arithmetic.Function to each child
// record, emitting a one-column record holding the result.
type ApplyFunction struct {
	Function *arithmetic.Function
	Child    RelOp
}

func (a *ApplyFunction) Next() (*record.Record, bool, error) {
	rec, ok, err := a.Child.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := a.Function.Run(rec)
	if err != nil {
		return nil, false, err
	}
	b := record.NewBuilder()
	if v.IsFloat {
		b.PushFloat(v.Flt)
	} else {
		b.PushInt(v.Int)
	}
	return b.Build(), true, nil
}

// GroupBy assumes its child is already sorted by Grouping and emits one
// representative record per run of equal keys. It does not aggregate;
// per-group aggregation is composed by layering ApplyFunction over its
// output in the planner.
type GroupBy struct {
	Grouping predicate.OrderMaker
	Child    RelOp

	started bool
	last    *record.Record
}

func (g *GroupBy) Next() (*record.Record, bool, error) {
	for {
		rec, ok, err := g.Child.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		if !g.started || g.Grouping.Run(g.last, rec) != 0 {
			g.started = true
			g.last = rec
			return rec, true, nil
		}
		g.last = rec
	}
}

// OrderBy materializes its entire child, sorts by Ordering, and emits
// records in order. Descending reverses the comparison.
type OrderBy struct {
	Ordering   predicate.OrderMaker
	Descending bool
	Child      RelOp

	buf     []*record.Record
	sorted  bool
}

func (o *OrderBy) Next() (*record.Record, bool, error) {
	if !o.sorted {
		for {
			rec, ok, err := o.Child.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				break
			}
			o.buf = append(o.buf, rec)
		}
		sortRecords(o.buf, o.Ordering, o.Descending)
		o.sorted = true
	}
	if len(o.buf) == 0 {
		return nil, false, nil
	}
	rec := o.buf[0]
	o.buf = o.buf[1:]
	return rec, true, nil
}

func sortRecords(recs []*record.Record, order predicate.OrderMaker, descending bool) {
	sort.Slice(recs, func(i, j int) bool {
		c := order.Run(recs[i], recs[j])
		if descending {
			c = -c
		}
		return c < 0
	})
}

// Sink marks a RelOp that drains its child to completion on the first Next
// call and always reports exhaustion afterward, rather than yielding one
// record per Next call like every other operator in this package. WriteOut
// is the file-backed sink the planner always roots a plan in; MemorySink is
// the database/sql driver's in-process substitute for it.
type Sink interface {
	RelOp
}

// WriteOut drains its child completely, writing each record's ToBytes to
// path. It emits nothing to its caller; the first Next call performs all
// the work and always reports exhaustion.
type WriteOut struct {
	Path  string
	Child RelOp
}

func (w *WriteOut) Next() (*record.Record, bool, error) {
	f, err := os.Create(w.Path)
	if err != nil {
		return nil, false, errors.Wrapf(err, "rowexec: create output %s", w.Path)
	}
	defer f.Close()

	for {
		rec, ok, err := w.Child.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		if _, err := f.Write(rec.ToBytes()); err != nil {
			return nil, false, errors.Wrap(err, "rowexec: write output")
		}
	}
	return nil, false, nil
}

// MemorySink drains its child completely into Rows, the database/sql
// driver's substitute for WriteOut when a caller wants rows back instead of
// a file (SPEC_FULL §4.M): a driver.Stmt.Query result has no output path to
// write to.
type MemorySink struct {
	Child RelOp
	Rows  []*record.Record
}

func (m *MemorySink) Next() (*record.Record, bool, error) {
	for {
		rec, ok, err := m.Child.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		m.Rows = append(m.Rows, rec)
	}
}
