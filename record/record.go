// Package record implements the in-memory tuple that flows through the
// rowexec pipeline: a typed column vector backed by a shared string arena,
// plus the projection and merge primitives the physical operators need.
package record

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"

	"github.com/mitchellh/hashstructure"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/tinyrel/tinyrel/schema"
)

// ErrNameType is a programmer error: the Name placeholder type must never
// reach a materialized Record.
var ErrNameType = errors.NewKind("Name type cannot appear in a record")

// ErrIndexOutOfRange is returned by Project when an index is out of bounds.
var ErrIndexOutOfRange = errors.NewKind("record column index out of range: %d")

// cell holds one column's value. Only the field matching Kind is
// meaningful; the others are zero. Go has no untagged unions, so this is
// the "tagged variant per column" storage spec.md §9 allows in place of the
// original's unsafe union.
type cell struct {
	Kind   schema.Type
	Int    int64
	Float  float64
	StrOff int // offset into the owning Record's arena
}

// Record is an in-memory tuple. Columns are interpreted against a Schema
// supplied externally by the reader (Record itself carries no schema
// reference, matching spec.md §3).
type Record struct {
	cells []cell
	arena []byte
}

// New returns an empty record.
func New() *Record {
	return &Record{}
}

// Builder assembles a Record one column at a time, used to build literal
// constants records (see predicate.CNF's constants-record trick) and in
// tests. Columns must be appended in final order; there is no Project step.
type Builder struct {
	r Record
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// PushInt appends an Integer column.
func (b *Builder) PushInt(v int64) *Builder {
	b.r.cells = append(b.r.cells, cell{Kind: schema.Integer, Int: v})
	return b
}

// PushFloat appends a Float column.
func (b *Builder) PushFloat(v float64) *Builder {
	b.r.cells = append(b.r.cells, cell{Kind: schema.Float, Float: v})
	return b
}

// PushString appends a String column, copying v into the arena.
func (b *Builder) PushString(v string) *Builder {
	off := len(b.r.arena)
	b.r.arena = append(b.r.arena, v...)
	b.r.arena = append(b.r.arena, 0)
	b.r.cells = append(b.r.cells, cell{Kind: schema.String, StrOff: off})
	return b
}

// Build returns the assembled Record.
func (b *Builder) Build() *Record {
	return b.r.Clone()
}

// NumColumns returns the column count.
func (r *Record) NumColumns() int { return len(r.cells) }

// Column is a borrowed view of one column's value, safe to inspect but not
// to retain past the next mutation of the owning Record.
type Column struct {
	Kind schema.Type
	Int  int64
	Flt  float64
	Str  string
}

// Columns returns every column as a borrowed Column slice. Test code uses
// this to diff two records' full contents at once with go-cmp rather than
// column by column.
func (r *Record) Columns() ([]Column, error) {
	out := make([]Column, r.NumColumns())
	for i := range out {
		c, err := r.GetColumn(i)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// GetColumn returns a borrowed reference to the i-th value.
func (r *Record) GetColumn(i int) (Column, error) {
	if i < 0 || i >= len(r.cells) {
		return Column{}, ErrIndexOutOfRange.New(i)
	}
	c := r.cells[i]
	col := Column{Kind: c.Kind, Int: c.Int, Flt: c.Float}
	if c.Kind == schema.String {
		col.Str = r.stringAt(c.StrOff)
	}
	return col, nil
}

func (r *Record) stringAt(off int) string {
	end := bytes.IndexByte(r.arena[off:], 0)
	if end < 0 {
		end = len(r.arena) - off
	}
	return string(r.arena[off : off+end])
}

// ExtractNext consumes pipe-delimited fields from reader, one per schema
// attribute, then consumes through the next newline. It returns false (with
// a nil error) on clean end-of-input before any field was read, and an
// error if the stream ends mid-record or a numeric field fails to parse. A
// partial read never mutates the receiver.
func (r *Record) ExtractNext(sch *schema.Schema, reader *bufio.Reader) (bool, error) {
	atts := sch.Atts()
	cells := make([]cell, 0, len(atts))
	var arena []byte

	for i, att := range atts {
		if att.Type == schema.Name {
			return false, ErrNameType.New()
		}

		field, err := reader.ReadBytes('|')
		if err != nil {
			if i == 0 && len(field) == 0 {
				return false, nil
			}
			return false, fmt.Errorf("record: truncated read at field %d: %w", i, err)
		}
		field = bytes.TrimSuffix(field, []byte{'|'})

		switch att.Type {
		case schema.Integer:
			v, err := strconv.ParseInt(string(field), 10, 64)
			if err != nil {
				return false, fmt.Errorf("record: parse integer field %d (%s): %w", i, att.Name, err)
			}
			cells = append(cells, cell{Kind: schema.Integer, Int: v})
		case schema.Float:
			v, err := strconv.ParseFloat(string(field), 64)
			if err != nil {
				return false, fmt.Errorf("record: parse float field %d (%s): %w", i, att.Name, err)
			}
			cells = append(cells, cell{Kind: schema.Float, Float: v})
		case schema.String:
			off := len(arena)
			arena = append(arena, field...)
			arena = append(arena, 0)
			cells = append(cells, cell{Kind: schema.String, StrOff: off})
		}
	}

	// consume through the trailing newline; comments/extra bytes after the
	// last '|' are discarded, matching the Rust prototype's db_file reader.
	if _, err := reader.ReadBytes('\n'); err != nil {
		// EOF right after the last field's pipe is still a complete record.
	}

	r.cells = cells
	r.arena = arena
	return true, nil
}

// Project rewrites the record to contain only the columns at keepIndices,
// in that order. Fails atomically: on error the receiver is untouched.
func (r *Record) Project(keepIndices []int) error {
	newCells := make([]cell, len(keepIndices))
	for i, idx := range keepIndices {
		if idx < 0 || idx >= len(r.cells) {
			return ErrIndexOutOfRange.New(idx)
		}
		newCells[i] = r.cells[idx]
	}
	r.cells = newCells
	return nil
}

// MergeRight appends other's columns after self's, translating other's
// string offsets by self's current arena length and concatenating arenas.
func (r *Record) MergeRight(other *Record) {
	offset := len(r.arena)
	r.arena = append(r.arena, other.arena...)
	for _, c := range other.cells {
		if c.Kind == schema.String {
			c.StrOff += offset
		}
		r.cells = append(r.cells, c)
	}
}

// MergeLeft is the mirror of MergeRight: self becomes other with self's
// columns appended after it.
func (r *Record) MergeLeft(other *Record) {
	merged := other.Clone()
	merged.MergeRight(r)
	*r = *merged
}

// Clone returns a deep copy, safe to mutate independently of the original.
func (r *Record) Clone() *Record {
	return &Record{
		cells: append([]cell(nil), r.cells...),
		arena: append([]byte(nil), r.arena...),
	}
}

// ToBytes reproduces the pipe-delimited on-disk representation, terminated
// by "|\n", that ExtractNext consumes.
func (r *Record) ToBytes() []byte {
	var buf bytes.Buffer
	for _, c := range r.cells {
		switch c.Kind {
		case schema.Integer:
			buf.WriteString(strconv.FormatInt(c.Int, 10))
		case schema.Float:
			buf.WriteString(strconv.FormatFloat(c.Float, 'g', -1, 64))
		case schema.String:
			buf.WriteString(r.stringAt(c.StrOff))
		}
		buf.WriteByte('|')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Size is an approximate byte footprint, used only for page budgeting.
func (r *Record) Size() int {
	return len(r.cells)*24 + len(r.arena)
}

// hashable is the flattened, fully-resolved form of a Record (string
// offsets replaced by their actual string content) used as the key type for
// content-based hashing and equality, since two Records with identical
// values but different arena layouts must hash/compare equal.
type hashable struct {
	Kinds  []schema.Type
	Ints   []int64
	Floats []float64
	Strs   []string
}

func (r *Record) flatten() hashable {
	h := hashable{
		Kinds:  make([]schema.Type, len(r.cells)),
		Ints:   make([]int64, len(r.cells)),
		Floats: make([]float64, len(r.cells)),
		Strs:   make([]string, len(r.cells)),
	}
	for i, c := range r.cells {
		h.Kinds[i] = c.Kind
		switch c.Kind {
		case schema.Integer:
			h.Ints[i] = c.Int
		case schema.Float:
			h.Floats[i] = c.Float
		case schema.String:
			h.Strs[i] = r.stringAt(c.StrOff)
		}
	}
	return h
}

// ContentHash returns a hash over the full, arena-normalized content of the
// record, suitable as a map key for DupElim. Grounded on the teacher
// module's use of github.com/mitchellh/hashstructure for content hashing.
func (r *Record) ContentHash() (uint64, error) {
	return hashstructure.Hash(r.flatten(), nil)
}

// ContentEqual reports whether two records hold the same values in the same
// order, independent of arena layout.
func (r *Record) ContentEqual(other *Record) bool {
	a, b := r.flatten(), other.flatten()
	if len(a.Kinds) != len(b.Kinds) {
		return false
	}
	for i := range a.Kinds {
		if a.Kinds[i] != b.Kinds[i] {
			return false
		}
		switch a.Kinds[i] {
		case schema.Integer:
			if a.Ints[i] != b.Ints[i] {
				return false
			}
		case schema.Float:
			if a.Floats[i] != b.Floats[i] {
				return false
			}
		case schema.String:
			if a.Strs[i] != b.Strs[i] {
				return false
			}
		}
	}
	return true
}
