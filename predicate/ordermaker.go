package predicate

import (
	"math"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// orderAtt is one key position: the attribute index within a record plus
// its type (needed to pick the right comparison routine).
type orderAtt struct {
	Index int
	Type  schema.Type
}

// OrderMaker is a multi-attribute sort key, used by OrderBy, GroupBy and
// MergeJoin to compare records without re-deriving attribute positions on
// every call.
type OrderMaker struct {
	atts []orderAtt
}

// NewOrderMaker builds a sort key over every attribute of sch, in schema
// order.
func NewOrderMaker(sch *schema.Schema) OrderMaker {
	atts := make([]orderAtt, sch.NumAtts())
	for i, a := range sch.Atts() {
		atts[i] = orderAtt{Index: i, Type: a.Type}
	}
	return OrderMaker{atts: atts}
}

// NewProjectedOrderMaker builds a sort key over a subset of sch's
// attributes, identified by index and compared in the given order — used
// when ORDER BY or GROUP BY names a specific attribute list.
func NewProjectedOrderMaker(sch *schema.Schema, keepIndices []int) (OrderMaker, error) {
	atts := make([]orderAtt, len(keepIndices))
	schAtts := sch.Atts()
	for i, idx := range keepIndices {
		if idx < 0 || idx >= len(schAtts) {
			return OrderMaker{}, schema.ErrIndexOutOfRange.New(idx)
		}
		atts[i] = orderAtt{Index: idx, Type: schAtts[idx].Type}
	}
	return OrderMaker{atts: atts}, nil
}

// NumAtts reports the number of attributes in the key.
func (o OrderMaker) NumAtts() int { return len(o.atts) }

// Run compares a and b under this key, both assumed to share the same
// schema this key was built from. Returns -1, 0 or 1.
func (o OrderMaker) Run(a, b *record.Record) int {
	return o.RunWithOther(a, o)(b)
}

// RunWithOther returns a comparator closure comparing a (under this key)
// against records under other's key — used by MergeJoin, where the left
// and right relations carry different schemas but equal-length join keys.
func (o OrderMaker) RunWithOther(a *record.Record, other OrderMaker) func(b *record.Record) int {
	return func(b *record.Record) int {
		n := len(o.atts)
		if len(other.atts) < n {
			n = len(other.atts)
		}
		for i := 0; i < n; i++ {
			left := o.atts[i]
			right := other.atts[i]
			ca, err := a.GetColumn(left.Index)
			if err != nil {
				panic(err)
			}
			cb, err := b.GetColumn(right.Index)
			if err != nil {
				panic(err)
			}
			if c := compareColumns(ca, cb, left.Type); c != 0 {
				return c
			}
		}
		return 0
	}
}

func compareColumns(a, b record.Column, t schema.Type) int {
	switch t {
	case schema.Integer:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case schema.Float:
		return compareFloatOrdered(a.Flt, b.Flt)
	case schema.String, schema.Name:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// compareFloatOrdered implements a total order over floats for sorting
// purposes: NaN collapses to "equal" as a tie-breaker only here, never in
// Comparison.Run's "=" semantics, where Go's native NaN != NaN already
// yields the correct (always-false) answer.
func compareFloatOrdered(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
