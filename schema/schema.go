// Package schema describes the typed, ordered shape of a table or an
// intermediate result: an Attribute list plus the cardinality statistics the
// planner uses for cost estimation.
package schema

import (
	"fmt"
	"strings"

	"gopkg.in/src-d/go-errors.v1"
)

// Type is the closed set of column types the engine understands. Name is a
// bookkeeping value used only while parsing an unbound identifier; it must
// never appear on a materialized Record (see predicate.Comparison.Run).
type Type uint8

const (
	Integer Type = iota
	Float
	String
	Name
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case String:
		return "STRING"
	default:
		return "NAME"
	}
}

// Attribute is one typed column in a Schema.
type Attribute struct {
	Name string
	Type Type
	// DistinctCount is the estimated number of distinct values this column
	// holds; zero means unknown. The planner treats unknown as 1 when used
	// as a ratio denominator (see Schema.JoinRight).
	DistinctCount int64
}

// ErrDuplicateAttribute is raised by Append/New when two attributes in the
// resulting schema would share a name.
var ErrDuplicateAttribute = errors.NewKind("duplicate attribute name: %s")

// ErrAttributeNotFound is raised by operations that index by name.
var ErrAttributeNotFound = errors.NewKind("attribute not found: %s")

// ErrIndexOutOfRange is raised by Project when a requested index doesn't
// exist in the schema.
var ErrIndexOutOfRange = errors.NewKind("attribute index out of range: %d")

// Schema is an ordered, name-unique list of Attributes plus the two
// statistics a table (or an intermediate plan node's output) carries:
// TupleCount and DataPath.
type Schema struct {
	atts       []Attribute
	TupleCount int64
	DataPath   string
}

// New builds a Schema from an attribute list, failing if any name repeats.
func New(atts []Attribute) (*Schema, error) {
	s := &Schema{atts: append([]Attribute(nil), atts...)}
	seen := make(map[string]struct{}, len(atts))
	for _, a := range atts {
		if _, ok := seen[a.Name]; ok {
			return nil, ErrDuplicateAttribute.New(a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return s, nil
}

// NumAtts returns the number of columns.
func (s *Schema) NumAtts() int { return len(s.atts) }

// Atts returns the attribute list. Callers must not mutate the result.
func (s *Schema) Atts() []Attribute { return s.atts }

// IndexOf returns the position of an attribute by name, or -1 if absent.
func (s *Schema) IndexOf(name string) int {
	for i, a := range s.atts {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// FindType returns the type of a named attribute and whether it was found.
func (s *Schema) FindType(name string) (Type, bool) {
	i := s.IndexOf(name)
	if i < 0 {
		return Name, false
	}
	return s.atts[i].Type, true
}

// Project returns a new Schema containing only the attributes at
// keepIndices, in that order.
func (s *Schema) Project(keepIndices []int) (*Schema, error) {
	out := make([]Attribute, len(keepIndices))
	for i, idx := range keepIndices {
		if idx < 0 || idx >= len(s.atts) {
			return nil, ErrIndexOutOfRange.New(idx)
		}
		out[i] = s.atts[idx]
	}
	return &Schema{atts: out, TupleCount: s.TupleCount, DataPath: s.DataPath}, nil
}

// Append returns a new Schema with other's attributes placed after self's,
// failing if any name collides.
func (s *Schema) Append(other *Schema) (*Schema, error) {
	merged := make([]Attribute, 0, len(s.atts)+len(other.atts))
	merged = append(merged, s.atts...)
	seen := make(map[string]struct{}, len(merged))
	for _, a := range merged {
		seen[a.Name] = struct{}{}
	}
	for _, a := range other.atts {
		if _, ok := seen[a.Name]; ok {
			return nil, ErrDuplicateAttribute.New(a.Name)
		}
		merged = append(merged, a)
	}
	return &Schema{atts: merged, TupleCount: s.TupleCount, DataPath: s.DataPath}, nil
}

// JoinRight implements the equi-join cardinality heuristic of spec.md §4.A:
// shared attribute names become the join columns. The non-shared attributes
// of other are appended to self, and TupleCount is updated starting from
// self.TupleCount * other.TupleCount, dividing by max(dSelf, dOther) for
// every shared attribute whose max distinct count is nonzero.
func (s *Schema) JoinRight(other *Schema) *Schema {
	var nonShared []Attribute
	var shared []Attribute
	for _, a := range other.atts {
		if s.IndexOf(a.Name) < 0 {
			nonShared = append(nonShared, a)
		} else {
			shared = append(shared, a)
		}
	}

	merged := make([]Attribute, 0, len(s.atts)+len(nonShared))
	merged = append(merged, s.atts...)
	merged = append(merged, nonShared...)

	tupleCount := s.TupleCount * other.TupleCount
	for _, a := range shared {
		selfIdx := s.IndexOf(a.Name)
		otherIdx := other.IndexOf(a.Name)
		dSelf := s.atts[selfIdx].DistinctCount
		dOther := other.atts[otherIdx].DistinctCount
		max := dSelf
		if dOther > max {
			max = dOther
		}
		if max != 0 {
			tupleCount /= max
		}
	}

	return &Schema{atts: merged, TupleCount: tupleCount, DataPath: s.DataPath}
}

// Rename changes the name of an existing attribute in place, failing if the
// new name collides with an existing one.
func (s *Schema) Rename(oldName, newName string) error {
	if s.IndexOf(newName) >= 0 {
		return ErrDuplicateAttribute.New(newName)
	}
	i := s.IndexOf(oldName)
	if i < 0 {
		return ErrAttributeNotFound.New(oldName)
	}
	s.atts[i].Name = newName
	return nil
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	return &Schema{
		atts:       append([]Attribute(nil), s.atts...),
		TupleCount: s.TupleCount,
		DataPath:   s.DataPath,
	}
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, a := range s.atts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", a.Name, a.Type)
	}
	b.WriteByte(')')
	fmt.Fprintf(&b, "[%d][%s]", s.TupleCount, s.DataPath)
	return b.String()
}
