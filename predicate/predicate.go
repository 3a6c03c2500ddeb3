// Package predicate implements the canonical conjunctive-normal-form (CNF)
// predicate algebra: Comparison, Disjunction, CNF and OrderMaker, as
// described in spec.md §4.D. This is the crux of the engine's predicate
// handling — normalization, negation, tautology absorption, and constant
// folding via the constants-record trick.
package predicate

import (
	"sort"
	"strconv"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// Target names which record a comparison operand is read from. Literal
// reads from the constants record the caller supplies as Run's right
// argument — see CNF.Run.
type Target uint8

const (
	Left Target = iota
	Right
	Literal
)

// Op is the closed set of comparison operators.
type Op uint8

const (
	Lt Op = iota
	Le
	Gt
	Ge
	Eq
	Ne
)

func (o Op) String() string {
	switch o {
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Eq:
		return "="
	case Ne:
		return "!="
	default:
		return "?"
	}
}

// negate returns the logical complement of op: the operator whose truth
// value is always the opposite of op's, for every pair of operands.
func negate(o Op) Op {
	switch o {
	case Lt:
		return Ge
	case Ge:
		return Lt
	case Le:
		return Gt
	case Gt:
		return Le
	case Eq:
		return Ne
	case Ne:
		return Eq
	}
	return o
}

// mirror returns the operator that preserves truth when the two operands of
// a comparison are swapped: "X < Y" mirrored is the operator for "Y ? X"
// that means the same thing, i.e. "Y > X".
func mirror(o Op) Op {
	switch o {
	case Lt:
		return Gt
	case Gt:
		return Lt
	case Le:
		return Ge
	case Ge:
		return Le
	default: // Eq, Ne are symmetric under operand swap
		return o
	}
}

// Comparison is one predicate literal: operand1 `op` operand2, where each
// operand is read from the Left record, the Right record, or (for Literal)
// the constants record passed alongside Right.
type Comparison struct {
	Operand1 Target
	Attr1    int
	Operand2 Target
	Attr2    int
	Type     schema.Type
	Op       Op
}

// Normalize produces a canonical ordering of the two operands: if Attr1 >
// Attr2 (or they're equal and Operand1 > Operand2), the operands are
// swapped and Op is mirrored so the truth value is unchanged. Used to give
// CNF minimization and clause deduplication a stable key.
func (c Comparison) Normalize() Comparison {
	swap := c.Attr1 != c.Attr2 && c.Attr1 > c.Attr2
	if c.Attr1 == c.Attr2 {
		swap = c.Operand1 > c.Operand2
	}
	if !swap {
		return c
	}
	return Comparison{
		Operand1: c.Operand2,
		Attr1:    c.Attr2,
		Operand2: c.Operand1,
		Attr2:    c.Attr1,
		Type:     c.Type,
		Op:       mirror(c.Op),
	}
}

// Negate returns the comparison with Op replaced by its logical negation;
// the operand triples are untouched.
func (c Comparison) Negate() Comparison {
	c.Op = negate(c.Op)
	return c
}

// handlesSameTerm reports whether self and other compare the same pair of
// operands (in either order), ignoring which operator each uses, subject to
// both operators belonging to the same op/negated-op family.
func (c Comparison) handlesSameTerm(other Comparison) bool {
	sameOpFamily := c.Op == other.Op || negate(c.Op) == other.Op
	sameType := c.Type == other.Type
	firstMatches := (c.Operand1 == other.Operand1 && c.Attr1 == other.Attr1) ||
		(c.Operand1 == other.Operand2 && c.Attr1 == other.Attr2)
	secondMatches := (c.Operand2 == other.Operand1 && c.Attr2 == other.Attr1) ||
		(c.Operand2 == other.Operand2 && c.Attr2 == other.Attr2)
	return sameOpFamily && sameType && firstMatches && secondMatches
}

// IsNegationOf reports whether other is the logical negation of c. Ported
// directly from the comparison-ordering algebra of the original prototype
// (original_source/src/comparison.rs, Comparison::is_negation): for the
// inequality family (<,<=,>,>=) two forms count as negation — same operator
// with operands swapped between the two comparisons, or complementary
// operators with operands aligned. For =/!= it reduces to same-term,
// opposite operator.
func (c Comparison) IsNegationOf(other Comparison) bool {
	switch c.Op {
	case Lt, Le, Gt, Ge:
		swappedSameOp := c.Op == other.Op &&
			c.Operand1 == other.Operand2 && c.Attr1 == other.Attr2 &&
			c.Operand2 == other.Operand1 && c.Attr2 == other.Attr1 &&
			c.Type == other.Type
		alignedComplement := c.Op == negate(other.Op) &&
			c.Operand1 == other.Operand1 && c.Attr1 == other.Attr1 &&
			c.Operand2 == other.Operand2 && c.Attr2 == other.Attr2 &&
			c.Type == other.Type
		return swappedSameOp || alignedComplement
	default: // Eq, Ne
		return (c.Op == Eq && other.Op == Ne && c.handlesSameTerm(other)) ||
			(c.Op == Ne && other.Op == Eq && c.handlesSameTerm(other))
	}
}

// IsEquivalentTo reports whether c and other are the same comparison (same
// term, same operator after accounting for operand order) and not a
// negation of each other.
func (c Comparison) IsEquivalentTo(other Comparison) bool {
	return c.Normalize() == other.Normalize() && !c.IsNegationOf(other)
}

// Run evaluates the comparison against left and right. Literal operands
// read from right, exactly like Right operands: the planner always passes
// the constants record as the right argument when the predicate originated
// from a WHERE clause (see CNF.Run).
func (c Comparison) Run(left, right *record.Record) bool {
	v1 := readOperand(c.Operand1, c.Attr1, left, right)
	v2 := readOperand(c.Operand2, c.Attr2, left, right)

	switch c.Type {
	case schema.Integer:
		return compareInt(v1.Int, v2.Int, c.Op)
	case schema.Float:
		return compareFloat(v1.Flt, v2.Flt, c.Op)
	case schema.String:
		return compareString(v1.Str, v2.Str, c.Op)
	default:
		panic("predicate: Name type cannot be compared")
	}
}

func readOperand(t Target, attr int, left, right *record.Record) record.Column {
	var rec *record.Record
	switch t {
	case Left:
		rec = left
	case Right, Literal:
		rec = right
	}
	col, err := rec.GetColumn(attr)
	if err != nil {
		panic(err)
	}
	return col
}

func compareInt(a, b int64, op Op) bool {
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	case Eq:
		return a == b
	case Ne:
		return a != b
	}
	return false
}

func compareFloat(a, b float64, op Op) bool {
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	case Eq:
		return a == b
	case Ne:
		return a != b
	}
	return false
}

func compareString(a, b string, op Op) bool {
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	case Eq:
		return a == b
	case Ne:
		return a != b
	}
	return false
}

// Disjunction is an unordered set of Comparisons joined by OR.
type Disjunction struct {
	terms []Comparison
}

// NewDisjunction returns a single-term disjunction.
func NewDisjunction(c Comparison) Disjunction {
	return Disjunction{terms: []Comparison{c}}
}

// Terms returns the disjunction's comparisons. Callers must not mutate it.
func (d Disjunction) Terms() []Comparison { return d.terms }

// Run reports whether any term is true for (left, right).
func (d Disjunction) Run(left, right *record.Record) bool {
	for _, t := range d.terms {
		if t.Run(left, right) {
			return true
		}
	}
	return false
}

// OrDisjunction combines two disjunctions. If any term of one is the negation of a
// term of the other, the combined clause is a tautology and the caller
// should drop it from the CNF (ok=false). Otherwise the term sets are
// merged, suppressing terms of b that are equivalent to one already in a.
func OrDisjunction(a, b Disjunction) (Disjunction, bool) {
	for _, bt := range b.terms {
		for _, at := range a.terms {
			if at.IsNegationOf(bt) {
				return Disjunction{}, false
			}
		}
	}

	merged := append([]Comparison(nil), a.terms...)
	for _, bt := range b.terms {
		dup := false
		for _, at := range a.terms {
			if at.IsEquivalentTo(bt) {
				dup = true
				break
			}
		}
		if !dup {
			merged = append(merged, bt)
		}
	}
	return Disjunction{terms: merged}, true
}

// Negate applies De Morgan's law: NOT(a OR b OR ...) == NOT(a) AND NOT(b)
// AND ..., returned as a CNF.
func (d Disjunction) Negate() CNF {
	acc := True()
	for _, t := range d.terms {
		acc = And(acc, cnfOfComparison(t.Negate()))
	}
	return acc
}

func cnfOfComparison(c Comparison) CNF {
	return CNF{Clauses: []Disjunction{NewDisjunction(c)}}
}

// termSetKey returns a canonical, order-independent key for a disjunction's
// term set, used by CNF minimization to detect duplicate or subsumed
// clauses.
func (d Disjunction) termSetKey() string {
	keys := make([]string, len(d.terms))
	for i, t := range d.terms {
		n := t.Normalize()
		keys[i] = keyOf(n)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += k + ";"
	}
	return out
}

func keyOf(c Comparison) string {
	return string(rune('a'+c.Operand1)) + "-" + strconv.Itoa(c.Attr1) + string(rune('a'+c.Operand2)) + "-" + strconv.Itoa(c.Attr2) + "-" + strconv.Itoa(int(c.Op)) + "-" + strconv.Itoa(int(c.Type))
}

// subsetOf reports whether every term of d is equivalent to some term of
// other (used for clause subsumption during minimization).
func (d Disjunction) subsetOf(other Disjunction) bool {
	for _, t := range d.terms {
		found := false
		for _, o := range other.terms {
			if t.IsEquivalentTo(o) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
