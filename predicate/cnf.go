package predicate

import (
	"sort"

	"github.com/tinyrel/tinyrel/record"
	"github.com/tinyrel/tinyrel/schema"
)

// CNF is a conjunction of Disjunction clauses. An empty, non-false CNF is
// the tautology true; IsFalse marks the unsatisfiable constant false
// (produced e.g. when Minimize finds two contradictory single-term clauses
// ANDed together — kept as an explicit flag rather than an
// empty-clause sentinel so True and False both have well-defined, distinct
// zero-like representations).
type CNF struct {
	Clauses []Disjunction
	IsFalse bool
}

// True returns the tautological CNF (no clauses to satisfy).
func True() CNF { return CNF{} }

// False returns the unsatisfiable CNF.
func False() CNF { return CNF{IsFalse: true} }

// FromComparison lifts a single comparison into a one-clause, one-term CNF.
func FromComparison(c Comparison) CNF {
	return cnfOfComparison(c)
}

// Run evaluates every clause against (left, right), short-circuiting to
// false on the first unsatisfied clause. Literal operands within any
// Comparison read from right, so callers filtering with a WHERE-derived CNF
// pass the per-query constants record as right.
func (c CNF) Run(left, right *record.Record) bool {
	if c.IsFalse {
		return false
	}
	for _, clause := range c.Clauses {
		if !clause.Run(left, right) {
			return false
		}
	}
	return true
}

// And returns the conjunction of a and b.
func And(a, b CNF) CNF {
	if a.IsFalse {
		return a
	}
	if b.IsFalse {
		return b
	}
	out := CNF{Clauses: append(append([]Disjunction(nil), a.Clauses...), b.Clauses...)}
	return out.Minimize()
}

// Or returns the disjunction of a and b, distributing clause-by-clause and
// dropping any pairing that comes out a tautology.
func Or(a, b CNF) CNF {
	if b.IsFalse {
		return a
	}
	if a.IsFalse {
		return b
	}
	var out []Disjunction
	for _, ca := range a.Clauses {
		for _, cb := range b.Clauses {
			combined, ok := OrDisjunction(ca, cb)
			if ok {
				out = append(out, combined)
			}
		}
	}
	return CNF{Clauses: out}.Minimize()
}

// Negate applies De Morgan's law across every clause: NOT(c1 AND c2 AND ...)
// == NOT(c1) OR NOT(c2) OR .... The fold starts from False (the OR
// identity), not the empty/true CNF the original Rust prototype's fold
// seed used (original_source/src/comparison.rs, Cnf::negation) — that seed
// made every multi-clause negation collapse to True, which contradicts the
// De Morgan testable property this engine is built to preserve. See
// DESIGN.md.
func (c CNF) Negate() CNF {
	if c.IsFalse {
		return True()
	}
	if len(c.Clauses) == 0 {
		return False()
	}
	acc := False()
	for _, clause := range c.Clauses {
		acc = Or(acc, clause.Negate())
	}
	return acc
}

// IncreaseConstantsOffset shifts every Literal operand's attribute index by
// delta, used when two constants records are concatenated (e.g. appending
// the right side's literals of an AND/OR after the left side's).
func (c CNF) IncreaseConstantsOffset(delta int) CNF {
	out := CNF{IsFalse: c.IsFalse}
	for _, clause := range c.Clauses {
		terms := make([]Comparison, len(clause.terms))
		for i, t := range clause.terms {
			if t.Operand1 == Literal {
				t.Attr1 += delta
			}
			if t.Operand2 == Literal {
				t.Attr2 += delta
			}
			terms[i] = t
		}
		out.Clauses = append(out.Clauses, Disjunction{terms: terms})
	}
	return out
}

// Minimize drops duplicate clauses and clauses subsumed by another (a
// clause whose term set is a subset of another clause's is strictly
// stronger, making the superset clause redundant in the conjunction).
// It returns False when two single-term clauses negate each other.
// This is not a full Quine-McCluskey minimizer, matching spec.md §9's
// "at least drop duplicates and subsumed clauses" guidance.
func (c CNF) Minimize() CNF {
	if c.IsFalse || len(c.Clauses) <= 1 {
		return c
	}

	kept := make([]Disjunction, 0, len(c.Clauses))
	seen := map[string]bool{}
	for _, clause := range c.Clauses {
		key := clause.termSetKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, clause)
	}

	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			if len(kept[i].terms) != 1 || len(kept[j].terms) != 1 {
				continue
			}
			a, b := kept[i].terms[0].Normalize(), kept[j].terms[0].Normalize()
			a.Op = negate(a.Op)
			if a == b {
				return False()
			}
		}
	}

	var result []Disjunction
	for i, ci := range kept {
		subsumed := false
		for j, cj := range kept {
			if i == j {
				continue
			}
			if cj.subsetOf(ci) && len(cj.terms) < len(ci.terms) {
				subsumed = true
				break
			}
			// equal-size mutual subset: keep the lexicographically first
			if cj.subsetOf(ci) && len(cj.terms) == len(ci.terms) && j < i {
				subsumed = true
				break
			}
		}
		if !subsumed {
			result = append(result, ci)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].termSetKey() < result[j].termSetKey()
	})

	return CNF{Clauses: result}
}

// ExtractEquijoin synthesizes a join predicate between left and right: for
// every attribute name occurring in both schemas, it emits the equality
// comparison (Left.i = Right.j) on the matching positions (spec.md §4.D),
// used to synthesize join predicates when the query offers none. Alongside
// the conjunction of those equalities it returns the matching left/right
// attribute index pairs, which HashJoin's bucket-key projections need.
func ExtractEquijoin(left, right *schema.Schema) (cnf CNF, leftProj, rightProj []int, found bool) {
	cnf = True()
	for _, a := range left.Atts() {
		ridx := right.IndexOf(a.Name)
		if ridx < 0 {
			continue
		}
		lidx := left.IndexOf(a.Name)
		leftProj = append(leftProj, lidx)
		rightProj = append(rightProj, ridx)
		comp := Comparison{
			Operand1: Left, Attr1: lidx,
			Operand2: Right, Attr2: ridx,
			Type: a.Type, Op: Eq,
		}
		cnf = And(cnf, FromComparison(comp))
		found = true
	}
	return
}

// Comparisons flattens every term across every clause, in clause order.
// Used by plan.applyWhere to count equality predicates for its cardinality
// estimate without caring about clause grouping.
func (c CNF) Comparisons() []Comparison {
	var out []Comparison
	for _, clause := range c.Clauses {
		out = append(out, clause.terms...)
	}
	return out
}
