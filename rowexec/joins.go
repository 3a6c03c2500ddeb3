package rowexec

import (
	"github.com/tinyrel/tinyrel/predicate"
	"github.com/tinyrel/tinyrel/record"
)

// NestedLoopJoin materializes the entire right side on its first call, then
// iterates the left x right cross product, buffering matches and draining
// the buffer on subsequent calls.
type NestedLoopJoin struct {
	Predicate predicate.CNF
	Left      RelOp
	Right     RelOp

	filled bool
	buf    []*record.Record
}

func (j *NestedLoopJoin) Next() (*record.Record, bool, error) {
	if !j.filled {
		if err := j.fill(); err != nil {
			return nil, false, err
		}
		j.filled = true
	}
	if len(j.buf) == 0 {
		return nil, false, nil
	}
	rec := j.buf[0]
	j.buf = j.buf[1:]
	return rec, true, nil
}

func (j *NestedLoopJoin) fill() error {
	var rightRecords []*record.Record
	for {
		rec, ok, err := j.Right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rightRecords = append(rightRecords, rec)
	}

	for {
		left, ok, err := j.Left.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		for _, right := range rightRecords {
			if j.Predicate.Run(left, right) {
				joined := left.Clone()
				joined.MergeRight(right)
				j.buf = append(j.buf, joined)
			}
		}
	}
	return nil
}

// MergeJoin assumes Left and Right are already sorted by LeftOrdering and
// RightOrdering respectively; it does not sort them, and the planner never
// builds a MergeJoin. It advances the side with the lesser current
// key; on a key match it gathers both equal-key runs against a held copy
// of the boundary key (keyRecord below) before comparing any further
// records, then emits their predicate-filtered cross product. This fixes
// the original prototype's gathering loop (original_source/src/relop.rs,
// MergeJoin::next), which compared against self.left_record/right_record
// while those fields were simultaneously being overwritten mid-loop — see
// DESIGN.md and spec.md §9.2.
type MergeJoin struct {
	Predicate     predicate.CNF
	LeftOrdering  predicate.OrderMaker
	RightOrdering predicate.OrderMaker
	Left          RelOp
	Right         RelOp

	buf         []*record.Record
	leftRecord  *record.Record
	leftOK      bool
	rightRecord *record.Record
	rightOK     bool
	started     bool
}

func (j *MergeJoin) Next() (*record.Record, bool, error) {
	for {
		if len(j.buf) > 0 {
			rec := j.buf[0]
			j.buf = j.buf[1:]
			return rec, true, nil
		}

		if !j.started {
			j.started = true
			var err error
			j.leftRecord, j.leftOK, err = j.Left.Next()
			if err != nil {
				return nil, false, err
			}
			j.rightRecord, j.rightOK, err = j.Right.Next()
			if err != nil {
				return nil, false, err
			}
		}

		if !j.leftOK || !j.rightOK {
			return nil, false, nil
		}

		cmp := j.LeftOrdering.RunWithOther(j.leftRecord, j.RightOrdering)(j.rightRecord)
		if cmp < 0 {
			var err error
			j.leftRecord, j.leftOK, err = j.Left.Next()
			if err != nil {
				return nil, false, err
			}
			continue
		}
		if cmp > 0 {
			var err error
			j.rightRecord, j.rightOK, err = j.Right.Next()
			if err != nil {
				return nil, false, err
			}
			continue
		}

		// Equal keys: hold the boundary key fixed and gather every
		// consecutive record on each side that still matches it.
		keyRecord := j.leftRecord

		var leftRun []*record.Record
		for j.leftOK && j.LeftOrdering.RunWithOther(keyRecord, j.LeftOrdering)(j.leftRecord) == 0 {
			leftRun = append(leftRun, j.leftRecord)
			var err error
			j.leftRecord, j.leftOK, err = j.Left.Next()
			if err != nil {
				return nil, false, err
			}
		}

		var rightRun []*record.Record
		for j.rightOK && j.LeftOrdering.RunWithOther(keyRecord, j.RightOrdering)(j.rightRecord) == 0 {
			rightRun = append(rightRun, j.rightRecord)
			var err error
			j.rightRecord, j.rightOK, err = j.Right.Next()
			if err != nil {
				return nil, false, err
			}
		}

		for _, l := range leftRun {
			for _, r := range rightRun {
				if j.Predicate.Run(l, r) {
					joined := l.Clone()
					joined.MergeRight(r)
					j.buf = append(j.buf, joined)
				}
			}
		}
	}
}

// HashJoin materializes BuildLeft's chosen side into a hash table keyed by
// the projected join columns, then probes with the other side.
type HashJoin struct {
	Predicate       predicate.CNF
	BuildLeft       bool
	LeftProjection  []int
	RightProjection []int
	Left            RelOp
	Right           RelOp

	built bool
	table map[uint64][]bucketEntry
	buf   []*record.Record
}

type bucketEntry struct {
	key *record.Record
	rec *record.Record
}

func (j *HashJoin) Next() (*record.Record, bool, error) {
	if !j.built {
		if err := j.build(); err != nil {
			return nil, false, err
		}
		j.built = true
	}

	for {
		if len(j.buf) > 0 {
			rec := j.buf[0]
			j.buf = j.buf[1:]
			return rec, true, nil
		}

		var probeRec *record.Record
		var ok bool
		var err error
		if j.BuildLeft {
			probeRec, ok, err = j.Right.Next()
		} else {
			probeRec, ok, err = j.Left.Next()
		}
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}

		projection := j.RightProjection
		if !j.BuildLeft {
			projection = j.LeftProjection
		}
		key, err := projectedKey(probeRec, projection)
		if err != nil {
			return nil, false, err
		}
		h, err := key.ContentHash()
		if err != nil {
			return nil, false, err
		}

		for _, entry := range j.table[h] {
			if !entry.key.ContentEqual(key) {
				continue
			}
			var left, right *record.Record
			if j.BuildLeft {
				left, right = entry.rec, probeRec
			} else {
				left, right = probeRec, entry.rec
			}
			if j.Predicate.Run(left, right) {
				joined := left.Clone()
				joined.MergeRight(right)
				j.buf = append(j.buf, joined)
			}
		}
	}
}

func (j *HashJoin) build() error {
	j.table = make(map[uint64][]bucketEntry)
	buildSide := j.Left
	projection := j.LeftProjection
	if !j.BuildLeft {
		buildSide = j.Right
		projection = j.RightProjection
	}

	for {
		rec, ok, err := buildSide.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, err := projectedKey(rec, projection)
		if err != nil {
			return err
		}
		h, err := key.ContentHash()
		if err != nil {
			return err
		}
		j.table[h] = append(j.table[h], bucketEntry{key: key, rec: rec})
	}
	return nil
}

func projectedKey(rec *record.Record, projection []int) (*record.Record, error) {
	key := rec.Clone()
	if err := key.Project(projection); err != nil {
		return nil, err
	}
	return key, nil
}
