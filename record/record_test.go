package record

import (
	"bufio"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrel/tinyrel/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Attribute{
		{Name: "id", Type: schema.Integer},
		{Name: "name", Type: schema.String},
		{Name: "score", Type: schema.Float},
	})
	require.NoError(t, err)
	return s
}

func TestExtractNextRoundTrip(t *testing.T) {
	sch := testSchema(t)
	reader := bufio.NewReader(strings.NewReader("1|alice|9.5|\n2|bob|3.25|\n"))

	var recs []*Record
	for {
		r := New()
		ok, err := r.ExtractNext(sch, reader)
		require.NoError(t, err)
		if !ok {
			break
		}
		recs = append(recs, r)
	}
	require.Len(t, recs, 2)

	col, err := recs[0].GetColumn(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, col.Int)

	col, err = recs[0].GetColumn(1)
	require.NoError(t, err)
	assert.Equal(t, "alice", col.Str)

	col, err = recs[1].GetColumn(2)
	require.NoError(t, err)
	assert.InDelta(t, 3.25, col.Flt, 1e-9)
}

func TestToBytesRoundTrip(t *testing.T) {
	sch := testSchema(t)
	reader := bufio.NewReader(strings.NewReader("42|carol|1.5|\n"))
	r := New()
	ok, err := r.ExtractNext(sch, reader)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "42|carol|1.5|\n", string(r.ToBytes()))
}

func TestProject(t *testing.T) {
	r := NewBuilder().PushInt(1).PushString("x").PushFloat(2.5).Build()

	require.NoError(t, r.Project([]int{2, 0}))
	require.Equal(t, 2, r.NumColumns())

	col, err := r.GetColumn(0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, col.Flt, 1e-9)

	col, err = r.GetColumn(1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, col.Int)
}

func TestProjectOutOfRangeFailsAtomically(t *testing.T) {
	r := NewBuilder().PushInt(1).PushInt(2).Build()
	err := r.Project([]int{0, 5})
	require.Error(t, err)
	require.Equal(t, 2, r.NumColumns())
}

func TestMergeRightAndLeft(t *testing.T) {
	left := NewBuilder().PushInt(1).PushString("l").Build()
	right := NewBuilder().PushString("r").PushFloat(9.0).Build()

	merged := left.Clone()
	merged.MergeRight(right)
	require.Equal(t, 4, merged.NumColumns())

	col, err := merged.GetColumn(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, col.Int)
	col, err = merged.GetColumn(2)
	require.NoError(t, err)
	assert.Equal(t, "r", col.Str)
	col, err = merged.GetColumn(3)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, col.Flt, 1e-9)

	mergedLeft := right.Clone()
	mergedLeft.MergeLeft(left)
	// merge_left(other) == other.merge_right(self); self := other
	assert.True(t, mergedLeft.ContentEqual(merged))

	wantCols, err := merged.Columns()
	require.NoError(t, err)
	gotCols, err := mergedLeft.Columns()
	require.NoError(t, err)
	if diff := cmp.Diff(wantCols, gotCols); diff != "" {
		t.Errorf("MergeLeft result differs from MergeRight result (-want +got):\n%s", diff)
	}
}

func TestContentHashAndEqual(t *testing.T) {
	a := NewBuilder().PushInt(1).PushString("same").Build()
	b := NewBuilder().PushString("pad").PushInt(1).PushString("same").Build()
	require.NoError(t, b.Project([]int{1, 2}))

	assert.True(t, a.ContentEqual(b))

	ha, err := a.ContentHash()
	require.NoError(t, err)
	hb, err := b.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	c := NewBuilder().PushInt(2).PushString("same").Build()
	assert.False(t, a.ContentEqual(c))
}
