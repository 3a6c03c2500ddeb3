package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, atts []Attribute) *Schema {
	t.Helper()
	s, err := New(atts)
	require.NoError(t, err)
	return s
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New([]Attribute{{Name: "a", Type: Integer}, {Name: "a", Type: Float}})
	require.Error(t, err)
	require.True(t, ErrDuplicateAttribute.Is(err))
}

func TestIndexOfAndFindType(t *testing.T) {
	s := mustNew(t, []Attribute{{Name: "id", Type: Integer}, {Name: "name", Type: String}})

	assert.Equal(t, 0, s.IndexOf("id"))
	assert.Equal(t, 1, s.IndexOf("name"))
	assert.Equal(t, -1, s.IndexOf("missing"))

	typ, ok := s.FindType("name")
	assert.True(t, ok)
	assert.Equal(t, String, typ)

	_, ok = s.FindType("missing")
	assert.False(t, ok)
}

func TestProject(t *testing.T) {
	s := mustNew(t, []Attribute{{Name: "a", Type: Integer}, {Name: "b", Type: Float}, {Name: "c", Type: String}})

	proj, err := s.Project([]int{2, 0})
	require.NoError(t, err)
	require.Equal(t, 2, proj.NumAtts())
	assert.Equal(t, "c", proj.Atts()[0].Name)
	assert.Equal(t, "a", proj.Atts()[1].Name)

	_, err = s.Project([]int{5})
	require.Error(t, err)
}

func TestAppendRejectsCollision(t *testing.T) {
	left := mustNew(t, []Attribute{{Name: "a", Type: Integer}})
	right := mustNew(t, []Attribute{{Name: "a", Type: Integer}})

	_, err := left.Append(right)
	require.Error(t, err)

	right2 := mustNew(t, []Attribute{{Name: "b", Type: Float}})
	merged, err := left.Append(right2)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.NumAtts())
}

func TestJoinRightCardinality(t *testing.T) {
	left := &Schema{
		atts:       []Attribute{{Name: "k", Type: Integer, DistinctCount: 10}, {Name: "x", Type: Integer}},
		TupleCount: 100,
	}
	right := &Schema{
		atts:       []Attribute{{Name: "k", Type: Integer, DistinctCount: 20}, {Name: "y", Type: Integer}},
		TupleCount: 50,
	}

	joined := left.JoinRight(right)
	// 100 * 50 / max(10, 20) == 250
	assert.EqualValues(t, 250, joined.TupleCount)
	assert.Equal(t, 3, joined.NumAtts())
	assert.Equal(t, -1, joined.IndexOf("k")+0) // sanity: k exists exactly once
	assert.Equal(t, 1, countOccurrences(joined, "k"))
}

func TestJoinRightUnknownDistinctIsIgnored(t *testing.T) {
	left := &Schema{atts: []Attribute{{Name: "k", Type: Integer}}, TupleCount: 4}
	right := &Schema{atts: []Attribute{{Name: "k", Type: Integer}}, TupleCount: 5}

	joined := left.JoinRight(right)
	assert.EqualValues(t, 20, joined.TupleCount)
}

func countOccurrences(s *Schema, name string) int {
	n := 0
	for _, a := range s.Atts() {
		if a.Name == name {
			n++
		}
	}
	return n
}

func TestRename(t *testing.T) {
	s := mustNew(t, []Attribute{{Name: "a", Type: Integer}, {Name: "b", Type: Float}})
	require.NoError(t, s.Rename("a", "z"))
	assert.Equal(t, 0, s.IndexOf("z"))
	require.Error(t, s.Rename("z", "b"))
	require.Error(t, s.Rename("missing", "q"))
}
