package executor

import (
	"testing"

	"github.com/quilldb/quill/query"
	"github.com/stretchr/testify/require"
)

func TestUnionDedupesAcrossBranches(t *testing.T) {
	a := NewRelation([]query.Symbol{"?e"}, []Tuple{{int64(1)}, {int64(2)}})
	b := NewRelation([]query.Symbol{"?e"}, []Tuple{{int64(2)}, {int64(3)}})
	out, err := Union([]Relation{a, b})
	require.NoError(t, err)
	require.Equal(t, 3, out.Size())
}

func TestUnionReordersColumnsBeforeComparing(t *testing.T) {
	a := NewRelation([]query.Symbol{"?e", "?n"}, []Tuple{{int64(1), "Alice"}})
	b := NewRelation([]query.Symbol{"?n", "?e"}, []Tuple{{"Bob", int64(2)}})
	out, err := Union([]Relation{a, b})
	require.NoError(t, err)
	require.Equal(t, []query.Symbol{"?e", "?n"}, out.Symbols())
	require.Equal(t, 2, out.Size())
}

func TestUnionRejectsMismatchedColumnSets(t *testing.T) {
	a := NewRelation([]query.Symbol{"?e"}, []Tuple{{int64(1)}})
	b := NewRelation([]query.Symbol{"?x"}, []Tuple{{int64(2)}})
	_, err := Union([]Relation{a, b})
	require.Error(t, err)
}

func TestUnionOfNoRelationsIsEmpty(t *testing.T) {
	out, err := Union(nil)
	require.NoError(t, err)
	require.True(t, out.IsEmpty())
}
