package quill

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCompareValuesNumeric(t *testing.T) {
	require.Equal(t, -1, CompareValues(int64(1), int64(2)))
	require.Equal(t, 0, CompareValues(int64(2), 2.0))
	require.Equal(t, 1, CompareValues(3.5, int64(3)))
}

func TestCompareValuesNil(t *testing.T) {
	require.Equal(t, 0, CompareValues(nil, nil))
	require.Equal(t, -1, CompareValues(nil, "anything"))
	require.Equal(t, 1, CompareValues("anything", nil))
}

func TestCompareValuesStrings(t *testing.T) {
	require.True(t, CompareValues("alice", "bob") < 0)
	require.True(t, CompareValues("bob", "alice") > 0)
	require.Equal(t, 0, CompareValues("same", "same"))
}

func TestCompareValuesIdentity(t *testing.T) {
	a := NewIdentity(1)
	b := NewIdentity(2)
	require.True(t, CompareValues(a, b) < 0)
	require.Equal(t, 0, CompareValues(a, NewIdentity(1)))
}

func TestCompareValuesTime(t *testing.T) {
	t1 := time.Unix(0, 100)
	t2 := time.Unix(0, 200)
	require.True(t, CompareValues(t1, t2) < 0)
}

func TestCompareValuesTuple(t *testing.T) {
	a := Tuple{"x", int64(1)}
	b := Tuple{"x", int64(2)}
	require.True(t, CompareValues(a, b) < 0)

	c := Tuple{nil, int64(1)}
	d := Tuple{"x", int64(1)}
	require.True(t, CompareValues(c, d) < 0, "nil tuple component sorts lowest")
}

func TestValuesEqualBytesByContent(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	require.True(t, ValuesEqual(a, b), "byte slices compare by content, not identity")

	c := []byte{1, 2, 4}
	require.False(t, ValuesEqual(a, c))
}

func TestValuesEqualUUID(t *testing.T) {
	u := uuid.New()
	require.True(t, ValuesEqual(u, u))
}

func TestTypeOf(t *testing.T) {
	require.Equal(t, TypeString, TypeOf("hi"))
	require.Equal(t, TypeLong, TypeOf(int64(1)))
	require.Equal(t, TypeDouble, TypeOf(1.5))
	require.Equal(t, TypeBoolean, TypeOf(true))
	require.Equal(t, TypeRef, TypeOf(NewIdentity(7)))
	require.Equal(t, TypeKeyword, TypeOf(NewKeyword(":a/b")))
	require.Equal(t, TypeTuple, TypeOf(Tuple{"a", int64(1)}))
}

func TestTypeOfPanicsOnUnknown(t *testing.T) {
	require.Panics(t, func() {
		TypeOf(struct{}{})
	})
}
