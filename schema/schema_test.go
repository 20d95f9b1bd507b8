package schema

import (
	"testing"

	quill "github.com/quilldb/quill"
	"github.com/stretchr/testify/require"
)

func kw(s string) quill.Keyword { return quill.NewKeyword(s) }

func TestNewValidSchema(t *testing.T) {
	s, err := New([]Attribute{
		{Ident: kw(":person/name"), ValueType: quill.TypeString, Cardinality: CardinalityOne, Unique: UniqueIdentity},
		{Ident: kw(":person/age"), ValueType: quill.TypeLong},
		{Ident: kw(":person/friend"), ValueType: quill.TypeRef, Cardinality: CardinalityMany},
	})
	require.NoError(t, err)
	require.True(t, s.IsUniqueIdentity(kw(":person/name")))
	require.True(t, s.IsRef(kw(":person/friend")))
	require.Equal(t, CardinalityMany, s.Cardinality(kw(":person/friend")))
}

func TestDuplicateAttributeRejected(t *testing.T) {
	_, err := New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString},
		{Ident: kw(":a"), ValueType: quill.TypeLong},
	})
	require.Error(t, err)
}

func TestCompositeTupleAttr(t *testing.T) {
	s, err := New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString},
		{Ident: kw(":b"), ValueType: quill.TypeString},
		{
			Ident:       kw(":a+b"),
			ValueType:   quill.TypeTuple,
			Cardinality: CardinalityOne,
			TupleAttrs:  []quill.Keyword{kw(":a"), kw(":b")},
		},
	})
	require.NoError(t, err)

	deriving := s.TupleAttrsOf(kw(":a"))
	require.Contains(t, deriving, kw(":a+b"))
}

func TestCompositeTupleMustBeCardinalityOne(t *testing.T) {
	_, err := New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString},
		{
			Ident:       kw(":bad"),
			ValueType:   quill.TypeTuple,
			Cardinality: CardinalityMany,
			TupleAttrs:  []quill.Keyword{kw(":a")},
		},
	})
	require.Error(t, err)
}

func TestCompositeTupleCannotReferenceTupleAttr(t *testing.T) {
	_, err := New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString},
		{Ident: kw(":b"), ValueType: quill.TypeString},
		{
			Ident:       kw(":a+b"),
			ValueType:   quill.TypeTuple,
			Cardinality: CardinalityOne,
			TupleAttrs:  []quill.Keyword{kw(":a"), kw(":b")},
		},
		{
			Ident:       kw(":nested"),
			ValueType:   quill.TypeTuple,
			Cardinality: CardinalityOne,
			TupleAttrs:  []quill.Keyword{kw(":a+b")},
		},
	})
	require.Error(t, err)
}

func TestCompositeTupleCannotReferenceCardinalityMany(t *testing.T) {
	_, err := New([]Attribute{
		{Ident: kw(":many"), ValueType: quill.TypeString, Cardinality: CardinalityMany},
		{
			Ident:       kw(":bad"),
			ValueType:   quill.TypeTuple,
			Cardinality: CardinalityOne,
			TupleAttrs:  []quill.Keyword{kw(":many")},
		},
	})
	require.Error(t, err)
}

func TestTupleValueTypeRequiresExactlyOneForm(t *testing.T) {
	_, err := New([]Attribute{
		{Ident: kw(":missing-form"), ValueType: quill.TypeTuple, Cardinality: CardinalityOne},
	})
	require.Error(t, err)

	_, err = New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString},
		{
			Ident:       kw(":two-forms"),
			ValueType:   quill.TypeTuple,
			Cardinality: CardinalityOne,
			TupleAttrs:  []quill.Keyword{kw(":a")},
			TupleType:   quill.TypeString,
		},
	})
	require.Error(t, err)
}

func TestNeedsAVET(t *testing.T) {
	s, err := New([]Attribute{
		{Ident: kw(":indexed"), ValueType: quill.TypeString, Index: true},
		{Ident: kw(":unique"), ValueType: quill.TypeString, Unique: UniqueValue},
		{Ident: kw(":ref"), ValueType: quill.TypeRef},
		{Ident: kw(":plain"), ValueType: quill.TypeString},
	})
	require.NoError(t, err)
	require.True(t, s.NeedsAVET(kw(":indexed")))
	require.True(t, s.NeedsAVET(kw(":unique")))
	require.True(t, s.NeedsAVET(kw(":ref")))
	require.False(t, s.NeedsAVET(kw(":plain")))
}

func TestExtendAddsAttributesToExistingSchema(t *testing.T) {
	s, err := New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString},
	})
	require.NoError(t, err)

	s2, err := s.Extend([]Attribute{
		{Ident: kw(":b"), ValueType: quill.TypeLong},
	})
	require.NoError(t, err)

	_, ok := s2.Attr(kw(":a"))
	require.True(t, ok)
	_, ok = s2.Attr(kw(":b"))
	require.True(t, ok)
}

func TestReverseByTypeAndByUnique(t *testing.T) {
	s, err := New([]Attribute{
		{Ident: kw(":a"), ValueType: quill.TypeString, Unique: UniqueIdentity},
		{Ident: kw(":b"), ValueType: quill.TypeString},
		{Ident: kw(":c"), ValueType: quill.TypeLong},
	})
	require.NoError(t, err)

	r := s.Reverse()
	require.ElementsMatch(t, []quill.Keyword{kw(":a"), kw(":b")}, r.ByType(quill.TypeString))
	require.Equal(t, []quill.Keyword{kw(":a")}, r.ByUnique(UniqueIdentity))
}

func TestUnknownAttributeDefaultsToCardinalityOne(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	require.Equal(t, CardinalityOne, s.Cardinality(kw(":never-declared")))
}
