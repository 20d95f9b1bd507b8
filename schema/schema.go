// Package schema declares attribute metadata and a derived reverse index
// (rschema) for fast lookups by capability. The teacher's datalog package
// never had a schema layer at all -- every attribute was a free-form
// Keyword with an ad hoc Go value and type dispatch happened structurally
// via Type() (datalog/value_encoding.go). Schema generalizes that dispatch
// into a user-declared, per-attribute contract the transactor and store
// both consult.
package schema

import (
	"fmt"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/quillerr"
)

// Cardinality controls whether an attribute holds one value or a set of
// values per entity.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "many"
	}
	return "one"
}

// Unique controls how an attribute's values are constrained across the
// whole database.
type Unique int

const (
	UniqueNone Unique = iota
	// UniqueValue: no two entities may share a value, but upsert does not
	// apply -- a transact naming an existing value on a *different*
	// entity fails rather than merging.
	UniqueValue
	// UniqueIdentity: like UniqueValue, but tempid resolution treats a
	// matching existing value as an upsert target.
	UniqueIdentity
)

func (u Unique) String() string {
	switch u {
	case UniqueValue:
		return "value"
	case UniqueIdentity:
		return "identity"
	default:
		return "none"
	}
}

// Attribute is the full metadata record for one attribute, per spec.md §3.
type Attribute struct {
	Ident       quill.Keyword
	ValueType   quill.ValueType
	Cardinality Cardinality
	Unique      Unique
	IsComponent bool

	// TupleAttrs, when non-empty, declares this attribute as a composite
	// tuple derived from other attributes on the same entity: component i
	// tracks TupleAttrs[i]'s current value (nil if absent). Mutually
	// exclusive with TupleType/TupleTypes.
	TupleAttrs []quill.Keyword
	// TupleType declares a homogeneous value-tuple: every component has
	// this same value type. Mutually exclusive with TupleAttrs/TupleTypes.
	TupleType quill.ValueType
	// TupleTypes declares a heterogeneous value-tuple: component i has
	// type TupleTypes[i]. Mutually exclusive with TupleAttrs/TupleType.
	TupleTypes []quill.ValueType

	// Index requests an AVET entry even when Unique/ValueType=ref would
	// not already imply one.
	Index bool
	// NoHistory attributes still index normally; the flag only affects
	// history retention, which this store does not keep (see component D).
	NoHistory bool

	Doc string
}

// IsTupleDerived reports whether a is a composite tuple computed from
// other attributes (as opposed to a plain value-tuple). The transactor
// uses this to reject direct writes to a's own value (spec.md §4.E phase
// 3: "can't modify tuple attrs directly").
func (a Attribute) IsTupleDerived() bool {
	return len(a.TupleAttrs) > 0
}

// Schema is the full set of declared attributes, keyed by ident.
type Schema struct {
	attrs   map[quill.Keyword]Attribute
	reverse Reverse
}

// New builds a Schema from a list of attribute declarations, validating the
// invariants spec.md §3 lists for tuple attributes, and returns the error
// prefixed the way §7 requires ("schema: ...").
func New(attrs []Attribute) (*Schema, error) {
	s := &Schema{attrs: make(map[quill.Keyword]Attribute, len(attrs))}
	for _, a := range attrs {
		if _, dup := s.attrs[a.Ident]; dup {
			return nil, quillerr.Schema(fmt.Errorf("schema: duplicate attribute %s", a.Ident))
		}
		s.attrs[a.Ident] = a
	}
	if err := s.validate(); err != nil {
		return nil, quillerr.Schema(err)
	}
	s.reverse = buildReverse(s.attrs)
	return s, nil
}

// Extend returns a new Schema with additional attributes installed,
// supporting schema-as-data transactions that grow the schema over time.
func (s *Schema) Extend(attrs []Attribute) (*Schema, error) {
	merged := make([]Attribute, 0, len(s.attrs)+len(attrs))
	for _, a := range s.attrs {
		merged = append(merged, a)
	}
	merged = append(merged, attrs...)
	return New(merged)
}

func (s *Schema) validate() error {
	for _, a := range s.attrs {
		tupleFormCount := 0
		if len(a.TupleAttrs) > 0 {
			tupleFormCount++
		}
		if a.TupleType != 0 {
			tupleFormCount++
		}
		if len(a.TupleTypes) > 0 {
			tupleFormCount++
		}

		if a.ValueType == quill.TypeTuple || a.ValueType == quill.TypeHomogeneousTuple || a.ValueType == quill.TypeHeterogeneousTuple {
			if tupleFormCount != 1 {
				return fmt.Errorf("schema: attribute %s declared valueType=tuple must carry exactly one of tupleAttrs, tupleType, or tupleTypes", a.Ident)
			}
		} else if tupleFormCount > 0 {
			return fmt.Errorf("schema: attribute %s carries tuple metadata but valueType is not a tuple type", a.Ident)
		}

		if a.IsTupleDerived() {
			if a.Cardinality != CardinalityOne {
				return fmt.Errorf("schema: composite tuple attribute %s must be cardinality one", a.Ident)
			}
			if len(a.TupleAttrs) == 0 {
				return fmt.Errorf("schema: attribute %s declares tupleAttrs but the list is empty", a.Ident)
			}
			seen := map[quill.Keyword]bool{a.Ident: true}
			for _, src := range a.TupleAttrs {
				srcAttr, ok := s.attrs[src]
				if !ok {
					return fmt.Errorf("schema: attribute %s references unknown tuple source attribute %s", a.Ident, src)
				}
				if srcAttr.IsTupleDerived() {
					return fmt.Errorf("schema: tuple attribute %s may not reference another tuple attribute %s", a.Ident, src)
				}
				if srcAttr.Cardinality != CardinalityOne {
					return fmt.Errorf("schema: tuple attribute %s may not reference cardinality-many attribute %s", a.Ident, src)
				}
				if seen[src] {
					return fmt.Errorf("schema: tuple attribute %s references %s more than once", a.Ident, src)
				}
				seen[src] = true
			}
		}
	}
	return nil
}

// Attr looks up an attribute's metadata by ident.
func (s *Schema) Attr(ident quill.Keyword) (Attribute, bool) {
	a, ok := s.attrs[ident]
	return a, ok
}

// ValueType returns the declared value type of an attribute.
func (s *Schema) ValueType(ident quill.Keyword) (quill.ValueType, bool) {
	a, ok := s.attrs[ident]
	if !ok {
		return 0, false
	}
	return a.ValueType, true
}

// Cardinality returns an attribute's declared cardinality, defaulting to one
// for attributes not in the schema (matching the teacher's permissive,
// schema-optional approach to any attribute it has never seen before).
func (s *Schema) Cardinality(ident quill.Keyword) Cardinality {
	if a, ok := s.attrs[ident]; ok {
		return a.Cardinality
	}
	return CardinalityOne
}

// IsUniqueIdentity reports whether ident is declared unique identity.
func (s *Schema) IsUniqueIdentity(ident quill.Keyword) bool {
	a, ok := s.attrs[ident]
	return ok && a.Unique == UniqueIdentity
}

// IsUnique reports whether ident carries any uniqueness constraint.
func (s *Schema) IsUnique(ident quill.Keyword) bool {
	a, ok := s.attrs[ident]
	return ok && a.Unique != UniqueNone
}

// IsRef reports whether ident's value type is a reference to another
// entity.
func (s *Schema) IsRef(ident quill.Keyword) bool {
	a, ok := s.attrs[ident]
	return ok && a.ValueType == quill.TypeRef
}

// NeedsAVET reports whether datoms on ident should be written into the
// AVET index: indexed, unique, or a ref (spec.md §3's "Indices" note).
func (s *Schema) NeedsAVET(ident quill.Keyword) bool {
	a, ok := s.attrs[ident]
	if !ok {
		return false
	}
	return a.Index || a.Unique != UniqueNone || a.ValueType == quill.TypeRef
}

// TupleAttrsOf returns the composite tuple attributes that derive from
// ident, i.e. every declared attribute whose TupleAttrs list contains
// ident. Used by the transactor to know which composite tuples to
// recompute after a write touches ident.
func (s *Schema) TupleAttrsOf(ident quill.Keyword) []quill.Keyword {
	return s.reverse.attrTuples[ident]
}

// Reverse returns the schema's derived reverse index.
func (s *Schema) Reverse() Reverse {
	return s.reverse
}

// Reverse is the rschema: reverse-indexed schema for O(1) lookups by
// capability, generalizing the teacher's Type()-dispatch idiom into a
// precomputed set of attribute groupings. Rebuilt wholesale on every
// schema change -- schemas are small, so rebuilding on each New/Extend call
// beats incremental maintenance bugs, the same tradeoff the teacher makes
// recomputing its dispatch rather than tracking it continuously.
type Reverse struct {
	byType     map[quill.ValueType][]quill.Keyword
	byUnique   map[Unique][]quill.Keyword
	refAttrs   map[quill.Keyword]bool
	manyAttrs  map[quill.Keyword]bool
	attrTuples map[quill.Keyword][]quill.Keyword
}

func buildReverse(attrs map[quill.Keyword]Attribute) Reverse {
	r := Reverse{
		byType:     make(map[quill.ValueType][]quill.Keyword),
		byUnique:   make(map[Unique][]quill.Keyword),
		refAttrs:   make(map[quill.Keyword]bool),
		manyAttrs:  make(map[quill.Keyword]bool),
		attrTuples: make(map[quill.Keyword][]quill.Keyword),
	}
	for ident, a := range attrs {
		r.byType[a.ValueType] = append(r.byType[a.ValueType], ident)
		if a.Unique != UniqueNone {
			r.byUnique[a.Unique] = append(r.byUnique[a.Unique], ident)
		}
		if a.ValueType == quill.TypeRef {
			r.refAttrs[ident] = true
		}
		if a.Cardinality == CardinalityMany {
			r.manyAttrs[ident] = true
		}
		for _, src := range a.TupleAttrs {
			r.attrTuples[src] = append(r.attrTuples[src], ident)
		}
	}
	return r
}

// ByType returns every attribute declared with the given value type.
func (r Reverse) ByType(vt quill.ValueType) []quill.Keyword {
	return r.byType[vt]
}

// ByUnique returns every attribute declared with the given uniqueness kind.
func (r Reverse) ByUnique(u Unique) []quill.Keyword {
	return r.byUnique[u]
}

// IsRef reports whether ident is a ref attribute.
func (r Reverse) IsRef(ident quill.Keyword) bool {
	return r.refAttrs[ident]
}

// IsMany reports whether ident is cardinality many.
func (r Reverse) IsMany(ident quill.Keyword) bool {
	return r.manyAttrs[ident]
}
