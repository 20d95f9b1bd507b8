// Package transactor implements the write path: accepting tx-items,
// resolving tempids and lookup-refs, maintaining composite tuple
// attributes, enforcing uniqueness, and committing the resulting datoms to
// the store. It generalizes the teacher's Transaction (datalog/storage/
// database.go) -- which only ever accumulated simple Add/Retract calls and
// committed them in one linear pass -- into the seven-phase pipeline
// spec.md §4.E describes.
package transactor

import (
	"fmt"

	quill "github.com/quilldb/quill"
)

// TempID is a placeholder entity identifier valid only within the
// transaction that introduces it. Two tx-items naming the same TempID
// refer to the same (eventually real) entity.
type TempID struct {
	key string
}

// NewTempID wraps a user-supplied string tempid (e.g. "alice").
func NewTempID(s string) TempID { return TempID{key: "s:" + s} }

// NewNegativeTempID wraps the "negative integer" tempid form spec.md §3
// allows as an alternative to a string.
func NewNegativeTempID(n int64) TempID {
	if n >= 0 {
		panic("transactor: negative tempid must be < 0")
	}
	return TempID{key: fmt.Sprintf("n:%d", n)}
}

func (t TempID) String() string { return t.key }

// LookupRef identifies an entity by a unique attribute/value pair instead
// of a raw eid -- `[:unique-attr v]` in spec.md §3.
type LookupRef struct {
	Attr  quill.Keyword
	Value quill.Value
}

// EntityRef is anywhere an entity may be named: a resolved Identity, a
// TempID, or a LookupRef. Dynamic typing mirrors the teacher's permissive
// `interface{}` value handling rather than introducing a closed sum type
// the way Go would for an internal-only API.
type EntityRef interface{}

// TxItem is one element of a transact call. Concrete types below mirror
// spec.md §4.E's tx-item vocabulary.
type TxItem interface {
	isTxItem()
}

// AddDatom asserts (e, a, v). e may be any EntityRef; v may itself be an
// EntityRef when a is a ref attribute (it will be resolved the same way e
// is).
type AddDatom struct {
	E EntityRef
	A quill.Keyword
	V quill.Value
}

func (AddDatom) isTxItem() {}

// RetractDatom retracts a specific (e, a, v) triple.
type RetractDatom struct {
	E EntityRef
	A quill.Keyword
	V quill.Value
}

func (RetractDatom) isTxItem() {}

// RetractEntity removes every datom naming e as the entity, plus every
// datom where e is the value of a ref attribute, recursing into component
// refs.
type RetractEntity struct {
	E EntityRef
}

func (RetractEntity) isTxItem() {}

// RetractAttribute removes every datom for (e, a) regardless of value.
type RetractAttribute struct {
	E EntityRef
	A quill.Keyword
}

func (RetractAttribute) isTxItem() {}

// CAS is a compare-and-swap: succeeds only if the attribute's current
// value equals Old, then sets it to New. e must already be a resolved
// Identity or LookupRef -- tempids are disallowed as the entity id in CAS
// (spec.md §4.E phase 6).
type CAS struct {
	E   EntityRef
	A   quill.Keyword
	Old quill.Value
	New quill.Value
}

func (CAS) isTxItem() {}

// CallFn invokes the transaction function registered under Ident (see
// Transactor.RegisterFn) with the given arguments; an Ident with no
// registered function fails the transaction.
type CallFn struct {
	Ident quill.Keyword
	Args  []interface{}
}

func (CallFn) isTxItem() {}

// MapEntity is the map-form tx-item: an entity id (possibly a tempid, to
// be assigned) plus a set of attribute values. A value may be a scalar, a
// slice (cardinality-many), a nested *MapEntity (sub-entity, assigned its
// own tempid), or a LookupRef.
type MapEntity struct {
	ID    EntityRef
	Attrs map[quill.Keyword]interface{}
}

func (*MapEntity) isTxItem() {}

// TxFunc is a registered transaction function: given the transactor state
// at the point it runs, it returns more tx-items to apply in its place
// (the same "expand to simple tx-items" contract :db.fn/cas and map-form
// entities both already follow).
type TxFunc func(tx *Transactor, args []interface{}) ([]TxItem, error)

// TxReport is returned on a successful commit (spec.md §6 "Txn report
// shape").
type TxReport struct {
	TxID     uint64
	TxData   []quill.Datom
	Tempids  map[string]quill.Identity
	DbBefore uint64
	DbAfter  uint64
}
