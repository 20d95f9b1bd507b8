package quill

import (
	"time"

	"github.com/google/uuid"
)

// Value represents any value that can be stored as a Datom's V component.
// Like the teacher's approach, we lean on interface{} rather than a closed
// sum type; ValueType (see value_encoding.go) records which case applies.
//
// Valid dynamic types:
//   - string                 (ValueType: String)
//   - int64                  (Long)
//   - float64                (Double)
//   - bool                   (Boolean)
//   - Keyword                (Keyword)
//   - Symbol                 (Symbol)
//   - uuid.UUID              (UUID)
//   - time.Time              (Instant)
//   - Identity               (Ref)
//   - []byte                 (Bytes)
//   - Tuple                  (Tuple / HomogeneousTuple / HeterogeneousTuple)
type Value interface{}

// Symbol is a value-position symbol (distinct from a query variable, which
// also uses the name "Symbol" in the query package but always begins with
// '?'). A plain keyword-like identifier stored as a value, e.g. recording
// that an entity's :db/ident is :status/active.
type Symbol struct {
	name string
}

// NewSymbol creates a value-position symbol.
func NewSymbol(s string) Symbol { return Symbol{name: s} }

// String returns the symbol's textual form.
func (s Symbol) String() string { return s.name }

// Tuple is an ordered, fixed-length composite value. Component i is nil
// when the attribute it is derived from is absent on the entity.
type Tuple []Value

// Helper constructors, mirroring the teacher's value.go helpers.
func String(s string) Value     { return s }
func Long(i int64) Value        { return i }
func Double(f float64) Value    { return f }
func Boolean(b bool) Value      { return b }
func Instant(t time.Time) Value { return t }
func Bytes(b []byte) Value      { return b }
func Ref(id Identity) Value     { return id }
func KeywordValue(k Keyword) Value { return k }
func SymbolValue(s Symbol) Value   { return s }
func UUID(u uuid.UUID) Value       { return u }
func TupleValue(t Tuple) Value     { return t }
