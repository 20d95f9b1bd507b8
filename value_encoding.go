package quill

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValueType tags the dynamic type of a Value. It mirrors the attribute
// valueType vocabulary of spec.md §3: string, long, double, boolean,
// keyword, symbol, uuid, instant, ref, bytes, tuple (and its
// homogeneous/heterogeneous variants).
type ValueType byte

const (
	TypeString ValueType = iota
	TypeLong
	TypeDouble
	TypeBoolean
	TypeKeyword
	TypeSymbol
	TypeUUID
	TypeInstant
	TypeRef
	TypeBytes
	TypeTuple
	TypeHomogeneousTuple
	TypeHeterogeneousTuple
)

// String returns the schema-facing name of a value type.
func (vt ValueType) String() string {
	switch vt {
	case TypeString:
		return "string"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	case TypeBoolean:
		return "boolean"
	case TypeKeyword:
		return "keyword"
	case TypeSymbol:
		return "symbol"
	case TypeUUID:
		return "uuid"
	case TypeInstant:
		return "instant"
	case TypeRef:
		return "ref"
	case TypeBytes:
		return "bytes"
	case TypeTuple:
		return "tuple"
	case TypeHomogeneousTuple:
		return "homogeneous-tuple"
	case TypeHeterogeneousTuple:
		return "heterogeneous-tuple"
	default:
		return fmt.Sprintf("unknown(%d)", byte(vt))
	}
}

// TypeOf inspects a runtime Value and returns its ValueType. It panics on
// values of a type the store has never been told how to handle -- the same
// contract the teacher's Type() function uses, since an unencodable value
// indicates a programming error rather than recoverable user input.
func TypeOf(v Value) ValueType {
	switch v.(type) {
	case string:
		return TypeString
	case int64:
		return TypeLong
	case int:
		return TypeLong
	case float64:
		return TypeDouble
	case bool:
		return TypeBoolean
	case Keyword:
		return TypeKeyword
	case Symbol:
		return TypeSymbol
	case uuid.UUID:
		return TypeUUID
	case time.Time:
		return TypeInstant
	case Identity:
		return TypeRef
	case []byte:
		return TypeBytes
	case Tuple:
		return TypeTuple
	default:
		panic(fmt.Sprintf("quill: unknown value type: %T", v))
	}
}
