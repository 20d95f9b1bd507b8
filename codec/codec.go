// Package codec implements component A of the store: a totally-ordered byte
// encoding for the typed values a Datom can carry. Every supported value v
// round-trips through Decode(Encode(v, vt), vt) == v, and two encoded keys
// compare byte-for-byte in the same order as quill.CompareValues would order
// the original values -- this is what lets quill/store use raw key
// comparison for AVET range scans instead of decoding every candidate.
//
// The encoding is (type-tag byte, payload). Fixed-width numeric payloads use
// big-endian byte order with the classic sign-bit trick so two's-complement
// integers and IEEE-754 floats sort the same as byte slices that they do as
// numbers. Variable-length payloads (strings, keywords, bytes) are naturally
// order-preserving because Go (and every KV substrate) compares []byte
// lexicographically; a terminator byte guarantees a short string sorts
// before any longer string that has it as a prefix.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// MaxInlineKeyBytes bounds how large an encoded string/bytes payload may be
// before it is stored out of line in the "giants" dbi and replaced in the
// index key by its content hash (§4.A, §6 "giants dbi").
const MaxInlineKeyBytes = 400

// ValueType mirrors quill.ValueType's byte values; codec is intentionally
// decoupled from the quill package's Go types so it can be unit tested with
// plain byte slices and primitives.
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
	typeNil // internal: the type DecodeTuple reports for a nil component
)

// GiantRef is what gets embedded in an index key in place of an oversize
// inline value: a content hash pointing into the "giants" dbi.
type GiantRef struct {
	Hash [8]byte
}

// ContentHash returns the xxhash64 of data, used both for the giants
// overflow path here and for the full-text engine's term table.
func ContentHash(data []byte) [8]byte {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], xxhash.Sum64(data))
	return h
}

// Encode serializes v (of declared type vt) to an ordered byte key. Only
// scalar types are accepted; tuple values are encoded with EncodeTuple.
func Encode(v interface{}, vt ValueType) ([]byte, error) {
	switch vt {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("codec: expected string, got %T", v)
		}
		return encodeBytesTerminated([]byte(s)), nil

	case TypeLong:
		i, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return encodeLong(i), nil

	case TypeDouble:
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		return encodeDouble(f), nil

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("codec: expected bool, got %T", v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case TypeKeyword, TypeSymbol:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("codec: expected string form for keyword/symbol, got %T", v)
		}
		return encodeBytesTerminated([]byte(s)), nil

	case TypeUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("codec: expected uuid.UUID, got %T", v)
		}
		b := u // [16]byte, already in RFC 4122 byte order which sorts correctly
		return b[:], nil

	case TypeInstant:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("codec: expected time.Time, got %T", v)
		}
		return encodeLong(t.UnixNano()), nil

	case TypeRef:
		i, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return encodeUnsignedLong(uint64(i)), nil

	case TypeBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("codec: expected []byte, got %T", v)
		}
		return append([]byte{}, b...), nil

	default:
		return nil, fmt.Errorf("codec: %v is not a scalar type (use EncodeTuple for tuples)", vt)
	}
}

// Decode is the inverse of Encode.
func Decode(vt ValueType, data []byte) (interface{}, error) {
	switch vt {
	case TypeString, TypeKeyword, TypeSymbol:
		s, err := decodeBytesTerminated(data)
		return string(s), err

	case TypeLong:
		return decodeLong(data)

	case TypeDouble:
		return decodeDouble(data)

	case TypeBoolean:
		if len(data) != 1 {
			return nil, fmt.Errorf("codec: bool payload must be 1 byte, got %d", len(data))
		}
		return data[0] != 0, nil

	case TypeUUID:
		if len(data) != 16 {
			return nil, fmt.Errorf("codec: uuid payload must be 16 bytes, got %d", len(data))
		}
		var u uuid.UUID
		copy(u[:], data)
		return u, nil

	case TypeInstant:
		nanos, err := decodeLong(data)
		if err != nil {
			return nil, err
		}
		return time.Unix(0, nanos).UTC(), nil

	case TypeRef:
		u, err := decodeUnsignedLong(data)
		if err != nil {
			return nil, err
		}
		return int64(u), nil

	case TypeBytes:
		return append([]byte{}, data...), nil

	default:
		return nil, fmt.Errorf("codec: %v is not a scalar type (use DecodeTuple for tuples)", vt)
	}
}

// EncodeTuple concatenates component encodings with (type-tag, length)
// prefixes so the result preserves component-wise lexicographic order. A
// nil component encodes as a single 0x00 byte and every other component's
// type tag is written shifted up by one, so nil sorts below every real type
// tag (§4.A: "nil in a tuple-component position sorts lowest").
func EncodeTuple(components []interface{}, componentTypes []ValueType) ([]byte, error) {
	if len(componentTypes) != 0 && len(components) != len(componentTypes) {
		return nil, fmt.Errorf("codec: tuple has %d components but %d declared types", len(components), len(componentTypes))
	}

	var out []byte
	for i, c := range components {
		if c == nil {
			out = append(out, 0)
			continue
		}
		vt := componentTypes[i]
		payload, err := Encode(c, vt)
		if err != nil {
			return nil, fmt.Errorf("codec: tuple component %d: %w", i, err)
		}
		out = append(out, byte(vt)+1)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		out = append(out, lenBuf[:]...)
		out = append(out, payload...)
	}
	return out, nil
}

// DecodeTuple is the inverse of EncodeTuple.
func DecodeTuple(data []byte) ([]interface{}, []ValueType, error) {
	var values []interface{}
	var types []ValueType

	for len(data) > 0 {
		raw := data[0]
		data = data[1:]
		if raw == 0 {
			values = append(values, nil)
			types = append(types, typeNil)
			continue
		}
		tag := ValueType(raw - 1)
		if len(data) < 4 {
			return nil, nil, fmt.Errorf("codec: truncated tuple component length")
		}
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return nil, nil, fmt.Errorf("codec: truncated tuple component payload")
		}
		payload := data[:n]
		data = data[n:]
		v, err := Decode(tag, payload)
		if err != nil {
			return nil, nil, fmt.Errorf("codec: tuple component: %w", err)
		}
		values = append(values, v)
		types = append(types, tag)
	}
	return values, types, nil
}

// IsOversize reports whether an encoded payload must be stored out of line
// in the giants dbi rather than inline in an index key.
func IsOversize(encoded []byte) bool {
	return len(encoded) > MaxInlineKeyBytes
}

// GiantKey derives the giants-dbi lookup key for an oversize value: its
// content hash. The index key embeds this hash instead of the full payload.
func GiantKey(encoded []byte) []byte {
	h := ContentHash(encoded)
	return h[:]
}

func encodeBytesTerminated(b []byte) []byte {
	// A 0x00 terminator is no greater than any byte a longer string could
	// continue with, so a string sorts before any longer string it
	// prefixes, also when further key bytes follow the encoding. It also
	// lets a decode detect a truncated payload.
	out := make([]byte, len(b)+1)
	copy(out, b)
	out[len(b)] = 0x00
	return out
}

func decodeBytesTerminated(data []byte) ([]byte, error) {
	if len(data) == 0 || data[len(data)-1] != 0x00 {
		return nil, fmt.Errorf("codec: missing string terminator")
	}
	return data[:len(data)-1], nil
}

func encodeLong(i int64) []byte {
	// Flip the sign bit so that two's-complement ordering matches
	// unsigned byte-wise ordering: negative numbers (sign bit 1) become
	// < 0x8000000000000000, positive numbers (sign bit 0) become >=.
	u := uint64(i) ^ (1 << 63)
	return encodeUnsignedLong(u)
}

func decodeLong(data []byte) (int64, error) {
	u, err := decodeUnsignedLong(data)
	if err != nil {
		return 0, err
	}
	return int64(u ^ (1 << 63)), nil
}

func encodeUnsignedLong(u uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf
}

func decodeUnsignedLong(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("codec: long payload must be 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeDouble(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		// Positive: flip the sign bit so positives sort above negatives.
		bits ^= 1 << 63
	} else {
		// Negative: flip all bits so larger-magnitude negatives (which
		// have a numerically smaller IEEE754 bit pattern) sort lower.
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

func decodeDouble(data []byte) (float64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("codec: double payload must be 8 bytes, got %d", len(data))
	}
	bits := binary.BigEndian.Uint64(data)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("codec: expected integer, got %T", v)
	}
}

func asFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("codec: expected float, got %T", v)
	}
}
