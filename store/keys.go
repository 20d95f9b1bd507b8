// Package store implements the datom indices (EAVT/AEVT/AVET/VAET) over the
// quill/kv substrate. Key layout keeps the teacher's per-index binary
// scheme (datalog/storage/key_encoder_binary.go): a 1-byte index prefix
// followed by concatenated components in an index-specific order, with the
// last-byte-increment trick for building prefix-scan end keys. Component
// encodings differ because quill.Identity is a sequential uint64 rather
// than the teacher's 20-byte content hash, and attribute idents are
// variable-length keyword strings rather than fixed 32-byte slots.
package store

import (
	"encoding/binary"
	"fmt"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/codec"
)

// IndexType selects one of the four maintained orderings. Unlike the
// teacher, which always maintains a fifth TAEV index plus AVET/VAET for
// every attribute unconditionally, quill writes AVET only for attributes
// schema.Reverse marks index/unique/ref, and VAET only for ref attributes
// (spec.md §3's indices note, testable property 1).
type IndexType byte

const (
	EAVT IndexType = iota
	AEVT
	AVET
	VAET
)

func (idx IndexType) String() string {
	switch idx {
	case EAVT:
		return "EAVT"
	case AEVT:
		return "AEVT"
	case AVET:
		return "AVET"
	case VAET:
		return "VAET"
	default:
		return fmt.Sprintf("unknown(%d)", byte(idx))
	}
}

func encodeEntity(e quill.Identity) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, e.Uint64())
	return buf
}

func decodeEntity(b []byte) (quill.Identity, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("store: entity component must be 8 bytes, got %d", len(b))
	}
	return quill.NewIdentity(binary.BigEndian.Uint64(b)), nil
}

func encodeAttr(a quill.Keyword) []byte {
	b := a.Bytes()
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	out := make([]byte, 0, 2+len(b))
	out = append(out, lenBuf[:]...)
	out = append(out, b...)
	return out
}

func decodeAttr(data []byte) (quill.Keyword, []byte, error) {
	if len(data) < 2 {
		return quill.Keyword{}, nil, fmt.Errorf("store: truncated attribute length")
	}
	n := binary.BigEndian.Uint16(data[:2])
	data = data[2:]
	if int(n) > len(data) {
		return quill.Keyword{}, nil, fmt.Errorf("store: truncated attribute payload")
	}
	return quill.NewKeyword(string(data[:n])), data[n:], nil
}

// encodeValue produces a (type-tag, length-prefixed payload) component for
// V. Oversize payloads (past codec.MaxInlineKeyBytes) are replaced by their
// giant-table content hash; the actual bytes are written separately to the
// giants dbi by the caller (see store.go's putGiantIfNeeded).
func encodeValue(v quill.Value, vt codec.ValueType) ([]byte, bool, error) {
	payload, err := scalarPayload(v, vt)
	if err != nil {
		return nil, false, err
	}

	isGiant := codec.IsOversize(payload)
	if isGiant {
		payload = codec.GiantKey(payload)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out := make([]byte, 0, 1+1+4+len(payload))
	out = append(out, byte(vt))
	if isGiant {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out, isGiant, nil
}

func scalarPayload(v quill.Value, vt codec.ValueType) ([]byte, error) {
	switch x := v.(type) {
	case quill.Identity:
		return codec.Encode(int64(x.Uint64()), codec.TypeRef)
	case quill.Keyword:
		return codec.Encode(x.String(), codec.TypeKeyword)
	case quill.Symbol:
		return codec.Encode(x.String(), codec.TypeSymbol)
	case quill.Tuple:
		return encodeTupleValue(x)
	default:
		return codec.Encode(v, vt)
	}
}

func encodeTupleValue(t quill.Tuple) ([]byte, error) {
	components := make([]interface{}, len(t))
	types := make([]codec.ValueType, len(t))
	for i, c := range t {
		if c == nil {
			continue
		}
		cvt := codecTypeOf(c)
		components[i] = rawScalar(c, cvt)
		types[i] = cvt
	}
	return codec.EncodeTuple(components, types)
}

// rawScalar converts quill-domain scalar wrapper types (Identity, Keyword,
// Symbol) to the plain Go primitive codec.Encode expects, mirroring
// scalarPayload's dispatch for use inside a tuple component.
func rawScalar(v quill.Value, vt codec.ValueType) interface{} {
	switch x := v.(type) {
	case quill.Identity:
		return int64(x.Uint64())
	case quill.Keyword:
		return x.String()
	case quill.Symbol:
		return x.String()
	default:
		return v
	}
}

func codecTypeOf(v quill.Value) codec.ValueType {
	return codec.ValueType(quill.TypeOf(v))
}

// decodeValueComponent parses an encoded V component back into (vt,
// isGiant, payloadOrHash).
func decodeValueComponent(data []byte) (vt codec.ValueType, isGiant bool, payload []byte, rest []byte, err error) {
	if len(data) < 6 {
		return 0, false, nil, nil, fmt.Errorf("store: truncated value component")
	}
	vt = codec.ValueType(data[0])
	isGiant = data[1] != 0
	n := binary.BigEndian.Uint32(data[2:6])
	data = data[6:]
	if uint32(len(data)) < n {
		return 0, false, nil, nil, fmt.Errorf("store: truncated value payload")
	}
	return vt, isGiant, data[:n], data[n:], nil
}

// EncodeKey builds the binary index key for a datom's (E, A, V) under the
// given index ordering. Tx is deliberately not part of the key: quill keeps
// only a live index, not a history log (spec.md §3's "no asOf/history kept
// beyond the current index"), so a retraction must find the same key
// regardless of which transaction originally asserted it. Tx and Op instead
// travel in the value payload -- see encodeDatomValue in store.go.
func EncodeKey(idx IndexType, e quill.Identity, a quill.Keyword, vEncoded []byte) []byte {
	prefix := []byte{byte(idx)}
	eb := encodeEntity(e)
	ab := encodeAttr(a)

	switch idx {
	case EAVT:
		return concat(prefix, eb, ab, vEncoded)
	case AEVT:
		return concat(prefix, ab, eb, vEncoded)
	case AVET:
		return concat(prefix, ab, vEncoded, eb)
	case VAET:
		// Only used for ref attributes, where V is itself a fixed 8-byte
		// entity id -- see encodeValue/EncodeKey callers in store.go.
		return concat(prefix, vEncoded, ab, eb)
	default:
		panic(fmt.Sprintf("store: unknown index type %v", idx))
	}
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// EncodePrefix builds a scan prefix for an index, given however many
// leading components the caller knows (e.g. just E for an EAVT scan of one
// entity's datoms, or E+A for one attribute of one entity).
func EncodePrefix(idx IndexType, parts ...[]byte) []byte {
	return concat(append([][]byte{{byte(idx)}}, parts...)...)
}
