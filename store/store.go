package store

import (
	"encoding/binary"
	"fmt"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/codec"
	"github.com/quilldb/quill/kv"
	"github.com/quilldb/quill/schema"
)

// giantsPrefix namespaces the out-of-line value table inside the shared
// Badger keyspace, the same "separate dbi via key prefix" idiom quill/kv's
// doc comment describes.
var giantsPrefix = []byte{0xFE}

// NeedsAVET/NeedsVAET are the selectivity rules component D adds on top of
// the teacher's "always write every index" behavior (spec.md §3, testable
// property 1): AVET only for indexed/unique/ref attributes, VAET only for
// ref attributes.
type indexPolicy struct {
	schema *schema.Schema
}

func (p indexPolicy) indicesFor(a quill.Keyword) []IndexType {
	idxs := []IndexType{EAVT, AEVT}
	if p.schema == nil || p.schema.NeedsAVET(a) {
		idxs = append(idxs, AVET)
	}
	if p.schema != nil && p.schema.IsRef(a) {
		idxs = append(idxs, VAET)
	}
	return idxs
}

// Store is the datom index, backed by a kv.DB. A Store is opened against a
// schema so it knows which secondary indices apply to which attributes;
// see schema.Schema.NeedsAVET/IsRef.
type Store struct {
	db     *kv.DB
	schema *schema.Schema
}

// Open opens (or creates) a datom store at path.
func Open(path string, sch *schema.Schema) (*Store, error) {
	db, err := kv.Open(path, kv.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, schema: sch}, nil
}

// OpenInMemory opens a transient store, used by tests.
func OpenInMemory(sch *schema.Schema) (*Store, error) {
	db, err := kv.Open("", kv.Options{InMemory: true})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, schema: sch}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetSchema swaps in a new schema, e.g. after a schema-as-data transaction
// adds attributes. Existing index entries are not rewritten: a newly
// index=true attribute only gains AVET entries for datoms asserted after
// the change, matching how the teacher treats schema as advisory metadata
// rather than something that retroactively rewrites storage.
func (s *Store) SetSchema(sch *schema.Schema) {
	s.schema = sch
}

// Assert writes datoms into every index the schema says applies.
func (s *Store) Assert(datoms []quill.Datom) error {
	return s.db.Update(func(txn kv.Txn) error {
		for _, d := range datoms {
			if err := s.assertDatom(txn, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// Retract removes datoms from every index they were written to.
func (s *Store) Retract(datoms []quill.Datom) error {
	return s.db.Update(func(txn kv.Txn) error {
		for _, d := range datoms {
			if err := s.retractDatom(txn, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) assertDatom(txn kv.Txn, d quill.Datom) error {
	vt := codec.ValueType(quill.TypeOf(d.V))
	vEncoded, isGiant, err := encodeValue(d.V, vt)
	if err != nil {
		return fmt.Errorf("store: encode value for %s: %w", d.A, err)
	}
	if isGiant {
		if err := s.putGiant(txn, d.V, vt); err != nil {
			return err
		}
	}

	policy := indexPolicy{schema: s.schema}
	for _, idx := range policy.indicesFor(d.A) {
		key := EncodeKey(idx, d.E, d.A, vEncoded)
		if err := txn.Set(key, encodeDatomValue(d)); err != nil {
			return fmt.Errorf("store: write to %s index: %w", idx, err)
		}
	}
	return nil
}

func (s *Store) retractDatom(txn kv.Txn, d quill.Datom) error {
	vt := codec.ValueType(quill.TypeOf(d.V))
	vEncoded, _, err := encodeValue(d.V, vt)
	if err != nil {
		return fmt.Errorf("store: encode value for %s: %w", d.A, err)
	}

	// The key is built from (E, A, V) alone, so this finds and removes the
	// index entry no matter which transaction originally wrote it.
	policy := indexPolicy{schema: s.schema}
	for _, idx := range policy.indicesFor(d.A) {
		key := EncodeKey(idx, d.E, d.A, vEncoded)
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("store: delete from %s index: %w", idx, err)
		}
	}
	return nil
}

func (s *Store) putGiant(txn kv.Txn, v quill.Value, vt codec.ValueType) error {
	payload, err := scalarPayload(v, vt)
	if err != nil {
		return err
	}
	key := append(append([]byte{}, giantsPrefix...), codec.GiantKey(payload)...)
	return txn.Set(key, payload)
}

func (s *Store) getGiant(txn kv.Txn, hash []byte) ([]byte, error) {
	key := append(append([]byte{}, giantsPrefix...), hash...)
	return txn.Get(key)
}

// Iterator walks a range of one index, lazily decoding datoms. It is tied
// to the read transaction that produced it; the teacher's BadgerIterator
// shares this same discipline -- callers must Close it before the parent
// view/update completes (spec.md §5's "cursors must be released before the
// transaction closes").
type Iterator struct {
	cur   kv.Cursor
	idx   IndexType
	store *Store
	txn   kv.Txn
}

// Next advances the iterator; false means exhausted.
func (it *Iterator) Next() bool {
	return it.cur.Next()
}

// Datom decodes the datom at the iterator's current position.
func (it *Iterator) Datom() (quill.Datom, error) {
	val, err := it.cur.Value()
	if err != nil {
		return quill.Datom{}, fmt.Errorf("store: read index value: %w", err)
	}
	return decodeDatomKey(it.idx, it.cur.Key(), val, it.store, it.txn)
}

// Close releases the iterator's cursor.
func (it *Iterator) Close() {
	it.cur.Close()
}

// Scan runs fn with an Iterator over [start, end) of the given index,
// inside a single read transaction. This shape (rather than returning an
// Iterator that outlives the call) keeps Badger's single-reader-txn rule
// impossible to violate by accident.
func (s *Store) Scan(idx IndexType, start, end []byte, fn func(*Iterator) error) error {
	return s.db.View(func(txn kv.Txn) error {
		cur := txn.Scan(start, end)
		defer cur.Close()
		it := &Iterator{cur: cur, idx: idx, store: s, txn: txn}
		return fn(it)
	})
}

// Datoms returns every datom under idx with the given leading key
// components (e.g. just an encoded entity for EAVT, or entity+attribute
// for a single-attribute lookup), decoded into a slice. The transactor, the
// query evaluator's pattern matcher and the lookup helpers below all read
// through it; only Lookup uses Scan directly.
func (s *Store) Datoms(idx IndexType, prefixParts ...[]byte) ([]quill.Datom, error) {
	prefix := EncodePrefix(idx, prefixParts...)
	start, end := kv.PrefixRange(prefix)

	var out []quill.Datom
	err := s.Scan(idx, start, end, func(it *Iterator) error {
		for it.Next() {
			d, err := it.Datom()
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// ByAttribute returns every datom carrying attribute a, in AEVT order (so
// entities come out sorted). Used by the query evaluator to match a data
// pattern whose E and V positions are both unbound or both variables, e.g.
// [?e :person/name ?n].
func (s *Store) ByAttribute(a quill.Keyword) ([]quill.Datom, error) {
	return s.Datoms(AEVT, encodeAttr(a))
}

// ByAttributeValue returns every datom matching (a, v), via an AVET scan
// when the schema maintains one for a, falling back to an AEVT scan plus an
// in-memory value filter otherwise (spec.md §3's "AVET only for
// indexed/unique/ref attributes" means not every attribute supports a direct
// value-range scan).
func (s *Store) ByAttributeValue(a quill.Keyword, v quill.Value) ([]quill.Datom, error) {
	policy := indexPolicy{schema: s.schema}
	hasAVET := false
	for _, idx := range policy.indicesFor(a) {
		if idx == AVET {
			hasAVET = true
		}
	}
	if hasAVET {
		vt := codec.ValueType(quill.TypeOf(v))
		vEncoded, _, err := encodeValue(v, vt)
		if err != nil {
			return nil, err
		}
		return s.Datoms(AVET, encodeAttr(a), vEncoded)
	}

	all, err := s.ByAttribute(a)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if quill.CompareValues(d.V, v) == 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

// EntityAttrDatoms returns every current datom for (e, a), like EntityAttr
// but preserving Tx/Op, used to match a pattern with a bound entity and
// attribute but a variable value, e.g. [42 :person/name ?n].
func (s *Store) EntityAttrDatoms(e quill.Identity, a quill.Keyword) ([]quill.Datom, error) {
	return s.Datoms(EAVT, encodeEntity(e), encodeAttr(a))
}

// Lookup resolves a (unique attribute, value) pair to the entity that
// currently carries it via an AVET scan, returning (0, false, nil) if no
// datom matches. Callers are expected to have already confirmed a is
// unique -- Lookup itself does not consult the schema.
func (s *Store) Lookup(a quill.Keyword, v quill.Value) (quill.Identity, bool, error) {
	vt := codec.ValueType(quill.TypeOf(v))
	vEncoded, _, err := encodeValue(v, vt)
	if err != nil {
		return 0, false, err
	}
	prefix := EncodePrefix(AVET, encodeAttr(a), vEncoded)
	start, end := kv.PrefixRange(prefix)

	var found quill.Identity
	var ok bool
	err = s.Scan(AVET, start, end, func(it *Iterator) error {
		if it.Next() {
			d, derr := it.Datom()
			if derr != nil {
				return derr
			}
			found = d.E
			ok = true
		}
		return nil
	})
	return found, ok, err
}

// EntityAttr returns every current value of (e, a), useful for reading
// cardinality-many attributes or checking an attribute's current value(s)
// before a CAS or a tuple-attr recompute.
func (s *Store) EntityAttr(e quill.Identity, a quill.Keyword) ([]quill.Value, error) {
	datoms, err := s.Datoms(EAVT, encodeEntity(e), encodeAttr(a))
	if err != nil {
		return nil, err
	}
	values := make([]quill.Value, 0, len(datoms))
	for _, d := range datoms {
		values = append(values, d.V)
	}
	return values, nil
}

// Entity returns every current datom for e (a full EAVT scan of one
// entity), used by retractEntity and by tuple-attr recomputation to read
// an entity's current attribute set.
func (s *Store) Entity(e quill.Identity) ([]quill.Datom, error) {
	return s.Datoms(EAVT, encodeEntity(e))
}

// ReferencesTo returns every datom whose value is a ref to e, found via a
// VAET scan -- used by retractEntity to find and remove incoming
// references (spec.md §4.E "plus all datoms where V=target and A is a
// ref").
func (s *Store) ReferencesTo(e quill.Identity) ([]quill.Datom, error) {
	vEncoded, _, err := encodeValue(e, codec.TypeRef)
	if err != nil {
		return nil, err
	}
	return s.Datoms(VAET, vEncoded)
}

// encodeDatomValue is the Badger value payload for an index entry: the
// asserting transaction id plus the op flag. Tx deliberately does not live
// in the key (see EncodeKey's doc comment), so it has to travel somewhere a
// reader can recover it; live-index entries are always Added (retraction
// deletes the key outright), so Op is carried mostly for symmetry with a
// future history log rather than something decodeDatomKey branches on today.
func encodeDatomValue(d quill.Datom) []byte {
	out := make([]byte, 9)
	binary.BigEndian.PutUint64(out[:8], d.Tx)
	if d.Op == quill.Added {
		out[8] = 1
	}
	return out
}

func decodeDatomValue(val []byte) (tx uint64, op quill.Op, err error) {
	if len(val) != 9 {
		return 0, quill.Added, fmt.Errorf("store: index value must be 9 bytes, got %d", len(val))
	}
	tx = binary.BigEndian.Uint64(val[:8])
	if val[8] != 0 {
		op = quill.Added
	} else {
		op = quill.Retracted
	}
	return tx, op, nil
}

func decodeDatomKey(idx IndexType, key []byte, val []byte, s *Store, txn kv.Txn) (quill.Datom, error) {
	if len(key) < 1 {
		return quill.Datom{}, fmt.Errorf("store: empty key")
	}
	body := key[1:]

	tx, op, err := decodeDatomValue(val)
	if err != nil {
		return quill.Datom{}, err
	}

	var e quill.Identity
	var a quill.Keyword
	var vt codec.ValueType
	var isGiant bool
	var payload []byte

	switch idx {
	case EAVT:
		e, body, err = takeEntity(body)
		if err != nil {
			return quill.Datom{}, err
		}
		a, body, err = decodeAttr(body)
		if err != nil {
			return quill.Datom{}, err
		}
		vt, isGiant, payload, _, err = decodeValueComponent(body)

	case AEVT:
		a, body, err = decodeAttr(body)
		if err != nil {
			return quill.Datom{}, err
		}
		e, body, err = takeEntity(body)
		if err != nil {
			return quill.Datom{}, err
		}
		vt, isGiant, payload, _, err = decodeValueComponent(body)

	case AVET:
		a, body, err = decodeAttr(body)
		if err != nil {
			return quill.Datom{}, err
		}
		vt, isGiant, payload, body, err = decodeValueComponent(body)
		if err != nil {
			return quill.Datom{}, err
		}
		e, _, err = takeEntity(body)

	case VAET:
		vt, isGiant, payload, body, err = decodeValueComponent(body)
		if err != nil {
			return quill.Datom{}, err
		}
		a, body, err = decodeAttr(body)
		if err != nil {
			return quill.Datom{}, err
		}
		e, _, err = takeEntity(body)

	default:
		return quill.Datom{}, fmt.Errorf("store: unknown index type %v", idx)
	}

	if err != nil {
		return quill.Datom{}, err
	}

	v, err := decodeScalarValue(vt, isGiant, payload, s, txn)
	if err != nil {
		return quill.Datom{}, err
	}

	return quill.Datom{E: e, A: a, V: v, Tx: tx, Op: op}, nil
}

func takeEntity(body []byte) (quill.Identity, []byte, error) {
	if len(body) < 8 {
		return 0, nil, fmt.Errorf("store: truncated entity component")
	}
	e, err := decodeEntity(body[:8])
	return e, body[8:], err
}

func decodeScalarValue(vt codec.ValueType, isGiant bool, payload []byte, s *Store, txn kv.Txn) (quill.Value, error) {
	if isGiant {
		full, err := s.getGiant(txn, payload)
		if err != nil {
			return nil, fmt.Errorf("store: resolve giant value: %w", err)
		}
		payload = full
	}

	switch vt {
	case codec.TypeRef:
		raw, err := codec.Decode(vt, payload)
		if err != nil {
			return nil, err
		}
		return quill.NewIdentity(uint64(raw.(int64))), nil
	case codec.TypeKeyword:
		raw, err := codec.Decode(vt, payload)
		if err != nil {
			return nil, err
		}
		return quill.NewKeyword(raw.(string)), nil
	case codec.TypeSymbol:
		raw, err := codec.Decode(vt, payload)
		if err != nil {
			return nil, err
		}
		return quill.NewSymbol(raw.(string)), nil
	case codec.TypeTuple, codec.TypeHomogeneousTuple, codec.TypeHeterogeneousTuple:
		values, _, err := codec.DecodeTuple(payload)
		if err != nil {
			return nil, err
		}
		t := make(quill.Tuple, len(values))
		copy(t, values)
		return t, nil
	default:
		return codec.Decode(vt, payload)
	}
}
