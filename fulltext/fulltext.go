// Package fulltext implements the inverted-index full-text search engine
// (spec.md §4.H): tokenization, per-document term/bigram aggregation,
// symmetric-delete fuzzy correction, and ranked retrieval. It shares the
// quill/kv substrate with quill/store but keeps its own key prefixes, the
// same "one Badger instance, many dbis distinguished by prefix" idiom
// quill/kv's doc comment describes. An Index opened with Open needs a
// directory of its own: kv.Open refuses a path that is already open, so it
// cannot share the directory of an open store.Store.
package fulltext

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/codec"
	"github.com/quilldb/quill/kv"
)

// Prefixes partition the shared keyspace into the five structures §4.H
// names. A second byte distinguishes the two sub-tables unigrams actually
// holds: the term -> term-id mapping, and the deletion-variant -> term
// lists the fuzzy corrector needs.
var (
	unigramTermPrefix  = []byte{0x10, 0x00} // term -> term-id
	unigramDeletePrefix = []byte{0x10, 0x01} // deletion variant -> []term (list)
	bigramPrefix       = []byte{0x11}        // (termID1, termID2) -> frequency
	docsPrefix         = []byte{0x12}        // docID -> encoded doc-ref
	termDocsPrefix     = []byte{0x13}        // termID -> []docID (list)
	positionsPrefix    = []byte{0x14}        // (docID, termID) -> []((position, offset))
)

// Options configures the fuzzy corrector and is otherwise just passed
// through to Query.
type Options struct {
	// MaxEditDistance bounds the edit distance (insertions, deletions and
	// substitutions) between a query term and a correction candidate; it is
	// also how many deletions seed each deletion set. Zero disables correction
	// (only exact term matches are considered).
	MaxEditDistance int
	// PrefixLength caps how many leading runes of a term are used to seed
	// its deletion set, the classic SymSpell space/recall tradeoff: terms
	// longer than this only contribute deletes of their prefix, which
	// keeps the deletion index from growing with every suffix variation of
	// long words.
	PrefixLength int
}

// DefaultOptions mirrors the SymSpell defaults most implementations ship
// with: edit distance 2, a 7-rune prefix.
func DefaultOptions() Options {
	return Options{MaxEditDistance: 2, PrefixLength: 7}
}

// Index is a full-text search engine over one kv.DB. Unlike quill/store,
// which partitions indices by schema-driven policy, every document here
// goes through the same five structures; there is no per-attribute
// configuration.
type Index struct {
	db   *kv.DB
	opts Options

	nextDocID  atomic.Uint64
	nextTermID atomic.Uint64
}

// Open opens (or creates) a full-text index at path.
func Open(path string, opts Options) (*Index, error) {
	db, err := kv.Open(path, kv.Options{})
	if err != nil {
		return nil, err
	}
	return &Index{db: db, opts: opts}, nil
}

// OpenInMemory opens a transient index, used by tests.
func OpenInMemory(opts Options) (*Index, error) {
	db, err := kv.Open("", kv.Options{InMemory: true})
	if err != nil {
		return nil, err
	}
	return &Index{db: db, opts: opts}, nil
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func docIDKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func termIDKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func decodeID(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("fulltext: id must be 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
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

func termKey(term string) []byte {
	return concat(unigramTermPrefix, []byte(term))
}

func deleteListKey(variant string) []byte {
	return concat(unigramDeletePrefix, []byte(variant))
}

func termDocsListKey(termID uint64) []byte {
	return concat(termDocsPrefix, termIDKey(termID))
}

func docKey(docID uint64) []byte {
	return concat(docsPrefix, docIDKey(docID))
}

// encodeDocRef stores an application value (the thing a doc-id names) the
// same way quill/store's giants table tags an out-of-line value: a
// one-byte type tag followed by its codec-encoded payload, so docs can
// hold any quill.Value -- a string id, an Identity, a UUID -- not just
// strings.
func encodeDocRef(ref quill.Value) ([]byte, error) {
	vt := codec.ValueType(quill.TypeOf(ref))
	payload, err := codec.Encode(ref, vt)
	if err != nil {
		return nil, fmt.Errorf("fulltext: encode doc-ref: %w", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(vt))
	return append(out, payload...), nil
}

func decodeDocRef(data []byte) (quill.Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("fulltext: empty doc-ref payload")
	}
	vt := codec.ValueType(data[0])
	v, err := codec.Decode(vt, data[1:])
	if err != nil {
		return nil, fmt.Errorf("fulltext: decode doc-ref: %w", err)
	}
	return v, nil
}

// termID returns the term-id for term, allocating and persisting one (and
// seeding its deletion set) if this is the first time the term has been
// seen. Must be called from within a write transaction.
func (ix *Index) termID(txn kv.Txn, term string) (uint64, error) {
	key := termKey(term)
	if raw, err := txn.Get(key); err == nil {
		return decodeID(raw)
	} else if err != kv.ErrNotFound {
		return 0, err
	}

	id := ix.nextTermID.Add(1) - 1
	if err := txn.Set(key, termIDKey(id)); err != nil {
		return 0, err
	}
	for _, variant := range deletionSet(term, ix.opts.MaxEditDistance, ix.opts.PrefixLength) {
		if err := kv.ListAdd(txn, deleteListKey(variant), []byte(term)); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// lookupTermID returns the term-id for an already-indexed term, or
// (0, false) if the term has never been seen.
func (ix *Index) lookupTermID(txn kv.Txn, term string) (uint64, bool, error) {
	raw, err := txn.Get(termKey(term))
	if err == kv.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := decodeID(raw)
	return id, true, err
}
