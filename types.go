// Package quill implements the core data model of an embedded, transactional
// triple store: datoms, entity identities, attribute keywords, and typed
// values. Storage, querying, and full-text search are implemented in the
// quill/store, quill/transactor, quill/executor, and quill/fulltext
// sub-packages; this package holds the types they all share.
package quill

import "fmt"

// Op records whether a Datom asserts or retracts a fact.
type Op bool

const (
	// Added marks a Datom as an assertion.
	Added Op = true
	// Retracted marks a Datom as a retraction.
	Retracted Op = false
)

func (o Op) String() string {
	if o == Added {
		return "added"
	}
	return "retracted"
}

// Datom is the fundamental unit of data: an (entity, attribute, value,
// transaction, added?) fact.
type Datom struct {
	E  Identity // entity identifier
	A  Keyword  // attribute keyword
	V  Value    // typed value (see value.go)
	Tx uint64   // transaction id
	Op Op       // asserted or retracted
}

// String returns a readable representation of the Datom.
func (d Datom) String() string {
	mark := ""
	if d.Op == Retracted {
		mark = "-"
	}
	return fmt.Sprintf("%s[%s %s %v %d]", mark, d.E, d.A, d.V, d.Tx)
}

// Keyword represents an attribute identifier. Keywords are interned
// strings, not hashes, so they remain human-readable.
type Keyword struct {
	value string
}

// NewKeyword creates a keyword from its string form (e.g. ":user/name").
func NewKeyword(s string) Keyword {
	return Keyword{value: s}
}

// String returns the keyword string.
func (k Keyword) String() string {
	return k.value
}

// Compare orders two keywords lexicographically.
func (k Keyword) Compare(other Keyword) int {
	switch {
	case k.value < other.value:
		return -1
	case k.value > other.value:
		return 1
	default:
		return 0
	}
}

// Bytes returns the keyword's UTF-8 bytes.
func (k Keyword) Bytes() []byte {
	return []byte(k.value)
}

// IsEmpty reports whether the keyword has no value set.
func (k Keyword) IsEmpty() bool {
	return k.value == ""
}
