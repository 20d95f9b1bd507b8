package quill

import (
	"fmt"
	"strconv"
)

// Identity is an entity identifier: a 64-bit integer, monotonically
// assigned by the transactor (see quill/transactor). It is distinct from a
// tempid (a placeholder valid only within one transaction, see
// transactor.TempID) and from a lookup-ref (an [attr value] pair resolved
// to an Identity during transaction processing).
type Identity uint64

// NewIdentity wraps a raw entity id.
func NewIdentity(id uint64) Identity {
	return Identity(id)
}

// Uint64 returns the raw entity id.
func (i Identity) Uint64() uint64 {
	return uint64(i)
}

// String returns the decimal representation of the entity id.
func (i Identity) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// Compare orders two identities numerically.
func (i Identity) Compare(other Identity) int {
	switch {
	case i < other:
		return -1
	case i > other:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two identities refer to the same entity.
func (i Identity) Equal(other Identity) bool {
	return i == other
}

// IsNil reports whether this is the zero identity (entity id 0 is never
// assigned by the transactor, so it doubles as a "no entity" sentinel).
func (i Identity) IsNil() bool {
	return i == 0
}

// GoString supports %#v formatting in error messages and test failures.
func (i Identity) GoString() string {
	return fmt.Sprintf("quill.Identity(%d)", uint64(i))
}
