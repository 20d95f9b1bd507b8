package kv

// Inverted-list operations layered on top of the plain Get/Set/Scan Txn
// contract. The teacher never needed these -- it has no search engine --
// but quill/fulltext's postings (which documents contain a term) and
// deletion sets (which terms are one edit away from another) are both
// "membership in a set keyed by something else", and a set keyed by bytes
// is just a Badger key prefix with an empty value.
//
// A list's members live at listPrefix \x00 member, so two different lists
// can never collide as long as their prefixes are themselves
// prefix-free (the dbi/term encoding callers use already guarantees this,
// the same way EAVT/AEVT/AVET/VAET keys never collide).

func listSpace(listPrefix []byte) []byte {
	space := make([]byte, len(listPrefix)+1)
	copy(space, listPrefix)
	space[len(listPrefix)] = 0x00
	return space
}

func listKey(listPrefix, member []byte) []byte {
	space := listSpace(listPrefix)
	key := make([]byte, len(space)+len(member))
	copy(key, space)
	copy(key[len(space):], member)
	return key
}

// ListAdd adds member to the list identified by listPrefix. Adding a member
// already present is a no-op.
func ListAdd(t Txn, listPrefix, member []byte) error {
	return t.Set(listKey(listPrefix, member), nil)
}

// ListRemove removes member from the list identified by listPrefix. Removing
// an absent member is not an error.
func ListRemove(t Txn, listPrefix, member []byte) error {
	return t.Delete(listKey(listPrefix, member))
}

// InList reports whether member belongs to the list identified by
// listPrefix.
func InList(t Txn, listPrefix, member []byte) (bool, error) {
	_, err := t.Get(listKey(listPrefix, member))
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListCount returns the number of members in the list identified by
// listPrefix.
func ListCount(t Txn, listPrefix []byte) (int, error) {
	start, end := PrefixRange(listSpace(listPrefix))
	c := t.Scan(start, end)
	defer c.Close()
	n := 0
	for c.Next() {
		n++
	}
	return n, nil
}

// ListIter calls fn once per member of the list identified by listPrefix, in
// ascending byte order, stopping at the first error fn returns.
func ListIter(t Txn, listPrefix []byte, fn func(member []byte) error) error {
	space := listSpace(listPrefix)
	start, end := PrefixRange(space)
	c := t.Scan(start, end)
	defer c.Close()
	for c.Next() {
		key := c.Key()
		member := append([]byte{}, key[len(space):]...)
		if err := fn(member); err != nil {
			return err
		}
	}
	return nil
}
