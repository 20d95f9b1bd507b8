package executor

import (
	"fmt"
	"strings"

	"github.com/quilldb/quill"
)

// tupleKey is a dedup/hash-join key built from a tuple's values. The
// teacher hashes tuples with FNV-1a over unsafe.Pointer bit patterns
// (datalog/executor/tuple_key.go) to avoid allocating during a hash join;
// this executor trades that for a plain string key built from each value's
// quill-domain-aware textual form. It is slower per comparison but the
// whole executor is materialized-only and has no streaming hot path to
// protect, so the simpler, allocation-heavy key is the right tradeoff here
// (see DESIGN.md).
type tupleKey string

// newTupleKey builds a key from the values at the given column indices,
// used by HashJoin/SemiJoin/AntiJoin to key on a join column subset.
func newTupleKey(t Tuple, indices []int) tupleKey {
	var sb strings.Builder
	for _, i := range indices {
		writeKeyComponent(&sb, t[i])
	}
	return tupleKey(sb.String())
}

// newTupleKeyFull builds a key from every column, used to deduplicate
// whole tuples at relation construction time.
func newTupleKeyFull(t Tuple) tupleKey {
	var sb strings.Builder
	for _, v := range t {
		writeKeyComponent(&sb, v)
	}
	return tupleKey(sb.String())
}

// writeKeyComponent renders one value with its dynamic type as a prefix,
// so e.g. the string "1" and the int64 1 never collide.
func writeKeyComponent(sb *strings.Builder, v interface{}) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("n:")
	case quill.Identity:
		fmt.Fprintf(sb, "e:%d;", x.Uint64())
	case quill.Keyword:
		fmt.Fprintf(sb, "k:%s;", x.String())
	case quill.Symbol:
		fmt.Fprintf(sb, "y:%s;", x.String())
	case quill.Tuple:
		sb.WriteString("t:(")
		for _, c := range x {
			writeKeyComponent(sb, c)
		}
		sb.WriteString(");")
	default:
		fmt.Fprintf(sb, "%T:%v;", v, v)
	}
}
