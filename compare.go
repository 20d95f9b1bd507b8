package quill

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompareValues compares two values and returns -1/0/1 for left</=/> right.
// nil sorts lowest, consistent with §4.A's "nil in a tuple-component
// position sorts lowest". Cross-type comparisons fall back to a stable
// (if arbitrary) type-tag ordering so that sorts are always total, mirroring
// the teacher's CompareValues in datalog/compare.go.
func CompareValues(left, right interface{}) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	if id1, ok := left.(Identity); ok {
		if id2, ok := right.(Identity); ok {
			return id1.Compare(id2)
		}
		return crossTypeOrder(left, right)
	}
	if kw1, ok := left.(Keyword); ok {
		if kw2, ok := right.(Keyword); ok {
			return kw1.Compare(kw2)
		}
		return crossTypeOrder(left, right)
	}
	if sym1, ok := left.(Symbol); ok {
		if sym2, ok := right.(Symbol); ok {
			return strings.Compare(sym1.name, sym2.name)
		}
		return crossTypeOrder(left, right)
	}
	if u1, ok := left.(uuid.UUID); ok {
		if u2, ok := right.(uuid.UUID); ok {
			return strings.Compare(u1.String(), u2.String())
		}
		return crossTypeOrder(left, right)
	}

	switch l := left.(type) {
	case int:
		return compareNumeric(int64(l), right)
	case int64:
		return compareNumeric(l, right)
	case float64:
		return compareFloat(l, right)
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r)
		}
		return crossTypeOrder(left, right)
	case bool:
		if r, ok := right.(bool); ok {
			switch {
			case !l && r:
				return -1
			case l && !r:
				return 1
			default:
				return 0
			}
		}
		return crossTypeOrder(left, right)
	case time.Time:
		if r, ok := right.(time.Time); ok {
			switch {
			case l.Before(r):
				return -1
			case l.After(r):
				return 1
			default:
				return 0
			}
		}
		return crossTypeOrder(left, right)
	case []byte:
		if r, ok := right.([]byte); ok {
			return compareBytesUnsigned(l, r)
		}
		return crossTypeOrder(left, right)
	case Tuple:
		if r, ok := right.(Tuple); ok {
			return compareTuples(l, r)
		}
		return crossTypeOrder(left, right)
	}

	return crossTypeOrder(left, right)
}

func compareTuples(l, r Tuple) int {
	n := len(l)
	if len(r) < n {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		if c := CompareValues(l[i], r[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(l) < len(r):
		return -1
	case len(l) > len(r):
		return 1
	default:
		return 0
	}
}

func compareNumeric(left int64, right interface{}) int {
	switch r := right.(type) {
	case int:
		return compareInt64s(left, int64(r))
	case int64:
		return compareInt64s(left, r)
	case float64:
		return compareFloats(float64(left), r)
	}
	return crossTypeOrder(left, right)
}

func compareFloat(left float64, right interface{}) int {
	switch r := right.(type) {
	case int:
		return compareFloats(left, float64(r))
	case int64:
		return compareFloats(left, float64(r))
	case float64:
		return compareFloats(left, r)
	}
	return crossTypeOrder(left, right)
}

func compareInt64s(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytesUnsigned(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// typeRank assigns a stable ordering between incomparable dynamic types so
// mixed-type sorts remain total (and deterministic) even though they have
// no natural semantic order.
func typeRank(v interface{}) int {
	switch v.(type) {
	case bool:
		return 0
	case int, int64:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case Keyword:
		return 4
	case Symbol:
		return 5
	case uuid.UUID:
		return 6
	case time.Time:
		return 7
	case Identity:
		return 8
	case []byte:
		return 9
	case Tuple:
		return 10
	default:
		return 11
	}
}

func crossTypeOrder(left, right interface{}) int {
	return compareInt64s(int64(typeRank(left)), int64(typeRank(right)))
}

// ValuesEqual reports whether two values are equal under CompareValues'
// notion of equality. Byte-array values compare by content, not identity,
// per §4.E.
func ValuesEqual(a, b interface{}) bool {
	if ba, ok := a.([]byte); ok {
		if bb, ok := b.([]byte); ok {
			return compareBytesUnsigned(ba, bb) == 0
		}
		return false
	}
	return CompareValues(a, b) == 0
}
