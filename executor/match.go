package executor

import (
	"fmt"

	"github.com/quilldb/quill"
	"github.com/quilldb/quill/query"
	"github.com/quilldb/quill/store"
)

// StoreMatcher evaluates a single query.DataPattern against a store.Store,
// choosing an index scan by which of the pattern's E/A/V slots are already
// bound. Grounded on the teacher's PatternMatcher (datalog/executor/
// interfaces.go), but simplified to the single-store case: this module has
// no multi-source ($db1, $db2) support, so Match takes one Store rather
// than the teacher's source-keyed map.
type StoreMatcher struct {
	store *store.Store

	// asOfTx, when non-zero, restricts matching to datoms asserted at or
	// before this tx id -- the store keeps only a live index (no history
	// log), so this can exclude datoms from the future but cannot
	// resurrect one a later tx retracted.
	asOfTx uint64
}

// NewStoreMatcher wraps s for pattern matching.
func NewStoreMatcher(s *store.Store) *StoreMatcher {
	return &StoreMatcher{store: s}
}

// NewStoreMatcherAsOf wraps s for pattern matching restricted to datoms
// with Tx <= asOfTx.
func NewStoreMatcherAsOf(s *store.Store, asOfTx uint64) *StoreMatcher {
	return &StoreMatcher{store: s, asOfTx: asOfTx}
}

// Match resolves pattern against the store, substituting bound's values for
// any of the pattern's variables it holds, and returns a Relation with one
// column per variable of the pattern (substituted ones included).
func (m *StoreMatcher) Match(pattern *query.DataPattern, bound map[query.Symbol]interface{}) (Relation, error) {
	eSlot := resolveSlot(pattern.GetE(), bound)
	aSlot := resolveSlot(pattern.GetA(), bound)
	vSlot := resolveSlot(pattern.GetV(), bound)

	datoms, err := m.scan(eSlot, aSlot, vSlot)
	if err != nil {
		return nil, err
	}

	columns := pattern.Symbols()
	tuples := make([]Tuple, 0, len(datoms))
	for _, d := range datoms {
		if m.asOfTx != 0 && d.Tx > m.asOfTx {
			continue
		}
		if eSlot.bound && quill.CompareValues(d.E, eSlot.value) != 0 {
			continue
		}
		if vSlot.bound && quill.CompareValues(d.V, vSlot.value) != 0 {
			continue
		}
		values := query.DatomToValues(d, pattern)
		row := make(Tuple, len(columns))
		for i, c := range columns {
			row[i] = values[c]
		}
		tuples = append(tuples, row)
	}
	return NewRelation(columns, tuples), nil
}

// slot is a pattern position after bindings substitution: either a
// concrete value to filter/scan on, or fully open.
type slot struct {
	bound bool
	value interface{}
}

func resolveSlot(elem query.PatternElement, bound map[query.Symbol]interface{}) slot {
	if elem == nil {
		return slot{}
	}
	switch e := elem.(type) {
	case query.Constant:
		return slot{bound: true, value: e.Value}
	case query.Variable:
		if v, ok := bound[e.Name]; ok {
			return slot{bound: true, value: v}
		}
		return slot{}
	default:
		return slot{}
	}
}

// scan picks the cheapest index scan available given which slots are
// bound. A bound attribute is the common case and lets most patterns hit
// AEVT/AVET/EAVT directly; an unbound attribute falls back to a full EAVT
// scan, which spec.md's Non-goals accept as a documented cost (no generic
// attribute-free pattern is expected to be fast).
func (m *StoreMatcher) scan(e, a, v slot) ([]quill.Datom, error) {
	switch {
	case e.bound && a.bound:
		ident, err := asIdentity(e.value)
		if err != nil {
			return nil, err
		}
		kw, err := asKeyword(a.value)
		if err != nil {
			return nil, err
		}
		return m.store.EntityAttrDatoms(ident, kw)

	case e.bound && !a.bound:
		ident, err := asIdentity(e.value)
		if err != nil {
			return nil, err
		}
		return m.store.Entity(ident)

	case !e.bound && a.bound && v.bound:
		kw, err := asKeyword(a.value)
		if err != nil {
			return nil, err
		}
		val, err := asValue(v.value)
		if err != nil {
			return nil, err
		}
		return m.store.ByAttributeValue(kw, val)

	case !e.bound && a.bound && !v.bound:
		kw, err := asKeyword(a.value)
		if err != nil {
			return nil, err
		}
		return m.store.ByAttribute(kw)

	default:
		return m.store.Datoms(store.EAVT)
	}
}

func asIdentity(v interface{}) (quill.Identity, error) {
	switch id := v.(type) {
	case quill.Identity:
		return id, nil
	case int64:
		return quill.Identity(id), nil
	case int:
		return quill.Identity(id), nil
	default:
		return 0, fmt.Errorf("executor: %v (%T) is not a valid entity id", v, v)
	}
}

func asKeyword(v interface{}) (quill.Keyword, error) {
	switch kw := v.(type) {
	case quill.Keyword:
		return kw, nil
	case string:
		return quill.NewKeyword(kw), nil
	default:
		return quill.Keyword{}, fmt.Errorf("executor: %v (%T) is not a valid attribute", v, v)
	}
}

// asValue exists for symmetry with asIdentity/asKeyword; quill.Value is
// interface{}, so every bound slot value already satisfies it.
func asValue(v interface{}) (quill.Value, error) {
	return v, nil
}
