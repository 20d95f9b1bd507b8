package executor

import (
	"fmt"

	"github.com/quilldb/quill/query"
)

// Union combines several relations sharing the same column set into one
// deduplicated relation. This has no teacher counterpart -- or/or-join
// branches are new to this spec (datalog/executor never had a union
// operator, since the teacher's planner never supported or at all) -- but
// it is built from the same dedup-on-construction discipline
// NewMaterializedRelation already applies, just applied across several
// inputs instead of one.
func Union(relations []Relation) (Relation, error) {
	if len(relations) == 0 {
		return NewRelation(nil, nil), nil
	}
	columns := relations[0].Symbols()

	var tuples []Tuple
	for i, rel := range relations {
		if i > 0 && !sameColumnSet(columns, rel.Symbols()) {
			return nil, fmt.Errorf("executor: union branch %d has columns %v, expected %v", i, rel.Symbols(), columns)
		}
		reordered, err := reorderColumns(rel, columns)
		if err != nil {
			return nil, err
		}
		it := reordered.Iterator()
		for it.Next() {
			tuples = append(tuples, it.Tuple())
		}
	}
	return NewRelation(columns, tuples), nil
}

func sameColumnSet(a, b []query.Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	bset := make(map[query.Symbol]bool, len(b))
	for _, c := range b {
		bset[c] = true
	}
	for _, c := range a {
		if !bset[c] {
			return false
		}
	}
	return true
}

// reorderColumns projects rel onto columns' exact order, so branches that
// bind the same variables in a different clause order still union cleanly.
func reorderColumns(rel Relation, columns []query.Symbol) (Relation, error) {
	if equalSymbolOrder(rel.Symbols(), columns) {
		return rel, nil
	}
	return rel.Project(columns)
}

func equalSymbolOrder(a, b []query.Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
