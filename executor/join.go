package executor

import "github.com/quilldb/quill/query"

// HashJoin performs an equi-join on joinCols: build a hash table from the
// smaller relation, probe it with the larger one. Grounded on the teacher's
// HashJoin (datalog/executor/join.go), minus its streaming/debug-counter
// machinery -- both sides are already fully materialized here.
func HashJoin(left, right Relation, joinCols []query.Symbol) Relation {
	buildIsLeft := left.Size() <= right.Size()
	build, probe := left, right
	if !buildIsLeft {
		build, probe = right, left
	}

	buildIndices, ok := columnIndices(build.Symbols(), joinCols)
	if !ok {
		return NewRelation(combinedColumns(left, right, joinCols), nil)
	}
	probeIndices, ok := columnIndices(probe.Symbols(), joinCols)
	if !ok {
		return NewRelation(combinedColumns(left, right, joinCols), nil)
	}

	table := make(map[tupleKey][]Tuple)
	bit := build.Iterator()
	for bit.Next() {
		t := bit.Tuple()
		k := newTupleKey(t, buildIndices)
		table[k] = append(table[k], t)
	}

	outColumns := combinedColumns(left, right, joinCols)
	var out []Tuple
	pit := probe.Iterator()
	for pit.Next() {
		pt := pit.Tuple()
		k := newTupleKey(pt, probeIndices)
		for _, bt := range table[k] {
			var joined Tuple
			if buildIsLeft {
				joined = combineTuples(bt, pt, build.Symbols(), probe.Symbols(), joinCols)
			} else {
				joined = combineTuples(pt, bt, probe.Symbols(), build.Symbols(), joinCols)
			}
			out = append(out, joined)
		}
	}
	return NewRelation(outColumns, out)
}

// SemiJoin keeps left's tuples that have at least one match in right on
// joinCols, without adding right's columns.
func SemiJoin(left, right Relation, joinCols []query.Symbol) Relation {
	rightIndices, ok := columnIndices(right.Symbols(), joinCols)
	if !ok {
		return newRelationNoDedupe(left.Symbols(), nil)
	}
	keys := make(map[tupleKey]bool)
	it := right.Iterator()
	for it.Next() {
		keys[newTupleKey(it.Tuple(), rightIndices)] = true
	}

	leftIndices, ok := columnIndices(left.Symbols(), joinCols)
	if !ok {
		return newRelationNoDedupe(left.Symbols(), nil)
	}
	var out []Tuple
	lit := left.Iterator()
	for lit.Next() {
		t := lit.Tuple()
		if keys[newTupleKey(t, leftIndices)] {
			out = append(out, t)
		}
	}
	return newRelationNoDedupe(left.Symbols(), out)
}

// AntiJoin keeps left's tuples that have no match in right on joinCols --
// the primitive (not ...)/(not-join ...) compiles to.
func AntiJoin(left, right Relation, joinCols []query.Symbol) Relation {
	rightIndices, ok := columnIndices(right.Symbols(), joinCols)
	if !ok {
		return newRelationNoDedupe(left.Symbols(), cloneTuples(left))
	}
	keys := make(map[tupleKey]bool)
	it := right.Iterator()
	for it.Next() {
		keys[newTupleKey(it.Tuple(), rightIndices)] = true
	}

	leftIndices, ok := columnIndices(left.Symbols(), joinCols)
	if !ok {
		return newRelationNoDedupe(left.Symbols(), cloneTuples(left))
	}
	var out []Tuple
	lit := left.Iterator()
	for lit.Next() {
		t := lit.Tuple()
		if !keys[newTupleKey(t, leftIndices)] {
			out = append(out, t)
		}
	}
	return newRelationNoDedupe(left.Symbols(), out)
}

// crossProduct pairs every tuple of left with every tuple of right, used
// when a join has no shared columns to key on.
func crossProduct(left, right Relation) Relation {
	columns := append(append([]query.Symbol{}, left.Symbols()...), right.Symbols()...)
	var out []Tuple
	lit := left.Iterator()
	for lit.Next() {
		lt := lit.Tuple()
		rit := right.Iterator()
		for rit.Next() {
			rt := rit.Tuple()
			row := make(Tuple, 0, len(lt)+len(rt))
			row = append(row, lt...)
			row = append(row, rt...)
			out = append(out, row)
		}
	}
	return NewRelation(columns, out)
}

func cloneTuples(r Relation) []Tuple {
	out := make([]Tuple, 0, r.Size())
	it := r.Iterator()
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out
}

func columnIndices(columns []query.Symbol, want []query.Symbol) ([]int, bool) {
	out := make([]int, len(want))
	for i, w := range want {
		idx := -1
		for j, c := range columns {
			if c == w {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		out[i] = idx
	}
	return out, true
}

// combinedColumns is left's columns, then right's columns not already
// shared via joinCols.
func combinedColumns(left, right Relation, joinCols []query.Symbol) []query.Symbol {
	shared := make(map[query.Symbol]bool, len(joinCols))
	for _, c := range joinCols {
		shared[c] = true
	}
	out := append([]query.Symbol{}, left.Symbols()...)
	for _, c := range right.Symbols() {
		if !shared[c] {
			out = append(out, c)
		}
	}
	return out
}

// combineTuples merges a left and right tuple per HashJoin's output column
// order: every left column, then every right column not in joinCols.
func combineTuples(lt, rt Tuple, leftCols, rightCols, joinCols []query.Symbol) Tuple {
	shared := make(map[query.Symbol]bool, len(joinCols))
	for _, c := range joinCols {
		shared[c] = true
	}
	out := make(Tuple, 0, len(lt)+len(rt))
	out = append(out, lt...)
	for i, c := range rightCols {
		if !shared[c] {
			out = append(out, rt[i])
		}
	}
	return out
}
