// Package executor evaluates a planner.QueryPlan against a quill/store
// Store, producing result tuples. It keeps the teacher's Relation interface
// shape (Symbols, Iterator, HashJoin, SemiJoin, AntiJoin, Project, Filter,
// Sort, Aggregate, Table/String via tablewriter/color) but drops the
// streaming/iterator-composition machinery (StreamingRelation,
// ProductRelation-as-iterator-of-iterators, CachingIterator): every
// relation here is materialized, which this query language's data sizes
// don't punish and which removes an entire axis of the teacher's
// complexity (datalog/executor/relation.go's dual Materialized/Streaming
// implementations collapse into one).
package executor

import (
	"fmt"
	"sort"

	"github.com/quilldb/quill"
	"github.com/quilldb/quill/query"
)

// Tuple is one row: values in the same order as the owning Relation's
// Symbols().
type Tuple []interface{}

// Iterator provides sequential access to a Relation's tuples.
type Iterator interface {
	Next() bool
	Tuple() Tuple
}

// Relation is an immutable, deduplicated set of tuples over named columns.
// Every method returns a new Relation; nothing here mutates its receiver.
type Relation interface {
	Symbols() []query.Symbol
	Iterator() Iterator
	Size() int
	IsEmpty() bool
	Get(i int) Tuple
	String() string
	Table() string

	// Project returns a new relation with only the listed columns, in the
	// order given. Errors if a column isn't present.
	Project(columns []query.Symbol) (Relation, error)

	// Sort returns a new relation ordered by orderBy; rows that tie on every
	// key keep their existing order. If no orderBy variable is a column,
	// rows are sorted ascending by every column in column order.
	Sort(orderBy []query.OrderByClause) Relation

	// Filter keeps only tuples for which pred evaluates true, with the
	// tuple's columns bound as pred's variables.
	Filter(pred query.Predicate) Relation

	// EvaluateFunction evaluates fn per tuple and adds its result as one or
	// more new columns, per binding's shape: one column for a scalar
	// binding, one per variable for a tuple-destructure binding. Collection
	// and relation bindings are not handled and drop every tuple. Tuples for
	// which fn.Eval errors are dropped.
	EvaluateFunction(fn query.Function, binding query.BindingForm) Relation

	// Join performs a natural join (on whatever columns the two relations
	// share) with other, or a cross product if they share none.
	Join(other Relation) Relation

	// HashJoin performs an equi-join on joinCols, which must be present in
	// both relations.
	HashJoin(other Relation, joinCols []query.Symbol) Relation

	// SemiJoin keeps tuples of this relation that have at least one match
	// in other on joinCols.
	SemiJoin(other Relation, joinCols []query.Symbol) Relation

	// AntiJoin keeps tuples of this relation that have no match in other
	// on joinCols -- the (not ...)/(not-join ...) primitive.
	AntiJoin(other Relation, joinCols []query.Symbol) Relation

	// Aggregate reduces the relation per findElements: non-aggregate
	// elements become the grouping key, aggregate elements are computed
	// per group.
	Aggregate(findElements []query.FindElement) (Relation, error)
}

// MaterializedRelation holds every tuple in memory, deduplicated at
// construction (mirrors the teacher's NewMaterializedRelation).
type MaterializedRelation struct {
	columns []query.Symbol
	tuples  []Tuple
}

// NewRelation builds a deduplicated relation over columns/tuples.
func NewRelation(columns []query.Symbol, tuples []Tuple) *MaterializedRelation {
	return &MaterializedRelation{columns: columns, tuples: dedupe(tuples)}
}

// newRelationNoDedupe skips the dedup pass, for callers (storage scans,
// join output) that already know their tuples are unique.
func newRelationNoDedupe(columns []query.Symbol, tuples []Tuple) *MaterializedRelation {
	return &MaterializedRelation{columns: columns, tuples: tuples}
}

func dedupe(tuples []Tuple) []Tuple {
	if len(tuples) == 0 {
		return tuples
	}
	seen := make(map[tupleKey]bool, len(tuples))
	out := make([]Tuple, 0, len(tuples))
	for _, t := range tuples {
		k := newTupleKeyFull(t)
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	return out
}

func (r *MaterializedRelation) Symbols() []query.Symbol { return r.columns }
func (r *MaterializedRelation) Size() int                { return len(r.tuples) }
func (r *MaterializedRelation) IsEmpty() bool             { return len(r.tuples) == 0 }

func (r *MaterializedRelation) Get(i int) Tuple {
	if i < 0 || i >= len(r.tuples) {
		return nil
	}
	return r.tuples[i]
}

func (r *MaterializedRelation) Iterator() Iterator {
	return &sliceIterator{tuples: r.tuples, pos: -1}
}

func (r *MaterializedRelation) columnIndex(sym query.Symbol) int {
	for i, c := range r.columns {
		if c == sym {
			return i
		}
	}
	return -1
}

func (r *MaterializedRelation) String() string {
	return fmt.Sprintf("Relation(%v, %d tuples)", r.columns, len(r.tuples))
}

func (r *MaterializedRelation) Table() string {
	return NewTableFormatter().FormatRelation(r)
}

func (r *MaterializedRelation) Project(columns []query.Symbol) (Relation, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("executor: cannot project an empty column list")
	}
	indices := make([]int, len(columns))
	for i, col := range columns {
		idx := r.columnIndex(col)
		if idx < 0 {
			return nil, fmt.Errorf("executor: column %s not found in relation (has %v)", col, r.columns)
		}
		indices[i] = idx
	}
	out := make([]Tuple, len(r.tuples))
	for i, t := range r.tuples {
		row := make(Tuple, len(indices))
		for j, idx := range indices {
			row[j] = t[idx]
		}
		out[i] = row
	}
	return NewRelation(columns, out), nil
}

func (r *MaterializedRelation) Sort(orderBy []query.OrderByClause) Relation {
	sorted := make([]Tuple, len(r.tuples))
	copy(sorted, r.tuples)

	keys := make([]int, 0, len(orderBy))
	dirs := make([]query.OrderDirection, 0, len(orderBy))
	for _, o := range orderBy {
		idx := r.columnIndex(o.Variable)
		if idx < 0 {
			continue
		}
		keys = append(keys, idx)
		dir := o.Direction
		if dir == "" {
			dir = query.OrderAsc
		}
		dirs = append(dirs, dir)
	}
	if len(keys) == 0 {
		// No requested sort keys resolved -- fall back to the relation's
		// natural column order.
		for i := range r.columns {
			keys = append(keys, i)
			dirs = append(dirs, query.OrderAsc)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		for k, idx := range keys {
			cmp := quill.CompareValues(sorted[i][idx], sorted[j][idx])
			if cmp == 0 {
				continue
			}
			if dirs[k] == query.OrderDesc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	return newRelationNoDedupe(r.columns, sorted)
}

func (r *MaterializedRelation) Filter(pred query.Predicate) Relation {
	var out []Tuple
	for _, t := range r.tuples {
		bindings := r.bindingsFor(t)
		ok, err := pred.Eval(bindings)
		if err == nil && ok {
			out = append(out, t)
		}
	}
	return newRelationNoDedupe(r.columns, out)
}

func (r *MaterializedRelation) bindingsFor(t Tuple) map[query.Symbol]interface{} {
	bindings := make(map[query.Symbol]interface{}, len(r.columns))
	for i, c := range r.columns {
		bindings[c] = t[i]
	}
	return bindings
}

func (r *MaterializedRelation) EvaluateFunction(fn query.Function, binding query.BindingForm) Relation {
	newColumns := append(append([]query.Symbol{}, r.columns...), bindingColumns(binding)...)

	var out []Tuple
	for _, t := range r.tuples {
		bindings := r.bindingsFor(t)
		result, err := fn.Eval(bindings)
		if err != nil {
			continue
		}
		extra, ok := bindingValues(binding, result)
		if !ok {
			continue
		}
		row := make(Tuple, 0, len(t)+len(extra))
		row = append(row, t...)
		row = append(row, extra...)
		out = append(out, row)
	}
	return NewRelation(newColumns, out)
}

// bindingColumns returns the new columns a BindingForm introduces.
func bindingColumns(b query.BindingForm) []query.Symbol {
	switch bf := b.(type) {
	case query.ScalarBinding:
		return []query.Symbol{bf.Variable}
	case query.TupleBinding:
		return bf.Variables
	case query.CollectionBinding:
		return []query.Symbol{bf.Variable}
	case query.RelationBinding:
		return bf.Variables
	default:
		return nil
	}
}

// bindingValues destructures a function's result per binding's shape. Only
// ScalarBinding and TupleBinding are handled (a single row in, a single row
// out); for Collection/Relation bindings it reports false, so
// EvaluateFunction drops the tuple.
func bindingValues(b query.BindingForm, result interface{}) ([]interface{}, bool) {
	switch bf := b.(type) {
	case query.ScalarBinding:
		return []interface{}{result}, true
	case query.TupleBinding:
		tup, ok := result.(quill.Tuple)
		if !ok || len(tup) != len(bf.Variables) {
			return nil, false
		}
		out := make([]interface{}, len(tup))
		for i, v := range tup {
			out[i] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func (r *MaterializedRelation) Join(other Relation) Relation {
	common := commonColumns(r.columns, other.Symbols())
	if len(common) == 0 {
		return crossProduct(r, other)
	}
	return HashJoin(r, other, common)
}

func (r *MaterializedRelation) HashJoin(other Relation, joinCols []query.Symbol) Relation {
	return HashJoin(r, other, joinCols)
}

func (r *MaterializedRelation) SemiJoin(other Relation, joinCols []query.Symbol) Relation {
	return SemiJoin(r, other, joinCols)
}

func (r *MaterializedRelation) AntiJoin(other Relation, joinCols []query.Symbol) Relation {
	return AntiJoin(r, other, joinCols)
}

func (r *MaterializedRelation) Aggregate(findElements []query.FindElement) (Relation, error) {
	return executeAggregates(r, findElements)
}

func commonColumns(a, b []query.Symbol) []query.Symbol {
	bset := make(map[query.Symbol]bool, len(b))
	for _, c := range b {
		bset[c] = true
	}
	var out []query.Symbol
	for _, c := range a {
		if bset[c] {
			out = append(out, c)
		}
	}
	return out
}

type sliceIterator struct {
	tuples []Tuple
	pos    int
}

func (it *sliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.tuples)
}

func (it *sliceIterator) Tuple() Tuple {
	if it.pos >= 0 && it.pos < len(it.tuples) {
		return it.tuples[it.pos]
	}
	return nil
}
