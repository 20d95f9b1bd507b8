package executor

import (
	"fmt"

	"github.com/quilldb/quill/query"
)

// executeAggregates reduces rel per findElements: plain FindVariable
// elements form the grouping key, FindAggregate elements are computed per
// group via query.NewAggregate. Grounded on the teacher's
// ExecuteAggregations (referenced from relation.go's Aggregate method).
func executeAggregates(rel Relation, findElements []query.FindElement) (Relation, error) {
	var groupCols []query.Symbol
	var aggs []query.AggregateFunction
	for _, fe := range findElements {
		switch e := fe.(type) {
		case query.FindVariable:
			groupCols = append(groupCols, e.Symbol)
		case query.FindAggregate:
			agg, err := query.NewAggregate(e.Function, e.Arg)
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, agg)
		default:
			return nil, fmt.Errorf("executor: unsupported find element %v", fe)
		}
	}

	if len(aggs) == 0 {
		return rel, nil
	}

	groupIndices := make([]int, len(groupCols))
	for i, c := range groupCols {
		idx := -1
		for j, col := range rel.Symbols() {
			if col == c {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("executor: group column %s not found in relation", c)
		}
		groupIndices[i] = idx
	}
	aggIndices := make([]int, len(aggs))
	for i, a := range aggs {
		idx := -1
		for j, col := range rel.Symbols() {
			if col == a.Variable() {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("executor: aggregate column %s not found in relation", a.Variable())
		}
		aggIndices[i] = idx
	}

	type group struct {
		key    Tuple
		values [][]interface{}
	}
	order := make([]tupleKey, 0)
	groups := make(map[tupleKey]*group)

	it := rel.Iterator()
	for it.Next() {
		t := it.Tuple()
		key := make(Tuple, len(groupIndices))
		for i, idx := range groupIndices {
			key[i] = t[idx]
		}
		k := newTupleKeyFull(key)
		g, ok := groups[k]
		if !ok {
			g = &group{key: key, values: make([][]interface{}, len(aggs))}
			groups[k] = g
			order = append(order, k)
		}
		for i, idx := range aggIndices {
			g.values[i] = append(g.values[i], t[idx])
		}
	}

	columns := append(append([]query.Symbol{}, groupCols...), aggVariableNames(aggs)...)
	out := make([]Tuple, 0, len(order))
	for _, k := range order {
		g := groups[k]
		row := make(Tuple, 0, len(g.key)+len(aggs))
		row = append(row, g.key...)
		for i, a := range aggs {
			v, err := a.Aggregate(g.values[i])
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		out = append(out, row)
	}
	return newRelationNoDedupe(columns, out), nil
}

func aggVariableNames(aggs []query.AggregateFunction) []query.Symbol {
	out := make([]query.Symbol, len(aggs))
	for i, a := range aggs {
		out[i] = query.Symbol(fmt.Sprintf("(%s %s)", a.FunctionName(), a.Variable()))
	}
	return out
}
