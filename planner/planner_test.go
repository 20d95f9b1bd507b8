package planner

import (
	"testing"

	"github.com/quilldb/quill/parser"
	"github.com/quilldb/quill/query"
	"github.com/stretchr/testify/require"
)

func plan(t *testing.T, src string) *QueryPlan {
	t.Helper()
	q, err := parser.ParseQuery(src)
	require.NoError(t, err)
	p := New(nil)
	pl, err := p.Plan(q, nil)
	require.NoError(t, err)
	return pl
}

func TestPlanSinglePattern(t *testing.T) {
	pl := plan(t, `[:find ?e ?name :where [?e :person/name ?name]]`)
	require.Len(t, pl.Phases, 1)
	require.Len(t, pl.Phases[0].Patterns, 1)
	require.ElementsMatch(t, []query.Symbol{"?e", "?name"}, pl.Phases[0].Provides)
}

func TestPlanGroupsByEntity(t *testing.T) {
	pl := plan(t, `[:find ?e :where [?e :person/name ?n] [?e :person/age ?a]]`)
	require.Len(t, pl.Phases, 1)
	require.Len(t, pl.Phases[0].Patterns, 2)
}

func TestPlanOrdersSelectiveGroupBeforeJoinPattern(t *testing.T) {
	// ?e's name pattern and ?f's friend pattern are separate entity
	// groups, joined on ?e.
	pl := plan(t, `[:find ?e ?f :where
		[?e :person/name "Oleg"]
		[?f :person/friend ?e]]`)
	require.Len(t, pl.Phases, 2)
	// The constant-bound pattern for ?e is the more selective starting
	// group and should be planned first.
	require.Equal(t, query.Symbol("?e"), mustVariable(t, pl.Phases[0].Patterns[0].GetE()))
}

func TestPlanAttachesPredicateAfterItsPattern(t *testing.T) {
	pl := plan(t, `[:find ?e :where [?e :person/age ?age] [(< ?age 30)]]`)
	found := false
	for _, ph := range pl.Phases {
		for _, pred := range ph.Predicates {
			if cmp, ok := pred.(*query.Comparison); ok && cmp.Op == query.OpLT {
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestPlanAttachesExpressionAndTracksItsBinding(t *testing.T) {
	pl := plan(t, `[:find ?sum :where [?e :order/total ?t] [(+ ?t 1) ?sum]]`)
	var provided bool
	for _, ph := range pl.Phases {
		for _, s := range ph.Provides {
			if s == "?sum" {
				provided = true
			}
		}
	}
	require.True(t, provided)
}

func TestPlanRejectsUnboundFindVariable(t *testing.T) {
	q := &query.Query{
		Find: []query.FindElement{query.FindVariable{Symbol: "?missing"}},
		Where: []query.Clause{&query.DataPattern{Elements: []query.PatternElement{
			query.Variable{Name: "?e"}, query.Constant{Value: "x"},
		}}},
	}
	p := New(nil)
	_, err := p.Plan(q, nil)
	require.Error(t, err)
}

func TestPlanHonorsInputSymbols(t *testing.T) {
	q, err := parser.ParseQuery(`[:find ?e :in $ ?name :where [?e :person/name ?name]]`)
	require.NoError(t, err)
	p := New(nil)
	pl, err := p.Plan(q, nil)
	require.NoError(t, err)
	require.Contains(t, pl.Phases[0].Available, query.Symbol("?name"))
}

func TestPlanAttachesOrClause(t *testing.T) {
	pl := plan(t, `[:find ?e :where [?e :person/name ?n] (or [?n "Oleg"] [?n "Amara"])]`)
	found := false
	for _, ph := range pl.Phases {
		found = found || len(ph.Ors) > 0
	}
	require.True(t, found)
}

func mustVariable(t *testing.T, elem query.PatternElement) query.Symbol {
	t.Helper()
	v, ok := elem.(query.Variable)
	require.True(t, ok)
	return v.Name
}
