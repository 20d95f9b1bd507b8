package parser

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quilldb/quill/query"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleQuery(t *testing.T) {
	q, err := ParseQuery(`[:find ?e ?name :where [?e :person/name ?name]]`)
	require.NoError(t, err)
	require.Len(t, q.Find, 2)
	require.Len(t, q.Where, 1)

	pattern, ok := q.Where[0].(*query.DataPattern)
	require.True(t, ok)
	require.Equal(t, []query.Symbol{"?e", "?name"}, pattern.Symbols())
}

func TestParseQueryWithIn(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :in $ ?name :where [?e :person/name ?name]]`)
	require.NoError(t, err)
	require.Len(t, q.In, 2)
	_, ok := q.In[0].(query.DatabaseInput)
	require.True(t, ok)
	scalar, ok := q.In[1].(query.ScalarInput)
	require.True(t, ok)
	require.Equal(t, query.Symbol("?name"), scalar.Symbol)
}

func TestParseCollectionAndRelationInputs(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :in $ [?name ...] [[?a ?b]] [[?x ?y] ...] :where [?e :person/name ?name]]`)
	require.NoError(t, err)
	require.Len(t, q.In, 4)
	_, ok := q.In[1].(query.CollectionInput)
	require.True(t, ok)
	_, ok = q.In[2].(query.TupleInput)
	require.True(t, ok)
	_, ok = q.In[3].(query.RelationInput)
	require.True(t, ok)
}

func TestParseAggregateFind(t *testing.T) {
	q, err := ParseQuery(`[:find (count ?e) :where [?e :person/name ?n]]`)
	require.NoError(t, err)
	agg, ok := q.Find[0].(query.FindAggregate)
	require.True(t, ok)
	require.Equal(t, "count", agg.Function)
	require.True(t, agg.IsAggregate())
}

func TestParseComparisonPredicate(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :person/age ?age] [(< ?age 30)]]`)
	require.NoError(t, err)
	require.Len(t, q.Where, 2)
	cmp, ok := q.Where[1].(*query.Comparison)
	require.True(t, ok)
	require.Equal(t, query.OpLT, cmp.Op)
}

func TestParseChainedComparison(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :person/age ?age] [(< 0 ?age 100)]]`)
	require.NoError(t, err)
	_, ok := q.Where[1].(*query.ChainedComparison)
	require.True(t, ok)
}

func TestParseExpression(t *testing.T) {
	q, err := ParseQuery(`[:find ?sum :where [?e :order/total ?t] [(+ ?t 1) ?sum]]`)
	require.NoError(t, err)
	expr, ok := q.Where[1].(*query.Expression)
	require.True(t, ok)
	_, ok = expr.Function.(*query.ArithmeticFunction)
	require.True(t, ok)
}

func TestParseOrClause(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where (or [?e :person/name "Oleg"] [?e :person/age 10])]`)
	require.NoError(t, err)
	or, ok := q.Where[0].(*query.Or)
	require.True(t, ok)
	require.Len(t, or.Branches, 2)
}

func TestParseOrJoinRequiredBinding(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :person/friend ?f] (or-join [?e [?f]] [?e :person/name ?f])]`)
	require.NoError(t, err)
	oj, ok := q.Where[1].(*query.OrJoin)
	require.True(t, ok)
	require.True(t, oj.Required["?f"])
	require.False(t, oj.Required["?e"])
}

func TestParseInstTaggedLiteral(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :event/at #inst "2024-03-01T12:00:00Z"]]`)
	require.NoError(t, err)
	pattern, ok := q.Where[0].(*query.DataPattern)
	require.True(t, ok)
	c, ok := pattern.Elements[2].(query.Constant)
	require.True(t, ok)
	at, ok := c.Value.(time.Time)
	require.True(t, ok)
	require.True(t, at.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestParseUUIDTaggedLiteral(t *testing.T) {
	want := uuid.New()
	q, err := ParseQuery(`[:find ?e :where [?e :widget/id #uuid "` + want.String() + `"]]`)
	require.NoError(t, err)
	pattern, ok := q.Where[0].(*query.DataPattern)
	require.True(t, ok)
	c, ok := pattern.Elements[2].(query.Constant)
	require.True(t, ok)
	got, ok := c.Value.(uuid.UUID)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestParseUnknownTaggedLiteralPassesThroughAsString(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :widget/label #custom/tag "raw"]]`)
	require.NoError(t, err)
	pattern, ok := q.Where[0].(*query.DataPattern)
	require.True(t, ok)
	c, ok := pattern.Elements[2].(query.Constant)
	require.True(t, ok)
	require.Equal(t, "raw", c.Value)
}

func TestParseNotClause(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :person/name ?n] (not [?e :person/banned true])]`)
	require.NoError(t, err)
	not, ok := q.Where[1].(*query.Not)
	require.True(t, ok)
	require.Len(t, not.Clauses, 1)
}

func TestParseNotJoinClause(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :person/name ?n] (not-join [?e] [?e :person/banned true])]`)
	require.NoError(t, err)
	nj, ok := q.Where[1].(*query.NotJoin)
	require.True(t, ok)
	require.Equal(t, []query.Symbol{"?e"}, nj.Vars)
}

func TestParseRuleInvocation(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where (ancestor ?e ?a)]`)
	require.NoError(t, err)
	rule, ok := q.Where[0].(*query.RuleInvocation)
	require.True(t, ok)
	require.Equal(t, query.Symbol("ancestor"), rule.Name)
	require.Len(t, rule.Args, 2)
}

func TestParseOrderBy(t *testing.T) {
	q, err := ParseQuery(`[:find ?e ?age :where [?e :person/age ?age] :order-by [[?age :desc]]]`)
	require.NoError(t, err)
	require.Len(t, q.OrderBy, 1)
	require.Equal(t, query.OrderDesc, q.OrderBy[0].Direction)
}

func TestParseMissingWhereFails(t *testing.T) {
	_, err := ParseQuery(`[:find ?e]`)
	require.Error(t, err)
}

func TestExtractVariables(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where [?e :person/name ?n] (not [?e :person/banned true])]`)
	require.NoError(t, err)
	vars := ExtractVariables(q)
	require.Contains(t, vars, query.Symbol("?e"))
	require.Contains(t, vars, query.Symbol("?n"))
}

func TestValidateQueryRejectsUnboundFind(t *testing.T) {
	q := &query.Query{
		Find:  []query.FindElement{query.FindVariable{Symbol: "?missing"}},
		Where: []query.Clause{&query.DataPattern{Elements: []query.PatternElement{query.Variable{Name: "?e"}, query.Constant{Value: "x"}}}},
	}
	err := ValidateQuery(q)
	require.Error(t, err)
}

func TestValidateQueryRejectsMismatchedOrBranches(t *testing.T) {
	q, err := ParseQuery(`[:find ?e :where (or [?e :person/name "Oleg"] [?e2 :person/age 10])]`)
	require.NoError(t, err)
	err = ValidateQuery(q)
	require.Error(t, err)
}

func TestParseMultipleQueries(t *testing.T) {
	qs, err := ParseMultipleQueries(`[:find ?e :where [?e :a ?v]] [:find ?e :where [?e :b ?v]]`)
	require.NoError(t, err)
	require.Len(t, qs, 2)
}
