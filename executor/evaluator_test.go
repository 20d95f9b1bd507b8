package executor

import (
	"testing"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/parser"
	"github.com/quilldb/quill/query"
	"github.com/quilldb/quill/schema"
	"github.com/quilldb/quill/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	sch, err := schema.New([]schema.Attribute{
		{Ident: quill.NewKeyword(":person/name"), ValueType: quill.TypeString, Unique: schema.UniqueIdentity},
		{Ident: quill.NewKeyword(":person/age"), ValueType: quill.TypeLong},
		{Ident: quill.NewKeyword(":person/friend"), ValueType: quill.TypeRef, Cardinality: schema.CardinalityMany},
	})
	require.NoError(t, err)
	s, err := store.OpenInMemory(sch)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPeople(t *testing.T, s *store.Store) (alice, bob, carol quill.Identity) {
	alice, bob, carol = quill.NewIdentity(1), quill.NewIdentity(2), quill.NewIdentity(3)
	require.NoError(t, s.Assert([]quill.Datom{
		{E: alice, A: quill.NewKeyword(":person/name"), V: "Alice", Tx: 1, Op: quill.Added},
		{E: alice, A: quill.NewKeyword(":person/age"), V: int64(30), Tx: 1, Op: quill.Added},
		{E: bob, A: quill.NewKeyword(":person/name"), V: "Bob", Tx: 1, Op: quill.Added},
		{E: bob, A: quill.NewKeyword(":person/age"), V: int64(25), Tx: 1, Op: quill.Added},
		{E: carol, A: quill.NewKeyword(":person/name"), V: "Carol", Tx: 1, Op: quill.Added},
		{E: carol, A: quill.NewKeyword(":person/age"), V: int64(40), Tx: 1, Op: quill.Added},
		{E: alice, A: quill.NewKeyword(":person/friend"), V: bob, Tx: 1, Op: quill.Added},
	}))
	return
}

func mustParse(t *testing.T, src string) *query.Query {
	q, err := parser.ParseQuery(src)
	require.NoError(t, err)
	return q
}

func TestEvaluatorSimplePatternJoin(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find ?n ?a :where [?e :person/name ?n] [?e :person/age ?a]]`)
	ev := NewEvaluator(s, nil)
	rel, err := ev.Execute(q, nil)
	require.NoError(t, err)
	require.Equal(t, 3, rel.Size())
}

func TestEvaluatorBoundEntityPattern(t *testing.T) {
	s := openTestStore(t)
	alice, _, _ := seedPeople(t, s)

	q := mustParse(t, `[:find ?n :in ?e :where [?e :person/name ?n]]`)
	ev := NewEvaluator(s, nil)
	rel, err := ev.Execute(q, []interface{}{alice})
	require.NoError(t, err)
	require.Equal(t, 1, rel.Size())
	require.Equal(t, "Alice", rel.Get(0)[0])
}

func TestEvaluatorPredicateFiltersRows(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find ?n :where [?e :person/name ?n] [?e :person/age ?a] [(> ?a 28)]]`)
	ev := NewEvaluator(s, nil)
	rel, err := ev.Execute(q, nil)
	require.NoError(t, err)

	names := map[string]bool{}
	it := rel.Iterator()
	for it.Next() {
		names[it.Tuple()[0].(string)] = true
	}
	require.True(t, names["Alice"])
	require.True(t, names["Carol"])
	require.False(t, names["Bob"])
}

func TestEvaluatorNotExcludesEntitiesWithAFriend(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find ?n :where [?e :person/name ?n] (not [?e :person/friend _])]`)
	ev := NewEvaluator(s, nil)
	rel, err := ev.Execute(q, nil)
	require.NoError(t, err)

	names := map[string]bool{}
	it := rel.Iterator()
	for it.Next() {
		names[it.Tuple()[0].(string)] = true
	}
	require.False(t, names["Alice"])
	require.True(t, names["Bob"])
	require.True(t, names["Carol"])
}

func TestEvaluatorOrUnionsBranches(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find ?n :where [?e :person/name ?n] (or [?e :person/age 30] [?e :person/age 40])]`)
	ev := NewEvaluator(s, nil)
	rel, err := ev.Execute(q, nil)
	require.NoError(t, err)

	names := map[string]bool{}
	it := rel.Iterator()
	for it.Next() {
		names[it.Tuple()[0].(string)] = true
	}
	require.True(t, names["Alice"])
	require.True(t, names["Carol"])
	require.False(t, names["Bob"])
}

func TestEvaluatorOrJoinRequiredBindingSucceedsWhenBound(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find ?e :where [?e :person/friend ?f] (or-join [?e [?f]] [?e :person/name ?f])]`)
	ev := NewEvaluator(s, nil)
	_, err := ev.Execute(q, nil)
	require.NoError(t, err, "?f is bound by the preceding pattern, so the or-join's [[?f]] requirement is satisfied")
}

func TestEvaluatorOrJoinRequiredBindingFailsWhenUnbound(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find ?e :where (or-join [?e [?f]] [?e :person/name ?f])]`)
	ev := NewEvaluator(s, nil)
	_, err := ev.Execute(q, nil)
	require.Error(t, err, "?f is never bound before the or-join runs, so [[?f]] must raise an insufficient-binding error")
}

func TestEvaluatorAggregateCount(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	q := mustParse(t, `[:find (count ?e) :where [?e :person/name ?n]]`)
	ev := NewEvaluator(s, nil)
	rel, err := ev.Execute(q, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rel.Size())
	require.Equal(t, int64(3), rel.Get(0)[0])
}

func TestEvaluatorRuleInvocation(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	rules, err := parser.ParseRules(`[[(friend-name ?e ?n) [?e :person/friend ?f] [?f :person/name ?n]]]`)
	require.NoError(t, err)

	q := mustParse(t, `[:find ?n :where (friend-name ?e ?n)]`)
	ev := NewEvaluator(s, rules)
	rel, err := ev.Execute(q, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rel.Size())
	require.Equal(t, "Bob", rel.Get(0)[0])
}
