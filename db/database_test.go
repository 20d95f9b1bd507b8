package db

import (
	"testing"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/schema"
	"github.com/quilldb/quill/transactor"
	"github.com/stretchr/testify/require"
)

func kw(s string) quill.Keyword { return quill.NewKeyword(s) }

func newTestDatabase(t *testing.T) *Database {
	sch, err := schema.New([]schema.Attribute{
		{Ident: kw(":person/name"), ValueType: quill.TypeString, Unique: schema.UniqueIdentity},
		{Ident: kw(":person/age"), ValueType: quill.TypeLong},
	})
	require.NoError(t, err)
	d, err := OpenInMemory(sch, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestTransactAndQuery(t *testing.T) {
	d := newTestDatabase(t)

	report, err := d.Transact([]transactor.TxItem{
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/name"), V: "Alice"},
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/age"), V: int64(30)},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), report.TxID)

	rows, err := d.QueryRows(`[:find ?n :in $ :where [?e :person/name ?n]]`, nil)
	require.NoError(t, err)
	require.Equal(t, [][]interface{}{{"Alice"}}, rows)
}

func TestQueryWithScalarInput(t *testing.T) {
	d := newTestDatabase(t)
	_, err := d.Transact([]transactor.TxItem{
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/name"), V: "Alice"},
		transactor.AddDatom{E: transactor.NewTempID("bob"), A: kw(":person/name"), V: "Bob"},
	})
	require.NoError(t, err)

	rows, err := d.QueryRows(`[:find ?e :in $ ?n :where [?e :person/name ?n]]`, nil, "Bob")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestAsOfHidesLaterWrites(t *testing.T) {
	d := newTestDatabase(t)

	report1, err := d.Transact([]transactor.TxItem{
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/name"), V: "Alice"},
	})
	require.NoError(t, err)

	_, err = d.Transact([]transactor.TxItem{
		transactor.AddDatom{E: transactor.NewTempID("bob"), A: kw(":person/name"), V: "Bob"},
	})
	require.NoError(t, err)

	rows, err := d.AsOf(report1.TxID).QueryRows(`[:find ?n :in $ :where [?e :person/name ?n]]`, nil)
	require.NoError(t, err)
	require.Equal(t, [][]interface{}{{"Alice"}}, rows)

	rows, err = d.QueryRows(`[:find ?n :in $ :where [?e :person/name ?n]]`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStatsReportsDatomAndEntityCounts(t *testing.T) {
	d := newTestDatabase(t)
	_, err := d.Transact([]transactor.TxItem{
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/name"), V: "Alice"},
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/age"), V: int64(30)},
	})
	require.NoError(t, err)

	stats, err := d.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.Datoms)
	require.Equal(t, 1, stats.Entities)
	require.Equal(t, "2", stats.DatomsPretty)
}

func TestExtendSchemaAddsNewAttribute(t *testing.T) {
	d := newTestDatabase(t)
	err := d.ExtendSchema([]schema.Attribute{
		{Ident: kw(":person/email"), ValueType: quill.TypeString, Unique: schema.UniqueIdentity},
	})
	require.NoError(t, err)

	_, err = d.Transact([]transactor.TxItem{
		transactor.AddDatom{E: transactor.NewTempID("alice"), A: kw(":person/email"), V: "alice@example.com"},
	})
	require.NoError(t, err)
}
