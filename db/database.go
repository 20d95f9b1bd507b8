// Package db provides the top-level façade wiring quill/store,
// quill/transactor, quill/executor, and quill/fulltext behind one type,
// the counterpart to the teacher's storage.Database
// (datalog/storage/database.go). Where the teacher's Database is
// schema-less and owns raw txCounter bookkeeping directly, Database here
// mostly delegates: schema lives in store.Store/transactor.Transactor,
// query planning lives in executor.Evaluator, and the only state this
// package itself owns is the optional fulltext.Index and a query-rules
// table shared across queries.
package db

import (
	"fmt"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/executor"
	"github.com/quilldb/quill/fulltext"
	"github.com/quilldb/quill/parser"
	"github.com/quilldb/quill/query"
	"github.com/quilldb/quill/schema"
	"github.com/quilldb/quill/store"
	"github.com/quilldb/quill/transactor"

	"github.com/dustin/go-humanize"
)

// Options configures a Database at Open/OpenInMemory time.
type Options struct {
	// TransactorOptions is passed straight through to transactor.New.
	TransactorOptions transactor.Options
	// Rules, if set, are available to every query's rule invocations
	// (the spec's :in %-rules input is not modeled separately; rules are
	// a database-wide table, as the teacher's QueryEngine treats them).
	Rules query.Rules
	// FulltextPath, if non-empty, opens a fulltext.Index alongside the
	// store at this path. Leave empty to run without search.
	FulltextPath string
	// FulltextOptions configures the fulltext index's fuzzy corrector.
	// Ignored unless a fulltext index is opened.
	FulltextOptions fulltext.Options
}

// Database is one schema'd datom store plus the transactor and query
// engine layered over it, and an optional full-text index alongside it.
type Database struct {
	store      *store.Store
	schema     *schema.Schema
	transactor *transactor.Transactor
	fulltext   *fulltext.Index
	opts       Options
}

// Open opens (or creates) a database at path, under schema sch.
func Open(path string, sch *schema.Schema, opts Options) (*Database, error) {
	s, err := store.Open(path, sch)
	if err != nil {
		return nil, fmt.Errorf("db: open store: %w", err)
	}
	return newDatabase(s, sch, opts)
}

// OpenInMemory opens a transient database, used by tests and scratch work.
func OpenInMemory(sch *schema.Schema, opts Options) (*Database, error) {
	s, err := store.OpenInMemory(sch)
	if err != nil {
		return nil, fmt.Errorf("db: open store: %w", err)
	}
	return newDatabase(s, sch, opts)
}

func newDatabase(s *store.Store, sch *schema.Schema, opts Options) (*Database, error) {
	d := &Database{
		store:      s,
		schema:     sch,
		transactor: transactor.New(s, sch, opts.TransactorOptions),
		opts:       opts,
	}
	if opts.FulltextPath != "" {
		ix, err := fulltext.Open(opts.FulltextPath, opts.FulltextOptions)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("db: open fulltext index: %w", err)
		}
		d.fulltext = ix
	}
	return d, nil
}

// Close releases the store and, if open, the fulltext index.
func (d *Database) Close() error {
	if d.fulltext != nil {
		if err := d.fulltext.Close(); err != nil {
			return err
		}
	}
	return d.store.Close()
}

// Schema returns the database's current schema.
func (d *Database) Schema() *schema.Schema { return d.schema }

// ExtendSchema adds attrs to the schema, in both the store (so future
// writes pick the right indices) and the transactor (so future
// transactions validate against them).
func (d *Database) ExtendSchema(attrs []schema.Attribute) error {
	sch, err := d.schema.Extend(attrs)
	if err != nil {
		return err
	}
	d.schema = sch
	d.store.SetSchema(sch)
	d.transactor.SetSchema(sch)
	return nil
}

// RegisterFn installs a named transaction function (:db.fn/call target),
// forwarded to the underlying transactor.
func (d *Database) RegisterFn(ident quill.Keyword, fn transactor.TxFunc) {
	d.transactor.RegisterFn(ident, fn)
}

// Transact commits items as a single transaction.
func (d *Database) Transact(items []transactor.TxItem) (*transactor.TxReport, error) {
	return d.transactor.Transact(items)
}

// Fulltext returns the database's full-text index, or nil if none was
// opened.
func (d *Database) Fulltext() *fulltext.Index { return d.fulltext }

// newEvaluator builds the executor for either the live database or an
// AsOf snapshot of it; asOfTx == 0 means unrestricted.
func (d *Database) newEvaluator(asOfTx uint64) *executor.Evaluator {
	if asOfTx == 0 {
		return executor.NewEvaluator(d.store, d.opts.Rules)
	}
	return executor.NewEvaluatorAsOf(d.store, d.opts.Rules, asOfTx)
}

// Query parses and runs a :find/:in/:where query string against the live
// database. inputs are supplied positionally against the query's :in
// clause, including a placeholder (nil is fine) for the leading $ source
// -- executor.Evaluator.seedRelation expects one input per :in element.
func (d *Database) Query(queryStr string, inputs ...interface{}) (executor.Relation, error) {
	q, err := parser.ParseQuery(queryStr)
	if err != nil {
		return nil, fmt.Errorf("db: parse query: %w", err)
	}
	if err := parser.ValidateQuery(q); err != nil {
		return nil, fmt.Errorf("db: invalid query: %w", err)
	}
	return d.newEvaluator(0).Execute(q, inputs)
}

// QueryRows runs Query and flattens the result into [][]interface{},
// convenient for callers that don't want to walk a Relation.
func (d *Database) QueryRows(queryStr string, inputs ...interface{}) ([][]interface{}, error) {
	rel, err := d.Query(queryStr, inputs...)
	if err != nil {
		return nil, err
	}
	return relationToRows(rel), nil
}

func relationToRows(rel executor.Relation) [][]interface{} {
	rows := make([][]interface{}, 0, rel.Size())
	it := rel.Iterator()
	for it.Next() {
		t := it.Tuple()
		row := make([]interface{}, len(t))
		copy(row, t)
		rows = append(rows, row)
	}
	return rows
}

// AsOf returns a read-only snapshot of the database as of tx (inclusive).
// Since the store keeps only a live index and no history log, AsOf can
// hide datoms asserted after tx but cannot bring back one a later tx
// retracted -- see SPEC_FULL.md's History retention decision.
func (d *Database) AsOf(tx uint64) *Snapshot {
	return &Snapshot{db: d, asOfTx: tx}
}

// Snapshot is a Database pinned to reads as of a fixed tx id. It shares
// the underlying store and transactor with its parent Database (nothing
// is copied), so it reflects writes up to asOfTx even if they commit
// after the snapshot is taken.
type Snapshot struct {
	db     *Database
	asOfTx uint64
}

// Query runs a query against the snapshot instead of the live database.
func (snap *Snapshot) Query(queryStr string, inputs ...interface{}) (executor.Relation, error) {
	q, err := parser.ParseQuery(queryStr)
	if err != nil {
		return nil, fmt.Errorf("db: parse query: %w", err)
	}
	if err := parser.ValidateQuery(q); err != nil {
		return nil, fmt.Errorf("db: invalid query: %w", err)
	}
	return snap.db.newEvaluator(snap.asOfTx).Execute(q, inputs)
}

// QueryRows is Snapshot's counterpart to Database.QueryRows.
func (snap *Snapshot) QueryRows(queryStr string, inputs ...interface{}) ([][]interface{}, error) {
	rel, err := snap.Query(queryStr, inputs...)
	if err != nil {
		return nil, err
	}
	return relationToRows(rel), nil
}

// Stats reports lightweight database-size statistics, with the datom count
// also given as a comma-grouped string.
type Stats struct {
	Datoms       int
	Entities     int
	DatomsPretty string
}

// Stats scans the EAVT index to report datom and distinct-entity counts.
// Like the teacher's Stats, this is a convenience for operators, not a
// hot path: it pays for a full index scan every call.
func (d *Database) Stats() (Stats, error) {
	datoms, err := d.store.Datoms(store.EAVT)
	if err != nil {
		return Stats{}, fmt.Errorf("db: stats: %w", err)
	}
	entities := make(map[quill.Identity]bool, len(datoms))
	for _, dt := range datoms {
		entities[dt.E] = true
	}
	return Stats{
		Datoms:       len(datoms),
		Entities:     len(entities),
		DatomsPretty: humanize.Comma(int64(len(datoms))),
	}, nil
}
