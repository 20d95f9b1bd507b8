package db

import (
	"fmt"
	"sync"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/transactor"
)

// Transaction accumulates tx-items across multiple Add/Retract/AddEntity
// calls and commits them as one atomic transactor.Transact batch. Grounded
// on the teacher's Transaction builder (datalog/storage/database.go), but
// the accumulate-then-flush split is thinner here: the teacher mutates its
// own datoms/retracts slices and hands them to storage at Commit, while
// this Transaction is only ever a staging list of transactor.TxItem --
// tempid resolution, validation, and CAS all happen exactly once, inside
// transactor.Transactor.Transact, not split across Add and Commit.
type Transaction struct {
	db     *Database
	mu     sync.Mutex
	items  []transactor.TxItem
	closed bool
}

// NewTransaction starts a new builder over d.
func (d *Database) NewTransaction() *Transaction {
	return &Transaction{db: d}
}

func (t *Transaction) append(item transactor.TxItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("db: transaction already committed or rolled back")
	}
	t.items = append(t.items, item)
	return nil
}

// Add stages an assertion of (e, a, v).
func (t *Transaction) Add(e transactor.EntityRef, a quill.Keyword, v quill.Value) error {
	return t.append(transactor.AddDatom{E: e, A: a, V: v})
}

// Retract stages a retraction of (e, a, v).
func (t *Transaction) Retract(e transactor.EntityRef, a quill.Keyword, v quill.Value) error {
	return t.append(transactor.RetractDatom{E: e, A: a, V: v})
}

// RetractEntity stages retraction of every datom entity e currently owns.
func (t *Transaction) RetractEntity(e transactor.EntityRef) error {
	return t.append(transactor.RetractEntity{E: e})
}

// AddEntity stages one assertion per attribute in attrs, all against the
// same entity e (a resolved Identity or a transactor.TempID).
func (t *Transaction) AddEntity(e transactor.EntityRef, attrs map[quill.Keyword]quill.Value) error {
	for a, v := range attrs {
		if err := t.Add(e, a, v); err != nil {
			return err
		}
	}
	return nil
}

// Commit flushes every staged item through the database's transactor as a
// single atomic transaction. The builder is closed afterward; further
// calls to Add/Retract/Commit return an error.
func (t *Transaction) Commit() (*transactor.TxReport, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("db: transaction already committed or rolled back")
	}
	items := t.items
	t.closed = true
	t.mu.Unlock()

	return t.db.Transact(items)
}

// Rollback discards every staged item without writing anything. Since
// nothing is written to the store until Commit, this just closes the
// builder -- kept as a named operation because the teacher's API has one
// and because a symmetrical Commit/Rollback pair reads better at call
// sites than silently dropping the builder.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("db: transaction already committed or rolled back")
	}
	t.closed = true
	t.items = nil
	return nil
}
