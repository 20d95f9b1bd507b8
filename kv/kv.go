// Package kv adapts the ordered key-value substrate that quill/store is
// built on. It is deliberately ignorant of datoms, indices, or schema: it
// knows only about byte keys, byte values, and range scans over them. This
// mirrors the teacher's BadgerStore (datalog/storage/badger_store.go), but
// the datom-specific assert/retract logic that file mixed into the storage
// engine has moved up into quill/store -- kv only provides the substrate
// primitives a KV-class engine offers (prefix-distinguished dbis, write-txn
// batching, cursor scans), so a future substrate swap touches this package alone.
package kv

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// openRegistry prevents the same on-disk path from being opened twice in
// one process; Badger itself takes a directory lock, but surfacing the
// conflict here gives a clearer error than a generic lock-acquisition
// failure three layers down.
var openRegistry = struct {
	sync.Mutex
	paths map[string]bool
}{paths: make(map[string]bool)}

// DB is a single open database directory. All dbis (EAVT, AEVT, AVET, VAET,
// the giants table, the full-text postings, ...) share one underlying
// Badger instance and are distinguished purely by key prefix, the same
// scheme the teacher's single-bucket BadgerStore relies on.
type DB struct {
	path string
	bdb  *badger.DB
}

// Options configures a DB at open time. Zero value is a workable default;
// Open applies the same read-heavy Badger tuning whatever the options.
type Options struct {
	// InMemory opens a transient, non-persistent database -- used by tests
	// and by the fulltext engine's scratch indices.
	InMemory bool
}

// Open opens (or creates) the database directory at path. Opening the same
// path twice in one process returns an error rather than silently sharing
// state, since Badger's single-writer model means two independent handles
// would fight over the directory lock.
func Open(path string, opts Options) (*DB, error) {
	if !opts.InMemory {
		openRegistry.Lock()
		if openRegistry.paths[path] {
			openRegistry.Unlock()
			return nil, fmt.Errorf("kv: database already open at %q", path)
		}
		openRegistry.paths[path] = true
		openRegistry.Unlock()
	}

	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}

	// Tuning carried over from the teacher's read-heavy defaults: larger
	// memtables and caches trade memory for fewer compactions and faster
	// range scans, which is the access pattern a datom index sees.
	bopts.MemTableSize = 128 << 20
	bopts.BlockCacheSize = 256 << 20
	bopts.IndexCacheSize = 100 << 20
	bopts.NumCompactors = 4
	bopts.ValueThreshold = 1 << 10

	bdb, err := badger.Open(bopts)
	if err != nil {
		if !opts.InMemory {
			openRegistry.Lock()
			delete(openRegistry.paths, path)
			openRegistry.Unlock()
		}
		return nil, fmt.Errorf("kv: open %q: %w", path, err)
	}

	return &DB{path: path, bdb: bdb}, nil
}

// Close releases the database directory, allowing it to be reopened.
func (d *DB) Close() error {
	openRegistry.Lock()
	delete(openRegistry.paths, d.path)
	openRegistry.Unlock()
	return d.bdb.Close()
}

// Update runs fn within a read-write transaction, committing on a nil
// return and discarding on error -- the single-writer batching unit every
// store mutation (transactor commits, schema installs) goes through.
func (d *DB) Update(fn func(Txn) error) error {
	return d.bdb.Update(func(btxn *badger.Txn) error {
		return fn(&txn{btxn: btxn})
	})
}

// View runs fn within a read-only transaction. Multiple Views may run
// concurrently with each other and with any in-flight Update.
func (d *DB) View(fn func(Txn) error) error {
	return d.bdb.View(func(btxn *badger.Txn) error {
		return fn(&txn{btxn: btxn})
	})
}

// NewBatchWriter returns a batch writer for bulk-loading datoms faster than
// repeated Update calls, mirroring Badger's WriteBatch.
func (d *DB) NewBatchWriter() *BatchWriter {
	return &BatchWriter{wb: d.bdb.NewWriteBatch()}
}

// BatchWriter accumulates sets/deletes and flushes them in size-bounded
// sub-transactions rather than one giant transaction.
type BatchWriter struct {
	wb *badger.WriteBatch
}

func (b *BatchWriter) Set(key, value []byte) error {
	return b.wb.Set(key, value)
}

func (b *BatchWriter) Delete(key []byte) error {
	return b.wb.Delete(key)
}

func (b *BatchWriter) Flush() error {
	return b.wb.Flush()
}

func (b *BatchWriter) Cancel() {
	b.wb.Cancel()
}

// Txn is a single read or read-write transaction against the substrate.
type Txn interface {
	// Get fetches the value for key, returning ErrNotFound if absent.
	Get(key []byte) ([]byte, error)
	// Set writes key to value. Only valid within a write transaction.
	Set(key, value []byte) error
	// Delete removes key. Only valid within a write transaction. Deleting
	// an absent key is not an error.
	Delete(key []byte) error
	// Scan returns a cursor over [start, end). A nil end scans to the end
	// of the keyspace (bounded in practice by the caller's prefix).
	Scan(start, end []byte) Cursor
}

// ErrNotFound is returned by Txn.Get when the key is absent.
var ErrNotFound = badger.ErrKeyNotFound

// Cursor iterates a key range in ascending order. The zero-value access
// pattern is Next() then Key()/Value() -- mirroring the teacher's
// BadgerIterator, a Cursor must be Seek'd or Next'd before Key/Value are
// valid, and must always be Closed.
type Cursor interface {
	Next() bool
	Seek(key []byte)
	Key() []byte
	Value() ([]byte, error)
	Close()
}

type txn struct {
	btxn *badger.Txn
}

func (t *txn) Get(key []byte) ([]byte, error) {
	item, err := t.btxn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *txn) Set(key, value []byte) error {
	return t.btxn.Set(key, value)
}

func (t *txn) Delete(key []byte) error {
	err := t.btxn.Delete(key)
	if err == badger.ErrKeyNotFound {
		return nil
	}
	return err
}

func (t *txn) Scan(start, end []byte) Cursor {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1000
	opts.PrefetchValues = true
	it := t.btxn.NewIterator(opts)
	return &cursor{it: it, start: start, end: end}
}

type cursor struct {
	it      *badger.Iterator
	start   []byte
	end     []byte
	started bool
}

func (c *cursor) Next() bool {
	if !c.started {
		c.it.Seek(c.start)
		c.started = true
	} else {
		c.it.Next()
	}
	if !c.it.Valid() {
		return false
	}
	if c.end != nil && bytes.Compare(c.it.Item().Key(), c.end) >= 0 {
		return false
	}
	return true
}

func (c *cursor) Seek(key []byte) {
	c.it.Seek(key)
	c.start = key
	c.started = false
}

func (c *cursor) Key() []byte {
	return c.it.Item().KeyCopy(nil)
}

func (c *cursor) Value() ([]byte, error) {
	return c.it.Item().ValueCopy(nil)
}

func (c *cursor) Close() {
	c.it.Close()
}

// PrefixRange derives the [start, end) bounds for every key beginning with
// prefix, by incrementing prefix's last byte (carrying into a new trailing
// 0x00 byte when the whole prefix is 0xFF). This is the same trick the
// teacher's EncodePrefixRange uses.
func PrefixRange(prefix []byte) (start, end []byte) {
	start = append([]byte{}, prefix...)
	end = append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			break
		}
		if i == 0 {
			end = append(end, 0x00)
		}
	}
	return start, end
}
