package kv

import (
	"fmt"
	"os"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	dir, err := os.MkdirTemp("", "quill-kv-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := Open(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(txn Txn) error {
		return txn.Set([]byte("key1"), []byte("value1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		v, err := txn.Get([]byte("key1"))
		if err != nil {
			t.Fatal(err)
		}
		if string(v) != "value1" {
			t.Fatalf("expected value1, got %s", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.Update(func(txn Txn) error {
		return txn.Delete([]byte("key1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		_, err := txn.Get([]byte("key1"))
		if err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScanOrdersKeysAscending(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(txn Txn) error {
		for i := 0; i < 10; i++ {
			key := []byte(fmt.Sprintf("k%02d", i))
			if err := txn.Set(key, []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		cur := txn.Scan([]byte("k00"), nil)
		defer cur.Close()

		prev := ""
		count := 0
		for cur.Next() {
			k := string(cur.Key())
			if prev != "" && k <= prev {
				t.Fatalf("keys not ascending: %s then %s", prev, k)
			}
			prev = k
			count++
		}
		if count != 10 {
			t.Fatalf("expected 10 keys, got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScanRespectsEndBound(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(txn Txn) error {
		for _, k := range []string{"a1", "a2", "b1", "b2", "c1"} {
			if err := txn.Set([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		start, end := PrefixRange([]byte("a"))
		cur := txn.Scan(start, end)
		defer cur.Close()

		var got []string
		for cur.Next() {
			got = append(got, string(cur.Key()))
		}
		if len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
			t.Fatalf("expected [a1 a2], got %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenSamePathTwiceFails(t *testing.T) {
	dir, err := os.MkdirTemp("", "quill-kv-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db1, err := Open(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer db1.Close()

	_, err = Open(dir, Options{})
	if err == nil {
		t.Fatal("expected error opening the same path twice")
	}
}

func TestInMemoryDoesNotTouchRegistry(t *testing.T) {
	db1, err := Open("", Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer db1.Close()

	db2, err := Open("", Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
}

func TestBatchWriter(t *testing.T) {
	db := openTestDB(t)

	bw := db.NewBatchWriter()
	for i := 0; i < 5; i++ {
		if err := bw.Set([]byte(fmt.Sprintf("bk%d", i)), []byte("v")); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}

	err := db.View(func(txn Txn) error {
		v, err := txn.Get([]byte("bk3"))
		if err != nil {
			t.Fatal(err)
		}
		if string(v) != "v" {
			t.Fatalf("expected v, got %s", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPrefixRangeCarriesOnAllFFBytes(t *testing.T) {
	start, end := PrefixRange([]byte{0xFF, 0xFF})
	if string(start) != string([]byte{0xFF, 0xFF}) {
		t.Fatalf("unexpected start: %v", start)
	}
	if len(end) != 3 || end[2] != 0x00 {
		t.Fatalf("expected carried end with appended 0x00, got %v", end)
	}
}
