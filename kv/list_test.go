package kv

import "testing"

func TestListAddAndInList(t *testing.T) {
	db := openTestDB(t)
	prefix := []byte("unigrams\x00run")

	err := db.Update(func(txn Txn) error {
		return ListAdd(txn, prefix, []byte("doc-1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		ok, err := InList(txn, prefix, []byte("doc-1"))
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected doc-1 to be in the list")
		}
		ok, err = InList(txn, prefix, []byte("doc-2"))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatal("expected doc-2 not to be in the list")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListRemove(t *testing.T) {
	db := openTestDB(t)
	prefix := []byte("unigrams\x00run")

	err := db.Update(func(txn Txn) error {
		if err := ListAdd(txn, prefix, []byte("doc-1")); err != nil {
			return err
		}
		return ListRemove(txn, prefix, []byte("doc-1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		ok, err := InList(txn, prefix, []byte("doc-1"))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatal("expected doc-1 to be removed")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListCount(t *testing.T) {
	db := openTestDB(t)
	prefix := []byte("unigrams\x00run")

	err := db.Update(func(txn Txn) error {
		for _, doc := range []string{"doc-1", "doc-2", "doc-3"} {
			if err := ListAdd(txn, prefix, []byte(doc)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		n, err := ListCount(txn, prefix)
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("expected 3, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListIterVisitsAllMembersInOrder(t *testing.T) {
	db := openTestDB(t)
	prefix := []byte("unigrams\x00run")

	err := db.Update(func(txn Txn) error {
		for _, doc := range []string{"doc-3", "doc-1", "doc-2"} {
			if err := ListAdd(txn, prefix, []byte(doc)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		var got []string
		err := ListIter(txn, prefix, func(member []byte) error {
			got = append(got, string(member))
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0] != "doc-1" || got[1] != "doc-2" || got[2] != "doc-3" {
			t.Fatalf("expected sorted [doc-1 doc-2 doc-3], got %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListOperationsDoNotCollideAcrossDistinctPrefixes(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(txn Txn) error {
		if err := ListAdd(txn, []byte("unigrams\x00run"), []byte("doc-1")); err != nil {
			return err
		}
		return ListAdd(txn, []byte("unigrams\x00runner"), []byte("doc-2"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.View(func(txn Txn) error {
		n, err := ListCount(txn, []byte("unigrams\x00run"))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("expected 1 member under the exact 'run' list, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
