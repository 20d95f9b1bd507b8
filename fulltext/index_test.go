package fulltext

import "testing"

func openTestIndex(t *testing.T) *Index {
	ix, err := OpenInMemory(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestAddDocAndExactQuery(t *testing.T) {
	ix := openTestIndex(t)

	if _, err := ix.AddDoc("doc-1", "the quick brown fox jumps over the lazy dog"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDoc("doc-2", "a slow green turtle"); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Query("fox")
	if err != nil {
		t.Fatal(err)
	}
	if !hits.Next() {
		t.Fatal("expected at least one hit")
	}
	if hits.Hit().Ref != "doc-1" {
		t.Fatalf("expected doc-1, got %v", hits.Hit().Ref)
	}
	if hits.Next() {
		t.Fatal("expected exactly one hit")
	}
}

func TestQueryRanksBigramHitsAboveIsolatedUnigramHits(t *testing.T) {
	ix := openTestIndex(t)

	if _, err := ix.AddDoc("doc-quick-brown", "quick brown fox"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.AddDoc("doc-quick-only", "quick turtle, slow brown"); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Query("quick brown")
	if err != nil {
		t.Fatal(err)
	}
	if !hits.Next() {
		t.Fatal("expected a first hit")
	}
	first := hits.Hit()
	if first.Ref != "doc-quick-brown" {
		t.Fatalf("expected the adjacent-bigram doc to rank first, got %v", first.Ref)
	}
	if !hits.Next() {
		t.Fatal("expected a second hit")
	}
	second := hits.Hit()
	if first.Score <= second.Score {
		t.Fatalf("expected bigram doc to outscore the isolated-term doc: %v vs %v", first.Score, second.Score)
	}
}

func TestQueryCorrectsTypos(t *testing.T) {
	ix := openTestIndex(t)

	if _, err := ix.AddDoc("doc-1", "search engines index documents"); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Query("serach")
	if err != nil {
		t.Fatal(err)
	}
	if !hits.Next() {
		t.Fatal("expected the typo to be corrected to a hit")
	}
	if hits.Hit().Ref != "doc-1" {
		t.Fatalf("expected doc-1, got %v", hits.Hit().Ref)
	}
}

func TestQueryWithNoMatchesReturnsNoHits(t *testing.T) {
	ix := openTestIndex(t)
	if _, err := ix.AddDoc("doc-1", "hello world"); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Query("xylophone")
	if err != nil {
		t.Fatal(err)
	}
	if hits.Next() {
		t.Fatal("expected no hits")
	}
}

func TestStopwordsAreNotIndexed(t *testing.T) {
	ix := openTestIndex(t)
	if _, err := ix.AddDoc("doc-1", "the cat sat on the mat"); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Query("the")
	if err != nil {
		t.Fatal(err)
	}
	if hits.Next() {
		t.Fatal("expected 'the' to have been dropped as a stopword")
	}
}

func TestCorrectReturnsExactTermFirst(t *testing.T) {
	ix := openTestIndex(t)

	if _, err := ix.AddDoc("doc-1", "running runner runs"); err != nil {
		t.Fatal(err)
	}

	corrections, err := ix.Correct("run")
	if err != nil {
		t.Fatal(err)
	}
	if len(corrections) == 0 {
		t.Fatal("expected at least one correction")
	}

	corrections, err = ix.Correct("runs")
	if err != nil {
		t.Fatal(err)
	}
	if len(corrections) == 0 || corrections[0] != "runs" {
		t.Fatalf("expected the exact term to be returned first, got %v", corrections)
	}
}
