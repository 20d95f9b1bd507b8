package fulltext

import (
	"encoding/binary"
	"sort"

	quill "github.com/quilldb/quill"
	"github.com/quilldb/quill/kv"
)

// AddDoc tokenizes text, aggregates its term and bigram frequencies, and
// persists all five §4.H structures for a fresh doc-id bound to ref (the
// application's own identifier for the thing being indexed -- an entity
// Identity, a file path, anything codec can encode). Returns the assigned
// doc-id.
func (ix *Index) AddDoc(ref quill.Value, text string) (uint64, error) {
	tokens := Tokenize(text)
	encodedRef, err := encodeDocRef(ref)
	if err != nil {
		return 0, err
	}

	docID := ix.nextDocID.Add(1) - 1

	err = ix.db.Update(func(txn kv.Txn) error {
		if err := txn.Set(docKey(docID), encodedRef); err != nil {
			return err
		}

		positions := make(map[string][]Token)
		termIDs := make(map[string]uint64)
		for _, tok := range tokens {
			positions[tok.Term] = append(positions[tok.Term], tok)
		}

		for term, occs := range positions {
			id, err := ix.termID(txn, term)
			if err != nil {
				return err
			}
			termIDs[term] = id

			if err := kv.ListAdd(txn, termDocsListKey(id), docIDKey(docID)); err != nil {
				return err
			}
			if err := txn.Set(positionsKey(docID, id), encodePositions(occs)); err != nil {
				return err
			}
		}

		for i := 0; i+1 < len(tokens); i++ {
			a, b := tokens[i], tokens[i+1]
			if b.Position != a.Position+1 {
				continue
			}
			if err := bumpBigram(txn, termIDs[a.Term], termIDs[b.Term]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return docID, nil
}

func positionsKey(docID, termID uint64) []byte {
	return concat(positionsPrefix, docIDKey(docID), termIDKey(termID))
}

func encodePositions(occs []Token) []byte {
	sort.Slice(occs, func(i, j int) bool { return occs[i].Position < occs[j].Position })
	out := make([]byte, 0, len(occs)*8)
	var buf [8]byte
	for _, o := range occs {
		binary.BigEndian.PutUint32(buf[0:4], uint32(o.Position))
		binary.BigEndian.PutUint32(buf[4:8], uint32(o.Offset))
		out = append(out, buf[:]...)
	}
	return out
}

func decodePositions(data []byte) []int {
	n := len(data) / 8
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(binary.BigEndian.Uint32(data[i*8 : i*8+4]))
	}
	return out
}

func bigramKey(id1, id2 uint64) []byte {
	return concat(bigramPrefix, termIDKey(id1), termIDKey(id2))
}

func bumpBigram(txn kv.Txn, id1, id2 uint64) error {
	key := bigramKey(id1, id2)
	count := uint64(0)
	if raw, err := txn.Get(key); err == nil {
		count, err = decodeID(raw)
		if err != nil {
			return err
		}
	} else if err != kv.ErrNotFound {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count+1)
	return txn.Set(key, buf)
}

// candidate is one term considered for a query token, after fuzzy
// correction: either the term itself (Dist 0) or a symmetric-delete match
// within the configured edit distance.
type candidate struct {
	term string
	id   uint64
	dist int
}

// Correct returns every indexed term within the index's configured edit
// distance of term, nearest first, the term itself always included first
// when it is already indexed.
func (ix *Index) Correct(term string) ([]string, error) {
	var out []string
	err := ix.db.View(func(txn kv.Txn) error {
		cands, err := ix.correct(txn, term)
		if err != nil {
			return err
		}
		for _, c := range cands {
			out = append(out, c.term)
		}
		return nil
	})
	return out, err
}

func (ix *Index) correct(txn kv.Txn, term string) ([]candidate, error) {
	var cands []candidate
	seen := map[string]bool{}

	if id, ok, err := ix.lookupTermID(txn, term); err != nil {
		return nil, err
	} else if ok {
		cands = append(cands, candidate{term: term, id: id, dist: 0})
		seen[term] = true
	}

	if ix.opts.MaxEditDistance <= 0 {
		return cands, nil
	}

	variants := deletionSet(term, ix.opts.MaxEditDistance, ix.opts.PrefixLength)
	realTerms := map[string]bool{}
	for _, v := range variants {
		err := kv.ListIter(txn, deleteListKey(v), func(member []byte) error {
			realTerms[string(member)] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	type scored struct {
		term string
		dist int
	}
	var ranked []scored
	for t := range realTerms {
		if seen[t] {
			continue
		}
		d := levenshtein(term, t)
		if d <= ix.opts.MaxEditDistance {
			ranked = append(ranked, scored{term: t, dist: d})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].term < ranked[j].term
	})
	for _, r := range ranked {
		id, ok, err := ix.lookupTermID(txn, r.term)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cands = append(cands, candidate{term: r.term, id: id, dist: r.dist})
	}
	return cands, nil
}

// Hit is one ranked result: the application's own doc-ref, the internal
// doc-id (stable within this index, useful for incremental re-ranking),
// and the combined unigram/bigram score it earned.
type Hit struct {
	Ref   quill.Value
	DocID uint64
	Score float64
}

// HitIterator walks a Query's results in decreasing score order. Like
// executor.Relation, results are computed eagerly (§4.H's "lazy sequence"
// is realized here as a materialized, already-sorted slice rather than a
// channel or generator) and then exposed one at a time through the same
// Next/value idiom the rest of the engine uses.
type HitIterator struct {
	hits []Hit
	pos  int
}

func (it *HitIterator) Next() bool {
	it.pos++
	return it.pos < len(it.hits)
}

func (it *HitIterator) Hit() Hit {
	return it.hits[it.pos]
}

// unigramWeight and bigramWeight set the relative contribution of an
// isolated term hit versus a verified adjacent bigram hit to a document's
// score; §4.H only requires that bigram hits count for more, so the exact
// ratio is a tuning knob rather than a spec'd constant.
const (
	unigramWeight = 1.0
	bigramWeight  = 2.0
)

// Query tokenizes text, corrects each term via symmetric-delete fuzzy
// lookup, unions the per-term doc sets, and ranks the union by a combined
// unigram/bigram score: every matched term (exact or corrected) adds
// unigramWeight/(1+dist) to a document's score, and every adjacent query
// term pair that the document also carries adjacently (verified against
// the positions table, not just co-occurrence) adds bigramWeight on top.
func (ix *Index) Query(text string) (*HitIterator, error) {
	tokens := Tokenize(text)
	scores := make(map[uint64]float64)

	err := ix.db.View(func(txn kv.Txn) error {
		termIDs := make([]uint64, len(tokens))
		found := make([]bool, len(tokens))

		for i, tok := range tokens {
			cands, err := ix.correct(txn, tok.Term)
			if err != nil {
				return err
			}
			for _, c := range cands {
				weight := unigramWeight / float64(1+c.dist)
				err := kv.ListIter(txn, termDocsListKey(c.id), func(member []byte) error {
					docID, err := decodeID(member)
					if err != nil {
						return err
					}
					scores[docID] += weight
					return nil
				})
				if err != nil {
					return err
				}
			}
			if len(cands) > 0 && cands[0].dist == 0 {
				termIDs[i] = cands[0].id
				found[i] = true
			}
		}

		for i := 0; i+1 < len(tokens); i++ {
			if !found[i] || !found[i+1] {
				continue
			}
			if tokens[i+1].Position != tokens[i].Position+1 {
				continue
			}
			if _, err := bumpBigramMatches(txn, termIDs[i], termIDs[i+1], scores); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scores))
	err = ix.db.View(func(txn kv.Txn) error {
		for docID, score := range scores {
			raw, err := txn.Get(docKey(docID))
			if err != nil {
				return err
			}
			ref, err := decodeDocRef(raw)
			if err != nil {
				return err
			}
			hits = append(hits, Hit{Ref: ref, DocID: docID, Score: score})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	return &HitIterator{hits: hits, pos: -1}, nil
}

// bumpBigramMatches finds every document carrying id1 and id2 at adjacent
// positions and adds bigramWeight to its score.
func bumpBigramMatches(txn kv.Txn, id1, id2 uint64, scores map[uint64]float64) (int, error) {
	n := 0
	err := kv.ListIter(txn, termDocsListKey(id1), func(member []byte) error {
		docID, err := decodeID(member)
		if err != nil {
			return err
		}
		ok, err := kv.InList(txn, termDocsListKey(id2), member)
		if err != nil || !ok {
			return err
		}
		p1, err := txn.Get(positionsKey(docID, id1))
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		p2, err := txn.Get(positionsKey(docID, id2))
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if adjacent(decodePositions(p1), decodePositions(p2)) {
			scores[docID] += bigramWeight
			n++
		}
		return nil
	})
	return n, err
}

func adjacent(positions1, positions2 []int) bool {
	set := make(map[int]bool, len(positions1))
	for _, p := range positions1 {
		set[p] = true
	}
	for _, p := range positions2 {
		if set[p-1] {
			return true
		}
	}
	return false
}
