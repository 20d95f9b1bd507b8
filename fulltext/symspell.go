package fulltext

// deletionSet enumerates every string reachable from term by deleting up
// to maxDist runes, including term itself (dist 0). If term is longer than
// prefixLength, only its first prefixLength runes seed deletions -- the
// classic SymSpell space/recall tradeoff: a long word's variety lives
// mostly in its suffix (plurals, tense), so truncating the seed keeps the
// deletion index from growing with every suffix variant while still
// catching the typo-prone prefix.
func deletionSet(term string, maxDist, prefixLength int) []string {
	if maxDist <= 0 {
		return []string{term}
	}

	seed := []rune(term)
	if prefixLength > 0 && len(seed) > prefixLength {
		seed = seed[:prefixLength]
	}

	set := map[string]bool{term: true}
	frontier := []string{string(seed)}
	for dist := 0; dist < maxDist; dist++ {
		var next []string
		for _, s := range frontier {
			r := []rune(s)
			for i := range r {
				variant := string(append(append([]rune{}, r[:i]...), r[i+1:]...))
				if !set[variant] {
					set[variant] = true
					next = append(next, variant)
				}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// levenshtein returns the classic single-character edit distance (insert,
// delete, substitute) between a and b, used to verify symmetric-delete
// candidates before they are trusted: matching a shared deletion variant
// only bounds the distance by 2*maxDist, not maxDist, so every candidate
// is re-checked against the real distance before it is accepted.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
