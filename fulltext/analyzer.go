package fulltext

import (
	"strings"
	"unicode"
)

// Token is one term surviving analysis, in source order.
type Token struct {
	Term     string // lowercased
	Position int    // token index within the document, 0-based
	Offset   int    // byte offset of the term's first rune in the source text
}

// stopwords is a minimal English stopword list; terms on it are dropped
// during analysis rather than indexed, the same "emit (term, position,
// offset) in source order" contract §4.H describes minus the noise words.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true,
	"he": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "that": true, "the": true, "to": true,
	"was": true, "were": true, "will": true, "with": true,
}

// Tokenize splits text on whitespace and punctuation, lowercases, and
// drops stopwords, numbering the surviving terms by their position in the
// token stream (not their position in the raw split, so a dropped
// stopword does not leave a gap bigrams would otherwise have to skip
// over).
func Tokenize(text string) []Token {
	var tokens []Token
	pos := 0
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		offset := start
		term := strings.ToLower(text[start:end])
		start = -1
		if term == "" || stopwords[term] {
			return
		}
		tokens = append(tokens, Token{Term: term, Position: pos, Offset: offset})
		pos++
	}

	for i, r := range text {
		if isTermRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))

	return tokens
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
