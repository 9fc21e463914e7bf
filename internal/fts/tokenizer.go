// Package fts builds a transient inverted index over a request's corpus and
// ranks documents against a free-text query with BM25.
package fts

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// separatorRegex splits on whitespace and hyphens.
var separatorRegex = regexp.MustCompile(`[\s\-]+`)

// Tokenize lowercases text, splits it on whitespace and hyphens and trims
// non-word characters from both ends of every token.
func Tokenize(text string) []string {
	parts := separatorRegex.Split(strings.ToLower(text), -1)

	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimFunc(p, isNotWordRune)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Analyze runs the full indexing pipeline: tokenize, drop stop words, stem.
// Queries go through the same pipeline so terms line up with the index.
func Analyze(text string) []string {
	tokens := Tokenize(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if isStopWord(tok) {
			continue
		}
		if stem := english.Stem(tok, false); stem != "" {
			out = append(out, stem)
		}
	}
	return out
}

func isNotWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}
