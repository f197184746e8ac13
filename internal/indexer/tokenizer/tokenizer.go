// Package tokenizer provides text tokenisation for the index engine.
// It lower-cases input and splits on non-alphanumeric boundaries. Stop words
// are kept and no stemming is applied, so a query term matches exactly the
// tokens produced at index time.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position uint32
}

// Terms returns a lazy sequence over the tokens of text. The sequence can be
// ranged over any number of times and always yields the same tokens.
func Terms(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		var pos uint32
		start := -1
		for i := 0; i <= len(text); {
			r, size := utf8.RuneError, 1
			if i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
			}
			if i < len(text) && isTokenRune(r) {
				if start < 0 {
					start = i
				}
				i += size
				continue
			}
			if start >= 0 {
				if !yield(Token{Term: strings.ToLower(text[start:i]), Position: pos}) {
					return
				}
				pos++
				start = -1
			}
			i += size
		}
	}
}

// Tokenize breaks text into a slice of lowercased Tokens.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6+1)
	for tok := range Terms(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Normalize returns the terms of text without positions.
func Normalize(text string) []string {
	var terms []string
	for tok := range Terms(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

func isTokenRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
