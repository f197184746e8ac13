package parser

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

type itemKind int

const (
	itemClause itemKind = iota
	itemAnd
	itemOr
)

func (k itemKind) String() string {
	switch k {
	case itemAnd:
		return "AND"
	case itemOr:
		return "OR"
	default:
		return "clause"
	}
}

// item is one lexed element of a query. pos is a byte offset into the
// query text.
type item struct {
	kind   itemKind
	pos    int
	field  string
	text   string
	quoted bool
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func lex(text string) ([]item, error) {
	var items []item
	i := 0
	for i < len(text) {
		if isSpace(text[i]) {
			i++
			continue
		}
		start := i
		if text[i] == '"' {
			phrase, next, err := readQuoted(text, i)
			if err != nil {
				return nil, err
			}
			items = append(items, item{kind: itemClause, pos: start, text: phrase, quoted: true})
			i = next
			continue
		}

		for i < len(text) && !isSpace(text[i]) && text[i] != '"' {
			i++
		}
		word := text[start:i]
		switch word {
		case "AND":
			items = append(items, item{kind: itemAnd, pos: start})
			continue
		case "OR":
			items = append(items, item{kind: itemOr, pos: start})
			continue
		}

		field, rest, ok := strings.Cut(word, ":")
		if !ok {
			items = append(items, item{kind: itemClause, pos: start, text: word})
			continue
		}
		if field == "" {
			return nil, &apperrors.ParseError{Reason: "missing field name before ':'", Position: start}
		}
		it := item{kind: itemClause, pos: start, field: field, text: rest}
		if rest == "" {
			if i >= len(text) || text[i] != '"' {
				return nil, &apperrors.ParseError{
					Reason:   fmt.Sprintf("missing term after %q", field+":"),
					Position: i,
				}
			}
			phrase, next, err := readQuoted(text, i)
			if err != nil {
				return nil, err
			}
			it.text = phrase
			it.quoted = true
			i = next
		}
		items = append(items, it)
	}
	return items, nil
}

// readQuoted reads the quoted text starting at text[i] == '"' and returns it
// along with the offset just past the closing quote.
func readQuoted(text string, i int) (string, int, error) {
	end := strings.IndexByte(text[i+1:], '"')
	if end < 0 {
		return "", 0, &apperrors.ParseError{Reason: "unterminated quote", Position: i}
	}
	return text[i+1 : i+1+end], i + end + 2, nil
}
