// Package parser turns a user query string into a query tree.
//
// Grammar:
//
//	query  := andExp ("OR" andExp)*
//	andExp := clause (["AND"] clause)*
//	clause := [field ":"] (word | '"' text '"')
//
// A bare word matches any of the default fields; a word that tokenizes into
// several tokens becomes a phrase. Clauses written next to each other are
// ANDed. The AND and OR keywords are recognised only in upper case.
package parser

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

// Parser parses queries against one schema.
type Parser struct {
	schema        *schema.Schema
	defaultFields []string
}

// New returns a Parser whose bare words search defaultFields. Every default
// field must exist in s and be indexed.
func New(s *schema.Schema, defaultFields []string) (*Parser, error) {
	if len(defaultFields) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "no default fields")
	}
	for _, name := range defaultFields {
		f, ok := s.Field(name)
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrFieldNotFound, "default field %q is not in the schema", name)
		}
		if !f.Indexed {
			return nil, apperrors.Newf(apperrors.ErrFieldNotFound, "default field %q is not indexed", name)
		}
	}
	return &Parser{
		schema:        s,
		defaultFields: append([]string(nil), defaultFields...),
	}, nil
}

// Parse is shorthand for New followed by Parser.Parse.
func Parse(s *schema.Schema, defaultFields []string, text string) (query.Node, error) {
	p, err := New(s, defaultFields)
	if err != nil {
		return nil, err
	}
	return p.Parse(text)
}

// Parse parses text. Failures are *apperrors.ParseError; references to an
// unknown or unindexed field also match apperrors.ErrFieldNotFound.
func (p *Parser) Parse(text string) (query.Node, error) {
	items, err := lex(text)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &apperrors.ParseError{Reason: "empty query", Position: 0}
	}

	var groups [][]query.Node
	var group []query.Node
	var pending *item
	for i := range items {
		it := &items[i]
		switch it.kind {
		case itemAnd, itemOr:
			if i == 0 || items[i-1].kind != itemClause {
				return nil, &apperrors.ParseError{
					Reason:   fmt.Sprintf("%s has no left operand", it.kind),
					Position: it.pos,
				}
			}
			if it.kind == itemOr {
				groups = append(groups, group)
				group = nil
			}
			pending = it
		case itemClause:
			node, err := p.clause(it)
			if err != nil {
				return nil, err
			}
			if node != nil {
				group = append(group, node)
			}
			pending = nil
		}
	}
	if pending != nil {
		return nil, &apperrors.ParseError{
			Reason:   fmt.Sprintf("%s has no right operand", pending.kind),
			Position: pending.pos,
		}
	}
	groups = append(groups, group)

	alternatives := make([]query.Node, 0, len(groups))
	for _, g := range groups {
		if len(g) > 0 {
			alternatives = append(alternatives, query.NewAnd(g...))
		}
	}
	if len(alternatives) == 0 {
		return nil, &apperrors.ParseError{Reason: "query has no searchable terms", Position: 0}
	}
	return query.NewOr(alternatives...), nil
}

// clause builds the node for one clause, or nil when its text holds no
// tokens.
func (p *Parser) clause(it *item) (query.Node, error) {
	fields := p.defaultFields
	if it.field != "" {
		f, ok := p.schema.Field(it.field)
		if !ok {
			return nil, &apperrors.ParseError{
				Reason:   fmt.Sprintf("unknown field %q", it.field),
				Position: it.pos,
				Err:      apperrors.ErrFieldNotFound,
			}
		}
		if !f.Indexed {
			return nil, &apperrors.ParseError{
				Reason:   fmt.Sprintf("field %q is not indexed", it.field),
				Position: it.pos,
				Err:      apperrors.ErrFieldNotFound,
			}
		}
		fields = []string{it.field}
	}

	tokens := tokenizer.Normalize(it.text)
	if len(tokens) == 0 {
		if it.quoted {
			return nil, &apperrors.ParseError{Reason: "empty phrase", Position: it.pos}
		}
		return nil, nil
	}

	nodes := make([]query.Node, 0, len(fields))
	for _, f := range fields {
		if len(tokens) == 1 {
			nodes = append(nodes, &query.Term{Field: f, Token: tokens[0]})
		} else {
			nodes = append(nodes, &query.Phrase{Field: f, Tokens: tokens})
		}
	}
	return query.NewOr(nodes...), nil
}
