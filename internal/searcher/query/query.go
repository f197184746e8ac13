// Package query defines the parsed query tree evaluated by the searcher.
package query

import (
	"sort"
	"strconv"
	"strings"
)

// Node is one of Term, Phrase, And or Or.
type Node interface {
	// String renders the node in a canonical, reparseable-looking form used
	// in logs and tests.
	String() string
	walk(fn func(Node))
}

// Term matches documents whose field contains Token.
type Term struct {
	Field string
	Token string
}

// Phrase matches documents whose field contains Tokens at consecutive
// positions.
type Phrase struct {
	Field  string
	Tokens []string
}

// And matches documents matched by every child.
type And struct {
	Children []Node
}

// Or matches documents matched by at least one child.
type Or struct {
	Children []Node
}

func (t *Term) String() string {
	return t.Field + ":" + t.Token
}

func (p *Phrase) String() string {
	return p.Field + ":" + strconv.Quote(strings.Join(p.Tokens, " "))
}

func (a *And) String() string {
	return join(a.Children, " AND ")
}

func (o *Or) String() string {
	return join(o.Children, " OR ")
}

func join(children []Node, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (t *Term) walk(fn func(Node))   { fn(t) }
func (p *Phrase) walk(fn func(Node)) { fn(p) }

func (a *And) walk(fn func(Node)) {
	fn(a)
	for _, c := range a.Children {
		c.walk(fn)
	}
}

func (o *Or) walk(fn func(Node)) {
	fn(o)
	for _, c := range o.Children {
		c.walk(fn)
	}
}

// Walk calls fn for n and every descendant, parents first.
func Walk(n Node, fn func(Node)) {
	if n != nil {
		n.walk(fn)
	}
}

// Fields returns the distinct field names referenced by n, sorted.
func Fields(n Node) []string {
	seen := make(map[string]struct{})
	Walk(n, func(node Node) {
		switch v := node.(type) {
		case *Term:
			seen[v.Field] = struct{}{}
		case *Phrase:
			seen[v.Field] = struct{}{}
		}
	})
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// NewAnd returns the single child itself, or an And over all of them.
func NewAnd(children ...Node) Node {
	if len(children) == 1 {
		return children[0]
	}
	return &And{Children: children}
}

// NewOr returns the single child itself, or an Or over all of them.
func NewOr(children ...Node) Node {
	if len(children) == 1 {
		return children[0]
	}
	return &Or{Children: children}
}
