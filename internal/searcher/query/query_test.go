package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	n := &And{Children: []Node{
		&Or{Children: []Node{
			&Term{Field: "title", Token: "hello"},
			&Term{Field: "body", Token: "hello"},
		}},
		&Phrase{Field: "body", Tokens: []string{"second", "line"}},
	}}
	assert.Equal(t, `((title:hello OR body:hello) AND body:"second line")`, n.String())
}

func TestFields(t *testing.T) {
	n := &Or{Children: []Node{
		&Term{Field: "title", Token: "a"},
		&And{Children: []Node{
			&Term{Field: "body", Token: "b"},
			&Phrase{Field: "title", Tokens: []string{"c", "d"}},
		}},
	}}
	assert.Equal(t, []string{"body", "title"}, Fields(n))
	assert.Empty(t, Fields(nil))
}

func TestNewAndOrCollapseSingleChild(t *testing.T) {
	leaf := &Term{Field: "title", Token: "x"}
	assert.Same(t, leaf, NewAnd(leaf))
	assert.Same(t, leaf, NewOr(leaf))
	assert.IsType(t, &And{}, NewAnd(leaf, leaf))
	assert.IsType(t, &Or{}, NewOr(leaf, leaf))
}
