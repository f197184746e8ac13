// Package scrapbox imports Scrapbox-style page bundles into an index and
// answers the search and get requests of the scrapq command line.
package scrapbox

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/schema"
)

// Bundle is an exported Scrapbox project.
type Bundle struct {
	Name  string `json:"name"`
	Pages []Page `json:"pages"`
}

// Page is one titled page; Lines are joined with newlines to form the body.
type Page struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// SearchResult is one row of search output.
type SearchResult struct {
	Address string `json:"address"`
	Title   string `json:"title"`
}

// Document maps a page onto the title/body schema.
func (p Page) Document() index.Document {
	return index.Document{
		schema.FieldTitle: {p.Title},
		schema.FieldBody:  {strings.Join(p.Lines, "\n")},
	}
}
