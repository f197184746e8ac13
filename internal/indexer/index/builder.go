// Package index accumulates documents into an in-memory inverted index and
// hands a sorted Snapshot to the segment writer.
package index

import (
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

// positionGap separates consecutive values of one field so that a phrase
// never matches across a value boundary.
const positionGap = 1

type Builder struct {
	mu       sync.Mutex
	schema   *schema.Schema
	postings map[Term]PostingList
	norms    [][]uint32
	stored   []map[string][]string
	docCount uint32
	size     int64
	closed   bool
}

func NewBuilder(s *schema.Schema) *Builder {
	return &Builder{
		schema:   s,
		postings: make(map[Term]PostingList),
	}
}

// AddDocument indexes doc and returns its segment-local id. Ids are assigned
// contiguously from 0. Values must be valid UTF-8 so that stored fields come
// back byte for byte.
func (b *Builder) AddDocument(doc Document) (uint32, error) {
	for name, values := range doc {
		if _, ok := b.schema.Field(name); !ok {
			return 0, apperrors.Newf(apperrors.ErrSchemaMismatch, "field %q is not in the schema", name)
		}
		for i, v := range values {
			if !utf8.ValidString(v) {
				return 0, apperrors.Newf(apperrors.ErrInvalidInput, "field %q value %d is not valid UTF-8", name, i)
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, apperrors.New(apperrors.ErrBuilderClosed, "add document after finish")
	}

	docID := b.docCount
	fields := b.schema.Fields()
	norms := make([]uint32, 0, len(fields))
	var stored map[string][]string

	for ord, field := range fields {
		values := doc[field.Name]
		if field.Indexed {
			norms = append(norms, b.indexField(docID, ord, values))
		}
		if field.Stored && len(values) > 0 {
			if stored == nil {
				stored = make(map[string][]string)
			}
			stored[field.Name] = slices.Clone(values)
			for _, v := range values {
				b.size += int64(len(v))
			}
		}
	}

	b.norms = append(b.norms, norms)
	b.stored = append(b.stored, stored)
	b.docCount++
	b.size += int64(len(norms)*4 + 16)
	return docID, nil
}

// indexField records the postings of one field of one document and returns
// the number of tokens it contained. Positions keep running across values.
func (b *Builder) indexField(docID uint32, ord int, values []string) uint32 {
	termData := make(map[string]*Posting)
	order := make([]string, 0)
	var base, count uint32
	for _, value := range values {
		var last uint32
		seen := false
		for tok := range tokenizer.Terms(value) {
			pos := base + tok.Position
			p, exists := termData[tok.Term]
			if !exists {
				p = &Posting{
					DocID:     docID,
					Positions: make([]uint32, 0, 4),
				}
				termData[tok.Term] = p
				order = append(order, tok.Term)
			}
			p.Frequency++
			p.Positions = append(p.Positions, pos)
			last = pos
			seen = true
			count++
		}
		if seen {
			base = last + 1 + positionGap
		}
	}
	for _, term := range order {
		key := Term{Field: ord, Token: term}
		posting := termData[term]
		b.postings[key] = append(b.postings[key], *posting)
		b.size += int64(len(term) + len(posting.Positions)*4 + 32)
	}
	return count
}

// Finish closes the builder and returns its contents sorted by term, with
// each posting list in ascending document order.
func (b *Builder) Finish() (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, apperrors.New(apperrors.ErrBuilderClosed, "finish called twice")
	}
	b.closed = true

	entries := make([]TermEntry, 0, len(b.postings))
	for term, postings := range b.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	slices.SortFunc(entries, func(x, y TermEntry) int {
		return x.Term.Compare(y.Term)
	})
	snap := &Snapshot{
		DocCount:   b.docCount,
		NormFields: len(b.schema.IndexedFields()),
		Terms:      entries,
		Norms:      b.norms,
		Stored:     b.stored,
	}
	b.postings = nil
	b.norms = nil
	b.stored = nil
	return snap, nil
}

// Size returns an estimate of the builder's memory footprint in bytes.
func (b *Builder) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Builder) DocCount() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docCount
}
