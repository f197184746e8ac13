package executor

import (
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

// leaf is a scoring leaf of the query: a Term, or a Phrase contributing one
// weight per token.
type leaf struct {
	slot  int
	terms []index.Term
}

// plan is a query resolved against the schema, shared read-only by every
// segment evaluation.
type plan struct {
	root      query.Node
	leaves    []leaf
	leafIndex map[query.Node]int
	docFreq   map[index.Term]uint64
	scorer    *ranker.Scorer
}

func (s *Searcher) plan(node query.Node) (*plan, error) {
	sch := s.ix.Schema()
	for _, name := range query.Fields(node) {
		f, ok := sch.Field(name)
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrFieldNotFound, "field %q is not in the schema", name)
		}
		if !f.Indexed {
			return nil, apperrors.Newf(apperrors.ErrFieldNotFound, "field %q is not indexed", name)
		}
	}

	p := &plan{
		root:      node,
		leafIndex: make(map[query.Node]int),
	}
	var err error
	query.Walk(node, func(n query.Node) {
		if err != nil {
			return
		}
		var field string
		var tokens []string
		switch v := n.(type) {
		case *query.Term:
			field, tokens = v.Field, []string{v.Token}
		case *query.Phrase:
			if len(v.Tokens) == 0 {
				err = apperrors.Newf(apperrors.ErrInvalidQuery, "phrase on field %q has no tokens", v.Field)
				return
			}
			field, tokens = v.Field, v.Tokens
		default:
			return
		}
		if _, seen := p.leafIndex[n]; seen {
			return
		}
		ord, _ := sch.Ordinal(field)
		slot, _ := sch.NormSlot(ord)
		l := leaf{slot: slot, terms: make([]index.Term, len(tokens))}
		for i, tok := range tokens {
			l.terms[i] = index.Term{Field: ord, Token: tok}
		}
		p.leafIndex[n] = len(p.leaves)
		p.leaves = append(p.leaves, l)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// leafTerms returns every distinct term the plan scores.
func (p *plan) leafTerms() []index.Term {
	seen := make(map[index.Term]struct{})
	var out []index.Term
	for _, l := range p.leaves {
		for _, t := range l.terms {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}
