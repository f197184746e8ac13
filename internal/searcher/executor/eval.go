package executor

import (
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/address"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/ranker"
)

// segmentEval evaluates one plan on one segment. matches[i] holds the local
// doc ids matched by leaf i.
type segmentEval struct {
	ord      uint32
	reader   *segment.Reader
	plan     *plan
	matches  []*roaring.Bitmap
	postings map[index.Term]index.PostingList
}

func evaluateSegment(ord uint32, r *segment.Reader, p *plan, limit int) ([]ranker.ScoredDoc, error) {
	e := &segmentEval{
		ord:      ord,
		reader:   r,
		plan:     p,
		matches:  make([]*roaring.Bitmap, len(p.leaves)),
		postings: make(map[index.Term]index.PostingList),
	}
	docs, err := e.eval(p.root)
	if err != nil {
		return nil, err
	}
	if docs.IsEmpty() {
		return nil, nil
	}

	scored := make([]ranker.ScoredDoc, 0, docs.GetCardinality())
	it := docs.Iterator()
	for it.HasNext() {
		doc := it.Next()
		scored = append(scored, ranker.ScoredDoc{
			Address: address.DocAddress{Segment: ord, Doc: doc},
			Score:   e.score(doc),
		})
	}
	return merger.Merge([][]ranker.ScoredDoc{scored}, limit), nil
}

func (e *segmentEval) eval(n query.Node) (*roaring.Bitmap, error) {
	switch v := n.(type) {
	case *query.Term:
		idx := e.plan.leafIndex[n]
		set, err := e.docSet(e.plan.leaves[idx].terms[0])
		if err != nil {
			return nil, err
		}
		e.matches[idx] = set
		return set, nil
	case *query.Phrase:
		idx := e.plan.leafIndex[n]
		set, err := e.phrase(e.plan.leaves[idx].terms)
		if err != nil {
			return nil, err
		}
		e.matches[idx] = set
		return set, nil
	case *query.And:
		sets, err := e.evalAll(v.Children)
		if err != nil {
			return nil, err
		}
		return roaring.FastAnd(sets...), nil
	case *query.Or:
		sets, err := e.evalAll(v.Children)
		if err != nil {
			return nil, err
		}
		return roaring.FastOr(sets...), nil
	default:
		return roaring.New(), nil
	}
}

// evalAll evaluates every child, without short-circuiting, so each leaf's
// matches are known when scoring.
func (e *segmentEval) evalAll(children []query.Node) ([]*roaring.Bitmap, error) {
	sets := make([]*roaring.Bitmap, 0, len(children))
	for _, c := range children {
		set, err := e.eval(c)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (e *segmentEval) postingList(t index.Term) (index.PostingList, error) {
	if pl, ok := e.postings[t]; ok {
		return pl, nil
	}
	pl, err := e.reader.Postings(t)
	if err != nil {
		return nil, err
	}
	e.postings[t] = pl
	return pl, nil
}

func (e *segmentEval) docSet(t index.Term) (*roaring.Bitmap, error) {
	pl, err := e.postingList(t)
	if err != nil {
		return nil, err
	}
	set := roaring.New()
	for _, p := range pl {
		set.Add(p.DocID)
	}
	return set, nil
}

// phrase returns the documents containing terms at consecutive positions.
func (e *segmentEval) phrase(terms []index.Term) (*roaring.Bitmap, error) {
	sets := make([]*roaring.Bitmap, len(terms))
	for i, t := range terms {
		set, err := e.docSet(t)
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}
	candidates := roaring.FastAnd(sets...)
	out := roaring.New()
	positions := make([][]uint32, len(terms))
	it := candidates.Iterator()
	for it.HasNext() {
		doc := it.Next()
		for i, t := range terms {
			p, _ := findPosting(e.postings[t], doc)
			positions[i] = p.Positions
		}
		if adjacent(positions) {
			out.Add(doc)
		}
	}
	return out, nil
}

// adjacent reports whether some start position s in lists[0] has s+i in
// lists[i] for every i.
func adjacent(lists [][]uint32) bool {
	for _, start := range lists[0] {
		ok := true
		for i := 1; i < len(lists); i++ {
			if _, found := slices.BinarySearch(lists[i], start+uint32(i)); !found {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func findPosting(pl index.PostingList, doc uint32) (index.Posting, bool) {
	i := sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= doc })
	if i < len(pl) && pl[i].DocID == doc {
		return pl[i], true
	}
	return index.Posting{}, false
}

// score sums BM25 weights of every leaf matching doc, in leaf order.
func (e *segmentEval) score(doc uint32) float64 {
	var total float64
	for i, l := range e.plan.leaves {
		if e.matches[i] == nil || !e.matches[i].Contains(doc) {
			continue
		}
		fieldLen := e.reader.FieldLength(doc, l.slot)
		for _, t := range l.terms {
			p, ok := findPosting(e.postings[t], doc)
			if !ok {
				continue
			}
			total += e.plan.scorer.TermWeight(l.slot, e.plan.docFreq[t], p.Frequency, fieldLen)
		}
	}
	return total
}
