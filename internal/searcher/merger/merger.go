// Package merger combines per-segment result lists into one top-K list.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/ranker"
)

// Merge returns the best limit documents across all lists, ordered by
// descending score and then ascending address. A limit of 0 yields an
// empty result.
func Merge(segmentResults [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		return []ranker.ScoredDoc{}
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, results := range segmentResults {
		for _, doc := range results {
			if h.Len() == limit && !better(doc, (*h)[0]) {
				continue
			}
			heap.Push(h, doc)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// better reports whether a ranks ahead of b.
func better(a, b ranker.ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Address.Less(b.Address)
}

// scoredDocHeap is a min-heap on rank: the root is the worst kept document.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
