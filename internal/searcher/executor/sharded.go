package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/ranker"
)

// fanOut evaluates plan on every segment, at most s.parallelism at a time.
// Results are indexed by segment ordinal; the first failure cancels the
// remaining segments.
func (s *Searcher) fanOut(ctx context.Context, readers []*segment.Reader, p *plan, limit int) ([][]ranker.ScoredDoc, error) {
	results := make([][]ranker.ScoredDoc, len(readers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for ord, r := range readers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := evaluateSegment(uint32(ord), r, p, limit)
			if err != nil {
				return fmt.Errorf("segment %d: %w", ord, err)
			}
			results[ord] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
