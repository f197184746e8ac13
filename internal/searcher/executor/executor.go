// Package executor evaluates parsed queries against an Index and returns
// ranked document addresses.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/tracing"
)

// DefaultParallelism bounds how many segments are evaluated at once when
// Options leaves it unset.
const DefaultParallelism = 4

// Hit is one search result.
type Hit = ranker.ScoredDoc

type Options struct {
	Parallelism int
	Metrics     *metrics.Metrics
}

// Searcher runs queries over the committed segments of one Index. It is
// safe for concurrent use.
type Searcher struct {
	ix          *indexer.Index
	parallelism int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(ix *indexer.Index, opts Options) *Searcher {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	return &Searcher{
		ix:          ix,
		parallelism: opts.Parallelism,
		metrics:     opts.Metrics,
		logger:      logger.WithComponent("query-executor"),
	}
}

// Search returns at most limit hits for node, best first. Ties in score are
// broken by ascending address, so identical index state and query always
// give identical results.
func (s *Searcher) Search(ctx context.Context, node query.Node, limit int) ([]Hit, error) {
	start := time.Now()
	hits, err := s.search(ctx, node, limit)
	s.observe(start, hits, err)
	return hits, err
}

func (s *Searcher) search(ctx context.Context, node query.Node, limit int) ([]Hit, error) {
	if limit < 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "limit must not be negative, got %d", limit)
	}
	if node == nil {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, "nil query")
	}
	plan, err := s.plan(node)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return []Hit{}, nil
	}

	ctx, span := tracing.StartChildSpan(ctx, "search.evaluate")
	defer span.End()

	readers := s.ix.Segments()
	stats := s.ix.Stats()
	plan.docFreq = globalDocFreqs(readers, plan.leafTerms())
	avg := make([]float64, len(stats.FieldLengths))
	for slot := range avg {
		avg[slot] = stats.AvgFieldLength(slot)
	}
	plan.scorer = ranker.NewScorer(ranker.RankParams{
		TotalDocs:      stats.NumDocs,
		AvgFieldLength: avg,
	})

	segmentResults, err := s.fanOut(ctx, readers, plan, limit)
	if err != nil {
		return nil, err
	}
	hits := merger.Merge(segmentResults, limit)
	span.SetAttr("segments", len(readers))
	span.SetAttr("hits", len(hits))
	logger.FromContext(ctx).Debug("query executed",
		"query", node.String(),
		"segments", len(readers),
		"results", len(hits),
	)
	return hits, nil
}

func (s *Searcher) observe(start time.Time, hits []Hit, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		s.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	case len(hits) == 0:
		s.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		s.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	if err == nil {
		s.metrics.SearchResultsCount.Observe(float64(len(hits)))
	}
}

// globalDocFreqs sums each term's document frequency over every segment.
func globalDocFreqs(readers []*segment.Reader, terms []index.Term) map[index.Term]uint64 {
	df := make(map[index.Term]uint64, len(terms))
	for _, t := range terms {
		var n uint64
		for _, r := range readers {
			n += uint64(r.DocFreq(t))
		}
		df[t] = n
	}
	return df
}
