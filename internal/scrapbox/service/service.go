// Package service runs the scrapq operations against one index directory:
// importing a bundle, searching, fetching a page body and verifying the
// on-disk files.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/address"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox/validator"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/tracing"
)

var defaultFields = []string{schema.FieldTitle, schema.FieldBody}

type Options struct {
	IndexPath       string
	SegmentMaxDocs  int
	SegmentMaxBytes int64
	Parallelism     int
	// MaxLimit caps the result count of one search; 0 means no cap.
	MaxLimit int
	Metrics  *metrics.Metrics
}

type Service struct {
	opts   Options
	logger *slog.Logger
}

// IngestResult summarizes a committed import.
type IngestResult struct {
	IndexID  string
	Docs     uint64
	Segments int
}

func New(opts Options) *Service {
	return &Service{
		opts:   opts,
		logger: logger.WithComponent("scrapbox-service"),
	}
}

// LoadBundle decodes and validates the bundle file at path.
func LoadBundle(path string) (*scrapbox.Bundle, error) {
	b, err := scrapbox.ReadBundle(path)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateBundle(b, path); err != nil {
		return nil, err
	}
	return b, nil
}

// Ingest builds a new index from b. Any failure before the commit leaves no
// index behind.
func (s *Service) Ingest(ctx context.Context, b *scrapbox.Bundle) (*IngestResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest")
	defer func() {
		span.End()
		span.Log()
	}()
	log := logger.FromContext(ctx)

	ix, err := indexer.Create(s.opts.IndexPath, schema.Default())
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	w, err := ix.Writer(indexer.WriterOptions{
		SegmentMaxDocs:  s.opts.SegmentMaxDocs,
		SegmentMaxBytes: s.opts.SegmentMaxBytes,
		Metrics:         s.opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	for _, i := range validator.UntitledPages(b) {
		log.Warn("indexing page without a title", "bundle", b.Name, "page", i)
	}
	for i, page := range b.Pages {
		if err := ctx.Err(); err != nil {
			abort(log, w)
			return nil, err
		}
		if err := w.AddDocument(page.Document()); err != nil {
			abort(log, w)
			return nil, fmt.Errorf("indexing page %d (%q): %w", i, page.Title, err)
		}
	}
	if err := w.Commit(); err != nil {
		return nil, err
	}

	res := &IngestResult{
		IndexID:  ix.ID(),
		Docs:     ix.NumDocs(),
		Segments: len(ix.Segments()),
	}
	span.SetAttr("docs", res.Docs)
	span.SetAttr("segments", res.Segments)
	log.Info("bundle indexed",
		"bundle", b.Name,
		"path", s.opts.IndexPath,
		"docs", res.Docs,
		"segments", res.Segments,
	)
	return res, nil
}

func abort(log *slog.Logger, w *indexer.Writer) {
	if err := w.Abort(); err != nil {
		log.Warn("aborting index writer", "error", err)
	}
}

// Search runs text against the index and returns at most limit results with
// their titles, best first.
func (s *Service) Search(ctx context.Context, text string, limit int) ([]scrapbox.SearchResult, error) {
	if s.opts.MaxLimit > 0 && limit > s.opts.MaxLimit {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "limit %d exceeds the maximum of %d", limit, s.opts.MaxLimit)
	}
	ctx, span := tracing.StartSpan(ctx, "search")
	defer func() {
		span.End()
		span.Log()
	}()

	ix, err := s.open()
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	_, parseSpan := tracing.StartChildSpan(ctx, "search.parse")
	node, err := parser.Parse(ix.Schema(), defaultFields, text)
	parseSpan.End()
	if err != nil {
		return nil, err
	}

	hits, err := executor.New(ix, executor.Options{
		Parallelism: s.opts.Parallelism,
		Metrics:     s.opts.Metrics,
	}).Search(ctx, node, limit)
	if err != nil {
		return nil, err
	}

	_, fetchSpan := tracing.StartChildSpan(ctx, "search.fetch")
	defer fetchSpan.End()
	store := docstore.New(ix, s.opts.Metrics)
	results := make([]scrapbox.SearchResult, 0, len(hits))
	for _, h := range hits {
		title, err := store.First(h.Address, schema.FieldTitle)
		if err != nil {
			return nil, fmt.Errorf("fetching title of %s: %w", h.Address, err)
		}
		results = append(results, scrapbox.SearchResult{
			Address: h.Address.String(),
			Title:   title,
		})
	}
	fetchSpan.SetAttr("results", len(results))
	return results, nil
}

func (s *Service) open() (*indexer.Index, error) {
	ix, err := indexer.Open(s.opts.IndexPath)
	if err != nil {
		return nil, err
	}
	if m := s.opts.Metrics; m != nil {
		m.IndexSegments.Set(float64(len(ix.Segments())))
	}
	return ix, nil
}

// Get returns the body of the page at the encoded address addr.
func (s *Service) Get(ctx context.Context, addr string) (string, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return "", err
	}
	ix, err := s.open()
	if err != nil {
		return "", err
	}
	defer ix.Close()
	body, err := docstore.New(ix, s.opts.Metrics).First(a, schema.FieldBody)
	if err != nil {
		return "", err
	}
	logger.FromContext(ctx).Debug("document fetched", "address", a.String(), "bytes", len(body))
	return body, nil
}

// Verify checks the manifest and then every segment independently: each is
// opened, checksummed, matched against its manifest document count and has
// every posting list decoded. A missing index fails with ErrNotFound; any
// damage is reported as a down component rather than an error.
func (s *Service) Verify(ctx context.Context) (health.Report, error) {
	m, err := indexer.ReadManifest(s.opts.IndexPath)
	if err != nil && !errors.Is(err, apperrors.ErrCorruptIndex) {
		return health.Report{}, err
	}

	checker := health.NewChecker()
	checker.Register("manifest", manifestCheck(m, err))
	if err == nil {
		for ord, meta := range m.Segments {
			name := fmt.Sprintf("segment %d", ord)
			checker.Register(name, segmentCheck(filepath.Join(s.opts.IndexPath, meta.File), meta))
		}
	}
	report := checker.Run(ctx)
	logger.FromContext(ctx).Info("index verified",
		"path", s.opts.IndexPath,
		"status", report.Status,
		"components", len(report.Components),
	)
	return report, nil
}

func manifestCheck(m *indexer.Manifest, readErr error) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if readErr != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: readErr.Error()}
		}
		if _, err := schema.New(m.Schema...); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("index %s, %d segments", m.IndexID, len(m.Segments)),
		}
	}
}

func segmentCheck(path string, meta indexer.SegmentMeta) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		down := func(err error) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		r, err := segment.OpenReader(path)
		if err != nil {
			return down(err)
		}
		defer r.Close()
		if r.DocCount() != meta.Docs {
			return down(apperrors.Newf(apperrors.ErrCorruptIndex,
				"%s holds %d documents, manifest records %d", meta.File, r.DocCount(), meta.Docs))
		}
		if err := r.Verify(); err != nil {
			return down(err)
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%s: %d documents, %d terms", meta.File, r.DocCount(), r.Terms()),
		}
	}
}
