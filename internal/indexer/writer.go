package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/metrics"
)

// WriterOptions controls when the writer cuts a segment. A zero limit is
// unlimited; with both limits zero every document lands in one segment.
type WriterOptions struct {
	SegmentMaxDocs  int
	SegmentMaxBytes int64
	Metrics         *metrics.Metrics
}

// Writer accumulates documents into an in-memory builder, flushing it to a
// new segment whenever a limit is reached. Nothing becomes visible to
// readers until Commit publishes the manifest.
type Writer struct {
	ix        *Index
	opts      WriterOptions
	segWriter *segment.Writer
	logger    *slog.Logger

	mu      sync.Mutex
	builder *index.Builder
	written []segment.Info
	done    bool
	// failed holds the first flush error. Documents of the failed batch are
	// gone, so every later call reports it instead of committing a partial
	// index.
	failed error
}

func newWriter(ix *Index, opts WriterOptions) *Writer {
	return &Writer{
		ix:        ix,
		opts:      opts,
		segWriter: segment.NewWriter(ix.path),
		logger:    logger.WithComponent("index-writer"),
		builder:   index.NewBuilder(ix.schema),
	}
}

// AddDocument indexes doc, flushing a segment when the configured document
// or byte limit is reached.
func (w *Writer) AddDocument(doc index.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return apperrors.New(apperrors.ErrBuilderClosed, "writer already committed")
	}
	if w.failed != nil {
		return fmt.Errorf("writer unusable after failed flush: %w", w.failed)
	}
	if _, err := w.builder.AddDocument(doc); err != nil {
		return err
	}
	if m := w.opts.Metrics; m != nil {
		m.DocsIndexedTotal.Inc()
	}
	if w.shouldFlush() {
		w.logger.Debug("builder reached limit, flushing segment",
			"docs", w.builder.DocCount(),
			"size", w.builder.Size(),
		)
		return w.flush()
	}
	return nil
}

func (w *Writer) shouldFlush() bool {
	if w.opts.SegmentMaxDocs > 0 && int(w.builder.DocCount()) >= w.opts.SegmentMaxDocs {
		return true
	}
	return w.opts.SegmentMaxBytes > 0 && w.builder.Size() >= w.opts.SegmentMaxBytes
}

// flush writes the current builder as a segment and starts a fresh one. A
// failure marks the writer failed. Caller holds w.mu.
func (w *Writer) flush() error {
	if err := w.writeSegment(); err != nil {
		w.failed = err
		return err
	}
	return nil
}

func (w *Writer) writeSegment() error {
	if w.builder.DocCount() == 0 {
		return nil
	}
	snap, err := w.builder.Finish()
	if err != nil {
		return err
	}
	w.builder = index.NewBuilder(w.ix.schema)

	info, err := w.segWriter.Write(snap)
	if info.File != "" {
		// Visible on disk even when err is set; tracked so it can be removed.
		w.written = append(w.written, info)
	}
	if m := w.opts.Metrics; m != nil {
		if err != nil {
			m.SegmentsWritten.WithLabelValues("error").Inc()
		} else {
			m.SegmentsWritten.WithLabelValues("ok").Inc()
			m.SegmentBytes.Observe(float64(info.Bytes))
		}
	}
	if err != nil {
		return fmt.Errorf("flushing segment %d: %w", len(w.written), err)
	}
	w.logger.Info("segment flushed",
		"segment", info.File,
		"docs", info.Docs,
		"terms", info.Terms,
		"bytes", info.Bytes,
		"pending_segments", len(w.written),
	)
	return nil
}

// Commit flushes the remaining documents and atomically publishes the
// manifest. After Commit the index is searchable and the writer is closed.
// If Commit fails the segments written so far are removed.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return apperrors.New(apperrors.ErrBuilderClosed, "writer already committed")
	}
	w.done = true

	var err error
	if w.failed != nil {
		err = fmt.Errorf("writer unusable after failed flush: %w", w.failed)
	} else {
		err = w.commit()
	}
	if m := w.opts.Metrics; m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.CommitsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		var visible *manifestVisibleError
		if errors.As(err, &visible) {
			w.logger.Error("manifest left in place after failed commit; keeping its segments", "error", err)
			return err
		}
		if cleanupErr := w.removeWritten(); cleanupErr != nil {
			w.logger.Error("removing segments after failed commit", "error", cleanupErr)
		}
		return err
	}
	return nil
}

func (w *Writer) commit() error {
	if err := w.flush(); err != nil {
		return err
	}

	w.ix.mu.RLock()
	m := w.ix.manifest
	w.ix.mu.RUnlock()
	m.Segments = make([]SegmentMeta, 0, len(w.written))
	for _, info := range w.written {
		m.Segments = append(m.Segments, SegmentMeta{ID: info.ID, File: info.File, Docs: info.Docs})
	}

	readers, err := w.ix.openSegments(m.Segments)
	if err != nil {
		return fmt.Errorf("reopening written segments: %w", err)
	}
	if err := writeManifest(w.ix.path, &m); err != nil {
		for _, r := range readers {
			r.Close()
		}
		return err
	}
	w.ix.publish(m, readers)
	if mt := w.opts.Metrics; mt != nil {
		mt.IndexSegments.Set(float64(len(m.Segments)))
	}

	var docs uint64
	for _, s := range m.Segments {
		docs += uint64(s.Docs)
	}
	w.logger.Info("index committed",
		"path", w.ix.path,
		"segments", len(m.Segments),
		"docs", docs,
	)
	return nil
}

// Abort discards the writer, deleting any segment it already flushed. It is
// a no-op after a successful Commit.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	return w.removeWritten()
}

func (w *Writer) removeWritten() error {
	var result *multierror.Error
	for _, info := range w.written {
		if err := os.Remove(filepath.Join(w.ix.path, info.File)); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	w.written = nil
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrIO, err)
	}
	return nil
}
