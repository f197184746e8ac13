// Package indexer ties schema, builder and segments together into an Index:
// a directory holding immutable segment files plus a meta.json manifest that
// lists them. An Index is created once, filled by a single Writer and
// committed; after that it is opened read-only any number of times.
package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/schema"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
)

// Index is an on-disk inverted index. Read methods are safe for concurrent
// use.
type Index struct {
	path   string
	schema *schema.Schema
	logger *slog.Logger

	mu       sync.RWMutex
	manifest Manifest
	readers  []*segment.Reader
	// writable is true only for an index returned by Create whose Writer
	// has not been handed out yet.
	writable bool
	closed   bool
}

// Stats are index-wide figures used for scoring and reporting.
type Stats struct {
	Segments int
	NumDocs  uint64
	Terms    uint64
	// FieldLengths holds, per indexed field slot, the summed token count
	// across every document.
	FieldLengths []uint64
}

// AvgFieldLength returns the mean token count of a norm slot, or 0 for an
// empty index.
func (s Stats) AvgFieldLength(slot int) float64 {
	if s.NumDocs == 0 || slot < 0 || slot >= len(s.FieldLengths) {
		return 0
	}
	return float64(s.FieldLengths[slot]) / float64(s.NumDocs)
}

// Create makes a new, empty index at path. It fails with ErrAlreadyExists
// when path already holds a committed index. The index is not openable until
// its Writer commits.
func Create(path string, s *schema.Schema) (*Index, error) {
	if s == nil {
		return nil, apperrors.New(apperrors.ErrSchemaMismatch, "schema is required")
	}
	exists, err := manifestExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Newf(apperrors.ErrAlreadyExists, "index already exists at %s", path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating index directory: %w", apperrors.ErrIO, err)
	}

	ix := &Index{
		path:   path,
		schema: s,
		logger: logger.WithComponent("indexer"),
		manifest: Manifest{
			Version:   manifestVersion,
			IndexID:   uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Schema:    s.Fields(),
		},
		writable: true,
	}
	ix.logger.Info("index created", "path", path, "index_id", ix.manifest.IndexID)
	return ix, nil
}

// Open loads a committed index read-only. Every segment listed in the
// manifest is opened and checksummed; a missing or damaged segment fails the
// whole open with ErrCorruptIndex.
func Open(path string) (*Index, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	s, err := schema.New(m.Schema...)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest schema: %w", apperrors.ErrCorruptIndex, err)
	}

	ix := &Index{
		path:     path,
		schema:   s,
		logger:   logger.WithComponent("indexer"),
		manifest: *m,
	}
	readers, err := ix.openSegments(m.Segments)
	if err != nil {
		return nil, err
	}
	ix.readers = readers
	ix.logger.Debug("index opened",
		"path", path,
		"segments", len(readers),
		"docs", ix.NumDocs(),
	)
	return ix, nil
}

func (ix *Index) openSegments(metas []SegmentMeta) ([]*segment.Reader, error) {
	indexed := len(ix.schema.IndexedFields())
	readers := make([]*segment.Reader, 0, len(metas))
	fail := func(err error) ([]*segment.Reader, error) {
		for _, r := range readers {
			r.Close()
		}
		return nil, err
	}
	for ord, meta := range metas {
		r, err := segment.OpenReader(filepath.Join(ix.path, meta.File))
		if err != nil {
			return fail(fmt.Errorf("segment %d (%s): %w", ord, meta.File, err))
		}
		readers = append(readers, r)
		if r.DocCount() != meta.Docs {
			return fail(apperrors.Newf(apperrors.ErrCorruptIndex,
				"segment %d (%s) holds %d documents, manifest records %d", ord, meta.File, r.DocCount(), meta.Docs))
		}
		if r.NormFields() != indexed {
			return fail(apperrors.Newf(apperrors.ErrCorruptIndex,
				"segment %d (%s) has %d indexed fields, schema has %d", ord, meta.File, r.NormFields(), indexed))
		}
	}
	return readers, nil
}

// Writer returns the single writer of a freshly created index. Later calls,
// and calls on an opened index, fail with ErrBuilderClosed.
func (ix *Index) Writer(opts WriterOptions) (*Writer, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil, apperrors.New(apperrors.ErrBuilderClosed, "index is closed")
	}
	if !ix.writable {
		return nil, apperrors.New(apperrors.ErrBuilderClosed, "index writer already taken or index opened read-only")
	}
	ix.writable = false
	return newWriter(ix, opts), nil
}

// publish installs a committed manifest and its readers.
func (ix *Index) publish(m Manifest, readers []*segment.Reader) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.manifest = m
	ix.readers = readers
}

func (ix *Index) Path() string {
	return ix.path
}

func (ix *Index) ID() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.manifest.IndexID
}

func (ix *Index) Schema() *schema.Schema {
	return ix.schema
}

// Segments returns the committed segment readers in ordinal order.
func (ix *Index) Segments() []*segment.Reader {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]*segment.Reader(nil), ix.readers...)
}

// SegmentMetas returns the manifest entries in ordinal order.
func (ix *Index) SegmentMetas() []SegmentMeta {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]SegmentMeta(nil), ix.manifest.Segments...)
}

// NumDocs returns the number of committed documents.
func (ix *Index) NumDocs() uint64 {
	var n uint64
	for _, r := range ix.Segments() {
		n += uint64(r.DocCount())
	}
	return n
}

// Stats aggregates document, term and field-length totals over all
// committed segments.
func (ix *Index) Stats() Stats {
	readers := ix.Segments()
	slots := len(ix.schema.IndexedFields())
	st := Stats{
		Segments:     len(readers),
		FieldLengths: make([]uint64, slots),
	}
	for _, r := range readers {
		st.NumDocs += uint64(r.DocCount())
		st.Terms += uint64(r.Terms())
		for slot := 0; slot < slots; slot++ {
			st.FieldLengths[slot] += r.FieldLengthTotal(slot)
		}
	}
	return st
}

// Close releases every segment file. It is safe to call more than once.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.writable = false
	var result *multierror.Error
	for _, r := range ix.readers {
		if err := r.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing segment %s: %w", r.Path(), err))
		}
	}
	ix.readers = nil
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrIO, err)
	}
	return nil
}
