// Package docstore materializes stored field values of indexed documents.
package docstore

import (
	"errors"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer/address"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/metrics"
)

// Store reads stored fields from the committed segments of an Index. It is
// safe for concurrent use.
type Store struct {
	ix      *indexer.Index
	metrics *metrics.Metrics
}

// New returns a Store over ix. m may be nil.
func New(ix *indexer.Index, m *metrics.Metrics) *Store {
	return &Store{ix: ix, metrics: m}
}

// Fetch returns the stored values of the requested fields of the document at
// addr, or every stored field when none are named. A field that is absent
// from the schema or not stored fails with ErrFieldNotFound; an address
// outside the index fails with ErrInvalidAddress.
func (s *Store) Fetch(addr address.DocAddress, fields ...string) (map[string][]string, error) {
	doc, err := s.fetch(addr, fields)
	s.observe(err)
	return doc, err
}

func (s *Store) fetch(addr address.DocAddress, fields []string) (map[string][]string, error) {
	sch := s.ix.Schema()
	for _, name := range fields {
		f, ok := sch.Field(name)
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrFieldNotFound, "field %q is not in the schema", name)
		}
		if !f.Stored {
			return nil, apperrors.Newf(apperrors.ErrFieldNotFound, "field %q is not stored", name)
		}
	}

	segments := s.ix.Segments()
	if int64(addr.Segment) >= int64(len(segments)) {
		return nil, apperrors.Newf(apperrors.ErrInvalidAddress,
			"address %s: segment %d out of range (index has %d)", addr, addr.Segment, len(segments))
	}
	stored, err := segments[addr.Segment].Stored(addr.Doc)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(stored))
	if len(fields) == 0 {
		for name, values := range stored {
			out[name] = values
		}
		return out, nil
	}
	for _, name := range fields {
		if values, ok := stored[name]; ok {
			out[name] = values
		}
	}
	return out, nil
}

// First returns the first stored value of field, or "" when the document
// has no value for it.
func (s *Store) First(addr address.DocAddress, field string) (string, error) {
	doc, err := s.Fetch(addr, field)
	if err != nil {
		return "", err
	}
	if values := doc[field]; len(values) > 0 {
		return values[0], nil
	}
	return "", nil
}

func (s *Store) observe(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.FetchesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, apperrors.ErrInvalidAddress):
		s.metrics.FetchesTotal.WithLabelValues("invalid_address").Inc()
	default:
		s.metrics.FetchesTotal.WithLabelValues("error").Inc()
	}
}
