package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/metrics"
)

func sampleBundle() *scrapbox.Bundle {
	return &scrapbox.Bundle{
		Name: "x",
		Pages: []scrapbox.Page{
			{Title: "Alpha", Lines: []string{"hello world"}},
			{Title: "Beta", Lines: []string{"hello there", "second line"}},
		},
	}
}

func newIndexed(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.IndexPath == "" {
		opts.IndexPath = filepath.Join(t.TempDir(), "idx")
	}
	s := New(opts)
	res, err := s.Ingest(context.Background(), sampleBundle())
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Docs)
	require.NotEmpty(t, res.IndexID)
	return s
}

func TestScenario(t *testing.T) {
	s := newIndexed(t, Options{})
	ctx := context.Background()

	results, err := s.Search(ctx, "hello", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	titles := map[string]string{}
	for _, r := range results {
		titles[r.Address] = r.Title
	}
	assert.Equal(t, map[string]string{"0:0": "Alpha", "0:1": "Beta"}, titles)

	body, err := s.Get(ctx, "0:1")
	require.NoError(t, err)
	assert.Equal(t, "hello there\nsecond line", body)

	results, err = s.Search(ctx, "title:Alpha", 10)
	require.NoError(t, err)
	assert.Equal(t, []scrapbox.SearchResult{{Address: "0:0", Title: "Alpha"}}, results)
}

func TestSearchErrors(t *testing.T) {
	s := newIndexed(t, Options{MaxLimit: 50})
	ctx := context.Background()

	_, err := s.Search(ctx, "", 10)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	_, err = s.Search(ctx, "nosuchfield:term", 10)
	assert.ErrorIs(t, err, apperrors.ErrFieldNotFound)

	_, err = s.Search(ctx, "hello", 51)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	results, err := s.Search(ctx, "hello", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetErrors(t *testing.T) {
	s := newIndexed(t, Options{})
	ctx := context.Background()

	for _, addr := range []string{"0", "a:b", "0:1:2", "9:0", "0:99"} {
		_, err := s.Get(ctx, addr)
		assert.ErrorIs(t, err, apperrors.ErrInvalidAddress, addr)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	s := New(Options{IndexPath: filepath.Join(t.TempDir(), "missing")})
	_, err := s.Search(context.Background(), "hello", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Verify(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIngestTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	s := newIndexed(t, Options{IndexPath: path})
	_, err := s.Ingest(context.Background(), sampleBundle())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestIngestCancelledLeavesNoIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{IndexPath: path}).Ingest(ctx, sampleBundle())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = indexer.Open(path)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeterministicAcrossReopen(t *testing.T) {
	s := newIndexed(t, Options{SegmentMaxDocs: 1})
	first, err := s.Search(context.Background(), "hello OR line", 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Search(context.Background(), "hello OR line", 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestIngestFetchFidelity(t *testing.T) {
	s := newIndexed(t, Options{SegmentMaxDocs: 1})
	body, err := s.Get(context.Background(), "1:0")
	require.NoError(t, err)
	assert.Equal(t, "hello there\nsecond line", body)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	s := newIndexed(t, Options{Metrics: m, SegmentMaxDocs: 1})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexSegments))
	m.IndexSegments.Set(0)
	_, err := s.Search(context.Background(), "hello", 10)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexSegments))
}

func TestVerifyHealthy(t *testing.T) {
	s := newIndexed(t, Options{SegmentMaxDocs: 1})
	report, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusUp, report.Status)
	assert.Equal(t, []string{"manifest", "segment 0", "segment 1"}, report.Names())
}

func TestVerifyDamagedSegment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	s := newIndexed(t, Options{IndexPath: path, SegmentMaxDocs: 1})
	m, err := indexer.ReadManifest(path)
	require.NoError(t, err)

	segPath := filepath.Join(path, m.Segments[1].File)
	data, err := os.ReadFile(segPath)
	require.NoError(t, err)
	data[len(data)/2] ^= 0x5a
	require.NoError(t, os.WriteFile(segPath, data, 0644))

	report, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusDown, report.Status)
	assert.Equal(t, health.StatusUp, report.Components["segment 0"].Status)
	assert.Equal(t, health.StatusDown, report.Components["segment 1"].Status)
}

func TestVerifyCorruptManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	s := newIndexed(t, Options{IndexPath: path})
	require.NoError(t, os.WriteFile(filepath.Join(path, indexer.ManifestFile), []byte("{"), 0644))

	report, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, health.StatusDown, report.Status)
	assert.Equal(t, []string{"manifest"}, report.Names())
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"name":"x","pages":[{"title":"Alpha","lines":["hello"]}]}`), 0644))
	b, err := LoadBundle(good)
	require.NoError(t, err)
	assert.Len(t, b.Pages, 1)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"x"}`), 0644))
	_, err = LoadBundle(bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestIngestUntitledPage(t *testing.T) {
	s := New(Options{IndexPath: filepath.Join(t.TempDir(), "idx")})
	ctx := context.Background()
	_, err := s.Ingest(ctx, &scrapbox.Bundle{Name: "x", Pages: []scrapbox.Page{
		{Title: "Alpha", Lines: []string{"hello"}},
		{Title: "", Lines: []string{"orphan hello"}},
	}})
	require.NoError(t, err)

	results, err := s.Search(ctx, "orphan", 10)
	require.NoError(t, err)
	assert.Equal(t, []scrapbox.SearchResult{{Address: "0:1", Title: ""}}, results)
}
