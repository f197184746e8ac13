// Package metrics defines the Prometheus collectors used by the index engine
// and the command line. Collectors live on a dedicated registry so a
// short-lived process can dump them to a node-exporter textfile on exit.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

const namespace = "scrapq"

// Metrics holds all Prometheus collectors for scrapq.
type Metrics struct {
	Registry *prometheus.Registry

	DocsIndexedTotal   prometheus.Counter
	SegmentsWritten    *prometheus.CounterVec
	SegmentBytes       prometheus.Histogram
	CommitsTotal       *prometheus.CounterVec
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram
	FetchesTotal       *prometheus.CounterVec
	IndexSegments      prometheus.Gauge
}

// New creates all collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "docs_indexed_total",
				Help:      "Total documents added to an index writer.",
			},
		),
		SegmentsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segments_written_total",
				Help:      "Segment flushes by status (ok, error).",
			},
			[]string{"status"},
		),
		SegmentBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "segment_bytes",
				Help:      "Size in bytes of each published segment file.",
				Buckets:   prometheus.ExponentialBuckets(4096, 4, 10),
			},
		),
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Index commits by status (ok, error).",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search query latency in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of results returned per search query.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Stored-field fetches by status (ok, invalid_address, error).",
			},
			[]string{"status"},
		),
		IndexSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_segments",
				Help:      "Number of segments in the index last committed or opened.",
			},
		),
	}

	m.Registry.MustRegister(
		m.DocsIndexedTotal,
		m.SegmentsWritten,
		m.SegmentBytes,
		m.CommitsTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.FetchesTotal,
		m.IndexSegments,
		collectors.NewGoCollector(),
	)

	return m
}

// WriteTextfile writes every collector in text exposition format to path,
// atomically replacing any previous file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("%w: writing metrics textfile %s: %w", apperrors.ErrIO, path, err)
	}
	return nil
}
