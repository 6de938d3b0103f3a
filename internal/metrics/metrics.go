// Package metrics exposes run counters for scraping or textfile export.
//
// Each Collector owns a private registry so tests and repeated runs in one
// process never collide on the global default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dropsync"

// Chunk attempt results.
const (
	ChunkSuccess     = "success"
	ChunkTimeout     = "timeout"
	ChunkOperational = "operational"
)

// Collector records what a run did.
type Collector struct {
	registry *prometheus.Registry

	artifacts          *prometheus.CounterVec
	rowsInserted       prometheus.Counter
	chunkAttempts      *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	uploadSeconds      prometheus.Histogram
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Artifacts processed, by outcome (uploaded, skipped, failed).",
		}, []string{"outcome"}),
		rowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Rows newly inserted into the destination table.",
		}),
		chunkAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_attempts_total",
			Help:      "Chunk insert attempts, by result (success, timeout, operational).",
		}, []string{"result"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Artifact files rejected by validation, by failure kind.",
		}, []string{"kind"}),
		uploadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_upload_seconds",
			Help:      "Wall time spent connecting, gating and uploading one artifact.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
		}),
	}
	c.registry.MustRegister(
		c.artifacts,
		c.rowsInserted,
		c.chunkAttempts,
		c.validationFailures,
		c.uploadSeconds,
	)
	return c
}

// Registry returns the private registry, e.g. for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ArtifactOutcome counts one finished artifact.
func (c *Collector) ArtifactOutcome(outcome string) {
	c.artifacts.WithLabelValues(outcome).Inc()
}

// RowsInserted adds newly inserted rows.
func (c *Collector) RowsInserted(n int64) {
	if n > 0 {
		c.rowsInserted.Add(float64(n))
	}
}

// ChunkAttempt counts one chunk attempt with its result.
func (c *Collector) ChunkAttempt(result string) {
	c.chunkAttempts.WithLabelValues(result).Inc()
}

// ValidationFailure counts one rejected file.
func (c *Collector) ValidationFailure(kind string) {
	c.validationFailures.WithLabelValues(kind).Inc()
}

// ObserveUpload records how long one artifact took.
func (c *Collector) ObserveUpload(d time.Duration) {
	c.uploadSeconds.Observe(d.Seconds())
}

// WriteTextfile writes every metric in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
