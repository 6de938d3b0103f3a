package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/metrics"
	"github.com/roach88/dropsync/internal/retry"
	"github.com/roach88/dropsync/internal/store"
)

// DefaultArtifactPause is the delay between consecutive artifacts.
const DefaultArtifactPause = 2 * time.Second

// Config is everything a run needs besides the artifact directory.
type Config struct {
	// Address is the destination store address (see store.ParseAddress).
	Address string

	// Table is the destination table, optionally schema-qualified.
	Table string

	// Identities are the program, base and mint used to derive keys.
	Identities artifact.Identities

	// CreateTable creates the destination table before gating each artifact.
	CreateTable bool

	// DryRun validates and encodes without connecting to the store.
	DryRun bool

	Connect       store.ConnectOptions
	Upload        store.UploadOptions
	ArtifactPause time.Duration
}

// Runner drives validated artifacts through connect, gate, encode and
// upload, one artifact at a time.
type Runner struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector
	sleep   retry.SleepFunc
	runIDs  RunIDGenerator
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the collector. Default: a private collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSleep replaces every pacing and retry delay. Tests pass a recording
// sleeper.
func WithSleep(s retry.SleepFunc) Option {
	return func(r *Runner) { r.sleep = s }
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(r *Runner) { r.runIDs = g }
}

// New creates a Runner.
func New(cfg Config, opts ...Option) *Runner {
	if cfg.ArtifactPause < 0 {
		cfg.ArtifactPause = 0
	}
	r := &Runner{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.New(),
		sleep:   retry.Sleep,
		runIDs:  UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the collector the Runner records into.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Run scans dir and syncs every valid artifact in version order.
//
// Only configuration-class problems are returned as errors: the scan
// failing (not a directory, no candidates, nothing valid) or an empty
// table name. In the no-valid-artifacts case the summary still carries the
// diagnostics. Failures of individual artifacts are recorded as Outcomes
// and never stop the loop.
//
// If ctx is cancelled the in-flight artifact fails with the context error,
// the remaining ones are not attempted, and the summary is returned with
// Cancelled set.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: r.runIDs.Generate(), Dir: dir, DryRun: r.cfg.DryRun}
	logger := r.logger.With("run_id", summary.RunID)
	defer func() { summary.Elapsed = time.Since(start) }()

	if !r.cfg.DryRun {
		if _, err := store.QuoteTable(r.cfg.Table); err != nil {
			return summary, fmt.Errorf("invalid table: %w", err)
		}
	}

	scan, err := artifact.Scan(dir, r.cfg.Identities, logger)
	if scan != nil {
		summary.FilesFound = scan.Candidates
		summary.FilesValid = len(scan.Valid)
		summary.Invalid = scan.Invalid
		for _, d := range scan.Invalid {
			r.metrics.ValidationFailure(string(d.Kind))
		}
	}
	if err != nil {
		return summary, err
	}

	for i, v := range scan.Valid {
		if i > 0 && r.cfg.ArtifactPause > 0 {
			if err := r.sleep(ctx, r.cfg.ArtifactPause); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		logger.Info("processing artifact",
			"progress", fmt.Sprintf("%d/%d", i+1, len(scan.Valid)),
			"file", v.Name(),
			"version", v.Artifact.Version,
		)
		out := r.syncArtifact(ctx, logger, v)
		summary.record(out)
		r.metrics.ArtifactOutcome(string(out.Status))
		r.metrics.RowsInserted(out.Inserted)
		if !r.cfg.DryRun {
			r.metrics.ObserveUpload(out.Duration)
		}
	}

	if ctx.Err() != nil {
		summary.Cancelled = true
		summary.NotAttempted = len(scan.Valid) - summary.Attempted
		logger.Warn("run cancelled", "not_attempted", summary.NotAttempted, "error", ctx.Err())
	}

	logger.Info("run complete",
		"files_found", summary.FilesFound,
		"files_valid", summary.FilesValid,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"rows_inserted", summary.RowsInserted,
		"elapsed", time.Since(start),
	)
	return summary, nil
}

// syncArtifact runs one artifact to completion. Every error ends here as
// a failed Outcome.
func (r *Runner) syncArtifact(ctx context.Context, parent *slog.Logger, v *artifact.Validated) Outcome {
	start := time.Now()
	key := v.Key.String()
	log := parent.With("file", v.Name(), "version", v.Artifact.Version, "key", key)

	out := Outcome{
		File:    v.Name(),
		Version: v.Artifact.Version,
		Key:     key,
		Entries: len(v.Artifact.Entries),
	}
	finish := func(o Outcome) Outcome {
		o.Duration = time.Since(start)
		return o
	}
	fail := func(o Outcome, stage Stage, err error) Outcome {
		o.Status = StatusFailed
		o.Stage = stage
		o.Reason = err.Error()
		log.Error("artifact failed", "stage", stage, "error", err)
		return finish(o)
	}

	records := store.PrepareRecords(v.Artifact.Entries)
	if r.cfg.DryRun {
		out.Status = StatusDryRun
		out.Chunks = len(store.Chunk(records, r.cfg.Upload.ChunkSize))
		log.Info("dry run: artifact encoded", "records", len(records), "chunks", out.Chunks)
		return finish(out)
	}

	conn, err := store.Connect(ctx, r.cfg.Address, r.cfg.Connect)
	if err != nil {
		return fail(out, StageConnect, err)
	}
	defer conn.Close()
	log.Debug("connected", "dialect", conn.Dialect().Name)

	if r.cfg.CreateTable {
		if err := conn.EnsureSchema(ctx, r.cfg.Table); err != nil {
			return fail(out, StageSchema, err)
		}
	}

	decision, err := conn.Gate(ctx, r.cfg.Table, key, int64(len(records)))
	if err != nil {
		return fail(out, StageGate, err)
	}
	out.Gate = decision.Action
	out.Existing = decision.Existing

	switch decision.Action {
	case store.ActionSkip:
		out.Status = StatusSkipped
		log.Info("artifact already synced, skipping", "existing", decision.Existing, "expected", decision.Expected)
		return finish(out)
	case store.ActionPartial:
		log.Info("artifact partially synced, uploading missing rows",
			"existing", decision.Existing,
			"expected", decision.Expected,
			"missing", decision.Missing,
		)
	default:
		log.Info("uploading artifact", "records", len(records))
	}

	opts := r.cfg.Upload
	opts.Sleep = r.sleep
	opts.Logger = log
	opts.OnChunk = func(store.ChunkReport) { r.metrics.ChunkAttempt(metrics.ChunkSuccess) }
	opts.OnRetry = func(_ int, a retry.Attempt) { r.metrics.ChunkAttempt(attemptResult(a.Class)) }

	res, err := store.Upload(ctx, conn, r.cfg.Table, key, records, opts)
	out.Inserted = res.Inserted
	out.Chunks = res.Chunks
	out.Retries = res.Retries
	if err != nil {
		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			r.metrics.ChunkAttempt(attemptResult(ex.Class))
		}
		return fail(out, StageUpload, err)
	}

	out.Status = StatusUploaded
	log.Info("artifact uploaded", "inserted", res.Inserted, "chunks", res.Chunks, "retries", res.Retries)
	return finish(out)
}

func attemptResult(c retry.Class) string {
	if c == retry.ClassTimeout {
		return metrics.ChunkTimeout
	}
	return metrics.ChunkOperational
}
