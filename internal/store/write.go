package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/dropsync/internal/retry"
)

// Upload defaults.
const (
	DefaultChunkSize         = 500
	DefaultMaxAttempts       = 3
	DefaultChunkTimeout      = 60 * time.Second
	DefaultRetryDelay        = 2 * time.Second
	DefaultTimeoutRetryDelay = 5 * time.Second
	DefaultChunkPause        = 200 * time.Millisecond

	// MaxChunkSize keeps one insert within PostgreSQL's 65535 bind
	// parameters. SQLite allows fewer; see Dialect.MaxChunkSize.
	MaxChunkSize = 65535 / paramsPerRecord
)

const paramsPerRecord = 4

// ChunkWriter inserts one chunk of records under a shared key and reports
// how many rows were actually inserted.
type ChunkWriter interface {
	WriteChunk(ctx context.Context, table, key string, chunk []PreparedRecord) (int64, error)
}

// WriteChunk inserts a chunk in its own transaction with a single multi-row
// statement. Rows whose (index, recipient) already exist are skipped by
// ON CONFLICT DO NOTHING and are not counted. The transaction is rolled
// back on every path that does not reach Commit.
func (c *Conn) WriteChunk(ctx context.Context, table, key string, chunk []PreparedRecord) (int64, error) {
	if len(chunk) == 0 {
		return 0, nil
	}
	query, args, err := buildInsert(c.dialect, table, key, chunk)
	if err != nil {
		return 0, retry.Permanent(err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write chunk: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("write chunk: insert: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write chunk: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write chunk: commit: %w", err)
	}
	return inserted, nil
}

// buildInsert renders INSERT ... VALUES (...), (...) ON CONFLICT DO NOTHING
// with four bound parameters per row.
func buildInsert(d Dialect, table, key string, chunk []PreparedRecord) (string, []any, error) {
	quoted, err := QuoteTable(table)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, `INSERT INTO %s ("index", recipient, amount, proof) VALUES `, quoted)

	args := make([]any, 0, len(chunk)*paramsPerRecord)
	n := 1
	for i, rec := range chunk {
		proof, err := d.proofArg(rec.Proof)
		if err != nil {
			return "", nil, fmt.Errorf("encode proof for %s: %w", rec.Recipient, err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(%s, %s, %s, %s)", d.placeholder(n), d.placeholder(n+1), d.placeholder(n+2), d.placeholder(n+3))
		args = append(args, key, rec.Recipient, rec.Amount, proof)
		n += paramsPerRecord
	}
	b.WriteString(" ON CONFLICT DO NOTHING")
	return b.String(), args, nil
}

// UploadOptions tunes Upload. Zero values take the package defaults,
// except ChunkPause where zero means no pause.
type UploadOptions struct {
	ChunkSize         int
	MaxAttempts       int
	ChunkTimeout      time.Duration
	RetryDelay        time.Duration
	TimeoutRetryDelay time.Duration
	ChunkPause        time.Duration

	// Sleep replaces real delays (tests). Nil means retry.Sleep.
	Sleep retry.SleepFunc

	Logger *slog.Logger

	// OnChunk is called after each committed chunk.
	OnChunk func(ChunkReport)

	// OnRetry is called before each retry of a chunk.
	OnRetry func(chunk int, a retry.Attempt)
}

// DefaultUploadOptions returns the tuned production values.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		ChunkSize:         DefaultChunkSize,
		MaxAttempts:       DefaultMaxAttempts,
		ChunkTimeout:      DefaultChunkTimeout,
		RetryDelay:        DefaultRetryDelay,
		TimeoutRetryDelay: DefaultTimeoutRetryDelay,
		ChunkPause:        DefaultChunkPause,
	}
}

func (o UploadOptions) withDefaults() UploadOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkSize > MaxChunkSize {
		o.ChunkSize = MaxChunkSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.ChunkTimeout <= 0 {
		o.ChunkTimeout = DefaultChunkTimeout
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.TimeoutRetryDelay <= 0 {
		o.TimeoutRetryDelay = o.RetryDelay
	}
	if o.Sleep == nil {
		o.Sleep = retry.Sleep
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// ChunkReport describes one committed chunk.
type ChunkReport struct {
	Chunk    int // 1-based
	Chunks   int
	Size     int
	Inserted int64
	Attempts int
	Duration time.Duration
}

// UploadResult summarizes a finished upload.
type UploadResult struct {
	Inserted int64 `json:"inserted"`
	Chunks   int   `json:"chunks"`
	Retries  int   `json:"retries"`
}

// Chunk splits records into consecutive slices of at most size records,
// preserving order.
func Chunk(records []PreparedRecord, size int) [][]PreparedRecord {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]PreparedRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// Upload writes records in order, one chunk at a time.
//
// Each chunk is retried up to MaxAttempts times, each attempt bounded by
// ChunkTimeout. A chunk that exhausts its attempts fails the upload with an
// *UploadError; chunks committed before it stay committed. Re-running is
// safe because inserts ignore existing rows.
func Upload(ctx context.Context, w ChunkWriter, table, key string, records []PreparedRecord, opts UploadOptions) (UploadResult, error) {
	opts = opts.withDefaults()
	chunks := Chunk(records, opts.ChunkSize)
	result := UploadResult{}

	for i, chunk := range chunks {
		num := i + 1
		start := time.Now()
		attempts := 1

		policy := retry.Policy{
			MaxAttempts:  opts.MaxAttempts,
			Timeout:      opts.ChunkTimeout,
			Delay:        opts.RetryDelay,
			TimeoutDelay: opts.TimeoutRetryDelay,
			Sleep:        opts.Sleep,
			OnRetry: func(a retry.Attempt) {
				attempts++
				result.Retries++
				if a.Class == retry.ClassTimeout {
					opts.Logger.Warn("chunk timed out, retrying",
						"chunk", fmt.Sprintf("%d/%d", num, len(chunks)),
						"attempt", a.Number,
						"timeout", opts.ChunkTimeout,
						"retry_in", a.Delay,
					)
				} else {
					opts.Logger.Warn("chunk failed, retrying",
						"chunk", fmt.Sprintf("%d/%d", num, len(chunks)),
						"attempt", a.Number,
						"retry_in", a.Delay,
						"error", a.Err,
					)
				}
				if opts.OnRetry != nil {
					opts.OnRetry(num, a)
				}
			},
		}

		inserted, err := retry.Do(ctx, policy, func(ctx context.Context) (int64, error) {
			return w.WriteChunk(ctx, table, key, chunk)
		})
		if err != nil {
			return result, &UploadError{Chunk: num, Chunks: len(chunks), Inserted: result.Inserted, Err: err}
		}

		result.Inserted += inserted
		result.Chunks++
		report := ChunkReport{
			Chunk:    num,
			Chunks:   len(chunks),
			Size:     len(chunk),
			Inserted: inserted,
			Attempts: attempts,
			Duration: time.Since(start),
		}
		opts.Logger.Info("chunk committed",
			"chunk", fmt.Sprintf("%d/%d", num, len(chunks)),
			"inserted", inserted,
			"size", len(chunk),
			"duration", report.Duration,
		)
		if opts.OnChunk != nil {
			opts.OnChunk(report)
		}

		if num < len(chunks) && opts.ChunkPause > 0 {
			if err := opts.Sleep(ctx, opts.ChunkPause); err != nil {
				return result, &UploadError{Chunk: num + 1, Chunks: len(chunks), Inserted: result.Inserted, Err: err}
			}
		}
	}
	return result, nil
}
