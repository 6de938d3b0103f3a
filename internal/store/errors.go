package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectKind categorizes connection failures. Every kind is fatal to the
// artifact being processed and never to the run.
type ConnectKind string

const (
	// KindInvalidAddress means the store address could not be parsed.
	KindInvalidAddress ConnectKind = "INVALID_ADDRESS"

	// KindConnectTimeout means no connection was established in time.
	KindConnectTimeout ConnectKind = "CONNECT_TIMEOUT"

	// KindConnectRefused means the store was unreachable or refused us.
	KindConnectRefused ConnectKind = "CONNECT_REFUSED"

	// KindAuthFailed means the store rejected our credentials.
	KindAuthFailed ConnectKind = "AUTH_FAILED"

	// KindProbeFailed means the connection opened but a liveness query
	// failed or timed out.
	KindProbeFailed ConnectKind = "PROBE_FAILED"
)

// ConnectError is returned by Connect.
type ConnectError struct {
	Kind ConnectKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError reports whether err is a ConnectError of the given kind.
func IsConnectError(err error, kind ConnectKind) bool {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// classifyConnect maps a failed connection attempt to a ConnectKind.
func classifyConnect(attemptCtx context.Context, err error) ConnectKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return KindConnectTimeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "28" {
		// SQLSTATE class 28: invalid authorization specification
		return KindAuthFailed
	}
	return KindConnectRefused
}

// UploadError reports the chunk that exhausted its attempts. Chunks before
// it stay committed; Inserted counts their rows.
type UploadError struct {
	Chunk    int // 1-based
	Chunks   int
	Inserted int64
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("chunk %d/%d failed (%d rows committed before it): %v", e.Chunk, e.Chunks, e.Inserted, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
