package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dropsync/internal/testutil"
)

var errTransient = errors.New("connection reset by peer")

func testPolicy(s *testutil.RecordingSleeper) Policy {
	return Policy{
		MaxAttempts:  3,
		Timeout:      time.Second,
		Delay:        2 * time.Second,
		TimeoutDelay: 5 * time.Second,
		Sleep:        s.Sleep,
	}
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	calls := 0

	got, err := Do(context.Background(), testPolicy(s), func(ctx context.Context) (int64, error) {
		calls++
		return 500, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.Calls())
}

func TestDo_SucceedsOnLastAttemptCountsOnce(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	calls := 0
	var retries []Attempt

	p := testPolicy(s)
	p.OnRetry = func(a Attempt) { retries = append(retries, a) }

	got, err := Do(context.Background(), p, func(ctx context.Context) (int64, error) {
		calls++
		if calls < p.MaxAttempts {
			return 999, errTransient // partial result must be discarded
		}
		return 200, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, s.Calls())
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Number)
	assert.Equal(t, ClassOperational, retries[0].Class)
}

func TestDo_Exhausted(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	calls := 0

	_, err := Do(context.Background(), testPolicy(s), func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, ClassOperational, ex.Class)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	// No pause after the final attempt.
	assert.Len(t, s.Calls(), 2)
}

func TestDo_TimeoutIsRetriedWithItsOwnDelay(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	p := testPolicy(s)
	p.Timeout = 10 * time.Millisecond
	calls := 0

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []time.Duration{5 * time.Second}, s.Calls())
}

func TestDo_TimeoutExhaustedIsReportedAsTimeout(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	p := testPolicy(s)
	p.Timeout = 5 * time.Millisecond

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, ClassTimeout, ex.Class)
	assert.Contains(t, err.Error(), "timed out after 3 attempts")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	calls := 0
	bad := errors.New("syntax error")

	_, err := Do(context.Background(), testPolicy(s), func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(bad)
	})
	assert.Same(t, bad, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestDo_ParentCancelledNotRetried(t *testing.T) {
	s := testutil.NewRecordingSleeper()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, testPolicy(s), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.Calls())
}

func TestDo_ZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
