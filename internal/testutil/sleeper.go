package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper stands in for real delays in tests.
//
// Sleep records the requested duration and returns immediately, so retry
// back-off and pacing can be asserted without slowing the test down. A
// cancelled context is still honoured.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

// NewRecordingSleeper creates a sleeper with no recorded calls.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns ctx.Err() if the context is already done.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Calls returns a copy of every duration passed to Sleep, in call order.
func (s *RecordingSleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.calls))
	copy(out, s.calls)
	return out
}

// Total returns the sum of all recorded durations.
func (s *RecordingSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.calls {
		total += d
	}
	return total
}

// Reset clears the recorded calls.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
