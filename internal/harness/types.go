package harness

import (
	"github.com/roach88/dropsync/internal/pipeline"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates every expectation held.
	Pass bool `json:"pass"`

	// Summaries holds one summary per run, in run order.
	Summaries []*pipeline.Summary `json:"-"`

	// RunErrors holds the error returned by each run (nil when none).
	RunErrors []error `json:"-"`

	// Pauses records every delay requested during all runs, in order.
	Pauses []string `json:"pauses"`

	// Rows maps artifact version to destination row count after the last run.
	Rows map[uint64]int64 `json:"rows"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Pauses: []string{},
		Rows:   make(map[uint64]int64),
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Last returns the summary and error of the final run.
func (r *Result) Last() (*pipeline.Summary, error) {
	if len(r.Summaries) == 0 {
		return nil, nil
	}
	i := len(r.Summaries) - 1
	return r.Summaries[i], r.RunErrors[i]
}
