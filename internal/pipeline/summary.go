package pipeline

import (
	"encoding/json"
	"time"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/store"
)

// Status is the terminal state of one artifact in a run.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusDryRun   Status = "dry_run"
)

// Stage names where a failed artifact stopped.
type Stage string

const (
	StageConnect Stage = "connect"
	StageSchema  Stage = "schema"
	StageGate    Stage = "gate"
	StageUpload  Stage = "upload"
)

// Outcome is the per-artifact record the orchestrator keeps instead of
// propagating an artifact's error.
type Outcome struct {
	File     string       `json:"file"`
	Version  uint64       `json:"version"`
	Key      string       `json:"key"`
	Entries  int          `json:"entries"`
	Status   Status       `json:"status"`
	Gate     store.Action `json:"gate,omitempty"`
	Existing int64        `json:"existing"`
	Inserted int64        `json:"inserted"`
	Chunks   int          `json:"chunks"`
	Retries  int          `json:"retries"`
	Stage    Stage        `json:"stage,omitempty"`
	Reason   string       `json:"reason,omitempty"`

	Duration time.Duration `json:"-"`
}

// MarshalJSON adds the duration as a Go duration string.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	return json.Marshal(struct {
		plain
		Duration string `json:"duration"`
	}{plain(o), o.Duration.String()})
}

// Failed reports whether the artifact ended in failure.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Summary is the report of one run. It is always produced, even when some
// artifacts failed or the run was cancelled.
type Summary struct {
	RunID string `json:"run_id"`
	Dir   string `json:"dir"`

	FilesFound int                   `json:"files_found"`
	FilesValid int                   `json:"files_valid"`
	Invalid    []artifact.Diagnostic `json:"invalid"`

	Attempted    int   `json:"attempted"`
	Succeeded    int   `json:"succeeded"`
	Skipped      int   `json:"skipped"`
	Failed       int   `json:"failed"`
	RowsInserted int64 `json:"rows_inserted"`
	Chunks       int   `json:"chunks"`
	Retries      int   `json:"retries"`

	// NotAttempted counts valid artifacts left untouched after cancellation.
	NotAttempted int  `json:"not_attempted"`
	Cancelled    bool `json:"cancelled"`
	DryRun       bool `json:"dry_run"`

	Outcomes []Outcome `json:"outcomes"`

	Elapsed time.Duration `json:"-"`
}

// MarshalJSON adds the elapsed time and encodes empty lists as [] rather
// than null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	p := plain(s)
	if p.Invalid == nil {
		p.Invalid = []artifact.Diagnostic{}
	}
	if p.Outcomes == nil {
		p.Outcomes = []Outcome{}
	}
	return json.Marshal(struct {
		plain
		Elapsed string `json:"elapsed"`
	}{p, s.Elapsed.String()})
}

// OK reports whether every attempted artifact succeeded and nothing was
// left unattempted.
func (s *Summary) OK() bool {
	return s.Failed == 0 && !s.Cancelled
}

func (s *Summary) record(o Outcome) {
	s.Attempted++
	s.Outcomes = append(s.Outcomes, o)
	s.RowsInserted += o.Inserted
	s.Chunks += o.Chunks
	s.Retries += o.Retries
	switch o.Status {
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
		s.Succeeded++
	default:
		s.Succeeded++
	}
}
