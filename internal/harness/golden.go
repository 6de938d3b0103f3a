package harness

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/pipeline"
)

// Snapshot is the deterministic projection of a scenario's runs that golden
// files store. Derived keys, hashes, paths, timings and error text are
// left out; they are covered by unit tests and would make the files
// unreadable.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Runs     []RunSnapshot  `json:"runs"`
	Pauses   []string       `json:"pauses"`
	Rows     []RowsSnapshot `json:"rows"`
}

// RunSnapshot is one run's summary.
type RunSnapshot struct {
	Error        string            `json:"error,omitempty"`
	FilesFound   int               `json:"files_found"`
	FilesValid   int               `json:"files_valid"`
	Invalid      []InvalidSnapshot `json:"invalid"`
	Attempted    int               `json:"attempted"`
	Succeeded    int               `json:"succeeded"`
	Skipped      int               `json:"skipped"`
	Failed       int               `json:"failed"`
	RowsInserted int64             `json:"rows_inserted"`
	Chunks       int               `json:"chunks"`
	Retries      int               `json:"retries"`
	Outcomes     []OutcomeSnapshot `json:"outcomes"`
}

// InvalidSnapshot is one rejected file.
type InvalidSnapshot struct {
	File  string `json:"file"`
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

// OutcomeSnapshot is one attempted artifact.
type OutcomeSnapshot struct {
	File     string `json:"file"`
	Version  uint64 `json:"version"`
	Status   string `json:"status"`
	Gate     string `json:"gate,omitempty"`
	Existing int64  `json:"existing"`
	Inserted int64  `json:"inserted"`
	Chunks   int    `json:"chunks"`
	Stage    string `json:"stage,omitempty"`
}

// RowsSnapshot is the destination row count for one version.
type RowsSnapshot struct {
	Version uint64 `json:"version"`
	Count   int64  `json:"count"`
}

// NewSnapshot projects a result. Rows are listed in fixture order.
func NewSnapshot(s *Scenario, result *Result) Snapshot {
	snap := Snapshot{
		Scenario: s.Name,
		Runs:     make([]RunSnapshot, 0, len(result.Summaries)),
		Pauses:   result.Pauses,
		Rows:     []RowsSnapshot{},
	}
	for i, summary := range result.Summaries {
		snap.Runs = append(snap.Runs, runSnapshot(summary, result.RunErrors[i]))
	}
	seen := make(map[uint64]bool)
	for _, a := range s.Artifacts {
		count, ok := result.Rows[a.Version]
		if !ok || seen[a.Version] {
			continue
		}
		seen[a.Version] = true
		snap.Rows = append(snap.Rows, RowsSnapshot{Version: a.Version, Count: count})
	}
	return snap
}

func runSnapshot(s *pipeline.Summary, err error) RunSnapshot {
	rs := RunSnapshot{
		Invalid:  []InvalidSnapshot{},
		Outcomes: []OutcomeSnapshot{},
	}
	var se *artifact.ScanError
	if errors.As(err, &se) {
		rs.Error = se.Code
	} else if err != nil {
		rs.Error = err.Error()
	}
	if s == nil {
		return rs
	}

	rs.FilesFound = s.FilesFound
	rs.FilesValid = s.FilesValid
	rs.Attempted = s.Attempted
	rs.Succeeded = s.Succeeded
	rs.Skipped = s.Skipped
	rs.Failed = s.Failed
	rs.RowsInserted = s.RowsInserted
	rs.Chunks = s.Chunks
	rs.Retries = s.Retries
	for _, d := range s.Invalid {
		rs.Invalid = append(rs.Invalid, InvalidSnapshot{File: d.Name, Kind: string(d.Kind), Index: d.Index})
	}
	for _, o := range s.Outcomes {
		rs.Outcomes = append(rs.Outcomes, OutcomeSnapshot{
			File:     o.File,
			Version:  o.Version,
			Status:   string(o.Status),
			Gate:     string(o.Gate),
			Existing: o.Existing,
			Inserted: o.Inserted,
			Chunks:   o.Chunks,
			Stage:    string(o.Stage),
		})
	}
	return rs
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario in a temp directory and compares its
// snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, t.TempDir())
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenario, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
