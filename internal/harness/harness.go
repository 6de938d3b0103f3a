package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/pipeline"
	"github.com/roach88/dropsync/internal/store"
	"github.com/roach88/dropsync/internal/testutil"
)

// Table is the destination table every scenario writes to.
const Table = "airdrop_recipients"

// Harness runs scenarios against a scratch directory and SQLite file.
// Delays are recorded instead of slept and run IDs are fixed, so the same
// scenario always produces the same summaries.
type Harness struct {
	workDir string
	ids     artifact.Identities
	sleeper *testutil.RecordingSleeper
	logger  *slog.Logger
}

// Run executes a scenario in workDir, which must exist and be empty.
//
// Execution flow:
//  1. Write artifact fixtures into workDir/artifacts
//  2. Create the destination table and seed rows (unless disabled)
//  3. Run the pipeline Runs times over the same directory and destination
//  4. Count destination rows per version and check expectations
func Run(scenario *Scenario, workDir string) (*Result, error) {
	h := &Harness{
		workDir: workDir,
		ids:     testutil.Identities(),
		sleeper: testutil.NewRecordingSleeper(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, s *Scenario) (*Result, error) {
	dir := filepath.Join(h.workDir, "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	built, err := h.writeFixtures(dir, s.Artifacts)
	if err != nil {
		return nil, err
	}

	addr := "sqlite://" + filepath.Join(h.workDir, "dest.db")
	if err := h.seed(ctx, addr, s, built); err != nil {
		return nil, err
	}

	runs := s.Runs
	if runs == 0 {
		runs = 1
	}

	cfg := pipeline.Config{
		Address:       addr,
		Table:         Table,
		Identities:    h.ids,
		CreateTable:   !s.NoCreateTable,
		Upload:        store.DefaultUploadOptions(),
		ArtifactPause: pipeline.DefaultArtifactPause,
	}
	if s.ChunkSize > 0 {
		cfg.Upload.ChunkSize = s.ChunkSize
	}

	result := NewResult()
	for i := 0; i < runs; i++ {
		r := pipeline.New(cfg,
			pipeline.WithLogger(h.logger),
			pipeline.WithSleep(h.sleeper.Sleep),
			pipeline.WithRunIDGenerator(pipeline.NewFixedGenerator(fmt.Sprintf("%s-run-%d", s.Name, i+1))),
		)
		summary, err := r.Run(ctx, dir)
		result.Summaries = append(result.Summaries, summary)
		result.RunErrors = append(result.RunErrors, err)
	}
	for _, d := range h.sleeper.Calls() {
		result.Pauses = append(result.Pauses, d.String())
	}

	if !s.NoCreateTable {
		if err := h.countRows(ctx, addr, built, result); err != nil {
			return nil, err
		}
	}

	checkExpectations(s, result)
	return result, nil
}

// writeFixtures writes every fixture and returns the artifacts that were
// built, keyed by version.
func (h *Harness) writeFixtures(dir string, fixtures []ArtifactFixture) (map[uint64]*artifact.Artifact, error) {
	built := make(map[uint64]*artifact.Artifact)
	for _, f := range fixtures {
		path := filepath.Join(dir, f.File)
		if f.Raw != "" {
			if err := os.WriteFile(path, []byte(f.Raw), 0o644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", f.File, err)
			}
			continue
		}

		a := testutil.BuildArtifact(f.Version, f.Entries)
		if f.DeclaredNodes != nil {
			a.MaxNumNodes = *f.DeclaredNodes
		}
		a.MaxTotalClaim = f.MaxTotalClaim
		if f.TamperProof != nil {
			testutil.TamperProof(a, *f.TamperProof)
		}
		if f.DropProof != nil {
			a.Entries[*f.DropProof].Proof = nil
		}
		if err := artifact.Write(path, a); err != nil {
			return nil, err
		}
		built[f.Version] = a
	}
	return built, nil
}

// seed creates the destination table and inserts the seeded rows.
func (h *Harness) seed(ctx context.Context, addr string, s *Scenario, built map[uint64]*artifact.Artifact) error {
	if s.NoCreateTable {
		return nil
	}
	conn, err := store.Connect(ctx, addr, store.ConnectOptions{})
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer conn.Close()

	if err := conn.EnsureSchema(ctx, Table); err != nil {
		return err
	}
	for _, step := range s.Seed {
		a := built[step.Version]
		key, err := artifact.DeriveKey(h.ids, step.Version)
		if err != nil {
			return err
		}
		records := store.PrepareRecords(a.Entries[:step.Entries])
		if _, err := conn.WriteChunk(ctx, Table, key.String(), records); err != nil {
			return fmt.Errorf("failed to seed version %d: %w", step.Version, err)
		}
	}
	return nil
}

// countRows records the destination row count for every built version.
func (h *Harness) countRows(ctx context.Context, addr string, built map[uint64]*artifact.Artifact, result *Result) error {
	conn, err := store.Connect(ctx, addr, store.ConnectOptions{})
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer conn.Close()

	for version := range built {
		key, err := artifact.DeriveKey(h.ids, version)
		if err != nil {
			return err
		}
		n, err := conn.CountExisting(ctx, Table, key.String())
		if err != nil {
			return err
		}
		result.Rows[version] = n
	}
	return nil
}

// checkExpectations compares the last run against the scenario.
func checkExpectations(s *Scenario, result *Result) {
	summary, runErr := result.Last()
	e := s.Expect

	if e.Error != "" {
		var se *artifact.ScanError
		switch {
		case runErr == nil:
			result.AddError(fmt.Sprintf("expected error %s, run succeeded", e.Error))
		case !errors.As(runErr, &se):
			result.AddError(fmt.Sprintf("expected error %s, got %v", e.Error, runErr))
		case se.Code != e.Error:
			result.AddError(fmt.Sprintf("expected error %s, got %s", e.Error, se.Code))
		}
	} else if runErr != nil {
		result.AddError(fmt.Sprintf("unexpected run error: %v", runErr))
	}
	if summary == nil {
		return
	}

	checkInt := func(field string, want *int, got int) {
		if want != nil && *want != got {
			result.AddError(fmt.Sprintf("%s: expected %d, got %d", field, *want, got))
		}
	}
	checkInt("files_found", e.FilesFound, summary.FilesFound)
	checkInt("files_valid", e.FilesValid, summary.FilesValid)
	checkInt("invalid", e.Invalid, len(summary.Invalid))
	checkInt("attempted", e.Attempted, summary.Attempted)
	checkInt("succeeded", e.Succeeded, summary.Succeeded)
	checkInt("skipped", e.Skipped, summary.Skipped)
	checkInt("failed", e.Failed, summary.Failed)
	checkInt("chunks", e.Chunks, summary.Chunks)
	if e.RowsInserted != nil && *e.RowsInserted != summary.RowsInserted {
		result.AddError(fmt.Sprintf("rows_inserted: expected %d, got %d", *e.RowsInserted, summary.RowsInserted))
	}

	for _, want := range s.Rows {
		if got := result.Rows[want.Version]; got != want.Count {
			result.AddError(fmt.Sprintf("rows for version %d: expected %d, got %d", want.Version, want.Count, got))
		}
	}
}
