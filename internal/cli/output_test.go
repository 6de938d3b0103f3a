package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/pipeline"
	"github.com/roach88/dropsync/internal/store"
)

func testFormatter(format string) (*OutputFormatter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &OutputFormatter{Format: format, Writer: buf}, buf
}

func testSummary() *pipeline.Summary {
	return &pipeline.Summary{
		RunID:      "run-1",
		Dir:        "/trees",
		FilesFound: 3,
		FilesValid: 2,
		Invalid: []artifact.Diagnostic{
			{Name: "c.json", Kind: artifact.KindRootMismatch, Index: 4, Message: "proof does not reach root"},
		},
		Attempted:    2,
		Succeeded:    2,
		Skipped:      1,
		RowsInserted: 7,
		Chunks:       1,
		Outcomes: []pipeline.Outcome{
			{File: "a.json", Version: 1, Status: pipeline.StatusUploaded, Inserted: 7, Chunks: 1, Duration: 1234 * time.Millisecond},
			{File: "b.json", Version: 2, Status: pipeline.StatusSkipped, Gate: store.ActionSkip, Existing: 5, Duration: 40 * time.Millisecond},
		},
		Elapsed: 2500 * time.Millisecond,
	}
}

func TestFormatter_SummaryText(t *testing.T) {
	f, buf := testFormatter("text")

	require.NoError(t, f.Summary(testSummary()))
	out := buf.String()
	assert.Contains(t, out, "Run run-1: 3 file(s) found, 2 valid, 1 invalid")
	assert.Contains(t, out, "✗ c.json: ROOT_MISMATCH (entry 4): proof does not reach root")
	assert.Contains(t, out, "✓ a.json v1: 7 row(s) inserted in 1 chunk(s) [1.234s]")
	assert.Contains(t, out, "- b.json v2: skipped, 5 row(s) already present [40ms]")
	assert.Contains(t, out, "Attempted 2, succeeded 2 (1 skipped), failed 0; 7 row(s) inserted, 0 retries in 2.5s")
	assert.NotContains(t, out, "Error [")
}

func TestFormatter_SummaryJSON(t *testing.T) {
	f, buf := testFormatter("json")

	require.NoError(t, f.Summary(testSummary()))

	var resp struct {
		Status string         `json:"status"`
		RunID  string         `json:"run_id"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "2.5s", resp.Data["elapsed"])
	outcomes := resp.Data["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "1.234s", outcomes[0].(map[string]any)["duration"])
	assert.Equal(t, "skip", outcomes[1].(map[string]any)["gate"])
}

func TestFormatter_SummaryFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *pipeline.Summary)
		wantCode string
		wantText string
	}{
		{
			name: "failed artifact",
			mutate: func(s *pipeline.Summary) {
				s.Failed = 1
				s.Outcomes = append(s.Outcomes, pipeline.Outcome{
					File: "d.json", Version: 3, Status: pipeline.StatusFailed, Stage: pipeline.StageUpload, Reason: "connection reset",
				})
			},
			wantCode: ErrCodeUploadFailed,
			wantText: "✗ d.json v3: failed at upload: connection reset",
		},
		{
			name: "cancelled",
			mutate: func(s *pipeline.Summary) {
				s.Cancelled = true
				s.NotAttempted = 2
			},
			wantCode: ErrCodeCancelled,
			wantText: "Cancelled: 2 artifact(s) not attempted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/text", func(t *testing.T) {
			f, buf := testFormatter("text")
			s := testSummary()
			tt.mutate(s)

			err := f.Summary(s)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, buf.String(), tt.wantText)
			assert.Contains(t, buf.String(), "Error ["+tt.wantCode+"]")
		})
		t.Run(tt.name+"/json", func(t *testing.T) {
			f, buf := testFormatter("json")
			s := testSummary()
			tt.mutate(s)

			err := f.Summary(s)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestFormatter_SummaryJSONNoInvalidIsEmptyArray(t *testing.T) {
	f, buf := testFormatter("json")
	s := testSummary()
	s.Invalid = nil

	require.NoError(t, f.Summary(s))
	assert.Contains(t, buf.String(), `"invalid": []`)
	assert.NotContains(t, buf.String(), "null")
}

func TestFormatter_Diagnostics(t *testing.T) {
	f, buf := testFormatter("text")

	f.Diagnostics([]artifact.Diagnostic{
		{Name: "a.json", Kind: artifact.KindMalformed, Index: -1, Message: "failed to parse artifact"},
		{Name: "b.json", Kind: artifact.KindMissingProof, Index: 0, Message: "entry has no proof"},
	})
	assert.Equal(t,
		"  ✗ a.json: MALFORMED_ARTIFACT: failed to parse artifact\n"+
			"  ✗ b.json: MISSING_PROOF (entry 0): entry has no proof\n",
		buf.String())
}

func TestFormatter_ScanError(t *testing.T) {
	se := &artifact.ScanError{Code: artifact.ErrCodeNoValidArtifacts, Dir: "/trees", Message: "no valid artifacts in /trees"}
	invalid := []artifact.Diagnostic{{Name: "a.json", Kind: artifact.KindEmpty, Index: -1, Message: "artifact has no entries"}}

	t.Run("text", func(t *testing.T) {
		f, buf := testFormatter("text")
		err := f.ScanError(se, invalid)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, buf.String(), "✗ a.json: EMPTY_ARTIFACT: artifact has no entries")
		assert.Contains(t, buf.String(), "Error [NO_VALID_ARTIFACTS]: no valid artifacts in /trees")
	})

	t.Run("json", func(t *testing.T) {
		f, buf := testFormatter("json")
		err := f.ScanError(se, invalid)
		assert.Equal(t, ExitCommandError, GetExitCode(err))

		var resp struct {
			Status string `json:"status"`
			Error  struct {
				Code    string                `json:"code"`
				Details []artifact.Diagnostic `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, artifact.ErrCodeNoValidArtifacts, resp.Error.Code)
		assert.Equal(t, invalid, resp.Error.Details)
	})
}

func testValidation() ValidationResult {
	return ValidationResult{
		Dir:        "/trees",
		FilesFound: 2,
		Valid:      []ValidArtifact{{File: "a.json", Version: 1, Entries: 3, TotalClaim: 600, Root: "ab", Key: "Key1"}},
		Invalid:    []artifact.Diagnostic{{Name: "b.json", Kind: artifact.KindCountMismatch, Index: -1, Message: "max_num_nodes (3) != 2"}},
	}
}

func TestFormatter_Validation(t *testing.T) {
	t.Run("text lenient", func(t *testing.T) {
		f, buf := testFormatter("text")
		require.NoError(t, f.Validation(testValidation(), false))
		assert.Contains(t, buf.String(), "✓ a.json v1: 3 entries, root ab, key Key1")
		assert.Contains(t, buf.String(), "✗ b.json: COUNT_MISMATCH")
		assert.Contains(t, buf.String(), "1 of 2 artifact(s) valid")
	})

	t.Run("text all valid", func(t *testing.T) {
		f, buf := testFormatter("text")
		result := testValidation()
		result.FilesFound = 1
		result.Invalid = []artifact.Diagnostic{}
		require.NoError(t, f.Validation(result, true))
		assert.Contains(t, buf.String(), "✓ All 1 artifact(s) valid")
	})

	t.Run("json strict", func(t *testing.T) {
		f, buf := testFormatter("json")
		err := f.Validation(testValidation(), true)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp struct {
			Status string           `json:"status"`
			Data   ValidationResult `json:"data"`
			Error  *CLIError        `json:"error"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, testValidation(), resp.Data)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(artifact.KindCountMismatch), resp.Error.Code)
	})
}

func TestFormatter_CommandError(t *testing.T) {
	f, buf := testFormatter("json")

	err := f.CommandError(ErrCodeInvalidConfig, "identities.mint is required", nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.EqualError(t, err, "INVALID_CONFIG: identities.mint is required")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalidConfig, resp.Error.Code)
	assert.Nil(t, resp.Error.Details)
}

func TestFormatter_TextErrorVerboseDetails(t *testing.T) {
	f, buf := testFormatter("text")
	f.Verbose = true

	require.NoError(t, f.Error(ErrCodeSchemaFailed, "create table", "permission denied"))
	assert.Contains(t, buf.String(), "Error [SCHEMA_FAILED]: create table")
	assert.Contains(t, buf.String(), "Details: permission denied")
}

func TestFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	f, out := testFormatter("json")
	errBuf := &bytes.Buffer{}
	f.ErrWriter = errBuf

	f.VerboseLog("version %d", 3)
	assert.Empty(t, errBuf.String())

	f.Verbose = true
	f.VerboseLog("version %d", 3)
	assert.Equal(t, "version 3\n", errBuf.String())
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad config")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "derive key for version 1", errors.New("no viable bump"))
	assert.EqualError(t, wrapped, "derive key for version 1: no viable bump")
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}
