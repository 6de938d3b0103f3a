package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/store"
	"github.com/roach88/dropsync/internal/testutil"
)

func TestValidateValidArtifacts(t *testing.T) {
	isolateEnv(t)
	dir := writeArtifacts(t, map[string][2]int{
		"a.json": {1, 3},
		"b.json": {2, 1},
	})

	out, _, err := execute(NewValidateCommand(testRootOptions("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ a.json v1: 3 entries")
	assert.Contains(t, out, "✓ b.json v2: 1 entries")
	assert.Contains(t, out, "✓ All 2 artifact(s) valid")
}

func tamperedDir(t *testing.T) string {
	t.Helper()
	dir := writeArtifacts(t, map[string][2]int{"a.json": {1, 4}})
	bad := testutil.BuildArtifact(2, 4)
	testutil.TamperProof(bad, 2)
	testutil.WriteArtifact(t, dir, "b.json", bad)
	return dir
}

func TestValidateReportsInvalidFiles(t *testing.T) {
	isolateEnv(t)
	dir := tamperedDir(t)

	out, _, err := execute(NewValidateCommand(testRootOptions("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✗ b.json: ROOT_MISMATCH")
	assert.Contains(t, out, "1 of 2 artifact(s) valid")
}

func TestValidateStrict(t *testing.T) {
	isolateEnv(t)
	dir := tamperedDir(t)

	_, _, err := execute(NewValidateCommand(testRootOptions("text")), "--strict", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 artifact(s) invalid")
}

func TestValidateJSON(t *testing.T) {
	isolateEnv(t)
	dir := tamperedDir(t)

	out, _, err := execute(NewValidateCommand(testRootOptions("json")), dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.FilesFound)

	require.Len(t, resp.Data.Valid, 1)
	valid := resp.Data.Valid[0]
	want := testutil.BuildArtifact(1, 4)
	key, err := artifact.DeriveKey(testutil.Identities(), 1)
	require.NoError(t, err)
	assert.Equal(t, "a.json", valid.File)
	assert.Equal(t, store.EncodeHash(want.Root), valid.Root)
	assert.Equal(t, key.String(), valid.Key)
	assert.Equal(t, uint64(1000+2000+3000+4000), valid.TotalClaim)

	require.Len(t, resp.Data.Invalid, 1)
	assert.Equal(t, artifact.KindRootMismatch, resp.Data.Invalid[0].Kind)
	assert.Equal(t, "b.json", resp.Data.Invalid[0].Name)
}

func TestValidateNoValidArtifacts(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	bad := testutil.BuildArtifact(1, 2)
	bad.MaxNumNodes = 3
	testutil.WriteArtifact(t, dir, "a.json", bad)

	out, _, err := execute(NewValidateCommand(testRootOptions("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), artifact.ErrCodeNoValidArtifacts)
	assert.Contains(t, out, "✗ a.json: COUNT_MISMATCH")
}

func TestValidateEmptyDirectory(t *testing.T) {
	isolateEnv(t)
	_, _, err := execute(NewValidateCommand(testRootOptions("text")), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), artifact.ErrCodeNoCandidateFiles)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(NewValidateCommand(testRootOptions("text")), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), artifact.ErrCodeNotADirectory)
	assert.Contains(t, out, "not found")
}

func TestValidateNeedsIdentities(t *testing.T) {
	isolateEnv(t)
	opts := testRootOptions("text")
	opts.Base = ""

	_, _, err := execute(NewValidateCommand(opts), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "identities.base is required")
}
