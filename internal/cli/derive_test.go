package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/testutil"
)

func TestDeriveText(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(NewDeriveCommand(testRootOptions("text")), "1", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for i, v := range []uint64{1, 2} {
		key, err := artifact.DeriveKey(testutil.Identities(), v)
		require.NoError(t, err)
		fields := strings.Split(lines[i], "\t")
		require.Len(t, fields, 3)
		assert.Equal(t, key.String(), fields[1])
	}
	assert.NotEqual(t, lines[0], lines[1])
}

func TestDeriveJSON(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(NewDeriveCommand(testRootOptions("json")), "42")
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []DerivedKeyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)

	key, err := artifact.DeriveKey(testutil.Identities(), 42)
	require.NoError(t, err)
	assert.Equal(t, DerivedKeyResult{Version: 42, Key: key.String(), Bump: key.Bump}, resp.Data[0])
}

func TestDeriveInvalidVersion(t *testing.T) {
	isolateEnv(t)
	_, _, err := execute(NewDeriveCommand(testRootOptions("text")), "v1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid version "v1"`)
}

func TestDeriveRequiresVersion(t *testing.T) {
	isolateEnv(t)
	_, _, err := execute(NewDeriveCommand(testRootOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestDeriveBadIdentity(t *testing.T) {
	isolateEnv(t)
	opts := testRootOptions("text")
	opts.Program = "not-base58-0OIl"

	_, _, err := execute(NewDeriveCommand(opts), "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "identities.program")
}
