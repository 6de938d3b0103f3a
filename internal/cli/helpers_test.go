package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/config"
	"github.com/roach88/dropsync/internal/testutil"
)

// isolateEnv blanks every variable config.Load reads so the host
// environment cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvArtifactsDir,
		config.EnvDatabaseURL,
		config.EnvPostgresURL,
		config.EnvTable,
		config.EnvProgram,
		config.EnvBase,
		config.EnvMint,
		config.EnvMetricsFile,
	} {
		t.Setenv(key, "")
	}
}

// testRootOptions returns root options carrying the fixed test identities.
func testRootOptions(format string) *RootOptions {
	ids := testutil.Identities()
	return &RootOptions{
		Format:    format,
		LogFormat: "text",
		Program:   ids.Program.String(),
		Base:      ids.Base.String(),
		Mint:      ids.Mint.String(),
	}
}

// writeArtifacts writes well-formed artifacts into a fresh directory.
// files maps a file name to {version, entries}.
func writeArtifacts(t *testing.T, files map[string][2]int) string {
	t.Helper()
	dir := t.TempDir()
	for name, f := range files {
		testutil.WriteArtifact(t, dir, name, testutil.BuildArtifact(uint64(f[0]), f[1]))
	}
	return dir
}

func sqliteAddr(t *testing.T) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "claims.db")
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
