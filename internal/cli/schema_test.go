package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dropsync/internal/store"
)

func TestInitSchema(t *testing.T) {
	isolateEnv(t)
	addr := sqliteAddr(t)

	out, _, err := execute(NewInitSchemaCommand(testRootOptions("text")), "--db", addr, "--table", "claims")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Table claims ready")

	// Running it again is a no-op.
	_, _, err = execute(NewInitSchemaCommand(testRootOptions("text")), "--db", addr, "--table", "claims")
	require.NoError(t, err)

	conn, err := store.Connect(context.Background(), addr, store.ConnectOptions{})
	require.NoError(t, err)
	defer conn.Close()
	n, err := conn.CountExisting(context.Background(), "claims", "any-key")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitSchemaDefaultTableJSON(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(NewInitSchemaCommand(testRootOptions("json")), "--db", sqliteAddr(t))
	require.NoError(t, err)
	assert.Contains(t, out, `"table":"airdrop_recipients"`)
	assert.Contains(t, out, `"dialect":"sqlite"`)
}

func TestInitSchemaRequiresDatabase(t *testing.T) {
	isolateEnv(t)
	_, _, err := execute(NewInitSchemaCommand(testRootOptions("text")))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database_url is required")
}

func TestInitSchemaBadAddress(t *testing.T) {
	isolateEnv(t)
	_, _, err := execute(NewInitSchemaCommand(testRootOptions("text")), "--db", "mysql://nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(store.KindInvalidAddress))
}
