package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/store"
)

// ErrCodeSchemaFailed is reported when the table could not be created.
const ErrCodeSchemaFailed = "SCHEMA_FAILED"

// SchemaOptions holds flags for the init-schema command.
type SchemaOptions struct {
	*RootOptions
	storeFlags
}

// NewInitSchemaCommand creates the init-schema command.
func NewInitSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init-schema",
		Short: "Create the destination table",
		Long: `Create the destination table and its (index, recipient) primary key
if they do not already exist. Safe to run repeatedly.

Example:
  dropsync init-schema --db postgres://user@host/airdrop --table airdrop_recipients
  dropsync init-schema --db sqlite://./claims.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitSchema(opts, cmd)
		},
	}

	opts.storeFlags.register(cmd)

	return cmd
}

func runInitSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}
	opts.storeFlags.apply(cfg)
	if cfg.DatabaseURL == "" {
		return formatter.CommandError(ErrCodeInvalidConfig, "database_url is required (--db or DATABASE_URL)", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := store.Connect(ctx, cfg.DatabaseURL, cfg.ConnectOptions())
	if err != nil {
		code := string(store.KindConnectRefused)
		var ce *store.ConnectError
		if errors.As(err, &ce) {
			code = string(ce.Kind)
			err = ce.Err
		}
		return formatter.CommandError(code, err.Error(), nil)
	}
	defer conn.Close()
	formatter.VerboseLog("connected (%s)", conn.Dialect().Name)

	if err := conn.EnsureSchema(ctx, cfg.Table); err != nil {
		return formatter.CommandError(ErrCodeSchemaFailed, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"table": cfg.Table, "dialect": conn.Dialect().Name})
	}
	fmt.Fprintf(formatter.Writer, "✓ Table %s ready\n", cfg.Table)
	return nil
}
