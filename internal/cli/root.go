package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogFormat  string // "text" | "json"
	ConfigPath string

	// Identity overrides, base58. Empty keeps the configured value.
	Program string
	Base    string
	Mint    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dropsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dropsync",
		Short: "dropsync - airdrop merkle artifacts into a claim table",
		Long: `Validate versioned airdrop merkle artifacts and load their proofs into a
relational table that a claim service reads.

Every artifact's tree is rebuilt and checked against its declared root
before any row is written. Uploads are chunked, retried and idempotent,
so an interrupted run can simply be started again.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidLogFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidLogFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Program, "program-id", "", "distributor program id (base58, overrides "+config.EnvProgram+")")
	cmd.PersistentFlags().StringVar(&opts.Base, "base", "", "distributor base key (base58, overrides "+config.EnvBase+")")
	cmd.PersistentFlags().StringVar(&opts.Mint, "mint", "", "token mint (base58, overrides "+config.EnvMint+")")

	// Add subcommands
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewInitSchemaCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the run logger. Logs always go to w (stderr) so JSON
// output on stdout stays parseable.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// loadConfig loads the config file and environment, then applies the
// global identity overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	override(&cfg.Identities.Program, opts.Program)
	override(&cfg.Identities.Base, opts.Base)
	override(&cfg.Identities.Mint, opts.Mint)
	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// storeFlags are the destination flags shared by upload and init-schema.
type storeFlags struct {
	Database string
	Table    string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Database, "db", "", "destination address: postgres://... or sqlite://path (overrides "+config.EnvDatabaseURL+")")
	cmd.Flags().StringVar(&f.Table, "table", "", "destination table (overrides "+config.EnvTable+", default "+config.DefaultTable+")")
}

func (f *storeFlags) apply(cfg *config.Config) {
	override(&cfg.DatabaseURL, f.Database)
	override(&cfg.Table, f.Table)
}
