package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/config"
	"github.com/roach88/dropsync/internal/pipeline"
	"github.com/roach88/dropsync/internal/retry"
)

// Error codes reported by upload in addition to the scan codes.
const (
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeUploadFailed  = "UPLOAD_FAILED"
	ErrCodeCancelled     = "CANCELLED"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	storeFlags
	CreateTable bool
	DryRun      bool
	MetricsFile string
	ChunkSize   int

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs pipeline.RunIDGenerator

	// Sleep allows overriding pacing and retry delays (for testing).
	Sleep retry.SleepFunc
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	return newUploadCommand(&UploadOptions{RootOptions: rootOpts})
}

func newUploadCommand(opts *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [artifacts-dir]",
		Short: "Validate artifacts and upload their proofs",
		Long: `Scan a directory of airdrop merkle artifacts, validate each one, and
upload the valid ones to the destination table in version order.

Each artifact gets its own connection. Rows already present for an
artifact's derived key are detected first: a complete artifact is
skipped and a partial one is resumed. A failed artifact is reported
and the run moves on to the next.

The directory defaults to ` + config.EnvArtifactsDir + ` or artifacts_dir in the config file.

Example:
  dropsync upload --db postgres://user@host/airdrop ./trees
  dropsync upload --db sqlite://./claims.db --create-table ./trees
  dropsync upload --dry-run --format json ./trees`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runUpload(opts, dir, cmd)
		},
	}

	opts.storeFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.CreateTable, "create-table", false, "create the destination table if it does not exist")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate and encode without touching the destination")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file when the run ends (overrides "+config.EnvMetricsFile+")")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "records per insert statement (default from config, 500)")

	return cmd
}

func runUpload(opts *UploadOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}
	opts.storeFlags.apply(cfg)
	if cmd.Flags().Changed("create-table") {
		cfg.CreateTable = opts.CreateTable
	}
	override(&cfg.MetricsFile, opts.MetricsFile)
	if opts.ChunkSize > 0 {
		cfg.Upload.ChunkSize = opts.ChunkSize
	}
	override(&cfg.ArtifactsDir, dir)
	if cfg.ArtifactsDir == "" {
		return formatter.CommandError(ErrCodeInvalidConfig,
			fmt.Sprintf("artifacts directory is required (argument, artifacts_dir or %s)", config.EnvArtifactsDir), nil)
	}

	if err := cfg.Validate(!opts.DryRun); err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}
	pcfg, err := cfg.PipelineConfig()
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}
	pcfg.DryRun = opts.DryRun

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	runOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if opts.RunIDs != nil {
		runOpts = append(runOpts, pipeline.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.Sleep != nil {
		runOpts = append(runOpts, pipeline.WithSleep(opts.Sleep))
	}
	runner := pipeline.New(pcfg, runOpts...)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, stopping after current artifact", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, runErr := runner.Run(ctx, cfg.ArtifactsDir)

	if cfg.MetricsFile != "" {
		if err := runner.Metrics().WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics file", "path", cfg.MetricsFile, "error", err)
		} else {
			logger.Debug("metrics written", "path", cfg.MetricsFile)
		}
	}

	if runErr != nil {
		var se *artifact.ScanError
		if errors.As(runErr, &se) {
			var invalid []artifact.Diagnostic
			if summary != nil {
				invalid = summary.Invalid
			}
			return formatter.ScanError(se, invalid)
		}
		return formatter.CommandError(ErrCodeInvalidConfig, runErr.Error(), nil)
	}

	return formatter.Summary(summary)
}
