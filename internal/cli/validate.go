package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/config"
	"github.com/roach88/dropsync/internal/store"
)

// ValidationResult is the validate command's JSON payload.
type ValidationResult struct {
	Dir        string                `json:"dir"`
	FilesFound int                   `json:"files_found"`
	Valid      []ValidArtifact       `json:"valid"`
	Invalid    []artifact.Diagnostic `json:"invalid"`
}

// ValidArtifact describes one artifact that passed validation.
type ValidArtifact struct {
	File       string `json:"file"`
	Version    uint64 `json:"version"`
	Entries    int    `json:"entries"`
	TotalClaim uint64 `json:"total_claim"`
	Root       string `json:"root"`
	Key        string `json:"key"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [artifacts-dir]",
		Short: "Validate artifacts without uploading",
		Long: `Run every validation check an upload would (structure, node count,
proof presence, total claim, and a full rebuild of each merkle tree
against its declared root) and report the result per file.

Nothing is written and no destination is needed. Exits 0 when at least
one artifact is valid, or 1 with --strict when any artifact is invalid.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail when any artifact is invalid")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}
	override(&cfg.ArtifactsDir, dir)
	if cfg.ArtifactsDir == "" {
		return formatter.CommandError(ErrCodeInvalidConfig,
			fmt.Sprintf("artifacts directory is required (argument, artifacts_dir or %s)", config.EnvArtifactsDir), nil)
	}
	ids, err := cfg.ParseIdentities()
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	scan, err := artifact.Scan(cfg.ArtifactsDir, ids, logger)

	result := ValidationResult{Dir: cfg.ArtifactsDir, Valid: []ValidArtifact{}, Invalid: []artifact.Diagnostic{}}
	if scan != nil {
		result.FilesFound = scan.Candidates
		result.Invalid = append(result.Invalid, scan.Invalid...)
		for _, v := range scan.Valid {
			total, _ := v.Artifact.TotalClaim()
			result.Valid = append(result.Valid, ValidArtifact{
				File:       v.Name(),
				Version:    v.Artifact.Version,
				Entries:    len(v.Artifact.Entries),
				TotalClaim: total,
				Root:       store.EncodeHash(v.Artifact.Root),
				Key:        v.Key.String(),
			})
		}
	}

	if err != nil {
		var se *artifact.ScanError
		if !errors.As(err, &se) {
			return formatter.CommandError(artifact.ErrCodeScanFailed, err.Error(), nil)
		}
		return formatter.ScanError(se, result.Invalid)
	}

	return formatter.Validation(result, opts.Strict)
}
