package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/artifact"
)

// DerivedKeyResult is one derived key in the derive command's output.
type DerivedKeyResult struct {
	Version uint64 `json:"version"`
	Key     string `json:"key"`
	Bump    uint8  `json:"bump"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <version> [version...]",
		Short: "Print the derived store key for artifact versions",
		Long: `Derive the distributor address that partitions the destination table
for each given airdrop version, from the configured program, base and
mint identities.

Example:
  dropsync derive --program-id <id> --base <key> --mint <mint> 1 2 3`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runDerive(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	versions := make([]uint64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return formatter.CommandError(ErrCodeInvalidConfig, fmt.Sprintf("invalid version %q: must be an unsigned integer", arg), nil)
		}
		versions[i] = v
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}
	ids, err := cfg.ParseIdentities()
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidConfig, err.Error(), nil)
	}

	results := make([]DerivedKeyResult, 0, len(versions))
	for _, v := range versions {
		key, err := artifact.DeriveKey(ids, v)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("derive key for version %d", v), err)
		}
		formatter.VerboseLog("version %d: address %s bump %d", v, key, key.Bump)
		results = append(results, DerivedKeyResult{Version: v, Key: key.String(), Bump: key.Bump})
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	for _, r := range results {
		fmt.Fprintf(formatter.Writer, "%d\t%s\t%d\n", r.Version, r.Key, r.Bump)
	}
	return nil
}
