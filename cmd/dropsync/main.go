// Command dropsync validates airdrop merkle artifacts and uploads their
// proofs to a claim table.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/dropsync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// ExitErrors have already been reported by the command's formatter.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
