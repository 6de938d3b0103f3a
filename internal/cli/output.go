package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/pipeline"
)

// Exit codes. Zero is returned by a nil error.
const (
	ExitFailure      = 1 // an artifact failed, the run was cancelled, or strict validation rejected a file
	ExitCommandError = 2 // the command could not run at all
)

// ExitError carries the process exit code for a command's failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code.
// Errors that are not an ExitError map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every JSON document a command prints.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError names why a command or run failed. Code is a scan code, a
// validation kind, or one of the ErrCode constants.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose notes; keeps JSON on Writer parseable
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Success prints a payload. Text output uses the payload's default format.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints a command-level error.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// CommandError prints an error and returns the matching ExitCommandError.
func (f *OutputFormatter) CommandError(code, message string, details any) error {
	_ = f.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// ScanError reports a directory that could not produce a valid artifact.
// The per-file diagnostics go in the error details; text output lists
// them first.
func (f *OutputFormatter) ScanError(se *artifact.ScanError, invalid []artifact.Diagnostic) error {
	if !f.isJSON() {
		f.Diagnostics(invalid)
	}
	var details any
	if len(invalid) > 0 {
		details = invalid
	}
	return f.CommandError(se.Code, se.Message, details)
}

// Diagnostics lists invalid files, one per line. Text only.
func (f *OutputFormatter) Diagnostics(invalid []artifact.Diagnostic) {
	for _, d := range invalid {
		if d.Index >= 0 {
			fmt.Fprintf(f.Writer, "  ✗ %s: %s (entry %d): %s\n", d.Name, d.Kind, d.Index, d.Message)
		} else {
			fmt.Fprintf(f.Writer, "  ✗ %s: %s: %s\n", d.Name, d.Kind, d.Message)
		}
	}
}

// VerboseLog writes a note to ErrWriter (or Writer) in verbose mode.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Summary prints a run summary and returns ExitFailure when an artifact
// failed or the run was cancelled.
func (f *OutputFormatter) Summary(s *pipeline.Summary) error {
	var failure *CLIError
	switch {
	case s.Cancelled:
		failure = &CLIError{
			Code:    ErrCodeCancelled,
			Message: fmt.Sprintf("run cancelled, %d artifact(s) not attempted", s.NotAttempted),
		}
	case !s.OK():
		failure = &CLIError{
			Code:    ErrCodeUploadFailed,
			Message: fmt.Sprintf("%d of %d artifact(s) failed", s.Failed, s.Attempted),
		}
	}

	if f.isJSON() {
		resp := CLIResponse{Status: "ok", Data: s, RunID: s.RunID}
		if failure != nil {
			resp.Status = "error"
			resp.Error = failure
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		f.writeSummary(s)
		if failure != nil {
			fmt.Fprintf(f.Writer, "Error [%s]: %s\n", failure.Code, failure.Message)
		}
	}

	if failure != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", failure.Code, failure.Message))
	}
	return nil
}

func (f *OutputFormatter) writeSummary(s *pipeline.Summary) {
	w := f.Writer
	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Run %s%s: %d file(s) found, %d valid, %d invalid\n",
		s.RunID, mode, s.FilesFound, s.FilesValid, len(s.Invalid))
	f.Diagnostics(s.Invalid)

	for _, o := range s.Outcomes {
		took := formatDuration(o.Duration)
		switch o.Status {
		case pipeline.StatusUploaded:
			fmt.Fprintf(w, "  ✓ %s v%d: %d row(s) inserted in %d chunk(s)", o.File, o.Version, o.Inserted, o.Chunks)
			if o.Existing > 0 {
				fmt.Fprintf(w, ", %d already present", o.Existing)
			}
			fmt.Fprintf(w, " [%s]\n", took)
		case pipeline.StatusSkipped:
			fmt.Fprintf(w, "  - %s v%d: skipped, %d row(s) already present [%s]\n", o.File, o.Version, o.Existing, took)
		case pipeline.StatusDryRun:
			fmt.Fprintf(w, "  ✓ %s v%d: %d entries in %d chunk(s), key %s [%s]\n", o.File, o.Version, o.Entries, o.Chunks, o.Key, took)
		case pipeline.StatusFailed:
			fmt.Fprintf(w, "  ✗ %s v%d: failed at %s: %s [%s]\n", o.File, o.Version, o.Stage, o.Reason, took)
		}
	}

	fmt.Fprintf(w, "Attempted %d, succeeded %d (%d skipped), failed %d; %d row(s) inserted, %d retries in %s\n",
		s.Attempted, s.Succeeded, s.Skipped, s.Failed, s.RowsInserted, s.Retries, formatDuration(s.Elapsed))
	if s.Cancelled {
		fmt.Fprintf(w, "Cancelled: %d artifact(s) not attempted\n", s.NotAttempted)
	}
}

// Validation prints the validate command's result. With strict set, any
// invalid file makes it return ExitFailure.
func (f *OutputFormatter) Validation(result ValidationResult, strict bool) error {
	var exitErr error
	if strict && len(result.Invalid) > 0 {
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d of %d artifact(s) invalid", len(result.Invalid), result.FilesFound))
	}

	if f.isJSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if exitErr != nil {
			first := result.Invalid[0]
			resp.Status = "error"
			resp.Error = &CLIError{Code: string(first.Kind), Message: first.Message}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
		return exitErr
	}

	for _, v := range result.Valid {
		fmt.Fprintf(f.Writer, "  ✓ %s v%d: %d entries, root %s, key %s\n", v.File, v.Version, v.Entries, v.Root, v.Key)
	}
	f.Diagnostics(result.Invalid)
	if len(result.Invalid) == 0 {
		fmt.Fprintf(f.Writer, "✓ All %d artifact(s) valid\n", len(result.Valid))
	} else {
		fmt.Fprintf(f.Writer, "%d of %d artifact(s) valid\n", len(result.Valid), result.FilesFound)
	}
	return exitErr
}

// formatDuration rounds to milliseconds, or microseconds below that.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
