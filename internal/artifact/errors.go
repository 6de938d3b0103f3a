package artifact

import (
	"errors"
	"fmt"
)

// Kind categorizes why a single artifact failed validation.
type Kind string

const (
	// KindMalformed means the file could not be read or parsed.
	KindMalformed Kind = "MALFORMED_ARTIFACT"

	// KindEmpty means the artifact has no entries.
	KindEmpty Kind = "EMPTY_ARTIFACT"

	// KindCountMismatch means max_num_nodes disagrees with the entry count.
	KindCountMismatch Kind = "COUNT_MISMATCH"

	// KindMissingProof means an entry carries no proof.
	KindMissingProof Kind = "MISSING_PROOF"

	// KindRootMismatch means some entry's proof does not fold to the root.
	KindRootMismatch Kind = "ROOT_MISMATCH"

	// KindTotalMismatch means the entry amounts exceed max_total_claim.
	KindTotalMismatch Kind = "TOTAL_MISMATCH"

	// KindKeyDerivation means no store key could be derived.
	KindKeyDerivation Kind = "KEY_DERIVATION"
)

// ValidationError is a typed, per-artifact validation failure.
// It is fatal to the artifact and never to the run.
type ValidationError struct {
	Kind    Kind
	Path    string
	Index   int // entry index, -1 when not entry-specific
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (entry %d)", msg, e.Index)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(kind Kind, path string, index int, msg string, err error) *ValidationError {
	return &ValidationError{Kind: kind, Path: path, Index: index, Message: msg, Err: err}
}

// IsKind reports whether err is a ValidationError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind == kind
	}
	return false
}

// Scan error codes. Every one of them is fatal to the run: there is nothing
// to process.
const (
	ErrCodeNotADirectory    = "NOT_A_DIRECTORY"
	ErrCodeNoCandidateFiles = "NO_CANDIDATE_FILES"
	ErrCodeNoValidArtifacts = "NO_VALID_ARTIFACTS"
	ErrCodeScanFailed       = "SCAN_FAILED"
)

// ScanError is a configuration-class failure of the directory scan.
type ScanError struct {
	Code    string
	Dir     string
	Message string
	Err     error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// IsScanError reports whether err is a ScanError with the given code.
func IsScanError(err error, code string) bool {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
