package merkle

import (
	"errors"
	"fmt"
)

// Leaf is the input to root recomputation: one entry and its proof.
// A nil Proof means the proof is absent; an empty non-nil Proof is valid
// for a single-leaf tree.
type Leaf struct {
	Recipient [32]byte
	Amount    uint64
	Proof     []Hash
}

// FailureKind categorizes recomputation failures.
type FailureKind string

const (
	// FailEmpty means there were no leaves to recompute from.
	FailEmpty FailureKind = "EMPTY"

	// FailMissingProof means a leaf had no proof at all.
	FailMissingProof FailureKind = "MISSING_PROOF"

	// FailRootMismatch means a leaf's proof folds to a different root
	// than the expected one.
	FailRootMismatch FailureKind = "ROOT_MISMATCH"

	// FailDivergent means two leaves fold to different roots.
	FailDivergent FailureKind = "DIVERGENT"
)

// ProofError reports the first leaf that failed recomputation.
type ProofError struct {
	Kind  FailureKind
	Index int
	Got   Hash
	Want  Hash
}

func (e *ProofError) Error() string {
	switch e.Kind {
	case FailEmpty:
		return "no leaves"
	case FailMissingProof:
		return fmt.Sprintf("leaf %d has no proof", e.Index)
	default:
		return fmt.Sprintf("%s at leaf %d: got %s, want %s", e.Kind, e.Index, e.Got, e.Want)
	}
}

// IsProofError reports whether err is a ProofError of the given kind.
func IsProofError(err error, kind FailureKind) bool {
	var pe *ProofError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Verify checks that every leaf folds to root.
// Returns a *ProofError naming the first leaf that does not.
func Verify(root Hash, leaves []Leaf) error {
	if len(leaves) == 0 {
		return &ProofError{Kind: FailEmpty}
	}
	for i, leaf := range leaves {
		if leaf.Proof == nil {
			return &ProofError{Kind: FailMissingProof, Index: i}
		}
		got := Fold(LeafHash(leaf.Recipient, leaf.Amount), leaf.Proof)
		if got != root {
			return &ProofError{Kind: FailRootMismatch, Index: i, Got: got, Want: root}
		}
	}
	return nil
}

// Recompute derives the root implied by the whole leaf sequence without
// reference to a declared root. Every leaf must fold to the same value;
// the first leaf that disagrees with leaf 0 is reported as FailDivergent.
func Recompute(leaves []Leaf) (Hash, error) {
	if len(leaves) == 0 {
		return Hash{}, &ProofError{Kind: FailEmpty}
	}
	var root Hash
	for i, leaf := range leaves {
		if leaf.Proof == nil {
			return Hash{}, &ProofError{Kind: FailMissingProof, Index: i}
		}
		got := Fold(LeafHash(leaf.Recipient, leaf.Amount), leaf.Proof)
		if i == 0 {
			root = got
			continue
		}
		if got != root {
			return Hash{}, &ProofError{Kind: FailDivergent, Index: i, Got: got, Want: root}
		}
	}
	return root, nil
}
