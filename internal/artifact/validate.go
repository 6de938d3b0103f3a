package artifact

import (
	"errors"
	"fmt"

	"github.com/roach88/dropsync/internal/merkle"
)

// Validate loads the artifact at path and checks, in order, failing on the
// first violation:
//
//  1. the file parses                      (KindMalformed)
//  2. there is at least one entry          (KindEmpty)
//  3. max_num_nodes equals the entry count (KindCountMismatch)
//  4. every entry carries a proof          (KindMissingProof)
//  5. every proof folds to the root        (KindRootMismatch)
//  6. amounts fit within max_total_claim   (KindTotalMismatch)
//
// Validate has no side effects and is safe to call repeatedly.
func Validate(path string, ids Identities) (*Validated, error) {
	a, err := Load(path)
	if err != nil {
		return nil, invalid(KindMalformed, path, -1, "failed to parse artifact", err)
	}
	return Check(a, path, ids)
}

// Check runs checks 2-6 on an already parsed artifact and derives its key.
func Check(a *Artifact, path string, ids Identities) (*Validated, error) {
	if len(a.Entries) == 0 {
		return nil, invalid(KindEmpty, path, -1, "artifact has no entries", nil)
	}

	if a.MaxNumNodes != uint64(len(a.Entries)) {
		return nil, invalid(KindCountMismatch, path, -1,
			fmt.Sprintf("max_num_nodes (%d) does not match entry count (%d)", a.MaxNumNodes, len(a.Entries)), nil)
	}

	for i, e := range a.Entries {
		if e.Proof == nil {
			return nil, invalid(KindMissingProof, path, i, "entry is missing its proof", nil)
		}
	}

	if err := merkle.Verify(a.Root, a.Leaves()); err != nil {
		index := -1
		var pe *merkle.ProofError
		if errors.As(err, &pe) {
			index = pe.Index
		}
		return nil, invalid(KindRootMismatch, path, index, "merkle root verification failed", err)
	}

	if a.MaxTotalClaim != 0 {
		total, ok := a.TotalClaim()
		if !ok {
			return nil, invalid(KindTotalMismatch, path, -1, "sum of amounts overflows uint64", nil)
		}
		if total > a.MaxTotalClaim {
			return nil, invalid(KindTotalMismatch, path, -1,
				fmt.Sprintf("sum of amounts (%d) exceeds max_total_claim (%d)", total, a.MaxTotalClaim), nil)
		}
	}

	key, err := DeriveKey(ids, a.Version)
	if err != nil {
		return nil, invalid(KindKeyDerivation, path, -1, "failed to derive distributor key", err)
	}

	return &Validated{Artifact: a, Path: path, Key: key}, nil
}
