package testutil

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/merkle"
)

// Identities returns fixed program, base, and mint identities so that
// derived keys are stable across test runs.
func Identities() artifact.Identities {
	return artifact.Identities{
		Program: artifact.Pubkey(sha256.Sum256([]byte("test-program"))),
		Base:    artifact.Pubkey(sha256.Sum256([]byte("test-base"))),
		Mint:    artifact.Pubkey(sha256.Sum256([]byte("test-mint"))),
	}
}

// Claimant returns a deterministic recipient for (version, index).
func Claimant(version uint64, index int) artifact.Pubkey {
	return artifact.Pubkey(sha256.Sum256([]byte(fmt.Sprintf("claimant/%d/%d", version, index))))
}

// BuildArtifact returns a well-formed artifact with n entries whose
// amounts are 1000, 2000, ... in entry order.
func BuildArtifact(version uint64, n int) *artifact.Artifact {
	a := &artifact.Artifact{Version: version, MaxNumNodes: uint64(n)}
	hashes := make([]merkle.Hash, n)
	for i := 0; i < n; i++ {
		e := artifact.Entry{
			Claimant: Claimant(version, i),
			Amount:   uint64(1000 * (i + 1)),
		}
		a.Entries = append(a.Entries, e)
		hashes[i] = merkle.LeafHash(e.Claimant, e.Amount)
	}
	if n == 0 {
		return a
	}
	tree := merkle.Build(hashes)
	a.Root = tree.Root()
	for i := range a.Entries {
		a.Entries[i].Proof = tree.Proof(i)
	}
	return a
}

// TamperProof flips one bit of the first sibling of entry i.
// The artifact must have at least two entries.
func TamperProof(a *artifact.Artifact, i int) {
	a.Entries[i].Proof[0][0] ^= 0x01
}

// WriteArtifact writes a into dir/name and returns the full path.
func WriteArtifact(t testing.TB, dir, name string, a *artifact.Artifact) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := artifact.Write(path, a); err != nil {
		t.Fatalf("WriteArtifact(%s) failed: %v", name, err)
	}
	return path
}
