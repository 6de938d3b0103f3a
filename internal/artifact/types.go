package artifact

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/roach88/dropsync/internal/merkle"
)

// PubkeySize is the byte length of a recipient or program identity.
const PubkeySize = 32

// Pubkey is a 32-byte identity. Its text form is base58.
type Pubkey [PubkeySize]byte

// ParsePubkey decodes a base58 identity and checks its length.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid base58 pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeySize {
		return pk, fmt.Errorf("invalid pubkey %q: decoded to %d bytes, want %d", s, len(raw), PubkeySize)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustParsePubkey is like ParsePubkey but panics on error.
// Use only in tests or with constant inputs.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// Artifact is one versioned airdrop snapshot as it appears on disk.
// It is immutable once loaded.
type Artifact struct {
	Root          merkle.Hash `json:"merkle_root"`
	Version       uint64      `json:"airdrop_version"`
	MaxNumNodes   uint64      `json:"max_num_nodes"`
	MaxTotalClaim uint64      `json:"max_total_claim,omitempty"`
	Entries       []Entry     `json:"tree_nodes"`
}

// Entry is one recipient's claim.
//
// Proof is nil when the file carries no proof for the entry (null or
// missing key). An empty, non-nil Proof is a present proof of length zero,
// which is what a single-entry tree has.
type Entry struct {
	Claimant Pubkey        `json:"claimant"`
	Amount   uint64        `json:"amount"`
	Proof    []merkle.Hash `json:"proof"`
}

// Leaves converts the entries to the input of root recomputation.
func (a *Artifact) Leaves() []merkle.Leaf {
	leaves := make([]merkle.Leaf, len(a.Entries))
	for i, e := range a.Entries {
		leaves[i] = merkle.Leaf{
			Recipient: e.Claimant,
			Amount:    e.Amount,
			Proof:     e.Proof,
		}
	}
	return leaves
}

// TotalClaim sums every entry amount.
// The second result is false if the sum overflows uint64.
func (a *Artifact) TotalClaim() (uint64, bool) {
	var total uint64
	for _, e := range a.Entries {
		next := total + e.Amount
		if next < total {
			return 0, false
		}
		total = next
	}
	return total, true
}

// Validated is an Artifact whose invariants all hold, together with its
// source location and derived store key. Only Validate produces one.
type Validated struct {
	Artifact *Artifact
	Path     string
	Key      DerivedKey
}

// Name returns the file name of the artifact's source.
func (v *Validated) Name() string {
	return baseName(v.Path)
}
