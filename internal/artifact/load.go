package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/dropsync/internal/merkle"
)

// wireArtifact mirrors the file layout. Required fields are pointers so
// that an absent key is not mistaken for a zero value.
type wireArtifact struct {
	Root          *merkle.Hash `json:"merkle_root"`
	Version       *uint64      `json:"airdrop_version"`
	MaxNumNodes   *uint64      `json:"max_num_nodes"`
	MaxTotalClaim uint64       `json:"max_total_claim"`
	Entries       *[]wireEntry `json:"tree_nodes"`
}

type wireEntry struct {
	Claimant *Pubkey       `json:"claimant"`
	Amount   *uint64       `json:"amount"`
	Proof    []merkle.Hash `json:"proof"`
}

// Load reads and parses one artifact file. It performs no validation
// beyond what decoding implies.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return Parse(data)
}

// Parse decodes an artifact from its JSON encoding. Every field except
// max_total_claim and an entry's proof must be present and non-null.
func Parse(data []byte) (*Artifact, error) {
	var w wireArtifact
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode artifact: trailing data after document")
	}

	switch {
	case w.Root == nil:
		return nil, missingField("merkle_root")
	case w.Version == nil:
		return nil, missingField("airdrop_version")
	case w.MaxNumNodes == nil:
		return nil, missingField("max_num_nodes")
	case w.Entries == nil:
		return nil, missingField("tree_nodes")
	}

	a := &Artifact{
		Root:          *w.Root,
		Version:       *w.Version,
		MaxNumNodes:   *w.MaxNumNodes,
		MaxTotalClaim: w.MaxTotalClaim,
		Entries:       make([]Entry, len(*w.Entries)),
	}
	for i, e := range *w.Entries {
		if e.Claimant == nil {
			return nil, fmt.Errorf("decode artifact: tree_nodes[%d]: missing field claimant", i)
		}
		if e.Amount == nil {
			return nil, fmt.Errorf("decode artifact: tree_nodes[%d]: missing field amount", i)
		}
		a.Entries[i] = Entry{Claimant: *e.Claimant, Amount: *e.Amount, Proof: e.Proof}
	}
	return a, nil
}

func missingField(name string) error {
	return fmt.Errorf("decode artifact: missing field %s", name)
}

// Write encodes an artifact to path. Used to produce fixtures and to
// re-emit artifacts; the format round-trips through Load.
func Write(path string, a *Artifact) error {
	out := *a
	if out.Entries == nil {
		out.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
