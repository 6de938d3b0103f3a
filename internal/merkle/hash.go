// Package merkle implements the combination rule that binds airdrop entries
// to a committed root.
//
// Leaves and intermediate nodes are domain-separated by a one-byte prefix so
// that an intermediate node can never be replayed as a leaf:
//
//	node  = SHA256(recipient || amount_le)
//	leaf  = SHA256(0x00 || node)
//	inner = SHA256(0x01 || min(a, b) || max(a, b))
//
// Pairs are ordered byte-wise before hashing, so a proof does not need to say
// which side a sibling sits on. The sequence of siblings is still ordered from
// leaf to root and cannot be re-derived from the set of siblings alone.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the byte length of every node in the tree.
const HashSize = sha256.Size

var (
	leafPrefix         = []byte{0x00}
	intermediatePrefix = []byte{0x01}
)

// Hash is a single tree node.
type Hash [HashSize]byte

// String returns the lowercase hex form without a prefix.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// UnmarshalJSON decodes a hash from an array of exactly HashSize byte
// values. Shorter or longer arrays are rejected rather than padded or cut.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("hash: null is not a hash")
	}
	if len(raw) != HashSize {
		return fmt.Errorf("hash: got %d bytes, want %d", len(raw), HashSize)
	}
	for i, b := range raw {
		if b < 0 || b > 0xff {
			return fmt.Errorf("hash: byte %d out of range: %d", i, b)
		}
		h[i] = byte(b)
	}
	return nil
}

// LeafHash computes the leaf for a (recipient, amount) pair.
func LeafHash(recipient [32]byte, amount uint64) Hash {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], amount)

	node := sha256.New()
	node.Write(recipient[:])
	node.Write(le[:])

	leaf := sha256.New()
	leaf.Write(leafPrefix)
	leaf.Write(node.Sum(nil))

	var out Hash
	copy(out[:], leaf.Sum(nil))
	return out
}

// HashPair combines two nodes into their parent.
// The smaller node (byte-wise) is always hashed first.
func HashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := sha256.New()
	h.Write(intermediatePrefix)
	h.Write(a[:])
	h.Write(b[:])

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Fold walks a proof from leaf to root and returns the root it implies.
func Fold(leaf Hash, proof []Hash) Hash {
	current := leaf
	for _, sibling := range proof {
		current = HashPair(current, sibling)
	}
	return current
}
