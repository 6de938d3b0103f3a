package merkle

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []Leaf {
	leaves := make([]Leaf, n)
	for i := range leaves {
		leaves[i] = Leaf{
			Recipient: sha256.Sum256([]byte(fmt.Sprintf("recipient-%d", i))),
			Amount:    uint64(1000 + i),
		}
	}
	hashes := make([]Hash, n)
	for i, l := range leaves {
		hashes[i] = LeafHash(l.Recipient, l.Amount)
	}
	tree := Build(hashes)
	for i := range leaves {
		leaves[i].Proof = tree.Proof(i)
	}
	return leaves
}

func rootOf(leaves []Leaf) Hash {
	hashes := make([]Hash, len(leaves))
	for i, l := range leaves {
		hashes[i] = LeafHash(l.Recipient, l.Amount)
	}
	return Build(hashes).Root()
}

func TestHashPair_OrderIndependent(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	assert.Equal(t, HashPair(a, b), HashPair(b, a))
}

func TestLeafHash_DomainSeparated(t *testing.T) {
	var recipient [32]byte
	leaf := LeafHash(recipient, 0)
	// A leaf must never coincide with an intermediate node over the same bytes.
	assert.NotEqual(t, leaf, HashPair(Hash(recipient), Hash(recipient)))
	assert.NotEqual(t, LeafHash(recipient, 1), leaf)
}

func TestVerify_WellFormed(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			leaves := testLeaves(n)
			root := rootOf(leaves)
			require.NoError(t, Verify(root, leaves))

			got, err := Recompute(leaves)
			require.NoError(t, err)
			assert.Equal(t, root, got)
		})
	}
}

func TestVerify_SingleLeafHasEmptyProof(t *testing.T) {
	leaves := testLeaves(1)
	require.NotNil(t, leaves[0].Proof)
	assert.Empty(t, leaves[0].Proof)
	assert.Equal(t, LeafHash(leaves[0].Recipient, leaves[0].Amount), rootOf(leaves))
}

func TestVerify_EveryCorruptedSiblingFails(t *testing.T) {
	leaves := testLeaves(7)
	root := rootOf(leaves)

	for i := range leaves {
		for j := range leaves[i].Proof {
			corrupted := cloneLeaves(leaves)
			corrupted[i].Proof[j][0] ^= 0x01

			err := Verify(root, corrupted)
			require.Error(t, err, "leaf %d sibling %d", i, j)
			assert.True(t, IsProofError(err, FailRootMismatch))

			var pe *ProofError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, i, pe.Index)
		}
	}
}

func TestVerify_SiblingOrderMatters(t *testing.T) {
	leaves := testLeaves(8)
	root := rootOf(leaves)

	swapped := cloneLeaves(leaves)
	p := swapped[3].Proof
	require.GreaterOrEqual(t, len(p), 2)
	p[0], p[1] = p[1], p[0]

	err := Verify(root, swapped)
	assert.True(t, IsProofError(err, FailRootMismatch))
}

func TestVerify_AmountTampered(t *testing.T) {
	leaves := testLeaves(4)
	root := rootOf(leaves)
	leaves[2].Amount++

	err := Verify(root, leaves)
	var pe *ProofError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, FailRootMismatch, pe.Kind)
	assert.Equal(t, 2, pe.Index)
}

func TestVerify_MissingProof(t *testing.T) {
	leaves := testLeaves(3)
	root := rootOf(leaves)
	leaves[1].Proof = nil

	assert.True(t, IsProofError(Verify(root, leaves), FailMissingProof))
	_, err := Recompute(leaves)
	assert.True(t, IsProofError(err, FailMissingProof))
}

func TestVerify_Empty(t *testing.T) {
	assert.True(t, IsProofError(Verify(Hash{}, nil), FailEmpty))
	_, err := Recompute(nil)
	assert.True(t, IsProofError(err, FailEmpty))
}

func TestRecompute_Divergent(t *testing.T) {
	leaves := testLeaves(4)
	leaves[3].Proof[0][5] ^= 0xff

	_, err := Recompute(leaves)
	var pe *ProofError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, FailDivergent, pe.Kind)
	assert.Equal(t, 3, pe.Index)
}

func TestBuild_ProofOutOfRange(t *testing.T) {
	tree := Build(nil)
	assert.Equal(t, Hash{}, tree.Root())
	assert.Nil(t, tree.Proof(0))
	assert.Nil(t, Build([]Hash{{1}}).Proof(1))
}

func cloneLeaves(in []Leaf) []Leaf {
	out := make([]Leaf, len(in))
	for i, l := range in {
		out[i] = l
		out[i].Proof = make([]Hash, len(l.Proof))
		copy(out[i].Proof, l.Proof)
	}
	return out
}

func byteArray(n int, v int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestHash_JSONRoundTrip(t *testing.T) {
	h := LeafHash(sha256.Sum256([]byte("recipient")), 42)
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "["))

	var got Hash
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, h, got)
}

func TestHash_UnmarshalRejectsWrongShape(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"too long", byteArray(HashSize+1, 7), "got 33 bytes"},
		{"much too long", byteArray(64, 7), "got 64 bytes"},
		{"too short", byteArray(HashSize-1, 7), "got 31 bytes"},
		{"empty", "[]", "got 0 bytes"},
		{"null", "null", "null is not a hash"},
		{"byte too large", byteArray(HashSize, 256), "out of range: 256"},
		{"negative byte", byteArray(HashSize, -1), "out of range: -1"},
		{"not an array", `"abcd"`, "hash:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Hash
			err := json.Unmarshal([]byte(tt.doc), &h)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestHash_UnmarshalInsideSlice(t *testing.T) {
	var proof []Hash
	err := json.Unmarshal([]byte("["+byteArray(HashSize, 1)+","+byteArray(HashSize+2, 1)+"]"), &proof)
	assert.ErrorContains(t, err, "got 34 bytes")
}
