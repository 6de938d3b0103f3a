package store

import (
	"encoding/hex"
	"strconv"

	"github.com/roach88/dropsync/internal/artifact"
	"github.com/roach88/dropsync/internal/merkle"
)

// PreparedRecord is one entry in its wire form, ready for bulk insert.
// The partition key is shared by the whole chunk and bound separately.
type PreparedRecord struct {
	Recipient string   `json:"recipient"`
	Amount    string   `json:"amount"`
	Proof     []string `json:"proof"`
}

// EncodeAmount renders an amount as 0x-prefixed lowercase hex without
// leading zeros ("0x0" for zero).
func EncodeAmount(amount uint64) string {
	return "0x" + strconv.FormatUint(amount, 16)
}

// EncodeHash renders a node as 0x-prefixed lowercase hex.
func EncodeHash(h merkle.Hash) string {
	return "0x" + hex.EncodeToString(h[:])
}

// PrepareRecord encodes one entry. Proof order is preserved: reordering
// siblings keeps the same bytes but breaks the proof.
func PrepareRecord(e artifact.Entry) PreparedRecord {
	proof := make([]string, len(e.Proof))
	for i, h := range e.Proof {
		proof[i] = EncodeHash(h)
	}
	return PreparedRecord{
		Recipient: e.Claimant.String(),
		Amount:    EncodeAmount(e.Amount),
		Proof:     proof,
	}
}

// PrepareRecords encodes every entry in order.
func PrepareRecords(entries []artifact.Entry) []PreparedRecord {
	out := make([]PreparedRecord, len(entries))
	for i, e := range entries {
		out[i] = PrepareRecord(e)
	}
	return out
}
