package artifact

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/curve"
)

const (
	// DistributorSeed prefixes the seeds of every distributor address.
	DistributorSeed = "MerkleDistributor"

	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

// ErrNoViableBump is returned when every bump seed yields an on-curve point.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// errOnCurve rejects a candidate address that has a private key.
var errOnCurve = errors.New("derived address lies on the ed25519 curve")

// Identities are the three fixed inputs to every DerivedKey.
type Identities struct {
	Program Pubkey
	Base    Pubkey
	Mint    Pubkey
}

// DerivedKey is the distributor address an artifact is claimed against.
// Its base58 form partitions the destination table.
type DerivedKey struct {
	Address Pubkey
	Bump    uint8
}

// String returns the encoded form used as the store partition key.
func (k DerivedKey) String() string {
	return k.Address.String()
}

// DeriveKey computes the distributor address for an artifact version.
// The same (program, base, mint, version) always yields the same key.
func DeriveKey(ids Identities, version uint64) (DerivedKey, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], version)

	seeds := [][]byte{
		[]byte(DistributorSeed),
		ids.Base[:],
		ids.Mint[:],
		le[:],
	}
	addr, bump, err := FindProgramAddress(seeds, ids.Program)
	if err != nil {
		return DerivedKey{}, err
	}
	return DerivedKey{Address: addr, Bump: bump}, nil
}

// FindProgramAddress searches bump seeds from 255 down to 1 and returns the
// first off-curve address. Bump 0 is never tried.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	return findProgramAddress(seeds, program, CreateProgramAddress)
}

func findProgramAddress(seeds [][]byte, program Pubkey, create func([][]byte, Pubkey) (Pubkey, error)) (Pubkey, uint8, error) {
	for bump := 255; bump >= 1; bump-- {
		withBump := append(append([][]byte{}, seeds...), []byte{byte(bump)})
		addr, err := create(withBump, program)
		if errors.Is(err, errOnCurve) {
			continue
		}
		if err != nil {
			return Pubkey{}, 0, err
		}
		return addr, uint8(bump), nil
	}
	return Pubkey{}, 0, ErrNoViableBump
}

// CreateProgramAddress hashes the seeds under program. It fails if the
// result is a valid ed25519 point.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	if len(seeds) > maxSeeds {
		return Pubkey{}, fmt.Errorf("too many seeds: %d > %d", len(seeds), maxSeeds)
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > maxSeedLength {
			return Pubkey{}, fmt.Errorf("seed %d too long: %d > %d", i, len(seed), maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var addr Pubkey
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr[:]) {
		return Pubkey{}, errOnCurve
	}
	return addr, nil
}

// IsOnCurve reports whether b decompresses to an ed25519 point.
func IsOnCurve(b []byte) bool {
	var compressed curve.CompressedEdwardsY
	if _, err := compressed.SetBytes(b); err != nil {
		return false
	}
	var p curve.EdwardsPoint
	_, err := p.SetCompressedY(&compressed)
	return err == nil
}
