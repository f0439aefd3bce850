// Package keys derives viewing keypairs from a wallet seed and encodes
// viewing addresses, grounded on the HKDF-SHA256 derivation pattern used in
// the pack's lnwallet script utilities (hkdf.New(sha256.New, secret, salt,
// info) read into a fixed-size root).
package keys

import (
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// MinSeedLength is the shortest seed SeedToSecret accepts.
const MinSeedLength = 16

// hkdfBaseInfo is the fixed HKDF info string; a per-derivation nonce, when
// given, is appended after a colon.
const hkdfBaseInfo = "OCash.KeyGen"

// ErrSeedTooShort is returned when the seed is shorter than MinSeedLength.
var ErrSeedTooShort = errors.New("keys: seed must be at least 16 characters")

// SeedToSecret derives a 32-byte HKDF-SHA256 output from seed (with no salt;
// a non-empty nonce is appended to the HKDF info string to distinguish
// multiple keys from one seed), then
// reduces it modulo the BabyJubJub subgroup order to produce a scalar
// suitable as a private key.
func SeedToSecret(seed string, nonce string) (*big.Int, error) {
	if len(seed) < MinSeedLength {
		return nil, ErrSeedTooShort
	}
	info := hkdfBaseInfo
	if nonce != "" {
		info += ":" + nonce
	}
	reader := hkdf.New(sha256.New, []byte(seed), nil, []byte(info))
	out := make([]byte, 32)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	sk := new(big.Int).SetBytes(out)
	sk.Mod(sk, field.Order)
	return sk, nil
}

// Derive builds the full viewing KeyPair for a seed.
func Derive(seed string, nonce string) (*types.KeyPair, error) {
	sk, err := SeedToSecret(seed, nonce)
	if err != nil {
		return nil, err
	}
	pk := field.ScalarMultBase(sk)
	return &types.KeyPair{PKX: pk.X.BigInt(), PKY: pk.Y.BigInt(), SK: sk}, nil
}

// Address returns the 32-byte compressed viewing address for a keypair.
func Address(kp *types.KeyPair) types.Hash {
	pt := field.Point{X: field.FromBigInt(kp.PKX), Y: field.FromBigInt(kp.PKY)}
	return types.Hash(pt.Compress())
}

// AddressFromPoint compresses an arbitrary on-curve point into its viewing
// address encoding.
func AddressFromPoint(pt field.Point) types.Hash {
	return types.Hash(pt.Compress())
}

// ParseAddress decompresses a 32-byte viewing address back into a curve
// point, validating it is on-curve.
func ParseAddress(addr types.Hash) (field.Point, error) {
	return field.Decompress([32]byte(addr))
}
