// Package memo implements the AEAD-wrapped memo format carried alongside
// each shielded commitment: an ephemeral-ECDH key agreement over
// BabyJubJub feeding an XSalsa20-Poly1305 secretbox, grounded on
// golang.org/x/crypto/nacl/secretbox (already pulled in for this SDK's HKDF
// derivation elsewhere in the x/crypto tree).
package memo

import (
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/record"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// ErrNotMine is returned by Decrypt for any failure: wrong recipient,
// corrupted ciphertext, or a tampered memo. The spec deliberately does not
// distinguish these cases to a caller scanning the entry-memo stream.
var ErrNotMine = errors.New("memo: not mine")

// CreateFor draws a fresh ephemeral scalar, performs ECDH against userPK,
// and seals ro's canonical encoding under the derived key.
func CreateFor(userPK field.Point, ro *types.RecordOpening) ([]byte, error) {
	e, err := field.RandomScalarBelow(field.Order)
	if err != nil {
		return nil, err
	}
	ephemeral := field.ScalarMultBase(e)
	shared := userPK.ScalarMult(e)

	plaintext, err := record.Encode(ro)
	if err != nil {
		return nil, err
	}

	return seal(ephemeral, shared, userPK, plaintext)
}

// Decrypt attempts to open data as a memo addressed to the holder of sk
// (whose public key is userPK = sk*G). Returns ErrNotMine on any failure.
func Decrypt(sk *types.KeyPair, data []byte) (*types.RecordOpening, error) {
	if len(data) < 32 {
		return nil, ErrNotMine
	}
	var ephemeralBytes [32]byte
	copy(ephemeralBytes[:], data[:32])
	ciphertext := data[32:]

	ephemeral, err := field.Decompress(ephemeralBytes)
	if err != nil {
		return nil, ErrNotMine
	}

	userPK := field.Point{X: field.FromBigInt(sk.PKX), Y: field.FromBigInt(sk.PKY)}
	shared := ephemeral.ScalarMult(sk.SK)

	plaintext, ok := open(ephemeral, shared, userPK, ciphertext)
	if !ok {
		return nil, ErrNotMine
	}

	ro, err := record.Decode(plaintext)
	if err != nil {
		return nil, ErrNotMine
	}
	return ro, nil
}

// seal builds key = compress(shared) and nonce = keccak256(compress(E) ||
// compress(userPK))[:24], then secretbox-seals plaintext, emitting
// compress(E) ‖ ciphertext.
func seal(ephemeral, shared, userPK field.Point, plaintext []byte) ([]byte, error) {
	var key [32]byte = shared.Compress()
	var nonce [24]byte
	copy(nonce[:], deriveNonce(ephemeral, userPK))

	eBytes := ephemeral.Compress()
	out := make([]byte, 0, 32+len(plaintext)+secretbox.Overhead)
	out = append(out, eBytes[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, &key)
	return out, nil
}

func open(ephemeral, shared, userPK field.Point, ciphertext []byte) ([]byte, bool) {
	var key [32]byte = shared.Compress()
	var nonce [24]byte
	copy(nonce[:], deriveNonce(ephemeral, userPK))

	return secretbox.Open(nil, ciphertext, &nonce, &key)
}

// deriveNonce returns the first 24 bytes of keccak256(compress(E) ||
// compress(userPK)).
func deriveNonce(ephemeral, userPK field.Point) []byte {
	eBytes := ephemeral.Compress()
	pkBytes := userPK.Compress()
	sum := crypto.Keccak256(eBytes[:], pkBytes[:])
	return sum[:24]
}
