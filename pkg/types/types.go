// Package types defines the shared data model for the OCash SDK: field
// elements, hashes, addresses, and the wire/storage records described by the
// wallet, sync, planner, and ops layers.
package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// HashSize is the byte length of a commitment, nullifier, or viewing address.
const HashSize = 32

// AddressSize is the byte length of an EVM-style public address.
const AddressSize = 20

// Hash is a 32-byte field value: a commitment, nullifier, or viewing address.
type Hash [HashSize]byte

// EmptyHash is the zero hash, used as the empty leaf in Merkle math.
var EmptyHash = Hash{}

// Address is a 20-byte EVM address.
type Address [AddressSize]byte

// NativeSentinel is the pseudo-address the protocol uses to mean "the chain's
// native asset" rather than an ERC20 contract.
var NativeSentinel = mustAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

func mustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// HexString returns the lowercase 0x-prefixed encoding of h.
func (h Hash) HexString() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.HexString() }

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Big returns h interpreted as a big-endian unsigned integer.
func (h Hash) Big() *big.Int { return new(big.Int).SetBytes(h[:]) }

// ParseHash decodes a 0x-prefixed 32-byte hex string (either letter case).
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := decodeFixedHex(s, HashSize)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// HashFromBig reduces nothing and simply renders n into a fixed 32-byte hash,
// left-padded; callers are responsible for ensuring n < p.
func HashFromBig(n *big.Int) Hash {
	var h Hash
	b := n.Bytes()
	if len(b) > HashSize {
		b = b[len(b)-HashSize:]
	}
	copy(h[HashSize-len(b):], b)
	return h
}

// HexString returns the lowercase 0x-prefixed encoding of a.
func (a Address) HexString() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.HexString() }

// IsNative reports whether a is the native-asset sentinel address.
func (a Address) IsNative() bool { return a == NativeSentinel }

// ParseAddress decodes a 0x-prefixed 20-byte hex string (either letter case).
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeFixedHex(s, AddressSize)
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

func decodeFixedHex(s string, size int) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("hex string %q missing 0x prefix", s)
	}
	body := s[2:]
	if len(body)%2 != 0 {
		return nil, fmt.Errorf("hex string %q has odd length", s)
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("hex string %q: %w", s, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("hex string %q: want %d bytes, got %d", s, size, len(b))
	}
	return b, nil
}
