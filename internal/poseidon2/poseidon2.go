// Package poseidon2 implements the SDK's domain-separated hashing (commitments,
// nullifiers, Merkle nodes, policy digests, memo keys) on top of
// gnark-crypto's BN254 Poseidon2 sponge, the same hasher the pack's
// parsdao-pars/zk package wires up for its own note-commitment scheme
// (poseidon2.NewMerkleDamgardHasher, written and summed over 32-byte
// big-endian field-element encodings).
package poseidon2

import (
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"

	"github.com/ocash-labs/sdk-core/internal/field"
)

// Domain tags fold a fixed ASCII label into the permutation alongside the
// real inputs, so a hash computed for one purpose can never collide with a
// hash of the same inputs computed for another. Each tag is eight ASCII
// bytes, read big-endian into a field element.
type Domain uint64

const (
	DomainRecord Domain = asciiTag("RECORD\x00\x00")
	// NULLIFIER is 9 ASCII characters and can't fit the 8-byte tag; shortened
	// to NULLIFR, not a typo.
	DomainNullifier Domain = asciiTag("NULLIFR\x00")
	DomainMerkle    Domain = asciiTag("MERKLE\x00\x00")
	DomainPolicy    Domain = asciiTag("POLICY\x00\x00")
	DomainArray     Domain = asciiTag("ARRAY\x00\x00\x00")
	DomainMemo      Domain = asciiTag("MEMO\x00\x00\x00\x00")
	DomainAsset     Domain = asciiTag("ASSET\x00\x00\x00")
	DomainKeyDer    Domain = asciiTag("KEYDER\x00\x00")
)

func asciiTag(s string) Domain {
	if len(s) != 8 {
		panic("poseidon2: domain tag must be exactly 8 bytes")
	}
	var n uint64
	for i := 0; i < 8; i++ {
		n = n<<8 | uint64(s[i])
	}
	return Domain(n)
}

func (d Domain) element() field.Element { return field.FromUint64(uint64(d)) }

// newHasher returns a fresh Merkle-Damgard Poseidon2 hasher over BN254.Fr,
// the construction parsdao-pars's zk package uses for the same purpose. Its
// Sum is the Merkle-Damgard chaining value after the written blocks, not
// the first output limb of one width-3 permutation of the inputs.
func newHasher() hash.Hash {
	return poseidon2.NewMerkleDamgardHasher()
}

// HashDomain computes hash_domain(a, b, domain): the 32-byte encodings of a,
// b and domain are written, in that order, into a fresh Merkle-Damgard
// Poseidon2 hasher and its sum is returned as a field element. No single
// width-3 permutation is run over (a, b, domain).
func HashDomain(a, b field.Element, domain Domain) field.Element {
	h := newHasher()
	ab := a.Bytes()
	bb := b.Bytes()
	db := domain.element().Bytes()
	h.Write(ab[:])
	h.Write(bb[:])
	h.Write(db[:])
	return field.FromBytesBE(h.Sum(nil))
}

// HashSequence folds an ordered slice of field elements under a single
// domain tag:
//
//	len(elems) == 0: not meaningful, panics.
//	len(elems) == 1: hash_domain(0, elems[0], domain) (a single value has
//	  nothing to pair against, so it is paired with zero).
//	len(elems) >= 2: acc = hash_domain(x0, x1, D); for i>=2: acc =
//	  hash_domain(acc, xi, D).
func HashSequence(domain Domain, elems []field.Element) field.Element {
	switch len(elems) {
	case 0:
		panic("poseidon2: HashSequence requires at least one element")
	case 1:
		return HashDomain(field.Zero(), elems[0], domain)
	}
	acc := HashDomain(elems[0], elems[1], domain)
	for i := 2; i < len(elems); i++ {
		acc = HashDomain(acc, elems[i], domain)
	}
	return acc
}

// HashSequenceSeeded folds elems the same way as HashSequence but seeds the
// accumulator with an initial value before the first real element:
//
//	acc = hash_domain(seed, x0, D); for i>=1: acc = hash_domain(acc, xi, D).
func HashSequenceSeeded(domain Domain, seed field.Element, elems []field.Element) field.Element {
	if len(elems) == 0 {
		panic("poseidon2: HashSequenceSeeded requires at least one element")
	}
	acc := HashDomain(seed, elems[0], domain)
	for i := 1; i < len(elems); i++ {
		acc = HashDomain(acc, elems[i], domain)
	}
	return acc
}

// MerkleNode computes the parent of two sibling tree nodes.
func MerkleNode(left, right field.Element) field.Element {
	return HashDomain(left, right, DomainMerkle)
}
