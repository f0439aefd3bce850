// Package field implements modular arithmetic over the BN254 scalar field
// (the field BabyJubJub is defined over) and BabyJubJub twisted-Edwards
// curve arithmetic (spec §4.A). Field elements reuse gnark-crypto's
// optimized Montgomery-form bn254/fr.Element, the same dependency the
// teacher repo uses for its Pedersen-commitment scalars.
package field

import (
	"crypto/rand"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Modulus is the BN254 scalar field prime p.
func Modulus() *big.Int {
	m := fr.Modulus()
	return new(big.Int).Set(m)
}

// Element is a field element modulo Modulus(). The zero value is 0.
type Element struct {
	v fr.Element
}

// Zero returns the additive identity.
func Zero() Element { return Element{} }

// One returns the multiplicative identity.
func One() Element {
	var e Element
	e.v.SetOne()
	return e
}

// FromBigInt reduces n modulo p into an Element.
func FromBigInt(n *big.Int) Element {
	var e Element
	e.v.SetBigInt(n)
	return e
}

// FromUint64 builds an Element from a small unsigned integer.
func FromUint64(n uint64) Element {
	var e Element
	e.v.SetUint64(n)
	return e
}

// FromBytesBE reduces a big-endian byte string modulo p.
func FromBytesBE(b []byte) Element {
	return FromBigInt(new(big.Int).SetBytes(b))
}

// BigInt returns the element's canonical representative in [0, p).
func (e Element) BigInt() *big.Int {
	var out big.Int
	e.v.BigInt(&out)
	return &out
}

// Bytes returns the 32-byte big-endian canonical encoding.
func (e Element) Bytes() [32]byte {
	return e.v.Bytes()
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool { return e.v.IsZero() }

// Equal reports whether two elements represent the same residue.
func (e Element) Equal(o Element) bool { return e.v.Equal(&o.v) }

// Add returns e + o mod p.
func (e Element) Add(o Element) Element {
	var r Element
	r.v.Add(&e.v, &o.v)
	return r
}

// Sub returns e - o mod p.
func (e Element) Sub(o Element) Element {
	var r Element
	r.v.Sub(&e.v, &o.v)
	return r
}

// Mul returns e * o mod p.
func (e Element) Mul(o Element) Element {
	var r Element
	r.v.Mul(&e.v, &o.v)
	return r
}

// Neg returns -e mod p.
func (e Element) Neg() Element {
	var r Element
	r.v.Neg(&e.v)
	return r
}

// Inverse returns e^-1 mod p; the zero element inverts to zero.
func (e Element) Inverse() Element {
	var r Element
	r.v.Inverse(&e.v)
	return r
}

// Square returns e^2 mod p.
func (e Element) Square() Element {
	var r Element
	r.v.Square(&e.v)
	return r
}

// Pow5 is the Poseidon2 S-box: e^5 mod p.
func (e Element) Pow5() Element {
	sq := e.Square()
	quad := sq.Square()
	return quad.Mul(e)
}

// RandomElement draws a uniformly random field element.
func RandomElement() (Element, error) {
	var e Element
	if _, err := e.v.SetRandom(); err != nil {
		return Element{}, err
	}
	return e, nil
}

// RandomScalarBelow draws a uniformly random integer in [1, bound).
func RandomScalarBelow(bound *big.Int) (*big.Int, error) {
	for {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return nil, err
		}
		if n.Sign() != 0 {
			return n, nil
		}
	}
}
