package field

import (
	"errors"
	"math/big"
)

// BabyJubJub is the twisted Edwards curve x^2*a + y^2 = 1 + d*x^2*y^2 over
// the BN254 scalar field, standardized by iden3/circomlib and reused by the
// Hermez/Polygon zkEVM stack (seen in the pack's
// qinhan099-Han-Hermez-Node and ZpokenWeb3-mpc-tss-lib repos, both of which
// import github.com/iden3/go-iden3-crypto/babyjub for this exact curve).
var (
	curveA = bigFromDecimal("168700")
	curveD = bigFromDecimal("168696")

	// Order is the prime order of the BabyJubJub subgroup generated by Base.
	Order = bigFromDecimal("2736030358979909402780800718157159386076813972158567259200215660948447373041")

	baseX = bigFromDecimal("995203441582195749578291179787384436505546430278305826713579947235728471134")
	baseY = bigFromDecimal("5472060717959818805561601436314318772137091100104008585924551046643952123905")
)

func bigFromDecimal(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("field: invalid decimal constant " + s)
	}
	return n
}

var (
	aElem = FromBigInt(curveA)
	dElem = FromBigInt(curveD)
)

// ErrNotOnCurve is returned by point decoding when the encoded point does
// not satisfy the curve equation.
var ErrNotOnCurve = errors.New("field: point is not on the BabyJubJub curve")

// Point is an affine BabyJubJub curve point.
type Point struct {
	X, Y Element
}

// Identity returns the neutral element (0, 1), the spec's "default freezer"
// marker value.
func Identity() Point {
	return Point{X: Zero(), Y: One()}
}

// BasePoint returns the standard generator G.
func BasePoint() Point {
	return Point{X: FromBigInt(baseX), Y: FromBigInt(baseY)}
}

// Equal reports whether p and o are the same affine point.
func (p Point) Equal(o Point) bool { return p.X.Equal(o.X) && p.Y.Equal(o.Y) }

// IsOnCurve reports whether p satisfies a*x^2 + y^2 = 1 + d*x^2*y^2.
func (p Point) IsOnCurve() bool {
	x2 := p.X.Square()
	y2 := p.Y.Square()
	lhs := aElem.Mul(x2).Add(y2)
	rhs := One().Add(dElem.Mul(x2).Mul(y2))
	return lhs.Equal(rhs)
}

// Add computes the unified twisted-Edwards addition law, which is complete
// for BabyJubJub's parameters (handles doubling and the identity without a
// special case).
func (p Point) Add(o Point) Point {
	x1y2 := p.X.Mul(o.Y)
	y1x2 := p.Y.Mul(o.X)
	y1y2 := p.Y.Mul(o.Y)
	x1x2 := p.X.Mul(o.X)
	dxxyy := dElem.Mul(x1x2).Mul(y1y2)

	x3Num := x1y2.Add(y1x2)
	x3Den := One().Add(dxxyy)
	y3Num := y1y2.Sub(aElem.Mul(x1x2))
	y3Den := One().Sub(dxxyy)

	return Point{
		X: x3Num.Mul(x3Den.Inverse()),
		Y: y3Num.Mul(y3Den.Inverse()),
	}
}

// Neg returns -p = (-x, y).
func (p Point) Neg() Point { return Point{X: p.X.Neg(), Y: p.Y} }

// ScalarMult computes s*p using a fixed-iteration double-and-add ladder over
// the bit length of Order. Every iteration performs a doubling and an
// addition regardless of the bit value (the add's result is selected via an
// arithmetic mask rather than a data-dependent branch), so the sequence of
// curve operations does not depend on the bits of sk when sk is an operand.
// Public-input multiplications (e.g. a counterparty's freezer key) may use
// the cheaper MulVarTime instead.
func (p Point) ScalarMult(scalar *big.Int) Point {
	s := new(big.Int).Mod(scalar, Order)
	bits := Order.BitLen()
	acc := Identity()
	for i := bits - 1; i >= 0; i-- {
		acc = acc.Add(acc)
		sum := acc.Add(p)
		bit := s.Bit(i)
		acc = selectPoint(bit, sum, acc)
	}
	return acc
}

// MulVarTime computes s*p with ordinary variable-time double-and-add; only
// safe when neither s nor p is secret.
func (p Point) MulVarTime(scalar *big.Int) Point {
	s := new(big.Int).Mod(scalar, Order)
	acc := Identity()
	base := p
	for i := 0; i < s.BitLen(); i++ {
		if s.Bit(i) == 1 {
			acc = acc.Add(base)
		}
		base = base.Add(base)
	}
	return acc
}

// selectPoint returns ifOne for bit==1 and ifZero for bit==0 without branching on the
// point's coordinate values.
func selectPoint(bit uint, ifOne, ifZero Point) Point {
	mask := FromUint64(uint64(bit))
	notMask := One().Sub(mask)
	return Point{
		X: ifOne.X.Mul(mask).Add(ifZero.X.Mul(notMask)),
		Y: ifOne.Y.Mul(mask).Add(ifZero.Y.Mul(notMask)),
	}
}

// ScalarMultBase computes scalar*G using the same ladder as ScalarMult.
func ScalarMultBase(scalar *big.Int) Point {
	return BasePoint().ScalarMult(scalar)
}

// Compress encodes p as 32 bytes: the big-endian Y coordinate with the sign
// of X packed into the most-significant bit of the first byte (the top bit
// of the big-endian word, always clear in Y itself). The last byte carries
// no sign bit.
func (p Point) Compress() [32]byte {
	out := p.Y.Bytes()
	if isOddBig(p.X.BigInt()) {
		out[0] |= 0x80
	}
	return out
}

func isOddBig(n *big.Int) bool {
	return n.Bit(0) == 1
}

// Decompress reconstructs a point from its 32-byte compressed form,
// recovering X from Y via the curve equation and choosing the root whose
// parity matches the packed sign bit. Returns ErrNotOnCurve if no such root
// exists.
func Decompress(data [32]byte) (Point, error) {
	signBit := data[0]&0x80 != 0
	yBytes := data
	yBytes[0] &= 0x7f
	y := FromBytesBE(yBytes[:])

	// a*x^2 + y^2 = 1 + d*x^2*y^2  =>  x^2 = (1 - y^2) / (a - d*y^2)
	y2 := y.Square()
	num := One().Sub(y2)
	den := aElem.Sub(dElem.Mul(y2))
	if den.IsZero() {
		return Point{}, ErrNotOnCurve
	}
	x2 := num.Mul(den.Inverse())

	x, ok := sqrt(x2)
	if !ok {
		return Point{}, ErrNotOnCurve
	}
	if isOddBig(x.BigInt()) != signBit {
		x = x.Neg()
	}
	p := Point{X: x, Y: y}
	if !p.IsOnCurve() {
		return Point{}, ErrNotOnCurve
	}
	return p, nil
}

// sqrt computes a square root of e modulo p using Tonelli-Shanks via
// big.Int.ModSqrt (p ≡ 1 mod 4 for the BN254 scalar field, so this always
// takes the general path, not the p ≡ 3 mod 4 shortcut).
func sqrt(e Element) (Element, bool) {
	n := e.BigInt()
	root := new(big.Int)
	if root.ModSqrt(n, Modulus()) == nil {
		return Element{}, false
	}
	return FromBigInt(root), true
}
