package field

import (
	"math/big"
	"testing"
)

func TestAddSubInverse(t *testing.T) {
	a := FromUint64(7)
	b := FromUint64(19)
	sum := a.Add(b)
	if got := sum.Sub(b); !got.Equal(a) {
		t.Fatalf("(a+b)-b = %v, want %v", got, a)
	}
}

func TestMulInverse(t *testing.T) {
	a := FromUint64(12345)
	inv := a.Inverse()
	if got := a.Mul(inv); !got.Equal(One()) {
		t.Fatalf("a * a^-1 = %v, want 1", got)
	}
}

func TestPow5MatchesRepeatedMul(t *testing.T) {
	a := FromUint64(3)
	want := a.Mul(a).Mul(a).Mul(a).Mul(a)
	if got := a.Pow5(); !got.Equal(want) {
		t.Fatalf("Pow5 = %v, want %v", got, want)
	}
}

func TestFromBigIntReducesModulo(t *testing.T) {
	over := new(big.Int).Add(Modulus(), big.NewInt(5))
	if got := FromBigInt(over); !got.Equal(FromUint64(5)) {
		t.Fatalf("p+5 mod p = %v, want 5", got)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	a := FromUint64(424242)
	b := a.Bytes()
	if got := FromBytesBE(b[:]); !got.Equal(a) {
		t.Fatalf("round trip through Bytes/FromBytesBE mismatch")
	}
}

func TestRandomScalarBelowIsNonZeroAndBounded(t *testing.T) {
	bound := big.NewInt(1000)
	for i := 0; i < 20; i++ {
		n, err := RandomScalarBelow(bound)
		if err != nil {
			t.Fatal(err)
		}
		if n.Sign() == 0 {
			t.Fatal("RandomScalarBelow returned zero")
		}
		if n.Cmp(bound) >= 0 {
			t.Fatalf("RandomScalarBelow returned %v, want < %v", n, bound)
		}
	}
}
