package record

import (
	"math/big"
	"testing"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func sampleOpening(t *testing.T) *types.RecordOpening {
	t.Helper()
	sk := big.NewInt(424242)
	pk := field.ScalarMultBase(sk)
	return &types.RecordOpening{
		AssetID:        big.NewInt(1),
		AssetAmount:    new(big.Int).SetUint64(1_000_000_000_000_000_000),
		UserPKX:        pk.X.BigInt(),
		UserPKY:        pk.Y.BigInt(),
		BlindingFactor: big.NewInt(0xAB),
		IsFrozen:       false,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ro := sampleOpening(t)
	enc, err := Encode(ro)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if dec.AssetID.Cmp(ro.AssetID) != 0 ||
		dec.AssetAmount.Cmp(ro.AssetAmount) != 0 ||
		dec.UserPKX.Cmp(ro.UserPKX) != 0 ||
		dec.UserPKY.Cmp(ro.UserPKY) != 0 ||
		dec.BlindingFactor.Cmp(ro.BlindingFactor) != 0 ||
		dec.IsFrozen != ro.IsFrozen {
		t.Fatalf("round trip mismatch: got %+v, want %+v", dec, ro)
	}
}

func TestDecodeRejectsOffCurvePK(t *testing.T) {
	ro := sampleOpening(t)
	enc, err := Encode(ro)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the compressed pk word (third 32-byte word) so it can no
	// longer decompress to a curve point.
	enc[2*32] ^= 0xFF
	if _, err := Decode(enc); err == nil {
		t.Fatal("expected decode to reject an off-curve compressed pk")
	}
}

func TestCommitDeterministicAndNonzero(t *testing.T) {
	ro := sampleOpening(t)
	c1 := Commit(ro)
	c2 := Commit(ro)
	if c1 != c2 {
		t.Fatal("Commit is not deterministic")
	}
	if c1.IsZero() {
		t.Fatal("Commit returned the zero hash")
	}
}

func TestCommitChangesWithFreezeBit(t *testing.T) {
	ro := sampleOpening(t)
	unfrozen := Commit(ro)
	ro.IsFrozen = true
	frozen := Commit(ro)
	if unfrozen == frozen {
		t.Fatal("freeze bit did not change the commitment")
	}
}

func TestNullDistinguishesFreezerKeys(t *testing.T) {
	sk := big.NewInt(7)
	cm := types.HashFromBig(big.NewInt(123456789))

	defaultNull, err := Null(sk, cm, field.Identity())
	if err != nil {
		t.Fatal(err)
	}

	otherFreezerSK := big.NewInt(99)
	otherFreezer := field.ScalarMultBase(otherFreezerSK)
	otherNull, err := Null(sk, cm, otherFreezer)
	if err != nil {
		t.Fatal(err)
	}

	if defaultNull == otherNull {
		t.Fatal("nullifier must differ between default and keyed freezer")
	}
}

func TestNullDeterministic(t *testing.T) {
	sk := big.NewInt(11)
	cm := types.HashFromBig(big.NewInt(22))
	freezerSK := big.NewInt(33)
	freezer := field.ScalarMultBase(freezerSK)

	a, err := Null(sk, cm, freezer)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Null(sk, cm, freezer)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("Null is not deterministic")
	}
}

func TestNullRejectsOffCurveFreezer(t *testing.T) {
	sk := big.NewInt(11)
	cm := types.HashFromBig(big.NewInt(22))
	bogus := field.Point{X: field.FromUint64(2), Y: field.FromUint64(2)}
	if _, err := Null(sk, cm, bogus); err == nil {
		t.Fatal("expected an error for an off-curve freezer key")
	}
}

func TestPoolIdStableAcrossRuns(t *testing.T) {
	addr, err := types.ParseAddress("0x00000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatal(err)
	}
	viewer := field.ScalarMultBase(big.NewInt(1))
	freezer := field.ScalarMultBase(big.NewInt(2))

	a := PoolId(addr, viewer, freezer)
	b := PoolId(addr, viewer, freezer)
	if a != b {
		t.Fatal("PoolId is not stable across calls")
	}
}

func TestPoolIdDependsOnTokenAddr(t *testing.T) {
	addr1, _ := types.ParseAddress("0x00000000000000000000000000000000000000aa")
	addr2, _ := types.ParseAddress("0x00000000000000000000000000000000000000bb")
	viewer := field.ScalarMultBase(big.NewInt(1))
	freezer := field.ScalarMultBase(big.NewInt(2))

	if PoolId(addr1, viewer, freezer) == PoolId(addr2, viewer, freezer) {
		t.Fatal("PoolId should depend on the token address seed")
	}
}
