package chain

import (
	"math/big"
	"testing"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

func TestCallDataSelectorsAreFourBytes(t *testing.T) {
	var d CallData
	if len(d.GetArray()) != 4 {
		t.Fatalf("getArray() selector length = %d, want 4", len(d.GetArray()))
	}
	if len(d.Digest()) != 4 {
		t.Fatalf("digest() selector length = %d, want 4", len(d.Digest()))
	}
	if len(d.TotalElements()) != 4 {
		t.Fatalf("totalElements() selector length = %d, want 4", len(d.TotalElements()))
	}
}

func TestMerkleRootsEncodesIndex(t *testing.T) {
	var d CallData
	calldata, err := d.MerkleRoots(big.NewInt(42))
	if err != nil {
		t.Fatal(err)
	}
	if len(calldata) != 4+32 {
		t.Fatalf("calldata length = %d, want 36", len(calldata))
	}
	got := new(big.Int).SetBytes(calldata[4:])
	if got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("encoded index = %s, want 42", got)
	}
}

func TestAllowanceEncodesBothAddresses(t *testing.T) {
	var d CallData
	owner, _ := types.ParseAddress("0x00000000000000000000000000000000000000aa")
	spender, _ := types.ParseAddress("0x00000000000000000000000000000000000000bb")

	calldata, err := d.Allowance(owner, spender)
	if err != nil {
		t.Fatal(err)
	}
	if len(calldata) != 4+32+32 {
		t.Fatalf("calldata length = %d, want 68", len(calldata))
	}
}

func TestArrayHashIndexZeroWhenNoElements(t *testing.T) {
	idx := ArrayHashIndex(big.NewInt(0))
	if idx.Sign() != 0 {
		t.Fatalf("index = %s, want 0", idx)
	}
}

func TestArrayHashIndexWrapsAt2048(t *testing.T) {
	idx := ArrayHashIndex(big.NewInt(2049)) // (2049-1) mod 2048 == 0
	if idx.Sign() != 0 {
		t.Fatalf("index = %s, want 0", idx)
	}
	idx = ArrayHashIndex(big.NewInt(5)) // (5-1) mod 2048 == 4
	if idx.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("index = %s, want 4", idx)
	}
}

func TestDecodeDigestReturnsSecondWord(t *testing.T) {
	var first, second [32]byte
	first[31] = 1
	second[31] = 2
	packed, err := digestOutArgs.Pack(first, second)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeDigest(packed)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("array_hash = %s, want 2", got)
	}
}

func TestDecodeUint256(t *testing.T) {
	packed, err := uint256Args.Pack(big.NewInt(123456))
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeUint256(packed)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("decoded = %s, want 123456", got)
	}
}
