package memo

import (
	"math/big"
	"testing"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func keypair(sk int64) *types.KeyPair {
	s := big.NewInt(sk)
	pk := field.ScalarMultBase(s)
	return &types.KeyPair{PKX: pk.X.BigInt(), PKY: pk.Y.BigInt(), SK: s}
}

func sampleRO(kp *types.KeyPair) *types.RecordOpening {
	return &types.RecordOpening{
		AssetID:        big.NewInt(1),
		AssetAmount:    big.NewInt(500),
		UserPKX:        kp.PKX,
		UserPKY:        kp.PKY,
		BlindingFactor: big.NewInt(777),
		IsFrozen:       false,
	}
}

func TestCreateDecryptRoundTrip(t *testing.T) {
	recipient := keypair(42)
	ro := sampleRO(recipient)
	pk := field.Point{X: field.FromBigInt(recipient.PKX), Y: field.FromBigInt(recipient.PKY)}

	data, err := CreateFor(pk, ro)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decrypt(recipient, data)
	if err != nil {
		t.Fatal(err)
	}
	if got.AssetAmount.Cmp(ro.AssetAmount) != 0 || got.BlindingFactor.Cmp(ro.BlindingFactor) != 0 {
		t.Fatalf("decrypted record mismatch: got %+v, want %+v", got, ro)
	}
}

func TestDecryptByWrongRecipientFails(t *testing.T) {
	recipient := keypair(42)
	stranger := keypair(43)
	ro := sampleRO(recipient)
	pk := field.Point{X: field.FromBigInt(recipient.PKX), Y: field.FromBigInt(recipient.PKY)}

	data, err := CreateFor(pk, ro)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decrypt(stranger, data); err != ErrNotMine {
		t.Fatalf("expected ErrNotMine, got %v", err)
	}
}

func TestDecryptRejectsCorruptedCiphertext(t *testing.T) {
	recipient := keypair(42)
	ro := sampleRO(recipient)
	pk := field.Point{X: field.FromBigInt(recipient.PKX), Y: field.FromBigInt(recipient.PKY)}

	data, err := CreateFor(pk, ro)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xFF

	if _, err := Decrypt(recipient, data); err != ErrNotMine {
		t.Fatalf("expected ErrNotMine for tampered ciphertext, got %v", err)
	}
}

func TestDecryptRejectsShortInput(t *testing.T) {
	recipient := keypair(42)
	if _, err := Decrypt(recipient, []byte{1, 2, 3}); err != ErrNotMine {
		t.Fatalf("expected ErrNotMine for short input, got %v", err)
	}
}
