// Package record implements the canonical on-wire encoding of a record
// opening and the commitment/nullifier/pool-id derivations built on top of
// it (spec components C and D). Canonical bytes use the same ABI-style
// word packing go-ethereum's accounts/abi package produces for a contract
// call, grounded on the pack's parsdao-pars/warp ExtendedABI wrapper around
// abi.Arguments.Pack/Unpack.
package record

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// ErrOffCurve is returned by Decode when the encoded compressed public key
// does not lie on BabyJubJub.
var ErrOffCurve = errors.New("record: compressed user_pk is not on-curve")

var codecArgs = mustArguments(
	mustType("uint256"), // asset_id
	mustType("uint256"), // asset_amount
	mustType("uint256"), // compressed_user_pk
	mustType("uint256"), // blinding_factor
	mustType("bool"),    // is_frozen
)

func mustType(s string) abi.Type {
	t, err := abi.NewType(s, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func mustArguments(types ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// Encode packs ro into the canonical ABI-style byte layout:
// (asset_id:u256, asset_amount:u256, compressed_user_pk:u256,
// blinding_factor:u256, is_frozen:u8-as-bool).
func Encode(ro *types.RecordOpening) ([]byte, error) {
	pk := field.Point{X: field.FromBigInt(ro.UserPKX), Y: field.FromBigInt(ro.UserPKY)}
	compressed := pk.Compress()
	return codecArgs.Pack(
		ro.AssetID,
		ro.AssetAmount,
		new(big.Int).SetBytes(compressed[:]),
		ro.BlindingFactor,
		ro.IsFrozen,
	)
}

// Decode unpacks canonical bytes into a RecordOpening, rejecting a
// compressed user_pk that is not a valid BabyJubJub point.
func Decode(data []byte) (*types.RecordOpening, error) {
	vals, err := codecArgs.Unpack(data)
	if err != nil {
		return nil, err
	}
	if len(vals) != 5 {
		return nil, errors.New("record: unexpected decoded field count")
	}
	assetID, _ := vals[0].(*big.Int)
	amount, _ := vals[1].(*big.Int)
	pkWord, _ := vals[2].(*big.Int)
	blinding, _ := vals[3].(*big.Int)
	isFrozen, _ := vals[4].(bool)

	var pkBytes [32]byte
	pkWord.FillBytes(pkBytes[:])
	pt, err := field.Decompress(pkBytes)
	if err != nil {
		return nil, ErrOffCurve
	}

	return &types.RecordOpening{
		AssetID:        assetID,
		AssetAmount:    amount,
		UserPKX:        pt.X.BigInt(),
		UserPKY:        pt.Y.BigInt(),
		BlindingFactor: blinding,
		IsFrozen:       isFrozen,
	}, nil
}
