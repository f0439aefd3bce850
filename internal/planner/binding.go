package planner

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func mustType(s string) abi.Type {
	t, err := abi.NewType(s, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func mustArgs(types ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

var (
	memoArrayArgs  = mustArgs(mustType("bytes[3]"))
	transferArgs   = mustArgs(mustType("address"), mustType("bytes"))
	withdrawArgs   = mustArgs(mustType("address"), mustType("uint128"), mustType("address"), mustType("uint128"), mustType("uint128"), mustType("bytes"))
)

// TransferBinding computes the proof-binding scalar for a transfer:
//
//	keccak256(abi(address relayer, bytes abi(bytes[3] memos))) mod BJJ_SCALAR_FIELD
func TransferBinding(relayer types.Address, memos [3][]byte) (*big.Int, error) {
	arr := [3][]byte{memos[0], memos[1], memos[2]}
	inner, err := memoArrayArgs.Pack(arr)
	if err != nil {
		return nil, err
	}
	outer, err := transferArgs.Pack(common.Address(relayer), inner)
	if err != nil {
		return nil, err
	}
	sum := crypto.Keccak256(outer)
	return new(big.Int).Mod(new(big.Int).SetBytes(sum), field.Order), nil
}

// WithdrawBinding computes the proof-binding scalar for a withdraw:
//
//	keccak256(abi(address recipient, uint128 amount, address relayer,
//	             uint128 relayer_fee, uint128 gas_drop_value, bytes memo)) mod BJJ_SCALAR_FIELD
func WithdrawBinding(recipient types.Address, amount *big.Int, relayer types.Address, relayerFee, gasDropValue *big.Int, memo []byte) (*big.Int, error) {
	packed, err := withdrawArgs.Pack(
		common.Address(recipient), amount, common.Address(relayer), relayerFee, gasDropValue, memo,
	)
	if err != nil {
		return nil, err
	}
	sum := crypto.Keccak256(packed)
	return new(big.Int).Mod(new(big.Int).SetBytes(sum), field.Order), nil
}
