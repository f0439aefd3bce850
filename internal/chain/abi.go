// Package chain is the on-chain read/write ABI surface and relayer HTTP
// client (spec §6): contract calldata for the shielded pool and its backing
// ERC20, and submission/polling against the relayer service. Calldata is
// built with github.com/ethereum/go-ethereum's abi.Arguments directly —
// the same selector-then-abi.Arguments.Pack idiom already used in
// internal/record/codec.go and internal/planner/binding.go — rather than
// parsing a full abi.JSON definition, since the surface here is a small,
// fixed set of methods.
package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

func mustType(s string) abi.Type {
	t, err := abi.NewType(s, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

func mustArgs(ts ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(ts))
	for i, t := range ts {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

var (
	selGetArray          = selector("getArray()")
	selDigest            = selector("digest()")
	selTotalElements     = selector("totalElements()")
	selMerkleRoots       = selector("merkleRoots(uint256)")
	selDepositRelayerFee = selector("depositRelayerFee()")
	selAllowance         = selector("allowance(address,address)")
	selApprove           = selector("approve(address,uint256)")
	selDeposit           = selector("deposit(uint256,uint256,uint256,uint256,uint256,bytes)")

	uint256Args          = mustArgs(mustType("uint256"))
	addrAddrArgs         = mustArgs(mustType("address"), mustType("address"))
	addrUint256Args      = mustArgs(mustType("address"), mustType("uint256"))
	digestOutArgs        = mustArgs(mustType("bytes32"), mustType("bytes32"))
	depositInputArgs     = mustArgs(
		mustType("uint256"), // asset_id
		mustType("uint256"), // amount
		mustType("uint256"), // user_pk.x
		mustType("uint256"), // user_pk.y
		mustType("uint256"), // blinding
		mustType("bytes"),   // memo
	)
)

// CallData builds calldata for the shielded pool's read surface.
type CallData struct{}

// GetArray packs a call to getArray().
func (CallData) GetArray() []byte { return selGetArray }

// Digest packs a call to digest(); the contract's own return signature is
// "(_, array_hash)" per spec §6, decoded by DecodeDigest.
func (CallData) Digest() []byte { return selDigest }

// DecodeDigest unpacks digest()'s two bytes32 return words, returning only
// the second (array_hash), which is the one the plan needs.
func DecodeDigest(out []byte) (*big.Int, error) {
	vals, err := digestOutArgs.Unpack(out)
	if err != nil {
		return nil, err
	}
	arrayHash := vals[1].([32]byte)
	return new(big.Int).SetBytes(arrayHash[:]), nil
}

// TotalElements packs a call to totalElements().
func (CallData) TotalElements() []byte { return selTotalElements }

// MerkleRoots packs a call to merkleRoots(uint256 index).
func (CallData) MerkleRoots(index *big.Int) ([]byte, error) {
	packed, err := uint256Args.Pack(index)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selMerkleRoots...), packed...), nil
}

// DepositRelayerFee packs a call to depositRelayerFee().
func (CallData) DepositRelayerFee() []byte { return selDepositRelayerFee }

// Allowance packs an ERC20 allowance(owner, spender) call.
func (CallData) Allowance(owner, spender types.Address) ([]byte, error) {
	packed, err := addrAddrArgs.Pack(common.Address(owner), common.Address(spender))
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selAllowance...), packed...), nil
}

// Approve packs an ERC20 approve(spender, amount) call.
func (CallData) Approve(spender types.Address, amount *big.Int) ([]byte, error) {
	packed, err := addrUint256Args.Pack(common.Address(spender), amount)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selApprove...), packed...), nil
}

// DepositInput is the shielded pool's deposit(...) argument tuple.
type DepositInput struct {
	AssetID  *big.Int
	Amount   *big.Int
	UserPKX  *big.Int
	UserPKY  *big.Int
	Blinding *big.Int
	Memo     []byte
}

// Deposit packs a call to deposit(asset_id, amount, user_pk.x, user_pk.y,
// blinding, memo). The caller attaches pay_amount/fee as the transaction's
// value separately (native vs ERC20 per spec §4.K step 5).
func (CallData) Deposit(in DepositInput) ([]byte, error) {
	packed, err := depositInputArgs.Pack(in.AssetID, in.Amount, in.UserPKX, in.UserPKY, in.Blinding, in.Memo)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, selDeposit...), packed...), nil
}

// DecodeUint256 unpacks a single uint256 return value (totalElements,
// merkleRoots, depositRelayerFee, allowance all share this shape).
func DecodeUint256(out []byte) (*big.Int, error) {
	vals, err := uint256Args.Unpack(out)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}
