package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// MerkleRootWindowBack and MerkleRootWindowForward are the default numbers
// of indices scanned backward and forward
// from the engine's current index when locating a remote merkle root on
// chain (spec §4.K step 4).
const (
	MerkleRootWindowBack    = 2
	MerkleRootWindowForward = 8
)

// ArrayHashModulus bounds array_hash_index (spec §4.K step 2).
const ArrayHashModulus = 2048

// Reader performs the shielded pool's on-chain reads (spec §6) against a
// single EVM JSON-RPC endpoint, using github.com/ethereum/go-ethereum's
// ethclient the way the pack's wyf-ACCEPT-eth2030 repo reads contract state.
type Reader struct {
	Client   *ethclient.Client
	Contract types.Address
	data     CallData
}

// NewReader dials rpcURL and returns a Reader bound to contract.
func NewReader(ctx context.Context, rpcURL string, contract types.Address) (*Reader, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "chain.NewReader", err, "rpc_url", rpcURL)
	}
	return &Reader{Client: c, Contract: contract}, nil
}

// Close releases the underlying RPC connection.
func (r *Reader) Close() {
	if r.Client != nil {
		r.Client.Close()
	}
}

func (r *Reader) call(ctx context.Context, to types.Address, calldata []byte) ([]byte, error) {
	addr := common.Address(to)
	msg := ethereum.CallMsg{To: &addr, Data: calldata}
	return r.Client.CallContract(ctx, msg, nil)
}

// GetArray returns the contract's raw getArray() output; its internal shape
// is opaque to the SDK (spec §6) and is passed through untouched to the
// witness builder.
func (r *Reader) GetArray(ctx context.Context) ([]byte, error) {
	out, err := r.call(ctx, r.Contract, r.data.GetArray())
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMerkle, "chain.GetArray", err, "contract", r.Contract.HexString())
	}
	return out, nil
}

// ArrayHash calls digest() and returns its array_hash return value.
func (r *Reader) ArrayHash(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, r.Contract, r.data.Digest())
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMerkle, "chain.ArrayHash", err, "contract", r.Contract.HexString())
	}
	hash, err := DecodeDigest(out)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMerkle, "chain.ArrayHash.decode", err)
	}
	return hash, nil
}

// TotalElements calls totalElements().
func (r *Reader) TotalElements(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, r.Contract, r.data.TotalElements())
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMerkle, "chain.TotalElements", err, "contract", r.Contract.HexString())
	}
	return DecodeUint256(out)
}

// ArrayHashIndex implements spec §4.K step 2's
// array_hash_index = totalElements == 0 ? 0 : (totalElements - 1) mod 2048.
func ArrayHashIndex(totalElements *big.Int) *big.Int {
	if totalElements.Sign() == 0 {
		return new(big.Int)
	}
	idx := new(big.Int).Sub(totalElements, big.NewInt(1))
	return idx.Mod(idx, big.NewInt(ArrayHashModulus))
}

// MerkleRootAt calls merkleRoots(index).
func (r *Reader) MerkleRootAt(ctx context.Context, index *big.Int) (*big.Int, error) {
	calldata, err := r.data.MerkleRoots(index)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, r.Contract, calldata)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMerkle, "chain.MerkleRootAt", err, "index", index.String())
	}
	return DecodeUint256(out)
}

// DepositRelayerFee calls depositRelayerFee().
func (r *Reader) DepositRelayerFee(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, r.Contract, r.data.DepositRelayerFee())
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.DepositRelayerFee", err)
	}
	return DecodeUint256(out)
}

// Allowance calls ERC20 allowance(owner, spender) against token.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender types.Address) (*big.Int, error) {
	calldata, err := r.data.Allowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, token, calldata)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeAssets, "chain.Allowance", err, "token", token.HexString())
	}
	return DecodeUint256(out)
}

// IndexFrom maps an entry-service cid to the engine's own merkle-root index
// space. The two are the same monotonic sequence (every accepted commitment
// both gets a cid and advances the on-chain root by one), so this is the
// identity function rather than a derived formula; kept named and separate
// so a future reindexing scheme has one place to change.
func IndexFrom(cid uint64) *big.Int {
	return new(big.Int).SetUint64(cid)
}

// FindMerkleRootIndex implements spec §4.K step 4: starting from current
// (the engine's own index, via IndexFrom), scan [current-back, current+forward]
// calling MerkleRootAt until the on-chain value equals remoteRoot.
func (r *Reader) FindMerkleRootIndex(ctx context.Context, current *big.Int, remoteRoot *big.Int, back, forward int) (*big.Int, error) {
	if back <= 0 {
		back = MerkleRootWindowBack
	}
	if forward <= 0 {
		forward = MerkleRootWindowForward
	}

	lo := new(big.Int).Sub(current, big.NewInt(int64(back)))
	if lo.Sign() < 0 {
		lo = new(big.Int)
	}
	hi := new(big.Int).Add(current, big.NewInt(int64(forward)))

	for i := new(big.Int).Set(lo); i.Cmp(hi) <= 0; i.Add(i, big.NewInt(1)) {
		root, err := r.MerkleRootAt(ctx, i)
		if err != nil {
			return nil, err
		}
		if root.Cmp(remoteRoot) == 0 {
			return new(big.Int).Set(i), nil
		}
	}
	return nil, sdkerr.New(sdkerr.CodeMerkle, "chain.FindMerkleRootIndex",
		map[string]any{"current": current.String(), "remote_root": remoteRoot.String()},
		fmt.Errorf("no on-chain root in [%s, %s] matches the remote merkle root", lo, hi))
}
