// Package ops implements the operations orchestrator (spec component L):
// the deposit/transfer/withdraw pipelines that assemble a proof witness,
// call the proof bridge, submit via the relayer, and drive an operation's
// lifecycle row to confirmation. It is the one package that actually wires
// together every other component in this module (field, record, memo,
// wallet, planner, chain, entryclient, proofbridge, eventbus, sdkerr),
// the same way the teacher's cmd/ccoind.run wires dag+storage+p2p — except
// here the wiring is a reusable library type, not a main() function.
package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/ocash-labs/sdk-core/internal/chain"
	"github.com/ocash-labs/sdk-core/internal/entryclient"
	"github.com/ocash-labs/sdk-core/internal/eventbus"
	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/memo"
	"github.com/ocash-labs/sdk-core/internal/proofbridge"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/internal/wallet"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// ChainOps bundles the per-chain collaborators a deposit/transfer/withdraw
// pipeline reads from or submits to.
type ChainOps struct {
	ChainID  uint64
	Contract types.Address
	Reader   *chain.Reader
	Relayer  *chain.RelayerClient
	Merkle   *entryclient.MerkleClient
}

// Orchestrator drives the three operation pipelines over one open wallet
// session. It holds no secret state of its own beyond what it reads from
// the wallet for the lifetime of a single pipeline call.
type Orchestrator struct {
	Wallet  *wallet.Wallet
	Adapter storage.Adapter
	Bus     *eventbus.Bus
	Proof   proofbridge.Bridge

	chains map[uint64]ChainOps
	idGen  func() string
}

// New builds an Orchestrator. idGen defaults to a random 16-byte hex id if
// nil.
func New(w *wallet.Wallet, adapter storage.Adapter, bus *eventbus.Bus, proof proofbridge.Bridge, chains []ChainOps, idGen func() string) *Orchestrator {
	m := make(map[uint64]ChainOps, len(chains))
	for _, c := range chains {
		m[c.ChainID] = c
	}
	if idGen == nil {
		idGen = randomOperationID
	}
	return &Orchestrator{Wallet: w, Adapter: adapter, Bus: bus, Proof: proof, chains: m, idGen: idGen}
}

func randomOperationID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (o *Orchestrator) chainOps(chainID uint64) (ChainOps, error) {
	c, ok := o.chains[chainID]
	if !ok {
		return ChainOps{}, sdkerr.New(sdkerr.CodeConfig, "ops.chainOps",
			map[string]any{"chain_id": chainID}, errUnconfiguredChain(chainID))
	}
	return c, nil
}

type unconfiguredChainError uint64

func (e unconfiguredChainError) Error() string {
	return "ops: no chain configured for chain_id " + new(big.Int).SetUint64(uint64(e)).String()
}

func errUnconfiguredChain(chainID uint64) error { return unconfiguredChainError(chainID) }

// ownerPoint returns the open session's viewing key as a curve point.
func ownerPoint(w *wallet.Wallet) (field.Point, error) {
	kp, err := w.KeyPair()
	if err != nil {
		return field.Point{}, err
	}
	return field.Point{X: field.FromBigInt(kp.PKX), Y: field.FromBigInt(kp.PKY)}, nil
}

// chainState is the parallel on-chain read spec §4.K step 2 performs before
// every transfer/withdraw: getArray(), digest()'s array_hash, totalElements().
type chainState struct {
	arrayState    []byte
	arrayHash     *big.Int
	totalElements *big.Int
}

func readChainState(ctx context.Context, reader *chain.Reader) (chainState, error) {
	var (
		wg                          sync.WaitGroup
		arrayState                  []byte
		arrayHash, totalElements    *big.Int
		arrayErr, hashErr, totalErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		arrayState, arrayErr = reader.GetArray(ctx)
	}()
	go func() {
		defer wg.Done()
		arrayHash, hashErr = reader.ArrayHash(ctx)
	}()
	go func() {
		defer wg.Done()
		totalElements, totalErr = reader.TotalElements(ctx)
	}()
	wg.Wait()

	for _, err := range []error{arrayErr, hashErr, totalErr} {
		if err != nil {
			return chainState{}, err
		}
	}
	return chainState{arrayState: arrayState, arrayHash: arrayHash, totalElements: totalElements}, nil
}

// poolHex is the 32-byte big-endian hex key the relayer fee table indexes
// by. Per internal/wallet's grounded decision, a token's configured decimal
// id already *is* its pool id, so this is a direct big.Int-to-Hash render,
// not a re-derivation through record.PoolId.
func poolHex(assetID *big.Int) types.Hash {
	return types.HashFromBig(assetID)
}

func decimalFee(table map[types.Hash]string, pool types.Hash) (*big.Int, error) {
	s, ok := table[pool]
	if !ok {
		return nil, sdkerr.New(sdkerr.CodeConfig, "ops.decimalFee",
			map[string]any{"pool_id": pool.HexString()}, errMissingFee(pool))
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, sdkerr.New(sdkerr.CodeConfig, "ops.decimalFee",
			map[string]any{"pool_id": pool.HexString(), "fee": s}, errInvalidFee(s))
	}
	return v, nil
}

type missingFeeError types.Hash

func (e missingFeeError) Error() string { return "ops: relayer config has no fee entry for this pool" }
func errMissingFee(pool types.Hash) error { return missingFeeError(pool) }

type invalidFeeError string

func (e invalidFeeError) Error() string { return "ops: relayer fee entry is not a decimal integer: " + string(e) }
func errInvalidFee(s string) error      { return invalidFeeError(s) }

// decodeOpening recovers the record opening a stored UTXO's memo encrypts,
// using the open session's keypair — needed to rebuild the witness's input
// secrets, since the wallet only persists the opening in encrypted form.
func decodeOpening(w *wallet.Wallet, utxo types.UtxoRecord) (*types.RecordOpening, error) {
	kp, err := w.KeyPair()
	if err != nil {
		return nil, err
	}
	ro, err := memo.Decrypt(kp, utxo.Memo)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.decodeOpening", err, "commitment", utxo.Commitment.HexString())
	}
	return ro, nil
}

func mkIndices(records []types.UtxoRecord) []uint64 {
	out := make([]uint64, len(records))
	for i, r := range records {
		out[i] = r.MkIndex
	}
	return out
}

func selectedNullifiers(records []types.UtxoRecord) []types.Hash {
	out := make([]types.Hash, len(records))
	for i, r := range records {
		out[i] = r.Nullifier
	}
	return out
}
