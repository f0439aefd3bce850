package ops

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/ocash-labs/sdk-core/internal/chain"
	"github.com/ocash-labs/sdk-core/internal/planner"
	"github.com/ocash-labs/sdk-core/internal/proofbridge"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// WithdrawRequest is the input to Withdraw.
type WithdrawRequest struct {
	ChainID        uint64
	AssetID        *big.Int
	Amount         *big.Int
	WithdrawFeeBps uint32
	PayIncludesFee bool
	Recipient      types.Address
	GasDropValue   *big.Int
}

// Withdraw burns exactly one selected UTXO (spec §4.K's "Withdraw" never
// auto-merges); if the wallet holds nothing large enough, the caller must
// run a Transfer with AutoMerge set first to consolidate, then retry.
func (o *Orchestrator) Withdraw(ctx context.Context, req WithdrawRequest) (*OperationHandle, error) {
	cops, err := o.chainOps(req.ChainID)
	if err != nil {
		return nil, err
	}
	owner, err := ownerPoint(o.Wallet)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "ops.Withdraw", err)
	}

	cfg, err := cops.Relayer.GetRelayerConfig(ctx)
	if err != nil {
		return nil, err
	}
	pool := poolHex(req.AssetID)
	withdrawFee, err := decimalFee(cfg.WithdrawFees, pool)
	if err != nil {
		return nil, err
	}
	transferFee, err := decimalFee(cfg.TransferFees, pool)
	if err != nil {
		return nil, err
	}

	available, err := o.availableUTXOs(ctx, req.ChainID, req.AssetID)
	if err != nil {
		return nil, err
	}

	gasDrop := req.GasDropValue
	if gasDrop == nil {
		gasDrop = new(big.Int)
	}

	planReq := planner.WithdrawRequest{
		ChainID: req.ChainID, AssetID: req.AssetID, Amount: req.Amount,
		WithdrawFeeBps: req.WithdrawFeeBps, PayIncludesFee: req.PayIncludesFee,
		Owner: owner, Recipient: req.Recipient, Relayer: cfg.RelayerAddress,
		Fees:         planner.RelayerFees{Transfer: transferFee, Withdraw: withdrawFee},
		GasDropValue: gasDrop, Available: available,
	}
	plan, err := planner.PlanWithdraw(planReq)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.Withdraw.plan", err)
	}

	return o.executeWithdrawPlan(ctx, req.ChainID, cops, plan, gasDrop)
}

func (o *Orchestrator) executeWithdrawPlan(ctx context.Context, chainID uint64, cops ChainOps, plan *planner.WithdrawPlan, gasDropValue *big.Int) (*OperationHandle, error) {
	sk, err := o.Wallet.SecretKey()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "ops.executeWithdrawPlan", err)
	}

	state, err := readChainState(ctx, cops.Reader)
	if err != nil {
		return nil, err
	}

	cid := plan.SelectedInput.MkIndex
	merkle, err := cops.Merkle.FetchProofs(ctx, []uint64{cid})
	if err != nil {
		return nil, err
	}
	if len(merkle.Proofs) != 1 {
		return nil, sdkerr.New(sdkerr.CodeMerkle, "ops.executeWithdrawPlan",
			map[string]any{"want": 1, "got": len(merkle.Proofs)}, errMerkleProofCountMismatch)
	}

	current := chain.IndexFrom(cid)
	rootIndex, err := cops.Reader.FindMerkleRootIndex(ctx, current, merkle.MerkleRoot, chain.MerkleRootWindowBack, chain.MerkleRootWindowForward)
	if err != nil {
		return nil, err
	}

	opening, err := decodeOpening(o.Wallet, plan.SelectedInput)
	if err != nil {
		return nil, err
	}
	input := buildInputWitness(sk, plan.SelectedInput, opening, merkle.Proofs[0])

	witness := WithdrawWitness{
		Input:         input,
		Change:        outputWitness(plan.ChangeOpening, plan.MemoBytes),
		BurnAmount:    decStr(plan.BurnAmount),
		ProtocolFee:   decStr(plan.ProtocolFee),
		RelayerFee:    decStr(plan.RelayerFee),
		GasDropValue:  decStr(gasDropValue),
		Recipient:     plan.Recipient.HexString(),
		Relayer:       plan.Relayer.HexString(),
		ArrayHash:     decStr(state.arrayHash),
		TotalElements: decStr(state.totalElements),
		ProofBinding:  decStr(plan.ProofBinding),
	}

	witnessJSON, err := json.Marshal(witness)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.executeWithdrawPlan.marshal", err)
	}

	op, err := o.beginOperation(ctx, types.OperationWithdraw, chainID, decStr(opening.AssetID), map[string]any{
		"burn_amount": decStr(plan.BurnAmount),
		"recipient":   plan.Recipient.HexString(),
	})
	if err != nil {
		return nil, err
	}

	o.emitZKPStart(op.ID)
	resp, err := o.Proof.Prove(ctx, proofbridge.Request{OperationID: op.ID, Kind: proofbridge.KindWithdraw, Witness: witnessJSON})
	if err != nil {
		o.emitZKPDone(op.ID, 0, err.Error())
		return nil, o.failOperation(ctx, op.ID, sdkerr.CodeProof, "ops.executeWithdrawPlan.prove", err)
	}
	if !resp.Success {
		o.emitZKPDone(op.ID, 0, resp.Error)
		return nil, o.failOperation(ctx, op.ID, sdkerr.CodeProof, "ops.executeWithdrawPlan.prove", errProverRejected(resp.Error))
	}
	o.emitZKPDone(op.ID, 0, "")

	relayerTxHash, err := cops.Relayer.SubmitBurn(ctx, chain.BurnRequest{
		Proof: resp.Proof, Input: witnessJSON,
		MerkleRootIndex: rootIndex.String(), ArrayHashIndex: chain.ArrayHashIndex(state.totalElements).String(),
		Relayer: plan.Relayer.HexString(), FlattenInput: false,
		RecipientAddress: plan.Recipient.HexString(),
		RelayerFee:       decStr(plan.RelayerFee),
		GasDropValue:     witness.GasDropValue,
		BurnAmount:       decStr(plan.BurnAmount),
		ExtraData:        "0x" + hex.EncodeToString(plan.MemoBytes),
	})
	if err != nil {
		return nil, o.failOperation(ctx, op.ID, sdkerr.CodeRelayer, "ops.executeWithdrawPlan.submit", err)
	}

	if _, err := o.submitOperation(ctx, op.ID, relayerTxHash, ""); err != nil {
		return nil, err
	}

	return &OperationHandle{
		OperationID: op.ID, RelayerTxHash: relayerTxHash,
		chainID: chainID, o: o, chainOps: cops,
		nullifiers: []types.Hash{plan.SelectedInput.Nullifier},
	}, nil
}
