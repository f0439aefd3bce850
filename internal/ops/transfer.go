package ops

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/ocash-labs/sdk-core/internal/chain"
	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/planner"
	"github.com/ocash-labs/sdk-core/internal/proofbridge"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// TransferRequest is the input to Transfer.
type TransferRequest struct {
	ChainID        uint64
	AssetID        *big.Int
	Amount         *big.Int
	PayIncludesFee bool
	AutoMerge      bool
	Recipient      field.Point
}

// TransferResult reports whether Transfer executed the caller's transfer
// directly or only the first step of a two-phase merge (spec §4.K's
// "transfer-merge" plan, capped at one merge level since the plan is not
// recursive): when MergeOnly is true, Handle is the self-transfer that
// consolidates the wallet's UTXOs, and the caller must wait for its receipt
// (OperationHandle.TransactionReceipt marks the merged inputs spent) before
// calling Transfer again with the same request, at which point direct
// selection over the now-consolidated balance succeeds.
type TransferResult struct {
	Handle    *OperationHandle
	MergeOnly bool
}

func (o *Orchestrator) availableUTXOs(ctx context.Context, chainID uint64, assetID *big.Int) ([]types.UtxoRecord, error) {
	f := false
	assetStr := assetID.String()
	rows, err := o.Adapter.ListUTXOs(ctx, storage.UTXOQuery{
		ChainID: &chainID, AssetID: &assetStr, IsSpent: &f, IsFrozen: &f,
	})
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "ops.availableUTXOs", err, "chain_id", chainID)
	}
	return rows, nil
}

// Transfer plans (and, if a direct selection already suffices, fully
// executes) a private transfer, per spec §4.K's "Transfer" pipeline.
func (o *Orchestrator) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	cops, err := o.chainOps(req.ChainID)
	if err != nil {
		return nil, err
	}
	owner, err := ownerPoint(o.Wallet)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "ops.Transfer", err)
	}

	cfg, err := cops.Relayer.GetRelayerConfig(ctx)
	if err != nil {
		return nil, err
	}
	pool := poolHex(req.AssetID)
	transferFee, err := decimalFee(cfg.TransferFees, pool)
	if err != nil {
		return nil, err
	}

	available, err := o.availableUTXOs(ctx, req.ChainID, req.AssetID)
	if err != nil {
		return nil, err
	}

	planReq := planner.TransferRequest{
		ChainID: req.ChainID, AssetID: req.AssetID, Amount: req.Amount,
		PayIncludesFee: req.PayIncludesFee, AutoMerge: req.AutoMerge,
		Recipient: req.Recipient, Owner: owner, Relayer: cfg.RelayerAddress,
		Fees:      planner.RelayerFees{Transfer: transferFee},
		Available: available,
	}
	plan, mergePlan, err := planner.PlanTransfer(planReq)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.Transfer.plan", err)
	}

	if mergePlan != nil {
		handle, err := o.executeTransferPlan(ctx, req.ChainID, cops, mergePlan.Inner)
		if err != nil {
			return nil, err
		}
		return &TransferResult{Handle: handle, MergeOnly: true}, nil
	}

	handle, err := o.executeTransferPlan(ctx, req.ChainID, cops, plan)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Handle: handle}, nil
}

// executeTransferPlan builds the transfer witness, proves it, and submits it
// to the relayer (spec §4.K steps 2-9 for the transfer pipeline).
func (o *Orchestrator) executeTransferPlan(ctx context.Context, chainID uint64, cops ChainOps, plan *planner.TransferPlan) (*OperationHandle, error) {
	sk, err := o.Wallet.SecretKey()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "ops.executeTransferPlan", err)
	}

	state, err := readChainState(ctx, cops.Reader)
	if err != nil {
		return nil, err
	}

	cids := mkIndices(plan.SelectedInputs)
	merkle, err := cops.Merkle.FetchProofs(ctx, cids)
	if err != nil {
		return nil, err
	}
	if len(merkle.Proofs) != len(plan.SelectedInputs) {
		return nil, sdkerr.New(sdkerr.CodeMerkle, "ops.executeTransferPlan",
			map[string]any{"want": len(plan.SelectedInputs), "got": len(merkle.Proofs)}, errMerkleProofCountMismatch)
	}

	current := chain.IndexFrom(cids[len(cids)-1])
	rootIndex, err := cops.Reader.FindMerkleRootIndex(ctx, current, merkle.MerkleRoot, chain.MerkleRootWindowBack, chain.MerkleRootWindowForward)
	if err != nil {
		return nil, err
	}

	inputs := make([]InputWitness, len(plan.SelectedInputs))
	for i, utxo := range plan.SelectedInputs {
		opening, err := decodeOpening(o.Wallet, utxo)
		if err != nil {
			return nil, err
		}
		inputs[i] = buildInputWitness(sk, utxo, opening, merkle.Proofs[i])
	}

	witness := TransferWitness{
		Outputs: [3]OutputWitness{
			outputWitness(plan.Outputs[0].Opening, plan.Outputs[0].MemoBytes),
			outputWitness(plan.Outputs[1].Opening, plan.Outputs[1].MemoBytes),
			outputWitness(plan.Outputs[2].Opening, plan.Outputs[2].MemoBytes),
		},
		ArrayHash:     decStr(state.arrayHash),
		TotalElements: decStr(state.totalElements),
		ProofBinding:  decStr(plan.ProofBinding),
		Relayer:       plan.Relayer.HexString(),
	}
	witness.Inputs = inputs

	witnessJSON, err := json.Marshal(witness)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.executeTransferPlan.marshal", err)
	}

	recipientBytes := plan.Outputs[0].Owner.Compress()
	op, err := o.beginOperation(ctx, types.OperationTransfer, chainID, transferPlanAssetID(plan), map[string]any{
		"amount":    decStr(plan.Outputs[0].Amount),
		"recipient": "0x" + hex.EncodeToString(recipientBytes[:]),
	})
	if err != nil {
		return nil, err
	}

	o.emitZKPStart(op.ID)
	resp, err := o.Proof.Prove(ctx, proofbridge.Request{OperationID: op.ID, Kind: proofbridge.KindTransfer, Witness: witnessJSON})
	if err != nil {
		o.emitZKPDone(op.ID, 0, err.Error())
		return nil, o.failOperation(ctx, op.ID, sdkerr.CodeProof, "ops.executeTransferPlan.prove", err)
	}
	if !resp.Success {
		o.emitZKPDone(op.ID, 0, resp.Error)
		return nil, o.failOperation(ctx, op.ID, sdkerr.CodeProof, "ops.executeTransferPlan.prove", errProverRejected(resp.Error))
	}
	o.emitZKPDone(op.ID, 0, "")

	extraData := [3]string{
		"0x" + hex.EncodeToString(plan.ExtraData[0]),
		"0x" + hex.EncodeToString(plan.ExtraData[1]),
		"0x" + hex.EncodeToString(plan.ExtraData[2]),
	}
	relayerTxHash, err := cops.Relayer.Submit(ctx, chain.TransferRequest{
		Proof: resp.Proof, Input: witnessJSON, ExtraData: extraData,
		MerkleRootIndex: rootIndex.String(), ArrayHashIndex: chain.ArrayHashIndex(state.totalElements).String(),
		Relayer: plan.Relayer.HexString(), FlattenInput: false,
	})
	if err != nil {
		return nil, o.failOperation(ctx, op.ID, sdkerr.CodeRelayer, "ops.executeTransferPlan.submit", err)
	}

	if _, err := o.submitOperation(ctx, op.ID, relayerTxHash, ""); err != nil {
		return nil, err
	}

	return &OperationHandle{
		OperationID: op.ID, RelayerTxHash: relayerTxHash,
		chainID: chainID, o: o, chainOps: cops,
		nullifiers: selectedNullifiers(plan.SelectedInputs),
	}, nil
}

func transferPlanAssetID(plan *planner.TransferPlan) string {
	if plan.Outputs[0].Opening == nil {
		return ""
	}
	return decStr(plan.Outputs[0].Opening.AssetID)
}

type proverRejectedError string

func (e proverRejectedError) Error() string { return "ops: prover rejected witness: " + string(e) }
func errProverRejected(msg string) error    { return proverRejectedError(msg) }

type merkleProofCountMismatchError struct{}

func (merkleProofCountMismatchError) Error() string {
	return "ops: merkle service returned a different number of proofs than inputs requested"
}

var errMerkleProofCountMismatch = merkleProofCountMismatchError{}
