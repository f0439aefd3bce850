package planner

import (
	"math/big"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/memo"
	"github.com/ocash-labs/sdk-core/internal/record"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// TransferOutput is one of the three output slots a transfer proof produces.
type TransferOutput struct {
	Amount    *big.Int
	Owner     field.Point
	IsChange  bool
	IsDummy   bool
	Opening   *types.RecordOpening
	MemoBytes []byte
}

// TransferPlan is a direct (no-merge) transfer: up to InputNumber selected
// inputs covering Required, paying out to the recipient, a change output back
// to the owner, and a dummy third slot.
type TransferPlan struct {
	SelectedInputs []types.UtxoRecord
	Required       *big.Int
	RelayerFee     *big.Int
	FeeCount       int
	Outputs        [3]TransferOutput
	ExtraData      [3][]byte
	ProofBinding   *big.Int
	Relayer        types.Address
}

// MergeTransferPlan is the spec's "transfer-merge" plan: an inner self-
// transfer merging the chosen records back to the owner (less one merge
// relayer fee), to be executed before the outer transfer is replanned
// against the resulting, consolidated UTXO set.
type MergeTransferPlan struct {
	MergeRecords []types.UtxoRecord
	Inner        *TransferPlan
}

// TransferRequest is the input to Plan for a transfer.
type TransferRequest struct {
	ChainID        uint64
	AssetID        *big.Int
	Amount         *big.Int
	PayIncludesFee bool
	AutoMerge      bool
	Recipient      field.Point
	Owner          field.Point
	Relayer        types.Address
	Fees           RelayerFees
	Available      []types.UtxoRecord // unspent, unfrozen UTXOs for (ChainID, AssetID)
}

// PlanTransfer selects inputs and builds outputs per spec §4.K: prefer a
// direct selection of up to InputNumber largest UTXOs; if that can't reach
// Amount but the wallet's full balance could after merging (and AutoMerge is
// set), return a MergeTransferPlan instead.
func PlanTransfer(req TransferRequest) (*TransferPlan, *MergeTransferPlan, error) {
	if len(req.Available) == 0 {
		return nil, nil, ErrNoUTXOs
	}

	fr := singleStepTransferFee(req.Amount, req.Fees, req.PayIncludesFee)
	selected, ok := selectPrefixFor(req.Available, fr.Cost)
	if ok {
		plan, err := buildTransferPlan(selected, req, fr)
		return plan, nil, err
	}

	// Direct selection alone can't cover it; check whether the full wallet
	// balance, after merging, would.
	full := recordsFee(req.Available, req.Amount, ActionTransfer, req.Fees, 0, req.PayIncludesFee)
	if !full.Feasible {
		return nil, nil, ErrInfeasible
	}
	if !req.AutoMerge {
		return nil, nil, ErrInfeasible
	}

	mergePlan, err := buildMergePlan(req)
	if err != nil {
		return nil, nil, err
	}
	return nil, mergePlan, nil
}

func buildTransferPlan(selected []types.UtxoRecord, req TransferRequest, fr FeeResult) (*TransferPlan, error) {
	total := sumAmounts(selected).ToBig()
	change := new(big.Int).Sub(total, fr.Cost)
	if change.Sign() < 0 {
		return nil, ErrInfeasible
	}

	plan := &TransferPlan{
		SelectedInputs: selected,
		Required:       fr.Cost,
		RelayerFee:     fr.RelayerFee,
		FeeCount:       fr.FeeCount,
		Relayer:        req.Relayer,
	}

	sendOpening, err := record.CreateOpening(req.AssetID, req.Amount, req.Recipient, false)
	if err != nil {
		return nil, err
	}
	sendMemo, err := memo.CreateFor(req.Recipient, sendOpening)
	if err != nil {
		return nil, err
	}
	plan.Outputs[0] = TransferOutput{Amount: req.Amount, Owner: req.Recipient, Opening: sendOpening, MemoBytes: sendMemo}
	plan.ExtraData[0] = sendMemo

	if change.Sign() > 0 {
		changeOpening, err := record.CreateOpening(req.AssetID, change, req.Owner, false)
		if err != nil {
			return nil, err
		}
		changeMemo, err := memo.CreateFor(req.Owner, changeOpening)
		if err != nil {
			return nil, err
		}
		plan.Outputs[1] = TransferOutput{Amount: change, Owner: req.Owner, IsChange: true, Opening: changeOpening, MemoBytes: changeMemo}
		plan.ExtraData[1] = changeMemo
	} else {
		dummyOpening, dummyMemo, err := dummyOutput(req.AssetID, req.Owner)
		if err != nil {
			return nil, err
		}
		plan.Outputs[1] = TransferOutput{Amount: new(big.Int), Owner: req.Owner, IsDummy: true, Opening: dummyOpening, MemoBytes: dummyMemo}
		plan.ExtraData[1] = dummyMemo
	}

	dummyOpening, dummyMemo, err := dummyOutput(req.AssetID, req.Owner)
	if err != nil {
		return nil, err
	}
	plan.Outputs[2] = TransferOutput{Amount: new(big.Int), Owner: req.Owner, IsDummy: true, Opening: dummyOpening, MemoBytes: dummyMemo}
	plan.ExtraData[2] = dummyMemo

	binding, err := TransferBinding(req.Relayer, plan.ExtraData)
	if err != nil {
		return nil, err
	}
	plan.ProofBinding = binding
	return plan, nil
}

func dummyOutput(assetID *big.Int, owner field.Point) (*types.RecordOpening, []byte, error) {
	ro, err := record.DummyOpening(assetID, owner)
	if err != nil {
		return nil, nil, err
	}
	m, err := memo.CreateFor(owner, ro)
	if err != nil {
		return nil, nil, err
	}
	return ro, m, nil
}

// buildMergePlan selects the three smallest UTXOs to self-transfer-merge; if
// their sum cannot even cover one merge relayer fee, falls back to the three
// largest, per spec §4.K.
func buildMergePlan(req TransferRequest) (*MergeTransferPlan, error) {
	ascending := sortAscending(req.Available)
	candidates := ascending
	if len(candidates) > InputNumber {
		candidates = candidates[:InputNumber]
	}
	sum := sumAmounts(candidates)
	mergeFee := u256(req.Fees.Transfer)
	if sum.Lt(mergeFee) {
		descending := sortDescending(req.Available)
		if len(descending) > InputNumber {
			descending = descending[:InputNumber]
		}
		candidates = descending
		sum = sumAmounts(candidates)
		if sum.Lt(mergeFee) {
			return nil, ErrInfeasible
		}
	}

	mergedOut := subClamped(sum, mergeFee)

	innerReq := TransferRequest{
		ChainID: req.ChainID, AssetID: req.AssetID, Amount: mergedOut.ToBig(),
		PayIncludesFee: false, AutoMerge: false,
		Recipient: req.Owner, Owner: req.Owner,
		Relayer: req.Relayer, Fees: req.Fees, Available: candidates,
	}
	fr := FeeResult{Cost: sum.ToBig(), RelayerFee: mergeFee.ToBig(), FeeCount: 1}
	inner, err := buildTransferPlan(candidates, innerReq, fr)
	if err != nil {
		return nil, err
	}
	return &MergeTransferPlan{MergeRecords: candidates, Inner: inner}, nil
}
