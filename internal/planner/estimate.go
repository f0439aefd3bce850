package planner

import (
	"math/big"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

// TransferEstimate is the result of estimate() (spec §4.J) for a transfer
// request: feasibility of the requested amount, both directly and with
// auto-merge, the inputs a direct plan would select, and the fee shape of
// both the request and the wallet's maximum reachable output.
type TransferEstimate struct {
	RelayerFee     *big.Int
	Required       *big.Int
	OK             bool
	OKWithMerge    bool
	SelectedInputs []types.UtxoRecord // nil when OK is false
	FeeSummary     FeeResult
	MaxSummary     FeeResult
}

// EstimateTransfer computes the transfer side of estimate(): a direct
// (no-merge) feasibility check against the largest InputNumber UTXOs, a
// merge-aware feasibility check against the whole wallet, and the fee
// summaries for both the requested amount and the wallet's maximum
// reachable output.
func EstimateTransfer(req TransferRequest) TransferEstimate {
	directFee := recordsFee(capToInputNumber(sortDescending(req.Available)), req.Amount, ActionTransfer, req.Fees, 0, req.PayIncludesFee)
	mergeFee := recordsFee(req.Available, req.Amount, ActionTransfer, req.Fees, 0, req.PayIncludesFee)
	maxSummary := recordsFee(req.Available, nil, ActionTransfer, req.Fees, 0, false)

	feeSummary := directFee
	ok := directFee.Feasible
	var selected []types.UtxoRecord
	if ok {
		selected, _ = selectPrefixFor(req.Available, directFee.Cost)
	} else {
		feeSummary = mergeFee
	}

	return TransferEstimate{
		RelayerFee:     feeSummary.RelayerFee,
		Required:       feeSummary.Cost,
		OK:             ok,
		OKWithMerge:    ok || mergeFee.Feasible,
		SelectedInputs: selected,
		FeeSummary:     feeSummary,
		MaxSummary:     maxSummary,
	}
}

// WithdrawEstimate is the result of estimate() for a withdraw request.
type WithdrawEstimate struct {
	RelayerFee    *big.Int
	BurnAmount    *big.Int
	ProtocolFee   *big.Int
	OK            bool
	OKWithMerge   bool
	SelectedInput *types.UtxoRecord // nil when OK is false
	FeeSummary    FeeResult
	MaxSummary    FeeResult
}

// EstimateWithdraw computes the withdraw side of estimate(): whether any
// single available UTXO covers the burn amount directly, and whether the
// wallet's total balance could cover it after a prior transfer-merge.
func EstimateWithdraw(req WithdrawRequest) WithdrawEstimate {
	direct := singleStepWithdrawFee(req.Amount, req.Fees, req.WithdrawFeeBps, req.PayIncludesFee)
	mergeFee := recordsFee(req.Available, req.Amount, ActionWithdraw, req.Fees, req.WithdrawFeeBps, req.PayIncludesFee)
	maxSummary := recordsFee(req.Available, nil, ActionWithdraw, req.Fees, req.WithdrawFeeBps, false)

	var selected *types.UtxoRecord
	for _, u := range sortAscending(req.Available) {
		if u.Amount.Cmp(direct.Cost) >= 0 {
			rec := u
			selected = &rec
			break
		}
	}

	return WithdrawEstimate{
		RelayerFee:    direct.RelayerFee,
		BurnAmount:    direct.Cost,
		ProtocolFee:   direct.ProtocolFee,
		OK:            selected != nil,
		OKWithMerge:   selected != nil || mergeFee.Feasible,
		SelectedInput: selected,
		FeeSummary:    direct,
		MaxSummary:    maxSummary,
	}
}

func capToInputNumber(sorted []types.UtxoRecord) []types.UtxoRecord {
	if len(sorted) > InputNumber {
		return sorted[:InputNumber]
	}
	return sorted
}
