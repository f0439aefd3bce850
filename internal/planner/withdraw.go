package planner

import (
	"math/big"
	"sort"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/memo"
	"github.com/ocash-labs/sdk-core/internal/record"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// WithdrawPlan consumes exactly one UTXO and burns BurnAmount of it, paying
// ChangeAmount (if any) back to the owner as a new shielded record.
type WithdrawPlan struct {
	SelectedInput types.UtxoRecord
	BurnAmount    *big.Int
	ProtocolFee   *big.Int
	RelayerFee    *big.Int
	ChangeAmount  *big.Int
	ChangeOpening *types.RecordOpening
	MemoBytes     []byte
	ProofBinding  *big.Int
	Recipient     types.Address
	Relayer       types.Address
}

// WithdrawRequest is the input to PlanWithdraw.
type WithdrawRequest struct {
	ChainID        uint64
	AssetID        *big.Int
	Amount         *big.Int
	WithdrawFeeBps uint32
	PayIncludesFee bool
	Owner          field.Point
	Recipient      types.Address
	Relayer        types.Address
	Fees           RelayerFees
	GasDropValue   *big.Int
	Available      []types.UtxoRecord
}

// PlanWithdraw picks any single UTXO whose amount can cover the burn and
// builds the change output, per spec §4.K. Withdraw never auto-merges: the
// spec's "single withdraw consumes exactly one input" is a hard constraint,
// so a caller wanting to withdraw more than any one UTXO holds must merge
// first via a transfer-merge plan.
func PlanWithdraw(req WithdrawRequest) (*WithdrawPlan, error) {
	if len(req.Available) == 0 {
		return nil, ErrNoUTXOs
	}
	if req.GasDropValue == nil {
		req.GasDropValue = new(big.Int)
	}

	fr := singleStepWithdrawFee(req.Amount, req.Fees, req.WithdrawFeeBps, req.PayIncludesFee)
	burnAmount := fr.Cost // single-input case: transfer_fee component is 0

	candidates := sortDescending(req.Available)
	idx := sort.Search(len(candidates), func(i int) bool {
		return candidates[i].Amount.Cmp(burnAmount) < 0
	})
	if idx == 0 {
		return nil, ErrInfeasible
	}
	selected := candidates[idx-1]

	change := new(big.Int).Sub(selected.Amount, burnAmount)
	if change.Sign() < 0 {
		return nil, ErrInfeasible
	}

	plan := &WithdrawPlan{
		SelectedInput: selected,
		BurnAmount:    burnAmount,
		ProtocolFee:   fr.ProtocolFee,
		RelayerFee:    fr.RelayerFee,
		ChangeAmount:  change,
		Recipient:     req.Recipient,
		Relayer:       req.Relayer,
	}

	var changeMemo []byte
	if change.Sign() > 0 {
		changeOpening, err := record.CreateOpening(req.AssetID, change, req.Owner, false)
		if err != nil {
			return nil, err
		}
		m, err := memo.CreateFor(req.Owner, changeOpening)
		if err != nil {
			return nil, err
		}
		plan.ChangeOpening = changeOpening
		changeMemo = m
	} else {
		opening, m, err := dummyOutput(req.AssetID, req.Owner)
		if err != nil {
			return nil, err
		}
		plan.ChangeOpening = opening
		changeMemo = m
	}
	plan.MemoBytes = changeMemo

	binding, err := WithdrawBinding(req.Recipient, fr.Output, req.Relayer, fr.RelayerFee, req.GasDropValue, changeMemo)
	if err != nil {
		return nil, err
	}
	plan.ProofBinding = binding
	return plan, nil
}
