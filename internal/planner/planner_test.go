package planner

import (
	"math/big"
	"testing"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func utxo(amount int64) types.UtxoRecord {
	return types.UtxoRecord{
		ChainID: 1,
		AssetID: big.NewInt(1),
		Amount:  big.NewInt(amount),
	}
}

func TestRecordsFeeTransferDirectSelection(t *testing.T) {
	available := []types.UtxoRecord{utxo(100), utxo(30), utxo(20), utxo(5)}
	fees := RelayerFees{Transfer: big.NewInt(7)}

	fr := recordsFee(available[:1], big.NewInt(50), ActionTransfer, fees, 0, false)
	if fr.FeeCount != 1 {
		t.Fatalf("fee count = %d, want 1", fr.FeeCount)
	}
	if fr.Cost.Cmp(big.NewInt(57)) != 0 {
		t.Fatalf("required = %s, want 57", fr.Cost)
	}
	if !fr.Feasible {
		t.Fatal("expected 100 to cover a 57 cost")
	}
}

func TestRecordsFeeTransferMaxSummaryFloorsFeeCountAtOne(t *testing.T) {
	// Merging all 4 records down to <= InputNumber takes exactly one
	// 3-into-1 pass, so fee_count stays at its floor of 1.
	available := []types.UtxoRecord{utxo(100), utxo(30), utxo(20), utxo(5)}
	fees := RelayerFees{Transfer: big.NewInt(7)}

	fr := recordsFee(available, nil, ActionTransfer, fees, 0, false)
	if fr.FeeCount != 1 {
		t.Fatalf("fee count = %d, want 1", fr.FeeCount)
	}
	if fr.Output.Cmp(big.NewInt(148)) != 0 {
		t.Fatalf("max output = %s, want 148", fr.Output)
	}
}

func TestRecordsFeeWithdrawSingleInput(t *testing.T) {
	available := []types.UtxoRecord{utxo(200), utxo(50)}
	fees := RelayerFees{Withdraw: big.NewInt(3)}

	fr := recordsFee(available[:1], big.NewInt(100), ActionWithdraw, fees, 250, false)
	if fr.FeeCount != 1 {
		t.Fatalf("fee count = %d, want 1", fr.FeeCount)
	}
	if fr.TransferFee.Sign() != 0 {
		t.Fatalf("single-input withdraw should have no merge fee, got %s", fr.TransferFee)
	}

	want := big.NewInt(100)
	burn, protocol := BurnAmount(want, fees.Withdraw, 250)
	if fr.Cost.Cmp(burn) != 0 {
		t.Fatalf("withdrawFee.Cost = %s, BurnAmount = %s: should match", fr.Cost, burn)
	}
	if fr.ProtocolFee.Cmp(protocol) != 0 {
		t.Fatalf("withdrawFee.ProtocolFee = %s, BurnAmount protocol = %s: should match", fr.ProtocolFee, protocol)
	}
}

func TestBurnAmountFormula(t *testing.T) {
	amount := big.NewInt(1000)
	relayerFee := big.NewInt(10)
	burn, protocol := BurnAmount(amount, relayerFee, 100) // 1%
	// base = 1010, protocol = floor(1010*100/10000) = 10, burn = 1020
	if protocol.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("protocol fee = %s, want 10", protocol)
	}
	if burn.Cmp(big.NewInt(1020)) != 0 {
		t.Fatalf("burn amount = %s, want 1020", burn)
	}
}

func TestPlanTransferDirectSelection(t *testing.T) {
	owner := field.BasePoint()
	recipient := field.ScalarMultBase(big.NewInt(2))
	req := TransferRequest{
		ChainID: 1, AssetID: big.NewInt(1), Amount: big.NewInt(50),
		Recipient: recipient, Owner: owner,
		Fees:      RelayerFees{Transfer: big.NewInt(7)},
		Available: []types.UtxoRecord{utxo(100), utxo(30), utxo(20), utxo(5)},
	}

	plan, merge, err := PlanTransfer(req)
	if err != nil {
		t.Fatal(err)
	}
	if merge != nil {
		t.Fatal("expected a direct plan, not a merge plan")
	}
	if len(plan.SelectedInputs) != 1 || plan.SelectedInputs[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected the single 100 UTXO selected, got %+v", plan.SelectedInputs)
	}
	if plan.Outputs[0].Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("send output = %s, want 50", plan.Outputs[0].Amount)
	}
	if !plan.Outputs[1].IsChange || plan.Outputs[1].Amount.Cmp(big.NewInt(43)) != 0 {
		t.Fatalf("change output = %+v, want 43 change", plan.Outputs[1])
	}
	if !plan.Outputs[2].IsDummy {
		t.Fatal("third output slot must be a dummy")
	}
	if plan.ProofBinding == nil || plan.ProofBinding.Sign() == 0 {
		t.Fatal("expected a nonzero proof binding scalar")
	}
}

func TestPlanTransferFallsBackToMerge(t *testing.T) {
	owner := field.BasePoint()
	req := TransferRequest{
		ChainID: 1, AssetID: big.NewInt(1), Amount: big.NewInt(90),
		Recipient: owner, Owner: owner, AutoMerge: true,
		Fees:      RelayerFees{Transfer: big.NewInt(1)},
		Available: []types.UtxoRecord{utxo(30), utxo(30), utxo(30), utxo(30)},
	}

	plan, merge, err := PlanTransfer(req)
	if err != nil {
		t.Fatal(err)
	}
	if plan != nil {
		t.Fatal("expected no direct plan when only the largest 3 (90) can't also cover the fee")
	}
	if merge == nil {
		t.Fatal("expected a merge plan")
	}
	if len(merge.MergeRecords) != 3 {
		t.Fatalf("merge selected %d records, want 3", len(merge.MergeRecords))
	}
}

func TestPlanTransferInfeasibleWithoutAutoMerge(t *testing.T) {
	owner := field.BasePoint()
	req := TransferRequest{
		ChainID: 1, AssetID: big.NewInt(1), Amount: big.NewInt(90),
		Recipient: owner, Owner: owner, AutoMerge: false,
		Fees:      RelayerFees{Transfer: big.NewInt(1)},
		Available: []types.UtxoRecord{utxo(30), utxo(30), utxo(30), utxo(30)},
	}
	_, _, err := PlanTransfer(req)
	if err != ErrInfeasible {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}

func TestPlanWithdrawSelectsSmallestQualifyingInput(t *testing.T) {
	owner := field.BasePoint()
	req := WithdrawRequest{
		ChainID: 1, AssetID: big.NewInt(1), Amount: big.NewInt(50), WithdrawFeeBps: 0,
		Owner: owner, Recipient: types.Address{0xaa}, Relayer: types.Address{0xbb},
		Fees:      RelayerFees{Withdraw: big.NewInt(5)},
		Available: []types.UtxoRecord{utxo(200), utxo(60), utxo(1000)},
	}

	plan, err := PlanWithdraw(req)
	if err != nil {
		t.Fatal(err)
	}
	if plan.SelectedInput.Amount.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("selected input = %s, want the smallest qualifying (60)", plan.SelectedInput.Amount)
	}
	if plan.BurnAmount.Cmp(big.NewInt(55)) != 0 {
		t.Fatalf("burn amount = %s, want 55", plan.BurnAmount)
	}
	wantChange := big.NewInt(5)
	if plan.ChangeAmount.Cmp(wantChange) != 0 {
		t.Fatalf("change = %s, want %s", plan.ChangeAmount, wantChange)
	}
	if plan.ChangeOpening == nil {
		t.Fatal("expected a change opening to be built")
	}
}

func TestPlanWithdrawInfeasibleWhenNoInputQualifies(t *testing.T) {
	owner := field.BasePoint()
	req := WithdrawRequest{
		ChainID: 1, AssetID: big.NewInt(1), Amount: big.NewInt(1000), WithdrawFeeBps: 0,
		Owner: owner, Recipient: types.Address{0xaa}, Relayer: types.Address{0xbb},
		Fees:      RelayerFees{Withdraw: big.NewInt(5)},
		Available: []types.UtxoRecord{utxo(200), utxo(60)},
	}
	_, err := PlanWithdraw(req)
	if err != ErrInfeasible {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
}

func TestEstimateTransferDirectAndMax(t *testing.T) {
	req := TransferRequest{
		Amount:    big.NewInt(50),
		Fees:      RelayerFees{Transfer: big.NewInt(7)},
		Available: []types.UtxoRecord{utxo(100), utxo(30), utxo(20), utxo(5)},
	}
	est := EstimateTransfer(req)
	if !est.OK {
		t.Fatal("expected direct estimate to be feasible")
	}
	if est.Required.Cmp(big.NewInt(57)) != 0 {
		t.Fatalf("required = %s, want 57", est.Required)
	}
	if est.MaxSummary.Output.Cmp(big.NewInt(148)) != 0 {
		t.Fatalf("max summary output = %s, want 148", est.MaxSummary.Output)
	}
	if len(est.SelectedInputs) != 1 {
		t.Fatalf("selected inputs = %+v, want a single 100 UTXO", est.SelectedInputs)
	}
}

func TestEstimateWithdrawOKWithMergeWhenNoSingleInputQualifies(t *testing.T) {
	req := WithdrawRequest{
		Amount:    big.NewInt(250),
		Fees:      RelayerFees{Withdraw: big.NewInt(5)},
		Available: []types.UtxoRecord{utxo(200), utxo(100)},
	}
	est := EstimateWithdraw(req)
	if est.OK {
		t.Fatal("no single UTXO covers 250+fee, expected OK=false")
	}
	if !est.OKWithMerge {
		t.Fatal("two UTXOs (200+100) should be feasible after a merge upstream")
	}
}
