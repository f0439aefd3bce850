// Package planner implements UTXO selection, fee arithmetic, auto-merge
// decisions, and output-capacity estimates (spec §4.J): the arithmetic that
// decides whether a deposit/transfer/withdraw request is feasible before the
// ops orchestrator ever touches the network. All amount math runs over
// github.com/holiman/uint256's fixed 256-bit integer, the same type the pack's
// parsdao-pars DEX code uses for on-chain-sized amounts, converted to/from
// math/big only at the package boundary where record openings and ABI
// encoding require it.
package planner

import (
	"errors"
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

// InputNumber is the fixed number of inputs a single proof consumes.
const InputNumber = 3

// BpsBase is the basis-point denominator for protocol fee math.
const BpsBase = 10000

var (
	// ErrInfeasible is returned when no selection of the wallet's UTXOs (with
	// or without merging) can satisfy a request.
	ErrInfeasible = errors.New("planner: request is not feasible with available UTXOs")
	// ErrNoUTXOs is returned when the wallet holds nothing to select from.
	ErrNoUTXOs = errors.New("planner: wallet has no usable UTXOs")
)

// Action is which pipeline a plan/estimate is computed for.
type Action string

const (
	ActionTransfer Action = "transfer"
	ActionWithdraw Action = "withdraw"
)

// RelayerFees is the relayer's advertised per-pool fee for each action,
// fetched from GET /api/v1/relayer_config (§6) and looked up by the pool's
// 32-byte big-endian hex id.
type RelayerFees struct {
	Transfer *big.Int
	Withdraw *big.Int
}

func u256(n *big.Int) *uint256.Int {
	if n == nil {
		return new(uint256.Int)
	}
	z, overflow := uint256.FromBig(n)
	if overflow {
		// Amounts and fees in this protocol never approach 2^256; an
		// overflow here means a caller handed us a corrupt value.
		panic("planner: amount overflows uint256")
	}
	return z
}

func sumAmounts(records []types.UtxoRecord) *uint256.Int {
	total := new(uint256.Int)
	for _, r := range records {
		total.Add(total, u256(r.Amount))
	}
	return total
}

// mulDivFloor computes floor(a*b/d) without intermediate overflow.
func mulDivFloor(a, b, d *uint256.Int) *uint256.Int {
	if d.IsZero() {
		return new(uint256.Int)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		panic("planner: intermediate fee computation overflowed 512 bits")
	}
	return z
}

func subClamped(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// FeeResult is the outcome of records_fee (spec §4.J): the fee/merge
// arithmetic for merging records[] down to a single proof-shaped selection
// and satisfying (or maximizing, when expected is nil) a requested amount.
type FeeResult struct {
	Total       *big.Int // sum of the input records, before any fee
	FeeCount    int       // number of 3-into-1 merge steps the loop performed, floored at 1
	Output      *big.Int // amount the counterparty/recipient actually receives
	Cost        *big.Int // total drawn from Total to cover Output + all fees
	RelayerFee  *big.Int // transfer: FeeCount x the transfer relayer fee; withdraw: the withdraw relayer fee
	TransferFee *big.Int // withdraw-only: (FeeCount-1) x the transfer relayer fee for merge steps; zero for a transfer
	ProtocolFee *big.Int // withdraw-only: basis-point protocol cut
	BurnFee     *big.Int // withdraw-only: ProtocolFee + RelayerFee
	Feasible    bool
}

// recordsFee implements spec §4.J's records_fee. expected == nil means an
// unbounded ("max") query: compute the largest Output the records could
// produce rather than checking a specific target.
//
// fee_count is the number of 3-into-1 merge iterations the loop performs,
// floored at 1: a direct transfer/withdraw (zero merges) and a
// single-merge transfer/withdraw both cost exactly one relayer-fee-worth of
// proof submission, since the one merge collapses into the final proof's own
// submission; only a second (and later) merge genuinely adds another
// standalone submission, which is when fee_count grows past 1.
func recordsFee(records []types.UtxoRecord, expected *big.Int, action Action, fees RelayerFees, protocolBps uint32, expectedIsWithFee bool) FeeResult {
	total := sumAmounts(records)

	limit := InputNumber
	if action == ActionWithdraw {
		limit = 1
	}
	n := len(records)
	iterations := 0
	for n > limit {
		iterations++
		n -= 2 // merging the first 3 into 1 reduces the live count by 2.
	}
	feeCount := iterations
	if feeCount < 1 {
		feeCount = 1
	}

	if action == ActionTransfer {
		return transferFee(total, feeCount, expected, fees, expectedIsWithFee)
	}
	return withdrawFee(total, feeCount, expected, fees, protocolBps, expectedIsWithFee)
}

func transferFee(total *uint256.Int, feeCount int, expected *big.Int, fees RelayerFees, expectedIsWithFee bool) FeeResult {
	relayerFee := u256(fees.Transfer)
	fee := new(uint256.Int).Mul(relayerFee, uint256.NewInt(uint64(feeCount)))

	if expected == nil {
		output := subClamped(total, fee)
		return FeeResult{
			Total: total.ToBig(), FeeCount: feeCount, Output: output.ToBig(),
			Cost: total.ToBig(), RelayerFee: fee.ToBig(), TransferFee: new(big.Int),
			Feasible: true,
		}
	}

	exp := u256(expected)
	cost := new(uint256.Int).Add(exp, fee)
	if expectedIsWithFee {
		cost = exp
	}
	feasible := !total.Lt(cost)
	return FeeResult{
		Total: total.ToBig(), FeeCount: feeCount, Output: expected,
		Cost: cost.ToBig(), RelayerFee: fee.ToBig(), TransferFee: new(big.Int),
		Feasible: feasible,
	}
}

func withdrawFee(total *uint256.Int, feeCount int, expected *big.Int, fees RelayerFees, protocolBps uint32, expectedIsWithFee bool) FeeResult {
	relayerFee := u256(fees.Withdraw)
	bpsBase := uint256.NewInt(BpsBase)
	bps := uint256.NewInt(uint64(protocolBps))
	denom := new(uint256.Int).Add(bpsBase, bps)

	mergeSteps := feeCount - 1
	if mergeSteps < 0 {
		mergeSteps = 0
	}
	transferFee := new(uint256.Int).Mul(u256(fees.Transfer), uint256.NewInt(uint64(mergeSteps)))

	if expected == nil {
		avail := subClamped(total, transferFee)
		base := mulDivFloor(avail, bpsBase, denom)
		output := subClamped(base, relayerFee)
		protocol := mulDivFloor(base, bps, bpsBase)
		burnFee := new(uint256.Int).Add(protocol, relayerFee)
		cost := new(uint256.Int).Add(output, transferFee)
		cost.Add(cost, burnFee)
		return FeeResult{
			Total: total.ToBig(), FeeCount: feeCount, Output: output.ToBig(),
			Cost: cost.ToBig(), RelayerFee: relayerFee.ToBig(), TransferFee: transferFee.ToBig(),
			ProtocolFee: protocol.ToBig(), BurnFee: burnFee.ToBig(), Feasible: true,
		}
	}

	want := u256(expected)
	if expectedIsWithFee {
		// expected already denotes the burn amount (output + fees folded in);
		// treat it as the base directly.
		want = subClamped(want, relayerFee)
	}
	base := new(uint256.Int).Add(want, relayerFee)
	protocol := mulDivFloor(base, bps, bpsBase)
	burnFee := new(uint256.Int).Add(protocol, relayerFee)
	cost := new(uint256.Int).Add(want, transferFee)
	cost.Add(cost, burnFee)
	feasible := !total.Lt(cost)

	return FeeResult{
		Total: total.ToBig(), FeeCount: feeCount, Output: want.ToBig(),
		Cost: cost.ToBig(), RelayerFee: relayerFee.ToBig(), TransferFee: transferFee.ToBig(),
		ProtocolFee: protocol.ToBig(), BurnFee: burnFee.ToBig(), Feasible: feasible,
	}
}

// BurnAmount derives burn_amount = amount + relayer_fee + protocol_fee, with
// protocol_fee = ((amount + relayer_fee) * withdraw_fee_bps) / 10000 — the
// single-input, no-merge shape of withdrawFee, exposed directly because §8's
// testable properties state it as a standalone formula.
func BurnAmount(amount, relayerFee *big.Int, withdrawFeeBps uint32) (burn, protocolFee *big.Int) {
	base := new(uint256.Int).Add(u256(amount), u256(relayerFee))
	protocol := mulDivFloor(base, uint256.NewInt(uint64(withdrawFeeBps)), uint256.NewInt(BpsBase))
	burnU := new(uint256.Int).Add(base, protocol)
	return burnU.ToBig(), protocol.ToBig()
}

func sortDescending(records []types.UtxoRecord) []types.UtxoRecord {
	out := make([]types.UtxoRecord, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.Cmp(out[j].Amount) > 0 })
	return out
}

func sortAscending(records []types.UtxoRecord) []types.UtxoRecord {
	out := make([]types.UtxoRecord, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.Cmp(out[j].Amount) < 0 })
	return out
}

// selectPrefixFor picks the smallest-length prefix (after sorting records
// descending) whose sum is >= required, up to InputNumber records. Returns
// ok=false if even the InputNumber largest aren't enough.
func selectPrefixFor(records []types.UtxoRecord, required *big.Int) ([]types.UtxoRecord, bool) {
	sorted := sortDescending(records)
	if len(sorted) > InputNumber {
		sorted = sorted[:InputNumber]
	}
	req := u256(required)
	running := new(uint256.Int)
	for i, r := range sorted {
		running.Add(running, u256(r.Amount))
		if !running.Lt(req) {
			return sorted[:i+1], true
		}
	}
	return nil, false
}

// singleStepTransferFee is transferFee's shape for a direct, no-merge
// selection (fee_count floored at 1), independent of which or how many
// records (up to InputNumber) end up selected.
func singleStepTransferFee(amount *big.Int, fees RelayerFees, payIncludesFee bool) FeeResult {
	return transferFee(new(uint256.Int), 1, amount, fees, payIncludesFee)
}

// singleStepWithdrawFee is withdrawFee's shape for a direct, single-input
// selection (fee_count == 1, so the merge-only TransferFee component is 0).
func singleStepWithdrawFee(amount *big.Int, fees RelayerFees, bps uint32, payIncludesFee bool) FeeResult {
	return withdrawFee(new(uint256.Int), 1, amount, fees, bps, payIncludesFee)
}
