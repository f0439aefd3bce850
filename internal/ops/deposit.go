package ops

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ocash-labs/sdk-core/internal/chain"
	"github.com/ocash-labs/sdk-core/internal/memo"
	"github.com/ocash-labs/sdk-core/internal/record"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// DepositRequest is the input to Deposit (spec §4.K "Deposit").
type DepositRequest struct {
	ChainID       uint64
	AssetID       *big.Int
	Amount        *big.Int
	DepositFeeBps uint32
	TokenAddr     types.Address // NativeSentinel, or the wrapped ERC20 contract
	Sender        types.Address // the EVM address that will sign the deposit tx
}

// DepositHandle is everything the caller needs to actually send the deposit
// (and, if short, an approval) transaction; this SDK never signs or
// broadcasts transactions itself (spec §1's out-of-scope "wallet-client
// plumbing for sending on-chain transactions").
type DepositHandle struct {
	OperationID string
	Opening     *types.RecordOpening
	MemoBytes   []byte

	ProtocolFee *big.Int
	PayAmount   *big.Int
	RelayerFee  *big.Int

	DepositCalldata []byte
	DepositValue    *big.Int

	NeedsApproval   bool
	ApproveCalldata []byte
	ApproveSpender  types.Address
	ApproveAmount   *big.Int

	o       *Orchestrator
	chainID uint64
}

func depositProtocolFee(amount *big.Int, bps uint32) *big.Int {
	base, overflow := uint256.FromBig(amount)
	if overflow {
		panic("ops: deposit amount overflows uint256")
	}
	num := new(uint256.Int).Mul(base, uint256.NewInt(uint64(bps)))
	fee := new(uint256.Int).Div(num, uint256.NewInt(10000))
	return fee.ToBig()
}

// Deposit builds a fresh shielded record opening owned by the session's own
// viewing key, computes the protocol fee and pay amount, and returns the
// calldata the caller sends on-chain (spec §4.K "Deposit" steps 1-5).
func (o *Orchestrator) Deposit(ctx context.Context, req DepositRequest) (*DepositHandle, error) {
	cops, err := o.chainOps(req.ChainID)
	if err != nil {
		return nil, err
	}

	owner, err := ownerPoint(o.Wallet)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeConfig, "ops.Deposit", err)
	}

	relayerFee, err := cops.Reader.DepositRelayerFee(ctx)
	if err != nil {
		return nil, err
	}

	protocolFee := depositProtocolFee(req.Amount, req.DepositFeeBps)
	payAmount := new(big.Int).Add(req.Amount, protocolFee)

	opening, err := record.CreateOpening(req.AssetID, req.Amount, owner, false)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.Deposit.create_opening", err)
	}
	memoBytes, err := memo.CreateFor(owner, opening)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.Deposit.memo", err)
	}

	depositCalldata, err := (chain.CallData{}).Deposit(chain.DepositInput{
		AssetID: req.AssetID, Amount: req.Amount,
		UserPKX: opening.UserPKX, UserPKY: opening.UserPKY,
		Blinding: opening.BlindingFactor, Memo: memoBytes,
	})
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.Deposit.calldata", err)
	}

	handle := &DepositHandle{
		Opening: opening, MemoBytes: memoBytes,
		ProtocolFee: protocolFee, PayAmount: payAmount, RelayerFee: relayerFee,
		DepositCalldata: depositCalldata,
		o:               o, chainID: req.ChainID,
	}

	if req.TokenAddr.IsNative() {
		handle.DepositValue = new(big.Int).Add(payAmount, relayerFee)
	} else {
		handle.DepositValue = relayerFee
		allowance, err := cops.Reader.Allowance(ctx, req.TokenAddr, req.Sender, cops.Contract)
		if err != nil {
			return nil, err
		}
		if allowance.Cmp(payAmount) < 0 {
			approveCalldata, err := (chain.CallData{}).Approve(cops.Contract, payAmount)
			if err != nil {
				return nil, sdkerr.Wrap(sdkerr.CodeWitness, "ops.Deposit.approve_calldata", err)
			}
			handle.NeedsApproval = true
			handle.ApproveCalldata = approveCalldata
			handle.ApproveSpender = cops.Contract
			handle.ApproveAmount = payAmount
		}
	}

	op, err := o.beginOperation(ctx, types.OperationDeposit, req.ChainID, req.AssetID.String(), map[string]any{
		"amount":       req.Amount.String(),
		"protocol_fee": protocolFee.String(),
		"pay_amount":   payAmount.String(),
		"token_addr":   req.TokenAddr.HexString(),
	})
	if err != nil {
		return nil, err
	}
	handle.OperationID = op.ID
	return handle, nil
}

// MarkSubmitted records that the caller broadcast the deposit transaction.
func (h *DepositHandle) MarkSubmitted(ctx context.Context, txHash types.Hash) (types.StoredOperation, error) {
	status := types.OperationSubmitted
	op, err := h.o.Adapter.UpdateOperation(ctx, h.OperationID, storage.OperationPatch{
		Status: &status, TxHash: &txHash, UpdatedAt: nowUnix(),
	})
	if err != nil {
		return types.StoredOperation{}, sdkerr.Wrap(sdkerr.CodeConfig, "ops.DepositHandle.MarkSubmitted", err)
	}
	h.o.emitOperationsUpdate(op)
	return op, nil
}

// MarkConfirmed records that the deposit transaction's receipt succeeded.
func (h *DepositHandle) MarkConfirmed(ctx context.Context, txHash types.Hash) (types.StoredOperation, error) {
	return h.o.confirmOperation(ctx, h.OperationID, txHash)
}

// MarkFailed records that the deposit transaction's receipt failed, or that
// a preflight step (no allowance, wrong chain, missing wallet client)
// rejected the deposit before it was ever sent (spec §7's CONFIG-coded
// deposit preflight failures).
func (h *DepositHandle) MarkFailed(ctx context.Context, cause error) error {
	return h.o.failOperation(ctx, h.OperationID, sdkerr.CodeConfig, "ops.DepositHandle.MarkFailed", cause)
}
