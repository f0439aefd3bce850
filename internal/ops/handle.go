package ops

import (
	"context"
	"time"

	"github.com/ocash-labs/sdk-core/internal/chain"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// OperationHandle is returned by Transfer/Withdraw once a proof has been
// generated and submitted to the relayer. It exposes a single spelling of
// TransactionReceipt (spec §9's open question: the source exposed both
// TransactionReceipt and transactionReceipt for the same value; this SDK
// never introduces the second spelling).
type OperationHandle struct {
	OperationID   string
	RelayerTxHash string

	chainID    uint64
	o          *Orchestrator
	chainOps   ChainOps
	nullifiers []types.Hash
}

// WaitRelayerTxHashConfig tunes WaitRelayerTxHash's poll loop; zero values
// fall back to chain.RelayerClient's defaults.
type WaitRelayerTxHashConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// WaitRelayerTxHash polls the relayer until it reports the EVM transaction
// hash it eventually submitted on-chain (spec §4.K step 9).
func (h *OperationHandle) WaitRelayerTxHash(ctx context.Context, cfg WaitRelayerTxHashConfig) (types.Hash, error) {
	txHashStr, err := h.chainOps.Relayer.WaitForTxHash(ctx, h.RelayerTxHash, cfg.Interval, cfg.Timeout)
	if err != nil {
		_ = h.o.failOperation(ctx, h.OperationID, sdkerr.CodeRelayer, "ops.WaitRelayerTxHash", err)
		return types.Hash{}, err
	}
	txHash, parseErr := types.ParseHash(txHashStr)
	if parseErr != nil {
		return types.Hash{}, h.o.failOperation(ctx, h.OperationID, sdkerr.CodeRelayer, "ops.WaitRelayerTxHash.decode", parseErr)
	}
	return txHash, nil
}

// TransactionReceiptConfig tunes TransactionReceipt's poll loop.
type TransactionReceiptConfig struct {
	Confirmations int
	Interval      time.Duration
	Timeout       time.Duration
}

// TransactionReceipt waits for txHash's on-chain receipt and, on success,
// marks every nullifier this operation's plan spent as spent in the wallet
// (spec §4.K step 10), then confirms the operation row. On failure the
// operation row is patched to failed and the nullifiers are left untouched.
func (h *OperationHandle) TransactionReceipt(ctx context.Context, txHash types.Hash, cfg TransactionReceiptConfig) (*chain.Receipt, error) {
	receipt, err := h.chainOps.Reader.WaitForTransactionReceipt(ctx, txHash, cfg.Confirmations, cfg.Interval, cfg.Timeout)
	if err != nil {
		_ = h.o.failOperation(ctx, h.OperationID, sdkerr.CodeRelayer, "ops.TransactionReceipt", err)
		return nil, err
	}
	if !receipt.Success {
		failErr := errReceiptReverted{txHash: txHash}
		_ = h.o.failOperation(ctx, h.OperationID, sdkerr.CodeRelayer, "ops.TransactionReceipt", failErr)
		return receipt, failErr
	}

	if len(h.nullifiers) > 0 {
		if _, err := h.o.Wallet.MarkSpent(ctx, h.chainID, h.nullifiers); err != nil {
			return receipt, h.o.failOperation(ctx, h.OperationID, sdkerr.CodeWitness, "ops.TransactionReceipt.mark_spent", err)
		}
	}
	if _, err := h.o.confirmOperation(ctx, h.OperationID, txHash); err != nil {
		return receipt, err
	}
	return receipt, nil
}

type errReceiptReverted struct{ txHash types.Hash }

func (e errReceiptReverted) Error() string { return "ops: transaction " + e.txHash.HexString() + " reverted" }
