package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	ocashtypes "github.com/ocash-labs/sdk-core/pkg/types"
)

// DefaultReceiptPollInterval and DefaultReceiptTimeout bound
// WaitForTransactionReceipt when the caller doesn't override them.
const (
	DefaultReceiptPollInterval = 3 * time.Second
	DefaultReceiptTimeout      = 180 * time.Second
)

// Receipt is the subset of an EVM transaction receipt the ops orchestrator
// cares about: whether it landed, and in which block.
type Receipt struct {
	TxHash      ocashtypes.Hash
	BlockNumber uint64
	Success     bool
}

// WaitForTransactionReceipt polls for txHash's receipt at interval until it
// appears with at least confirmations blocks mined on top of it, or timeout
// expires (spec §4.K step 9's "waitForTransactionReceipt on the public
// client with configurable timeout/confirmations"). OperationHandle's
// TransactionReceipt wraps this call and is the single spelling the SDK
// exposes on an operation handle — the spec notes the
// source exposed both TransactionReceipt and transactionReceipt for the same
// value; this implementation never introduces the second spelling.
func (r *Reader) WaitForTransactionReceipt(ctx context.Context, txHash ocashtypes.Hash, confirmations int, interval, timeout time.Duration) (*Receipt, error) {
	if interval <= 0 {
		interval = DefaultReceiptPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	if confirmations < 0 {
		confirmations = 0
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hash := common.Hash(txHash)
	for {
		receipt, err := r.Client.TransactionReceipt(ctx, hash)
		if err == nil {
			if confirmations == 0 {
				return toReceipt(txHash, receipt), nil
			}
			head, err := r.Client.BlockNumber(ctx)
			if err == nil && head >= receipt.BlockNumber.Uint64()+uint64(confirmations) {
				return toReceipt(txHash, receipt), nil
			}
		}

		if time.Now().After(deadline) {
			return nil, sdkerr.New(sdkerr.CodeRelayer, "chain.WaitForTransactionReceipt",
				map[string]any{"tx_hash": txHash.HexString()}, errTimedOut(timeout))
		}
		select {
		case <-ctx.Done():
			return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.WaitForTransactionReceipt", ctx.Err(), "tx_hash", txHash.HexString())
		case <-ticker.C:
		}
	}
}

func toReceipt(txHash ocashtypes.Hash, r *types.Receipt) *Receipt {
	return &Receipt{
		TxHash:      txHash,
		BlockNumber: r.BlockNumber.Uint64(),
		Success:     r.Status == types.ReceiptStatusSuccessful,
	}
}

func errTimedOut(timeout time.Duration) error {
	return &timeoutError{timeout: timeout}
}

type timeoutError struct{ timeout time.Duration }

func (e *timeoutError) Error() string { return "timed out waiting for transaction receipt after " + e.timeout.String() }
