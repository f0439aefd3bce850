package ops

import (
	"context"
	"time"

	"github.com/ocash-labs/sdk-core/internal/eventbus"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func nowUnix() uint64 { return uint64(time.Now().Unix()) }

// beginOperation creates the append-only log row for a new pipeline run,
// per spec §4.K: "Operation state: created at planner exit."
func (o *Orchestrator) beginOperation(ctx context.Context, opType types.OperationType, chainID uint64, tokenID string, detail map[string]any) (types.StoredOperation, error) {
	now := nowUnix()
	op, err := o.Adapter.CreateOperation(ctx, types.StoredOperation{
		Type: opType, Status: types.OperationCreated, ChainID: chainID,
		TokenID: tokenID, Detail: detail, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return types.StoredOperation{}, sdkerr.Wrap(sdkerr.CodeConfig, "ops.beginOperation", err, "chain_id", chainID)
	}
	o.emitOperationsUpdate(op)
	return op, nil
}

// failOperation patches an operation row to failed and re-raises cause as a
// typed error, per spec §7: "any operation row created is patched to failed
// with the error message before the error propagates."
func (o *Orchestrator) failOperation(ctx context.Context, id string, code sdkerr.Code, stage string, cause error) error {
	typed := sdkerr.Wrap(code, stage, cause)
	if typed == nil {
		typed = sdkerr.New(code, stage, nil, cause)
	}
	msg := typed.Error()
	status := types.OperationFailed
	op, err := o.Adapter.UpdateOperation(ctx, id, storage.OperationPatch{
		Status: &status, Error: &msg, UpdatedAt: nowUnix(),
	})
	if err == nil {
		o.emitOperationsUpdate(op)
	}
	return typed
}

func (o *Orchestrator) submitOperation(ctx context.Context, id, relayerTxHash, requestURL string) (types.StoredOperation, error) {
	status := types.OperationSubmitted
	op, err := o.Adapter.UpdateOperation(ctx, id, storage.OperationPatch{
		Status: &status, RelayerTxHash: &relayerTxHash, UpdatedAt: nowUnix(),
	})
	if err != nil {
		return types.StoredOperation{}, sdkerr.Wrap(sdkerr.CodeRelayer, "ops.submitOperation", err, "operation_id", id)
	}
	_ = requestURL // not recorded: OperationPatch has no request-URL field, so the row keeps the RequestURL it was created with
	o.emitOperationsUpdate(op)
	return op, nil
}

func (o *Orchestrator) confirmOperation(ctx context.Context, id string, txHash types.Hash) (types.StoredOperation, error) {
	status := types.OperationConfirmed
	op, err := o.Adapter.UpdateOperation(ctx, id, storage.OperationPatch{
		Status: &status, TxHash: &txHash, UpdatedAt: nowUnix(),
	})
	if err != nil {
		return types.StoredOperation{}, sdkerr.Wrap(sdkerr.CodeRelayer, "ops.confirmOperation", err, "operation_id", id)
	}
	o.emitOperationsUpdate(op)
	return op, nil
}

func (o *Orchestrator) emitOperationsUpdate(op types.StoredOperation) {
	if o.Bus == nil {
		return
	}
	o.Bus.Emit(eventbus.Event{Kind: eventbus.KindOperationsUpdate, OperationsUpdate: &eventbus.OperationsUpdate{Operation: op}})
}

func (o *Orchestrator) emitZKPStart(operationID string) {
	if o.Bus == nil {
		return
	}
	o.Bus.Emit(eventbus.Event{Kind: eventbus.KindZKPStart, ZKP: &eventbus.ZKPEvent{OperationID: operationID}})
}

func (o *Orchestrator) emitZKPDone(operationID string, durationMS int64, errMsg string) {
	if o.Bus == nil {
		return
	}
	o.Bus.Emit(eventbus.Event{Kind: eventbus.KindZKPDone, ZKP: &eventbus.ZKPEvent{OperationID: operationID, DurationMS: durationMS, Err: errMsg}})
}
