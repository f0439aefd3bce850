// Package storage defines the wallet's storage adapter capability trait
// (spec §4.G) and the query/patch types its two backends — memory and
// postgres — both implement. The shape follows the teacher's own
// storage.PostgresStore: small, context-first CRUD methods over typed
// rows rather than a generic key/value blob store.
package storage

import (
	"context"
	"errors"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

// ErrNotFound is returned when a lookup by id/cursor/key finds nothing.
var ErrNotFound = errors.New("storage: not found")

// ErrClosed is returned by any call made after Close.
var ErrClosed = errors.New("storage: adapter is closed")

// UTXOQuery filters and pages ListUTXOs.
type UTXOQuery struct {
	ChainID    *uint64
	AssetID    *string // decimal string, matches TokenConfig.ID
	IsSpent    *bool
	IsFrozen   *bool
	Limit      int
	Offset     int
}

// EntryMemoQuery pages ListEntryMemos.
type EntryMemoQuery struct {
	FromCID uint64
	Limit   int
}

// EntryNullifierQuery pages ListEntryNullifiers.
type EntryNullifierQuery struct {
	FromIndex uint64
	Limit     int
}

// OperationQuery filters and pages ListOperations.
type OperationQuery struct {
	ChainID   *uint64
	Type      *types.OperationType
	Status    *types.OperationStatus
	Ascending bool
	Limit     int
	Offset    int
}

// OperationPatch carries the mutable fields UpdateOperation may change.
type OperationPatch struct {
	Status        *types.OperationStatus
	TxHash        *types.Hash
	RelayerTxHash *string
	Error         *string
	UpdatedAt     uint64
}

// Adapter is the storage capability trait the wallet, sync engine, and ops
// orchestrator depend on. Implementations: storage/memory (tests, ephemeral
// sessions) and storage/postgres (durable deployments).
type Adapter interface {
	Init(ctx context.Context, walletID string) error
	Close(ctx context.Context) error

	UpsertUTXOs(ctx context.Context, rows []types.UtxoRecord) error
	ListUTXOs(ctx context.Context, q UTXOQuery) ([]types.UtxoRecord, error)
	MarkSpent(ctx context.Context, chainID uint64, nullifiers []types.Hash) (int, error)

	ListEntryMemos(ctx context.Context, chainID uint64, q EntryMemoQuery) ([]types.EntryMemo, error)
	ListEntryNullifiers(ctx context.Context, chainID uint64, q EntryNullifierQuery) ([]types.EntryNullifier, error)

	GetSyncCursor(ctx context.Context, chainID uint64) (types.SyncCursor, error)
	SetSyncCursor(ctx context.Context, chainID uint64, cur types.SyncCursor) error

	CreateOperation(ctx context.Context, op types.StoredOperation) (types.StoredOperation, error)
	UpdateOperation(ctx context.Context, id string, patch OperationPatch) (types.StoredOperation, error)
	ListOperations(ctx context.Context, q OperationQuery) ([]types.StoredOperation, error)

	AppendMerkleLeaves(ctx context.Context, chainID uint64, leaves []types.Hash) error
	GetMerkleLeaves(ctx context.Context, chainID uint64, fromIndex, toIndex uint64) ([]types.Hash, error)
	ClearMerkleLeaves(ctx context.Context, chainID uint64) error
}

// MaxOperationRetention is the default operation-log bound; zero means
// unbounded. No backend reads it: memory.Store.MaxRetention and
// postgres.Config.MaxOperationRetention each carry their own bound, and both
// drop the oldest rows first whatever their status.
const MaxOperationRetention = 0
