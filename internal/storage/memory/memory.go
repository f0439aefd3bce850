// Package memory implements storage.Adapter entirely in-process, the
// backend used by tests and by short-lived wallet sessions that do not need
// durability across process restarts.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

type utxoKey struct {
	chainID uint64
	commit  types.Hash
}

// Store is an in-memory storage.Adapter.
type Store struct {
	mu sync.RWMutex

	walletID string
	closed   bool

	utxos       map[utxoKey]types.UtxoRecord
	cursors     map[uint64]types.SyncCursor
	operations  map[string]types.StoredOperation
	opOrder     []string // insertion order, for stable pagination
	merkle      map[uint64][]types.Hash
	entryMemos  map[uint64][]types.EntryMemo
	entryNulls  map[uint64][]types.EntryNullifier

	// MaxRetention bounds the operation log; zero means unbounded. Set
	// before Init to take effect.
	MaxRetention int

	nextOpID int
}

// New returns an unopened in-memory store.
func New() *Store {
	return &Store{
		utxos:      make(map[utxoKey]types.UtxoRecord),
		cursors:    make(map[uint64]types.SyncCursor),
		operations: make(map[string]types.StoredOperation),
		merkle:     make(map[uint64][]types.Hash),
		entryMemos: make(map[uint64][]types.EntryMemo),
		entryNulls: make(map[uint64][]types.EntryNullifier),
	}
}

var _ storage.Adapter = (*Store)(nil)

func (s *Store) Init(_ context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walletID = walletID
	s.closed = false
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) UpsertUTXOs(_ context.Context, rows []types.UtxoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	for _, row := range rows {
		chainID, commit := row.Key()
		s.utxos[utxoKey{chainID, commit}] = row
	}
	return nil
}

func (s *Store) ListUTXOs(_ context.Context, q storage.UTXOQuery) ([]types.UtxoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	var rows []types.UtxoRecord
	for _, row := range s.utxos {
		if q.ChainID != nil && row.ChainID != *q.ChainID {
			continue
		}
		if q.AssetID != nil && row.AssetID.String() != *q.AssetID {
			continue
		}
		if q.IsSpent != nil && row.IsSpent != *q.IsSpent {
			continue
		}
		if q.IsFrozen != nil && row.IsFrozen != *q.IsFrozen {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ChainID != rows[j].ChainID {
			return rows[i].ChainID < rows[j].ChainID
		}
		return rows[i].Commitment.HexString() < rows[j].Commitment.HexString()
	})
	return paginate(rows, q.Offset, q.Limit), nil
}

func (s *Store) MarkSpent(_ context.Context, chainID uint64, nullifiers []types.Hash) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	wanted := make(map[types.Hash]struct{}, len(nullifiers))
	for _, n := range nullifiers {
		wanted[n] = struct{}{}
	}
	count := 0
	for k, row := range s.utxos {
		if k.chainID != chainID || row.IsSpent {
			continue
		}
		if _, ok := wanted[row.Nullifier]; ok {
			row.IsSpent = true
			s.utxos[k] = row
			count++
		}
	}
	return count, nil
}

func (s *Store) ListEntryMemos(_ context.Context, chainID uint64, q storage.EntryMemoQuery) ([]types.EntryMemo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	var out []types.EntryMemo
	for _, m := range s.entryMemos[chainID] {
		if m.CID < q.FromCID {
			continue
		}
		out = append(out, m)
	}
	return limitOnly(out, q.Limit), nil
}

func (s *Store) ListEntryNullifiers(_ context.Context, chainID uint64, q storage.EntryNullifierQuery) ([]types.EntryNullifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	all := s.entryNulls[chainID]
	if int(q.FromIndex) >= len(all) {
		return nil, nil
	}
	out := all[q.FromIndex:]
	return limitOnly(out, q.Limit), nil
}

// SeedEntryMemos and SeedEntryNullifiers let test code populate the local
// mirror; neither the entry client nor the sync engine writes to it.
func (s *Store) SeedEntryMemos(chainID uint64, memos ...types.EntryMemo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryMemos[chainID] = append(s.entryMemos[chainID], memos...)
}

func (s *Store) SeedEntryNullifiers(chainID uint64, nulls ...types.EntryNullifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryNulls[chainID] = append(s.entryNulls[chainID], nulls...)
}

func (s *Store) GetSyncCursor(_ context.Context, chainID uint64) (types.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.SyncCursor{}, storage.ErrClosed
	}
	return s.cursors[chainID], nil
}

func (s *Store) SetSyncCursor(_ context.Context, chainID uint64, cur types.SyncCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.cursors[chainID] = cur
	return nil
}

func (s *Store) CreateOperation(_ context.Context, op types.StoredOperation) (types.StoredOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.StoredOperation{}, storage.ErrClosed
	}
	if op.ID == "" {
		s.nextOpID++
		op.ID = "op-" + strconv.Itoa(s.nextOpID)
	}
	s.operations[op.ID] = op
	s.opOrder = append(s.opOrder, op.ID)
	s.pruneLocked()
	return op, nil
}

func (s *Store) pruneLocked() {
	limit := s.MaxRetention
	if limit <= 0 || len(s.opOrder) <= limit {
		return
	}
	drop := len(s.opOrder) - limit
	for _, id := range s.opOrder[:drop] {
		delete(s.operations, id)
	}
	s.opOrder = s.opOrder[drop:]
}

func (s *Store) UpdateOperation(_ context.Context, id string, patch storage.OperationPatch) (types.StoredOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.StoredOperation{}, storage.ErrClosed
	}
	op, ok := s.operations[id]
	if !ok {
		return types.StoredOperation{}, storage.ErrNotFound
	}
	if patch.Status != nil {
		op.Status = *patch.Status
	}
	if patch.TxHash != nil {
		op.TxHash = patch.TxHash
	}
	if patch.RelayerTxHash != nil {
		op.RelayerTxHash = patch.RelayerTxHash
	}
	if patch.Error != nil {
		op.Error = *patch.Error
	}
	if patch.UpdatedAt != 0 {
		op.UpdatedAt = patch.UpdatedAt
	}
	s.operations[id] = op
	return op, nil
}

func (s *Store) ListOperations(_ context.Context, q storage.OperationQuery) ([]types.StoredOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	var rows []types.StoredOperation
	for _, id := range s.opOrder {
		op := s.operations[id]
		if q.ChainID != nil && op.ChainID != *q.ChainID {
			continue
		}
		if q.Type != nil && op.Type != *q.Type {
			continue
		}
		if q.Status != nil && op.Status != *q.Status {
			continue
		}
		rows = append(rows, op)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if q.Ascending {
			return rows[i].CreatedAt < rows[j].CreatedAt
		}
		return rows[i].CreatedAt > rows[j].CreatedAt
	})
	return paginate(rows, q.Offset, q.Limit), nil
}

func (s *Store) AppendMerkleLeaves(_ context.Context, chainID uint64, leaves []types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.merkle[chainID] = append(s.merkle[chainID], leaves...)
	return nil
}

func (s *Store) GetMerkleLeaves(_ context.Context, chainID uint64, fromIndex, toIndex uint64) ([]types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	all := s.merkle[chainID]
	if fromIndex >= uint64(len(all)) {
		return nil, nil
	}
	if toIndex > uint64(len(all)) {
		toIndex = uint64(len(all))
	}
	out := make([]types.Hash, toIndex-fromIndex)
	copy(out, all[fromIndex:toIndex])
	return out, nil
}

func (s *Store) ClearMerkleLeaves(_ context.Context, chainID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	delete(s.merkle, chainID)
	return nil
}

func paginate[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func limitOnly[T any](rows []T, limit int) []T {
	if limit > 0 && limit < len(rows) {
		return rows[:limit]
	}
	return rows
}
