// Package wallet implements the wallet service (spec §4.H): a session
// lifecycle over a derived viewing keypair, an in-memory chain/pool
// registry, and the apply_memos scan that turns entry-service memos into
// owned UtxoRecords.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ocash-labs/sdk-core/internal/eventbus"
	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/keys"
	"github.com/ocash-labs/sdk-core/internal/memo"
	"github.com/ocash-labs/sdk-core/internal/record"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// ErrNotOpen is returned by any session-scoped call made before Open or
// after Close.
var ErrNotOpen = errors.New("wallet: session is not open")

// ErrAlreadyOpen is returned by Open on an already-open session.
var ErrAlreadyOpen = errors.New("wallet: session already open")

// PoolInfo is one (chain_id, pool_id) entry in the wallet's in-memory asset
// registry: the pool identity together with the keys needed to nullify a
// spend of a UTXO in that pool.
type PoolInfo struct {
	AssetID   *big.Int
	ViewerPK  field.Point
	FreezerPK field.Point
}

// RegistryRefresher reloads a chain's full pool map, called once by
// apply_memos on a cache miss. Callers typically back this with the root
// config or a live on-chain read.
type RegistryRefresher func(ctx context.Context, chainID uint64) (map[string]PoolInfo, error)

// Wallet holds an open viewing session: the derived keypair, the per-chain
// pool registry, and the storage adapter backing it.
type Wallet struct {
	adapter storage.Adapter
	bus     *eventbus.Bus
	refresh RegistryRefresher

	mu      sync.RWMutex
	kp      *types.KeyPair
	address types.Hash
	pools   map[uint64]map[string]PoolInfo // chain_id -> pool_id (decimal) -> info
}

// New constructs a closed Wallet over adapter. bus may be nil to disable
// event emission; refresh may be nil if the caller never expects a
// registry cache miss.
func New(adapter storage.Adapter, bus *eventbus.Bus, refresh RegistryRefresher) *Wallet {
	return &Wallet{adapter: adapter, bus: bus, refresh: refresh}
}

// IsOpen reports whether a session is currently open.
func (w *Wallet) IsOpen() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.kp != nil
}

// Open derives the viewing keypair from seed (and optional nonce),
// initialises the storage adapter under wallet_id = the viewing address,
// and seeds the in-memory pool registry from initial (may be nil/empty;
// BuildRegistry populates one from a RootConfig chain entry).
func (w *Wallet) Open(ctx context.Context, seed, nonce string, initial map[uint64]map[string]PoolInfo) (types.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.kp != nil {
		return types.Hash{}, ErrAlreadyOpen
	}

	kp, err := keys.Derive(seed, nonce)
	if err != nil {
		return types.Hash{}, err
	}
	addr := keys.Address(kp)

	if err := w.adapter.Init(ctx, addr.HexString()); err != nil {
		return types.Hash{}, err
	}

	w.kp = kp
	w.address = addr
	w.pools = cloneRegistry(initial)
	if w.pools == nil {
		w.pools = make(map[uint64]map[string]PoolInfo)
	}
	return addr, nil
}

// Close drops the keypair and pool registry and closes the storage adapter.
func (w *Wallet) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.kp == nil {
		return ErrNotOpen
	}
	w.kp = nil
	w.address = types.Hash{}
	w.pools = nil
	return w.adapter.Close(ctx)
}

// Address returns the open session's viewing address.
func (w *Wallet) Address() (types.Hash, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.kp == nil {
		return types.Hash{}, ErrNotOpen
	}
	return w.address, nil
}

// SecretKey returns a copy of the open session's private scalar. It exists
// solely so the ops orchestrator, running in the same process as the open
// wallet, can fold the key into a proof witness; nothing outside this
// process ever receives it, and Close drops the wallet's own reference.
func (w *Wallet) SecretKey() (*big.Int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.kp == nil {
		return nil, ErrNotOpen
	}
	return new(big.Int).Set(w.kp.SK), nil
}

// KeyPair returns a copy of the open session's full keypair.
func (w *Wallet) KeyPair() (*types.KeyPair, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.kp == nil {
		return nil, ErrNotOpen
	}
	return &types.KeyPair{
		PKX: new(big.Int).Set(w.kp.PKX),
		PKY: new(big.Int).Set(w.kp.PKY),
		SK:  new(big.Int).Set(w.kp.SK),
	}, nil
}

// SetRegistry replaces the pool map for one chain, e.g. after loading a
// RootConfig or a fresh on-chain read outside of a registry-miss refresh.
func (w *Wallet) SetRegistry(chainID uint64, pools map[string]PoolInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pools == nil {
		w.pools = make(map[uint64]map[string]PoolInfo)
	}
	w.pools[chainID] = clonePoolMap(pools)
}

// ApplyMemos runs the apply_memos algorithm over one page of entry memos for
// chainID, returning the number of UTXOs newly recorded.
func (w *Wallet) ApplyMemos(ctx context.Context, chainID uint64, memos []types.EntryMemo) (int, error) {
	w.mu.RLock()
	kp := w.kp
	w.mu.RUnlock()
	if kp == nil {
		return 0, ErrNotOpen
	}

	type dedupeKey struct {
		chainID    uint64
		commitment types.Hash
	}
	seen := make(map[dedupeKey]bool)
	rows := make([]types.UtxoRecord, 0, len(memos))

	for _, m := range memos {
		// 1. Ignore entries with invalid cid; cid 0 is the entry service's
		// reserved "no leaf assigned" sentinel.
		if m.CID == 0 {
			continue
		}

		// 2. Attempt owner decode; recompute and verify the commitment.
		opening, err := memo.Decrypt(kp, m.MemoBytes)
		if err != nil {
			continue
		}
		recomputed := record.Commit(opening)
		if recomputed != m.Commitment {
			continue
		}

		// 3. Resolve the pool this commitment's asset_id names, refreshing
		// the registry once on a cache miss.
		pool, ok := w.lookupPool(chainID, opening.AssetID)
		if !ok {
			if err := w.refreshRegistry(ctx, chainID); err != nil {
				continue
			}
			pool, ok = w.lookupPool(chainID, opening.AssetID)
			if !ok {
				continue
			}
		}

		// 4. Nullifier, bound to the pool's freezer key.
		nullifier, err := record.Null(kp.SK, recomputed, pool.FreezerPK)
		if err != nil {
			continue
		}

		// 6a. Dedupe within the batch.
		key := dedupeKey{chainID, recomputed}
		if seen[key] {
			continue
		}
		seen[key] = true

		rows = append(rows, types.UtxoRecord{
			ChainID:    chainID,
			AssetID:    new(big.Int).Set(opening.AssetID),
			Amount:     new(big.Int).Set(opening.AssetAmount),
			Commitment: recomputed,
			Nullifier:  nullifier,
			MkIndex:    m.CID,
			IsFrozen:   opening.IsFrozen,
			IsSpent:    false,
			Memo:       m.MemoBytes,
			CreatedAt:  m.CreatedAt,
		})
	}

	if len(rows) == 0 {
		return 0, nil
	}

	if err := w.adapter.UpsertUTXOs(ctx, rows); err != nil {
		return 0, err
	}

	if w.bus != nil {
		w.bus.Emit(eventbus.Event{
			Kind:             eventbus.KindWalletUtxoUpdate,
			WalletUtxoUpdate: &eventbus.WalletUtxoUpdate{ChainID: chainID, Created: len(rows)},
		})
	}
	return len(rows), nil
}

// MarkSpent records nullifiers as spent for chainID, emitting a
// wallet:utxo:update event when any row was actually affected.
func (w *Wallet) MarkSpent(ctx context.Context, chainID uint64, nullifiers []types.Hash) (int, error) {
	if !w.IsOpen() {
		return 0, ErrNotOpen
	}

	n, err := w.adapter.MarkSpent(ctx, chainID, nullifiers)
	if err != nil {
		return 0, err
	}
	if n > 0 && w.bus != nil {
		w.bus.Emit(eventbus.Event{
			Kind:             eventbus.KindWalletUtxoUpdate,
			WalletUtxoUpdate: &eventbus.WalletUtxoUpdate{ChainID: chainID, Spent: n},
		})
	}
	return n, nil
}

// Balance sums amount over unspent, unfrozen UTXOs for (chainID, assetID).
func (w *Wallet) Balance(ctx context.Context, chainID uint64, assetID *big.Int) (*big.Int, error) {
	if !w.IsOpen() {
		return nil, ErrNotOpen
	}

	falseVal := false
	assetStr := assetID.String()
	rows, err := w.adapter.ListUTXOs(ctx, storage.UTXOQuery{
		ChainID:  &chainID,
		AssetID:  &assetStr,
		IsSpent:  &falseVal,
		IsFrozen: &falseVal,
	})
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, r := range rows {
		total.Add(total, r.Amount)
	}
	return total, nil
}

func (w *Wallet) lookupPool(chainID uint64, poolID *big.Int) (PoolInfo, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	chainPools, ok := w.pools[chainID]
	if !ok {
		return PoolInfo{}, false
	}
	info, ok := chainPools[poolID.String()]
	return info, ok
}

func (w *Wallet) refreshRegistry(ctx context.Context, chainID uint64) error {
	if w.refresh == nil {
		return errors.New("wallet: registry miss and no refresher configured")
	}
	fresh, err := w.refresh(ctx, chainID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pools == nil {
		w.pools = make(map[uint64]map[string]PoolInfo)
	}
	w.pools[chainID] = fresh
	return nil
}

// BuildRegistry derives a chain's pool map directly from its TokenConfig
// list: each token's decimal id is the pool_id key, and its viewer/freezer
// decimal-string coordinates are parsed into curve points.
func BuildRegistry(chain types.ChainConfig) (map[string]PoolInfo, error) {
	out := make(map[string]PoolInfo, len(chain.Tokens))
	for _, tok := range chain.Tokens {
		assetID, ok := new(big.Int).SetString(tok.ID, 10)
		if !ok {
			return nil, fmt.Errorf("wallet: token %s has invalid decimal id %q", tok.Symbol, tok.ID)
		}
		viewer, err := parsePointDecimal(tok.ViewerPKX, tok.ViewerPKY)
		if err != nil {
			return nil, fmt.Errorf("wallet: token %s viewer_pk: %w", tok.Symbol, err)
		}
		freezer, err := parsePointDecimal(tok.FreezerPKX, tok.FreezerPKY)
		if err != nil {
			return nil, fmt.Errorf("wallet: token %s freezer_pk: %w", tok.Symbol, err)
		}
		out[assetID.String()] = PoolInfo{AssetID: assetID, ViewerPK: viewer, FreezerPK: freezer}
	}
	return out, nil
}

func parsePointDecimal(xDec, yDec string) (field.Point, error) {
	x, ok := new(big.Int).SetString(xDec, 10)
	if !ok {
		return field.Point{}, fmt.Errorf("invalid decimal x %q", xDec)
	}
	y, ok := new(big.Int).SetString(yDec, 10)
	if !ok {
		return field.Point{}, fmt.Errorf("invalid decimal y %q", yDec)
	}
	pt := field.Point{X: field.FromBigInt(x), Y: field.FromBigInt(y)}
	if !pt.IsOnCurve() {
		return field.Point{}, field.ErrNotOnCurve
	}
	return pt, nil
}

func cloneRegistry(src map[uint64]map[string]PoolInfo) map[uint64]map[string]PoolInfo {
	if src == nil {
		return nil
	}
	out := make(map[uint64]map[string]PoolInfo, len(src))
	for chainID, pools := range src {
		out[chainID] = clonePoolMap(pools)
	}
	return out
}

func clonePoolMap(src map[string]PoolInfo) map[string]PoolInfo {
	out := make(map[string]PoolInfo, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
