// Package syncengine implements the sync engine (spec §4.I): per-chain,
// per-resource cursor tracking over the entry service's memo and nullifier
// feeds, driving wallet.ApplyMemos / wallet.MarkSpent and exposing both a
// one-shot pass and a scheduled background loop.
//
// The scheduled loop follows the same shape as the teacher's
// p2p.SyncManager: a mutex-guarded state struct, a per-chain "in flight"
// flag that makes Start idempotent and skips overlapping ticks, and a
// goroutine per running chain cancelled via context.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ocash-labs/sdk-core/internal/eventbus"
	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/internal/wallet"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// DefaultPageSize is the page size a pass uses when Config.PageSize is zero.
const DefaultPageSize = 500

// DefaultPollInterval is the scheduled-loop tick interval used when a
// non-finite or non-positive poll_ms is supplied to Start (spec §4.I: "a
// NaN/non-finite poll_ms is coerced to the default").
const DefaultPollInterval = 5 * time.Second

// DefaultRequestTimeout bounds a single page fetch when Config.RequestTimeout
// is zero.
const DefaultRequestTimeout = 10 * time.Second

// Resource names the two feeds an Engine tracks per chain.
type Resource string

const (
	ResourceMemo       Resource = "memo"
	ResourceNullifier  Resource = "nullifier"
)

// AllResources is the default resource set for SyncOnce / Start.
var AllResources = []Resource{ResourceMemo, ResourceNullifier}

// Status is a (chain, resource) pair's last-known state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// EntrySource is the subset of internal/entryclient.Client the engine needs,
// kept as an interface so tests can fake the feed without an HTTP server.
type EntrySource interface {
	ListMemos(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (MemoPage, error)
	ListNullifiers(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (NullifierPage, error)
}

// MemoPage mirrors entryclient.MemoPage, redeclared here so the EntrySource
// interface doesn't force every fake implementation to import entryclient;
// EntryClientSource in entryadapter.go performs the actual conversion.
type MemoPage struct {
	Memos []types.EntryMemo
	Total int
}

// NullifierPage mirrors entryclient.NullifierPage.
type NullifierPage struct {
	Nullifiers []types.EntryNullifier
	Total      int
	Ready      bool
}

// ChainSource is one chain's wallet address and entry-service client.
type ChainSource struct {
	ChainID uint64
	Address types.Hash
	Entry   EntrySource
}

// Config tunes a pass's paging behavior.
type Config struct {
	PageSize       int
	RequestTimeout time.Duration
	ContinueOnError bool
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

type chainState struct {
	running bool
	cancel  context.CancelFunc
}

type statusKey struct {
	chainID  uint64
	resource Resource
}

// Engine is the sync engine for one open wallet session.
type Engine struct {
	wallet  *wallet.Wallet
	adapter storage.Adapter
	bus     *eventbus.Bus
	sources map[uint64]ChainSource

	mu       sync.Mutex
	statuses map[statusKey]Status
	chains   map[uint64]*chainState
}

// New builds an Engine over w, storing cursors in adapter (the same storage
// adapter the wallet session was opened with) and emitting progress/error
// events on bus (which may be nil), tracking the given chain sources.
func New(w *wallet.Wallet, adapter storage.Adapter, bus *eventbus.Bus, sources []ChainSource) *Engine {
	m := make(map[uint64]ChainSource, len(sources))
	for _, s := range sources {
		m[s.ChainID] = s
	}
	return &Engine{
		wallet:   w,
		adapter:  adapter,
		bus:      bus,
		sources:  m,
		statuses: make(map[statusKey]Status),
		chains:   make(map[uint64]*chainState),
	}
}

func (e *Engine) cursor(ctx context.Context, chainID uint64) (types.SyncCursor, error) {
	cur, err := e.adapter.GetSyncCursor(ctx, chainID)
	if err != nil && err != storage.ErrNotFound {
		return types.SyncCursor{}, err
	}
	return cur, nil
}

func (e *Engine) setCursor(ctx context.Context, chainID uint64, cur types.SyncCursor) error {
	return e.adapter.SetSyncCursor(ctx, chainID, cur)
}

// Status reports the last-known status of one (chain, resource) pair.
func (e *Engine) Status(chainID uint64, resource Resource) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.statuses[statusKey{chainID, resource}]
	if !ok {
		return StatusIdle
	}
	return st
}

func (e *Engine) setStatus(chainID uint64, resource Resource, st Status) {
	e.mu.Lock()
	e.statuses[statusKey{chainID, resource}] = st
	e.mu.Unlock()
}

// SyncOnce runs a single pass over chainIDs (all configured chains if empty)
// and resources (AllResources if empty), per spec §4.I. It returns the first
// error encountered when continueOnError is false; otherwise it runs every
// (chain, resource) pair and returns a joined error, if any.
func (e *Engine) SyncOnce(ctx context.Context, chainIDs []uint64, resources []Resource, cfg Config) error {
	cfg = cfg.withDefaults()
	if len(chainIDs) == 0 {
		chainIDs = e.configuredChainIDs()
	}
	if len(resources) == 0 {
		resources = AllResources
	}

	var errs []error
	for _, chainID := range chainIDs {
		src, ok := e.sources[chainID]
		if !ok {
			continue
		}
		for _, res := range resources {
			if err := e.runPass(ctx, src, res, cfg); err != nil {
				errs = append(errs, err)
				if !cfg.ContinueOnError {
					return joinErrors(errs)
				}
			}
		}
	}
	return joinErrors(errs)
}

func (e *Engine) configuredChainIDs() []uint64 {
	out := make([]uint64, 0, len(e.sources))
	for id := range e.sources {
		out = append(out, id)
	}
	return out
}

// runPass advances one (chain, resource) cursor by repeated page fetches
// until the feed reports fewer rows than a full page, or (for nullifiers by
// block) a "ready" flag blocks further polling this tick.
func (e *Engine) runPass(ctx context.Context, src ChainSource, res Resource, cfg Config) error {
	e.setStatus(src.ChainID, res, StatusRunning)

	for {
		reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		rows, blocked, err := e.fetchAndApply(reqCtx, src, res, cfg.PageSize)
		cancel()

		if err != nil {
			e.setStatus(src.ChainID, res, StatusError)
			e.emitError(src.ChainID, res, err)
			return err
		}
		e.emitProgress(src.ChainID, res, StatusRunning, rows)
		if rows < cfg.PageSize || blocked {
			break
		}
	}

	e.setStatus(src.ChainID, res, StatusIdle)
	e.emitProgress(src.ChainID, res, StatusIdle, 0)
	return nil
}

// fetchAndApply fetches one page at the resource's current cursor offset,
// applies it to the wallet, and advances the cursor by the number of rows
// actually applied. The cursor is left unchanged on any failure.
func (e *Engine) fetchAndApply(ctx context.Context, src ChainSource, res Resource, pageSize int) (rows int, blocked bool, err error) {
	cur, err := e.cursor(ctx, src.ChainID)
	if err != nil {
		return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.cursor", err, "chain_id", src.ChainID)
	}

	switch res {
	case ResourceMemo:
		page, err := src.Entry.ListMemos(ctx, src.ChainID, src.Address, cur.Memo, uint64(pageSize))
		if err != nil {
			return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.memo", err, "chain_id", src.ChainID)
		}
		if len(page.Memos) == 0 {
			return 0, false, nil
		}
		if _, err := e.wallet.ApplyMemos(ctx, src.ChainID, page.Memos); err != nil {
			return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.apply_memos", err, "chain_id", src.ChainID)
		}
		cur.Memo += uint64(len(page.Memos))
		if err := e.setCursor(ctx, src.ChainID, cur); err != nil {
			return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.set_cursor", err, "chain_id", src.ChainID)
		}
		return len(page.Memos), false, nil

	case ResourceNullifier:
		page, err := src.Entry.ListNullifiers(ctx, src.ChainID, src.Address, cur.Nullifier, uint64(pageSize))
		if err != nil {
			return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.nullifier", err, "chain_id", src.ChainID)
		}
		if len(page.Nullifiers) == 0 {
			return 0, page.Ready, nil
		}
		nullifiers := make([]types.Hash, len(page.Nullifiers))
		for i, n := range page.Nullifiers {
			nullifiers[i] = n.Nullifier
		}
		if _, err := e.wallet.MarkSpent(ctx, src.ChainID, nullifiers); err != nil {
			return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.mark_spent", err, "chain_id", src.ChainID)
		}
		cur.Nullifier += uint64(len(page.Nullifiers))
		if err := e.setCursor(ctx, src.ChainID, cur); err != nil {
			return 0, false, sdkerr.Wrap(sdkerr.CodeSync, "syncengine.fetchAndApply.set_cursor", err, "chain_id", src.ChainID)
		}
		return len(page.Nullifiers), page.Ready, nil

	default:
		return 0, false, sdkerr.New(sdkerr.CodeSync, "syncengine.fetchAndApply",
			map[string]any{"resource": string(res)}, fmt.Errorf("unknown resource %q", res))
	}
}

func (e *Engine) emitProgress(chainID uint64, res Resource, status Status, rows int) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(eventbus.Event{
		Kind: eventbus.KindSyncProgress,
		SyncProgress: &eventbus.SyncProgress{
			ChainID:  chainID,
			Resource: string(res),
			Rows:     rows,
			Status:   string(status),
		},
	})
}

func (e *Engine) emitError(chainID uint64, res Resource, err error) {
	if e.bus == nil {
		return
	}
	code := sdkerr.CodeSync
	if c, ok := sdkerr.CodeOf(err); ok {
		code = c
	}
	e.bus.EmitError(string(code), fmt.Sprintf("syncengine.%s.%d", res, chainID), err.Error())
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		msg := errs[0].Error()
		for _, e := range errs[1:] {
			msg += "; " + e.Error()
		}
		return fmt.Errorf("%s", msg)
	}
}
