// Package eventbus implements the SDK's typed event stream (spec §4.L): a
// sum type with one variant per event kind, delivered synchronously to
// subscribers, rather than a string-keyed dispatcher.
package eventbus

import (
	"sync"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

// Kind identifies an event's variant.
type Kind string

const (
	KindCoreProgress     Kind = "core:progress"
	KindCoreReady        Kind = "core:ready"
	KindSyncProgress     Kind = "sync:progress"
	KindWalletUtxoUpdate Kind = "wallet:utxo:update"
	KindOperationsUpdate Kind = "operations:update"
	KindZKPStart         Kind = "zkp:start"
	KindZKPDone          Kind = "zkp:done"
	KindError            Kind = "error"
	KindDebug            Kind = "debug"
)

// Event is the tagged union delivered to subscribers. Exactly one payload
// field is meaningful per Kind; the others are the zero value.
type Event struct {
	Kind Kind

	CoreProgress     *CoreProgress
	SyncProgress     *SyncProgress
	WalletUtxoUpdate *WalletUtxoUpdate
	OperationsUpdate *OperationsUpdate
	ZKP              *ZKPEvent
	Error            *ErrorEvent
	Debug            *DebugEvent
}

// CoreProgress reports coarse-grained SDK lifecycle progress ("core:ready"
// carries no payload beyond the Kind itself).
type CoreProgress struct {
	Stage   string
	Message string
}

// SyncProgress reports one (chain, resource) pass outcome.
type SyncProgress struct {
	ChainID  uint64
	Resource string // "memo" | "nullifier"
	Offset   uint64
	Rows     int
	Status   string // idle | running | error
}

// WalletUtxoUpdate reports how many UTXOs a wallet:apply_memos batch
// created or marked spent.
type WalletUtxoUpdate struct {
	ChainID uint64
	Created int
	Spent   int
}

// OperationsUpdate reports a StoredOperation's lifecycle transition.
type OperationsUpdate struct {
	Operation types.StoredOperation
}

// ZKPEvent marks the start or completion of a proof-generation call.
type ZKPEvent struct {
	OperationID string
	DurationMS  int64
	Err         string
}

// ErrorEvent carries a typed SDK error surfaced outside its originating call.
type ErrorEvent struct {
	Code    string
	Stage   string
	Message string
}

// DebugEvent is a free-form diagnostic line, off by default in production
// logging but always available on the bus.
type DebugEvent struct {
	Message string
	Fields  map[string]any
}

// Handler receives events. Implementations must not block: the bus calls
// handlers synchronously on the emitting goroutine.
type Handler func(Event)

// Bus is a typed, synchronous pub/sub fan-out.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for events of a specific kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// SubscribeAll registers h for every event the bus emits.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Emit delivers ev synchronously to all matching subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	kindHandlers := append([]Handler(nil), b.handlers[ev.Kind]...)
	allHandlers := append([]Handler(nil), b.all...)
	b.mu.RUnlock()

	for _, h := range kindHandlers {
		h(ev)
	}
	for _, h := range allHandlers {
		h(ev)
	}
}

// EmitError is a convenience wrapper building a KindError event.
func (b *Bus) EmitError(code, stage, message string) {
	b.Emit(Event{Kind: KindError, Error: &ErrorEvent{Code: code, Stage: stage, Message: message}})
}

// EmitDebug is a convenience wrapper building a KindDebug event.
func (b *Bus) EmitDebug(message string, fields map[string]any) {
	b.Emit(Event{Kind: KindDebug, Debug: &DebugEvent{Message: message, Fields: fields}})
}
