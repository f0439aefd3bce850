package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ocash-labs/sdk-core/internal/eventbus"
	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/keys"
	"github.com/ocash-labs/sdk-core/internal/memo"
	"github.com/ocash-labs/sdk-core/internal/record"
	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/internal/storage/memory"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

const testSeed = "correct horse battery staple seed"

func mustKeyPair(t *testing.T, nonce string) *types.KeyPair {
	t.Helper()
	kp, err := keys.Derive(testSeed, nonce)
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

func identityPoint() field.Point { return field.Identity() }

// buildMemo encrypts a record opening for owner, returning the entry memo
// plus the commitment it recomputes to.
func buildMemo(t *testing.T, owner *types.KeyPair, cid uint64, assetID, amount *big.Int) types.EntryMemo {
	t.Helper()
	blinding, err := field.RandomScalarBelow(field.Order)
	if err != nil {
		t.Fatal(err)
	}
	ro := &types.RecordOpening{
		AssetID:        assetID,
		AssetAmount:    amount,
		UserPKX:        owner.PKX,
		UserPKY:        owner.PKY,
		BlindingFactor: blinding,
		IsFrozen:       false,
	}
	cm := record.Commit(ro)
	ownerPK := field.Point{X: field.FromBigInt(owner.PKX), Y: field.FromBigInt(owner.PKY)}
	ciphertext, err := memo.CreateFor(ownerPK, ro)
	if err != nil {
		t.Fatal(err)
	}
	return types.EntryMemo{Commitment: cm, MemoBytes: ciphertext, CID: cid}
}

func newTestWallet() (*Wallet, *memory.Store, *eventbus.Bus) {
	store := memory.New()
	bus := eventbus.New()
	w := New(store, bus, nil)
	return w, store, bus
}

func TestOpenCloseLifecycle(t *testing.T) {
	w, _, _ := newTestWallet()
	ctx := context.Background()

	if w.IsOpen() {
		t.Fatal("fresh wallet should not be open")
	}
	if _, err := w.ApplyMemos(ctx, 1, nil); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen before Open, got %v", err)
	}

	addr, err := w.Open(ctx, testSeed, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if addr.IsZero() {
		t.Fatal("expected a non-zero viewing address")
	}
	if !w.IsOpen() {
		t.Fatal("wallet should be open after Open")
	}
	if _, err := w.Open(ctx, testSeed, "", nil); err != ErrAlreadyOpen {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}

	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if w.IsOpen() {
		t.Fatal("wallet should not be open after Close")
	}
	if err := w.Close(ctx); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen on double close, got %v", err)
	}
}

func TestApplyMemosCreatesOwnedUtxo(t *testing.T) {
	w, store, bus := newTestWallet()
	ctx := context.Background()

	var gotUpdate *eventbus.WalletUtxoUpdate
	bus.Subscribe(eventbus.KindWalletUtxoUpdate, func(ev eventbus.Event) { gotUpdate = ev.WalletUtxoUpdate })

	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}
	kp := mustKeyPair(t, "")
	assetID := big.NewInt(7)
	w.SetRegistry(1, map[string]PoolInfo{
		assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
	})

	m := buildMemo(t, kp, 5, assetID, big.NewInt(1_000_000))
	created, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("expected 1 created utxo, got %d", created)
	}
	if gotUpdate == nil || gotUpdate.Created != 1 {
		t.Fatalf("expected wallet:utxo:update with Created=1, got %+v", gotUpdate)
	}

	rows, err := store.ListUTXOs(ctx, storage.UTXOQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 stored utxo, got %d", len(rows))
	}
	if rows[0].MkIndex != 5 {
		t.Fatalf("expected mk_index 5, got %d", rows[0].MkIndex)
	}
	if rows[0].Commitment != m.Commitment {
		t.Fatal("stored commitment should match the memo's")
	}
}

func TestApplyMemosDiscardsWrongRecipient(t *testing.T) {
	w, store, _ := newTestWallet()
	ctx := context.Background()
	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}

	other := mustKeyPair(t, "someone-else")
	assetID := big.NewInt(1)
	w.SetRegistry(1, map[string]PoolInfo{
		assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
	})

	m := buildMemo(t, other, 1, assetID, big.NewInt(1))
	created, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("expected 0 created for a memo addressed elsewhere, got %d", created)
	}
	rows, _ := store.ListUTXOs(ctx, storage.UTXOQuery{})
	if len(rows) != 0 {
		t.Fatal("no utxo should have been stored")
	}
}

func TestApplyMemosIgnoresInvalidCID(t *testing.T) {
	w, _, _ := newTestWallet()
	ctx := context.Background()
	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}
	kp := mustKeyPair(t, "")
	assetID := big.NewInt(3)
	w.SetRegistry(1, map[string]PoolInfo{
		assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
	})

	m := buildMemo(t, kp, 0, assetID, big.NewInt(10))
	created, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("expected cid=0 entries to be ignored, got %d created", created)
	}
}

func TestApplyMemosRefreshesRegistryOnMiss(t *testing.T) {
	store := memory.New()
	bus := eventbus.New()
	assetID := big.NewInt(42)
	refreshed := false
	refresh := func(_ context.Context, chainID uint64) (map[string]PoolInfo, error) {
		refreshed = true
		return map[string]PoolInfo{
			assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
		}, nil
	}
	w := New(store, bus, refresh)
	ctx := context.Background()
	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}

	kp := mustKeyPair(t, "")
	m := buildMemo(t, kp, 9, assetID, big.NewInt(5))
	created, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m})
	if err != nil {
		t.Fatal(err)
	}
	if !refreshed {
		t.Fatal("expected registry refresh on cache miss")
	}
	if created != 1 {
		t.Fatalf("expected 1 created after refresh, got %d", created)
	}
}

func TestApplyMemosDedupesWithinBatch(t *testing.T) {
	w, store, _ := newTestWallet()
	ctx := context.Background()
	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}
	kp := mustKeyPair(t, "")
	assetID := big.NewInt(2)
	w.SetRegistry(1, map[string]PoolInfo{
		assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
	})

	m := buildMemo(t, kp, 11, assetID, big.NewInt(99))
	created, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m, m})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("expected dedupe within batch to leave 1 created, got %d", created)
	}
	rows, _ := store.ListUTXOs(ctx, storage.UTXOQuery{})
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 stored row, got %d", len(rows))
	}
}

func TestBalanceSumsUnspentUnfrozen(t *testing.T) {
	w, _, _ := newTestWallet()
	ctx := context.Background()
	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}
	kp := mustKeyPair(t, "")
	assetID := big.NewInt(9)
	w.SetRegistry(1, map[string]PoolInfo{
		assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
	})

	m1 := buildMemo(t, kp, 1, assetID, big.NewInt(100))
	m2 := buildMemo(t, kp, 2, assetID, big.NewInt(250))
	if _, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m1, m2}); err != nil {
		t.Fatal(err)
	}

	bal, err := w.Balance(ctx, 1, assetID)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Cmp(big.NewInt(350)) != 0 {
		t.Fatalf("expected balance 350, got %s", bal.String())
	}
}

func TestMarkSpentUpdatesBalance(t *testing.T) {
	w, _, bus := newTestWallet()
	ctx := context.Background()
	if _, err := w.Open(ctx, testSeed, "", nil); err != nil {
		t.Fatal(err)
	}
	kp := mustKeyPair(t, "")
	assetID := big.NewInt(4)
	w.SetRegistry(1, map[string]PoolInfo{
		assetID.String(): {AssetID: assetID, ViewerPK: identityPoint(), FreezerPK: identityPoint()},
	})

	m := buildMemo(t, kp, 3, assetID, big.NewInt(77))
	if _, err := w.ApplyMemos(ctx, 1, []types.EntryMemo{m}); err != nil {
		t.Fatal(err)
	}

	nullifier, err := record.Null(kp.SK, m.Commitment, identityPoint())
	if err != nil {
		t.Fatal(err)
	}

	var spentEvents int
	bus.Subscribe(eventbus.KindWalletUtxoUpdate, func(ev eventbus.Event) {
		if ev.WalletUtxoUpdate.Spent > 0 {
			spentEvents++
		}
	})

	n, err := w.MarkSpent(ctx, 1, []types.Hash{nullifier})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row marked spent, got %d", n)
	}
	if spentEvents != 1 {
		t.Fatalf("expected 1 spent event, got %d", spentEvents)
	}

	bal, err := w.Balance(ctx, 1, assetID)
	if err != nil {
		t.Fatal(err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero balance after spend, got %s", bal.String())
	}
}

func TestBuildRegistryFromTokenConfig(t *testing.T) {
	base := field.BasePoint()
	chain := types.ChainConfig{
		ChainID: 1,
		Tokens: []types.TokenConfig{
			{
				ID:         "123",
				Symbol:     "TEST",
				ViewerPKX:  base.X.BigInt().String(),
				ViewerPKY:  base.Y.BigInt().String(),
				FreezerPKX: "0",
				FreezerPKY: "1",
			},
		},
	}
	pools, err := BuildRegistry(chain)
	if err != nil {
		t.Fatal(err)
	}
	info, ok := pools["123"]
	if !ok {
		t.Fatal("expected pool 123 in registry")
	}
	if !info.ViewerPK.Equal(base) {
		t.Fatal("viewer pk should decode to the base point")
	}
	if !info.FreezerPK.Equal(identityPoint()) {
		t.Fatal("freezer pk should decode to the identity point")
	}
}

