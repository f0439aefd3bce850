package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func mustInit(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Init(context.Background(), "wallet-1"); err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleUTXO(chainID uint64, commitByte byte) types.UtxoRecord {
	var cm, nf types.Hash
	cm[31] = commitByte
	nf[31] = commitByte + 1
	return types.UtxoRecord{
		ChainID:    chainID,
		AssetID:    big.NewInt(1),
		Amount:     big.NewInt(100),
		Commitment: cm,
		Nullifier:  nf,
	}
}

func TestUpsertDedupesByChainAndCommitment(t *testing.T) {
	ctx := context.Background()
	s := mustInit(t)
	u := sampleUTXO(1, 0x01)
	if err := s.UpsertUTXOs(ctx, []types.UtxoRecord{u}); err != nil {
		t.Fatal(err)
	}
	u.Amount = big.NewInt(999)
	if err := s.UpsertUTXOs(ctx, []types.UtxoRecord{u}); err != nil {
		t.Fatal(err)
	}
	rows, err := s.ListUTXOs(ctx, storage.UTXOQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected dedupe to 1 row, got %d", len(rows))
	}
	if rows[0].Amount.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("expected upsert to replace amount, got %v", rows[0].Amount)
	}
}

func TestMarkSpentOnlyAffectsMatchingNullifiers(t *testing.T) {
	ctx := context.Background()
	s := mustInit(t)
	a := sampleUTXO(1, 0x01)
	b := sampleUTXO(1, 0x03)
	if err := s.UpsertUTXOs(ctx, []types.UtxoRecord{a, b}); err != nil {
		t.Fatal(err)
	}
	count, err := s.MarkSpent(ctx, 1, []types.Hash{a.Nullifier})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 spent, got %d", count)
	}
	rows, _ := s.ListUTXOs(ctx, storage.UTXOQuery{})
	var spentCount int
	for _, r := range rows {
		if r.IsSpent {
			spentCount++
		}
	}
	if spentCount != 1 {
		t.Fatalf("expected exactly 1 row marked spent, got %d", spentCount)
	}
}

func TestSyncCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := mustInit(t)
	cur := types.SyncCursor{Memo: 5, Nullifier: 3, Merkle: 10}
	if err := s.SetSyncCursor(ctx, 1, cur); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSyncCursor(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != cur {
		t.Fatalf("cursor mismatch: got %+v, want %+v", got, cur)
	}
}

func TestOperationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := mustInit(t)
	op, err := s.CreateOperation(ctx, types.StoredOperation{
		Type:    types.OperationDeposit,
		Status:  types.OperationCreated,
		ChainID: 1,
		TokenID: "1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.ID == "" {
		t.Fatal("expected an assigned operation id")
	}

	status := types.OperationSubmitted
	updated, err := s.UpdateOperation(ctx, op.ID, storage.OperationPatch{Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != types.OperationSubmitted {
		t.Fatalf("expected status submitted, got %s", updated.Status)
	}

	_, err = s.UpdateOperation(ctx, "nonexistent", storage.OperationPatch{})
	if err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOperationRetentionPrunesOldest(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.MaxRetention = 2
	if err := s.Init(ctx, "wallet-1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.CreateOperation(ctx, types.StoredOperation{
			Type:   types.OperationDeposit,
			Status: types.OperationCreated,
		}); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := s.ListOperations(ctx, storage.OperationQuery{Ascending: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected retention to keep 2 rows, got %d", len(rows))
	}
}

func TestClosedAdapterRejectsCalls(t *testing.T) {
	ctx := context.Background()
	s := mustInit(t)
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListUTXOs(ctx, storage.UTXOQuery{}); err != storage.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMerkleLeavesRange(t *testing.T) {
	ctx := context.Background()
	s := mustInit(t)
	leaves := make([]types.Hash, 5)
	for i := range leaves {
		leaves[i][31] = byte(i)
	}
	if err := s.AppendMerkleLeaves(ctx, 1, leaves); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMerkleLeaves(ctx, 1, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != leaves[1] || got[1] != leaves[2] {
		t.Fatalf("unexpected slice: %+v", got)
	}
	if err := s.ClearMerkleLeaves(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetMerkleLeaves(ctx, 1, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no leaves after clear, got %d", len(got))
	}
}
