package syncengine

import (
	"context"

	"github.com/ocash-labs/sdk-core/internal/entryclient"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// EntryClientSource adapts *entryclient.Client to EntrySource. Nullifier
// polling uses the block-indexed endpoint so the engine can see its "ready"
// flag and stop polling early within a tick (spec §4.I).
type EntryClientSource struct {
	Client *entryclient.Client
}

func (a EntryClientSource) ListMemos(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (MemoPage, error) {
	page, err := a.Client.ListMemos(ctx, chainID, address, offset, limit)
	if err != nil {
		return MemoPage{}, err
	}
	return MemoPage{Memos: page.Memos, Total: page.Total}, nil
}

func (a EntryClientSource) ListNullifiers(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (NullifierPage, error) {
	page, err := a.Client.ListNullifiersByBlock(ctx, chainID, address, offset, limit)
	if err != nil {
		return NullifierPage{}, err
	}
	return NullifierPage{Nullifiers: page.Nullifiers, Total: page.Total, Ready: page.Ready}, nil
}
