package record

import (
	"fmt"
	"math/big"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// MaxBlindingRetries bounds the retry loop CreateOpening runs when a freshly
// blinded record opening happens to commit to zero (spec §3).
const MaxBlindingRetries = 5

// CreateOpening builds a fresh RecordOpening for assetID/amount owned by
// userPK, drawing a uniformly random blinding factor and retrying up to
// MaxBlindingRetries times if the resulting commitment hashes to zero.
func CreateOpening(assetID, amount *big.Int, userPK field.Point, isFrozen bool) (*types.RecordOpening, error) {
	var last *types.RecordOpening
	for attempt := 0; attempt < MaxBlindingRetries; attempt++ {
		blinding, err := field.RandomScalarBelow(field.Modulus())
		if err != nil {
			return nil, err
		}
		ro := &types.RecordOpening{
			AssetID:        new(big.Int).Set(assetID),
			AssetAmount:    new(big.Int).Set(amount),
			UserPKX:        userPK.X.BigInt(),
			UserPKY:        userPK.Y.BigInt(),
			BlindingFactor: blinding,
			IsFrozen:       isFrozen,
		}
		cm := Commit(ro)
		if !cm.IsZero() {
			return ro, nil
		}
		last = ro
	}
	_ = last
	return nil, fmt.Errorf("record: commitment hashed to zero after %d attempts", MaxBlindingRetries)
}

// DummyOpening builds a zero-amount record opening owned by ownerPK, used to
// pad unused transfer/withdraw output slots.
func DummyOpening(assetID *big.Int, ownerPK field.Point) (*types.RecordOpening, error) {
	return CreateOpening(assetID, new(big.Int), ownerPK, false)
}
