package record

import (
	"math/big"

	"github.com/ocash-labs/sdk-core/internal/field"
	"github.com/ocash-labs/sdk-core/internal/poseidon2"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// Commit computes the Poseidon2 commitment fingerprinting a record opening:
//
//	Commit(ro) = fold([pk.x, pk.y, blinding, asset_id, amount_with_freeze_bit], RECORD)
func Commit(ro *types.RecordOpening) types.Hash {
	elems := []field.Element{
		field.FromBigInt(ro.UserPKX),
		field.FromBigInt(ro.UserPKY),
		field.FromBigInt(ro.BlindingFactor),
		field.FromBigInt(ro.AssetID),
		field.FromBigInt(ro.AmountWithFreezeBit()),
	}
	h := poseidon2.HashSequence(poseidon2.DomainRecord, elems)
	return types.HashFromBig(h.BigInt())
}

// identityFreezer is the (0, 1) marker meaning "no freezer key configured".
func identityFreezer() field.Point { return field.Identity() }

// Null computes the nullifier for a spend of commitment cm by the holder of
// sk, bound to the pool's configured freezer key:
//
//	freezer_pk == (0,1): hash_domain(sk, cm, NULLIFIER)
//	otherwise: shared = freezer_pk * sk; key = hash_domain(shared.x, shared.y, KEYDER);
//	           hash_domain(key, cm, NULLIFIER)
func Null(sk *big.Int, cm types.Hash, freezerPK field.Point) (types.Hash, error) {
	cmElem := field.FromBytesBE(cm[:])

	if freezerPK.Equal(identityFreezer()) {
		skElem := field.FromBigInt(sk)
		out := poseidon2.HashDomain(skElem, cmElem, poseidon2.DomainNullifier)
		return types.HashFromBig(out.BigInt()), nil
	}

	if !freezerPK.IsOnCurve() {
		return types.Hash{}, ErrOffCurve
	}
	shared := freezerPK.ScalarMult(sk)
	key := poseidon2.HashDomain(shared.X, shared.Y, poseidon2.DomainKeyDer)
	out := poseidon2.HashDomain(key, cmElem, poseidon2.DomainNullifier)
	return types.HashFromBig(out.BigInt()), nil
}

// PoolId derives the pool identifier a token's viewer/freezer keypair
// defines on a given chain:
//
//	PoolId = fold([vx, vy, fx, fy], POLICY, seed = token_addr_as_field)
func PoolId(tokenAddr types.Address, viewerPK, freezerPK field.Point) types.Hash {
	seed := field.FromBytesBE(tokenAddr[:])
	elems := []field.Element{viewerPK.X, viewerPK.Y, freezerPK.X, freezerPK.Y}
	h := poseidon2.HashSequenceSeeded(poseidon2.DomainPolicy, seed, elems)
	return types.HashFromBig(h.BigInt())
}
