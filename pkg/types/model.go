package types

import "math/big"

// FreezeBit marks an amount as frozen; it is OR'd into the commitment's
// amount input at bit 128, never into the stored RecordOpening.AssetAmount.
const FreezeBit = uint(128)

// RecordOpening is the secret preimage behind a shielded UTXO commitment.
type RecordOpening struct {
	AssetID        *big.Int
	AssetAmount    *big.Int
	UserPKX        *big.Int
	UserPKY        *big.Int
	BlindingFactor *big.Int
	IsFrozen       bool
}

// AmountWithFreezeBit returns the amount used inside Commit: the stored
// amount, with bit 128 set iff the record is frozen.
func (ro *RecordOpening) AmountWithFreezeBit() *big.Int {
	v := new(big.Int).Set(ro.AssetAmount)
	if ro.IsFrozen {
		v.SetBit(v, int(FreezeBit), 1)
	}
	return v
}

// KeyPair is a BabyJubJub viewing keypair: user_pk = sk*G.
type KeyPair struct {
	PKX *big.Int
	PKY *big.Int
	SK  *big.Int
}

// UtxoRecord is a shielded UTXO the wallet believes it owns.
type UtxoRecord struct {
	ChainID    uint64
	AssetID    *big.Int
	Amount     *big.Int
	Commitment Hash
	Nullifier  Hash
	MkIndex    uint64
	IsFrozen   bool
	IsSpent    bool
	Memo       []byte
	CreatedAt  *uint64
}

// Key returns the (chain_id, commitment) dedupe key the storage adapter uses.
func (u *UtxoRecord) Key() (uint64, Hash) { return u.ChainID, u.Commitment }

// EntryMemo is a commitment/memo pair reported by the entry service.
type EntryMemo struct {
	Commitment        Hash
	MemoBytes         []byte
	CID               uint64
	CreatedAt         *uint64
	IsTransparent     bool
	TransparentAssetID *big.Int
	TransparentAmount  *big.Int
}

// EntryNullifier is a spent-nullifier announcement from the entry service.
type EntryNullifier struct {
	Nullifier Hash
	CreatedAt *uint64
}

// SyncCursor tracks the offsets a wallet has already absorbed for one chain.
type SyncCursor struct {
	Memo      uint64
	Nullifier uint64
	Merkle    uint64
}

// Regressed reports whether cur is a regression from prev (any offset
// decreased), per
// invariant I3 (cursors never decrease except via explicit reset).
func (cur SyncCursor) Regressed(prev SyncCursor) bool {
	return cur.Memo < prev.Memo || cur.Nullifier < prev.Nullifier || cur.Merkle < prev.Merkle
}

// OperationType enumerates the three user-facing pipelines.
type OperationType string

const (
	OperationDeposit  OperationType = "deposit"
	OperationTransfer OperationType = "transfer"
	OperationWithdraw OperationType = "withdraw"
)

// OperationStatus is the lifecycle state of a StoredOperation. Transitions
// are totally ordered per-operation: created < submitted < (confirmed|failed).
type OperationStatus string

const (
	OperationCreated   OperationStatus = "created"
	OperationSubmitted OperationStatus = "submitted"
	OperationConfirmed OperationStatus = "confirmed"
	OperationFailed    OperationStatus = "failed"
)

// StoredOperation is an append-only operation-log row.
type StoredOperation struct {
	ID             string
	Type           OperationType
	Status         OperationStatus
	ChainID        uint64
	TokenID        string
	Detail         map[string]any
	TxHash         *Hash
	RelayerTxHash  *string
	RequestURL     string
	Error          string
	CreatedAt      uint64
	UpdatedAt      uint64
}
