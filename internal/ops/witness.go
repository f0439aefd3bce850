package ops

import (
	"encoding/hex"
	"math/big"

	"github.com/ocash-labs/sdk-core/internal/entryclient"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

func decStr(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func decStrs(ns []*big.Int) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = decStr(n)
	}
	return out
}

// InputWitness is one spent record's full private input: the record opening
// that backs its commitment, the nullifier it will reveal, and the Merkle
// inclusion proof binding its commitment to the on-chain root (spec §4.K
// step 5: "combining planner-selected UTXOs with the remote proof
// siblings").
type InputWitness struct {
	AssetID    string   `json:"asset_id"`
	Amount     string   `json:"amount"`
	UserPKX    string   `json:"user_pk_x"`
	UserPKY    string   `json:"user_pk_y"`
	Blinding   string   `json:"blinding_factor"`
	IsFrozen   bool     `json:"is_frozen"`
	SecretKey  string   `json:"secret_key"`
	Commitment string   `json:"commitment"`
	Nullifier  string   `json:"nullifier"`
	MkIndex    uint64   `json:"mk_index"`
	MerklePath []string `json:"merkle_path"`
	LeafIndex  uint64   `json:"leaf_index"`
}

// OutputWitness is one produced record's opening plus the memo sealing it
// for its recipient.
type OutputWitness struct {
	AssetID  string `json:"asset_id"`
	Amount   string `json:"amount"`
	UserPKX  string `json:"user_pk_x"`
	UserPKY  string `json:"user_pk_y"`
	Blinding string `json:"blinding_factor"`
	IsFrozen bool   `json:"is_frozen"`
	Memo     string `json:"memo"`
}

func openingWitness(ro *types.RecordOpening) (assetID, amount, pkx, pky, blinding string, frozen bool) {
	return decStr(ro.AssetID), decStr(ro.AssetAmount), decStr(ro.UserPKX), decStr(ro.UserPKY), decStr(ro.BlindingFactor), ro.IsFrozen
}

func outputWitness(ro *types.RecordOpening, memo []byte) OutputWitness {
	assetID, amount, pkx, pky, blinding, frozen := openingWitness(ro)
	return OutputWitness{
		AssetID: assetID, Amount: amount, UserPKX: pkx, UserPKY: pky,
		Blinding: blinding, IsFrozen: frozen, Memo: "0x" + hex.EncodeToString(memo),
	}
}

// buildInputWitness pairs a selected UTXO (which the wallet already knows
// the opening of, reconstructed from its stored memo) with the remote
// Merkle proof for its leaf index.
func buildInputWitness(sk *big.Int, utxo types.UtxoRecord, opening *types.RecordOpening, proof entryclient.MerkleProof) InputWitness {
	assetID, amount, pkx, pky, blinding, frozen := openingWitness(opening)
	return InputWitness{
		AssetID: assetID, Amount: amount, UserPKX: pkx, UserPKY: pky,
		Blinding: blinding, IsFrozen: frozen,
		SecretKey:  decStr(sk),
		Commitment: utxo.Commitment.HexString(),
		Nullifier:  utxo.Nullifier.HexString(),
		MkIndex:    utxo.MkIndex,
		MerklePath: decStrs(proof.Path),
		LeafIndex:  proof.LeafIndex,
	}
}

// TransferWitness is the transfer-variant witness JSON (spec §4.K step 6).
type TransferWitness struct {
	Inputs        []InputWitness   `json:"inputs"`
	Outputs       [3]OutputWitness `json:"outputs"`
	ArrayHash     string           `json:"array_hash"`
	TotalElements string           `json:"total_elements"`
	ProofBinding  string           `json:"proof_binding"`
	Relayer       string           `json:"relayer"`
}

// WithdrawWitness is the withdraw-variant witness JSON.
type WithdrawWitness struct {
	Input         InputWitness  `json:"input"`
	Change        OutputWitness `json:"change"`
	BurnAmount    string        `json:"burn_amount"`
	ProtocolFee   string        `json:"protocol_fee"`
	RelayerFee    string        `json:"relayer_fee"`
	GasDropValue  string        `json:"gas_drop_value"`
	Recipient     string        `json:"recipient"`
	Relayer       string        `json:"relayer"`
	ArrayHash     string        `json:"array_hash"`
	TotalElements string        `json:"total_elements"`
	ProofBinding  string        `json:"proof_binding"`
}
