package types

import "math/big"

// TokenConfig describes one shielded-pool asset on a chain (§6).
type TokenConfig struct {
	ID                string // decimal string of the field-element asset id
	Symbol            string
	Decimals          int
	WrappedERC20      Address
	ViewerPKX         string // decimal string
	ViewerPKY         string
	FreezerPKX        string
	FreezerPKY        string
	DepositFeeBps     uint32
	WithdrawFeeBps    uint32
	TransferMaxAmount *big.Int
	WithdrawMaxAmount *big.Int
}

// ChainConfig describes one chain's endpoints and the tokens pooled on it.
type ChainConfig struct {
	ChainID         uint64
	RPCURL          string
	EntryURL        string
	RelayerURL      string
	MerkleProofURL  string
	ContractAddress Address
	Tokens          []TokenConfig
}

// RootConfig is the top-level SDK configuration (§6).
type RootConfig struct {
	Chains []ChainConfig
	// AssetOverrides maps an asset-file name (used by the proof bridge to
	// load circuit assets) to one or more source URLs or local paths.
	AssetOverrides map[string][]string
}

// ChainByID looks up a chain's configuration, returning ok=false if absent.
func (r *RootConfig) ChainByID(chainID uint64) (ChainConfig, bool) {
	for _, c := range r.Chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return ChainConfig{}, false
}

// TokenByWrapped looks up a token config by its wrapped ERC20 address within
// a chain.
func (c *ChainConfig) TokenByWrapped(addr Address) (TokenConfig, bool) {
	for _, t := range c.Tokens {
		if t.WrappedERC20 == addr {
			return t, true
		}
	}
	return TokenConfig{}, false
}
