// Package config loads the root SDK configuration (spec §6) from JSON,
// following the same wire-struct-then-typed-struct convention
// internal/chain's relayer config and internal/entryclient's merkle
// response already use: the file's hex/decimal strings decode into a
// wireRootConfig first, then convert into pkg/types's typed RootConfig,
// the same two-step shape the teacher's storage.Config/DefaultConfig pair
// follows for its own settings.
package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ocash-labs/sdk-core/pkg/types"
)

type wireTokenConfig struct {
	ID                string `json:"id"`
	Symbol            string `json:"symbol"`
	Decimals          int    `json:"decimals"`
	WrappedERC20      string `json:"wrapped_erc20"`
	ViewerPKX         string `json:"viewer_pk_x"`
	ViewerPKY         string `json:"viewer_pk_y"`
	FreezerPKX        string `json:"freezer_pk_x"`
	FreezerPKY        string `json:"freezer_pk_y"`
	DepositFeeBps     uint32 `json:"deposit_fee_bps"`
	WithdrawFeeBps    uint32 `json:"withdraw_fee_bps"`
	TransferMaxAmount string `json:"transfer_max_amount"`
	WithdrawMaxAmount string `json:"withdraw_max_amount"`
}

type wireChainConfig struct {
	ChainID         uint64            `json:"chain_id"`
	RPCURL          string            `json:"rpc_url"`
	EntryURL        string            `json:"entry_url"`
	RelayerURL      string            `json:"relayer_url"`
	MerkleProofURL  string            `json:"merkle_proof_url"`
	ContractAddress string            `json:"contract_address"`
	Tokens          []wireTokenConfig `json:"tokens"`
}

type wireRootConfig struct {
	Chains         []wireChainConfig   `json:"chains"`
	AssetOverrides map[string][]string `json:"asset_overrides"`
}

// Load reads and decodes path into a types.RootConfig.
func Load(path string) (*types.RootConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var wire wireRootConfig
	if err := json.NewDecoder(f).Decode(&wire); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return wire.toRootConfig()
}

func (w wireRootConfig) toRootConfig() (*types.RootConfig, error) {
	root := &types.RootConfig{AssetOverrides: w.AssetOverrides}
	for _, wc := range w.Chains {
		cc, err := wc.toChainConfig()
		if err != nil {
			return nil, err
		}
		root.Chains = append(root.Chains, cc)
	}
	return root, nil
}

func (w wireChainConfig) toChainConfig() (types.ChainConfig, error) {
	contract, err := types.ParseAddress(w.ContractAddress)
	if err != nil {
		return types.ChainConfig{}, fmt.Errorf("config: chain %d: contract_address: %w", w.ChainID, err)
	}
	cc := types.ChainConfig{
		ChainID: w.ChainID, RPCURL: w.RPCURL, EntryURL: w.EntryURL,
		RelayerURL: w.RelayerURL, MerkleProofURL: w.MerkleProofURL,
		ContractAddress: contract,
	}
	for _, wt := range w.Tokens {
		tc, err := wt.toTokenConfig()
		if err != nil {
			return types.ChainConfig{}, fmt.Errorf("config: chain %d: %w", w.ChainID, err)
		}
		cc.Tokens = append(cc.Tokens, tc)
	}
	return cc, nil
}

func parseDecimal(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s: %q is not a decimal integer", field, s)
	}
	return v, nil
}

func (w wireTokenConfig) toTokenConfig() (types.TokenConfig, error) {
	wrapped, err := types.ParseAddress(w.WrappedERC20)
	if err != nil {
		return types.TokenConfig{}, fmt.Errorf("token %s: wrapped_erc20: %w", w.ID, err)
	}
	transferMax, err := parseDecimal("transfer_max_amount", w.TransferMaxAmount)
	if err != nil {
		return types.TokenConfig{}, fmt.Errorf("token %s: %w", w.ID, err)
	}
	withdrawMax, err := parseDecimal("withdraw_max_amount", w.WithdrawMaxAmount)
	if err != nil {
		return types.TokenConfig{}, fmt.Errorf("token %s: %w", w.ID, err)
	}
	return types.TokenConfig{
		ID: w.ID, Symbol: w.Symbol, Decimals: w.Decimals, WrappedERC20: wrapped,
		ViewerPKX: w.ViewerPKX, ViewerPKY: w.ViewerPKY,
		FreezerPKX: w.FreezerPKX, FreezerPKY: w.FreezerPKY,
		DepositFeeBps: w.DepositFeeBps, WithdrawFeeBps: w.WithdrawFeeBps,
		TransferMaxAmount: transferMax, WithdrawMaxAmount: withdrawMax,
	}, nil
}

// RuntimeConfig bundles the ambient settings a daemon/CLI needs beyond the
// per-chain RootConfig: storage backend selection, sync cadence, and the
// proof bridge HTTP endpoint, and the log level, following the teacher's
// storage.Config/DefaultConfig idiom of one flat struct with a constructor
// of sane defaults.
type RuntimeConfig struct {
	PostgresDSN    string `json:"postgres_dsn"`
	ProofBridgeURL string `json:"proof_bridge_url"`
	SyncPollMS     int    `json:"sync_poll_ms"`
	SyncPageSize   int    `json:"sync_page_size"`
	LogLevel       string `json:"log_level"`
}

// DefaultRuntimeConfig returns the daemon/CLI's default ambient settings.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		ProofBridgeURL: "http://localhost:9090",
		SyncPollMS:     5000,
		SyncPageSize:   500,
		LogLevel:       "info",
	}
}

// LoadRuntimeConfig reads and decodes path into a RuntimeConfig, filling
// unset fields from DefaultRuntimeConfig.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
