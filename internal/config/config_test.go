package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ocash.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRootConfig(t *testing.T) {
	body := `{
		"chains": [{
			"chain_id": 1,
			"rpc_url": "https://rpc.example",
			"entry_url": "https://entry.example",
			"relayer_url": "https://relayer.example",
			"merkle_proof_url": "https://merkle.example",
			"contract_address": "0x0000000000000000000000000000000000000001",
			"tokens": [{
				"id": "7",
				"symbol": "ETH",
				"decimals": 18,
				"wrapped_erc20": "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
				"viewer_pk_x": "1",
				"viewer_pk_y": "2",
				"freezer_pk_x": "0",
				"freezer_pk_y": "1",
				"deposit_fee_bps": 10,
				"withdraw_fee_bps": 20,
				"transfer_max_amount": "1000000",
				"withdraw_max_amount": "500000"
			}]
		}],
		"asset_overrides": {"transfer.circuit": ["https://assets.example/transfer.circuit"]}
	}`
	path := writeTempConfig(t, body)

	root, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Chains) != 1 {
		t.Fatalf("got %d chains, want 1", len(root.Chains))
	}
	chain := root.Chains[0]
	if chain.ChainID != 1 || chain.RPCURL != "https://rpc.example" {
		t.Fatalf("unexpected chain config: %+v", chain)
	}
	if len(chain.Tokens) != 1 {
		t.Fatalf("got %d tokens, want 1", len(chain.Tokens))
	}
	tok := chain.Tokens[0]
	if tok.ID != "7" || tok.Symbol != "ETH" || tok.Decimals != 18 {
		t.Fatalf("unexpected token config: %+v", tok)
	}
	if tok.TransferMaxAmount.String() != "1000000" {
		t.Fatalf("transfer max = %s, want 1000000", tok.TransferMaxAmount)
	}
	if tok.WithdrawMaxAmount.String() != "500000" {
		t.Fatalf("withdraw max = %s, want 500000", tok.WithdrawMaxAmount)
	}
	if len(root.AssetOverrides) != 1 {
		t.Fatalf("got %d asset overrides, want 1", len(root.AssetOverrides))
	}
}

func TestLoadRootConfigRejectsBadAddress(t *testing.T) {
	path := writeTempConfig(t, `{"chains":[{"chain_id":1,"contract_address":"not-an-address"}]}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed contract address")
	}
}

func TestLoadRootConfigRejectsBadDecimal(t *testing.T) {
	path := writeTempConfig(t, `{"chains":[{"chain_id":1,"contract_address":"0x0000000000000000000000000000000000000001","tokens":[{"id":"1","wrapped_erc20":"0x0000000000000000000000000000000000000002","transfer_max_amount":"not-a-number"}]}]}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a non-decimal transfer_max_amount")
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	if cfg.SyncPollMS != 5000 || cfg.SyncPageSize != 500 || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRuntimeConfigFillsDefaultsForMissingFields(t *testing.T) {
	path := writeTempConfig(t, `{"postgres_dsn": "postgres://localhost/ocash"}`)
	cfg, err := LoadRuntimeConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PostgresDSN != "postgres://localhost/ocash" {
		t.Fatalf("postgres_dsn = %q", cfg.PostgresDSN)
	}
	if cfg.SyncPollMS != 5000 {
		t.Fatalf("sync_poll_ms should keep its default, got %d", cfg.SyncPollMS)
	}
}

func TestLoadRuntimeConfigOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `{"sync_poll_ms": 1000, "log_level": "debug"}`)
	cfg, err := LoadRuntimeConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SyncPollMS != 1000 || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestWireRootConfigRoundTripsThroughJSON(t *testing.T) {
	// Sanity check that wireRootConfig's json tags actually match Load's
	// expected document shape (a stray struct-tag typo would otherwise
	// silently decode every field to its zero value).
	var w wireRootConfig
	raw := []byte(`{"chains":[{"chain_id":5}],"asset_overrides":{"a":["b"]}}`)
	if err := json.Unmarshal(raw, &w); err != nil {
		t.Fatal(err)
	}
	if len(w.Chains) != 1 || w.Chains[0].ChainID != 5 {
		t.Fatalf("unexpected decode: %+v", w)
	}
	if len(w.AssetOverrides["a"]) != 1 || w.AssetOverrides["a"][0] != "b" {
		t.Fatalf("unexpected asset overrides: %+v", w.AssetOverrides)
	}
}
