package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// RelayerConfigTTL is how long GET /api/v1/relayer_config responses are
// cached before being refetched (spec §6).
const RelayerConfigTTL = 5 * time.Minute

// DefaultPollInterval and DefaultPollTimeout bound wait_relayer_tx_hash
// (spec §4.K step 9) when the caller doesn't override them.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 120 * time.Second
)

// RelayerClient is the HTTP client for the relayer service (spec §6),
// following the same stdlib net/http convention as internal/entryclient:
// nothing in the retrieval pack reaches for an ecosystem REST client.
type RelayerClient struct {
	BaseURL string
	HTTP    *http.Client

	mu         sync.Mutex
	cfg        *RelayerConfig
	cfgFetched time.Time
}

// NewRelayerClient builds a RelayerClient against baseURL.
func NewRelayerClient(baseURL string, httpClient *http.Client) *RelayerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RelayerClient{BaseURL: baseURL, HTTP: httpClient}
}

// TransferRequest is the body of POST /api/v1/transfer.
type TransferRequest struct {
	Proof           json.RawMessage `json:"proof"`
	Input           json.RawMessage `json:"input"`
	ExtraData       [3]string       `json:"extra_data"`
	MerkleRootIndex string          `json:"merkle_root_index"`
	ArrayHashIndex  string          `json:"array_hash_index"`
	Relayer         string          `json:"relayer"`
	FlattenInput    bool            `json:"flatten_input"`
}

// BurnRequest is the body of POST /api/v1/burn.
type BurnRequest struct {
	Proof            json.RawMessage `json:"proof"`
	Input            json.RawMessage `json:"input"`
	MerkleRootIndex  string          `json:"merkle_root_index"`
	ArrayHashIndex   string          `json:"array_hash_index"`
	Relayer          string          `json:"relayer"`
	FlattenInput     bool            `json:"flatten_input"`
	RecipientAddress string          `json:"recipient_address"`
	RelayerFee       string          `json:"relayer_fee"`
	GasDropValue     string          `json:"gas_drop_value"`
	BurnAmount       string          `json:"burn_amount"`
	ExtraData        string          `json:"extra_data"`
}

type submitEnvelope struct {
	Code int    `json:"code"`
	Data string `json:"data"`
}

// Submit posts a transfer request and returns the relayer's tx hash.
func (c *RelayerClient) Submit(ctx context.Context, req TransferRequest) (string, error) {
	return c.post(ctx, "/api/v1/transfer", req)
}

// SubmitBurn posts a withdraw (burn) request and returns the relayer's tx hash.
func (c *RelayerClient) SubmitBurn(ctx context.Context, req BurnRequest) (string, error) {
	return c.post(ctx, "/api/v1/burn", req)
}

func (c *RelayerClient) post(ctx context.Context, path string, body any) (string, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return "", sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.post", err, "path", path)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return "", sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.post", err, "path", path)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.post", err, "path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", sdkerr.New(sdkerr.CodeRelayer, "chain.RelayerClient.post",
			map[string]any{"path": path, "status": resp.StatusCode}, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var env submitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.post.decode", err, "path", path)
	}
	if env.Code != 0 {
		return "", sdkerr.New(sdkerr.CodeRelayer, "chain.RelayerClient.post",
			map[string]any{"path": path, "code": env.Code}, fmt.Errorf("relayer returned code %d", env.Code))
	}
	return env.Data, nil
}

type txHashEnvelope struct {
	Code int    `json:"code"`
	Data string `json:"data"`
}

// TxHash polls GET /api/v1/txhash?txhash=<relayerTxHash> once.
func (c *RelayerClient) TxHash(ctx context.Context, relayerTxHash string) (string, bool, error) {
	q := url.Values{}
	q.Set("txhash", relayerTxHash)
	u := c.BaseURL + "/api/v1/txhash?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.TxHash", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", false, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.TxHash", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, sdkerr.New(sdkerr.CodeRelayer, "chain.RelayerClient.TxHash",
			map[string]any{"status": resp.StatusCode}, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var env txHashEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", false, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.TxHash.decode", err)
	}
	if env.Data == "" {
		return "", false, nil
	}
	return env.Data, true, nil
}

// WaitForTxHash polls TxHash at interval (DefaultPollInterval if zero) until
// an EVM tx hash appears or timeout (DefaultPollTimeout if zero) expires, or
// ctx is cancelled (spec §4.K step 9).
func (c *RelayerClient) WaitForTxHash(ctx context.Context, relayerTxHash string, interval, timeout time.Duration) (string, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		hash, ok, err := c.TxHash(ctx, relayerTxHash)
		if err != nil {
			return "", err
		}
		if ok {
			return hash, nil
		}
		if time.Now().After(deadline) {
			return "", sdkerr.New(sdkerr.CodeRelayer, "chain.RelayerClient.WaitForTxHash",
				map[string]any{"relayer_tx_hash": relayerTxHash}, fmt.Errorf("timed out after %s", timeout))
		}
		select {
		case <-ctx.Done():
			return "", sdkerr.Wrap(sdkerr.CodeRelayer, "chain.RelayerClient.WaitForTxHash", ctx.Err(), "relayer_tx_hash", relayerTxHash)
		case <-ticker.C:
		}
	}
}

// RelayerConfig is GET /api/v1/relayer_config's decoded response.
type RelayerConfig struct {
	RelayerAddress types.Address
	ChainID        uint64
	FeeValidTime   uint64
	TransferFees   map[types.Hash]string // pool-id (32-byte hex) -> decimal fee
	WithdrawFees   map[types.Hash]string
	FetchedAt      time.Time
}

type wireFeeEntry struct {
	Fee string `json:"fee"`
}

type wireRelayerConfig struct {
	Config struct {
		RelayerAddress string `json:"relayer_address"`
		ChainID        uint64 `json:"chain_id"`
	} `json:"config"`
	FeeConfigure struct {
		ValidTime uint64                  `json:"valid_time"`
		Transfer  map[string]wireFeeEntry `json:"transfer"`
		Withdraw  map[string]wireFeeEntry `json:"withdraw"`
	} `json:"fee_configure"`
	FetchedAt int64 `json:"fetched_at"`
}

// GetRelayerConfig fetches GET /api/v1/relayer_config, reusing the cached
// value if it is younger than RelayerConfigTTL.
func (c *RelayerClient) GetRelayerConfig(ctx context.Context) (*RelayerConfig, error) {
	c.mu.Lock()
	if c.cfg != nil && time.Since(c.cfgFetched) < RelayerConfigTTL {
		cfg := c.cfg
		c.mu.Unlock()
		return cfg, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/relayer_config", nil)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.GetRelayerConfig", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.GetRelayerConfig", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, sdkerr.New(sdkerr.CodeRelayer, "chain.GetRelayerConfig",
			map[string]any{"status": resp.StatusCode}, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var wire wireRelayerConfig
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.GetRelayerConfig.decode", err)
	}

	relayerAddr, err := types.ParseAddress(wire.Config.RelayerAddress)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.GetRelayerConfig.decode", err)
	}

	transferFees, err := decodePoolFeeTable(wire.FeeConfigure.Transfer)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.GetRelayerConfig.decode", err)
	}
	withdrawFees, err := decodePoolFeeTable(wire.FeeConfigure.Withdraw)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeRelayer, "chain.GetRelayerConfig.decode", err)
	}

	cfg := &RelayerConfig{
		RelayerAddress: relayerAddr,
		ChainID:        wire.Config.ChainID,
		FeeValidTime:   wire.FeeConfigure.ValidTime,
		TransferFees:   transferFees,
		WithdrawFees:   withdrawFees,
		FetchedAt:      time.Now(),
	}

	c.mu.Lock()
	c.cfg, c.cfgFetched = cfg, time.Now()
	c.mu.Unlock()
	return cfg, nil
}

func decodePoolFeeTable(wire map[string]wireFeeEntry) (map[types.Hash]string, error) {
	out := make(map[types.Hash]string, len(wire))
	for poolHex, entry := range wire {
		id, err := parsePoolHex(poolHex)
		if err != nil {
			return nil, err
		}
		out[id] = entry.Fee
	}
	return out, nil
}

// parsePoolHex decodes a 32-byte big-endian zero-padded hex pool id, with or
// without the 0x prefix (spec §6 doesn't pin the table-key encoding to one).
func parsePoolHex(s string) (types.Hash, error) {
	if len(s) >= 2 && s[0:2] != "0x" {
		s = "0x" + s
	}
	return types.ParseHash(s)
}
