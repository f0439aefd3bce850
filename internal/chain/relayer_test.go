package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRelayerClientSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transfer" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Relayer == "" {
			t.Fatal("expected a relayer address in the request body")
		}
		json.NewEncoder(w).Encode(submitEnvelope{Code: 0, Data: "0xabc123"})
	}))
	defer srv.Close()

	c := NewRelayerClient(srv.URL, nil)
	hash, err := c.Submit(context.Background(), TransferRequest{Relayer: "0x00", ExtraData: [3]string{"0x", "0x", "0x"}})
	if err != nil {
		t.Fatal(err)
	}
	if hash != "0xabc123" {
		t.Fatalf("hash = %q, want 0xabc123", hash)
	}
}

func TestRelayerClientSubmitRejectsNonzeroCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(submitEnvelope{Code: 7, Data: ""})
	}))
	defer srv.Close()

	c := NewRelayerClient(srv.URL, nil)
	if _, err := c.Submit(context.Background(), TransferRequest{}); err == nil {
		t.Fatal("expected an error for a nonzero relayer response code")
	}
}

func TestRelayerClientTxHashNotYetMined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(txHashEnvelope{Code: 0, Data: ""})
	}))
	defer srv.Close()

	c := NewRelayerClient(srv.URL, nil)
	hash, ok, err := c.TxHash(context.Background(), "0xrelayertx")
	if err != nil {
		t.Fatal(err)
	}
	if ok || hash != "" {
		t.Fatal("expected no tx hash yet")
	}
}

func TestRelayerClientWaitForTxHashTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(txHashEnvelope{Code: 0, Data: ""})
	}))
	defer srv.Close()

	c := NewRelayerClient(srv.URL, nil)
	_, err := c.WaitForTxHash(context.Background(), "0xrelayertx", 10*time.Millisecond, 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestRelayerClientGetRelayerConfigCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{
			"config": {"relayer_address": "0x00000000000000000000000000000000000000aa", "chain_id": 1},
			"fee_configure": {
				"valid_time": 300,
				"transfer": {"0000000000000000000000000000000000000000000000000000000000000001": {"fee": "10"}},
				"withdraw": {}
			},
			"fetched_at": 0
		}`))
	}))
	defer srv.Close()

	c := NewRelayerClient(srv.URL, nil)
	cfg1, err := c.GetRelayerConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cfg2, err := c.GetRelayerConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("server called %d times, want 1 (second call should hit the cache)", calls)
	}
	if cfg1 != cfg2 {
		t.Fatal("expected the cached config to be returned by reference")
	}
	if cfg1.ChainID != 1 {
		t.Fatalf("chain id = %d, want 1", cfg1.ChainID)
	}
	if len(cfg1.TransferFees) != 1 {
		t.Fatalf("transfer fees = %+v, want 1 entry", cfg1.TransferFees)
	}
}
