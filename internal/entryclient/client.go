// Package entryclient is the HTTP client for the entry service (spec §6): a
// paginated feed of commitment memos and spent-nullifier announcements per
// chain. No ecosystem HTTP client library appears anywhere in the
// retrieval pack (the teacher's own network surface is libp2p, not REST),
// so this wraps stdlib net/http directly rather than adopting an unrelated
// dependency for its own sake.
package entryclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ocash-labs/sdk-core/internal/sdkerr"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// DefaultPageSize is the sync engine's default page size for both resources.
const DefaultPageSize = 500

// DefaultRequestTimeout bounds a single page fetch.
const DefaultRequestTimeout = 10 * time.Second

// Client fetches memo and nullifier pages from one chain's entry service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client against baseURL, using DefaultRequestTimeout if
// httpClient is nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

type envelope[T any] struct {
	Code int `json:"code"`
	Data struct {
		Data  []T `json:"data"`
		Total int `json:"total"`
		Ready *bool `json:"ready,omitempty"`
	} `json:"data"`
}

type wireEntryMemo struct {
	Commitment          string  `json:"commitment"`
	Memo                string  `json:"memo"`
	CID                 uint64  `json:"cid"`
	CreatedAt           *uint64 `json:"created_at,omitempty"`
	IsTransparent       *bool   `json:"is_transparent,omitempty"`
	AssetID             *string `json:"asset_id,omitempty"`
	Amount              *string `json:"amount,omitempty"`
}

type wireEntryNullifier struct {
	Nullifier string  `json:"nullifier"`
	CreatedAt *uint64 `json:"created_at,omitempty"`
}

// MemoPage is one page of the entry-service memo feed.
type MemoPage struct {
	Memos []types.EntryMemo
	Total int
}

// NullifierPage is one page of the entry-service nullifier feed, carrying
// the optional "ready" flag the list_by_block endpoint reports.
type NullifierPage struct {
	Nullifiers []types.EntryNullifier
	Total      int
	Ready      bool
}

// ListMemos fetches [offset, offset+limit) ascending by cid for address on
// chainID.
func (c *Client) ListMemos(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (MemoPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatUint(offset, 10))
	q.Set("limit", strconv.FormatUint(limit, 10))
	q.Set("chain_id", strconv.FormatUint(chainID, 10))
	q.Set("address", address.HexString())
	q.Set("order", "asc")

	var env envelope[wireEntryMemo]
	if err := c.getJSON(ctx, "/api/v1/viewing/memos/list", q, &env); err != nil {
		return MemoPage{}, sdkerr.Wrap(sdkerr.CodeSync, "entry.ListMemos", err, "chain_id", chainID)
	}

	out := make([]types.EntryMemo, 0, len(env.Data.Data))
	for _, w := range env.Data.Data {
		em, err := w.decode()
		if err != nil {
			return MemoPage{}, sdkerr.Wrap(sdkerr.CodeSync, "entry.ListMemos.decode", err, "chain_id", chainID)
		}
		out = append(out, em)
	}
	return MemoPage{Memos: out, Total: env.Data.Total}, nil
}

// ListNullifiers fetches a nullifier page for chainID.
func (c *Client) ListNullifiers(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (NullifierPage, error) {
	return c.listNullifiers(ctx, "/api/v1/viewing/nullifier/list", chainID, address, offset, limit)
}

// ListNullifiersByBlock is the block-indexed variant that additionally
// reports a "ready" flag gating further polling this tick.
func (c *Client) ListNullifiersByBlock(ctx context.Context, chainID uint64, address types.Hash, offset, limit uint64) (NullifierPage, error) {
	return c.listNullifiers(ctx, "/api/v1/viewing/nullifier/list_by_block", chainID, address, offset, limit)
}

func (c *Client) listNullifiers(ctx context.Context, path string, chainID uint64, address types.Hash, offset, limit uint64) (NullifierPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatUint(offset, 10))
	q.Set("limit", strconv.FormatUint(limit, 10))
	q.Set("chain_id", strconv.FormatUint(chainID, 10))
	q.Set("address", address.HexString())
	q.Set("order", "asc")

	var env envelope[wireEntryNullifier]
	if err := c.getJSON(ctx, path, q, &env); err != nil {
		return NullifierPage{}, sdkerr.Wrap(sdkerr.CodeSync, "entry.ListNullifiers", err, "chain_id", chainID)
	}

	out := make([]types.EntryNullifier, 0, len(env.Data.Data))
	for _, w := range env.Data.Data {
		en, err := w.decode()
		if err != nil {
			return NullifierPage{}, sdkerr.Wrap(sdkerr.CodeSync, "entry.ListNullifiers.decode", err, "chain_id", chainID)
		}
		out = append(out, en)
	}
	ready := env.Data.Ready != nil && *env.Data.Ready
	return NullifierPage{Nullifiers: out, Total: env.Data.Total, Ready: ready}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.BaseURL + path
	if q != nil {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("entryclient: %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (w wireEntryMemo) decode() (types.EntryMemo, error) {
	cm, err := decodeHash32(w.Commitment)
	if err != nil {
		return types.EntryMemo{}, fmt.Errorf("commitment: %w", err)
	}
	memoBytes, err := decodeHexBytes(w.Memo)
	if err != nil {
		return types.EntryMemo{}, fmt.Errorf("memo: %w", err)
	}
	em := types.EntryMemo{
		Commitment: cm,
		MemoBytes:  memoBytes,
		CID:        w.CID,
		CreatedAt:  w.CreatedAt,
	}
	if w.IsTransparent != nil {
		em.IsTransparent = *w.IsTransparent
	}
	if w.AssetID != nil {
		v, ok := new(big.Int).SetString(*w.AssetID, 10)
		if !ok {
			return types.EntryMemo{}, fmt.Errorf("asset_id: invalid decimal %q", *w.AssetID)
		}
		em.TransparentAssetID = v
	}
	if w.Amount != nil {
		v, ok := new(big.Int).SetString(*w.Amount, 10)
		if !ok {
			return types.EntryMemo{}, fmt.Errorf("amount: invalid decimal %q", *w.Amount)
		}
		em.TransparentAmount = v
	}
	return em, nil
}

func (w wireEntryNullifier) decode() (types.EntryNullifier, error) {
	n, err := decodeHash32(w.Nullifier)
	if err != nil {
		return types.EntryNullifier{}, fmt.Errorf("nullifier: %w", err)
	}
	return types.EntryNullifier{Nullifier: n, CreatedAt: w.CreatedAt}, nil
}

func decodeHash32(s string) (types.Hash, error) {
	return types.ParseHash(s)
}

func decodeHexBytes(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
