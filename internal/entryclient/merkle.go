package entryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ocash-labs/sdk-core/internal/sdkerr"
)

// MerkleProof is one input cid's sibling path, leaf-index-ordered
// big-integer-string field elements per spec §6.
type MerkleProof struct {
	Path      []*big.Int
	LeafIndex uint64
}

// MerkleResponse is the merkle service's answer for a batch of cids.
type MerkleResponse struct {
	Proofs     []MerkleProof
	MerkleRoot *big.Int
	LatestCID  uint64
}

type wireMerkleProof struct {
	Path      []string `json:"path"`
	LeafIndex uint64   `json:"leaf_index"`
}

type wireMerkleResponse struct {
	Proof      []wireMerkleProof `json:"proof"`
	MerkleRoot string            `json:"merkle_root"`
	LatestCID  uint64            `json:"latest_cid"`
}

// MerkleClient fetches inclusion proofs for a batch of commitment indices.
type MerkleClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewMerkleClient builds a MerkleClient against baseURL.
func NewMerkleClient(baseURL string, httpClient *http.Client) *MerkleClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &MerkleClient{BaseURL: baseURL, HTTP: httpClient}
}

// FetchProofs requests inclusion proofs for cids, in order.
func (c *MerkleClient) FetchProofs(ctx context.Context, cids []uint64) (MerkleResponse, error) {
	q := url.Values{}
	for _, cid := range cids {
		q.Add("cid", strconv.FormatUint(cid, 10))
	}

	u := c.BaseURL + "/api/v1/merkle?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return MerkleResponse{}, sdkerr.Wrap(sdkerr.CodeMerkle, "merkle.FetchProofs", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return MerkleResponse{}, sdkerr.Wrap(sdkerr.CodeMerkle, "merkle.FetchProofs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return MerkleResponse{}, sdkerr.New(sdkerr.CodeMerkle, "merkle.FetchProofs",
			map[string]any{"status": resp.StatusCode}, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var wire wireMerkleResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return MerkleResponse{}, sdkerr.Wrap(sdkerr.CodeMerkle, "merkle.FetchProofs.decode", err)
	}

	root, ok := new(big.Int).SetString(wire.MerkleRoot, 10)
	if !ok {
		return MerkleResponse{}, sdkerr.New(sdkerr.CodeMerkle, "merkle.FetchProofs.decode",
			map[string]any{"merkle_root": wire.MerkleRoot}, fmt.Errorf("invalid decimal merkle_root"))
	}

	proofs := make([]MerkleProof, 0, len(wire.Proof))
	for _, p := range wire.Proof {
		path := make([]*big.Int, 0, len(p.Path))
		for _, s := range p.Path {
			v, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return MerkleResponse{}, sdkerr.New(sdkerr.CodeMerkle, "merkle.FetchProofs.decode",
					map[string]any{"path_entry": s}, fmt.Errorf("invalid decimal path entry"))
			}
			path = append(path, v)
		}
		proofs = append(proofs, MerkleProof{Path: path, LeafIndex: p.LeafIndex})
	}

	return MerkleResponse{Proofs: proofs, MerkleRoot: root, LatestCID: wire.LatestCID}, nil
}

// defaultFetchTimeout is a 15-second ceiling for a single FetchProofs call.
// Nothing in the SDK applies it: FetchProofs runs under the caller's context
// and the HTTP client's own timeout only.
const defaultFetchTimeout = 15 * time.Second
