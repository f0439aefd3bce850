// Package proofbridge is the client side of the opaque zero-knowledge
// prover (spec component N): an external capability that takes a witness
// JSON and returns a proof JSON. This package never compiles or runs a
// circuit itself — the spec's Non-goals explicitly exclude defining one —
// it only shapes the request/response and calls out, the same stdlib
// net/http convention internal/entryclient and internal/chain already use
// for every other HTTP collaborator in this SDK.
package proofbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ocash-labs/sdk-core/internal/sdkerr"
)

// Kind distinguishes the two witness shapes the prover accepts.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindWithdraw Kind = "withdraw"
)

// Request is one prove_transfer(witness_json)-style call.
type Request struct {
	OperationID string
	Kind        Kind
	Witness     json.RawMessage
}

// Response is the prover's answer. A prover that returns success=false is
// treated as a PROOF-coded failure, not a successful empty proof.
type Response struct {
	Success bool
	Proof   json.RawMessage
	Error   string
}

// Bridge is the capability this package's callers depend on; Client is the
// HTTP-backed implementation, Mock (in mock.go) satisfies it for tests that
// never want a live prover.
type Bridge interface {
	Prove(ctx context.Context, req Request) (Response, error)
}

// Client calls an HTTP prover endpoint. The endpoint's exact contract (path,
// payload shape beyond {witness, kind}) is operator-configured; this SDK only
// assumes the envelope described in spec §1: a witness in, a proof (or
// success=false) out.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client against baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

type wireRequest struct {
	Kind    Kind            `json:"kind"`
	Witness json.RawMessage `json:"witness"`
}

type wireResponse struct {
	Success bool            `json:"success"`
	Proof   json.RawMessage `json:"proof"`
	Error   string          `json:"error"`
}

// Prove posts req.Witness to the prover and decodes its response. A
// transport failure or a non-2xx status becomes a PROOF-coded error; a
// prover that replies success=false is surfaced as Response{Success:false}
// rather than an error, letting the caller attach the prover's own message
// to the failed operation row.
func (c *Client) Prove(ctx context.Context, req Request) (Response, error) {
	buf, err := json.Marshal(wireRequest{Kind: req.Kind, Witness: req.Witness})
	if err != nil {
		return Response{}, sdkerr.Wrap(sdkerr.CodeProof, "proofbridge.Prove.marshal", err, "operation_id", req.OperationID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/prove", bytes.NewReader(buf))
	if err != nil {
		return Response{}, sdkerr.Wrap(sdkerr.CodeProof, "proofbridge.Prove", err, "operation_id", req.OperationID)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Response{}, sdkerr.Wrap(sdkerr.CodeProof, "proofbridge.Prove", err, "operation_id", req.OperationID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, sdkerr.New(sdkerr.CodeProof, "proofbridge.Prove",
			map[string]any{"operation_id": req.OperationID, "status": resp.StatusCode},
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Response{}, sdkerr.Wrap(sdkerr.CodeProof, "proofbridge.Prove.decode", err, "operation_id", req.OperationID)
	}

	return Response{Success: wire.Success, Proof: wire.Proof, Error: wire.Error}, nil
}
