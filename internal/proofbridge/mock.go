package proofbridge

import "context"

// Mock is an in-process Bridge for tests: it hands back a fixed response (or
// error) and records every request it saw, so ops tests can assert on the
// witness shape without standing up an HTTP prover.
type Mock struct {
	Response Response
	Err      error
	Requests []Request
}

// Prove implements Bridge.
func (m *Mock) Prove(_ context.Context, req Request) (Response, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return Response{}, m.Err
	}
	return m.Response, nil
}
