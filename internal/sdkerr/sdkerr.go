// Package sdkerr implements the SDK's typed error taxonomy (spec §7): every
// internal stage failure is wrapped into one of a fixed set of codes so a
// caller can branch on the failure's origin without parsing messages.
package sdkerr

import (
	"errors"
	"fmt"
)

// Code identifies which stage produced an error.
type Code string

const (
	CodeConfig  Code = "CONFIG"
	CodeSync    Code = "SYNC"
	CodeMerkle  Code = "MERKLE"
	CodeRelayer Code = "RELAYER"
	CodeProof   Code = "PROOF"
	CodeWitness Code = "WITNESS"
	CodeAssets  Code = "ASSETS"
)

// Error is the SDK's typed error. Detail carries stage-specific context:
// chain id, contract address, cids, request URL, and so on.
type Error struct {
	Code   Code
	Stage  string
	Detail map[string]any
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %v", e.Code, e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s[%s]", e.Code, e.Stage)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Code, allowing
// errors.Is(err, sdkerr.New(sdkerr.CodeMerkle, "", nil, nil)) style checks.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New wraps cause (which may be nil) as a typed Error. If cause is already a
// *Error it is returned unchanged — typed errors propagate without
// re-wrapping (spec §7 propagation policy).
func New(code Code, stage string, detail map[string]any, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) {
		return existing
	}
	return &Error{Code: code, Stage: stage, Detail: detail, Cause: cause}
}

// Wrap is New with a detail builder, convenient at call sites:
//
//	return sdkerr.Wrap(sdkerr.CodeSync, "entry.ListMemos", err, "chain_id", chainID)
func Wrap(code Code, stage string, cause error, kv ...any) *Error {
	if cause == nil {
		return nil
	}
	detail := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		detail[key] = kv[i+1]
	}
	return New(code, stage, detail, cause)
}

// CodeOf extracts the Code from err if it is (or wraps) a typed Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
