// Package errors defines the typed errors the bridge surfaces to callers.
// Every error carries a stable string kind, an RPC-style numeric code and
// the method that produced it, so callers can log or display failures
// without re-deriving context.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds.
const (
	KindNotReady        = "not_ready"
	KindNoAccountsFound = "no_accounts_found"
	KindSessionExpired  = "session_expired"
	KindUpstreamRPC     = "upstream_rpc_error"
	KindSigning         = "signing_error"
	KindTimeout         = "timeout"
	KindValidation      = "validation_error"
)

// Numeric codes. The 4xxx values follow the EIP-1193 provider error
// convention; negative values follow JSON-RPC 2.0. Upstream RPC errors
// keep the code the node returned instead.
const (
	CodeNotReady        = 4900
	CodeNoAccountsFound = 4100
	CodeSessionExpired  = 4100
	CodeSigning         = -32000
	CodeTimeout         = -32003
	CodeValidation      = -32602
)

// ProviderError is the single error type returned across the bridge
// boundary.
type ProviderError struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`

	// Method is the request method that produced the error, when known.
	Method string `json:"method,omitempty"`

	// Data carries the upstream error payload for upstream_rpc_error.
	Data any `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s (%d): %s [method %s]", e.Kind, e.Code, e.Message, e.Method)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
}

// WithMethod returns a copy of the error annotated with the request method.
// A no-op when the method is already set, so routers can annotate blindly.
func (e *ProviderError) WithMethod(method string) *ProviderError {
	if e.Method != "" {
		return e
	}
	clone := *e
	clone.Method = method
	return &clone
}

// NotReady reports that the signer channel or runtime context is
// unavailable. Fatal for the current call, never retried.
func NotReady(detail string) *ProviderError {
	return &ProviderError{Kind: KindNotReady, Code: CodeNotReady, Message: detail}
}

// NoAccountsFound reports a successful enumeration that produced no
// address of the required format.
func NoAccountsFound(format string) *ProviderError {
	return &ProviderError{
		Kind:    KindNoAccountsFound,
		Code:    CodeNoAccountsFound,
		Message: fmt.Sprintf("no accounts with address format %s", format),
	}
}

// SessionExpired reports a session past its expiry; the caller must
// re-authenticate through the external login flow.
func SessionExpired() *ProviderError {
	return &ProviderError{
		Kind:    KindSessionExpired,
		Code:    CodeSessionExpired,
		Message: "session expired, re-authentication required",
	}
}

// UpstreamRPC wraps a JSON-RPC error object returned by the chain node.
// Code, message and data pass through unchanged.
func UpstreamRPC(code int, message string, data any) *ProviderError {
	return &ProviderError{Kind: KindUpstreamRPC, Code: code, Message: message, Data: data}
}

// Signing reports a rejection or failure from the custodial signer.
func Signing(detail string) *ProviderError {
	return &ProviderError{Kind: KindSigning, Code: CodeSigning, Message: detail}
}

// Timeout reports a message-channel call that exceeded its deadline
// without a matching response.
func Timeout(detail string) *ProviderError {
	return &ProviderError{Kind: KindTimeout, Code: CodeTimeout, Message: detail}
}

// Validation reports malformed or incomplete parameters detected before
// any network call.
func Validation(detail string) *ProviderError {
	return &ProviderError{Kind: KindValidation, Code: CodeValidation, Message: detail}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *ProviderError {
	return Validation(fmt.Sprintf(format, args...))
}

// AsProviderError unwraps err into a *ProviderError if it is one.
func AsProviderError(err error) (*ProviderError, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind string) bool {
	perr, ok := AsProviderError(err)
	return ok && perr.Kind == kind
}
