package connect

import (
	"errors"
	"fmt"

	"github.com/crosspost-labs/crosspost/pkg/oauth1"
	"github.com/crosspost-labs/crosspost/pkg/oauth2"
)

// Code classifies every way a flow can fail. Codes are stable: they
// appear verbatim in redirect query strings and JSON error bodies.
type Code string

const (
	CodeInvalidRequest   Code = "invalid_request"
	CodeStateMismatch    Code = "state_mismatch"
	CodeUserDenied       Code = "user_denied"
	CodeProviderRejected Code = "provider_rejected"
	CodeNetworkError     Code = "network_error"
	CodeRefreshFailed    Code = "refresh_failed"
	CodeNotConnected     Code = "not_connected"
)

type Error struct {
	Code        Code
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

func wrapError(code Code, description string, cause error) *Error {
	return &Error{Code: code, Description: description, cause: cause}
}

// classifyExchange maps a token exchange failure onto the taxonomy:
// a provider that answered and refused, in either protocol dialect,
// rejected the credential material; anything else is a transport
// problem.
func classifyExchange(err error) *Error {
	var providerErr *oauth2.Error
	if errors.As(err, &providerErr) {
		return wrapError(CodeProviderRejected, providerErr.Error(), err)
	}
	var refusal *oauth1.Error
	if errors.As(err, &refusal) {
		return wrapError(CodeProviderRejected, refusal.Error(), err)
	}
	return wrapError(CodeNetworkError, err.Error(), err)
}

// ErrorCode extracts the flow code from err, defaulting to
// network_error for untyped failures.
func ErrorCode(err error) Code {
	var flowErr *Error
	if errors.As(err, &flowErr) {
		return flowErr.Code
	}
	return CodeNetworkError
}
