package x402

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an Error.
type Kind string

const (
	KindHTTPError             Kind = "http_error"
	KindJSONError             Kind = "json_error"
	KindBase64Error           Kind = "base64_error"
	KindBlockchainError       Kind = "blockchain_error"
	KindInvalidPayload        Kind = "invalid_payload"
	KindVerificationFailed    Kind = "verification_failed"
	KindSettlementError       Kind = "settlement_error"
	KindUnsupportedScheme     Kind = "unsupported_scheme"
	KindUnsupportedNetwork    Kind = "unsupported_network"
	KindInvalidAddress        Kind = "invalid_address"
	KindInvalidAmount         Kind = "invalid_amount"
	KindSignatureError        Kind = "signature_error"
	KindNonceUsed             Kind = "nonce_used"
	KindTimeoutExceeded       Kind = "timeout_exceeded"
	KindMissingField          Kind = "missing_field"
	KindConfigError           Kind = "config_error"
	KindNoSuitableRequirement Kind = "no_suitable_requirement"
)

// Error is the single tagged error container surfaced by this module.
// Every failure that crosses a role boundary (client, resource server,
// facilitator) is reported through one of these, never a bare error string.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewError builds an *Error of the given Kind, for use by scheme
// implementations and other packages that need to surface a tagged error.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return newError(kind, format, args...)
}

// KindOf reports the Kind of err if it is (or wraps) an *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}
