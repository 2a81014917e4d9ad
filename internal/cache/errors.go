package cache

import (
	"errors"
	"fmt"
)

// Code classifies an error for HTTP mapping and client handling.
type Code string

// Error codes
const (
	CodeInvalidOperation  Code = "INVALID_OPERATION"
	CodeTTLExceeded       Code = "TTL_EXCEEDED"
	CodeMemoryLimit       Code = "MEMORY_LIMIT"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodePaymentRequired   Code = "PAYMENT_REQUIRED"
	CodeKeyNotFound       Code = "KEY_NOT_FOUND"
	CodeNamespaceNotFound Code = "NAMESPACE_NOT_FOUND"
	CodeInstanceNotFound  Code = "INSTANCE_NOT_FOUND"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeNodeUnavailable   Code = "NODE_UNAVAILABLE"
	CodeAttestationFailed Code = "ATTESTATION_FAILED"
)

// Error is the single error type crossing the engine boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"error"`
	// RetryAfter is the number of seconds until the caller may retry.
	// Only set for RATE_LIMITED.
	RetryAfter int64 `json:"retryAfter,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and formatted message.
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidOperation reports a malformed request or a command against an
// incompatible value kind.
func ErrInvalidOperation(format string, args ...interface{}) *Error {
	return NewError(CodeInvalidOperation, format, args...)
}

// ErrTTLExceeded reports a TTL above the configured maximum.
func ErrTTLExceeded(requested, max int64) *Error {
	return NewError(CodeTTLExceeded, "ttl %d exceeds maximum %d seconds", requested, max)
}

// ErrMemoryLimit reports that the memory budget could not be met even after
// a full eviction pass.
func ErrMemoryLimit() *Error {
	return NewError(CodeMemoryLimit, "memory limit exceeded")
}

// ErrUnauthorized reports a missing or non-matching owner.
func ErrUnauthorized(msg string) *Error {
	return NewError(CodeUnauthorized, "%s", msg)
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the error's code, or empty if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
