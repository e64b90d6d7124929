package provider

import (
	"context"
	"errors"
	"fmt"
)

// Error codes
const (
	ErrAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrParseFailed          = "PARSE_FAILED"
	ErrUnknownError         = "UNKNOWN_ERROR"
	ErrNoProviderAvailable  = "NO_PROVIDER_AVAILABLE"
	ErrInvalidRequest       = "INVALID_REQUEST"
	ErrInvalidAmount        = "INVALID_AMOUNT"
	ErrProviderDown         = "PROVIDER_DOWN"
	ErrRateLimited          = "RATE_LIMITED"
	ErrCancelled            = "CANCELLED"
	ErrProviderRejected     = "PROVIDER_REJECTED"
	ErrRefundNotSupported   = "REFUND_NOT_SUPPORTED"
	ErrNotSupported         = "NOT_SUPPORTED"
	ErrProviderNotFound     = "PROVIDER_NOT_FOUND"
)

// ProviderError is the single error shape adapters return.
type ProviderError struct {
	Provider  ProviderType `json:"provider,omitempty"`
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	Raw       []byte       `json:"-"`
	Err       error        `json:"-"`
}

func (e *ProviderError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Provider != "" {
		msg = string(e.Provider) + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewError builds a terminal error.
func NewError(p ProviderType, code, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: p, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps err as a retryable failure.
func Transient(p ProviderType, code string, err error) *ProviderError {
	return &ProviderError{Provider: p, Code: code, Message: "transient failure", Retryable: true, Err: err}
}

// FromContext maps a cancelled or expired context to a retryable CANCELLED error.
func FromContext(p ProviderType, err error) *ProviderError {
	return &ProviderError{Provider: p, Code: ErrCancelled, Message: "operation cancelled", Retryable: true, Err: err}
}

var ErrUnsupported = &ProviderError{Code: ErrNotSupported, Message: "operation not supported by this provider"}

// IsRetryable reports whether err is worth another attempt.
// Errors that are not a ProviderError count as UNKNOWN_ERROR, which is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// CodeOf extracts the error code, UNKNOWN_ERROR when err carries none.
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return ErrUnknownError
}
