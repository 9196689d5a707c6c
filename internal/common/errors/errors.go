// Package errors provides the pipeline error taxonomy and the client-facing
// error classifier.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the coarse failure category surfaced to clients.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindRouting    Kind = "ROUTING"
	KindInvocation Kind = "INVOCATION"
	KindCache      Kind = "CACHE"
	KindInternal   Kind = "INTERNAL"
)

// Fine-grained internal error codes.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeRoutingUnconfigured = "ROUTING_UNCONFIGURED"
	CodeInvokeTimeout       = "INVOKE_TIMEOUT"
	CodeInvokeCanceled      = "INVOKE_CANCELED"
	CodeInvokeDecode        = "INVOKE_DECODE"
	CodeInvokeThrottled     = "INVOKE_THROTTLED"
	CodeInvokeBackend       = "INVOKE_BACKEND"
	CodeInvokePermission    = "INVOKE_PERMISSION"
	CodeInvokeBadReference  = "INVOKE_BAD_REFERENCE"
	CodeCacheUnavailable    = "CACHE_UNAVAILABLE"
	CodeInternal            = "INTERNAL"
)

// Error is a structured pipeline error. Message carries internal detail and
// must never reach a client; the Classifier produces the client-facing view.
type Error struct {
	Kind      Kind
	Code      string
	Field     string // populated for validation errors
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidation creates a non-retryable validation error for a request field.
func NewValidation(field, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidationFailed,
		Field:   field,
		Message: reason,
	}
}

// NewRoutingUnconfigured reports an application name with no routing entry.
func NewRoutingUnconfigured(appName string) *Error {
	return &Error{
		Kind:    KindRouting,
		Code:    CodeRoutingUnconfigured,
		Message: fmt.Sprintf("no agent configured for application %q", appName),
	}
}

// NewInvokeTimeout reports an invocation that exceeded its deadline.
func NewInvokeTimeout(err error) *Error {
	return &Error{
		Kind:    KindInvocation,
		Code:    CodeInvokeTimeout,
		Message: "backend invocation timed out",
		cause:   err,
	}
}

// NewInvokeCanceled reports an invocation cut short by caller cancellation,
// typically shutdown. Distinct from timeout so the two are separable in logs.
func NewInvokeCanceled(err error) *Error {
	return &Error{
		Kind:    KindInvocation,
		Code:    CodeInvokeCanceled,
		Message: "backend invocation canceled",
		cause:   err,
	}
}

// NewInvokeDecode reports undecodable bytes in an assembled response.
func NewInvokeDecode() *Error {
	return &Error{
		Kind:    KindInvocation,
		Code:    CodeInvokeDecode,
		Message: "response chunk assembly produced invalid UTF-8",
	}
}

// NewInvokeThrottled wraps a backend throttling rejection (retryable).
func NewInvokeThrottled(err error) *Error {
	return &Error{
		Kind:      KindInvocation,
		Code:      CodeInvokeThrottled,
		Message:   "backend throttled the invocation",
		Retryable: true,
		cause:     err,
	}
}

// NewInvokeBackend wraps a transient backend failure (retryable).
func NewInvokeBackend(err error) *Error {
	return &Error{
		Kind:      KindInvocation,
		Code:      CodeInvokeBackend,
		Message:   "backend invocation failed",
		Retryable: true,
		cause:     err,
	}
}

// NewInvokePermission wraps a permission denial (never retried).
func NewInvokePermission(err error) *Error {
	return &Error{
		Kind:    KindInvocation,
		Code:    CodeInvokePermission,
		Message: "backend denied access to the resource",
		cause:   err,
	}
}

// NewInvokeBadReference wraps a malformed or unknown resource reference.
func NewInvokeBadReference(err error) *Error {
	return &Error{
		Kind:    KindInvocation,
		Code:    CodeInvokeBadReference,
		Message: "resource reference rejected by backend",
		cause:   err,
	}
}

// NewCacheUnavailable wraps a cache tier failure. Always non-fatal to the item.
func NewCacheUnavailable(op string, err error) *Error {
	return &Error{
		Kind:      KindCache,
		Code:      CodeCacheUnavailable,
		Message:   fmt.Sprintf("cache %s failed", op),
		Retryable: true,
		cause:     err,
	}
}

// NewInternal wraps an unexpected failure caught at the item boundary.
func NewInternal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "unexpected internal error",
		cause:   err,
	}
}

// KindOf returns the taxonomy kind for any error. Unclassified errors are
// reported as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the invoker may retry after this failure.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
