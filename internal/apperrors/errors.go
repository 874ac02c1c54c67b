// Package apperrors provides the error taxonomy and classification used
// across the ingestion and search core: a small typed Kind enum for
// user-visible propagation (§7), and a Category/Strategy classifier used by
// the retry machinery (§4.5).
package apperrors

import (
	"fmt"
	"net/http"
)

// Kind is the user-visible error taxonomy from spec §7.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindPayloadTooLarge    Kind = "payload_too_large"
	KindRateLimited        Kind = "rate_limited"
	KindDependencyTransient Kind = "dependency_transient"
	KindDependencyPermanent Kind = "dependency_permanent"
	KindTimeout            Kind = "timeout"
	KindInternal           Kind = "internal"
)

// AppError is the unified error type surfaced to callers at the boundaries
// named in §7 (search path, coordinator operations).
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New constructs an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap constructs an AppError of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// Validation is a convenience constructor for the common validation case.
func Validation(message string) *AppError {
	return New(KindValidation, message)
}

// NotFound is a convenience constructor for missing-resource errors.
func NotFound(message string) *AppError {
	return New(KindNotFound, message)
}

// Internal is a convenience constructor for unexpected internal failures.
func Internal(message string, cause error) *AppError {
	return Wrap(KindInternal, message, cause)
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Kind == kind
}

// ToHTTPStatus maps an AppError's Kind to the conventional HTTP status. This
// is used only by the thin, out-of-scope cmd/server adapter; the core never
// depends on HTTP semantics.
func (e *AppError) ToHTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindDependencyTransient:
		return http.StatusServiceUnavailable
	case KindDependencyPermanent:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
