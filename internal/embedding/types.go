// Package embedding implements component C2: batched, rate-aware calls to
// an external text-embedding API (spec §4.2).
package embedding

import "context"

// ErrorKind classifies an EmbeddingError per spec §4.2's contract:
// "Fails with EmbeddingError{kind∈{transient, permanent}}."
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// Error is the error type EmbeddingClient.Embed returns on failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	Status     int // 0 when not an HTTP-status-carrying failure
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode satisfies apperrors.StatusCoder so the shared classifier can
// map this error onto a retry Category without embedding needing to know
// about apperrors.Category directly.
func (e *Error) StatusCode() int { return e.Status }

func newTransient(message string, status int, cause error) *Error {
	return &Error{Kind: KindTransient, Message: message, Status: status, Cause: cause}
}

func newPermanent(message string, status int, cause error) *Error {
	return &Error{Kind: KindPermanent, Message: message, Status: status, Cause: cause}
}

// Vector is a single embedding result.
type Vector []float32

// Client is the C2 contract consumed by the rest of the core:
// embed(texts) → seq<vector<float32, D>>, preserving input order.
type Client interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
	Dimension() int
	Model() string
	HealthCheck(ctx context.Context) error
}
