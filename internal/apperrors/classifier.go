package apperrors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// Category is the retry-classification taxonomy from spec §4.5. It is
// distinct from Kind: Kind is what a caller sees, Category is what the
// retry machinery (RetryScheduler, EmbeddingClient's inner retries) acts on.
type Category string

const (
	CategoryNetwork               Category = "NETWORK"
	CategoryTimeout               Category = "TIMEOUT"
	CategoryRateLimit             Category = "RATE_LIMIT"
	CategoryServer5xx             Category = "SERVER_5XX"
	CategoryValidation            Category = "VALIDATION"
	CategoryAuth                  Category = "AUTH"
	CategoryNotFound              Category = "NOT_FOUND"
	CategoryDBConstraint          Category = "DB_CONSTRAINT"
	CategoryDBBusy                Category = "DB_BUSY"
	CategoryDependencyUnavailable Category = "DEPENDENCY_UNAVAILABLE"
	CategoryUnknown               Category = "UNKNOWN"
)

// Strategy is the retry policy attached to a Category, per spec §4.5.
type Strategy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
	Jitter     float64 // in [0,1]
}

// temporaryCategories lists the categories spec §4.5 calls temporary; all
// others (including UNKNOWN) are permanent.
var temporaryCategories = map[Category]bool{
	CategoryNetwork:               true,
	CategoryTimeout:               true,
	CategoryRateLimit:             true,
	CategoryServer5xx:             true,
	CategoryDBBusy:                true,
	CategoryDependencyUnavailable: true,
}

// IsTemporary reports whether a category is retryable per spec §4.5.
func IsTemporary(c Category) bool {
	return temporaryCategories[c]
}

var strategies = map[Category]Strategy{
	CategoryNetwork:   {MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Factor: 2.0, Jitter: 0.2},
	CategoryTimeout:   {MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Factor: 2.0, Jitter: 0.2},
	CategoryRateLimit: {MaxRetries: 8, BaseDelay: 2 * time.Second, MaxDelay: 120 * time.Second, Factor: 2.0, Jitter: 0.3},
	CategoryServer5xx: {MaxRetries: 4, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Factor: 2.0, Jitter: 0.2},
	CategoryDBBusy:    {MaxRetries: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, Factor: 2.0, Jitter: 0.1},
	// DEPENDENCY_UNAVAILABLE is temporary but spec does not pin an explicit
	// table row for it; it reuses the NETWORK/TIMEOUT policy, the closest
	// analog (an upstream dependency being down behaves like a network
	// failure from the caller's perspective).
	CategoryDependencyUnavailable: {MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Factor: 2.0, Jitter: 0.2},
}

var permanentStrategy = Strategy{MaxRetries: 0}

// GetStrategy returns the retry policy for a category.
func GetStrategy(c Category) Strategy {
	if s, ok := strategies[c]; ok {
		return s
	}
	return permanentStrategy
}

// StatusCoder is implemented by dependency errors that carry an HTTP-like
// status code (EmbeddingClient and VectorStore wrap raw transport errors
// this way so Classify doesn't need to know about any particular client).
type StatusCoder interface {
	StatusCode() int
}

// SQLiteCoder is implemented by errors that carry a SQLite result code.
// mattn/go-sqlite3's Error type does not implement it, and no type in this
// repository does outside tests.
type SQLiteCoder interface {
	SQLiteCode() int
}

// sqlite result codes relevant to classification, mirrored here (not
// imported from mattn/go-sqlite3 directly) so this package has no build
// dependency on cgo. internal/relstore wraps driver errors in AppError
// rather than adapting them to SQLiteCoder, so in practice SQLite failures
// are classified by the string-pattern fallback ("database is locked",
// "constraint failed").
const (
	sqliteBusy      = 5
	sqliteLocked    = 6
	sqliteConstraint = 19
)

// Classify maps a raw error to a Category per spec §4.5. It recognizes:
//   - context deadline/cancellation -> TIMEOUT
//   - net.Error with Timeout() -> TIMEOUT, otherwise -> NETWORK
//   - StatusCoder: 429 -> RATE_LIMIT, 5xx -> SERVER_5XX, 401/403 -> AUTH,
//     404 -> NOT_FOUND, other 4xx -> VALIDATION
//   - SQLiteCoder: busy/locked -> DB_BUSY, constraint -> DB_CONSTRAINT
//   - AppError of Kind validation/not_found/... -> matching category
//   - string-pattern fallback (grounded in the donor's isTemporaryError/
//     isRateLimitError pattern matching) for errors that cross a boundary
//     (e.g. a wrapped driver error) without a structured type
//
// Anything unrecognized is UNKNOWN (permanent).
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return categoryForStatus(sc.StatusCode())
	}

	var sqc SQLiteCoder
	if errors.As(err, &sqc) {
		switch sqc.SQLiteCode() {
		case sqliteBusy, sqliteLocked:
			return CategoryDBBusy
		case sqliteConstraint:
			return CategoryDBConstraint
		}
	}

	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindValidation, KindPayloadTooLarge:
			return CategoryValidation
		case KindNotFound:
			return CategoryNotFound
		case KindUnauthorized, KindForbidden:
			return CategoryAuth
		case KindRateLimited:
			return CategoryRateLimit
		case KindTimeout:
			return CategoryTimeout
		case KindDependencyTransient:
			return CategoryDependencyUnavailable
		case KindDependencyPermanent:
			return CategoryUnknown
		}
	}

	return classifyByMessage(err.Error())
}

func categoryForStatus(status int) Category {
	switch {
	case status == http.StatusTooManyRequests:
		return CategoryRateLimit
	case status >= 500:
		return CategoryServer5xx
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuth
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status >= 400:
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}

// classifyByMessage is the fallback for errors that cross a boundary
// without a structured type to inspect, grounded in the donor's
// internal/embeddings/retry_wrapper.go isRetryableEmbeddingError.
func classifyByMessage(msg string) Category {
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "connection refused", "connection reset", "no such host", "dns"):
		return CategoryNetwork
	case containsAny(lower, "timeout", "deadline exceeded", "i/o timeout"):
		return CategoryTimeout
	case containsAny(lower, "rate limit", "too many requests", "429", "quota exceeded"):
		return CategoryRateLimit
	case containsAny(lower, "service unavailable", "server_error", "502", "503", "504", "overloaded", "temporarily unavailable"):
		return CategoryServer5xx
	case containsAny(lower, "unauthorized", "invalid api key", "forbidden", "401", "403"):
		return CategoryAuth
	case containsAny(lower, "not found", "404"):
		return CategoryNotFound
	case containsAny(lower, "database is locked", "sqlite_busy"):
		return CategoryDBBusy
	case containsAny(lower, "constraint failed", "unique constraint", "foreign key"):
		return CategoryDBConstraint
	case containsAny(lower, "invalid request", "invalid_request_error", "bad request", "context length exceeded"):
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
