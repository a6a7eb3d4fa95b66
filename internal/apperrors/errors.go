// Package apperrors defines the error taxonomy shared across the engine.
// Errors are propagated as values carrying a Kind, never as bare strings,
// so callers (retry engine, HTTP layer, workflow engine) can branch on
// semantics instead of parsing messages.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry and HTTP-mapping purposes.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Duplicate
	Validation
	RateLimit
	Transient
	CircuitOpen
	Normalization
	SandboxTimeout
	SandboxFailure
	LLMError
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Duplicate:
		return "duplicate"
	case Validation:
		return "validation"
	case RateLimit:
		return "rate_limit"
	case Transient:
		return "transient"
	case CircuitOpen:
		return "circuit_open"
	case Normalization:
		return "normalization"
	case SandboxTimeout:
		return "sandbox_timeout"
	case SandboxFailure:
		return "sandbox_failure"
	case LLMError:
		return "llm_error"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind to the status code the HTTP surface should return.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Duplicate:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case RateLimit:
		return http.StatusTooManyRequests
	case Transient, CircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete error type carrying a Kind, a message, an optional
// retry-after hint (RateLimit only), and a wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter float64 // seconds; zero means "no server hint"
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRetryAfter attaches a server-provided retry-after hint, in seconds.
func (e *Error) WithRetryAfter(seconds float64) *Error {
	e.RetryAfter = seconds
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal when err does
// not wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the taxonomy considers err retryable by the
// retry engine: rate limits, transient transport failures, and a circuit
// that has just reopened are retryable; everything else is not.
func Retryable(err error) bool {
	switch KindOf(err) {
	case RateLimit, Transient, CircuitOpen:
		return true
	default:
		return false
	}
}
