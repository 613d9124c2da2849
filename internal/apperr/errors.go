// Package apperr holds the sentinel errors shared across component
// boundaries, mirroring the teacher's habit of a small set of package-level
// sentinel errors plus a statusErr wrapper rather than bespoke error types
// per call site.
package apperr

import (
	"errors"

	"github.com/shelfscan/shelfd/internal/envelope"
)

// Sentinel errors tested with errors.Is throughout the core.
var (
	// ErrNotFound signals a definitive miss: the caller should return 200
	// with empty results (search) or 404 (job results lookup), never
	// synthesize a different error.
	ErrNotFound = errors.New("not found")

	// ErrRetryable marks a provider failure that the Aggregation Engine
	// should treat as not-found for fallback purposes (timeout,
	// rate-limited, upstream-5xx).
	ErrRetryable = errors.New("retryable provider failure")

	// ErrProvider marks a non-retryable provider failure (auth,
	// malformed-response) that must be surfaced immediately.
	ErrProvider = errors.New("provider error")

	ErrBadRequest = errors.New("bad request")
	ErrCanceled   = errors.New("canceled")
)

// CodedError pairs a stable Code with a message, used to translate internal
// errors into a Response Envelope without the HTTP layer needing to know
// about every sentinel.
type CodedError struct {
	Code    envelope.Code
	Message string
	Details any
}

func (e *CodedError) Error() string { return e.Message }

// New constructs a CodedError.
func New(code envelope.Code, message string, details any) *CodedError {
	return &CodedError{Code: code, Message: message, Details: details}
}

// AsCoded extracts a *CodedError from err, if any is present in its chain.
func AsCoded(err error) (*CodedError, bool) {
	var c *CodedError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// Retryable reports whether err (or anything it wraps) is a retryable
// provider failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
