// Package envelope implements the uniform success/error response shape (C10)
// and the closed error-code taxonomy of spec.md §7.
package envelope

import (
	"encoding/json"
	"net/http"
	"time"
)

// Code is one of the closed set of error codes from spec.md §7.
type Code string

const (
	CodeInvalidISBN      Code = "INVALID_ISBN"
	CodeInvalidQuery     Code = "INVALID_QUERY"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeInvalidParameter Code = "INVALID_PARAMETER"
	CodeMissingParameter Code = "MISSING_PARAMETER"
	CodeInvalidFileType  Code = "INVALID_FILE_TYPE"
	CodeInvalidContent   Code = "INVALID_CONTENT"
	CodeBatchTooLarge    Code = "BATCH_TOO_LARGE"
	CodeEmptyBatch       Code = "EMPTY_BATCH"

	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeTokenExpired Code = "TOKEN_EXPIRED"

	CodeFileTooLarge Code = "FILE_TOO_LARGE"

	CodeNotFound    Code = "NOT_FOUND"
	CodeJobNotFound Code = "JOB_NOT_FOUND"

	CodeRateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"
	CodeProviderTimeout     Code = "PROVIDER_TIMEOUT"
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeProviderError       Code = "PROVIDER_ERROR"

	CodeProcessingFailed Code = "PROCESSING_FAILED"
	CodeEnrichmentFailed Code = "ENRICHMENT_FAILED"
	CodeInternalError    Code = "INTERNAL_ERROR"
)

// statusByCode maps each code to its default HTTP status. PROVIDER_ERROR is
// special-cased by Status below (502 vs 503 depending on message content).
var statusByCode = map[Code]int{
	CodeInvalidISBN:      http.StatusBadRequest,
	CodeInvalidQuery:     http.StatusBadRequest,
	CodeInvalidRequest:   http.StatusBadRequest,
	CodeInvalidParameter: http.StatusBadRequest,
	CodeMissingParameter: http.StatusBadRequest,
	CodeInvalidFileType:  http.StatusBadRequest,
	CodeInvalidContent:   http.StatusBadRequest,
	CodeBatchTooLarge:    http.StatusBadRequest,
	CodeEmptyBatch:       http.StatusBadRequest,

	CodeUnauthorized: http.StatusUnauthorized,
	CodeInvalidToken: http.StatusUnauthorized,
	CodeTokenExpired: http.StatusUnauthorized,

	CodeFileTooLarge: http.StatusRequestEntityTooLarge,

	CodeNotFound:    http.StatusNotFound,
	CodeJobNotFound: http.StatusNotFound,

	CodeRateLimitExceeded:   http.StatusTooManyRequests,
	CodeProviderTimeout:     http.StatusServiceUnavailable,
	CodeProviderUnavailable: http.StatusServiceUnavailable,
	CodeProviderError:       http.StatusBadGateway,

	CodeProcessingFailed: http.StatusInternalServerError,
	CodeEnrichmentFailed: http.StatusInternalServerError,
	CodeInternalError:    http.StatusInternalServerError,
}

// Status returns the HTTP status for a code. PROVIDER_ERROR discriminates on
// the accompanying message: upstream-responded-with-error is 502, while a
// timeout/rate-limit/unavailable message is 503.
func Status(code Code, message string) int {
	if code == CodeProviderError && looksRetryable(message) {
		return http.StatusServiceUnavailable
	}
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func looksRetryable(message string) bool {
	for _, kw := range []string{"timeout", "timed out", "rate limit", "unavailable"} {
		if containsFold(message, kw) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	// Small helper to avoid importing strings.ToLower repeatedly at call
	// sites; kept local since this is the only caller.
	sl, subl := len(s), len(substr)
	if subl == 0 {
		return true
	}
	if subl > sl {
		return false
	}
	for i := 0; i+subl <= sl; i++ {
		if equalFold(s[i:i+subl], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Metadata decorates every envelope.
type Metadata struct {
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime *int64    `json:"processingTime,omitempty"` // ms
	Provider       string    `json:"provider,omitempty"`
	Cached         *bool     `json:"cached,omitempty"`
}

// ErrorDetail is the `error` member of a failed envelope. Its presence --
// not `data == nil` -- is the success/failure discriminator.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    Code   `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the uniform response shape of spec.md §4.10.
type Envelope[T any] struct {
	Data     T            `json:"data"`
	Metadata Metadata     `json:"metadata"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// Success builds a successful envelope around data.
func Success[T any](data T, meta Metadata) Envelope[T] {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	return Envelope[T]{Data: data, Metadata: meta}
}

// Failure builds a failed envelope. data is typically the zero value of T.
func Failure[T any](data T, code Code, message string, details any) Envelope[T] {
	return Envelope[T]{
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    &ErrorDetail{Message: message, Code: code, Details: details},
	}
}

// WriteJSON writes env to w with the given status code.
func WriteJSON[T any](w http.ResponseWriter, status int, env Envelope[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteError writes a Failure envelope, deriving the HTTP status from code
// and message, and sets X-Error-Code.
func WriteError(w http.ResponseWriter, code Code, message string, details any) {
	status := Status(code, message)
	w.Header().Set("X-Error-Code", string(code))
	WriteJSON(w, status, Failure[any](nil, code, message, details))
}
