package main

import (
	"net/http"
	"strconv"

	"github.com/shelfscan/shelfd/internal/envelope"
)

// rateLimitMiddleware enforces spec.md §4.9 in front of every route: the
// caller's identity is its X-Forwarded-For header when present, else its
// remote address (no auth layer exists yet to key on anything more stable), and the limiter's headers are attached to every
// response regardless of outcome.
func rateLimitMiddleware(e *env, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := clientIdentity(r)
		decision := e.limiter.CheckAndIncrement(r.Context(), identity)

		for k, v := range decision.Headers() {
			w.Header().Set(k, v)
		}

		if !decision.Allowed {
			e.ratelimitMx.RecordRejection()
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
			envelope.WriteError(w, envelope.CodeRateLimitExceeded, "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
