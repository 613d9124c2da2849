package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestLogger wraps an HTTP handler with a request-scoped logger (tagged
// with a generated request id) attached to the request context, and logs
// one line per request at completion. Shaped after the teacher's
// metrics.go `instrument` middleware -- same WrapResponseWriter-based
// status/timing capture, applied to logging instead of Prometheus.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		logger := FromContext(r.Context()).With("requestId", requestID)
		ctx := WithContext(r.Context(), logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
