package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/stampede"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfscan/shelfd/internal/logging"
	"github.com/shelfscan/shelfd/internal/metrics"
)

// newRouter builds the full HTTP surface of spec.md §6. The global
// middleware stack, outermost first, is request ID, panic recovery, slash
// normalization, request logging, request metrics, and the rate limiter.
// Request coalescing and response compression are applied per route, only
// on the synchronous search and editions routes, so they run after the rate
// limiter.
func newRouter(e *env) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(logging.RequestLogger)
	r.Use(func(next http.Handler) http.Handler { return metrics.Instrument(e.registry, next) })
	r.Use(func(next http.Handler) http.Handler { return rateLimitMiddleware(e, next) })

	compress := gzhttp.GzipHandler

	r.Route("/v1/search", func(sr chi.Router) {
		sr.Use(stampede.Handler(512, time.Minute))
		sr.Method(http.MethodGet, "/isbn", compress(http.HandlerFunc(e.handleSearchISBN)))
		sr.Method(http.MethodGet, "/title", compress(http.HandlerFunc(e.handleSearchTitle)))
		sr.Method(http.MethodGet, "/advanced", compress(http.HandlerFunc(e.handleSearchAdvanced)))
	})

	r.Route("/v1/editions", func(sr chi.Router) {
		sr.Use(stampede.Handler(512, time.Minute))
		sr.Method(http.MethodGet, "/search", compress(http.HandlerFunc(e.handleEditionsSearch)))
	})

	r.Post("/v1/enrichment/batch", e.handleEnrichmentBatch)
	r.Post("/v1/scan/bookshelf", e.handleScanBookshelf)
	r.Post("/v1/csv/import", e.handleCSVImport)
	r.Get("/v1/scan/results/{jobId}", e.handleScanResults)
	r.Get("/v1/csv/results/{jobId}", e.handleCSVResults)
	r.Get("/v1/jobs/{jobId}/stream", e.handleJobStream)

	r.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	return r
}
