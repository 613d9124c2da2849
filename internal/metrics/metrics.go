// Package metrics builds the process's Prometheus registry and the HTTP
// instrumentation middleware, following the teacher's internal/metrics.go
// shape: a shared registry, a namespace prefix, and one small metrics
// struct per component rather than a single flat metrics blob.
package metrics

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "shelfd"

// patternRE strips `{...}` route parameters from a chi pattern to build a
// bounded-cardinality label, e.g. "/v1/books/{isbn}" -> "/v1/books".
var patternRE = regexp.MustCompile(`\{[^/]+\}`)

// NewRegistry builds a Prometheus registry with the standard Go/process
// collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		collectors.NewBuildInfoCollector(),
	)
	return reg
}

// Instrument wraps next with request latency and in-flight gauges,
// registered against reg.
func Instrument(reg *prometheus.Registry, next http.Handler) http.Handler {
	requests := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_seconds",
			Help:      "HTTP request latencies by method, path, and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})
	reg.MustRegister(requests, inflight)

	normalized := map[string]string{}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inflight.Inc()
		defer inflight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := r.Pattern
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
		}

		path, ok := normalized[pattern]
		if !ok {
			path = normalizePattern(pattern)
			normalized[pattern] = path
		}
		if path == "" {
			return
		}

		requests.WithLabelValues(r.Method, path, fmt.Sprint(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

func normalizePattern(pattern string) string {
	if pattern == "" {
		return ""
	}
	p := patternRE.ReplaceAllString(pattern, "")
	if len(p) > 1 {
		for len(p) > 1 && p[len(p)-1] == '/' {
			p = p[:len(p)-1]
		}
	}
	return p
}
