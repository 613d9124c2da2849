package metrics

import (
	"github.com/IBM/pgxpoolprometheus"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics counts multi-tier cache outcomes by tier (T1/T2/COLD/MISS),
// mirroring the teacher's cacheMetrics{totals *CounterVec} shape.
type CacheMetrics struct {
	totals *prometheus.CounterVec
}

// NewCacheMetrics registers and returns a CacheMetrics.
func NewCacheMetrics(reg *prometheus.Registry) *CacheMetrics {
	totals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by resulting tier.",
	}, []string{"tier"})
	if reg != nil {
		reg.MustRegister(totals)
	}
	return &CacheMetrics{totals: totals}
}

// RecordTier increments the counter for tier (e.g. "T1", "T2", "COLD", "MISS").
func (m *CacheMetrics) RecordTier(tier string) {
	m.totals.WithLabelValues(tier).Inc()
}

// ProviderMetrics counts adapter calls by provider and outcome
// (success/not-found/timeout/rate-limited/upstream-5xx/auth/malformed).
type ProviderMetrics struct {
	totals   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewProviderMetrics registers and returns a ProviderMetrics.
func NewProviderMetrics(reg *prometheus.Registry) *ProviderMetrics {
	totals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Provider adapter calls by provider and outcome.",
	}, []string{"provider", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "call_seconds",
		Help:      "Provider adapter call latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20},
	}, []string{"provider"})
	if reg != nil {
		reg.MustRegister(totals, latency)
	}
	return &ProviderMetrics{totals: totals, latency: latency}
}

// Record logs one provider call's outcome and latency in seconds.
func (m *ProviderMetrics) Record(provider, outcome string, seconds float64) {
	m.totals.WithLabelValues(provider, outcome).Inc()
	m.latency.WithLabelValues(provider).Observe(seconds)
}

// JobMetrics counts job state transitions by pipeline and terminal state.
type JobMetrics struct {
	totals *prometheus.CounterVec
}

// NewJobMetrics registers and returns a JobMetrics.
func NewJobMetrics(reg *prometheus.Registry) *JobMetrics {
	totals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "total",
		Help:      "Jobs by pipeline and terminal state.",
	}, []string{"pipeline", "state"})
	if reg != nil {
		reg.MustRegister(totals)
	}
	return &JobMetrics{totals: totals}
}

// RecordTerminal records a job reaching state (complete/failed/canceled).
func (m *JobMetrics) RecordTerminal(pipeline, state string) {
	m.totals.WithLabelValues(pipeline, state).Inc()
}

// RateLimitMetrics counts rate-limiter decisions.
type RateLimitMetrics struct {
	rejections prometheus.Counter
}

// NewRateLimitMetrics registers and returns a RateLimitMetrics.
func NewRateLimitMetrics(reg *prometheus.Registry) *RateLimitMetrics {
	rejections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Requests rejected by the rate limiter.",
	})
	if reg != nil {
		reg.MustRegister(rejections)
	}
	return &RateLimitMetrics{rejections: rejections}
}

// RecordRejection increments the rejection counter.
func (m *RateLimitMetrics) RecordRejection() { m.rejections.Inc() }

// RegisterPoolCollector wires pgxpoolprometheus's collector for db's
// connection pool stats into reg, the same collector the teacher attaches
// in internal/metrics.go's newDBMetrics.
func RegisterPoolCollector(reg *prometheus.Registry, db *pgxpool.Pool) {
	if reg == nil || db == nil {
		return
	}
	reg.MustRegister(pgxpoolprometheus.NewCollector(db, map[string]string{"db": "jobs"}))
}
