// Package ratelimit implements the Rate Limiter (C9): a per-identity
// fixed-window counter with fail-open semantics on any storage error.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shelfscan/shelfd/internal/cache"
)

// DefaultLimit and DefaultWindow are spec.md §4.9's defaults: 10 requests
// per 60-second window.
const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

// KV is the narrow T2 surface this limiter needs, satisfied by
// (*cache.Cache).KV().
type KV interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool)
}

// Decision is the outcome of CheckAndIncrement.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter enforces a fixed-window counter per identity (caller-supplied,
// typically the client IP).
type Limiter struct {
	kv     KV
	limit  int
	window time.Duration
}

// New builds a Limiter over c's T2 tier with spec.md's defaults.
func New(c *cache.Cache) *Limiter {
	return &Limiter{kv: c.KV(), limit: DefaultLimit, window: DefaultWindow}
}

// WithLimit overrides the default request/window limits, returning a new
// Limiter sharing the same backing store.
func (l *Limiter) WithLimit(limit int, window time.Duration) *Limiter {
	return &Limiter{kv: l.kv, limit: limit, window: window}
}

func key(identity string) string { return "ratelimit:" + identity }

// CheckAndIncrement atomically increments identity's counter and reports
// whether the request is allowed. Serialization is guaranteed by Redis's
// atomic INCR, the same guarantee spec.md asks of the per-identity
// singleton -- no separate in-process lock is needed because the
// authoritative counter state lives in one place.
//
// Any storage error fails open: the request is allowed and the error is
// logged, per spec.md's fail-open requirement.
func (l *Limiter) CheckAndIncrement(ctx context.Context, identity string) Decision {
	k := key(identity)

	count, err := l.kv.Incr(ctx, k)
	if err != nil {
		slog.Default().Warn("ratelimit: storage error, failing open", "identity", identity, "err", err)
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetIn: l.window}
	}

	if count == 1 {
		if err := l.kv.Expire(ctx, k, l.window); err != nil {
			slog.Default().Warn("ratelimit: failed to set window expiry", "identity", identity, "err", err)
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetIn := l.window
	if ttl, ok := l.kv.TTL(ctx, k); ok {
		resetIn = ttl
	}

	return Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// Headers returns the X-RateLimit-* header values CheckAndIncrement's
// result should be reported with, on every response regardless of outcome.
func (d Decision) Headers() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(d.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(d.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(int64(d.ResetIn/time.Second), 10),
	}
}

// RetryAfterSeconds is the value the 429 response's Retry-After header
// should carry.
func (d Decision) RetryAfterSeconds() int {
	return int(d.ResetIn / time.Second)
}
