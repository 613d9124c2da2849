package providers

import (
	"context"
	"strconv"
	"time"
)

// KV is the narrow slice of the medium-tier cache that rate gating needs.
// internal/cache's Redis-backed store satisfies this without providers
// importing internal/cache directly, keeping the dependency edge one-way.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
}

// Gate enforces a minimum interval between requests to a single provider,
// shared across every process talking to that provider's KV tier, so a
// fleet of replicas doesn't collectively exceed a provider's rate contract.
type Gate struct {
	kv       KV
	provider string
	minGap   time.Duration
}

// NewGate builds a gate for provider, persisted under "gate:<provider>".
func NewGate(kv KV, provider string, minGap time.Duration) *Gate {
	return &Gate{kv: kv, provider: provider, minGap: minGap}
}

// Wait blocks until minGap has elapsed since the last permitted call to this
// provider from anywhere in the fleet, or ctx is canceled.
func (g *Gate) Wait(ctx context.Context) error {
	key := "gate:" + g.provider
	for {
		last, ok, err := g.kv.Get(ctx, key)
		if err != nil {
			// Fail open: a rate-gate outage shouldn't block the provider
			// entirely, just forgo the cross-replica coordination.
			return nil
		}
		if ok {
			if unixNanos, perr := strconv.ParseInt(last, 10, 64); perr == nil {
				elapsed := time.Since(time.Unix(0, unixNanos))
				if wait := g.minGap - elapsed; wait > 0 {
					t := time.NewTimer(wait)
					select {
					case <-t.C:
					case <-ctx.Done():
						t.Stop()
						return ctx.Err()
					}
					continue
				}
			}
		}
		now := strconv.FormatInt(time.Now().UnixNano(), 10)
		_ = g.kv.SetEX(ctx, key, now, g.minGap*4)
		return nil
	}
}
