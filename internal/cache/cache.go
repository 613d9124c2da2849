// Package cache implements the Multi-Tier Cache (C4): an edge tier, a
// networked key-value tier, and a cold archive tier, with quality-adjusted
// TTLs and background rehydration on a near-miss.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tier reports which level of the hierarchy satisfied a read.
type Tier string

const (
	TierT1    Tier = "T1"
	TierT2    Tier = "T2"
	TierCold  Tier = "COLD"
	TierMiss  Tier = "MISS"
)

// Status collapses a Tier down to the two-value HIT/MISS vocabulary the
// X-Cache-Status header and envelope.Metadata.Cached report: any tier that
// actually satisfied the read is a HIT, regardless of which level did it.
func (t Tier) Status() string {
	if t == TierMiss || t == "" {
		return "MISS"
	}
	return "HIT"
}

// Hit reports whether t represents a cache hit at any tier.
func (t Tier) Hit() bool {
	return t != TierMiss && t != ""
}

// Result is the outcome of a Cache.Get call.
type Result struct {
	Data []byte
	Tier Tier
}

// Cache is the read/write entry point the Aggregation Engine and other
// components use; it never exposes the individual tiers directly.
type Cache struct {
	edge  *edge
	kv    *kv
	cold  *cold
	rehyd *rehydrator
}

// New builds a Cache. cold may be nil, in which case near-misses simply
// report MISS instead of scheduling rehydration -- useful for tests and for
// deployments that haven't configured an archive bucket.
func New(rdb *redis.Client, coldClient S3Client, coldBucket string) (*Cache, error) {
	e, err := newEdge()
	if err != nil {
		return nil, err
	}
	k := newKV(rdb)

	c := &Cache{edge: e, kv: k}
	if coldClient != nil {
		c.cold = newCold(coldClient, coldBucket)
		c.rehyd = newRehydrator(c)
	}
	return c, nil
}

// KV exposes the T2 tier for components (rate limiting, rate gating,
// results store, cultural enrichment) that need raw string get/set/incr
// rather than the tiered Get/Put semantics below.
func (c *Cache) KV() *kv { return c.kv }

// Get implements the read path of spec.md §4.4: T1, then T2 (with
// asynchronous T1 backfill), then the T2 cold index (scheduling background
// rehydration), then MISS.
func (c *Cache) Get(ctx context.Context, key string) Result {
	if v, ok := c.edge.get(ctx, key); ok {
		return Result{Data: v, Tier: TierT1}
	}

	if v, ok := c.kv.get(ctx, key); ok {
		remaining, _ := c.kv.ttlRemaining(ctx, key)
		backfillTTL := 6 * time.Hour
		if remaining > 0 && remaining < backfillTTL {
			backfillTTL = remaining
		}
		go c.edge.set(context.WithoutCancel(ctx), key, v, backfillTTL)
		return Result{Data: v, Tier: TierT2}
	}

	if c.cold != nil {
		if raw, ok := c.kv.get(ctx, ColdIndexKey(key)); ok {
			var idx ColdIndex
			if err := json.Unmarshal(raw, &idx); err == nil {
				c.rehyd.schedule(key, idx)
				return Result{Tier: TierCold}
			}
		}
	}

	return Result{Tier: TierMiss}
}

// Put implements the write path of spec.md §4.4: all three tiers are
// populated concurrently; a failure in one tier is logged but never aborts
// the others.
func (c *Cache) Put(ctx context.Context, key string, value []byte, kind Kind, quality float64) {
	ttl := fuzz(AdjustedTTL(kind, quality), 1.2)

	go func() {
		defer recoverLog("edge tier write")
		c.edge.set(context.WithoutCancel(ctx), key, value, minDuration(ttl, 6*time.Hour))
	}()

	go func() {
		defer recoverLog("kv tier write")
		c.kv.set(context.WithoutCancel(ctx), key, value, ttl)
	}()

	if c.cold != nil {
		go func() {
			defer recoverLog("cold tier write")
			idx, err := c.cold.archive(context.WithoutCancel(ctx), key, value, kind, time.Now())
			if err != nil {
				slog.Default().Warn("cold archive write failed", "key", key, "err", err)
				return
			}
			raw, err := json.Marshal(idx)
			if err != nil {
				return
			}
			c.kv.set(context.WithoutCancel(ctx), ColdIndexKey(key), raw, 90*24*time.Hour)
		}()
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func recoverLog(stage string) {
	if r := recover(); r != nil {
		slog.Default().Error("cache tier panic", "stage", stage, "recover", r)
	}
}
