package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// kv is the networked T2 tier: durable within TTL, shared by every
// process. It is also where the rate limiter's counters, the per-provider
// rate gates, and the Results Store live, since all three need the same
// durable-within-TTL, global-visibility properties as the cache proper.
type kv struct {
	rdb *redis.Client
	c   *gocache.Cache[[]byte]
}

func newKV(rdb *redis.Client) *kv {
	return &kv{rdb: rdb, c: gocache.New[[]byte](redisstore.NewRedis(rdb))}
}

func (k *kv) get(ctx context.Context, key string) ([]byte, bool) {
	v, err := k.c.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// ttlRemaining reports how much of key's TTL is left, used to cap the T1
// backfill TTL at min(6h, T2-remaining) per spec.md §4.4.
func (k *kv) ttlRemaining(ctx context.Context, key string) (time.Duration, bool) {
	d, err := k.rdb.TTL(ctx, key).Result()
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// TTL exposes ttlRemaining to external packages (the rate limiter, for
// reporting the actual window reset time rather than a static constant).
func (k *kv) TTL(ctx context.Context, key string) (time.Duration, bool) {
	return k.ttlRemaining(ctx, key)
}

func (k *kv) set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = k.c.Set(ctx, key, value, store.WithExpiration(ttl))
}

func (k *kv) delete(ctx context.Context, key string) {
	_ = k.c.Delete(ctx, key)
}

// Get implements providers.KV and culture.Cache by exposing T2 as a plain
// string store, used by rate gating and cultural enrichment.
func (k *kv) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := k.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetEX implements providers.KV and culture.Cache.
func (k *kv) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return k.rdb.SetEx(ctx, key, value, ttl).Err()
}

// SetNX atomically sets key to value only if absent, returning whether the
// set happened. Used by the results store's write-once Put to avoid a
// read-then-write race.
func (k *kv) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return k.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Incr atomically increments key (creating it at 1 if absent) and returns
// the new value, used by the rate limiter's checkAndIncrement.
func (k *kv) Incr(ctx context.Context, key string) (int64, error) {
	return k.rdb.Incr(ctx, key).Result()
}

// Expire sets key's TTL, replacing any existing one. The rate limiter calls
// it only after the Incr that creates a window's counter, so the window
// actually closes.
func (k *kv) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return k.rdb.Expire(ctx, key, ttl).Err()
}
