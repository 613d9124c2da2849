package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// rehydrator coalesces concurrent rehydration requests for the same key so
// a burst of callers hitting the same cold entry triggers exactly one
// archive fetch, the same way the aggregation layer coalesces duplicate
// upstream lookups.
type rehydrator struct {
	cache *Cache

	mu      sync.Mutex
	inFlight map[string]bool
}

func newRehydrator(c *Cache) *rehydrator {
	return &rehydrator{cache: c, inFlight: map[string]bool{}}
}

// schedule kicks off a background fetch-and-restore for key if one isn't
// already running. The caller never waits on this.
func (r *rehydrator) schedule(key string, idx ColdIndex) {
	r.mu.Lock()
	if r.inFlight[key] {
		r.mu.Unlock()
		return
	}
	r.inFlight[key] = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, key)
			r.mu.Unlock()
		}()
		r.rehydrate(key, idx)
	}()
}

func (r *rehydrator) rehydrate(key string, idx ColdIndex) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	value, err := r.cache.cold.fetch(ctx, idx)
	if err != nil {
		slog.Default().Warn("rehydration fetch failed", "key", key, "path", idx.Path, "err", err)
		return
	}

	r.cache.kv.set(ctx, key, value, 7*24*time.Hour)
	r.cache.edge.set(ctx, key, value, 6*time.Hour)
	r.cache.kv.delete(ctx, ColdIndexKey(key))
}
