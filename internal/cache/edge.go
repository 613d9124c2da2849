package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristrettostore "github.com/eko/gocache/store/ristretto/v4"
)

// edge is the bounded in-process T1 tier: sub-10ms, volatile, capacity
// limited by ristretto's cost-based eviction rather than a hard item count.
type edge struct {
	c *gocache.Cache[[]byte]
}

// newEdge builds the T1 tier with a fixed admission/eviction budget.
func newEdge() (*edge, error) {
	r, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e7,       // track ~10x the working set for admission accuracy
		MaxCost:     1 << 28,   // 256MB of cached payload bytes
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &edge{c: gocache.New[[]byte](ristrettostore.NewRistretto(r))}, nil
}

func (e *edge) get(ctx context.Context, key string) ([]byte, bool) {
	v, err := e.c.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (e *edge) set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = e.c.Set(ctx, key, value, store.WithExpiration(ttl), store.WithCost(int64(len(value))))
}
