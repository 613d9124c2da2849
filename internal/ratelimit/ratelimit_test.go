package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/cache"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.New(rdb, nil, "")
	require.NoError(t, err)
	return New(c).WithLimit(3, time.Minute)
}

func TestLimiter_AllowsUnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := l.CheckAndIncrement(ctx, "1.2.3.4")
		assert.True(t, d.Allowed)
	}
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.CheckAndIncrement(ctx, "1.2.3.4")
	}
	d := l.CheckAndIncrement(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfterSeconds(), 0)
}

func TestLimiter_ResetInReflectsActualWindowTTLNotStaticWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.New(rdb, nil, "")
	require.NoError(t, err)
	l := New(c).WithLimit(3, time.Minute)
	ctx := context.Background()

	l.CheckAndIncrement(ctx, "1.2.3.4")

	mr.FastForward(40 * time.Second)

	d := l.CheckAndIncrement(ctx, "1.2.3.4")
	assert.Less(t, d.ResetIn, time.Minute, "ResetIn should reflect the remaining TTL, not the full configured window")
	assert.Greater(t, d.ResetIn, time.Duration(0))
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.CheckAndIncrement(ctx, "1.2.3.4")
	}
	d := l.CheckAndIncrement(ctx, "5.6.7.8")
	assert.True(t, d.Allowed)
}

func TestDecision_Headers(t *testing.T) {
	d := Decision{Limit: 10, Remaining: 7, ResetIn: 45 * time.Second}
	h := d.Headers()
	assert.Equal(t, "10", h["X-RateLimit-Limit"])
	assert.Equal(t, "7", h["X-RateLimit-Remaining"])
	assert.Equal(t, "45", h["X-RateLimit-Reset"])
}
