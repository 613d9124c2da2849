package results

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/apperr"
	"github.com/shelfscan/shelfd/internal/cache"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.New(rdb, nil, "")
	require.NoError(t, err)
	return New(c)
}

type summary struct {
	Count int `json:"count"`
}

func TestStore_PutThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ai_scan", "job-1", summary{Count: 42}))

	var got summary
	require.NoError(t, s.Get(ctx, "ai_scan", "job-1", &got))
	assert.Equal(t, 42, got.Count)
}

func TestStore_SecondWriteRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ai_scan", "job-1", summary{Count: 1}))
	err := s.Put(ctx, "ai_scan", "job-1", summary{Count: 2})
	assert.ErrorIs(t, err, ErrAlreadyWritten)

	var got summary
	require.NoError(t, s.Get(ctx, "ai_scan", "job-1", &got))
	assert.Equal(t, 1, got.Count, "second write must not mutate the stored value")
}

func TestStore_MissingKeyReportsNotFound(t *testing.T) {
	s := newTestStore(t)
	var got summary
	err := s.Get(context.Background(), "ai_scan", "nonexistent", &got)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
