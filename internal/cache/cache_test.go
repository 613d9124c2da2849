package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

type errNoSuchKey struct{}

func (errNoSuchKey) Error() string { return "NoSuchKey" }

func newTestCache(t *testing.T) (*Cache, *fakeS3) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s3c := newFakeS3()
	c, err := New(rdb, s3c, "test-bucket")
	require.NoError(t, err)
	return c, s3c
}

func TestCache_WriteThenReadHitsT1(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, "search:title:dune", []byte(`{"title":"Dune"}`), KindTitleSearch, 0.9)
	time.Sleep(50 * time.Millisecond) // let the async tier writes land

	res := c.Get(ctx, "search:title:dune")
	require.Equal(t, TierT1, res.Tier)
	require.Equal(t, `{"title":"Dune"}`, string(res.Data))
}

func TestCache_MissReportsTierMiss(t *testing.T) {
	c, _ := newTestCache(t)
	res := c.Get(context.Background(), "search:title:nonexistent")
	require.Equal(t, TierMiss, res.Tier)
	require.Nil(t, res.Data)
}

func TestCache_ColdIndexSchedulesRehydration(t *testing.T) {
	c, s3c := newTestCache(t)
	ctx := context.Background()

	idx, err := c.cold.archive(ctx, "search:title:dune", []byte("archived-payload"), KindTitleSearch, time.Now())
	require.NoError(t, err)
	require.Equal(t, "archived-payload", string(s3c.objects[idx.Path]))

	raw, err := json.Marshal(idx)
	require.NoError(t, err)
	c.kv.set(ctx, ColdIndexKey("search:title:dune"), raw, 90*24*time.Hour)

	res := c.Get(ctx, "search:title:dune")
	require.Equal(t, TierCold, res.Tier)
	require.Nil(t, res.Data)

	require.Eventually(t, func() bool {
		v, ok := c.kv.get(ctx, "search:title:dune")
		return ok && string(v) == "archived-payload"
	}, time.Second, 10*time.Millisecond)
}
