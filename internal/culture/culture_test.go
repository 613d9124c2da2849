package culture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/model"
	"github.com/shelfscan/shelfd/internal/providers"
)

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache { return &memCache{m: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) SetEX(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

type fakeLookup struct {
	calls int
	attrs providers.AuthorAttributes
	err   error
}

func (f *fakeLookup) Name() string { return "fake" }

func (f *fakeLookup) LookupAuthorAttributes(_ context.Context, _ string) (providers.AuthorAttributes, error) {
	f.calls++
	return f.attrs, f.err
}

func TestEnrich_CachesHit(t *testing.T) {
	lookup := &fakeLookup{attrs: providers.AuthorAttributes{
		Gender: model.GenderFemale, CulturalRegion: model.RegionEastAsia, Nationality: "China",
	}}
	e := New(lookup, newMemCache())

	a1, err := e.Enrich(context.Background(), model.Author{Name: "Liu Cixin"})
	require.NoError(t, err)
	assert.Equal(t, model.GenderFemale, a1.Gender)

	a2, err := e.Enrich(context.Background(), model.Author{Name: "Liu Cixin"})
	require.NoError(t, err)
	assert.Equal(t, model.RegionEastAsia, a2.CulturalRegion)
	assert.Equal(t, 1, lookup.calls, "second call should be served from cache")
}

func TestEnrich_CachesNegativeResult(t *testing.T) {
	lookup := &fakeLookup{err: providers.ErrNotFound}
	e := New(lookup, newMemCache())

	a1, err := e.Enrich(context.Background(), model.Author{Name: "Nobody"})
	require.NoError(t, err)
	assert.Equal(t, model.GenderUnknown, a1.Gender)

	_, err = e.Enrich(context.Background(), model.Author{Name: "Nobody"})
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.calls, "negative result should also be cached")
}

func TestEnrich_DoesNotCacheUpstreamFailure(t *testing.T) {
	lookup := &fakeLookup{err: &providers.Failure{Provider: "wikidata", Kind: providers.FailureTimeout}}
	e := New(lookup, newMemCache())

	_, err := e.Enrich(context.Background(), model.Author{Name: "Someone"})
	assert.Error(t, err)

	_, err = e.Enrich(context.Background(), model.Author{Name: "Someone"})
	assert.Error(t, err)
	assert.Equal(t, 2, lookup.calls, "a provider failure must not be cached")
}
