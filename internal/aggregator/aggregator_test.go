package aggregator

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/cache"
	"github.com/shelfscan/shelfd/internal/model"
	"github.com/shelfscan/shelfd/internal/providers"
)

type fakeAdapter struct {
	name       string
	byISBN     map[string]providers.Record
	byText     []providers.Record
	textErr    error
	identErr   error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) SearchByIdentifier(_ context.Context, isbn string) (providers.Record, error) {
	if f.identErr != nil {
		return providers.Record{}, f.identErr
	}
	if r, ok := f.byISBN[isbn]; ok {
		return r, nil
	}
	return providers.Record{}, providers.ErrNotFound
}

func (f *fakeAdapter) SearchByFreeText(_ context.Context, _ string, maxResults int) ([]providers.Record, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	if len(f.byText) > maxResults && maxResults > 0 {
		return f.byText[:maxResults], nil
	}
	return f.byText, nil
}

func newTestEngine(t *testing.T, isbndb providers.IdentifierSearcher, ol, inv providers.FullAdapter) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.New(rdb, nil, "")
	require.NoError(t, err)
	return New(Config{Cache: c, ISBNdb: isbndb, OpenLibrary: ol, Inventaire: inv})
}

func TestResolveOne_ISBNHitsPrimaryFirst(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "isbndb", Work: model.Work{Title: "Harry Potter and the Sorcerer's Stone"}},
	}}
	ol := &fakeAdapter{name: "openlibrary"}
	inv := &fakeAdapter{name: "inventaire"}

	e := newTestEngine(t, isbndb, ol, inv)
	w, _, err := e.ResolveOne(context.Background(), Query{ISBN: "9780439708180"})
	require.NoError(t, err)
	assert.Equal(t, "Harry Potter and the Sorcerer's Stone", w.Title)
}

func TestResolveOne_ISBNFallsThroughOnNotFound(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb"}
	ol := &fakeAdapter{name: "openlibrary", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "openlibrary", Work: model.Work{Title: "Fallback Title"}},
	}}
	inv := &fakeAdapter{name: "inventaire"}

	e := newTestEngine(t, isbndb, ol, inv)
	w, _, err := e.ResolveOne(context.Background(), Query{ISBN: "9780439708180"})
	require.NoError(t, err)
	assert.Equal(t, "Fallback Title", w.Title)
}

func TestResolveOne_ISBNNotFoundAnywhere(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb"}
	ol := &fakeAdapter{name: "openlibrary"}
	inv := &fakeAdapter{name: "inventaire"}

	e := newTestEngine(t, isbndb, ol, inv)
	_, _, err := e.ResolveOne(context.Background(), Query{ISBN: "0000000000000"})
	assert.Error(t, err)
}

func TestResolveOne_TextFallsThroughToSecondary(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb"}
	ol := &fakeAdapter{name: "openlibrary", textErr: providers.ErrNotFound}
	inv := &fakeAdapter{name: "inventaire", byText: []providers.Record{
		{Provider: "inventaire", Work: model.Work{Title: "Secondary Match"}},
	}}

	e := newTestEngine(t, isbndb, ol, inv)
	w, _, err := e.ResolveOne(context.Background(), Query{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	assert.Equal(t, "Secondary Match", w.Title)
}

func TestResolveOne_ReportsMissOnFirstCallAndHitOnSecond(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "isbndb", Work: model.Work{
			Title:       "Harry Potter and the Sorcerer's Stone",
			Description: "A boy wizard attends a school of magic, over and over.",
			CoverURL:    "https://example.test/cover.jpg",
		}},
	}}
	ol := &fakeAdapter{name: "openlibrary"}
	inv := &fakeAdapter{name: "inventaire"}

	e := newTestEngine(t, isbndb, ol, inv)

	_, tier1, err := e.ResolveOne(context.Background(), Query{ISBN: "9780439708180"})
	require.NoError(t, err)
	assert.Equal(t, cache.TierMiss, tier1)

	_, tier2, err := e.ResolveOne(context.Background(), Query{ISBN: "9780439708180"})
	require.NoError(t, err)
	assert.NotEqual(t, cache.TierMiss, tier2, "second call should be served from cache")
}

func TestResolveOne_ISBNMergesSupplementalProviderWhenPrimaryIsPartial(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "isbndb", Work: model.Work{
			Title: "Harry Potter and the Sorcerer's Stone",
			// No description, no cover, no external IDs: partial.
		}},
	}}
	ol := &fakeAdapter{name: "openlibrary", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "openlibrary", Work: model.Work{
			Title:       "Harry Potter and the Sorcerer's Stone",
			Description: "A boy wizard attends a school of magic.",
			CoverURL:    "https://example.test/cover.jpg",
			ExternalIDs: model.ExternalIDs{Goodreads: model.NewStringSet("3")},
		}},
	}}
	inv := &fakeAdapter{name: "inventaire"}

	e := newTestEngine(t, isbndb, ol, inv)
	w, _, err := e.ResolveOne(context.Background(), Query{ISBN: "9780439708180"})
	require.NoError(t, err)

	assert.Equal(t, "A boy wizard attends a school of magic.", w.Description)
	assert.Equal(t, "https://example.test/cover.jpg", w.CoverURL)
	assert.True(t, w.ExternalIDs.Goodreads.Has("3"))
	assert.True(t, w.Provenance.Contributors.Has("openlibrary"), "secondary provider must be recorded as a contributor")
}

func TestResolveMany_DedupesAuthorsAcrossWorks(t *testing.T) {
	isbndb := &fakeAdapter{name: "isbndb"}
	ol := &fakeAdapter{name: "openlibrary", byText: []providers.Record{
		{Provider: "openlibrary", Work: model.Work{Title: "Book One", Authors: []model.Author{{Name: "Jane Doe"}}}},
		{Provider: "openlibrary", Work: model.Work{Title: "Book Two", Authors: []model.Author{{Name: "Jane Doe"}}}},
	}}
	inv := &fakeAdapter{name: "inventaire"}

	e := newTestEngine(t, isbndb, ol, inv)
	result, _, err := e.ResolveMany(context.Background(), "jane doe books", 10)
	require.NoError(t, err)
	assert.Len(t, result.Works, 2)
	assert.Len(t, result.Authors, 1)
}
