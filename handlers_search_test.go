package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscan/shelfd/internal/aggregator"
	"github.com/shelfscan/shelfd/internal/cache"
	"github.com/shelfscan/shelfd/internal/model"
	"github.com/shelfscan/shelfd/internal/providers"
)

type fakeFullAdapter struct {
	name    string
	byISBN  map[string]providers.Record
	byText  []providers.Record
	textErr error
}

func (f *fakeFullAdapter) Name() string { return f.name }

func (f *fakeFullAdapter) SearchByIdentifier(_ context.Context, isbn string) (providers.Record, error) {
	if r, ok := f.byISBN[isbn]; ok {
		return r, nil
	}
	return providers.Record{}, providers.ErrNotFound
}

func (f *fakeFullAdapter) SearchByFreeText(_ context.Context, _ string, maxResults int) ([]providers.Record, error) {
	if f.textErr != nil {
		return nil, f.textErr
	}
	if maxResults > 0 && len(f.byText) > maxResults {
		return f.byText[:maxResults], nil
	}
	return f.byText, nil
}

func newTestEnv(t *testing.T, isbndb providers.IdentifierSearcher, ol, inv providers.FullAdapter) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.New(rdb, nil, "")
	require.NoError(t, err)

	engine := aggregator.New(aggregator.Config{Cache: c, ISBNdb: isbndb, OpenLibrary: ol, Inventaire: inv})
	return &env{cache: c, engine: engine}
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHandleSearchISBN_MissingParam(t *testing.T) {
	e := newTestEnv(t, &fakeFullAdapter{name: "isbndb"}, &fakeFullAdapter{name: "openlibrary"}, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/search/isbn", nil)
	rr := httptest.NewRecorder()
	e.handleSearchISBN(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "MISSING_PARAMETER", rr.Header().Get("X-Error-Code"))
}

func TestHandleSearchISBN_InvalidShape(t *testing.T) {
	e := newTestEnv(t, &fakeFullAdapter{name: "isbndb"}, &fakeFullAdapter{name: "openlibrary"}, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/search/isbn?isbn=xyz", nil)
	rr := httptest.NewRecorder()
	e.handleSearchISBN(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ISBN", rr.Header().Get("X-Error-Code"))
}

func TestHandleSearchISBN_NotFoundIsTwoHundredWithEmptyArrays(t *testing.T) {
	e := newTestEnv(t, &fakeFullAdapter{name: "isbndb"}, &fakeFullAdapter{name: "openlibrary"}, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/search/isbn?isbn=9780439708180", nil)
	rr := httptest.NewRecorder()
	e.handleSearchISBN(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	data := body["data"].(map[string]any)
	assert.Empty(t, data["works"])
	assert.Nil(t, body["error"])
}

func TestHandleSearchISBN_Found(t *testing.T) {
	isbndb := &fakeFullAdapter{name: "isbndb", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "isbndb", Work: model.Work{Title: "Harry Potter and the Sorcerer's Stone"}},
	}}
	e := newTestEnv(t, isbndb, &fakeFullAdapter{name: "openlibrary"}, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/search/isbn?isbn=9780439708180", nil)
	rr := httptest.NewRecorder()
	e.handleSearchISBN(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	data := body["data"].(map[string]any)
	works := data["works"].([]any)
	require.Len(t, works, 1)
	assert.Equal(t, "Harry Potter and the Sorcerer's Stone", works[0].(map[string]any)["title"])
}

func TestHandleSearchISBN_CacheStatusMissThenHit(t *testing.T) {
	isbndb := &fakeFullAdapter{name: "isbndb", byISBN: map[string]providers.Record{
		"9780439708180": {Provider: "isbndb", Work: model.Work{
			Title:       "Harry Potter and the Sorcerer's Stone",
			Description: "A boy wizard attends a school of magic.",
			CoverURL:    "https://example.test/cover.jpg",
		}},
	}}
	e := newTestEnv(t, isbndb, &fakeFullAdapter{name: "openlibrary"}, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/search/isbn?isbn=9780439708180", nil)
	rr := httptest.NewRecorder()
	e.handleSearchISBN(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache-Status"))
	body := decodeEnvelope(t, rr)
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, false, meta["cached"])

	req2 := httptest.NewRequest(http.MethodGet, "/v1/search/isbn?isbn=9780439708180", nil)
	rr2 := httptest.NewRecorder()
	e.handleSearchISBN(rr2, req2)
	require.Equal(t, http.StatusOK, rr2.Code)
	assert.Equal(t, "HIT", rr2.Header().Get("X-Cache-Status"))
	body2 := decodeEnvelope(t, rr2)
	meta2 := body2["metadata"].(map[string]any)
	assert.Equal(t, true, meta2["cached"])
}

func TestHandleEditionsSearch_RanksFormatThenDate(t *testing.T) {
	ol := &fakeFullAdapter{name: "openlibrary", byISBN: map[string]providers.Record{}}
	ol.byText = []providers.Record{{
		Provider: "openlibrary",
		Work: model.Work{
			Title: "Dune",
			Editions: []model.Edition{
				{Format: model.FormatEbook, PublicationDate: "2020"},
				{Format: model.FormatHardcover, PublicationDate: "1965"},
				{Format: model.FormatHardcover, PublicationDate: "2005"},
			},
		},
	}}
	e := newTestEnv(t, &fakeFullAdapter{name: "isbndb"}, ol, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/editions/search?workTitle=Dune", nil)
	rr := httptest.NewRecorder()
	e.handleEditionsSearch(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out struct {
		Data []model.Edition `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Data, 3)
	assert.Equal(t, model.FormatHardcover, out.Data[0].Format)
	assert.Equal(t, "2005", out.Data[0].PublicationDate)
	assert.Equal(t, model.FormatHardcover, out.Data[1].Format)
	assert.Equal(t, "1965", out.Data[1].PublicationDate)
	assert.Equal(t, model.FormatEbook, out.Data[2].Format)
}

func TestHandleEditionsSearch_MissingWorkTitle(t *testing.T) {
	e := newTestEnv(t, &fakeFullAdapter{name: "isbndb"}, &fakeFullAdapter{name: "openlibrary"}, &fakeFullAdapter{name: "inventaire"})

	req := httptest.NewRequest(http.MethodGet, "/v1/editions/search", nil)
	rr := httptest.NewRecorder()
	e.handleEditionsSearch(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
