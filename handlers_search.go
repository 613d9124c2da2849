package main

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shelfscan/shelfd/internal/aggregator"
	"github.com/shelfscan/shelfd/internal/apperr"
	"github.com/shelfscan/shelfd/internal/cache"
	"github.com/shelfscan/shelfd/internal/envelope"
	"github.com/shelfscan/shelfd/internal/model"
)

const maxTitleSearchResults = 20

// handleSearchISBN implements `GET /v1/search/isbn?isbn=…`.
func (e *env) handleSearchISBN(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	isbn := strings.TrimSpace(r.URL.Query().Get("isbn"))
	if isbn == "" {
		writeError(w, start, envelope.CodeMissingParameter, "isbn is required")
		return
	}
	if !isValidISBN(isbn) {
		writeError(w, start, envelope.CodeInvalidISBN, "isbn is malformed")
		return
	}

	work, tier, err := e.engine.ResolveOne(r.Context(), aggregator.Query{ISBN: isbn})
	e.respondOneWork(w, r, start, work, tier, err)
}

// handleSearchTitle implements `GET /v1/search/title?q=…`.
func (e *env) handleSearchTitle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, start, envelope.CodeMissingParameter, "q is required")
		return
	}

	e.respondManyWorks(w, r, start, q, maxTitleSearchResults)
}

// handleSearchAdvanced implements `GET /v1/search/advanced?title=…&author=…`.
func (e *env) handleSearchAdvanced(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	author := strings.TrimSpace(r.URL.Query().Get("author"))
	if title == "" && author == "" {
		writeError(w, start, envelope.CodeMissingParameter, "at least one of title or author is required")
		return
	}

	if title != "" && author == "" {
		// A single free-text field resolves to one best match, same chain
		// as resolveOne's text path.
		work, tier, err := e.engine.ResolveOne(r.Context(), aggregator.Query{Title: title})
		e.respondOneWork(w, r, start, work, tier, err)
		return
	}

	query := strings.TrimSpace(title + " " + author)
	e.respondManyWorks(w, r, start, query, maxTitleSearchResults)
}

// handleEditionsSearch implements
// `GET /v1/editions/search?workTitle=…&author=…&limit=…`: editions of the
// named work, ranked hardcover -> paperback -> e-book -> audiobook, then
// newest first.
func (e *env) handleEditionsSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	workTitle := strings.TrimSpace(q.Get("workTitle"))
	author := strings.TrimSpace(q.Get("author"))
	if workTitle == "" {
		writeError(w, start, envelope.CodeMissingParameter, "workTitle is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, start, envelope.CodeInvalidParameter, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	work, tier, err := e.engine.ResolveOne(r.Context(), aggregator.Query{Title: workTitle, Author: author})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeSearch(w, start, "MISS", "", searchResult{Editions: []model.Edition{}})
			return
		}
		writeEngineError(w, start, err)
		return
	}

	editions := append([]model.Edition{}, work.Editions...)
	sort.SliceStable(editions, func(i, j int) bool {
		ri, rj := model.FormatRank(editions[i].Format), model.FormatRank(editions[j].Format)
		if ri != rj {
			return ri < rj
		}
		return editions[i].PublicationDate > editions[j].PublicationDate
	})
	if limit > 0 && limit < len(editions) {
		editions = editions[:limit]
	}

	setResponseHeaders(w, start, tier.Status())
	ms := time.Since(start).Milliseconds()
	envelope.WriteJSON(w, http.StatusOK, envelope.Success(editions, envelope.Metadata{ProcessingTime: &ms}))
}

// respondOneWork serializes a resolveOne outcome into the `{works,
// editions, authors}` shape: a not-found result is a 200 with empty arrays,
// never a 404 (spec.md §7's "not found" user-visible behavior).
func (e *env) respondOneWork(w http.ResponseWriter, r *http.Request, start time.Time, work model.Work, tier cache.Tier, err error) {
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeSearch(w, start, "MISS", "", emptySearchResult())
			return
		}
		writeEngineError(w, start, err)
		return
	}
	writeSearch(w, start, tier.Status(), work.Provenance.Primary, singleWorkResult(work))
}

// respondManyWorks serializes a resolveMany outcome.
func (e *env) respondManyWorks(w http.ResponseWriter, r *http.Request, start time.Time, query string, maxResults int) {
	result, tier, err := e.engine.ResolveMany(r.Context(), query, maxResults)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeSearch(w, start, "MISS", "", emptySearchResult())
			return
		}
		writeEngineError(w, start, err)
		return
	}

	sr := searchResult{Works: result.Works, Editions: result.Editions, Authors: result.Authors}
	if sr.Works == nil {
		sr.Works = []model.Work{}
	}
	if sr.Editions == nil {
		sr.Editions = []model.Edition{}
	}
	if sr.Authors == nil {
		sr.Authors = []model.Author{}
	}
	writeSearch(w, start, tier.Status(), result.Provider, sr)
}

// writeEngineError translates an Aggregation Engine failure into the
// closed error-code taxonomy of spec.md §7.
func writeEngineError(w http.ResponseWriter, start time.Time, err error) {
	if coded, ok := apperr.AsCoded(err); ok {
		writeError(w, start, coded.Code, coded.Message)
		return
	}
	writeError(w, start, envelope.CodeProviderError, err.Error())
}
