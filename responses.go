package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shelfscan/shelfd/internal/envelope"
	"github.com/shelfscan/shelfd/internal/model"
)

// searchResult is the `{ works, editions, authors }` shape every synchronous
// search route returns, per spec.md §6. Slices are initialized non-nil so a
// definitive miss still serializes as `[]`, never `null`.
type searchResult struct {
	Works    []model.Work    `json:"works"`
	Editions []model.Edition `json:"editions"`
	Authors  []model.Author  `json:"authors"`
}

func emptySearchResult() searchResult {
	return searchResult{Works: []model.Work{}, Editions: []model.Edition{}, Authors: []model.Author{}}
}

func singleWorkResult(w model.Work) searchResult {
	res := searchResult{Works: []model.Work{w}, Editions: w.Editions, Authors: w.Authors}
	if res.Editions == nil {
		res.Editions = []model.Edition{}
	}
	if res.Authors == nil {
		res.Authors = []model.Author{}
	}
	return res
}

// writeSearch writes a successful envelope around a search result, setting
// the timing and cache-status headers spec.md §6 requires on every
// response. cacheStatus is "HIT" or "MISS" (see cache.Tier.Status).
func writeSearch(w http.ResponseWriter, start time.Time, cacheStatus string, provider string, result searchResult) {
	setResponseHeaders(w, start, cacheStatus)
	ms := time.Since(start).Milliseconds()
	cached := cacheStatus == "HIT"
	envelope.WriteJSON(w, http.StatusOK, envelope.Success(result, envelope.Metadata{
		ProcessingTime: &ms,
		Provider:       provider,
		Cached:         &cached,
	}))
}

// writeAccepted writes the 202 `{ jobId, token }` shape common to every
// async pipeline's submission endpoint.
func writeAccepted(w http.ResponseWriter, start time.Time, jobID, token string) {
	setResponseHeaders(w, start, "NONE")
	envelope.WriteJSON(w, http.StatusAccepted, envelope.Success(struct {
		JobID string `json:"jobId"`
		Token string `json:"token"`
	}{JobID: jobID, Token: token}, envelope.Metadata{}))
}

func writeError(w http.ResponseWriter, start time.Time, code envelope.Code, message string) {
	setResponseHeaders(w, start, "NONE")
	envelope.WriteError(w, code, message, nil)
}

func setResponseHeaders(w http.ResponseWriter, start time.Time, cacheStatus string) {
	w.Header().Set("X-Response-Time", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	w.Header().Set("X-Cache-Status", cacheStatus)
}
