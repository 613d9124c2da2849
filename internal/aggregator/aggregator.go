// Package aggregator implements the Aggregation Engine (C5): resolving a
// single book or a free-text query across providers, merging what comes
// back, and enriching authors before returning.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/shelfscan/shelfd/internal/apperr"
	"github.com/shelfscan/shelfd/internal/cache"
	"github.com/shelfscan/shelfd/internal/envelope"
	"github.com/shelfscan/shelfd/internal/genre"
	"github.com/shelfscan/shelfd/internal/model"
	"github.com/shelfscan/shelfd/internal/providers"
)

// AuthorEnricher is the Cultural Enricher's entry point, narrowed to what
// the aggregator needs so it doesn't import internal/culture directly.
type AuthorEnricher interface {
	Enrich(ctx context.Context, author model.Author) (model.Author, error)
}

// CoverFallback is the best-effort scrape consulted only when every
// structured provider left a Work's cover or description empty; it never
// contributes provenance and a miss here is never surfaced as an error.
type CoverFallback interface {
	FetchCoverAndDescription(ctx context.Context, title, author string) (coverURL, description string)
}

// Engine is the Aggregation Engine. It coalesces duplicate concurrent
// lookups for the same cache key via a singleflight group, the same
// mechanism the teacher uses to prevent redundant upstream work.
type Engine struct {
	cache *cache.Cache
	group singleflight.Group

	isbndb      providers.IdentifierSearcher
	openlibrary providers.FullAdapter
	inventaire  providers.FullAdapter

	culture AuthorEnricher
	cover   CoverFallback
}

// Config names which adapters play which role in the fallback chains. The
// primary/secondary split is fixed by spec: ISBNdb is always consulted
// first for identifiers, OpenLibrary is always the primary free-text
// provider with Inventaire as secondary.
type Config struct {
	Cache       *cache.Cache
	ISBNdb      providers.IdentifierSearcher
	OpenLibrary providers.FullAdapter
	Inventaire  providers.FullAdapter
	Culture     AuthorEnricher
	Cover       CoverFallback
}

// New builds an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		cache:       cfg.Cache,
		isbndb:      cfg.ISBNdb,
		openlibrary: cfg.OpenLibrary,
		inventaire:  cfg.Inventaire,
		culture:     cfg.Culture,
		cover:       cfg.Cover,
	}
}

// Query is the input to ResolveOne: at least one of ISBN or (Title/Author)
// must be set.
type Query struct {
	Title  string
	Author string
	ISBN   string
}

// ManyResult is the output of ResolveMany.
type ManyResult struct {
	Works    []model.Work
	Editions []model.Edition
	Authors  []model.Author
	Provider string
}

// resolved is what a singleflight.Do closure hands back internally: the
// work alongside the cache tier it actually came from, so ResolveOne and
// ResolveMany can report real cache-status to their callers instead of a
// hardcoded value.
type resolved struct {
	work model.Work
	tier cache.Tier
}

// ResolveOne implements spec.md §4.5's single-record resolution: ISBN chain
// when an ISBN is present, otherwise the free-text chain. The returned tier
// is the cache.Tier the result was served from (cache.TierMiss when it came
// fresh from a provider).
func (e *Engine) ResolveOne(ctx context.Context, q Query) (model.Work, cache.Tier, error) {
	if q.ISBN != "" {
		return e.resolveOneByISBN(ctx, q.ISBN)
	}
	return e.resolveOneByText(ctx, q)
}

func (e *Engine) resolveOneByISBN(ctx context.Context, isbn string) (model.Work, cache.Tier, error) {
	key := cache.Key(cache.KindISBNLookup, isbn, nil)

	raw, err, _ := e.group.Do(key, func() (any, error) {
		if hit := e.cache.Get(ctx, key); hit.Tier != cache.TierMiss && hit.Data != nil {
			var w model.Work
			if json.Unmarshal(hit.Data, &w) == nil {
				return resolved{work: w, tier: hit.Tier}, nil
			}
		}

		rec, err := e.isbndb.SearchByIdentifier(ctx, isbn)
		if err == nil {
			w := rec.Work
			if isPartial(w) {
				if supp, serr := e.openlibrary.SearchByIdentifier(ctx, isbn); serr == nil {
					w = mergeSupplemental(w, supp.Work, supp.Provider)
				}
			}
			e.storeWork(ctx, key, w, cache.KindISBNLookup, rec.Provider)
			return resolved{work: w, tier: cache.TierMiss}, nil
		}
		if !fallthroughable(err) {
			return model.Work{}, err
		}

		rec, err = e.openlibrary.SearchByIdentifier(ctx, isbn)
		if err != nil {
			if errors.Is(err, providers.ErrNotFound) {
				return model.Work{}, apperr.ErrNotFound
			}
			return model.Work{}, err
		}

		e.storeWork(ctx, key, rec.Work, cache.KindISBNLookup, rec.Provider)
		return resolved{work: rec.Work, tier: cache.TierMiss}, nil
	})
	if err != nil {
		return model.Work{}, cache.TierMiss, err
	}
	r := raw.(resolved)
	w, ferr := e.finalize(ctx, r.work)
	return w, r.tier, ferr
}

func (e *Engine) resolveOneByText(ctx context.Context, q Query) (model.Work, cache.Tier, error) {
	query := strings.TrimSpace(strings.TrimSpace(q.Title) + " " + strings.TrimSpace(q.Author))
	key := cache.Key(cache.KindTitleSearch, query, nil)

	raw, err, _ := e.group.Do(key, func() (any, error) {
		if hit := e.cache.Get(ctx, key); hit.Tier != cache.TierMiss && hit.Data != nil {
			var w model.Work
			if json.Unmarshal(hit.Data, &w) == nil {
				return resolved{work: w, tier: hit.Tier}, nil
			}
		}

		var nonRetryable error

		records, err := e.openlibrary.SearchByFreeText(ctx, query, 1)
		provider := "openlibrary"
		if err != nil && !fallthroughable(err) {
			return model.Work{}, apperr.New(envelope.CodeProviderError, err.Error(), nil)
		}
		if len(records) == 0 {
			records, err = e.inventaire.SearchByFreeText(ctx, query, 1)
			provider = "inventaire"
			if err != nil && !fallthroughable(err) {
				nonRetryable = err
			}
		}

		if len(records) == 0 {
			if nonRetryable != nil {
				return model.Work{}, apperr.New(envelope.CodeProviderError, nonRetryable.Error(), nil)
			}
			return model.Work{}, apperr.ErrNotFound
		}

		w := records[0].Work
		if records[0].Provider != "" {
			provider = records[0].Provider
		}
		e.storeWork(ctx, key, w, cache.KindTitleSearch, provider)
		return resolved{work: w, tier: cache.TierMiss}, nil
	})
	if err != nil {
		return model.Work{}, cache.TierMiss, err
	}
	r := raw.(resolved)
	w, ferr := e.finalize(ctx, r.work)
	return w, r.tier, ferr
}

// resolvedMany mirrors resolved but for ResolveMany's marshaled-bytes path.
type resolvedMany struct {
	data []byte
	tier cache.Tier
}

// ResolveMany implements spec.md §4.5's free-text multi-result search. The
// returned tier is the cache.Tier the result was served from.
func (e *Engine) ResolveMany(ctx context.Context, query string, maxResults int) (ManyResult, cache.Tier, error) {
	key := cache.Key(cache.KindTitleSearch, query, map[string]string{"n": strconv.Itoa(maxResults)})

	raw, err, _ := e.group.Do(key, func() (any, error) {
		if hit := e.cache.Get(ctx, key); hit.Tier != cache.TierMiss && hit.Data != nil {
			return resolvedMany{data: hit.Data, tier: hit.Tier}, nil
		}

		records, err := e.openlibrary.SearchByFreeText(ctx, query, maxResults)
		provider := "openlibrary"
		if err != nil || len(records) == 0 {
			records, err = e.inventaire.SearchByFreeText(ctx, query, maxResults)
			provider = "inventaire"
			if err != nil {
				return nil, err
			}
		}

		works := make([]model.Work, 0, len(records))
		for _, r := range records {
			w := r.Work
			w.Provenance = model.Provenance{Primary: r.Provider, Contributors: model.NewStringSet(r.Provider)}
			w.Synthetic = false
			w.Genres = genre.Normalize(w.Genres, r.Provider)
			w.NormalizeGenres()
			works = append(works, w)
		}

		merged := ManyResult{Provider: provider}
		merged.Works = works
		merged.Authors = dedupeAuthors(works)
		for _, w := range works {
			merged.Editions = append(merged.Editions, w.Editions...)
		}

		data, merr := json.Marshal(merged)
		if merr != nil {
			return nil, merr
		}
		e.cache.Put(ctx, key, data, cache.KindTitleSearch, 0.6)
		return resolvedMany{data: data, tier: cache.TierMiss}, nil
	})
	if err != nil {
		return ManyResult{}, cache.TierMiss, err
	}

	rm := raw.(resolvedMany)
	var result ManyResult
	if uerr := json.Unmarshal(rm.data, &result); uerr != nil {
		return ManyResult{}, cache.TierMiss, uerr
	}

	e.enrichAuthorsInPlace(ctx, &result)
	return result, rm.tier, nil
}

// finalize canonicalizes a resolved Work's genres, backfills a missing cover
// or description from the scrape fallback -- never load-bearing, never
// surfaced as an error on miss -- and then runs the Cultural Enricher over
// every author.
func (e *Engine) finalize(ctx context.Context, w model.Work) (model.Work, error) {
	w.Genres = genre.Normalize(w.Genres, w.Provenance.Primary)
	w.NormalizeGenres()

	if e.cover != nil && (w.CoverURL == "" || w.Description == "") {
		author := ""
		if len(w.Authors) > 0 {
			author = w.Authors[0].Name
		}
		coverURL, description := e.cover.FetchCoverAndDescription(ctx, w.Title, author)
		if w.CoverURL == "" {
			w.CoverURL = coverURL
		}
		if w.Description == "" {
			w.Description = description
		}
	}

	if e.culture == nil {
		return w, nil
	}
	var wg sync.WaitGroup
	wg.Add(len(w.Authors))
	for i := range w.Authors {
		i := i
		go func() {
			defer wg.Done()
			enriched, err := e.culture.Enrich(ctx, w.Authors[i])
			if err != nil {
				return
			}
			w.Authors[i] = enriched
		}()
	}
	wg.Wait()
	return w, nil
}

// enrichAuthorsInPlace calls the Cultural Enricher on every unique author
// across a ResolveMany result in parallel, per spec.md §4.5.
func (e *Engine) enrichAuthorsInPlace(ctx context.Context, result *ManyResult) {
	if e.culture == nil {
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(result.Authors))
	for i := range result.Authors {
		i := i
		go func() {
			defer wg.Done()
			enriched, err := e.culture.Enrich(ctx, result.Authors[i])
			if err != nil {
				return
			}
			result.Authors[i] = enriched
		}()
	}
	wg.Wait()
}

// dedupeAuthors collapses authors across works by exact name match,
// preserving first-occurrence attributes.
func dedupeAuthors(works []model.Work) []model.Author {
	seen := map[string]bool{}
	var out []model.Author
	for _, w := range works {
		for _, a := range w.Authors {
			if seen[a.Name] {
				continue
			}
			seen[a.Name] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// storeWork writes a single resolved Work into the cache under key. provider
// is the adapter that produced w, used to pick the right hierarchical genre
// table in genre.Normalize.
func (e *Engine) storeWork(ctx context.Context, key string, w model.Work, kind cache.Kind, provider string) {
	w.Genres = genre.Normalize(w.Genres, provider)
	w.NormalizeGenres()
	raw, err := json.Marshal(w)
	if err != nil {
		return
	}
	quality := qualityOf(w)
	e.cache.Put(ctx, key, raw, kind, quality)
}

func qualityOf(w model.Work) float64 {
	hasID := len(w.ExternalIDs.Goodreads)+len(w.ExternalIDs.Amazon) > 0
	for _, ed := range w.Editions {
		if len(ed.ISBNs) > 0 {
			hasID = true
		}
	}
	score := 0.0
	if hasID {
		score += 0.5
	}
	if w.CoverURL != "" {
		score += 0.3
	}
	if len(w.Description) > 200 {
		score += 0.2
	}
	return score
}

// isPartial reports whether w is missing enough supplemental data that a
// second provider is worth consulting to fill it in.
func isPartial(w model.Work) bool {
	if w.Description == "" || w.CoverURL == "" {
		return true
	}
	ids := w.ExternalIDs
	return len(ids.Goodreads)+len(ids.Amazon)+len(ids.LibraryThing)+len(ids.GoogleBooks) == 0
}

// mergeSupplemental combines a secondary provider's record into primary when
// both describe the same logical Work: external ID sets union, genres
// union, the longer description wins, and an HTTPS cover URL is preferred
// over a non-HTTPS one (ties broken by keeping whichever primary already
// had). The secondary provider is recorded as a contributor even when none
// of its fields end up winning.
func mergeSupplemental(primary, secondary model.Work, secondaryProvider string) model.Work {
	primary.ExternalIDs = primary.ExternalIDs.Merge(secondary.ExternalIDs)
	primary.Genres = append(primary.Genres, secondary.Genres...)
	primary.Provenance = primary.Provenance.WithContributor(secondaryProvider)

	if len(secondary.Description) > len(primary.Description) {
		primary.Description = secondary.Description
	}
	primary.CoverURL = preferCoverURL(primary.CoverURL, secondary.CoverURL)

	return primary
}

// preferCoverURL implements the HTTPS-then-quality cover preference: an
// empty current URL always loses, an HTTPS candidate beats a non-HTTPS
// current URL, and otherwise the current URL is kept.
func preferCoverURL(current, candidate string) string {
	if candidate == "" {
		return current
	}
	if current == "" {
		return candidate
	}
	if !strings.HasPrefix(current, "https://") && strings.HasPrefix(candidate, "https://") {
		return candidate
	}
	return current
}

// fallthroughable reports whether err should cause the aggregator to try
// the next provider in the chain rather than surface immediately.
func fallthroughable(err error) bool {
	if errors.Is(err, providers.ErrNotFound) {
		return true
	}
	if f, ok := providers.AsFailure(err); ok {
		return f.Kind.Retryable()
	}
	return false
}
