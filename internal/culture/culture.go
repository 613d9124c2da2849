// Package culture implements the Cultural Enricher (C3): attaching
// gender/nationality/region attributes to authors, cached aggressively
// because the underlying facts almost never change.
package culture

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shelfscan/shelfd/internal/model"
	"github.com/shelfscan/shelfd/internal/providers"
)

// cacheTTL is how long both hits and negative results are kept: a week,
// matching how rarely an author's demographic facts change.
const cacheTTL = 7 * 24 * time.Hour

// Cache is the subset of the medium cache tier the enricher needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
}

// Enricher resolves an author's cultural/demographic attributes, consulting
// cache before ever calling the upstream lookup.
type Enricher struct {
	lookup providers.AuthorAttributeLookup
	cache  Cache
}

// New builds an Enricher.
func New(lookup providers.AuthorAttributeLookup, cache Cache) *Enricher {
	return &Enricher{lookup: lookup, cache: cache}
}

func cacheKey(author string) string {
	return "culture:author:" + strings.ToLower(strings.TrimSpace(author))
}

// negativeResult sentinel value cached when the lookup definitively found
// nothing, so repeat misses don't re-hit the upstream within the TTL.
const negativeResult = "\x00not-found"

// Enrich fills in an Author's cultural fields, setting them to unknown
// (Gender: unknown, CulturalRegion: unknown) rather than erroring
// when nothing can be resolved.
func (e *Enricher) Enrich(ctx context.Context, author model.Author) (model.Author, error) {
	key := cacheKey(author.Name)

	if raw, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		if raw == negativeResult {
			return withUnknownCulture(author), nil
		}
		var attrs providers.AuthorAttributes
		if json.Unmarshal([]byte(raw), &attrs) == nil {
			return applyAttributes(author, attrs), nil
		}
	}

	attrs, err := e.lookup.LookupAuthorAttributes(ctx, author.Name)
	switch {
	case errors.Is(err, providers.ErrNotFound):
		_ = e.cache.SetEX(ctx, key, negativeResult, cacheTTL)
		return withUnknownCulture(author), nil
	case err != nil:
		// A Failure (upstream down, timeout, etc) is NOT cached: we want
		// the next request to retry rather than locking in an outage.
		return author, err
	}

	if raw, merr := json.Marshal(attrs); merr == nil {
		_ = e.cache.SetEX(ctx, key, string(raw), cacheTTL)
	}
	return applyAttributes(author, attrs), nil
}

func withUnknownCulture(a model.Author) model.Author {
	if a.Gender == "" {
		a.Gender = model.GenderUnknown
	}
	if a.CulturalRegion == "" {
		a.CulturalRegion = model.RegionUnknown
	}
	return a
}

func applyAttributes(a model.Author, attrs providers.AuthorAttributes) model.Author {
	a.Gender = attrs.Gender
	a.CulturalRegion = attrs.CulturalRegion
	a.Nationality = attrs.Nationality
	a.BirthYear = attrs.BirthYear
	a.DeathYear = attrs.DeathYear
	return a
}

// EnrichAll enriches every author on a Work in place, best-effort: a single
// author's lookup failure doesn't fail the whole Work.
func (e *Enricher) EnrichAll(ctx context.Context, w model.Work) model.Work {
	for i, a := range w.Authors {
		enriched, err := e.Enrich(ctx, a)
		if err != nil {
			continue
		}
		w.Authors[i] = enriched
	}
	return w
}
