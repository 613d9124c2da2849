// Package providers implements one stateless adapter per upstream catalog
// (C1): translating a provider's wire format into the normalized record the
// rest of the core consumes, and surfacing typed, closed failures instead of
// duck-typed upstream errors.
package providers

import (
	"context"
	"errors"

	"github.com/shelfscan/shelfd/internal/model"
)

// FailureKind is the closed set of adapter failure modes from spec.md §4.1.
type FailureKind string

const (
	FailureTimeout           FailureKind = "timeout"
	FailureRateLimited       FailureKind = "rate-limited"
	FailureUpstream5xx       FailureKind = "upstream-5xx"
	FailureAuth              FailureKind = "auth"
	FailureMalformedResponse FailureKind = "malformed-response"
)

// Retryable reports whether the Aggregation Engine should fall through to
// the next provider rather than surfacing the failure.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureRateLimited, FailureUpstream5xx:
		return true
	default:
		return false
	}
}

// Failure is a typed adapter error. It always identifies the offending
// provider so the aggregator can log and attribute it.
type Failure struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Provider + ": " + string(f.Kind) + ": " + f.Err.Error()
	}
	return f.Provider + ": " + string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ErrNotFound is returned by adapter methods when the upstream definitively
// has no match -- distinct from a Failure, which means we couldn't tell.
var ErrNotFound = errors.New("provider: not found")

// Record is the normalized result an adapter returns: a Work with its
// Editions and Authors attached, tagged with the provider that produced it.
type Record struct {
	Provider string
	Work     model.Work
}

// TextSearcher performs a natural-language query against a provider.
type TextSearcher interface {
	// Name identifies the provider for provenance, rate-gating, and logs.
	Name() string
	SearchByFreeText(ctx context.Context, query string, maxResults int) ([]Record, error)
}

// IdentifierSearcher looks a provider up by ISBN.
type IdentifierSearcher interface {
	Name() string
	SearchByIdentifier(ctx context.Context, isbn string) (Record, error)
}

// AuthorSearcher looks up works by a given author name.
type AuthorSearcher interface {
	Name() string
	SearchByAuthor(ctx context.Context, author string) ([]Record, error)
}

// DetailsGetter fetches a single record by the provider's own external ID.
type DetailsGetter interface {
	Name() string
	GetBookDetails(ctx context.Context, externalID string) (Record, error)
}

// AuthorAttributes is the normalized output of the Cultural Enricher's
// upstream lookup (C3), prior to any caching decision.
type AuthorAttributes struct {
	Gender         model.Gender
	Nationality    string
	CulturalRegion model.CulturalRegion
	BirthYear      int
	DeathYear      int
}

// AuthorAttributeLookup is implemented by the one adapter that can answer
// cultural/demographic questions about an author (Wikidata).
type AuthorAttributeLookup interface {
	Name() string
	LookupAuthorAttributes(ctx context.Context, author string) (AuthorAttributes, error)
}

// ImageDetector is implemented by the vision-model adapter: given JPEG/PNG
// bytes of a bookshelf photo, return the books it can make out. Prompt
// engineering is out of scope; this is a black box returning detections.
type ImageDetector interface {
	Name() string
	DetectBooksInImage(ctx context.Context, image []byte) ([]model.DetectedBook, error)
}

// FullAdapter is the union interface a provider may implement; most
// providers only implement a subset.
type FullAdapter interface {
	TextSearcher
	IdentifierSearcher
}
