// Package model defines the canonical, provider-agnostic representation of
// books, editions, and authors that every adapter normalizes into and every
// downstream component consumes. Nothing in this package is persistent: a
// Work/Edition/Author only ever lives inside a response envelope or a cache
// entry.
package model

import "sort"

// ReviewStatus describes how confident we are in a Work's merged data.
type ReviewStatus string

const (
	ReviewStatusVerified    ReviewStatus = "verified"
	ReviewStatusNeedsReview ReviewStatus = "needs-review"
	ReviewStatusUserEdited  ReviewStatus = "user-edited"
)

// Format enumerates the physical or digital manifestation of an Edition.
type Format string

const (
	FormatHardcover  Format = "hardcover"
	FormatPaperback  Format = "paperback"
	FormatMassMarket Format = "mass-market"
	FormatEbook      Format = "e-book"
	FormatAudiobook  Format = "audiobook"
)

// formatRank orders Formats for editions search: hardcover, paperback,
// e-book, audiobook, then anything else.
var formatRank = map[Format]int{
	FormatHardcover:  0,
	FormatPaperback:  1,
	FormatMassMarket: 1,
	FormatEbook:      2,
	FormatAudiobook:  3,
}

// FormatRank returns the sort rank used by /v1/editions/search. Unknown
// formats sort last.
func FormatRank(f Format) int {
	if r, ok := formatRank[f]; ok {
		return r
	}
	return len(formatRank)
}

// Gender is the bottom-typed enum used by Author: unknown is always valid,
// never an error.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
	GenderOther     Gender = "other"
	GenderUnknown   Gender = "unknown"
)

// CulturalRegion is the fixed 11-value enumeration an Author's nationality is
// bucketed into.
type CulturalRegion string

const (
	RegionNorthAmerica    CulturalRegion = "north-america"
	RegionLatinAmerica    CulturalRegion = "latin-america"
	RegionWesternEurope   CulturalRegion = "western-europe"
	RegionEasternEurope   CulturalRegion = "eastern-europe"
	RegionSubSaharanAfrica CulturalRegion = "sub-saharan-africa"
	RegionMiddleEastNorthAfrica CulturalRegion = "middle-east-north-africa"
	RegionSouthAsia       CulturalRegion = "south-asia"
	RegionEastAsia        CulturalRegion = "east-asia"
	RegionSoutheastAsia   CulturalRegion = "southeast-asia"
	RegionOceania         CulturalRegion = "oceania"
	RegionUnknown         CulturalRegion = "unknown"
)

// ExternalIDs is the set of per-provider external identifiers carried on
// Works and Editions. Every field is a set (no duplicates, unordered).
type ExternalIDs struct {
	Goodreads    StringSet `json:"goodreads,omitempty"`
	Amazon       StringSet `json:"amazon,omitempty"`
	LibraryThing StringSet `json:"librarything,omitempty"`
	GoogleBooks  StringSet `json:"googlebooks,omitempty"`
}

// Merge returns the union of two ExternalIDs sets (I-3: sets, not sequences).
func (e ExternalIDs) Merge(o ExternalIDs) ExternalIDs {
	return ExternalIDs{
		Goodreads:    e.Goodreads.Union(o.Goodreads),
		Amazon:       e.Amazon.Union(o.Amazon),
		LibraryThing: e.LibraryThing.Union(o.LibraryThing),
		GoogleBooks:  e.GoogleBooks.Union(o.GoogleBooks),
	}
}

// Provenance records which provider "won" a record and which providers
// contributed to it. I-1: Contributors is always non-empty and always
// contains Primary.
type Provenance struct {
	Primary      string    `json:"primaryProvider"`
	Contributors StringSet `json:"contributors"`
}

// WithContributor returns a Provenance with the given provider added to the
// contributor set.
func (p Provenance) WithContributor(provider string) Provenance {
	p.Contributors = p.Contributors.Union(NewStringSet(provider))
	return p
}

// Valid reports whether the provenance satisfies I-1.
func (p Provenance) Valid() bool {
	return len(p.Contributors) > 0 && p.Contributors.Has(p.Primary)
}

// BoundingBox is four normalized floats in [0,1]: x, y, width, height.
type BoundingBox [4]float64

// Valid reports whether every coordinate is within [0,1].
func (b BoundingBox) Valid() bool {
	for _, v := range b {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Work is an abstract creative artifact -- a novel, not a specific printing.
type Work struct {
	Title        string       `json:"title"`
	Genres       []string     `json:"genres"` // canonical, sorted, deduped (C2 output)
	Provenance   Provenance   `json:"provenance"`
	ReviewStatus ReviewStatus `json:"reviewStatus"`
	Quality      float64      `json:"quality"` // [0,100]
	Synthetic    bool         `json:"synthetic"`

	Language        string       `json:"language,omitempty"`
	FirstPublished  int          `json:"firstPublished,omitempty"`
	Description     string       `json:"description,omitempty"`
	CoverURL        string       `json:"coverUrl,omitempty"`
	ExternalIDs     ExternalIDs  `json:"externalIds,omitempty"`
	LastSync        int64        `json:"lastSync,omitempty"` // unix seconds
	BoundingBox     *BoundingBox `json:"boundingBox,omitempty"`

	Editions []Edition `json:"editions,omitempty"`
	Authors  []Author  `json:"authors,omitempty"`
}

// NormalizeGenres sorts and dedupes the genre slice in place (round-trip
// idempotence: normalizing a normalized set is a fixed point).
func (w *Work) NormalizeGenres() {
	w.Genres = dedupeSortedStrings(w.Genres)
}

func dedupeSortedStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Edition is a specific manifestation of a Work (a given ISBN).
type Edition struct {
	ISBNs   StringSet `json:"isbns"`
	Format  Format    `json:"format"`
	Quality float64   `json:"quality"`

	Publisher       string      `json:"publisher,omitempty"`
	PublicationDate string      `json:"publicationDate,omitempty"` // year or full date
	PageCount       int         `json:"pageCount,omitempty"`
	CoverURL        string      `json:"coverUrl,omitempty"`
	Title           string      `json:"title,omitempty"`
	Description     string      `json:"description,omitempty"`
	Language        string      `json:"language,omitempty"`
	ExternalIDs     ExternalIDs `json:"externalIds,omitempty"`
}

// Author is a creator.
type Author struct {
	Name   string `json:"name"`
	Gender Gender `json:"gender"`

	CulturalRegion CulturalRegion `json:"culturalRegion,omitempty"`
	Nationality    string         `json:"nationality,omitempty"`
	BirthYear      int            `json:"birthYear,omitempty"`
	DeathYear      int            `json:"deathYear,omitempty"`
	ExternalIDs    ExternalIDs    `json:"externalIds,omitempty"`
	BookCount      int            `json:"bookCount,omitempty"`
}

// DetectedBook is a transient record emitted by the vision pipeline.
type DetectedBook struct {
	TitleGuess  string      `json:"titleGuess"`
	AuthorGuess string      `json:"authorGuess,omitempty"`
	ISBNGuess   string      `json:"isbnGuess,omitempty"`
	Confidence  float64     `json:"confidence"` // [0,1]
	BoundingBox BoundingBox `json:"boundingBox"`

	Enrichment       *Work  `json:"enrichment,omitempty"`
	EnrichmentStatus string `json:"enrichmentStatus,omitempty"` // success | not_found | error
	EnrichmentError  string `json:"enrichmentError,omitempty"`
	Approved         bool   `json:"approved"`
}

// WithEnrichmentError returns a copy of b marked as failed, letting the
// Parallel Enricher attach a per-item failure without aborting the rest of
// its batch.
func (b DetectedBook) WithEnrichmentError(err error) any {
	b.EnrichmentStatus = "error"
	b.EnrichmentError = err.Error()
	return b
}
