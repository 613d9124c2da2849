// Package genre implements the Genre Normalizer (C2): collapsing whatever
// free-text genre tags a provider hands back into the fixed canonical
// vocabulary the rest of the system understands.
package genre

import (
	"strings"

	"github.com/lithammer/fuzzysearch/levenshtein"
)

// Canonical is the closed set of genre tags every Work's Genres field is
// normalized into. Anything that doesn't map here either falls through the
// synonym/fuzzy stages or is passed through unchanged as a last resort.
var Canonical = []string{
	"Fantasy", "Science Fiction", "Mystery", "Thriller", "Romance",
	"Historical Fiction", "Literary Fiction", "Horror", "Young Adult",
	"Children's", "Biography", "Memoir", "History", "Science",
	"Self-Help", "Business", "Philosophy", "Poetry", "Drama",
	"Graphic Novel", "True Crime", "Travel", "Cooking", "Religion",
	"Classics",
}

var canonicalSet = func() map[string]string {
	m := make(map[string]string, len(Canonical))
	for _, c := range Canonical {
		m[strings.ToLower(c)] = c
	}
	return m
}()

// providerGenreMap holds each provider's own hierarchical category strings
// mapped directly onto a canonical tag, keyed by the full lowercased string
// ISBNdb/OpenLibrary/Inventaire hand back (e.g. BISAC-style
// "Fiction / Science Fiction / General"). Checked first, ahead of the
// provider-agnostic stages below, since a provider's own taxonomy is a more
// reliable signal than fuzzy matching against it would be.
var providerGenreMap = map[string]map[string]string{
	"isbndb": {
		"fiction / science fiction / general":      "Science Fiction",
		"fiction / fantasy / general":               "Fantasy",
		"fiction / mystery & detective / general":   "Mystery",
		"fiction / thrillers / general":              "Thriller",
		"fiction / romance / general":                "Romance",
		"fiction / historical / general":             "Historical Fiction",
		"fiction / horror":                           "Horror",
		"juvenile fiction / fantasy & magic":          "Fantasy",
		"young adult fiction / general":               "Young Adult",
		"biography & autobiography / general":         "Biography",
		"comics & graphic novels / general":           "Graphic Novel",
	},
	"openlibrary": {
		"fiction, fantasy, general":         "Fantasy",
		"fiction, science fiction, general": "Science Fiction",
		"fiction, mystery & detective":      "Mystery",
		"juvenile fiction":                  "Children's",
	},
	"inventaire": {
		"roman / fantasy":         "Fantasy",
		"roman / science-fiction": "Science Fiction",
	},
}

// hierarchySep splits a provider's hierarchical category string into its
// component segments, most general first.
var hierarchySep = func(tag string) []string {
	for _, sep := range []string{"/", ">", ","} {
		if strings.Contains(tag, sep) {
			parts := strings.Split(tag, sep)
			for i, p := range parts {
				parts[i] = strings.TrimSpace(p)
			}
			return parts
		}
	}
	return nil
}

// synonyms maps lowercase provider-specific aliases directly onto a
// canonical tag. Checked before the fuzzy stage because a few common
// aliases (e.g. "sci-fi") sit outside fuzzysearch's similarity threshold.
var synonyms = map[string]string{
	"sci-fi":            "Science Fiction",
	"scifi":             "Science Fiction",
	"sf":                "Science Fiction",
	"whodunit":          "Mystery",
	"detective":         "Mystery",
	"crime fiction":     "Mystery",
	"suspense":          "Thriller",
	"ya":                "Young Adult",
	"kids":              "Children's",
	"children":          "Children's",
	"childrens":         "Children's",
	"autobiography":     "Biography",
	"cookbook":          "Cooking",
	"cookbooks":         "Cooking",
	"comics":            "Graphic Novel",
	"graphic novels":    "Graphic Novel",
	"historical novel":  "Historical Fiction",
	"literary":          "Literary Fiction",
	"self help":         "Self-Help",
	"selfhelp":          "Self-Help",
}

// blocklist holds tags that are too generic to be useful on their own.
// They're dropped unless they are the only tag a Work would otherwise have.
var blocklist = map[string]bool{
	"fiction":    true,
	"nonfiction": true,
	"non-fiction": true,
	"books":      true,
	"general":    true,
}

// fuzzyThreshold is the minimum similarity ratio (inclusive) a provider tag
// must reach against a canonical tag to be accepted as a fuzzy match.
const fuzzyThreshold = 0.85

// Normalize maps a slice of raw provider genre strings onto the canonical
// vocabulary, in order: (i) the provider's own hierarchical category table,
// (ii) resolveHierarchy's split of a hierarchical tag into segments, (iii)
// blocklist, (iv) exact match, (v) synonym match, (vi) fuzzy match, then
// pass-through. provider is matched case-insensitively against
// providerGenreMap and may be empty, in which case stage (i) is skipped. The
// result is deduped but NOT sorted here -- callers that need the I-3 set
// ordering should route it through model.Work.NormalizeGenres, which dedupes
// and sorts as the final step before a Work leaves the Aggregation Engine.
func Normalize(raw []string, provider string) []string {
	out := make([]string, 0, len(raw))
	seen := map[string]bool{}

	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	table := providerGenreMap[strings.ToLower(provider)]

	for _, r := range raw {
		tag := strings.TrimSpace(r)
		if tag == "" {
			continue
		}
		lower := strings.ToLower(tag)

		if table != nil {
			if canon, ok := table[lower]; ok {
				add(canon)
				continue
			}
		}
		if canon, ok := resolveHierarchy(lower); ok {
			add(canon)
			continue
		}
		if blocklist[lower] {
			continue
		}
		if canon, ok := canonicalSet[lower]; ok {
			add(canon)
			continue
		}
		if canon, ok := synonyms[lower]; ok {
			add(canon)
			continue
		}
		if canon, ok := bestFuzzyMatch(lower); ok {
			add(canon)
			continue
		}
		add(tag)
	}

	// A Work whose only signal was a blocklisted generic tag keeps it
	// rather than ending up with zero genres.
	if len(out) == 0 {
		for _, r := range raw {
			lower := strings.ToLower(strings.TrimSpace(r))
			if blocklist[lower] {
				add(canonicalOrTitle(lower))
				break
			}
		}
	}

	return out
}

// resolveHierarchy splits a hierarchical category string (e.g.
// "fiction / science fiction / general") into segments and looks for a
// canonical match among them, preferring the most specific (rightmost)
// segment first since that's the one most likely to carry real signal.
func resolveHierarchy(lower string) (string, bool) {
	parts := hierarchySep(lower)
	if parts == nil {
		return "", false
	}
	for i := len(parts) - 1; i >= 0; i-- {
		seg := parts[i]
		if blocklist[seg] {
			continue
		}
		if canon, ok := canonicalSet[seg]; ok {
			return canon, true
		}
		if canon, ok := synonyms[seg]; ok {
			return canon, true
		}
	}
	return "", false
}

func canonicalOrTitle(lower string) string {
	if canon, ok := canonicalSet[lower]; ok {
		return canon
	}
	return strings.Title(lower) //nolint:staticcheck // simple ASCII tag titling, not locale text
}

// bestFuzzyMatch returns the canonical tag with the highest similarity
// ratio to tag, if any clears fuzzyThreshold.
func bestFuzzyMatch(tag string) (string, bool) {
	best := ""
	bestRatio := 0.0
	for _, c := range Canonical {
		r := ratio(tag, strings.ToLower(c))
		if r > bestRatio {
			bestRatio = r
			best = c
		}
	}
	if bestRatio >= fuzzyThreshold {
		return best, true
	}
	return "", false
}

// ratio converts fuzzysearch's Levenshtein distance into a [0,1] similarity
// score, matching the conventional "edit distance over max length" ratio.
func ratio(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.Distance(a, b)
	if dist < 0 {
		return 0
	}
	return 1 - float64(dist)/float64(maxLen)
}
