package cache

import (
	"sort"
	"strings"
	"time"
)

// Kind identifies which TTL policy and key prefix a lookup belongs to.
type Kind string

const (
	KindTitleSearch  Kind = "search:title"
	KindISBNLookup   Kind = "search:isbn"
	KindAuthorSearch Kind = "author:search"
	KindEnrichment   Kind = "enrichment"
	KindCover        Kind = "cover"
)

// baseTTL is the per-kind TTL policy of spec.md §4.4, before quality
// adjustment.
var baseTTL = map[Kind]time.Duration{
	KindTitleSearch:  24 * time.Hour,
	KindISBNLookup:   30 * 24 * time.Hour,
	KindAuthorSearch: 7 * 24 * time.Hour,
	KindEnrichment:   90 * 24 * time.Hour,
	KindCover:        7 * 24 * time.Hour,
}

// Key is the sole source of cache-key strings (spec.md §4.4): every caller
// builds keys through this factory so the lowercasing/trimming/canonicalizing
// policy can never be bypassed or duplicated ad hoc.
func Key(kind Kind, query string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte(':')

	normalized := strings.ToLower(strings.TrimSpace(query))
	if kind == KindISBNLookup {
		normalized = strings.ReplaceAll(normalized, "-", "")
	}
	b.WriteString(normalized)

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('?')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(params[k])
		}
	}
	return b.String()
}

// ColdIndexKey is the T2 key pointing at an archived object in T3.
func ColdIndexKey(originalKey string) string { return "cold-index:" + originalKey }

// GateKey is the T2 key a provider's rate gate is persisted under.
func GateKey(provider string) string { return "gate:" + provider }

// ResultsKey is the Results Store key for a completed job.
func ResultsKey(pipeline, jobID string) string { return pipeline + "-results:" + jobID }
