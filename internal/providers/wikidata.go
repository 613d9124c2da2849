package providers

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/shelfscan/shelfd/internal/model"
)

// Wikidata backs the Cultural Enricher (C3): given an author's name, resolve
// their gender, citizenship, and birth/death years through a SPARQL query.
// SPARQL-over-HTTP's JSON shape is irregular enough (bindings keyed
// dynamically, optional fields simply absent rather than null) that we parse
// it with a path-query library instead of a fixed struct.
type Wikidata struct {
	client *http.Client
}

// NewWikidata builds a Wikidata adapter. No credentials required.
func NewWikidata() *Wikidata {
	return &Wikidata{client: newClient("wikidata", "query.wikidata.org", "", "", 2, 4)}
}

// Name implements providers.AuthorAttributeLookup.
func (w *Wikidata) Name() string { return "wikidata" }

var genderQIDs = map[string]model.Gender{
	"Q6581097": model.GenderMale,
	"Q6581072": model.GenderFemale,
	"Q48270":   model.GenderNonBinary,
}

// regionByCitizenshipLabel is a coarse mapping from a country label to one
// of the 11 cultural regions. Unrecognized countries resolve to Unknown
// rather than guessing.
var regionByCitizenshipLabel = map[string]model.CulturalRegion{
	"United States of America": model.RegionNorthAmerica,
	"Canada":                   model.RegionNorthAmerica,
	"Mexico":                   model.RegionLatinAmerica,
	"Brazil":                   model.RegionLatinAmerica,
	"Argentina":                model.RegionLatinAmerica,
	"United Kingdom":           model.RegionWesternEurope,
	"France":                   model.RegionWesternEurope,
	"Germany":                  model.RegionWesternEurope,
	"Spain":                    model.RegionWesternEurope,
	"Italy":                    model.RegionWesternEurope,
	"Poland":                   model.RegionEasternEurope,
	"Russia":                   model.RegionEasternEurope,
	"Ukraine":                  model.RegionEasternEurope,
	"Nigeria":                  model.RegionSubSaharanAfrica,
	"Kenya":                    model.RegionSubSaharanAfrica,
	"South Africa":             model.RegionSubSaharanAfrica,
	"Egypt":                    model.RegionMiddleEastNorthAfrica,
	"Morocco":                  model.RegionMiddleEastNorthAfrica,
	"Israel":                   model.RegionMiddleEastNorthAfrica,
	"India":                    model.RegionSouthAsia,
	"Pakistan":                 model.RegionSouthAsia,
	"China":                    model.RegionEastAsia,
	"Japan":                    model.RegionEastAsia,
	"South Korea":              model.RegionEastAsia,
	"Vietnam":                  model.RegionSoutheastAsia,
	"Indonesia":                model.RegionSoutheastAsia,
	"Thailand":                 model.RegionSoutheastAsia,
	"Australia":                model.RegionOceania,
	"New Zealand":              model.RegionOceania,
}

const authorSPARQL = `
SELECT ?genderLabel ?citizenshipLabel ?birth ?death WHERE {
  ?author rdfs:label "%s"@en.
  OPTIONAL { ?author wdt:P21 ?gender. }
  OPTIONAL { ?author wdt:P27 ?citizenship. }
  OPTIONAL { ?author wdt:P569 ?birth. }
  OPTIONAL { ?author wdt:P570 ?death. }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT 1
`

var bindingsPath = jp.MustParseString("$.results.bindings[*]")

// LookupAuthorAttributes implements providers.AuthorAttributeLookup.
func (w *Wikidata) LookupAuthorAttributes(ctx context.Context, author string) (AuthorAttributes, error) {
	q := url.Values{}
	q.Set("query", sprintfSPARQL(author))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/sparql?"+q.Encode(), nil)
	if err != nil {
		return AuthorAttributes{}, err
	}
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := w.client.Do(req)
	if err != nil {
		return AuthorAttributes{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AuthorAttributes{}, &Failure{Provider: w.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	parsed, err := oj.Parse(body)
	if err != nil {
		return AuthorAttributes{}, &Failure{Provider: w.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	bindings := bindingsPath.Get(parsed)
	if len(bindings) == 0 {
		return AuthorAttributes{}, ErrNotFound
	}

	row, ok := bindings[0].(map[string]any)
	if !ok {
		return AuthorAttributes{}, &Failure{Provider: w.Name(), Kind: FailureMalformedResponse, Err: nil}
	}

	attrs := AuthorAttributes{Gender: model.GenderUnknown, CulturalRegion: model.RegionUnknown}
	if v := bindingValue(row, "genderLabel"); v != "" {
		attrs.Gender = genderFromLabel(v)
	}
	if v := bindingValue(row, "citizenshipLabel"); v != "" {
		attrs.Nationality = v
		if r, ok := regionByCitizenshipLabel[v]; ok {
			attrs.CulturalRegion = r
		}
	}
	if v := bindingValue(row, "birth"); v != "" {
		attrs.BirthYear = yearFromISO(v)
	}
	if v := bindingValue(row, "death"); v != "" {
		attrs.DeathYear = yearFromISO(v)
	}
	return attrs, nil
}

func bindingValue(row map[string]any, field string) string {
	cell, ok := row[field].(map[string]any)
	if !ok {
		return ""
	}
	v, _ := cell["value"].(string)
	return v
}

func genderFromLabel(label string) model.Gender {
	switch strings.ToLower(label) {
	case "male":
		return model.GenderMale
	case "female":
		return model.GenderFemale
	case "non-binary", "genderqueer", "non binary":
		return model.GenderNonBinary
	case "":
		return model.GenderUnknown
	default:
		return model.GenderOther
	}
}

func yearFromISO(v string) int {
	if len(v) < 4 {
		return 0
	}
	y, err := strconv.Atoi(v[:4])
	if err != nil {
		return 0
	}
	return y
}

func sprintfSPARQL(author string) string {
	escaped := strings.ReplaceAll(author, `"`, `\"`)
	return strings.Replace(authorSPARQL, "%s", escaped, 1)
}
