package providers

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/shelfscan/shelfd/internal/model"
)

// OpenLibrary is the free, keyless public catalog consulted whenever a
// commercial provider misses or is skipped, and as the primary source for
// free-text search (spec.md's fallback chain: ISBNdb -> OpenLibrary ->
// Inventaire).
type OpenLibrary struct {
	client *http.Client
}

// NewOpenLibrary builds an OpenLibrary adapter. No credentials required.
func NewOpenLibrary() *OpenLibrary {
	return &OpenLibrary{client: newClient("openlibrary", "openlibrary.org", "", "", 3, 6)}
}

// Name implements providers.TextSearcher and friends.
func (o *OpenLibrary) Name() string { return "openlibrary" }

type olDoc struct {
	Title           string   `json:"title"`
	AuthorName      []string `json:"author_name"`
	ISBN            []string `json:"isbn"`
	FirstPublishYr  int      `json:"first_publish_year"`
	Publisher       []string `json:"publisher"`
	Language        []string `json:"language"`
	NumberOfPages   int      `json:"number_of_pages_median"`
	CoverID         int      `json:"cover_i"`
	Subject         []string `json:"subject"`
	Key             string   `json:"key"`
}

func (d olDoc) coverURL() string {
	if d.CoverID == 0 {
		return ""
	}
	return "https://covers.openlibrary.org/b/id/" + strconv.Itoa(d.CoverID) + "-L.jpg"
}

func (d olDoc) record() Record {
	lang := ""
	if len(d.Language) > 0 {
		lang = d.Language[0]
	}
	publisher := ""
	if len(d.Publisher) > 0 {
		publisher = d.Publisher[0]
	}

	work := model.Work{
		Title:          d.Title,
		Genres:         d.Subject,
		FirstPublished: d.FirstPublishYr,
		Language:       lang,
		CoverURL:       d.coverURL(),
		Quality:        d.quality(),
		Provenance: model.Provenance{
			Primary:      "openlibrary",
			Contributors: model.NewStringSet("openlibrary"),
		},
		ExternalIDs: model.ExternalIDs{},
		Editions: []model.Edition{{
			ISBNs:           model.NewStringSet(d.ISBN...),
			Format:          model.FormatPaperback,
			Quality:         d.quality(),
			Publisher:       publisher,
			PublicationDate: strconv.Itoa(d.FirstPublishYr),
			PageCount:       d.NumberOfPages,
			CoverURL:        d.coverURL(),
			Title:           d.Title,
			Language:        lang,
		}},
	}
	for _, a := range d.AuthorName {
		work.Authors = append(work.Authors, model.Author{Name: a, Gender: model.GenderUnknown})
	}
	return Record{Provider: "openlibrary", Work: work}
}

func (d olDoc) quality() float64 {
	score := 0.0
	if d.Title != "" {
		score += 20
	}
	if len(d.AuthorName) > 0 {
		score += 20
	}
	if d.CoverID != 0 {
		score += 15
	}
	if d.NumberOfPages > 0 {
		score += 10
	}
	if len(d.ISBN) > 0 {
		score += 15
	}
	if len(d.Subject) > 0 {
		score += 10
	}
	if d.FirstPublishYr > 0 {
		score += 10
	}
	return score
}

// SearchByFreeText implements providers.TextSearcher.
func (o *OpenLibrary) SearchByFreeText(ctx context.Context, query string, maxResults int) ([]Record, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(maxResults))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Provider: o.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	var payload struct {
		Docs []olDoc `json:"docs"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		return nil, &Failure{Provider: o.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	out := make([]Record, 0, len(payload.Docs))
	for _, d := range payload.Docs {
		out = append(out, d.record())
	}
	return out, nil
}

// SearchByIdentifier implements providers.IdentifierSearcher.
func (o *OpenLibrary) SearchByIdentifier(ctx context.Context, isbn string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"/search.json?isbn="+url.QueryEscape(isbn), nil)
	if err != nil {
		return Record{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, &Failure{Provider: o.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	var payload struct {
		Docs []olDoc `json:"docs"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		return Record{}, &Failure{Provider: o.Name(), Kind: FailureMalformedResponse, Err: err}
	}
	if len(payload.Docs) == 0 {
		return Record{}, ErrNotFound
	}
	return payload.Docs[0].record(), nil
}
