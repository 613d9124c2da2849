package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/shelfscan/shelfd/internal/model"
)

// ISBNdb wraps the commercial ISBNdb catalog. It is typically the
// highest-quality and highest-cost provider, so it is consulted first for
// identifier lookups and gated to its contracted request rate.
type ISBNdb struct {
	client *http.Client
	gate   *Gate
}

// NewISBNdb builds an ISBNdb adapter. kv may be nil to skip cross-replica
// pacing (tests, local dev).
func NewISBNdb(apiKey string, kv KV) *ISBNdb {
	d := &ISBNdb{
		client: newClient("isbndb", "api2.isbndb.com", "Authorization", apiKey, 2, 4),
	}
	if kv != nil {
		d.gate = NewGate(kv, "isbndb", 450*time.Millisecond)
	}
	return d
}

// Name implements providers.TextSearcher and friends.
func (d *ISBNdb) Name() string { return "isbndb" }

type isbndbBook struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	ISBN13      string   `json:"isbn13"`
	ISBN        string   `json:"isbn"`
	Publisher   string   `json:"publisher"`
	Synopsis    string   `json:"synopsis"`
	Image       string   `json:"image"`
	DatePub     string   `json:"date_published"`
	Pages       int      `json:"pages"`
	Language    string   `json:"language"`
	Binding     string   `json:"binding"`
}

func (b isbndbBook) format() model.Format {
	switch {
	case strings.Contains(strings.ToLower(b.Binding), "hardcover"):
		return model.FormatHardcover
	case strings.Contains(strings.ToLower(b.Binding), "mass market"):
		return model.FormatMassMarket
	case strings.Contains(strings.ToLower(b.Binding), "paperback"):
		return model.FormatPaperback
	case strings.Contains(strings.ToLower(b.Binding), "audio"):
		return model.FormatAudiobook
	case strings.Contains(strings.ToLower(b.Binding), "kindle"), strings.Contains(strings.ToLower(b.Binding), "ebook"):
		return model.FormatEbook
	default:
		return model.FormatPaperback
	}
}

func (b isbndbBook) record() Record {
	isbns := model.NewStringSet(b.ISBN13, b.ISBN)
	work := model.Work{
		Title:   b.Title,
		Quality: b.quality(),
		Provenance: model.Provenance{
			Primary:      "isbndb",
			Contributors: model.NewStringSet("isbndb"),
		},
		Description: b.Synopsis,
		CoverURL:    b.Image,
		Language:    b.Language,
		Editions: []model.Edition{{
			ISBNs:           isbns,
			Format:          b.format(),
			Quality:         b.quality(),
			Publisher:       b.Publisher,
			PublicationDate: b.DatePub,
			PageCount:       b.Pages,
			CoverURL:        b.Image,
			Title:           b.Title,
			Description:     b.Synopsis,
			Language:        b.Language,
		}},
	}
	for _, a := range b.Authors {
		work.Authors = append(work.Authors, model.Author{Name: a, Gender: model.GenderUnknown})
	}
	return Record{Provider: "isbndb", Work: work}
}

// quality scores how complete a catalog row is on a deterministic 0-100
// scale: every populated field worth trusting adds a fixed number of points.
func (b isbndbBook) quality() float64 {
	score := 0.0
	if b.Title != "" {
		score += 20
	}
	if len(b.Authors) > 0 {
		score += 20
	}
	if b.Synopsis != "" {
		score += 20
	}
	if b.Image != "" {
		score += 15
	}
	if b.Pages > 0 {
		score += 10
	}
	if b.Publisher != "" {
		score += 10
	}
	if b.DatePub != "" {
		score += 5
	}
	return score
}

// SearchByIdentifier implements providers.IdentifierSearcher.
func (d *ISBNdb) SearchByIdentifier(ctx context.Context, isbn string) (Record, error) {
	if d.gate != nil {
		if err := d.gate.Wait(ctx); err != nil {
			return Record{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/book/"+url.PathEscape(isbn), nil)
	if err != nil {
		return Record{}, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, &Failure{Provider: d.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	var payload struct {
		Book isbndbBook `json:"book"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		return Record{}, &Failure{Provider: d.Name(), Kind: FailureMalformedResponse, Err: err}
	}
	if payload.Book.Title == "" {
		return Record{}, ErrNotFound
	}
	return payload.Book.record(), nil
}

// SearchByFreeText implements providers.TextSearcher.
func (d *ISBNdb) SearchByFreeText(ctx context.Context, query string, maxResults int) ([]Record, error) {
	if d.gate != nil {
		if err := d.gate.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("pageSize", fmt.Sprintf("%d", maxResults))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"/books/"+url.PathEscape(query)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Provider: d.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	var payload struct {
		Books []isbndbBook `json:"books"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		return nil, &Failure{Provider: d.Name(), Kind: FailureMalformedResponse, Err: err}
	}

	out := make([]Record, 0, len(payload.Books))
	for _, b := range payload.Books {
		out = append(out, b.record())
	}
	return out, nil
}
