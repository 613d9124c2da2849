package providers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/antchfx/htmlquery"
)

// CoverScrape is a best-effort HTML scrape used only to backfill a cover
// image or description when every structured provider came back empty for
// that field. It never contributes provenance on its own and is never the
// sole source for a Work.
type CoverScrape struct {
	client *http.Client
}

// NewCoverScrape builds a scrape adapter against a generic retailer search
// page. No credentials required.
func NewCoverScrape() *CoverScrape {
	return &CoverScrape{client: newClient("coverscrape", "www.google.com", "", "", 1, 2)}
}

// Name identifies the adapter in logs.
func (c *CoverScrape) Name() string { return "coverscrape" }

// FetchCoverAndDescription scrapes a best-effort cover URL and description
// for the given title/author, returning zero values rather than an error
// when nothing usable is found -- a scrape miss is never load-bearing.
func (c *CoverScrape) FetchCoverAndDescription(ctx context.Context, title, author string) (coverURL, description string) {
	q := url.Values{}
	q.Set("q", title+" "+author+" book cover")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/search?"+q.Encode(), nil)
	if err != nil {
		return "", ""
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", ""
	}
	defer resp.Body.Close()

	doc, err := htmlquery.Parse(resp.Body)
	if err != nil {
		return "", ""
	}

	if img := htmlquery.FindOne(doc, "//img[@src]"); img != nil {
		coverURL = htmlquery.SelectAttr(img, "src")
	}
	if desc := htmlquery.FindOne(doc, "//meta[@name='description']"); desc != nil {
		description = htmlquery.SelectAttr(desc, "content")
	}
	return coverURL, description
}
