// Package arxiv implements the arXiv source client. arXiv's export API
// returns Atom XML rather than JSON; entries are decoded then flattened
// into the same map[string]interface{} RawRecord shape every other
// client produces, so the normalizer never needs to know the wire format.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/breaker"
	"github.com/scigraph/engine/internal/ratelimit"
	"github.com/scigraph/engine/internal/sources"
)

const (
	baseURL   = "https://export.arxiv.org/api/query"
	paperTTL  = 7 * 24 * time.Hour
	searchTTL = time.Hour
)

// Client is the arXiv implementation of sources.Client. arXiv has no
// author- or citation-lookup endpoint, so those calls return NotFound;
// GetPDFBytes downloads the paper record's pdf_url.
type Client struct {
	http     *resty.Client
	pipeline sources.Pipeline
}

// New builds an arXiv client, registering its breaker/limiter under
// source "arxiv".
func New(deps sources.Deps, breakerCfg breaker.Config, limiterCfg ratelimit.Config) *Client {
	h := resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second)
	return &Client{
		http:     h,
		pipeline: sources.NewPipeline(deps, sources.Arxiv, breakerCfg, limiterCfg),
	}
}

func (c *Client) Name() sources.Name { return sources.Arxiv }

func (c *Client) GetPaper(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.Do(ctx, c.pipeline, "paper", identifier, false, paperTTL, func(ctx context.Context) (sources.RawRecord, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("id_list", identifier).
			SetQueryParam("max_results", "1").
			Get("")
		if err != nil {
			return sources.RawRecord{}, apperrors.Wrap(apperrors.Transient, "arxiv get_paper transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.RawRecord{}, err
		}
		feed, err := decodeFeed(resp.Body())
		if err != nil {
			return sources.RawRecord{}, err
		}
		if len(feed.Entries) == 0 {
			return sources.RawRecord{}, apperrors.New(apperrors.NotFound, "arxiv id not found")
		}
		return toRawRecord(feed.Entries[0]), nil
	})
}

func (c *Client) SearchPapers(ctx context.Context, query string, limit, offset int) (sources.SearchResult, error) {
	key := fmt.Sprintf("%s|%d|%d", query, limit, offset)
	return sources.Do(ctx, c.pipeline, "search", key, false, searchTTL, func(ctx context.Context) (sources.SearchResult, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("search_query", "all:"+query).
			SetQueryParam("start", fmt.Sprintf("%d", offset)).
			SetQueryParam("max_results", fmt.Sprintf("%d", limit)).
			Get("")
		if err != nil {
			return sources.SearchResult{}, apperrors.Wrap(apperrors.Transient, "arxiv search_papers transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.SearchResult{}, err
		}
		feed, err := decodeFeed(resp.Body())
		if err != nil {
			return sources.SearchResult{}, err
		}
		records := make([]sources.RawRecord, 0, len(feed.Entries))
		for _, e := range feed.Entries {
			records = append(records, toRawRecord(e))
		}
		return sources.SearchResult{Records: records, Total: feed.TotalResults}, nil
	})
}

func (c *Client) GetCitations(ctx context.Context, identifier string) ([]string, error) {
	return nil, apperrors.New(apperrors.NotFound, "arxiv does not serve citation data")
}

func (c *Client) GetAuthor(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.RawRecord{}, apperrors.New(apperrors.NotFound, "arxiv does not serve author lookups")
}

func (c *Client) GetPDFBytes(ctx context.Context, identifier string) ([]byte, error) {
	rec, err := c.GetPaper(ctx, identifier)
	if err != nil {
		return nil, err
	}
	url, _ := rec.Data["pdf_url"].(string)
	if url == "" {
		return nil, apperrors.New(apperrors.NotFound, "arxiv record has no pdf url")
	}
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, "arxiv get_pdf_bytes transport", err)
	}
	if err := classify(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func classify(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return sources.ClassifyHTTPStatus(resp.StatusCode(), string(resp.Body()))
}

type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
	Category  []atomCat    `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type atomCat struct {
	Term string `xml:"term,attr"`
}

// The feed's totalResults element lives under the OpenSearch namespace, which Go's
// encoding/xml matches on local name alone when no matching field uses a
// namespaced tag, so the plain "totalResults" tag above is sufficient.
func decodeFeed(body []byte) (atomFeed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return atomFeed{}, apperrors.Wrap(apperrors.Normalization, "decode arxiv feed", err)
	}
	return feed, nil
}

func toRawRecord(e atomEntry) sources.RawRecord {
	id := arxivIDFromURL(e.ID)
	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}
	categories := make([]string, 0, len(e.Category))
	for _, c := range e.Category {
		categories = append(categories, c.Term)
	}
	var pdfURL string
	for _, l := range e.Links {
		if l.Rel == "related" && l.Type == "application/pdf" {
			pdfURL = l.Href
		}
	}
	data := map[string]interface{}{
		"arxiv_id":   id,
		"title":      strings.TrimSpace(e.Title),
		"summary":    strings.TrimSpace(e.Summary),
		"published":  e.Published,
		"authors":    authors,
		"categories": categories,
		"pdf_url":    pdfURL,
	}
	return sources.RawRecord{Source: sources.Arxiv, ID: id, Data: data}
}

// arxivIDFromURL extracts "2301.12345v2" out of
// "http://arxiv.org/abs/2301.12345v2".
func arxivIDFromURL(idURL string) string {
	parts := strings.Split(idURL, "/abs/")
	if len(parts) == 2 {
		return parts[1]
	}
	return idURL
}
