// Package openalex implements the OpenAlex source client.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/breaker"
	"github.com/scigraph/engine/internal/ratelimit"
	"github.com/scigraph/engine/internal/sources"
)

const (
	baseURL   = "https://api.openalex.org"
	paperTTL  = 7 * 24 * time.Hour
	searchTTL = time.Hour
	authorTTL = 7 * 24 * time.Hour
)

// Client is the OpenAlex implementation of sources.Client. OpenAlex has
// no dedicated PDF-bytes endpoint of its own; callers fall back to the
// record's open_access pdf location through GetPaper.
type Client struct {
	http     *resty.Client
	pipeline sources.Pipeline
	mailto   string
}

// New builds an OpenAlex client, registering its breaker/limiter under
// source "openalex". mailto is sent as a polite-pool query param per
// OpenAlex's etiquette convention; it may be empty.
func New(deps sources.Deps, mailto string, breakerCfg breaker.Config, limiterCfg ratelimit.Config) *Client {
	h := resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second)
	return &Client{
		http:     h,
		pipeline: sources.NewPipeline(deps, sources.OpenAlex, breakerCfg, limiterCfg),
		mailto:   mailto,
	}
}

func (c *Client) Name() sources.Name { return sources.OpenAlex }

func (c *Client) withMailto(req *resty.Request) *resty.Request {
	if c.mailto != "" {
		req.SetQueryParam("mailto", c.mailto)
	}
	return req
}

func (c *Client) GetPaper(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.Do(ctx, c.pipeline, "paper", identifier, false, paperTTL, func(ctx context.Context) (sources.RawRecord, error) {
		resp, err := c.withMailto(c.http.R().SetContext(ctx)).Get(fmt.Sprintf("/works/%s", identifier))
		if err != nil {
			return sources.RawRecord{}, apperrors.Wrap(apperrors.Transient, "openalex get_paper transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.RawRecord{}, err
		}
		data, err := decodeJSON(resp.Body())
		if err != nil {
			return sources.RawRecord{}, err
		}
		return sources.RawRecord{Source: sources.OpenAlex, ID: identifier, Data: data}, nil
	})
}

func (c *Client) SearchPapers(ctx context.Context, query string, limit, offset int) (sources.SearchResult, error) {
	key := fmt.Sprintf("%s|%d|%d", query, limit, offset)
	return sources.Do(ctx, c.pipeline, "search", key, false, searchTTL, func(ctx context.Context) (sources.SearchResult, error) {
		page := (offset / max1(limit)) + 1
		resp, err := c.withMailto(c.http.R().SetContext(ctx)).
			SetQueryParam("search", query).
			SetQueryParam("per-page", fmt.Sprintf("%d", limit)).
			SetQueryParam("page", fmt.Sprintf("%d", page)).
			Get("/works")
		if err != nil {
			return sources.SearchResult{}, apperrors.Wrap(apperrors.Transient, "openalex search_papers transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.SearchResult{}, err
		}
		payload, err := decodeJSON(resp.Body())
		if err != nil {
			return sources.SearchResult{}, err
		}
		return toSearchResult(payload), nil
	})
}

func (c *Client) GetCitations(ctx context.Context, identifier string) ([]string, error) {
	return sources.Do(ctx, c.pipeline, "citations", identifier, false, searchTTL, func(ctx context.Context) ([]string, error) {
		resp, err := c.withMailto(c.http.R().SetContext(ctx)).
			SetQueryParam("filter", "cites:"+identifier).
			SetQueryParam("per-page", "200").
			Get("/works")
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Transient, "openalex get_citations transport", err)
		}
		if err := classify(resp); err != nil {
			return nil, err
		}
		payload, err := decodeJSON(resp.Body())
		if err != nil {
			return nil, err
		}
		return extractDOIs(payload), nil
	})
}

func (c *Client) GetAuthor(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.Do(ctx, c.pipeline, "author", identifier, false, authorTTL, func(ctx context.Context) (sources.RawRecord, error) {
		resp, err := c.withMailto(c.http.R().SetContext(ctx)).Get(fmt.Sprintf("/authors/%s", identifier))
		if err != nil {
			return sources.RawRecord{}, apperrors.Wrap(apperrors.Transient, "openalex get_author transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.RawRecord{}, err
		}
		data, err := decodeJSON(resp.Body())
		if err != nil {
			return sources.RawRecord{}, err
		}
		return sources.RawRecord{Source: sources.OpenAlex, ID: identifier, Data: data}, nil
	})
}

func (c *Client) GetPDFBytes(ctx context.Context, identifier string) ([]byte, error) {
	rec, err := c.GetPaper(ctx, identifier)
	if err != nil {
		return nil, err
	}
	oa, ok := rec.Data["open_access"].(map[string]interface{})
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "openalex record has no open access location")
	}
	url, _ := oa["oa_url"].(string)
	if url == "" {
		return nil, apperrors.New(apperrors.NotFound, "openalex record has no open access location")
	}
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, "openalex get_pdf_bytes transport", err)
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

func decodeJSON(body []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.Normalization, "decode openalex response", err)
	}
	return out, nil
}

func toSearchResult(payload map[string]interface{}) sources.SearchResult {
	meta, _ := payload["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	items, _ := payload["results"].([]interface{})
	records := make([]sources.RawRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		records = append(records, sources.RawRecord{Source: sources.OpenAlex, ID: id, Data: m})
	}
	return sources.SearchResult{Records: records, Total: int(count)}
}

func extractDOIs(payload map[string]interface{}) []string {
	items, _ := payload["results"].([]interface{})
	dois := make([]string, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if doi, ok := m["doi"].(string); ok && doi != "" {
			dois = append(dois, doi)
		}
	}
	return dois
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
