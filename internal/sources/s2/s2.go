// Package s2 implements the Semantic Scholar source client.
package s2

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
	baseURL     = "https://api.semanticscholar.org/graph/v1"
	paperTTL    = 7 * 24 * time.Hour
	searchTTL   = time.Hour
	authorTTL   = 7 * 24 * time.Hour
	paperFields = "paperId,externalIds,title,abstract,year,venue,authors,citationCount,isOpenAccess,openAccessPdf,fieldsOfStudy"
)

// Client is the Semantic Scholar implementation of sources.Client.
type Client struct {
	http     *resty.Client
	pipeline sources.Pipeline
}

// New builds an S2 client, registering its breaker/limiter under source "s2".
func New(deps sources.Deps, apiKey string, breakerCfg breaker.Config, limiterCfg ratelimit.Config) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	if apiKey != "" {
		h.SetHeader("x-api-key", apiKey)
	}
	return &Client{
		http:     h,
		pipeline: sources.NewPipeline(deps, sources.S2, breakerCfg, limiterCfg),
	}
}

func (c *Client) Name() sources.Name { return sources.S2 }

func (c *Client) GetPaper(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.Do(ctx, c.pipeline, "paper", identifier, false, paperTTL, func(ctx context.Context) (sources.RawRecord, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("fields", paperFields).
			Get(fmt.Sprintf("/paper/%s", identifier))
		if err != nil {
			return sources.RawRecord{}, apperrors.Wrap(apperrors.Transient, "s2 get_paper transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.RawRecord{}, err
		}
		data, err := decodeJSON(resp.Body())
		if err != nil {
			return sources.RawRecord{}, err
		}
		return sources.RawRecord{Source: sources.S2, ID: identifier, Data: data}, nil
	})
}

func (c *Client) SearchPapers(ctx context.Context, query string, limit, offset int) (sources.SearchResult, error) {
	key := fmt.Sprintf("%s|%d|%d", query, limit, offset)
	return sources.Do(ctx, c.pipeline, "search", key, false, searchTTL, func(ctx context.Context) (sources.SearchResult, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("query", query).
			SetQueryParam("fields", paperFields).
			SetQueryParam("limit", fmt.Sprintf("%d", limit)).
			SetQueryParam("offset", fmt.Sprintf("%d", offset)).
			Get("/paper/search")
		if err != nil {
			return sources.SearchResult{}, apperrors.Wrap(apperrors.Transient, "s2 search_papers transport", err)
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
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("fields", "externalIds").
			Get(fmt.Sprintf("/paper/%s/citations", identifier))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Transient, "s2 get_citations transport", err)
		}
		if err := classify(resp); err != nil {
			return nil, err
		}
		payload, err := decodeJSON(resp.Body())
		if err != nil {
			return nil, err
		}
		return extractCitationDOIs(payload), nil
	})
}

func (c *Client) GetAuthor(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.Do(ctx, c.pipeline, "author", identifier, false, authorTTL, func(ctx context.Context) (sources.RawRecord, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("fields", "name,affiliations,externalIds").
			Get(fmt.Sprintf("/author/%s", identifier))
		if err != nil {
			return sources.RawRecord{}, apperrors.Wrap(apperrors.Transient, "s2 get_author transport", err)
		}
		if err := classify(resp); err != nil {
			return sources.RawRecord{}, err
		}
		data, err := decodeJSON(resp.Body())
		if err != nil {
			return sources.RawRecord{}, err
		}
		return sources.RawRecord{Source: sources.S2, ID: identifier, Data: data}, nil
	})
}

func (c *Client) GetPDFBytes(ctx context.Context, identifier string) ([]byte, error) {
	rec, err := c.GetPaper(ctx, identifier)
	if err != nil {
		return nil, err
	}
	pdf, ok := rec.Data["openAccessPdf"].(map[string]interface{})
	if !ok {
		return nil, apperrors.New(apperrors.NotFound, "s2 record has no open access pdf")
	}
	url, _ := pdf["url"].(string)
	if url == "" {
		return nil, apperrors.New(apperrors.NotFound, "s2 record has no open access pdf")
	}
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, "s2 get_pdf_bytes transport", err)
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
		return nil, apperrors.Wrap(apperrors.Normalization, "decode s2 response", err)
	}
	return out, nil
}

func toSearchResult(payload map[string]interface{}) sources.SearchResult {
	total, _ := payload["total"].(float64)
	items, _ := payload["data"].([]interface{})
	records := make([]sources.RawRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["paperId"].(string)
		records = append(records, sources.RawRecord{Source: sources.S2, ID: id, Data: m})
	}
	return sources.SearchResult{Records: records, Total: int(total)}
}

func extractCitationDOIs(payload map[string]interface{}) []string {
	items, _ := payload["data"].([]interface{})
	dois := make([]string, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		citing, ok := m["citingPaper"].(map[string]interface{})
		if !ok {
			continue
		}
		ext, ok := citing["externalIds"].(map[string]interface{})
		if !ok {
			continue
		}
		if doi, ok := ext["DOI"].(string); ok && doi != "" {
			dois = append(dois, doi)
		}
	}
	return dois
}
