package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/breaker"
	"github.com/scigraph/engine/internal/cache"
	"github.com/scigraph/engine/internal/ratelimit"
	"github.com/scigraph/engine/internal/sources"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>1</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2301.12345v2</id>
    <title>Sample Paper</title>
    <summary>An abstract.</summary>
    <published>2023-01-20T00:00:00Z</published>
    <author><name>Jane Doe</name></author>
    <link rel="related" type="application/pdf" href="http://arxiv.org/pdf/2301.12345v2"/>
    <category term="cs.LG"/>
  </entry>
</feed>`

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c := New(sources.Deps{
		Breakers: breaker.NewRegistry(),
		Limiters: ratelimit.NewRegistry(),
		Cache:    cache.New(100),
	}, breaker.Config{}, ratelimit.Config{RequestsPerSecond: 100, BurstMultiplier: 2})
	c.http = resty.New().SetBaseURL(server.URL)
	c.pipeline.RetryPolicy.MaxRetries = 0
	return c
}

func TestGetPaperParsesAtomFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	rec, err := c.GetPaper(context.Background(), "2301.12345v2")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["title"] != "Sample Paper" {
		t.Fatalf("expected parsed title, got %+v", rec.Data)
	}
	if rec.ID != "2301.12345v2" {
		t.Fatalf("expected arxiv id extracted from entry id URL, got %q", rec.ID)
	}
}

func TestGetPaperReturnsNotFoundOnEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetPaper(context.Background(), "missing")
	if !apperrors.Is(err, apperrors.NotFound) {
		t.Fatalf("expected not_found for an empty feed, got %v", err)
	}
}

func TestGetCitationsIsUnsupported(t *testing.T) {
	c := newTestClient(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	_, err := c.GetCitations(context.Background(), "2301.12345")
	if !apperrors.Is(err, apperrors.NotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSearchPapersReturnsAllEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	res, err := c.SearchPapers(context.Background(), "transformers", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || len(res.Records) != 1 {
		t.Fatalf("expected 1 result, got %+v", res)
	}
}
