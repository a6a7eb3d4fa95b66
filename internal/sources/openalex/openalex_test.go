package openalex

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

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c := New(sources.Deps{
		Breakers: breaker.NewRegistry(),
		Limiters: ratelimit.NewRegistry(),
		Cache:    cache.New(100),
	}, "", breaker.Config{}, ratelimit.Config{RequestsPerSecond: 100, BurstMultiplier: 2})
	c.http = resty.New().SetBaseURL(server.URL)
	c.pipeline.RetryPolicy.MaxRetries = 0
	return c
}

func TestGetPaperReturnsRawRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"W123","title":"Foo","doi":"https://doi.org/10.1/abc"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	rec, err := c.GetPaper(context.Background(), "W123")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["title"] != "Foo" {
		t.Fatalf("expected title Foo, got %+v", rec.Data)
	}
}

func TestGetPaperReturnsNotFoundOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetPaper(context.Background(), "missing")
	if !apperrors.Is(err, apperrors.NotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSearchPapersParsesMetaCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"count":5},"results":[{"id":"W1"},{"id":"W2"}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	res, err := c.SearchPapers(context.Background(), "query", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 5 || len(res.Records) != 2 {
		t.Fatalf("expected total=5 and 2 records, got %+v", res)
	}
}

func TestGetCitationsExtractsDOIs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"doi":"https://doi.org/10.1/a"},{"doi":""}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	dois, err := c.GetCitations(context.Background(), "W123")
	if err != nil {
		t.Fatal(err)
	}
	if len(dois) != 1 || dois[0] != "https://doi.org/10.1/a" {
		t.Fatalf("expected one non-empty DOI, got %+v", dois)
	}
}
