package aggregate

import (
	"context"
	"testing"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/sources"
)

type fakeClient struct {
	name      sources.Name
	paper     sources.RawRecord
	paperErr  error
	search    sources.SearchResult
	searchErr error
}

func (f *fakeClient) Name() sources.Name { return f.name }
func (f *fakeClient) GetPaper(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return f.paper, f.paperErr
}
func (f *fakeClient) SearchPapers(ctx context.Context, query string, limit, offset int) (sources.SearchResult, error) {
	return f.search, f.searchErr
}
func (f *fakeClient) GetCitations(ctx context.Context, identifier string) ([]string, error) {
	return nil, apperrors.New(apperrors.NotFound, "unsupported")
}
func (f *fakeClient) GetAuthor(ctx context.Context, identifier string) (sources.RawRecord, error) {
	return sources.RawRecord{}, apperrors.New(apperrors.NotFound, "unsupported")
}
func (f *fakeClient) GetPDFBytes(ctx context.Context, identifier string) ([]byte, error) {
	return nil, apperrors.New(apperrors.NotFound, "unsupported")
}

func TestDetectIdentifierTypeRoundTrips(t *testing.T) {
	cases := map[string]IdentifierType{
		"10.18653/v1/N18-1202":       DOI,
		"2301.12345":                 ArxivID,
		"2301.12345v2":               ArxivID,
		"hep-th/9901001":             ArxivID,
		"0123456789abcdef0123456789abcdef01234567": S2ID,
		"W2741809807":                 OpenAlexID,
		"https://example.com/x":       URL,
		"not an identifier at all %%": Unknown,
	}
	for id, want := range cases {
		if got := DetectIdentifierType(id); got != want {
			t.Errorf("DetectIdentifierType(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestFetchSelectsClientsByIdentifierType(t *testing.T) {
	s2 := &fakeClient{name: sources.S2, paper: sources.RawRecord{Source: sources.S2, Data: map[string]interface{}{"paperId": "abc", "title": "T"}}}
	arxiv := &fakeClient{name: sources.Arxiv, paperErr: apperrors.New(apperrors.NotFound, "no such arxiv record")}

	agg := New(Sources{S2: s2, Arxiv: arxiv}, 3, nil)

	// A DOI should fan out to both registered clients (S2 and arXiv here,
	// since OpenAlex is unset); arXiv's not-found is tolerated because S2
	// still returns a record.
	paper, err := agg.Fetch(context.Background(), "10.1234/abc")
	if err != nil {
		t.Fatal(err)
	}
	if paper.Title != "T" {
		t.Fatalf("expected merged paper title T, got %+v", paper)
	}
}

func TestFetchReturnsErrorWhenEverySourceFails(t *testing.T) {
	s2 := &fakeClient{name: sources.S2, paperErr: apperrors.New(apperrors.Transient, "boom")}
	agg := New(Sources{S2: s2}, 3, nil)

	_, err := agg.Fetch(context.Background(), "0123456789abcdef0123456789abcdef01234567")
	if err == nil {
		t.Fatal("expected an error when every source fails")
	}
}

func TestFetchMergesCitationCountAndOpenAccessScenario6(t *testing.T) {
	// Literal scenario: DOI 10.18653/v1/N18-1202 fetched from two sources
	// with citation_counts 100 and 120 merges to 120, is_open_access=true
	// if either source reports true, authors = the longer list.
	doi := "10.18653/v1/N18-1202"
	s2 := &fakeClient{name: sources.S2, paper: sources.RawRecord{Source: sources.S2, Data: map[string]interface{}{
		"externalIds":   map[string]interface{}{"DOI": doi},
		"citationCount": float64(100),
		"isOpenAccess":  false,
		"authors": []interface{}{
			map[string]interface{}{"authorId": "a1"},
		},
	}}}
	openalex := &fakeClient{name: sources.OpenAlex, paper: sources.RawRecord{Source: sources.OpenAlex, Data: map[string]interface{}{
		"doi":            doi,
		"cited_by_count": float64(120),
		"open_access":    map[string]interface{}{"is_oa": true},
	}}}

	agg := New(Sources{S2: s2, OpenAlex: openalex}, 3, nil)
	paper, err := agg.Fetch(context.Background(), doi)
	if err != nil {
		t.Fatal(err)
	}
	if paper.CitationCount != 120 {
		t.Fatalf("expected merged citation_count=120, got %d", paper.CitationCount)
	}
	if !paper.IsOpenAccess {
		t.Fatal("expected merged is_open_access=true")
	}
	if len(paper.Authors) != 1 {
		t.Fatalf("expected the longer author list (1) to win, got %+v", paper.Authors)
	}
}

func TestSearchDedupesByBestAvailableIdentifierAndRanksByCitationCount(t *testing.T) {
	s2 := &fakeClient{name: sources.S2, search: sources.SearchResult{
		Records: []sources.RawRecord{
			{Source: sources.S2, Data: map[string]interface{}{"externalIds": map[string]interface{}{"DOI": "10.1/x"}, "citationCount": float64(10)}},
			{Source: sources.S2, Data: map[string]interface{}{"externalIds": map[string]interface{}{"DOI": "10.1/y"}, "citationCount": float64(50)}},
		},
	}}
	openalex := &fakeClient{name: sources.OpenAlex, search: sources.SearchResult{
		Records: []sources.RawRecord{
			{Source: sources.OpenAlex, Data: map[string]interface{}{"doi": "10.1/x", "cited_by_count": float64(30)}},
		},
	}}

	agg := New(Sources{S2: s2, OpenAlex: openalex}, 3, nil)
	results, err := agg.Search(context.Background(), SearchRequest{Query: "q", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 deduplicated results, got %d: %+v", len(results), results)
	}
	if results[0].CitationCount != 50 {
		t.Fatalf("expected the highest citation count first, got %+v", results)
	}
	// 10.1/x merged from S2 (10) and OpenAlex (30) should keep the max.
	var merged graph.Paper
	for _, p := range results {
		if p.DOI == "10.1/x" {
			merged = p
		}
	}
	if merged.CitationCount != 30 {
		t.Fatalf("expected merged citation count 30 for the duplicate DOI, got %+v", merged)
	}
}

func TestSearchReturnsErrorWhenEverySourceFails(t *testing.T) {
	s2 := &fakeClient{name: sources.S2, searchErr: apperrors.New(apperrors.Transient, "boom")}
	agg := New(Sources{S2: s2}, 3, nil)
	_, err := agg.Search(context.Background(), SearchRequest{Query: "q", Limit: 10})
	if err == nil {
		t.Fatal("expected an error when every source fails")
	}
}
