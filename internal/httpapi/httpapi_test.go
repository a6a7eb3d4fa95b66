package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/graph/memrepo"
)

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)
	return server
}

func TestHealthReportsOKWithLiveRepository(t *testing.T) {
	server := newTestServer(t, Deps{Repo: memrepo.New()})

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %s, want ok", body["status"])
	}
}

func TestStatsReturns500WithoutRepository(t *testing.T) {
	server := newTestServer(t, Deps{})

	resp, err := http.Get(server.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for unconfigured repository", resp.StatusCode)
	}
}

func TestGetProblemReturns404ForUnknownID(t *testing.T) {
	server := newTestServer(t, Deps{Repo: memrepo.New()})

	resp, err := http.Get(server.URL + "/api/problems/does-not-exist")
	if err != nil {
		t.Fatalf("GET /api/problems/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListProblemsReturnsCreatedProblem(t *testing.T) {
	repo := memrepo.New()
	ctx := context.Background()
	if err := repo.UpsertPaper(ctx, graph.Paper{DOI: "10.1/abc", Title: "A Paper"}); err != nil {
		t.Fatalf("seed paper: %v", err)
	}
	if err := repo.CreateProblem(ctx, graph.Problem{
		ID:        "p1",
		Statement: "how do we test httpapi",
		Domain:    "software_engineering",
		Status:    graph.StatusOpen,
		Evidence:  graph.Evidence{SourceDOI: "10.1/abc"},
	}); err != nil {
		t.Fatalf("seed problem: %v", err)
	}

	server := newTestServer(t, Deps{Repo: repo})

	resp, err := http.Get(server.URL + "/api/problems")
	if err != nil {
		t.Fatalf("GET /api/problems: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var problems []graph.Problem
	if err := json.NewDecoder(resp.Body).Decode(&problems); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(problems) != 1 || problems[0].ID != "p1" {
		t.Fatalf("problems = %+v, want one problem with id p1", problems)
	}
}

func TestGetPaperAcceptsSlashContainingDOI(t *testing.T) {
	repo := memrepo.New()
	ctx := context.Background()
	if err := repo.UpsertPaper(ctx, graph.Paper{DOI: "10.1000/xyz123", Title: "Slashy DOI"}); err != nil {
		t.Fatalf("seed paper: %v", err)
	}

	server := newTestServer(t, Deps{Repo: repo})

	resp, err := http.Get(server.URL + "/api/papers/10.1000/xyz123")
	if err != nil {
		t.Fatalf("GET /api/papers/{doi}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var p graph.Paper
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if p.DOI != "10.1000/xyz123" {
		t.Fatalf("DOI = %s, want 10.1000/xyz123", p.DOI)
	}
}

func TestDeleteProblemSoftDeletesToDeprecated(t *testing.T) {
	repo := memrepo.New()
	ctx := context.Background()
	if err := repo.CreateProblem(ctx, graph.Problem{ID: "p2", Statement: "x", Status: graph.StatusOpen}); err != nil {
		t.Fatalf("seed problem: %v", err)
	}

	server := newTestServer(t, Deps{Repo: repo})

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/problems/p2", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /api/problems/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	p, ok, err := repo.GetProblem(ctx, "p2")
	if err != nil || !ok {
		t.Fatalf("GetProblem after delete: ok=%v err=%v", ok, err)
	}
	if p.Status != graph.StatusDeprecated {
		t.Fatalf("status = %s, want deprecated", p.Status)
	}
}

func TestStartWorkflowReturns500WithoutEngine(t *testing.T) {
	server := newTestServer(t, Deps{})

	resp, err := http.Post(server.URL+"/api/agents/workflows", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /api/agents/workflows: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for unconfigured workflow engine", resp.StatusCode)
	}
}

func TestListReviewsReturns500WithoutQueue(t *testing.T) {
	server := newTestServer(t, Deps{})

	resp, err := http.Get(server.URL + "/api/review")
	if err != nil {
		t.Fatalf("GET /api/review: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for unconfigured review queue", resp.StatusCode)
	}
}

func TestExtractRejectsInvalidJSON(t *testing.T) {
	server := newTestServer(t, Deps{Repo: memrepo.New()})

	resp, err := http.Post(server.URL+"/api/extract", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatalf("POST /api/extract: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed JSON", resp.StatusCode)
	}
}
