package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/scigraph/engine/internal/agents"
	"github.com/scigraph/engine/internal/config"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/graph/memrepo"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/sandbox"
)

type memStore struct {
	mu     sync.Mutex
	states map[RunID]State
}

func newMemStore() *memStore { return &memStore{states: make(map[RunID]State)} }

func (s *memStore) Save(ctx context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RunID] = state
	return nil
}

func (s *memStore) Load(ctx context.Context, id RunID) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok, nil
}

func (s *memStore) List(ctx context.Context) ([]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out, nil
}

type fakeLLM struct {
	structured map[string][]byte // keyed by a substring of the prompt to disambiguate node calls
	complete   string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.complete, nil
}

func (f *fakeLLM) Structured(ctx context.Context, prompt string, schema string, out interface{}) error {
	for substr, payload := range f.structured {
		if contains(prompt, substr) {
			return json.Unmarshal(payload, out)
		}
	}
	return json.Unmarshal([]byte(`{}`), out)
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

type fakeSandbox struct{}

func (f *fakeSandbox) Run(ctx context.Context, script string) (sandbox.Result, error) {
	return sandbox.Result{Stdout: `{"em": 0.9}`}, nil
}

func buildEngine(t *testing.T, repo graph.Repository, checkpoints config.CheckpointConfig) (*Engine, *memStore) {
	t.Helper()
	llmDouble := &fakeLLM{
		structured: map[string][]byte{
			"tractability":                []byte(`{"rankings":[{"problem_id":"p1","score":0.9,"rationale":"tractable"}]}`),
			"Draft a research continuation": []byte(`{"title":"t","methodology":"m","experimental_steps":["s1"],"expected_outcome":"o","confidence":0.6}`),
			"Summarise this evaluation run": []byte(`{"summary":"done","new_problems":[],"proposed_relations":[]}`),
		},
		complete: "print('ok')",
	}
	deps := agents.Deps{LLM: llmDouble, Repo: repo, Sandbox: &fakeSandbox{}}
	store := newMemStore()
	e := New(Deps{
		Ranker:      agents.NewRanker(deps),
		Continuer:   agents.NewContinuer(deps),
		Evaluator:   agents.NewEvaluator(deps),
		Synthesizer: agents.NewSynthesizer(deps, logging.NewDefault("test")),
		Repo:        repo,
		Store:       store,
		Checkpoints: checkpoints,
	})
	return e, store
}

func seedProblem(t *testing.T, repo graph.Repository) {
	t.Helper()
	_ = repo.CreateProblem(context.Background(), graph.Problem{
		ID: "p1", Statement: "reduce hallucination", Domain: "nlp", Status: graph.StatusOpen,
		Baselines: []string{"em=0.5"},
	})
}

func TestStartPausesAtSelectProblemCheckpointWhenRequired(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	seedProblem(t, repo)
	e, store := buildEngine(t, repo, config.CheckpointConfig{SelectProblemRequired: true, ApproveProposalRequired: true, ReviewEvaluationRequired: true})

	runID, err := e.Start(ctx, Params{Domain: "nlp", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	state, found, err := store.Load(ctx, runID)
	if err != nil || !found {
		t.Fatalf("expected a persisted state, found=%v err=%v", found, err)
	}
	if state.Status != StatusPaused || state.PendingCheckpoint != CheckpointSelectProblem {
		t.Fatalf("expected paused at select_problem, got %+v", state)
	}
	if state.SelectedProblemID != "p1" {
		t.Fatalf("expected default selection p1, got %q", state.SelectedProblemID)
	}
}

func TestStartRunsToCompletionWhenNoCheckpointsRequired(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	seedProblem(t, repo)
	e, store := buildEngine(t, repo, config.CheckpointConfig{})

	runID, err := e.Start(ctx, Params{Domain: "nlp", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	state, _, _ := store.Load(ctx, runID)
	if state.Status != StatusCompleted || state.Outcome != OutcomeSynthesized {
		t.Fatalf("expected the run to complete unattended, got %+v", state)
	}
}

func TestResumeRejectShortCircuitsToEnd(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	seedProblem(t, repo)
	e, store := buildEngine(t, repo, config.CheckpointConfig{SelectProblemRequired: true})

	runID, err := e.Start(ctx, Params{Domain: "nlp", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	state, err := e.Resume(ctx, runID, CheckpointSelectProblem, DecisionReject, "not interesting", nil)
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != StatusCompleted || state.Outcome != OutcomeRejected {
		t.Fatalf("expected rejection to end the run, got %+v", state)
	}

	persisted, _, _ := store.Load(ctx, runID)
	if persisted.Status != StatusCompleted {
		t.Fatalf("expected the rejection to be persisted, got %+v", persisted)
	}
}

func TestResumeEditOverridesSelection(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	seedProblem(t, repo)
	_ = repo.CreateProblem(ctx, graph.Problem{ID: "p2", Statement: "alt", Domain: "nlp", Status: graph.StatusOpen})
	e, _ := buildEngine(t, repo, config.CheckpointConfig{SelectProblemRequired: true, ApproveProposalRequired: true, ReviewEvaluationRequired: true})

	runID, err := e.Start(ctx, Params{Domain: "nlp", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	edit, _ := json.Marshal(SelectProblemEdit{ProblemID: "p2"})
	state, err := e.Resume(ctx, runID, CheckpointSelectProblem, DecisionEdit, "", edit)
	if err != nil {
		t.Fatal(err)
	}
	if state.SelectedProblemID != "p2" {
		t.Fatalf("expected the edit to override the selection, got %q", state.SelectedProblemID)
	}
	if state.PendingCheckpoint != CheckpointApproveProposal {
		t.Fatalf("expected to advance to the next checkpoint, got %+v", state)
	}
}

func TestCancelIsIdempotentOnATerminalRun(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	seedProblem(t, repo)
	e, _ := buildEngine(t, repo, config.CheckpointConfig{})

	runID, err := e.Start(ctx, Params{Domain: "nlp", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Cancel(ctx, runID); err != nil {
		t.Fatal(err)
	}
	if err := e.Cancel(ctx, runID); err != nil {
		t.Fatalf("expected a second cancel on a terminal run to be a no-op, got %v", err)
	}

	state, _, _ := e.GetState(ctx, runID)
	if state.Status != StatusCompleted {
		t.Fatalf("expected cancel to leave an already-completed run untouched, got %q", state.Status)
	}
}
