package workflow

import (
	"context"
	"testing"

	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/graph/memrepo"
	"github.com/scigraph/engine/internal/match"
)

type stubEvaluator struct{ verdict EvaluatorVerdict }

func (s stubEvaluator) Review(ctx context.Context, m graph.ProblemMention, c match.Candidate) (EvaluatorVerdict, error) {
	return s.verdict, nil
}

type stubDebater struct{ arg string }

func (s stubDebater) Argue(ctx context.Context, m graph.ProblemMention, c match.Candidate, rounds []Round) (string, error) {
	return s.arg, nil
}

type stubArbiter struct {
	decision   string
	confidence float64
}

func (s stubArbiter) Decide(ctx context.Context, m graph.ProblemMention, c match.Candidate, makerArg, haterArg string) (ArbiterDecision, error) {
	return ArbiterDecision{Decision: s.decision, Confidence: s.confidence}, nil
}

func TestHighTierAutoLinks(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "c1", Domain: "nlp", Embedding: []float32{1, 0}})
	_ = repo.CreateMention(ctx, graph.ProblemMention{ID: "m1", Domain: "nlp", Embedding: []float32{1, 0}})

	e := New(match.New(repo, 5), repo, nil, nil, nil, nil, nil)
	mention, _, _ := repo.GetMention(ctx, "m1")

	out, err := e.Run(ctx, "run1", mention)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision != "link" || out.ConceptID != "c1" {
		t.Fatalf("expected auto-link to c1, got %+v", out)
	}

	linked, _, _ := repo.GetMention(ctx, "m1")
	if linked.ConceptID != "c1" {
		t.Fatalf("expected finalize to persist the link, got %+v", linked)
	}
}

func TestRejectedTierCreatesNewConcept(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	_ = repo.CreateMention(ctx, graph.ProblemMention{ID: "m1", Statement: "a fresh statement", Embedding: []float32{1, 0}})

	e := New(match.New(repo, 5), repo, nil, nil, nil, nil, nil)
	mention, _, _ := repo.GetMention(ctx, "m1")

	out, err := e.Run(ctx, "run1", mention)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision != "create_new" || out.ConceptID == "" {
		t.Fatalf("expected a newly created concept, got %+v", out)
	}
}

func TestMediumTierDefersToEvaluator(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "c1", Domain: "nlp", Embedding: []float32{1, 0}})
	_ = repo.CreateMention(ctx, graph.ProblemMention{ID: "m1", Domain: "nlp", Embedding: []float32{0.85, 0.5}})

	e := New(match.New(repo, 5), repo, nil, nil, nil, stubEvaluator{verdict: EvaluatorApprove}, nil)
	mention, _, _ := repo.GetMention(ctx, "m1")

	decision, err := match.New(repo, 5).Classify(ctx, mention)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Tier != match.TierMedium {
		t.Skipf("fixture produced tier %v, not MEDIUM; skipping evaluator assertion", decision.Tier)
	}

	out, err := e.Run(ctx, "run1", mention)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision != "link" {
		t.Fatalf("expected evaluator approval to link, got %+v", out)
	}
}

func TestLowTierEscalatesAfterMaxRoundsWithoutConfidence(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "c1", Domain: "nlp", Embedding: []float32{1, 0, 0}})
	_ = repo.CreateMention(ctx, graph.ProblemMention{ID: "m1", Domain: "nlp", Embedding: []float32{0.6, 0.6, 0.53}})

	stubQueue := &stubReviewQueue{}
	e := New(match.New(repo, 5), repo, stubDebater{arg: "for"}, stubDebater{arg: "against"}, stubArbiter{decision: "link", confidence: 0.4}, nil, stubQueue)
	mention, _, _ := repo.GetMention(ctx, "m1")

	decision, err := match.New(repo, 5).Classify(ctx, mention)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Tier != match.TierLow {
		t.Skipf("fixture produced tier %v, not LOW; skipping consensus assertion", decision.Tier)
	}

	out, err := e.Run(ctx, "run1", mention)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision != "queued" || out.EscalationReason != graph.EscalationConsensusNotReached {
		t.Fatalf("expected consensus_not_reached escalation, got %+v", out)
	}
	if len(out.Rounds) != MaxRounds {
		t.Fatalf("expected exactly %d rounds, got %d", MaxRounds, len(out.Rounds))
	}
	if len(stubQueue.enqueued) != 1 {
		t.Fatalf("expected the queued outcome to enqueue a pending review, got %d calls", len(stubQueue.enqueued))
	}
	if stubQueue.enqueued[0].mentionID != "m1" || stubQueue.enqueued[0].reason != graph.EscalationConsensusNotReached {
		t.Fatalf("unexpected enqueue call: %+v", stubQueue.enqueued[0])
	}
}

type enqueueCall struct {
	mentionID  string
	domain     string
	candidates []graph.CandidateConcept
	priority   graph.ReviewPriority
	reason     graph.EscalationReason
}

type stubReviewQueue struct {
	enqueued []enqueueCall
}

func (s *stubReviewQueue) Enqueue(ctx context.Context, mentionID, domain string, candidates []graph.CandidateConcept, priority graph.ReviewPriority, reason graph.EscalationReason) (graph.PendingReview, error) {
	s.enqueued = append(s.enqueued, enqueueCall{mentionID: mentionID, domain: domain, candidates: candidates, priority: priority, reason: reason})
	return graph.PendingReview{ID: "review-stub", MentionID: mentionID, Priority: priority, EscalationReason: reason}, nil
}
