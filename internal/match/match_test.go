package match

import (
	"context"
	"testing"

	"github.com/scigraph/engine/internal/graph/memrepo"
	"github.com/scigraph/engine/internal/graph"
)

func TestClassifyTiersBySimilarity(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()

	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "high", Domain: "nlp", Embedding: []float32{1, 0, 0}})
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "medium", Domain: "nlp", Embedding: []float32{0.9, 0.1, 0}})
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "low", Domain: "nlp", Embedding: []float32{0.2, 0.9, 0.3}})

	m := New(repo, 5)
	mention := graph.ProblemMention{PaperDOI: "10.1/doi", Domain: "nlp", Embedding: []float32{1, 0, 0}}

	decision, err := m.Classify(ctx, mention)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Tier != TierHigh {
		t.Fatalf("expected HIGH tier for near-identical embedding, got %v", decision.Tier)
	}
	if decision.TopConceptID != "high" {
		t.Fatalf("expected 'high' concept to win, got %v", decision.TopConceptID)
	}
}

func TestClassifyRejectsWhenNoConceptsExist(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	m := New(repo, 5)

	decision, err := m.Classify(ctx, graph.ProblemMention{Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Tier != TierRejected {
		t.Fatalf("expected REJECTED with an empty concept index, got %v", decision.Tier)
	}
}

func TestClassifyAppliesCitationBoost(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()

	// two concepts with identical embeddings (so identical similarity to
	// the mention); only one is reachable via a one-hop citation from the
	// mention's paper
	embed := []float32{0.6, 0.6, 0.53}
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "boosted", Domain: "nlp", Embedding: embed})
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "plain", Domain: "nlp", Embedding: embed})

	_ = repo.CreateMention(ctx, graph.ProblemMention{ID: "linked-mention", PaperDOI: "10.1/cited"})
	_ = repo.SetMentionConcept(ctx, "linked-mention", "boosted")
	_ = repo.CreateRelation(ctx, graph.Relation{Kind: graph.RelCites, FromID: "10.1/citer", ToID: "10.1/cited"})

	m := New(repo, 5)
	decision, err := m.Classify(ctx, graph.ProblemMention{PaperDOI: "10.1/citer", Domain: "nlp", Embedding: embed})
	if err != nil {
		t.Fatal(err)
	}
	if decision.TopConceptID != "boosted" {
		t.Fatalf("expected citation-boosted concept to win the tie, got %v", decision.TopConceptID)
	}
	if decision.Candidates[0].CitationBoost != CitationBoost {
		t.Fatalf("expected the winner to carry a citation boost of %v, got %+v", CitationBoost, decision.Candidates[0])
	}
}

func TestClassifyTieBreakOrder(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()

	embed := []float32{1, 0}
	// identical score; "wrong-domain" would win on lexicographic id alone
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "a-wrong-domain", Domain: "cv", Embedding: embed})
	_ = repo.CreateConcept(ctx, graph.ProblemConcept{ID: "z-right-domain", Domain: "nlp", Embedding: embed})

	m := New(repo, 5)
	decision, err := m.Classify(ctx, graph.ProblemMention{Domain: "nlp", Embedding: embed})
	if err != nil {
		t.Fatal(err)
	}
	if decision.TopConceptID != "z-right-domain" {
		t.Fatalf("expected domain match to win tie-break over lexicographic id, got %v", decision.TopConceptID)
	}
}
