// Package match implements the Concept Matcher: it ranks candidate
// ProblemConcepts for a ProblemMention by vector similarity plus a
// citation boost, and reduces the ranked list to a confidence tier and
// action. The matcher never writes to the graph itself; the Matching
// Workflow drives the write according to the returned decision (mirrors
// the Circuit Breaker's check/act separation).
package match

import (
	"context"
	"math"
	"sort"

	"github.com/scigraph/engine/internal/graph"
)

// CitationBoost is added to a candidate's similarity when the mention's
// paper cites (one hop) a paper already linked to that candidate.
const CitationBoost = 0.20

// Tier classifies the top candidate's final_score.
type Tier string

const (
	TierHigh     Tier = "HIGH"
	TierMedium   Tier = "MEDIUM"
	TierLow      Tier = "LOW"
	TierRejected Tier = "REJECTED"
)

// Candidate is a scored ProblemConcept.
type Candidate struct {
	Concept       graph.ProblemConcept
	Similarity    float64
	CitationBoost float64
	FinalScore    float64
}

// Decision is the matcher's output: the ranked candidates, the winning
// tier, and (for HIGH) the concept to link.
type Decision struct {
	Candidates []Candidate
	Tier       Tier
	TopConceptID string
}

func tierFor(score float64) Tier {
	switch {
	case score >= 0.95:
		return TierHigh
	case score >= 0.80:
		return TierMedium
	case score >= 0.50:
		return TierLow
	default:
		return TierRejected
	}
}

// Matcher runs the vector-similarity query and citation-boost lookup.
type Matcher struct {
	repo graph.Repository
	topK int
}

// New builds a Matcher returning at most topK candidates per call.
func New(repo graph.Repository, topK int) *Matcher {
	if topK <= 0 {
		topK = 5
	}
	return &Matcher{repo: repo, topK: topK}
}

// Classify scores candidates for mention and reduces them to a Decision.
// It performs no writes.
func (m *Matcher) Classify(ctx context.Context, mention graph.ProblemMention) (Decision, error) {
	concepts, err := m.repo.SearchConceptsByEmbedding(ctx, mention.Embedding, m.topK)
	if err != nil {
		return Decision{}, err
	}
	if len(concepts) == 0 {
		return Decision{Tier: TierRejected}, nil
	}

	citedDOIs, err := m.repo.CitesOneHop(ctx, mention.PaperDOI)
	if err != nil {
		return Decision{}, err
	}
	citedSet := make(map[string]struct{}, len(citedDOIs))
	for _, d := range citedDOIs {
		citedSet[d] = struct{}{}
	}

	candidates := make([]Candidate, 0, len(concepts))
	for _, c := range concepts {
		sim := cosineSimilarity(mention.Embedding, c.Embedding)

		boost := 0.0
		linkedMentionIDs, err := m.repo.MentionsInstanceOf(ctx, c.ID)
		if err == nil {
			for _, linkedID := range linkedMentionIDs {
				linked, ok, err := m.repo.GetMention(ctx, linkedID)
				if err != nil || !ok {
					continue
				}
				if _, cited := citedSet[linked.PaperDOI]; cited {
					boost = CitationBoost
					break
				}
			}
		}

		candidates = append(candidates, Candidate{
			Concept:       c,
			Similarity:    sim,
			CitationBoost: boost,
			FinalScore:    sim + boost,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		// deterministic tie-break: domain match first, then higher
		// mention_count, then lexicographic concept_id
		aDomain, bDomain := a.Concept.Domain == mention.Domain, b.Concept.Domain == mention.Domain
		if aDomain != bDomain {
			return aDomain
		}
		if a.Concept.MentionCount != b.Concept.MentionCount {
			return a.Concept.MentionCount > b.Concept.MentionCount
		}
		return a.Concept.ID < b.Concept.ID
	})

	top := candidates[0]
	return Decision{
		Candidates:   candidates,
		Tier:         tierFor(top.FinalScore),
		TopConceptID: top.Concept.ID,
	}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
