package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
)

// RankingInput selects the candidate pool and bounds its size.
type RankingInput struct {
	Status *graph.ProblemStatus
	Domain string
	Limit  int
}

// Ranker scores and orders open problems for human selection.
type Ranker struct {
	deps Deps
}

// NewRanker builds a Ranker from deps.
func NewRanker(deps Deps) *Ranker {
	return &Ranker{deps: deps}
}

const rankingSchema = `{"type":"object","properties":{"rankings":{"type":"array","items":{"type":"object","properties":{"problem_id":{"type":"string"},"score":{"type":"number"},"rationale":{"type":"string"}},"required":["problem_id","score","rationale"]}}},"required":["rankings"]}`

type rankingResponse struct {
	Rankings []RankedProblem `json:"rankings"`
}

// Run queries the graph for candidates and asks the LLM to order them by
// tractability, data availability, and impact.
func (r *Ranker) Run(ctx context.Context, in RankingInput) ([]RankedProblem, error) {
	if err := ctxCheck(ctx); err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	candidates, err := r.deps.Repo.ListProblems(ctx, graph.ProblemFilter{
		Status: in.Status,
		Domain: in.Domain,
		Limit:  limit,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "list candidate problems", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := buildRankingPrompt(candidates)
	var resp rankingResponse
	if err := r.deps.LLM.Structured(ctx, prompt, rankingSchema, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.LLMError, "rank candidates", err)
	}

	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}
	ranked := make([]RankedProblem, 0, len(resp.Rankings))
	for _, rk := range resp.Rankings {
		if _, ok := known[rk.ProblemID]; !ok {
			continue
		}
		ranked = append(ranked, rk)
	}
	return ranked, nil
}

func buildRankingPrompt(candidates []graph.Problem) string {
	var b strings.Builder
	b.WriteString("Score and order the following research problems by tractability, data availability, and impact. Respond with JSON matching the given schema.\n\n")
	for _, p := range candidates {
		summary, _ := json.Marshal(struct {
			ID          string   `json:"id"`
			Statement   string   `json:"statement"`
			Domain      string   `json:"domain"`
			Datasets    []string `json:"datasets"`
			Baselines   []string `json:"baselines"`
		}{p.ID, p.Statement, p.Domain, p.Datasets, p.Baselines})
		fmt.Fprintf(&b, "- %s\n", summary)
	}
	return b.String()
}
