package agents

import (
	"context"
	"encoding/json"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
)

// Continuer drafts a research continuation for a selected problem.
type Continuer struct {
	deps Deps
}

// NewContinuer builds a Continuer from deps.
func NewContinuer(deps Deps) *Continuer {
	return &Continuer{deps: deps}
}

const continuationSchema = `{"type":"object","properties":{"title":{"type":"string"},"methodology":{"type":"string"},"experimental_steps":{"type":"array","items":{"type":"string"}},"expected_outcome":{"type":"string"},"confidence":{"type":"number"}},"required":["title","methodology","experimental_steps","expected_outcome","confidence"]}`

// Run loads the selected problem's full context — constraints, datasets,
// baselines, metrics, and one-hop related problems — and asks the LLM for
// a typed continuation proposal.
func (c *Continuer) Run(ctx context.Context, problemID string) (ContinuationProposal, error) {
	if err := ctxCheck(ctx); err != nil {
		return ContinuationProposal{}, err
	}
	problem, found, err := c.deps.Repo.GetProblem(ctx, problemID)
	if err != nil {
		return ContinuationProposal{}, apperrors.Wrap(apperrors.Internal, "load problem", err)
	}
	if !found {
		return ContinuationProposal{}, apperrors.New(apperrors.NotFound, "problem not found: "+problemID)
	}

	related, err := c.deps.Repo.Neighbors(ctx, problemID, 1)
	if err != nil {
		return ContinuationProposal{}, apperrors.Wrap(apperrors.Internal, "load related problems", err)
	}

	prompt, err := buildContinuationPrompt(problem, related)
	if err != nil {
		return ContinuationProposal{}, apperrors.Wrap(apperrors.Internal, "build continuation prompt", err)
	}

	var proposal ContinuationProposal
	if err := c.deps.LLM.Structured(ctx, prompt, continuationSchema, &proposal); err != nil {
		return ContinuationProposal{}, apperrors.Wrap(apperrors.LLMError, "draft continuation", err)
	}
	return proposal, nil
}

func buildContinuationPrompt(p graph.Problem, related []graph.Relation) (string, error) {
	promptContext := struct {
		Statement   string             `json:"statement"`
		Domain      string             `json:"domain"`
		Assumptions []string           `json:"assumptions"`
		Constraints []graph.Constraint `json:"constraints"`
		Datasets    []string           `json:"datasets"`
		Metrics     []string           `json:"metrics"`
		Baselines   []string           `json:"baselines"`
		RelatedIDs  []string           `json:"related_problem_ids"`
	}{
		Statement:   p.Statement,
		Domain:      p.Domain,
		Assumptions: p.Assumptions,
		Constraints: p.Constraints,
		Datasets:    p.Datasets,
		Metrics:     p.Metrics,
		Baselines:   p.Baselines,
	}
	for _, r := range related {
		promptContext.RelatedIDs = append(promptContext.RelatedIDs, r.ToID)
	}
	encoded, err := json.Marshal(promptContext)
	if err != nil {
		return "", err
	}
	return "Draft a research continuation for the following problem context. Respond with JSON matching the given schema.\n\n" + string(encoded), nil
}
