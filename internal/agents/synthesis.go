package agents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/logging"
)

// Synthesizer summarises a completed evaluation, proposes follow-on
// problems and relations, and writes them back best-effort.
type Synthesizer struct {
	deps Deps
	log  *logging.Logger
	now  func() time.Time
}

// NewSynthesizer builds a Synthesizer from deps.
func NewSynthesizer(deps Deps, log *logging.Logger) *Synthesizer {
	return &Synthesizer{deps: deps, log: log, now: time.Now}
}

const synthesisSchema = `{"type":"object","properties":{"summary":{"type":"string"},"new_problems":{"type":"array","items":{"type":"object","properties":{"statement":{"type":"string"},"domain":{"type":"string"},"assumptions":{"type":"array","items":{"type":"string"}}},"required":["statement","domain"]}},"proposed_relations":{"type":"array","items":{"type":"object","properties":{"kind":{"type":"string"},"from_id":{"type":"string"},"to_id":{"type":"string"},"confidence":{"type":"number"}},"required":["kind","from_id","to_id","confidence"]}}},"required":["summary","new_problems","proposed_relations"]}`

type synthesisLLMResponse struct {
	Summary      string `json:"summary"`
	NewProblems  []struct {
		Statement   string   `json:"statement"`
		Domain      string   `json:"domain"`
		Assumptions []string `json:"assumptions"`
	} `json:"new_problems"`
	ProposedRelations []struct {
		Kind       string  `json:"kind"`
		FromID     string  `json:"from_id"`
		ToID       string  `json:"to_id"`
		Confidence float64 `json:"confidence"`
	} `json:"proposed_relations"`
}

// Run asks the LLM to synthesise a report from the evaluation outcome,
// then writes every proposed Problem and relation best-effort: a failed
// write is logged and skipped, never aborting the rest of synthesis.
func (s *Synthesizer) Run(ctx context.Context, problem graph.Problem, evaluation EvaluationResult) (SynthesisReport, error) {
	if err := ctxCheck(ctx); err != nil {
		return SynthesisReport{}, err
	}

	prompt := buildSynthesisPrompt(problem, evaluation)
	var resp synthesisLLMResponse
	if err := s.deps.LLM.Structured(ctx, prompt, synthesisSchema, &resp); err != nil {
		return SynthesisReport{}, apperrors.Wrap(apperrors.LLMError, "synthesise run", err)
	}

	report := SynthesisReport{Summary: resp.Summary}
	now := s.now()

	for _, np := range resp.NewProblems {
		newProblem := graph.Problem{
			ID:          "problem-" + uuid.NewString(),
			Statement:   np.Statement,
			Domain:      np.Domain,
			Status:      graph.StatusOpen,
			Assumptions: np.Assumptions,
			Evidence: graph.Evidence{
				SourceDOI: problem.Evidence.SourceDOI,
			},
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.deps.Repo.CreateProblem(ctx, newProblem); err != nil {
			s.log.WithFields(map[string]interface{}{"problem_id": newProblem.ID, "error": err}).Warn("synthesis: failed to create new problem, skipping")
			continue
		}
		report.NewProblems = append(report.NewProblems, newProblem)

		extends := graph.Relation{
			Kind:       graph.RelExtends,
			FromID:     newProblem.ID,
			ToID:       problem.ID,
			Confidence: 1.0,
		}
		if err := s.deps.Repo.CreateRelation(ctx, extends); err != nil {
			s.log.WithFields(map[string]interface{}{"from": newProblem.ID, "to": problem.ID, "error": err}).Warn("synthesis: failed to create EXTENDS relation, skipping")
		}
	}

	for _, pr := range resp.ProposedRelations {
		if !s.endpointsResolve(ctx, pr.FromID, pr.ToID) {
			continue
		}
		rel := graph.Relation{
			Kind:       graph.RelationKind(pr.Kind),
			FromID:     pr.FromID,
			ToID:       pr.ToID,
			Confidence: pr.Confidence,
		}
		if err := s.deps.Repo.CreateRelation(ctx, rel); err != nil {
			s.log.WithFields(map[string]interface{}{"from": pr.FromID, "to": pr.ToID, "error": err}).Warn("synthesis: failed to create proposed relation, skipping")
			continue
		}
		report.ProposedRelations = append(report.ProposedRelations, ProposedRelation{
			Kind: rel.Kind, FromID: rel.FromID, ToID: rel.ToID, Confidence: rel.Confidence,
		})
	}

	if evaluation.Verdict == VerdictPromising {
		advanced := problem
		advanced.Status = graph.StatusInProgress
		advanced.UpdatedAt = now
		if err := s.deps.Repo.UpdateProblem(ctx, advanced); err != nil {
			s.log.WithFields(map[string]interface{}{"problem_id": problem.ID, "error": err}).Warn("synthesis: failed to advance problem status to in_progress")
		}
	}

	return report, nil
}

// endpointsResolve reports whether both ids name an existing Problem, so a
// proposed relation is only written when both endpoints are real.
func (s *Synthesizer) endpointsResolve(ctx context.Context, fromID, toID string) bool {
	_, fromFound, err := s.deps.Repo.GetProblem(ctx, fromID)
	if err != nil || !fromFound {
		return false
	}
	_, toFound, err := s.deps.Repo.GetProblem(ctx, toID)
	if err != nil || !toFound {
		return false
	}
	return true
}

func buildSynthesisPrompt(p graph.Problem, evaluation EvaluationResult) string {
	encoded, _ := json.Marshal(struct {
		ProblemID  string                 `json:"problem_id"`
		Statement  string                 `json:"statement"`
		Verdict    Verdict                `json:"verdict"`
		Metrics    map[string]interface{} `json:"metrics"`
		Commentary string                 `json:"commentary"`
	}{p.ID, p.Statement, evaluation.Verdict, evaluation.Metrics, evaluation.Commentary})
	return "Summarise this evaluation run and propose follow-on problems and relations. Respond with JSON matching the given schema.\n\n" + string(encoded)
}
