// Package agents implements the four research agents driving the
// Workflow Engine's DAG: ranking, continuation, evaluation, synthesis.
// Each agent is stateless and takes its dependencies (LLM, repository,
// sandbox) via constructor injection; all mutable state flows through the
// workflow's State record, never through agent fields.
package agents

import (
	"context"

	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/llm"
	"github.com/scigraph/engine/internal/sandbox"
)

// RankedProblem is one entry in the Ranking agent's output.
type RankedProblem struct {
	ProblemID string  `json:"problem_id"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// ContinuationProposal is the Continuation agent's typed output.
type ContinuationProposal struct {
	Title              string   `json:"title"`
	Methodology        string   `json:"methodology"`
	ExperimentalSteps  []string `json:"experimental_steps"`
	ExpectedOutcome    string   `json:"expected_outcome"`
	Confidence         float64  `json:"confidence"`
}

// Verdict is the Evaluation agent's terminal classification.
type Verdict string

const (
	VerdictPromising   Verdict = "promising"
	VerdictInconclusive Verdict = "inconclusive"
	VerdictNotViable   Verdict = "not_viable"
)

// EvaluationResult is the Evaluation agent's full output.
type EvaluationResult struct {
	Script      string
	SandboxOut  sandbox.Result
	Metrics     map[string]interface{}
	Verdict     Verdict
	Feasibility float64
	Commentary  string
}

// ProposedRelation is a relation the Synthesis agent wants to write,
// pending both endpoints resolving to real node ids.
type ProposedRelation struct {
	Kind       graph.RelationKind
	FromID     string
	ToID       string
	Confidence float64
}

// SynthesisReport is the Synthesis agent's output.
type SynthesisReport struct {
	Summary          string
	NewProblems      []graph.Problem
	ProposedRelations []ProposedRelation
}

// Deps bundles the dependencies every agent is constructed with.
type Deps struct {
	LLM     llm.Client
	Repo    graph.Repository
	Sandbox sandbox.Runner
}

// contextKey avoids collisions on cancellation-aware helpers shared by
// every agent method signature below.
type contextKey struct{}

var _ = contextKey{}

// ctxCheck is a small shared helper so every agent observes cancellation
// at its single suspension point without duplicating the same check.
func ctxCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
