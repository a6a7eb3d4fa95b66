// Package workflow implements the seven-node research-agent DAG:
// ranking → [select_problem] → continuation → [approve_proposal] →
// evaluation → [review_evaluation] → synthesis → END. Bracketed nodes are
// interrupt-before checkpoints: the engine persists state and waits for an
// external decision before entering them.
package workflow

import (
	"time"

	"github.com/scigraph/engine/internal/agents"
)

// RunID is a typed run identifier, preventing accidental lookups against
// an unrelated string-keyed registry.
type RunID string

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Node names one of the engine's four work nodes.
type Node string

const (
	NodeRanking      Node = "ranking"
	NodeContinuation Node = "continuation"
	NodeEvaluation   Node = "evaluation"
	NodeSynthesis    Node = "synthesis"
	NodeEnd          Node = "end"
)

// CheckpointType names one of the three interrupt-before checkpoints.
type CheckpointType string

const (
	CheckpointSelectProblem    CheckpointType = "select_problem"
	CheckpointApproveProposal  CheckpointType = "approve_proposal"
	CheckpointReviewEvaluation CheckpointType = "review_evaluation"
)

// Decision is the external party's answer at a checkpoint.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionEdit    Decision = "edit"
)

// Outcome records why a run reached a terminal state.
type Outcome string

const (
	OutcomeSynthesized Outcome = "synthesized"
	OutcomeRejected    Outcome = "rejected"
)

// SelectProblemEdit is the typed patch applied at the select_problem
// checkpoint: it overrides which ranked candidate proceeds.
type SelectProblemEdit struct {
	ProblemID string `json:"problem_id"`
}

// ApproveProposalEdit is the typed patch applied at the approve_proposal
// checkpoint: every field present overrides the drafted proposal.
type ApproveProposalEdit struct {
	Title             string   `json:"title,omitempty"`
	Methodology       string   `json:"methodology,omitempty"`
	ExperimentalSteps []string `json:"experimental_steps,omitempty"`
	ExpectedOutcome   string   `json:"expected_outcome,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
}

// ReviewEvaluationEdit is the typed patch applied at the
// review_evaluation checkpoint: it overrides the computed verdict before
// synthesis runs.
type ReviewEvaluationEdit struct {
	Verdict     agents.Verdict `json:"verdict,omitempty"`
	Feasibility float64        `json:"feasibility,omitempty"`
}

// Params seeds the ranking node's candidate query.
type Params struct {
	Status *string `json:"status,omitempty"`
	Domain string  `json:"domain,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// State is the complete, explicit product type threading through every
// node boundary. Optional fields are explicit zero values, never absent
// keys, so a reviewer can see the whole run shape from the struct alone.
type State struct {
	RunID             RunID
	Status            Status
	CurrentNode       Node
	PendingCheckpoint CheckpointType // empty when no checkpoint is pending
	Outcome           Outcome
	FailureReason     string

	Params            Params
	RankedProblems    []agents.RankedProblem
	SelectedProblemID string
	Proposal          agents.ContinuationProposal
	Evaluation        agents.EvaluationResult
	Synthesis         agents.SynthesisReport

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the trimmed view returned by list(), omitting large payload
// fields (scripts, sandbox output) that a listing endpoint has no need for.
type Summary struct {
	RunID             RunID
	Status            Status
	CurrentNode       Node
	PendingCheckpoint CheckpointType
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (s State) summary() Summary {
	return Summary{
		RunID:             s.RunID,
		Status:            s.Status,
		CurrentNode:       s.CurrentNode,
		PendingCheckpoint: s.PendingCheckpoint,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}
