package workflow

import (
	"context"

	"github.com/scigraph/engine/internal/agents"
	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/eventbus"
	"github.com/scigraph/engine/internal/graph"
)

// advance runs state.CurrentNode and every subsequent node until it either
// reaches a required checkpoint, fails, or completes at NodeEnd. Every
// state-mutating step here is observable to the next before this function
// returns, per the DAG's in-run ordering guarantee.
func (e *Engine) advance(ctx context.Context, state State) (State, error) {
	for {
		if state.Status == StatusCancelled {
			return state, nil
		}

		switch state.CurrentNode {
		case NodeRanking:
			next, done, err := e.runRanking(ctx, state)
			if err != nil {
				return state, err
			}
			state = next
			if done {
				return state, nil
			}

		case NodeContinuation:
			next, done, err := e.runContinuation(ctx, state)
			if err != nil {
				return state, err
			}
			state = next
			if done {
				return state, nil
			}

		case NodeEvaluation:
			next, done, err := e.runEvaluation(ctx, state)
			if err != nil {
				return state, err
			}
			state = next
			if done {
				return state, nil
			}

		case NodeSynthesis:
			next, err := e.runSynthesis(ctx, state)
			if err != nil {
				return state, err
			}
			return next, nil

		case NodeEnd:
			return state, nil

		default:
			return e.fail(ctx, state, "unknown node: "+string(state.CurrentNode)), nil
		}
	}
}

func statusPtr(s *string) *graph.ProblemStatus {
	if s == nil {
		return nil
	}
	st := graph.ProblemStatus(*s)
	return &st
}

func (e *Engine) runRanking(ctx context.Context, state State) (State, bool, error) {
	e.emit(ctx, eventbus.KindStepStarted, state, nil)

	ranked, err := e.withCancel(ctx, state.RunID, func(ctx context.Context) (interface{}, error) {
		return e.ranker.Run(ctx, agents.RankingInput{
			Status: statusPtr(state.Params.Status),
			Domain: state.Params.Domain,
			Limit:  state.Params.Limit,
		})
	})
	if err != nil {
		return e.fail(ctx, state, err.Error()), true, nil
	}
	state.RankedProblems = ranked.([]agents.RankedProblem)
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindStepCompleted, state, map[string]interface{}{"candidate_count": len(state.RankedProblems)})

	if len(state.RankedProblems) == 0 {
		return e.fail(ctx, state, "no candidate problems available for ranking"), true, nil
	}

	state.SelectedProblemID = state.RankedProblems[0].ProblemID
	state.CurrentNode = NodeContinuation
	if e.checkpoints.SelectProblemRequired {
		return e.pause(ctx, state, CheckpointSelectProblem), true, nil
	}
	return state, false, nil
}

func (e *Engine) runContinuation(ctx context.Context, state State) (State, bool, error) {
	e.emit(ctx, eventbus.KindStepStarted, state, nil)

	proposal, err := e.withCancel(ctx, state.RunID, func(ctx context.Context) (interface{}, error) {
		return e.continuer.Run(ctx, state.SelectedProblemID)
	})
	if err != nil {
		return e.fail(ctx, state, err.Error()), true, nil
	}
	state.Proposal = proposal.(agents.ContinuationProposal)
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindStepCompleted, state, map[string]interface{}{"title": state.Proposal.Title})

	state.CurrentNode = NodeEvaluation
	if e.checkpoints.ApproveProposalRequired {
		return e.pause(ctx, state, CheckpointApproveProposal), true, nil
	}
	return state, false, nil
}

func (e *Engine) runEvaluation(ctx context.Context, state State) (State, bool, error) {
	e.emit(ctx, eventbus.KindStepStarted, state, nil)

	problem, found, err := e.repo.GetProblem(ctx, state.SelectedProblemID)
	if err != nil {
		return state, false, apperrors.Wrap(apperrors.Internal, "load selected problem", err)
	}
	if !found {
		return e.fail(ctx, state, "selected problem no longer exists: "+state.SelectedProblemID), true, nil
	}

	result, err := e.withCancel(ctx, state.RunID, func(ctx context.Context) (interface{}, error) {
		return e.evaluator.Run(ctx, problem, state.Proposal)
	})
	if err != nil {
		return e.fail(ctx, state, err.Error()), true, nil
	}
	state.Evaluation = result.(agents.EvaluationResult)
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindStepCompleted, state, map[string]interface{}{"verdict": string(state.Evaluation.Verdict)})

	state.CurrentNode = NodeSynthesis
	if e.checkpoints.ReviewEvaluationRequired {
		return e.pause(ctx, state, CheckpointReviewEvaluation), true, nil
	}
	return state, false, nil
}

func (e *Engine) runSynthesis(ctx context.Context, state State) (State, error) {
	e.emit(ctx, eventbus.KindStepStarted, state, nil)

	problem, found, err := e.repo.GetProblem(ctx, state.SelectedProblemID)
	if err != nil {
		return state, apperrors.Wrap(apperrors.Internal, "load selected problem", err)
	}
	if !found {
		return e.fail(ctx, state, "selected problem no longer exists: "+state.SelectedProblemID), nil
	}

	report, err := e.withCancel(ctx, state.RunID, func(ctx context.Context) (interface{}, error) {
		return e.synthesizer.Run(ctx, problem, state.Evaluation)
	})
	if err != nil {
		return e.fail(ctx, state, err.Error()), nil
	}
	state.Synthesis = report.(agents.SynthesisReport)
	state.Status = StatusCompleted
	state.Outcome = OutcomeSynthesized
	state.CurrentNode = NodeEnd
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindStepCompleted, state, nil)
	e.emit(ctx, eventbus.KindWorkflowCompleted, state, map[string]interface{}{"outcome": string(OutcomeSynthesized)})
	return state, nil
}

// withCancel registers a cancel func for runID for the duration of fn.
// Cancel waits on the per-run lock held while fn runs, so by the time it
// looks the func up, fn has returned and the entry is gone.
func (e *Engine) withCancel(ctx context.Context, runID RunID, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancels.Store(runID, cancel)
	defer func() {
		e.cancels.Delete(runID)
		cancel()
	}()
	return fn(runCtx)
}

func (e *Engine) pause(ctx context.Context, state State, checkpoint CheckpointType) State {
	state.Status = StatusPaused
	state.PendingCheckpoint = checkpoint
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindCheckpointReached, state, map[string]interface{}{"checkpoint": string(checkpoint)})
	return state
}

func (e *Engine) fail(ctx context.Context, state State, reason string) State {
	state.Status = StatusFailed
	state.FailureReason = reason
	state.CurrentNode = NodeEnd
	state.PendingCheckpoint = ""
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindWorkflowFailed, state, map[string]interface{}{"reason": reason})
	return state
}
