package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scigraph/engine/internal/agents"
	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/config"
	"github.com/scigraph/engine/internal/eventbus"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/logging"
)

// Engine drives runs through the seven-node DAG. Any number of runs may
// be in flight; each run_id is serialised by its own lock, and different
// run_ids proceed fully in parallel.
type Engine struct {
	ranker      *agents.Ranker
	continuer   *agents.Continuer
	evaluator   *agents.Evaluator
	synthesizer *agents.Synthesizer

	repo  graph.Repository
	store Store
	bus   *eventbus.Bus
	log   *logging.Logger

	checkpoints config.CheckpointConfig

	runLocks sync.Map // RunID -> *sync.Mutex
	cancels  sync.Map // RunID -> context.CancelFunc, present only while a node is executing

	now func() time.Time
}

// Deps bundles the Engine's constructor dependencies.
type Deps struct {
	Ranker      *agents.Ranker
	Continuer   *agents.Continuer
	Evaluator   *agents.Evaluator
	Synthesizer *agents.Synthesizer
	Repo        graph.Repository
	Store       Store
	Bus         *eventbus.Bus
	Log         *logging.Logger
	Checkpoints config.CheckpointConfig
}

// New builds an Engine from deps.
func New(deps Deps) *Engine {
	log := deps.Log
	if log == nil {
		log = logging.NewDefault("workflow")
	}
	return &Engine{
		ranker:      deps.Ranker,
		continuer:   deps.Continuer,
		evaluator:   deps.Evaluator,
		synthesizer: deps.Synthesizer,
		repo:        deps.Repo,
		store:       deps.Store,
		bus:         deps.Bus,
		log:         log,
		checkpoints: deps.Checkpoints,
		now:         time.Now,
	}
}

func (e *Engine) lockFor(id RunID) *sync.Mutex {
	l, _ := e.runLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (e *Engine) emit(ctx context.Context, kind eventbus.Kind, state State, data map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(ctx, eventbus.Event{
		Kind: kind, RunID: string(state.RunID), Node: string(state.CurrentNode),
		Data: data, Timestamp: e.now(),
	})
}

// Start creates a new run, advances it through ranking, and pauses at the
// first checkpoint it reaches (or completes the run outright if every
// checkpoint in its path is configured as not required).
func (e *Engine) Start(ctx context.Context, params Params) (RunID, error) {
	runID := RunID("run-" + uuid.NewString())
	now := e.now()
	state := State{
		RunID: runID, Status: StatusRunning, CurrentNode: NodeRanking,
		Params: params, CreatedAt: now, UpdatedAt: now,
	}

	mu := e.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	state, err := e.advance(ctx, state)
	if err != nil {
		return runID, err
	}
	return runID, e.store.Save(ctx, state)
}

// Resume loads run_id's state, applies decision at checkpointType, and
// advances to the next checkpoint or END.
func (e *Engine) Resume(ctx context.Context, runID RunID, checkpointType CheckpointType, decision Decision, feedback string, editedData json.RawMessage) (State, error) {
	mu := e.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	state, found, err := e.store.Load(ctx, runID)
	if err != nil {
		return State{}, apperrors.Wrap(apperrors.Internal, "load run state", err)
	}
	if !found {
		return State{}, apperrors.New(apperrors.NotFound, "run not found: "+string(runID))
	}
	if state.Status != StatusPaused && state.Status != StatusRunning {
		return State{}, apperrors.New(apperrors.Validation, "run is not awaiting a checkpoint decision")
	}
	if state.PendingCheckpoint != checkpointType {
		return State{}, apperrors.New(apperrors.Validation, "checkpoint mismatch: run is awaiting "+string(state.PendingCheckpoint))
	}

	e.emit(ctx, eventbus.KindCheckpointResolved, state, map[string]interface{}{"decision": string(decision), "feedback": feedback})

	if decision == DecisionReject {
		state.Status = StatusCompleted
		state.Outcome = OutcomeRejected
		state.CurrentNode = NodeEnd
		state.PendingCheckpoint = ""
		state.UpdatedAt = e.now()
		e.emit(ctx, eventbus.KindWorkflowCompleted, state, map[string]interface{}{"outcome": string(OutcomeRejected)})
		return state, e.store.Save(ctx, state)
	}

	if decision == DecisionEdit {
		if err := applyEdit(&state, checkpointType, editedData); err != nil {
			return State{}, apperrors.Wrap(apperrors.Validation, "apply checkpoint edit", err)
		}
	}

	state.PendingCheckpoint = ""
	state.Status = StatusRunning
	state, err = e.advance(ctx, state)
	if err != nil {
		return State{}, err
	}
	return state, e.store.Save(ctx, state)
}

// GetState returns a run's full current state.
func (e *Engine) GetState(ctx context.Context, runID RunID) (State, bool, error) {
	return e.store.Load(ctx, runID)
}

// List returns a trimmed summary of every known run.
func (e *Engine) List(ctx context.Context) ([]Summary, error) {
	states, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(states))
	for _, s := range states {
		summaries = append(summaries, s.summary())
	}
	return summaries, nil
}

// Cancel marks run_id cancelled. It is idempotent: cancelling an
// already-terminal run is a no-op. Cancel takes the per-run lock that
// Start and Resume hold while nodes execute, so it waits for an executing
// node to finish and does not interrupt it.
func (e *Engine) Cancel(ctx context.Context, runID RunID) error {
	mu := e.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	state, found, err := e.store.Load(ctx, runID)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "load run state", err)
	}
	if !found {
		return apperrors.New(apperrors.NotFound, "run not found: "+string(runID))
	}
	if isTerminal(state.Status) {
		return nil
	}

	if cancel, ok := e.cancels.Load(runID); ok {
		cancel.(context.CancelFunc)()
	}

	state.Status = StatusCancelled
	state.CurrentNode = NodeEnd
	state.PendingCheckpoint = ""
	state.UpdatedAt = e.now()
	e.emit(ctx, eventbus.KindWorkflowCancelled, state, nil)
	return e.store.Save(ctx, state)
}

func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SweepStale cancels every non-terminal run whose state has not been
// updated in at least staleAfter, e.g. one whose process died mid-node
// without reaching a checkpoint or a terminal status. Intended to run
// on a schedule from a janitor process separate from the HTTP server.
func (e *Engine) SweepStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	summaries, err := e.List(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Internal, "list runs for stale sweep", err)
	}

	cutoff := e.now().Add(-staleAfter)
	swept := 0
	for _, s := range summaries {
		if isTerminal(s.Status) || s.UpdatedAt.After(cutoff) {
			continue
		}
		if err := e.Cancel(ctx, s.RunID); err != nil {
			e.log.WithField("run_id", s.RunID).WithField("error", err).Warn("stale run sweep: cancel failed")
			continue
		}
		swept++
	}
	return swept, nil
}

// applyEdit type-switches on checkpointType to apply a typed patch, per
// the closed-set dispatch the workflow state model requires: no
// reflection, no string-keyed field lookup.
func applyEdit(state *State, checkpointType CheckpointType, editedData json.RawMessage) error {
	if len(editedData) == 0 {
		return nil
	}
	switch checkpointType {
	case CheckpointSelectProblem:
		var edit SelectProblemEdit
		if err := json.Unmarshal(editedData, &edit); err != nil {
			return err
		}
		if edit.ProblemID != "" {
			state.SelectedProblemID = edit.ProblemID
		}
	case CheckpointApproveProposal:
		var edit ApproveProposalEdit
		if err := json.Unmarshal(editedData, &edit); err != nil {
			return err
		}
		if edit.Title != "" {
			state.Proposal.Title = edit.Title
		}
		if edit.Methodology != "" {
			state.Proposal.Methodology = edit.Methodology
		}
		if len(edit.ExperimentalSteps) > 0 {
			state.Proposal.ExperimentalSteps = edit.ExperimentalSteps
		}
		if edit.ExpectedOutcome != "" {
			state.Proposal.ExpectedOutcome = edit.ExpectedOutcome
		}
		if edit.Confidence != 0 {
			state.Proposal.Confidence = edit.Confidence
		}
	case CheckpointReviewEvaluation:
		var edit ReviewEvaluationEdit
		if err := json.Unmarshal(editedData, &edit); err != nil {
			return err
		}
		if edit.Verdict != "" {
			state.Evaluation.Verdict = edit.Verdict
		}
		if edit.Feasibility != 0 {
			state.Evaluation.Feasibility = edit.Feasibility
		}
	}
	return nil
}
