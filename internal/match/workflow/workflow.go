// Package workflow drives the Matching Workflow state machine: given a
// match.Decision, it resolves a mention to either an existing concept, a
// brand new one, or the human review queue, escalating through an
// Evaluator for MEDIUM and a Maker/Hater/Arbiter debate for LOW.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/match"
)

// MaxRounds bounds the Maker/Hater/Arbiter consensus sub-machine.
const MaxRounds = 3

// ArbiterConfidenceThreshold is the minimum confidence an Arbiter
// decision needs to finalise the consensus sub-machine.
const ArbiterConfidenceThreshold = 0.7

// EvaluatorVerdict is the Evaluator agent's terminal decision for MEDIUM.
type EvaluatorVerdict string

const (
	EvaluatorApprove  EvaluatorVerdict = "approve"  // link
	EvaluatorReject   EvaluatorVerdict = "reject"   // create_new
	EvaluatorEscalate EvaluatorVerdict = "escalate" // queue
)

// ArbiterDecision is one round's outcome in the consensus sub-machine.
type ArbiterDecision struct {
	Decision   string // "link" or "create_new"
	Confidence float64
}

// Debater produces one side's argument for a consensus round.
type Debater interface {
	Argue(ctx context.Context, mention graph.ProblemMention, candidate match.Candidate, priorRounds []Round) (string, error)
}

// Arbiter judges a completed Maker/Hater round.
type Arbiter interface {
	Decide(ctx context.Context, mention graph.ProblemMention, candidate match.Candidate, makerArg, haterArg string) (ArbiterDecision, error)
}

// Evaluator reviews a single MEDIUM-tier candidate.
type Evaluator interface {
	Review(ctx context.Context, mention graph.ProblemMention, candidate match.Candidate) (EvaluatorVerdict, error)
}

// ReviewQueue is the human review queue a "queued" outcome is handed off
// to. Satisfied by *review.Queue; kept as a narrow interface here so this
// package doesn't need to import internal/review.
type ReviewQueue interface {
	Enqueue(ctx context.Context, mentionID, domain string, candidates []graph.CandidateConcept, priority graph.ReviewPriority, reason graph.EscalationReason) (graph.PendingReview, error)
}

// Round records one iteration of the consensus sub-machine.
type Round struct {
	MakerArgument string
	HaterArgument string
	Decision      ArbiterDecision
}

// Trace is emitted on every state transition for the audit log.
type Trace struct {
	TraceID    string
	RunID      string
	Step       string
	DurationMS int64
	Decision   string
	Confidence float64
}

// Outcome is the terminal result of running the workflow for one mention.
type Outcome struct {
	MentionID        string
	Decision         string // "link", "create_new", or "queued"
	ConceptID        string // set when Decision == "link"
	EscalationReason graph.EscalationReason
	Rounds           []Round
	Traces           []Trace
}

// Engine wires the matcher and the sub-agents together.
type Engine struct {
	matcher     *match.Matcher
	repo        graph.Repository
	maker       Debater
	hater       Debater
	arbiter     Arbiter
	evaluator   Evaluator
	reviewQueue ReviewQueue
	now         func() time.Time
}

// New builds an Engine. Any of maker/hater/arbiter/evaluator may be nil;
// a nil dependency used by a reached tier produces an escalation to the
// review queue instead of panicking. reviewQueue may also be nil, in
// which case a "queued" outcome only marks the mention pending on the
// graph without indexing it for a human reviewer.
func New(matcher *match.Matcher, repo graph.Repository, maker, hater Debater, arbiter Arbiter, evaluator Evaluator, reviewQueue ReviewQueue) *Engine {
	return &Engine{matcher: matcher, repo: repo, maker: maker, hater: hater, arbiter: arbiter, evaluator: evaluator, reviewQueue: reviewQueue, now: time.Now}
}

// Run resolves mention through classify -> {high_link | medium_evaluator |
// low_consensus | reject_create} -> finalize.
func (e *Engine) Run(ctx context.Context, runID string, mention graph.ProblemMention) (Outcome, error) {
	out := Outcome{MentionID: mention.ID}

	decision, err := e.trace(&out, runID, "classify", func() (match.Decision, error) {
		return e.matcher.Classify(ctx, mention)
	})
	if err != nil {
		return out, err
	}

	switch decision.Tier {
	case match.TierHigh:
		out.Decision = "link"
		out.ConceptID = decision.TopConceptID
	case match.TierMedium:
		out, err = e.runMediumEvaluator(ctx, runID, mention, decision, out)
	case match.TierLow:
		out, err = e.runLowConsensus(ctx, runID, mention, decision, out)
	default: // TierRejected
		out.Decision = "create_new"
	}
	if err != nil {
		return out, err
	}

	e.finalize(ctx, &out, runID, mention, decision.Candidates)
	return out, nil
}

func (e *Engine) runMediumEvaluator(ctx context.Context, runID string, mention graph.ProblemMention, decision match.Decision, out Outcome) (Outcome, error) {
	if e.evaluator == nil {
		out.Decision = "queued"
		out.EscalationReason = graph.EscalationEvaluatorEscalate
		return out, nil
	}
	top := decision.Candidates[0]
	start := time.Now()
	verdict, err := e.evaluator.Review(ctx, mention, top)
	out.Traces = append(out.Traces, Trace{
		TraceID: uuid.NewString(), RunID: runID, Step: "medium_evaluator",
		DurationMS: time.Since(start).Milliseconds(), Decision: string(verdict),
	})
	if err != nil {
		return out, err
	}
	switch verdict {
	case EvaluatorApprove:
		out.Decision = "link"
		out.ConceptID = top.Concept.ID
	case EvaluatorReject:
		out.Decision = "create_new"
	default:
		out.Decision = "queued"
		out.EscalationReason = graph.EscalationEvaluatorEscalate
	}
	return out, nil
}

func (e *Engine) runLowConsensus(ctx context.Context, runID string, mention graph.ProblemMention, decision match.Decision, out Outcome) (Outcome, error) {
	if e.maker == nil || e.hater == nil || e.arbiter == nil {
		out.Decision = "queued"
		out.EscalationReason = graph.EscalationConsensusNotReached
		return out, nil
	}

	top := decision.Candidates[0]
	for round := 0; round < MaxRounds; round++ {
		start := time.Now()

		makerArg, err := e.maker.Argue(ctx, mention, top, out.Rounds)
		if err != nil {
			return out, err
		}
		haterArg, err := e.hater.Argue(ctx, mention, top, out.Rounds)
		if err != nil {
			return out, err
		}
		arbDecision, err := e.arbiter.Decide(ctx, mention, top, makerArg, haterArg)
		if err != nil {
			return out, err
		}

		r := Round{MakerArgument: makerArg, HaterArgument: haterArg, Decision: arbDecision}
		out.Rounds = append(out.Rounds, r)
		out.Traces = append(out.Traces, Trace{
			TraceID: uuid.NewString(), RunID: runID, Step: fmt.Sprintf("low_consensus_round_%d", round+1),
			DurationMS: time.Since(start).Milliseconds(), Decision: arbDecision.Decision, Confidence: arbDecision.Confidence,
		})

		if arbDecision.Confidence >= ArbiterConfidenceThreshold {
			if arbDecision.Decision == "link" {
				out.Decision = "link"
				out.ConceptID = top.Concept.ID
			} else {
				out.Decision = "create_new"
			}
			return out, nil
		}
	}

	out.Decision = "queued"
	out.EscalationReason = graph.EscalationConsensusNotReached
	return out, nil
}

// finalize is the only place that writes the outcome to the graph: an
// auto-link edge, a promoted concept, or a PendingReview entry.
func (e *Engine) finalize(ctx context.Context, out *Outcome, runID string, mention graph.ProblemMention, candidates []match.Candidate) {
	start := time.Now()
	var err error

	switch out.Decision {
	case "link":
		err = e.repo.SetMentionConcept(ctx, mention.ID, out.ConceptID)
	case "create_new":
		concept := graph.ProblemConcept{
			ID:                 "concept-" + uuid.NewString(),
			CanonicalStatement: mention.Statement,
			Domain:             mention.Domain,
			Embedding:          mention.Embedding,
			Status:             graph.ConceptActive,
		}
		if err = e.repo.CreateConcept(ctx, concept); err == nil {
			out.ConceptID = concept.ID
			err = e.repo.SetMentionConcept(ctx, mention.ID, concept.ID)
		}
	case "queued":
		err = e.repo.SetMentionReviewStatus(ctx, mention.ID, graph.ReviewPending)
		if err == nil && e.reviewQueue != nil {
			_, err = e.reviewQueue.Enqueue(ctx, mention.ID, mention.Domain, suggestedConcepts(candidates), graph.PriorityNormal, out.EscalationReason)
		}
	}

	decision := out.Decision
	if err != nil {
		decision = "error"
	}
	out.Traces = append(out.Traces, Trace{
		TraceID: uuid.NewString(), RunID: runID, Step: "finalize",
		DurationMS: time.Since(start).Milliseconds(), Decision: decision,
	})
}

func (e *Engine) trace(out *Outcome, runID, step string, run func() (match.Decision, error)) (match.Decision, error) {
	start := time.Now()
	decision, err := run()
	dec, conf := "", 0.0
	if err == nil {
		dec = string(decision.Tier)
		conf = topScore(decision)
	}
	out.Traces = append(out.Traces, Trace{
		TraceID: uuid.NewString(), RunID: runID, Step: step,
		DurationMS: time.Since(start).Milliseconds(), Decision: dec, Confidence: conf,
	})
	return decision, err
}

func topScore(d match.Decision) float64 {
	if len(d.Candidates) == 0 {
		return 0
	}
	return d.Candidates[0].FinalScore
}

// suggestedConcepts projects the matcher's ranked candidates into the
// trimmed shape a PendingReview offers a reviewer.
func suggestedConcepts(candidates []match.Candidate) []graph.CandidateConcept {
	out := make([]graph.CandidateConcept, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, graph.CandidateConcept{
			ConceptID:  c.Concept.ID,
			Similarity: c.Similarity,
			FinalScore: c.FinalScore,
		})
	}
	return out
}
