// Package llmdebate implements the Maker/Hater/Arbiter consensus
// sub-machine and the MEDIUM-tier Evaluator over an llm.Client,
// concrete collaborators for the Matching Workflow's LOW-confidence and
// MEDIUM-confidence branches.
package llmdebate

import (
	"context"
	"fmt"
	"strings"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/llm"
	"github.com/scigraph/engine/internal/match"
	workflow "github.com/scigraph/engine/internal/match/workflow"
)

// Stance is which side of the Maker/Hater debate a Debater argues.
type Stance string

const (
	StanceMaker Stance = "maker"
	StanceHater Stance = "hater"
)

// Debater argues one stance of the consensus sub-machine over an
// llm.Client.
type Debater struct {
	llm    llm.Client
	stance Stance
}

// NewMaker builds the Debater arguing the candidate is the right match.
func NewMaker(client llm.Client) *Debater { return &Debater{llm: client, stance: StanceMaker} }

// NewHater builds the Debater arguing the candidate is the wrong match.
func NewHater(client llm.Client) *Debater { return &Debater{llm: client, stance: StanceHater} }

// Argue produces this Debater's stance's argument for one consensus round.
func (d *Debater) Argue(ctx context.Context, mention graph.ProblemMention, candidate match.Candidate, priorRounds []workflow.Round) (string, error) {
	position := "this mention IS an instance of the candidate concept"
	if d.stance == StanceHater {
		position = "this mention is NOT an instance of the candidate concept"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Argue that %s.\n\nMention: %q\nCandidate concept: %q (similarity=%.3f)\n",
		position, mention.Statement, candidate.Concept.CanonicalStatement, candidate.Similarity)
	for i, round := range priorRounds {
		fmt.Fprintf(&b, "\nRound %d maker argument: %s\nRound %d hater argument: %s\n", i+1, round.MakerArgument, i+1, round.HaterArgument)
	}
	b.WriteString("\nRespond with a single paragraph, no preamble.")

	argument, err := d.llm.Complete(ctx, b.String())
	if err != nil {
		return "", apperrors.Wrap(apperrors.LLMError, string(d.stance)+" debate argument", err)
	}
	return argument, nil
}

// Arbiter judges a completed Maker/Hater round over an llm.Client.
type Arbiter struct {
	llm llm.Client
}

// NewArbiter builds an Arbiter.
func NewArbiter(client llm.Client) *Arbiter { return &Arbiter{llm: client} }

const arbiterSchema = `{"type":"object","properties":{"decision":{"type":"string","enum":["link","create_new"]},"confidence":{"type":"number"}},"required":["decision","confidence"]}`

// Decide judges one round's maker/hater arguments.
func (a *Arbiter) Decide(ctx context.Context, mention graph.ProblemMention, candidate match.Candidate, makerArg, haterArg string) (workflow.ArbiterDecision, error) {
	prompt := fmt.Sprintf(
		"Judge this debate over whether a problem mention is an instance of a candidate concept. Respond with JSON matching the schema.\n\nMention: %q\nCandidate: %q\n\nMaker argument (for linking): %s\n\nHater argument (against linking): %s\n",
		mention.Statement, candidate.Concept.CanonicalStatement, makerArg, haterArg)

	var resp workflow.ArbiterDecision
	if err := a.llm.Structured(ctx, prompt, arbiterSchema, &resp); err != nil {
		return workflow.ArbiterDecision{}, apperrors.Wrap(apperrors.LLMError, "arbiter decision", err)
	}
	if resp.Decision != "link" && resp.Decision != "create_new" {
		return workflow.ArbiterDecision{}, apperrors.New(apperrors.LLMError, "arbiter returned an unrecognized decision: "+resp.Decision)
	}
	return resp, nil
}

// Evaluator reviews a single MEDIUM-tier candidate over an llm.Client.
type Evaluator struct {
	llm llm.Client
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(client llm.Client) *Evaluator { return &Evaluator{llm: client} }

const evaluatorSchema = `{"type":"object","properties":{"verdict":{"type":"string","enum":["approve","reject","escalate"]}},"required":["verdict"]}`

type evaluatorResponse struct {
	Verdict workflow.EvaluatorVerdict `json:"verdict"`
}

// Review asks the LLM whether mention should be linked to candidate,
// treated as a distinct concept, or escalated to human review.
func (e *Evaluator) Review(ctx context.Context, mention graph.ProblemMention, candidate match.Candidate) (workflow.EvaluatorVerdict, error) {
	prompt := fmt.Sprintf(
		"A problem mention matched a candidate concept with medium confidence (similarity=%.3f). "+
			"Decide whether to approve the link, reject it in favor of a new concept, or escalate to human review. "+
			"Respond with JSON matching the schema.\n\nMention: %q\nCandidate concept: %q\n",
		candidate.Similarity, mention.Statement, candidate.Concept.CanonicalStatement)

	var resp evaluatorResponse
	if err := e.llm.Structured(ctx, prompt, evaluatorSchema, &resp); err != nil {
		return "", apperrors.Wrap(apperrors.LLMError, "medium-tier evaluation", err)
	}
	switch resp.Verdict {
	case workflow.EvaluatorApprove, workflow.EvaluatorReject, workflow.EvaluatorEscalate:
		return resp.Verdict, nil
	default:
		return "", apperrors.New(apperrors.LLMError, "evaluator returned an unrecognized verdict: "+string(resp.Verdict))
	}
}
