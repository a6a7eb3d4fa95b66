package agents

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/sandbox"
)

// Evaluator turns a continuation proposal into an executed, judged
// experiment.
type Evaluator struct {
	deps Deps
}

// NewEvaluator builds an Evaluator from deps.
func NewEvaluator(deps Deps) *Evaluator {
	return &Evaluator{deps: deps}
}

// Run asks the LLM for an evaluation script, strips its fence markers,
// executes it in the sandbox, and derives a verdict and feasibility score
// from the fixed decision table: timeout beats sandbox failure beats
// metric comparison against baseline.
func (e *Evaluator) Run(ctx context.Context, problem graph.Problem, proposal ContinuationProposal) (EvaluationResult, error) {
	if err := ctxCheck(ctx); err != nil {
		return EvaluationResult{}, err
	}

	rawScript, err := e.deps.LLM.Complete(ctx, buildScriptPrompt(problem, proposal))
	if err != nil {
		return EvaluationResult{}, apperrors.Wrap(apperrors.LLMError, "generate evaluation script", err)
	}
	script := stripFenceMarkers(rawScript)

	sandboxResult, err := e.deps.Sandbox.Run(ctx, script)
	if err != nil {
		return EvaluationResult{}, apperrors.Wrap(apperrors.SandboxFailure, "run evaluation script", err)
	}
	metrics := sandboxResult.ParseMetrics()

	verdict, feasibility := classify(sandboxResult, metrics, problem.Baselines)

	commentary, err := e.deps.LLM.Complete(ctx, buildInterpretationPrompt(metrics, problem.Baselines))
	if err != nil {
		commentary = ""
	}

	return EvaluationResult{
		Script:      script,
		SandboxOut:  sandboxResult,
		Metrics:     metrics,
		Verdict:     verdict,
		Feasibility: feasibility,
		Commentary:  commentary,
	}, nil
}

// classify implements the fixed condition table: sandbox timeout is
// checked first, then a non-zero exit code (sandbox failure), then
// whether any metric improved over a same-named parsed baseline value;
// otherwise inconclusive.
func classify(result sandbox.Result, metrics map[string]interface{}, baselines []string) (Verdict, float64) {
	if result.TimedOut {
		return VerdictNotViable, 0.1
	}
	if result.ExitCode != 0 {
		return VerdictInconclusive, 0.3
	}
	if anyMetricImproved(metrics, baselines) {
		return VerdictPromising, 0.8
	}
	return VerdictInconclusive, 0.5
}

// anyMetricImproved parses each "name=value" baseline entry and reports
// whether the same-named produced metric exceeds it.
func anyMetricImproved(metrics map[string]interface{}, baselines []string) bool {
	for _, b := range baselines {
		parts := strings.SplitN(b, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		baseline, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		produced, ok := metrics[name]
		if !ok {
			continue
		}
		value, ok := produced.(float64)
		if !ok {
			continue
		}
		if value > baseline {
			return true
		}
	}
	return false
}

func buildScriptPrompt(p graph.Problem, proposal ContinuationProposal) string {
	encoded, _ := json.Marshal(struct {
		Problem   string               `json:"problem_statement"`
		Metrics   []string             `json:"metrics"`
		Baselines []string             `json:"baselines"`
		Proposal  ContinuationProposal `json:"proposal"`
	}{p.Statement, p.Metrics, p.Baselines, proposal})
	return "Write a self-contained evaluation script for the following proposal. The script must print a single-line JSON object of computed metrics as its last stdout line. Respond with code only.\n\n" + string(encoded)
}

func buildInterpretationPrompt(metrics map[string]interface{}, baselines []string) string {
	encoded, _ := json.Marshal(struct {
		Metrics   map[string]interface{} `json:"metrics"`
		Baselines []string                `json:"baselines"`
	}{metrics, baselines})
	return "Interpret the following evaluation metrics against the stated baselines in one paragraph.\n\n" + string(encoded)
}

// stripFenceMarkers removes a leading/trailing markdown code fence, with or
// without a language tag, from an LLM completion.
func stripFenceMarkers(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
