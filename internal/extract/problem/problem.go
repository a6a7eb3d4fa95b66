// Package problem extracts typed research-problem candidates from a
// paper section via a structured LLM call, applying the confidence,
// length, and quoted-evidence filters the matching pipeline depends on.
package problem

import (
	"context"
	"sort"
	"strings"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/extract/section"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/llm"
)

// ExtractedProblem is one candidate research problem pulled from a
// section, shaped to convert directly into a graph.Problem once a paper
// and section context are attached.
type ExtractedProblem struct {
	Statement   string
	Domain      string
	Assumptions []string
	Constraints []graph.Constraint
	Datasets    []string
	Metrics     []string
	Baselines   []string
	QuotedText  string
	Confidence  float64
}

// Result is the outcome of extracting from a single section.
type Result struct {
	Problems       []ExtractedProblem
	SectionType    section.Type
	ExtractionNote string
}

// Config tunes the extraction and retry behavior.
type Config struct {
	Model                   string
	MinConfidence           float64
	MaxProblemsPerSection   int
	MaxSectionPriority      int
	SkipLowPrioritySections bool
	MaxRetries              int
	RetryOnEmpty            bool
}

// DefaultConfig mirrors the thresholds the extraction pipeline ships with.
func DefaultConfig() Config {
	return Config{
		Model:                   "default",
		MinConfidence:           0.5,
		MaxProblemsPerSection:   10,
		MaxSectionPriority:      20,
		SkipLowPrioritySections: true,
		MaxRetries:              3,
		RetryOnEmpty:            true,
	}
}

// Extractor produces ExtractedProblem records from paper sections.
type Extractor struct {
	llm llm.Client
	cfg Config
}

// New builds an Extractor over client with cfg.
func New(client llm.Client, cfg Config) *Extractor {
	return &Extractor{llm: client, cfg: cfg}
}

const extractionSchema = `{"type":"object","properties":{"problems":{"type":"array","items":{"type":"object","properties":{` +
	`"statement":{"type":"string"},"domain":{"type":"string"},` +
	`"assumptions":{"type":"array","items":{"type":"string"}},` +
	`"constraints":{"type":"array","items":{"type":"object","properties":{"text":{"type":"string"},"type":{"type":"string"},"confidence":{"type":"number"}},"required":["text","type"]}},` +
	`"datasets":{"type":"array","items":{"type":"string"}},` +
	`"metrics":{"type":"array","items":{"type":"string"}},` +
	`"baselines":{"type":"array","items":{"type":"string"}},` +
	`"quoted_text":{"type":"string"},"confidence":{"type":"number"}},` +
	`"required":["statement","quoted_text","confidence"]}},` +
	`"extraction_notes":{"type":"string"}},"required":["problems"]}`

type llmConstraint struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

type llmProblem struct {
	Statement   string          `json:"statement"`
	Domain      string          `json:"domain"`
	Assumptions []string        `json:"assumptions"`
	Constraints []llmConstraint `json:"constraints"`
	Datasets    []string        `json:"datasets"`
	Metrics     []string        `json:"metrics"`
	Baselines   []string        `json:"baselines"`
	QuotedText  string          `json:"quoted_text"`
	Confidence  float64         `json:"confidence"`
}

type extractionResponse struct {
	Problems        []llmProblem `json:"problems"`
	ExtractionNotes string       `json:"extraction_notes"`
}

// ExtractFromSection runs the structured LLM call for sec, retrying up
// to cfg.MaxRetries times on transport failure and, if cfg.RetryOnEmpty,
// once more per remaining attempt when the first response yields no
// problems after filtering.
func (e *Extractor) ExtractFromSection(ctx context.Context, sec section.Section, paperTitle string, authors []string) (Result, error) {
	if e.cfg.SkipLowPrioritySections && sec.Priority > e.cfg.MaxSectionPriority {
		return Result{SectionType: sec.Type, ExtractionNote: "skipped due to low priority"}, nil
	}

	prompt := buildPrompt(sec, paperTitle, authors)
	maxAttempts := e.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		var resp extractionResponse
		if err := e.llm.Structured(ctx, prompt, extractionSchema, &resp); err != nil {
			lastErr = apperrors.Wrap(apperrors.LLMError, "extract problems from section", err)
			if attempt < maxAttempts-1 {
				continue
			}
			return Result{}, lastErr
		}

		result := e.filter(sec, resp)
		if e.cfg.RetryOnEmpty && len(result.Problems) == 0 && attempt < maxAttempts-1 {
			continue
		}
		return result, nil
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	return Result{SectionType: sec.Type, ExtractionNote: "extraction failed after all retries"}, nil
}

// filter applies the confidence, statement-length, and verbatim-quote
// invariants, then caps the survivors to MaxProblemsPerSection by
// confidence.
func (e *Extractor) filter(sec section.Section, resp extractionResponse) Result {
	out := make([]ExtractedProblem, 0, len(resp.Problems))
	for _, p := range resp.Problems {
		if p.Confidence < e.cfg.MinConfidence {
			continue
		}
		if len(p.Statement) < 20 {
			continue
		}
		if p.QuotedText == "" || !strings.Contains(sec.Content, p.QuotedText) {
			continue
		}
		out = append(out, ExtractedProblem{
			Statement:   p.Statement,
			Domain:      p.Domain,
			Assumptions: p.Assumptions,
			Constraints: toConstraints(p.Constraints),
			Datasets:    p.Datasets,
			Metrics:     p.Metrics,
			Baselines:   p.Baselines,
			QuotedText:  p.QuotedText,
			Confidence:  p.Confidence,
		})
	}

	max := e.cfg.MaxProblemsPerSection
	if max > 0 && len(out) > max {
		sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
		out = out[:max]
	}

	return Result{Problems: out, SectionType: sec.Type, ExtractionNote: resp.ExtractionNotes}
}

func toConstraints(in []llmConstraint) []graph.Constraint {
	if len(in) == 0 {
		return nil
	}
	out := make([]graph.Constraint, 0, len(in))
	for _, c := range in {
		out = append(out, graph.Constraint{
			Text:       c.Text,
			Type:       normalizeConstraintType(c.Type),
			Confidence: c.Confidence,
		})
	}
	return out
}

func normalizeConstraintType(raw string) graph.ConstraintType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(graph.ConstraintComputational), "compute", "gpu", "memory":
		return graph.ConstraintComputational
	case string(graph.ConstraintData), "dataset", "annotation":
		return graph.ConstraintData
	case string(graph.ConstraintTheoretical), "theory":
		return graph.ConstraintTheoretical
	default:
		return graph.ConstraintMethodological
	}
}
