package problem

import (
	"fmt"
	"strings"

	"github.com/scigraph/engine/internal/extract/section"
)

const systemPrompt = `You are an expert research scientist specialized in extracting structured information from academic papers.

Identify research problems, limitations, and open questions from the given paper text. For each problem, extract a clear statement, its domain, underlying assumptions, practical constraints, relevant datasets, evaluation metrics, and baseline methods where present.

Guidelines:
- Focus on ACTIONABLE research problems that could be worked on.
- Prioritize problems EXPLICIT in the text over inferred ones.
- Include the exact quoted text that supports each problem.
- Assign confidence scores based on how clearly the problem is stated.
- A section may contain zero, one, or multiple distinct problems.
- Do NOT hallucinate problems that are not supported by the text.`

var sectionPrompts = map[section.Type]string{
	section.Limitations: `Extract research problems from the LIMITATIONS section below.

This section typically contains explicit acknowledgments of weaknesses, scope limits, assumptions that may not hold, and areas where the method underperforms. Frame each limitation as an open problem future research could address.`,
	section.FutureWork: `Extract research problems from the FUTURE WORK section below.

This section typically states proposed extensions, open questions the authors want investigated, and new directions enabled by this work. These are usually high-quality problem statements since authors explicitly identify them as open.`,
	section.Discussion: `Extract research problems from the DISCUSSION section below.

Look for analysis of where the method fails, comparison gaps with other approaches, theoretical questions raised by the results, and practical deployment challenges.`,
	section.Conclusion: `Extract research problems from the CONCLUSION section below.

Conclusions are typically summaries, so problems may be stated briefly; extract what is mentioned.`,
	section.Introduction: `Extract research problems from the INTRODUCTION section below.

Introductions typically frame the main problem the paper addresses and gaps in existing approaches. Focus on problems that remain open after this paper's own contribution.`,
}

const defaultSectionPrompt = `Extract research problems from the %s section below.

Read the text carefully and identify any research problems, limitations, or open questions explicitly stated or clearly implied.`

// buildPrompt formats the system+user prompt for sec, falling back to a
// generic template for section types without a dedicated one.
func buildPrompt(sec section.Section, paperTitle string, authors []string) string {
	template, ok := sectionPrompts[sec.Type]
	if !ok {
		template = fmt.Sprintf(defaultSectionPrompt, strings.ToUpper(string(sec.Type)))
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	b.WriteString(template)
	b.WriteString("\n\nPaper Title: ")
	b.WriteString(paperTitle)
	if len(authors) > 0 {
		b.WriteString("\nAuthors: ")
		b.WriteString(strings.Join(authors, ", "))
	}
	b.WriteString("\n\n---\n")
	b.WriteString(sec.Title)
	b.WriteString(" SECTION TEXT:\n")
	b.WriteString(sec.Content)
	b.WriteString("\n---\n\nRespond with JSON matching the given schema. If no clear problems are found, return an empty list.")
	return b.String()
}
