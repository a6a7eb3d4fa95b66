// Package section segments cleaned paper text into typed sections, each
// tagged with a priority the problem extractor uses to decide what to
// spend LLM calls on first.
package section

import (
	"regexp"
	"strings"
)

// Type is a closed set of section kinds. Unrecognized headings fall back
// to Unknown rather than growing the enum at runtime.
type Type string

const (
	Abstract     Type = "abstract"
	Introduction Type = "introduction"
	RelatedWork  Type = "related_work"
	Background   Type = "background"
	Method       Type = "method"
	Experiments  Type = "experiments"
	Results      Type = "results"
	Discussion   Type = "discussion"
	Limitations  Type = "limitations"
	FutureWork   Type = "future_work"
	Conclusion   Type = "conclusion"
	References   Type = "references"
	Appendix     Type = "appendix"
	Unknown      Type = "unknown"
)

// Priority is a closed, low-integer scale: lower runs first. Downstream
// extractors use it to decide which sections are worth an LLM call.
var priority = map[Type]int{
	Limitations:  1,
	FutureWork:   2,
	Discussion:   3,
	Conclusion:   4,
	Introduction: 5,
	Results:      10,
	Experiments:  11,
	Method:       15,
	Background:   20,
	RelatedWork:  25,
	Abstract:     30,
	Unknown:      50,
	Appendix:     90,
	References:   100,
}

// Priority returns t's fixed priority; an unrecognized Type is treated as
// Unknown's priority.
func Priority(t Type) int {
	if p, ok := priority[t]; ok {
		return p
	}
	return priority[Unknown]
}

// Section is one ordered, typed span of a paper's body text.
type Section struct {
	Type      Type
	Title     string
	Content   string
	WordCount int
	Priority  int
}

var headingKeywords = []struct {
	t        Type
	keywords []string
}{
	{Abstract, []string{"abstract"}},
	{Introduction, []string{"introduction"}},
	{RelatedWork, []string{"related work", "related works", "prior work", "literature review"}},
	{Background, []string{"background", "preliminaries"}},
	{Method, []string{"method", "methods", "methodology", "approach", "model", "proposed approach"}},
	{Experiments, []string{"experiment", "experiments", "experimental setup", "evaluation setup", "setup"}},
	{Results, []string{"results", "findings"}},
	{Discussion, []string{"discussion"}},
	{Limitations, []string{"limitations", "limitation"}},
	{FutureWork, []string{"future work", "future directions", "future research"}},
	{Conclusion, []string{"conclusion", "conclusions", "concluding remarks"}},
	{References, []string{"references", "bibliography"}},
	{Appendix, []string{"appendix", "appendices", "supplementary material"}},
}

// Heading regex family: numbered ("1. Introduction", "4.2 Method"),
// all-caps ("INTRODUCTION"), and title-case ("Related Work").
var (
	numberedHeadingRE = regexp.MustCompile(`^\s*(?:[A-Z]\.)?\d+(?:\.\d+)*\.?\s+([A-Za-z][A-Za-z0-9 ,'&/-]{1,60})\s*$`)
	allCapsHeadingRE  = regexp.MustCompile(`^\s*[A-Z][A-Z0-9 &/-]{2,50}\s*$`)
	titleCaseHeadingRE = regexp.MustCompile(`^\s*[A-Z][a-zA-Z]*(?:\s+(?:[A-Z][a-zA-Z]*|and|of|the|for|in|a))*\s*$`)
)

// maxHeadingWords bounds how many words a line may have and still be
// considered a heading candidate; body prose runs much longer.
const maxHeadingWords = 8

// classify maps free-text heading content to a closed Type via keyword
// match; unrecognized headings are Unknown.
func classify(heading string) Type {
	lower := strings.ToLower(strings.TrimSpace(heading))
	for _, hk := range headingKeywords {
		for _, kw := range hk.keywords {
			if strings.Contains(lower, kw) {
				return hk.t
			}
		}
	}
	return Unknown
}

// headingText extracts the heading candidate from a line, or ok=false if
// the line does not look like one of the three heading shapes.
func headingText(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if len(strings.Fields(trimmed)) > maxHeadingWords {
		return "", false
	}
	if m := numberedHeadingRE.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if allCapsHeadingRE.MatchString(trimmed) && strings.ToUpper(trimmed) == trimmed {
		return trimmed, true
	}
	if titleCaseHeadingRE.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}

// Segment splits cleaned paper text into an ordered list of Sections.
// Text preceding the first recognized heading is emitted as an Abstract
// section (papers conventionally open with the abstract before any
// numbered heading appears).
func Segment(text string) []Section {
	lines := strings.Split(text, "\n")

	type rawSection struct {
		t       Type
		title   string
		content []string
	}
	var sections []rawSection
	current := rawSection{t: Abstract, title: "Abstract"}

	for _, line := range lines {
		if heading, ok := headingText(line); ok {
			sections = append(sections, current)
			current = rawSection{t: classify(heading), title: heading}
			continue
		}
		current.content = append(current.content, line)
	}
	sections = append(sections, current)

	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		content := strings.TrimSpace(strings.Join(s.content, "\n"))
		if content == "" {
			continue
		}
		out = append(out, Section{
			Type:      s.t,
			Title:     s.title,
			Content:   content,
			WordCount: len(strings.Fields(content)),
			Priority:  Priority(s.t),
		})
	}
	return out
}
