// Package pdf turns raw PDF bytes into cleaned, page-indexed text:
// unicode normalization, header/footer stripping, dehyphenation, and a
// scanned-document heuristic for callers that need to reject image-only
// PDFs before handing them to the section segmenter.
package pdf

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ledongthuc/pdf"

	"github.com/scigraph/engine/internal/apperrors"
)

// Page is the cleaned text of a single 1-indexed PDF page.
type Page struct {
	PageNumber int
	Text       string
}

// ExtractedText is the full result of extracting one PDF document.
type ExtractedText struct {
	Pages      []Page
	TotalPages int
	IsScanned  bool
	Metadata   map[string]string
}

// FullText joins every non-empty page's text with a blank line, the same
// separator the section segmenter expects between pages.
func (e ExtractedText) FullText() string {
	var parts []string
	for _, p := range e.Pages {
		if strings.TrimSpace(p.Text) != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// headerFooterPatterns catches page numbers, arXiv banners, and common
// conference boilerplate that repeats on every page and would otherwise
// pollute section segmentation.
var headerFooterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*\d+\s*$`),
	regexp.MustCompile(`(?i)^\s*-\s*\d+\s*-\s*$`),
	regexp.MustCompile(`(?i)^\s*page\s+\d+\s*(of\s+\d+)?\s*$`),
	regexp.MustCompile(`(?i)^\s*arxiv:\d{4}\.\d{4,5}.*$`),
	regexp.MustCompile(`(?i)^\s*preprint\..*$`),
	regexp.MustCompile(`(?i)^\s*under review.*$`),
	regexp.MustCompile(`(?i)^\s*proceedings of.*$`),
	regexp.MustCompile(`(?i)^\s*\d{4}\s+(ieee|acm|aaai|neurips|icml|iclr).*$`),
}

var hyphenBreak = regexp.MustCompile(`(\w+)-\s*\n\s*([a-z])`)
var runSpaces = regexp.MustCompile(`[ \t]+`)
var runBlankLines = regexp.MustCompile(`\n{3,}`)

// minTextCharsForTextPDF is the threshold below which a non-empty PDF is
// treated as scanned (image-only, no extractable text layer).
const minTextCharsForTextPDF = 100

// Extract parses PDF bytes and returns cleaned, page-indexed text.
func Extract(data []byte) (ExtractedText, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ExtractedText{}, apperrors.Wrap(apperrors.Validation, "open pdf", err)
	}

	numPages := r.NumPage()
	pages := make([]Page, 0, numPages)
	totalChars := 0

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{PageNumber: i, Text: ""})
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, Page{PageNumber: i, Text: ""})
			continue
		}
		totalChars += len(raw)
		pages = append(pages, Page{PageNumber: i, Text: clean(raw)})
	}

	isScanned := totalChars < minTextCharsForTextPDF && numPages > 0

	return ExtractedText{
		Pages:      pages,
		TotalPages: numPages,
		IsScanned:  isScanned,
		Metadata:   map[string]string{"extraction_method": "ledongthuc/pdf"},
	}, nil
}

func clean(raw string) string {
	if raw == "" {
		return ""
	}
	text := norm.NFC.String(raw)
	lines := strings.Split(text, "\n")
	lines = removeHeadersFooters(lines)
	text = strings.Join(lines, "\n")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = runSpaces.ReplaceAllString(text, " ")
	text = runBlankLines.ReplaceAllString(text, "\n\n")

	trimmed := make([]string, 0, len(lines))
	for _, line := range strings.Split(text, "\n") {
		trimmed = append(trimmed, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(trimmed, "\n"))
}

func removeHeadersFooters(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		matched := false
		for _, re := range headerFooterPatterns {
			if re.MatchString(stripped) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, line)
		}
	}
	return out
}
