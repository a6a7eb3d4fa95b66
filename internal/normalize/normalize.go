// Package normalize turns a heterogeneous per-source RawRecord into the
// unified graph.Paper shape, and defines the associative, idempotent
// merge combiner used to reconcile the same paper seen from more than
// one source.
package normalize

import (
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/sources"
)

var (
	doiPattern   = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	arxivNewRE   = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldRE   = regexp.MustCompile(`^[a-zA-Z.-]+/\d{7}(v\d+)?$`)
)

// CleanDOI strips a "https://doi.org/" or "doi:" prefix and validates the
// result; an invalid identifier is normalized away (returned empty), not
// rejected.
func CleanDOI(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://doi.org/")
	s = strings.TrimPrefix(s, "http://doi.org/")
	s = strings.TrimPrefix(s, "doi:")
	if !doiPattern.MatchString(s) {
		return ""
	}
	return s
}

// CleanArxivID strips an "arXiv:" prefix or abs/pdf URL wrapper and
// validates against the new (YYMM.NNNNN[vN]) or old (category/NNNNNNN[vN])
// format; an invalid identifier is normalized away.
func CleanArxivID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "arXiv:")
	s = strings.TrimPrefix(s, "arxiv:")
	if idx := strings.Index(s, "/abs/"); idx >= 0 {
		s = s[idx+len("/abs/"):]
	}
	if idx := strings.Index(s, "/pdf/"); idx >= 0 {
		s = s[idx+len("/pdf/"):]
	}
	if arxivNewRE.MatchString(s) || arxivOldRE.MatchString(s) {
		return s
	}
	return ""
}

// jpath extracts a nested field from a raw JSON-decoded record, returning
// ok=false (not an error) when the path is absent — heterogeneous source
// payloads routinely omit fields.
func jpath(data map[string]interface{}, path string) (interface{}, bool) {
	v, err := jsonpath.Get(path, data)
	if err != nil {
		return nil, false
	}
	return v, true
}

func jstr(data map[string]interface{}, path string) string {
	v, ok := jpath(data, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func jint(data map[string]interface{}, path string) int {
	v, ok := jpath(data, path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// FromS2 normalizes a Semantic Scholar raw record into a Paper.
func FromS2(rec sources.RawRecord) (graph.Paper, error) {
	if rec.Source != sources.S2 {
		return graph.Paper{}, apperrors.New(apperrors.Normalization, "record is not from s2")
	}
	d := rec.Data
	return graph.Paper{
		DOI:           CleanDOI(jstr(d, "$.externalIds.DOI")),
		Title:         jstr(d, "$.title"),
		Abstract:      jstr(d, "$.abstract"),
		Authors:       s2Authors(d),
		Year:          jint(d, "$.year"),
		Venue:         jstr(d, "$.venue"),
		ArxivID:       CleanArxivID(jstr(d, "$.externalIds.ArXiv")),
		S2ID:          jstr(d, "$.paperId"),
		PDFURL:        jstr(d, "$.openAccessPdf.url"),
		IsOpenAccess:  boolField(d, "isOpenAccess"),
		CitationCount: jint(d, "$.citationCount"),
		FieldsOfStudy: stringList(d, "fieldsOfStudy"),
		Source:        graph.SourceS2,
		RetrievedAt:   clockNow(),
	}, nil
}

// FromArxiv normalizes an arXiv raw record into a Paper. arXiv abstracts
// are already plain text (no inverted-index reconstruction needed).
func FromArxiv(rec sources.RawRecord) (graph.Paper, error) {
	if rec.Source != sources.Arxiv {
		return graph.Paper{}, apperrors.New(apperrors.Normalization, "record is not from arxiv")
	}
	d := rec.Data
	year := 0
	if published, ok := d["published"].(string); ok && len(published) >= 4 {
		year = atoiSafe(published[:4])
	}
	return graph.Paper{
		Title:         jstr(d, "$.title"),
		Abstract:      jstr(d, "$.summary"),
		Authors:       nil, // arXiv authors are plain names with no stable internal id yet; Importer resolves them
		Year:          year,
		ArxivID:       CleanArxivID(jstr(d, "$.arxiv_id")),
		PDFURL:        jstr(d, "$.pdf_url"),
		IsOpenAccess:  true, // every arXiv preprint is open access by construction
		FieldsOfStudy: stringList(d, "categories"),
		Source:        graph.SourceArxiv,
		RetrievedAt:   clockNow(),
	}, nil
}

// FromOpenAlex normalizes an OpenAlex raw record into a Paper, reconstructing
// the abstract from its inverted-index representation when present.
func FromOpenAlex(rec sources.RawRecord) (graph.Paper, error) {
	if rec.Source != sources.OpenAlex {
		return graph.Paper{}, apperrors.New(apperrors.Normalization, "record is not from openalex")
	}
	d := rec.Data
	abstract := reconstructAbstract(d)
	oa := false
	if oaBlock, ok := d["open_access"].(map[string]interface{}); ok {
		if v, ok := oaBlock["is_oa"].(bool); ok {
			oa = v
		}
	}
	return graph.Paper{
		DOI:           CleanDOI(jstr(d, "$.doi")),
		Title:         jstr(d, "$.title"),
		Abstract:      abstract,
		Authors:       nil, // OpenAlex authorships resolve to internal Author ids in the Importer
		Year:          jint(d, "$.publication_year"),
		Venue:         jstr(d, "$.host_venue.display_name"),
		OpenAlexID:    jstr(d, "$.id"),
		IsOpenAccess:  oa,
		CitationCount: jint(d, "$.cited_by_count"),
		FieldsOfStudy: openAlexConcepts(d),
		Source:        graph.SourceOpenAlex,
		RetrievedAt:   clockNow(),
	}, nil
}

// reconstructAbstract rebuilds plain text from OpenAlex's
// abstract_inverted_index: {word: [position, ...]}.
func reconstructAbstract(d map[string]interface{}) string {
	idx, ok := d["abstract_inverted_index"].(map[string]interface{})
	if !ok || len(idx) == 0 {
		return ""
	}
	type placed struct {
		pos  int
		word string
	}
	var words []placed
	for word, positions := range idx {
		list, ok := positions.([]interface{})
		if !ok {
			continue
		}
		for _, p := range list {
			if pf, ok := p.(float64); ok {
				words = append(words, placed{pos: int(pf), word: word})
			}
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.word
	}
	return strings.Join(out, " ")
}

func openAlexConcepts(d map[string]interface{}) []string {
	concepts, ok := d["concepts"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(concepts))
	for _, c := range concepts {
		m, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := m["display_name"].(string); ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}

func s2Authors(d map[string]interface{}) []graph.AuthorRef {
	list, ok := d["authors"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]graph.AuthorRef, 0, len(list))
	for i, a := range list {
		m, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["authorId"].(string)
		if id == "" {
			continue
		}
		out = append(out, graph.AuthorRef{AuthorID: id, Position: i})
	}
	return out
}

func boolField(d map[string]interface{}, key string) bool {
	v, _ := d[key].(bool)
	return v
}

func stringList(d map[string]interface{}, key string) []string {
	list, ok := d[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// clockNow is overridden in tests to keep fixtures deterministic.
var clockNow = time.Now

// Merge combines a and b field-by-field with a fixed precedence: earlier
// non-empty value wins, except citation_count (max of the two), authors
// (the longer list), and is_open_access (logical OR). Merge is
// associative and idempotent: Merge(Merge(a,b),c) == Merge(a,Merge(b,c)),
// and Merge(a,a) == a, so aggregation order never affects the result.
func Merge(a, b graph.Paper) graph.Paper {
	out := a

	out.DOI = firstNonEmpty(a.DOI, b.DOI)
	out.Title = firstNonEmpty(a.Title, b.Title)
	out.Abstract = firstNonEmpty(a.Abstract, b.Abstract)
	out.Venue = firstNonEmpty(a.Venue, b.Venue)
	out.ArxivID = firstNonEmpty(a.ArxivID, b.ArxivID)
	out.OpenAlexID = firstNonEmpty(a.OpenAlexID, b.OpenAlexID)
	out.S2ID = firstNonEmpty(a.S2ID, b.S2ID)
	out.PDFURL = firstNonEmpty(a.PDFURL, b.PDFURL)

	if a.Year == 0 {
		out.Year = b.Year
	}

	if len(b.Authors) > len(a.Authors) {
		out.Authors = b.Authors
	}

	if b.CitationCount > a.CitationCount {
		out.CitationCount = b.CitationCount
	}

	out.IsOpenAccess = a.IsOpenAccess || b.IsOpenAccess

	out.FieldsOfStudy = mergeStringSet(a.FieldsOfStudy, b.FieldsOfStudy)

	// Source/RetrievedAt record provenance of the merge itself, not either
	// input's origin: the merged record came from more than one source.
	// Merging a record with itself (a == b) is a no-op, not a merge, so it
	// must not overwrite Source — otherwise Merge(a, a) == a would break.
	if !reflect.DeepEqual(a, b) {
		out.Source = graph.SourceCache
	}
	if b.RetrievedAt.After(a.RetrievedAt) {
		out.RetrievedAt = b.RetrievedAt
	}

	return out
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func mergeStringSet(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
