// Package aggregate fans a single identifier or search query out to the
// bibliographic source clients that can serve it, normalizes each raw
// record, and folds the results down to one merged Paper (or a ranked,
// deduplicated union for search).
package aggregate

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/normalize"
	"github.com/scigraph/engine/internal/sources"
)

// IdentifierType classifies an external identifier by structural rules.
type IdentifierType int

const (
	Unknown IdentifierType = iota
	DOI
	ArxivID
	S2ID
	OpenAlexID
	URL
)

func (t IdentifierType) String() string {
	switch t {
	case DOI:
		return "doi"
	case ArxivID:
		return "arxiv"
	case S2ID:
		return "s2"
	case OpenAlexID:
		return "openalex"
	case URL:
		return "url"
	default:
		return "unknown"
	}
}

var (
	doiRE      = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	arxivNewRE = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldRE = regexp.MustCompile(`^[a-zA-Z.-]+/\d{7}(v\d+)?$`)
	s2IDRE     = regexp.MustCompile(`^[0-9a-f]{40}$`)
	openAlexRE = regexp.MustCompile(`^W\d+$`)
)

// DetectIdentifierType classifies a cleaned identifier string. Clean must
// be applied first (stripped prefixes, canonical casing); DetectIdentifierType
// then satisfies the round-trip property Detect(Clean(id, t)) == t for
// every valid id of type t.
func DetectIdentifierType(id string) IdentifierType {
	s := strings.TrimSpace(id)
	switch {
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		return URL
	case doiRE.MatchString(s):
		return DOI
	case arxivNewRE.MatchString(s) || arxivOldRE.MatchString(s):
		return ArxivID
	case s2IDRE.MatchString(s):
		return S2ID
	case openAlexRE.MatchString(s):
		return OpenAlexID
	default:
		return Unknown
	}
}

// Sources bundles the three concrete client implementations. Any may be
// nil in a deployment that only wires a subset.
type Sources struct {
	S2       sources.Client
	Arxiv    sources.Client
	OpenAlex sources.Client
}

func (s Sources) clientsFor(t IdentifierType) []sources.Client {
	switch t {
	case DOI:
		return nonNil(s.S2, s.Arxiv, s.OpenAlex)
	case ArxivID:
		return nonNil(s.S2, s.Arxiv)
	case S2ID:
		return nonNil(s.S2)
	case OpenAlexID:
		return nonNil(s.OpenAlex)
	default:
		return nonNil(s.S2, s.Arxiv, s.OpenAlex)
	}
}

func (s Sources) all() []sources.Client {
	return nonNil(s.S2, s.Arxiv, s.OpenAlex)
}

func nonNil(clients ...sources.Client) []sources.Client {
	out := make([]sources.Client, 0, len(clients))
	for _, c := range clients {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Aggregator composes Sources with a concurrency cap on fan-out.
type Aggregator struct {
	sources     Sources
	maxInFlight int
	log         *logging.Logger
}

// New builds an Aggregator. maxInFlight bounds concurrent source calls
// per aggregate/search request; values <= 0 default to 3 (one per source).
func New(src Sources, maxInFlight int, log *logging.Logger) *Aggregator {
	if maxInFlight <= 0 {
		maxInFlight = 3
	}
	return &Aggregator{sources: src, maxInFlight: maxInFlight, log: log}
}

func normalizeRecord(rec sources.RawRecord) (graph.Paper, error) {
	switch rec.Source {
	case sources.S2:
		return normalize.FromS2(rec)
	case sources.Arxiv:
		return normalize.FromArxiv(rec)
	case sources.OpenAlex:
		return normalize.FromOpenAlex(rec)
	default:
		return graph.Paper{}, apperrors.New(apperrors.Normalization, "unknown record source")
	}
}

// Fetch resolves identifier's type, queries every client that can serve
// it concurrently (bounded by maxInFlight), normalizes each raw record,
// and folds the results via normalize.Merge. Per-source failures are
// logged and skipped unless every source fails, in which case the last
// error is returned.
func (a *Aggregator) Fetch(ctx context.Context, identifier string) (graph.Paper, error) {
	t := DetectIdentifierType(identifier)
	clients := a.sources.clientsFor(t)
	if len(clients) == 0 {
		return graph.Paper{}, apperrors.New(apperrors.NotFound, "no source client can serve this identifier")
	}

	papers, err := a.fanOutFetch(ctx, clients, identifier)
	if err != nil {
		return graph.Paper{}, err
	}
	if len(papers) == 0 {
		return graph.Paper{}, apperrors.New(apperrors.NotFound, "no source returned a record for this identifier")
	}

	merged := papers[0]
	for _, p := range papers[1:] {
		merged = normalize.Merge(merged, p)
	}
	return merged, nil
}

func (a *Aggregator) fanOutFetch(ctx context.Context, clients []sources.Client, identifier string) ([]graph.Paper, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxInFlight)

	results := make([]*graph.Paper, len(clients))
	errs := make([]error, len(clients))

	for i, c := range clients {
		i, c := i, c
		g.Go(func() error {
			rec, err := c.GetPaper(gctx, identifier)
			if err != nil {
				errs[i] = err
				if a.log != nil {
					a.log.WithFields(map[string]interface{}{"source": c.Name(), "identifier": identifier, "error": err.Error()}).Warn("source fetch failed")
				}
				return nil
			}
			p, err := normalizeRecord(rec)
			if err != nil {
				errs[i] = err
				if a.log != nil {
					a.log.WithFields(map[string]interface{}{"source": c.Name(), "identifier": identifier, "error": err.Error()}).Warn("normalization failed")
				}
				return nil
			}
			results[i] = &p
			return nil
		})
	}
	_ = g.Wait() // per-client errors are captured above, never propagated here

	papers := make([]graph.Paper, 0, len(clients))
	var failures int
	var lastErr error
	for i, p := range results {
		if p != nil {
			papers = append(papers, *p)
		}
		if errs[i] != nil {
			failures++
			lastErr = errs[i]
		}
	}
	if len(papers) == 0 && failures == len(clients) {
		return nil, lastErr
	}
	return papers, nil
}

// SearchRequest parameterizes Search.
type SearchRequest struct {
	Query   string
	Limit   int
	Offset  int
	Sources []sources.Name // nil means "all configured sources"
}

// Search fans a query out to the requested (or all) sources concurrently,
// normalizes every hit, de-dupes by best-available identifier
// (DOI > arXiv > S2 > OpenAlex), and returns a ranked union ordered by
// citation count descending.
func (a *Aggregator) Search(ctx context.Context, req SearchRequest) ([]graph.Paper, error) {
	clients := a.sources.all()
	if len(req.Sources) > 0 {
		clients = filterByName(clients, req.Sources)
	}
	if len(clients) == 0 {
		return nil, apperrors.New(apperrors.Validation, "no matching source clients for search request")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxInFlight)

	hits := make([][]graph.Paper, len(clients))
	failed := make([]bool, len(clients))

	for i, c := range clients {
		i, c := i, c
		g.Go(func() error {
			res, err := c.SearchPapers(gctx, req.Query, req.Limit, req.Offset)
			if err != nil {
				failed[i] = true
				if a.log != nil {
					a.log.WithFields(map[string]interface{}{"source": c.Name(), "error": err.Error()}).Warn("source search failed")
				}
				return nil
			}
			papers := make([]graph.Paper, 0, len(res.Records))
			for _, rec := range res.Records {
				p, err := normalizeRecord(rec)
				if err != nil {
					continue
				}
				papers = append(papers, p)
			}
			hits[i] = papers
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	if failures == len(clients) {
		return nil, apperrors.New(apperrors.Transient, "every source failed the search request")
	}

	return dedupeAndRank(hits), nil
}

func filterByName(clients []sources.Client, names []sources.Name) []sources.Client {
	want := make(map[sources.Name]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]sources.Client, 0, len(clients))
	for _, c := range clients {
		if _, ok := want[c.Name()]; ok {
			out = append(out, c)
		}
	}
	return out
}

// bestIdentifier picks the dedup key for a Paper by the documented
// precedence: DOI > arXiv > S2 > OpenAlex.
func bestIdentifier(p graph.Paper) string {
	switch {
	case p.DOI != "":
		return "doi:" + p.DOI
	case p.ArxivID != "":
		return "arxiv:" + p.ArxivID
	case p.S2ID != "":
		return "s2:" + p.S2ID
	case p.OpenAlexID != "":
		return "openalex:" + p.OpenAlexID
	default:
		return "title:" + strings.ToLower(strings.TrimSpace(p.Title))
	}
}

func dedupeAndRank(hits [][]graph.Paper) []graph.Paper {
	merged := make(map[string]graph.Paper)
	order := make([]string, 0)
	for _, papers := range hits {
		for _, p := range papers {
			key := bestIdentifier(p)
			if existing, ok := merged[key]; ok {
				merged[key] = normalize.Merge(existing, p)
				continue
			}
			merged[key] = p
			order = append(order, key)
		}
	}
	out := make([]graph.Paper, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	sortByCitationCountDesc(out)
	return out
}

func sortByCitationCountDesc(papers []graph.Paper) {
	for i := 1; i < len(papers); i++ {
		j := i
		for j > 0 && papers[j-1].CitationCount < papers[j].CitationCount {
			papers[j-1], papers[j] = papers[j], papers[j-1]
			j--
		}
	}
}
