// Package sources defines the contract shared by every bibliographic
// source client and the resilience pipeline (breaker, limiter, cache,
// retry) each concrete client composes its calls through.
package sources

import (
	"context"
	"time"

	"github.com/scigraph/engine/internal/breaker"
	"github.com/scigraph/engine/internal/cache"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/ratelimit"
	"github.com/scigraph/engine/internal/retry"
)

// Name identifies a bibliographic source.
type Name string

const (
	S2       Name = "s2"
	Arxiv    Name = "arxiv"
	OpenAlex Name = "openalex"
)

// RawRecord is an unnormalized per-source paper record: whatever shape
// the source's API returned, kept around long enough for the normalizer
// to turn it into a graph.Paper.
type RawRecord struct {
	Source Name
	ID     string // the source's own identifier for this record
	Data   map[string]interface{}
}

// SearchResult is one raw hit from a search call, alongside the total
// count reported by the source (if any).
type SearchResult struct {
	Records []RawRecord
	Total   int
}

// Client is the contract every concrete bibliographic source satisfies.
// GetCitations/GetAuthor/GetPDFBytes are optional per source; a client
// that cannot serve one returns apperrors.NotFound. The contract has no
// embedding lookup.
type Client interface {
	Name() Name
	GetPaper(ctx context.Context, identifier string) (RawRecord, error)
	SearchPapers(ctx context.Context, query string, limit, offset int) (SearchResult, error)
	GetCitations(ctx context.Context, identifier string) ([]string, error)
	GetAuthor(ctx context.Context, identifier string) (RawRecord, error)
	GetPDFBytes(ctx context.Context, identifier string) ([]byte, error)
}

// Deps bundles the resilience components every client composes around
// its transport. Deps are shared across clients for caches/limiters
// that are registries, and per-source for the breaker/limiter instance
// each client pulls out of those registries.
type Deps struct {
	Breakers *breaker.Registry
	Limiters *ratelimit.Registry
	Cache    *cache.Cache
	Log      *logging.Logger
}

// Pipeline runs the shared call order described for source clients:
// breaker check -> rate-limiter acquire -> cache lookup -> fetch ->
// retry-on-retryable -> breaker record -> cache set.
type Pipeline struct {
	Source      Name
	Breaker     *breaker.Breaker
	Limiter     *ratelimit.Limiter
	Cache       *cache.Cache
	Log         *logging.Logger
	RetryPolicy retry.Policy
}

// NewPipeline builds a Pipeline for source, creating its breaker and
// limiter from the shared registries in deps (get-or-create, so repeated
// client construction for the same source reuses the same instances).
func NewPipeline(deps Deps, source Name, breakerCfg breaker.Config, limiterCfg ratelimit.Config) Pipeline {
	return Pipeline{
		Source:      source,
		Breaker:     deps.Breakers.GetOrCreate(string(source), breakerCfg),
		Limiter:     deps.Limiters.GetOrCreate(string(source), limiterCfg),
		Cache:       deps.Cache,
		Log:         deps.Log,
		RetryPolicy: retry.DefaultPolicy(),
	}
}

// cacheKey builds the two-level (kind, identifier) cache key.
func (p Pipeline) cacheKey(kind, identifier string) string {
	return string(p.Source) + ":" + kind + ":" + identifier
}

// Do runs fetch through the full composed pipeline, caching the result
// (with ttl) on success. fetch should perform exactly one underlying
// HTTP round trip per call so retry semantics stay clean.
func Do[T any](ctx context.Context, p Pipeline, kind, identifier string, bypass bool, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := p.Breaker.Check(); err != nil {
		return zero, err
	}

	if _, err := p.Limiter.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	key := p.cacheKey(kind, identifier)
	if !bypass {
		if cached, ok := p.Cache.Get(key); ok {
			return cached.(T), nil
		}
	}

	var result T
	err := retry.Do(ctx, p.Log, string(p.Source), p.RetryPolicy, func() error {
		r, ferr := fetch(ctx)
		if ferr != nil {
			return ferr
		}
		result = r
		return nil
	})

	if err != nil {
		p.Breaker.RecordFailure()
		return zero, err
	}
	p.Breaker.RecordSuccess()
	p.Cache.Set(key, result, ttl)
	return result, nil
}
