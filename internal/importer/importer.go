// Package importer upserts normalized Paper and Author records into the
// graph repository, with concurrency-limited batch import and per-item
// progress reporting.
package importer

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/normalize"
)

// Importer owns the upsert logic and the repository it writes to.
type Importer struct {
	repo graph.Repository
	log  *logging.Logger
}

// New builds an Importer over repo.
func New(repo graph.Repository, log *logging.Logger) *Importer {
	return &Importer{repo: repo, log: log}
}

// ImportPaper upserts a single Paper: if no existing record shares its
// DOI, it is created; if one exists and updateExisting is set, the
// incoming record is merged into the existing one via the normalizer's
// combiner and written back. Returns whether a record was created
// (true) or updated/skipped (false).
func (im *Importer) ImportPaper(ctx context.Context, p graph.Paper, updateExisting bool) (created bool, err error) {
	if p.DOI == "" {
		return false, apperrors.New(apperrors.Validation, "paper has no DOI; cannot upsert")
	}

	existing, found, err := im.repo.GetPaper(ctx, p.DOI)
	if err != nil {
		return false, apperrors.Wrap(apperrors.Internal, "load existing paper", err)
	}

	toWrite := p
	if found {
		if !updateExisting {
			return false, nil
		}
		toWrite = normalize.Merge(existing, p)
	}

	for i, ref := range toWrite.Authors {
		toWrite.Authors[i].AuthorID = ref.AuthorID
	}

	if err := im.repo.UpsertPaper(ctx, toWrite); err != nil {
		return false, apperrors.Wrap(apperrors.Internal, "upsert paper", err)
	}
	for _, ref := range toWrite.Authors {
		if err := im.repo.CreateRelation(ctx, graph.Relation{
			Kind: graph.RelAuthoredBy, FromID: toWrite.DOI, ToID: ref.AuthorID, Position: ref.Position,
		}); err != nil && im.log != nil {
			im.log.WithFields(map[string]interface{}{"doi": toWrite.DOI, "author": ref.AuthorID, "error": err.Error()}).Warn("authored_by edge write failed")
		}
	}
	return !found, nil
}

// ResolveAuthor finds an existing Author by ORCID, falling back to
// normalized-name match, creating a new Author record when neither
// resolves. The Author's internal id is deterministically derived from
// whichever of (orcid, normalized name) is available at first creation,
// so a later lookup by that same key resolves through the repository's
// plain GetAuthor(id) without a separate orcid/name index.
func (im *Importer) ResolveAuthor(ctx context.Context, name, orcid string, affiliations []string) (graph.Author, error) {
	nameKey := normalizeName(name)
	for _, lookup := range []string{orcid, nameKey} {
		if lookup == "" {
			continue
		}
		if existing, found, err := im.repo.GetAuthor(ctx, lookup); err == nil && found {
			return existing, nil
		}
	}

	key := orcid
	if key == "" {
		key = nameKey
	}
	if key == "" {
		key = uuid.NewString()
	}

	a := graph.Author{ID: key, Name: name, ORCID: orcid, Affiliations: affiliations}
	if err := im.repo.UpsertAuthor(ctx, a); err != nil {
		return graph.Author{}, apperrors.Wrap(apperrors.Internal, "create author", err)
	}
	return a, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// BatchResult summarises a batch import run.
type BatchResult struct {
	Total   int
	Created int
	Updated int
	Skipped int
	Failed  int
	Errors  map[string]error // keyed by paper identifier (DOI)
}

// ProgressFunc is invoked once per processed paper.
type ProgressFunc func(identifier string, created bool, err error)

// ImportBatch imports papers concurrently, limited to maxConcurrent
// in-flight upserts, invoking onProgress (if non-nil) as each completes.
func (im *Importer) ImportBatch(ctx context.Context, papers []graph.Paper, updateExisting bool, maxConcurrent int, onProgress ProgressFunc) BatchResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	var mu sync.Mutex
	result := BatchResult{Total: len(papers), Errors: make(map[string]error)}

	var wg sync.WaitGroup
	for _, p := range papers {
		p := p
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Failed++
			result.Errors[p.DOI] = err
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			created, err := im.ImportPaper(ctx, p, updateExisting)

			mu.Lock()
			switch {
			case err != nil:
				result.Failed++
				result.Errors[p.DOI] = err
			case created:
				result.Created++
			case !updateExisting:
				result.Skipped++
			default:
				result.Updated++
			}
			mu.Unlock()

			if onProgress != nil {
				onProgress(p.DOI, created, err)
			}
		}()
	}
	wg.Wait()
	return result
}
