// Package memrepo is an in-memory Repository implementation used by tests.
package memrepo

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
)

// Repository is a mutex-guarded, map-backed graph.Repository.
type Repository struct {
	mu sync.RWMutex

	papers   map[string]graph.Paper
	authors  map[string]graph.Author
	problems map[string]graph.Problem
	mentions map[string]graph.ProblemMention
	concepts map[string]graph.ProblemConcept
	reviews  map[string]graph.PendingReview
	relations []graph.Relation
}

// New returns an empty Repository.
func New() *Repository {
	return &Repository{
		papers:   make(map[string]graph.Paper),
		authors:  make(map[string]graph.Author),
		problems: make(map[string]graph.Problem),
		mentions: make(map[string]graph.ProblemMention),
		concepts: make(map[string]graph.ProblemConcept),
		reviews:  make(map[string]graph.PendingReview),
	}
}

func (r *Repository) Ping(ctx context.Context) error { return nil }

func (r *Repository) UpsertPaper(ctx context.Context, p graph.Paper) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.papers[p.DOI] = p
	return nil
}

func (r *Repository) GetPaper(ctx context.Context, doi string) (graph.Paper, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.papers[doi]
	return p, ok, nil
}

func (r *Repository) ListPapers(ctx context.Context, limit, offset int) ([]graph.Paper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]graph.Paper, 0, len(r.papers))
	for _, p := range r.papers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DOI < out[j].DOI })
	return page(out, limit, offset), nil
}

func (r *Repository) UpsertAuthor(ctx context.Context, a graph.Author) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authors[a.ID] = a
	return nil
}

func (r *Repository) GetAuthor(ctx context.Context, id string) (graph.Author, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.authors[id]
	return a, ok, nil
}

func (r *Repository) CreateProblem(ctx context.Context, p graph.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.problems[p.ID]; exists {
		return apperrors.New(apperrors.Duplicate, "problem already exists: "+p.ID)
	}
	p.Version = 1
	r.problems[p.ID] = p
	return nil
}

func (r *Repository) GetProblem(ctx context.Context, id string) (graph.Problem, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.problems[id]
	return p, ok, nil
}

func (r *Repository) UpdateProblem(ctx context.Context, p graph.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.problems[p.ID]
	if !ok {
		return apperrors.New(apperrors.NotFound, "problem not found: "+p.ID)
	}
	p.Version = existing.Version + 1
	r.problems[p.ID] = p
	return nil
}

func (r *Repository) ListProblems(ctx context.Context, filter graph.ProblemFilter) ([]graph.Problem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]graph.Problem, 0, len(r.problems))
	for _, p := range r.problems {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Domain != "" && p.Domain != filter.Domain {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *Repository) Stats(ctx context.Context) (graph.ProblemStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := graph.ProblemStats{
		ByStatus: make(map[graph.ProblemStatus]int),
		ByDomain: make(map[string]int),
	}
	for _, p := range r.problems {
		stats.Total++
		stats.ByStatus[p.Status]++
		stats.ByDomain[p.Domain]++
	}
	return stats, nil
}

func (r *Repository) CreateMention(ctx context.Context, m graph.ProblemMention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mentions[m.ID] = m
	return nil
}

func (r *Repository) GetMention(ctx context.Context, id string) (graph.ProblemMention, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mentions[id]
	return m, ok, nil
}

func (r *Repository) SetMentionConcept(ctx context.Context, mentionID, conceptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mentions[mentionID]
	if !ok {
		return apperrors.New(apperrors.NotFound, "mention not found: "+mentionID)
	}
	m.ConceptID = conceptID
	m.ReviewStatus = graph.ReviewResolved
	r.mentions[mentionID] = m

	if c, ok := r.concepts[conceptID]; ok {
		c.MentionCount++
		r.concepts[conceptID] = c
	}
	r.relations = append(r.relations, graph.Relation{Kind: graph.RelInstanceOf, FromID: mentionID, ToID: conceptID})
	return nil
}

func (r *Repository) SetMentionReviewStatus(ctx context.Context, mentionID string, status graph.ReviewStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mentions[mentionID]
	if !ok {
		return apperrors.New(apperrors.NotFound, "mention not found: "+mentionID)
	}
	m.ReviewStatus = status
	r.mentions[mentionID] = m
	return nil
}

func (r *Repository) CreateConcept(ctx context.Context, c graph.ProblemConcept) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concepts[c.ID] = c
	return nil
}

func (r *Repository) GetConcept(ctx context.Context, id string) (graph.ProblemConcept, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.concepts[id]
	return c, ok, nil
}

func (r *Repository) SearchConceptsByEmbedding(ctx context.Context, embedding []float32, topK int) ([]graph.ProblemConcept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		c   graph.ProblemConcept
		sim float64
	}
	scoredList := make([]scored, 0, len(r.concepts))
	for _, c := range r.concepts {
		scoredList = append(scoredList, scored{c: c, sim: cosineSimilarity(embedding, c.Embedding)})
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].sim != scoredList[j].sim {
			return scoredList[i].sim > scoredList[j].sim
		}
		return scoredList[i].c.ID < scoredList[j].c.ID
	})
	if topK > 0 && topK < len(scoredList) {
		scoredList = scoredList[:topK]
	}
	out := make([]graph.ProblemConcept, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.c
	}
	return out, nil
}

func (r *Repository) CreatePendingReview(ctx context.Context, rev graph.PendingReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reviews[rev.MentionID]; exists {
		return nil // enqueue is idempotent on mention_id
	}
	r.reviews[rev.MentionID] = rev
	return nil
}

func (r *Repository) GetPendingReview(ctx context.Context, id string) (graph.PendingReview, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rev, ok := r.reviews[id]
	return rev, ok, nil
}

func (r *Repository) UpdatePendingReview(ctx context.Context, rev graph.PendingReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[rev.MentionID]; !ok {
		return apperrors.New(apperrors.NotFound, "pending review not found: "+rev.MentionID)
	}
	r.reviews[rev.MentionID] = rev
	return nil
}

func (r *Repository) ResolvePendingReview(ctx context.Context, id string, res graph.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.reviews[id]
	if !ok {
		return apperrors.New(apperrors.NotFound, "pending review not found: "+id)
	}
	rev.Resolution = &res
	r.reviews[id] = rev
	return nil
}

func (r *Repository) CreateRelation(ctx context.Context, rel graph.Relation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relations = append(r.relations, rel)
	return nil
}

func (r *Repository) CitesOneHop(ctx context.Context, paperDOI string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, rel := range r.relations {
		if rel.Kind == graph.RelCites && rel.FromID == paperDOI {
			out = append(out, rel.ToID)
		}
	}
	return out, nil
}

func (r *Repository) MentionsInstanceOf(ctx context.Context, conceptID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, rel := range r.relations {
		if rel.Kind == graph.RelInstanceOf && rel.ToID == conceptID {
			out = append(out, rel.FromID)
		}
	}
	return out, nil
}

func (r *Repository) Neighbors(ctx context.Context, nodeID string, depth int) ([]graph.Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	frontier := map[string]struct{}{nodeID: {}}
	var out []graph.Relation
	for d := 0; d < depth || depth <= 0 && d < 1; d++ {
		next := map[string]struct{}{}
		found := false
		for _, rel := range r.relations {
			if _, ok := frontier[rel.FromID]; ok {
				out = append(out, rel)
				next[rel.ToID] = struct{}{}
				found = true
			}
		}
		if !found {
			break
		}
		frontier = next
		if depth <= 0 {
			break
		}
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
