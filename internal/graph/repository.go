package graph

import "context"

// ProblemFilter narrows a Problem listing.
type ProblemFilter struct {
	Status *ProblemStatus
	Domain string
	Limit  int
	Offset int
}

// ProblemStats summarises the Problem population for the stats endpoint.
type ProblemStats struct {
	Total        int
	ByStatus     map[ProblemStatus]int
	ByDomain     map[string]int
}

// Repository is the storage contract every backend (Neo4j, in-memory)
// implements. Sessions are managed internally; callers never see a driver
// handle. Write methods to the same entity are expected to be serialised
// by the caller (the workflow engine's per-run lock), not by the
// repository itself.
type Repository interface {
	// Papers
	UpsertPaper(ctx context.Context, p Paper) error
	GetPaper(ctx context.Context, doi string) (Paper, bool, error)
	ListPapers(ctx context.Context, limit, offset int) ([]Paper, error)

	// Authors
	UpsertAuthor(ctx context.Context, a Author) error
	GetAuthor(ctx context.Context, id string) (Author, bool, error)

	// Problems
	CreateProblem(ctx context.Context, p Problem) error
	GetProblem(ctx context.Context, id string) (Problem, bool, error)
	UpdateProblem(ctx context.Context, p Problem) error
	ListProblems(ctx context.Context, filter ProblemFilter) ([]Problem, error)
	Stats(ctx context.Context) (ProblemStats, error)

	// Mentions
	CreateMention(ctx context.Context, m ProblemMention) error
	GetMention(ctx context.Context, id string) (ProblemMention, bool, error)
	SetMentionConcept(ctx context.Context, mentionID, conceptID string) error
	SetMentionReviewStatus(ctx context.Context, mentionID string, status ReviewStatus) error

	// Concepts
	CreateConcept(ctx context.Context, c ProblemConcept) error
	GetConcept(ctx context.Context, id string) (ProblemConcept, bool, error)
	SearchConceptsByEmbedding(ctx context.Context, embedding []float32, topK int) ([]ProblemConcept, error)

	// Review queue backing store (durable log; internal/review owns the
	// priority/SLA index on top of this)
	CreatePendingReview(ctx context.Context, r PendingReview) error
	GetPendingReview(ctx context.Context, id string) (PendingReview, bool, error)
	UpdatePendingReview(ctx context.Context, r PendingReview) error
	ResolvePendingReview(ctx context.Context, id string, res Resolution) error

	// Relations
	CreateRelation(ctx context.Context, r Relation) error
	CitesOneHop(ctx context.Context, paperDOI string) ([]string, error) // cited paper DOIs
	MentionsInstanceOf(ctx context.Context, conceptID string) ([]string, error) // mention ids
	Neighbors(ctx context.Context, nodeID string, depth int) ([]Relation, error)

	// Health
	Ping(ctx context.Context) error
}
