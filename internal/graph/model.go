// Package graph defines the property-graph data model and the Repository
// Contract that every storage backend (Neo4j, in-memory) must satisfy.
package graph

import "time"

// PaperSource identifies which bibliographic source a Paper record came
// from, or that it was reconstructed from the cache.
type PaperSource string

const (
	SourceS2       PaperSource = "s2"
	SourceArxiv    PaperSource = "arxiv"
	SourceOpenAlex PaperSource = "openalex"
	SourceCache    PaperSource = "cache"
)

// Paper is keyed by DOI (I1: unique and immutable).
type Paper struct {
	DOI            string
	Title          string
	Abstract       string
	Authors        []AuthorRef
	Year           int
	Venue          string
	ArxivID        string
	OpenAlexID     string
	S2ID           string
	PDFURL         string
	IsOpenAccess   bool
	CitationCount  int
	FieldsOfStudy  []string
	Source         PaperSource
	RetrievedAt    time.Time
}

// AuthorRef pins an Author to its ordinal position on a Paper (I2).
type AuthorRef struct {
	AuthorID string
	Position int
}

// Author is keyed by a stable internal id.
type Author struct {
	ID           string
	Name         string
	ORCID        string
	Affiliations []string
}

// ProblemStatus is the Problem lifecycle state.
type ProblemStatus string

const (
	StatusOpen       ProblemStatus = "open"
	StatusInProgress ProblemStatus = "in_progress"
	StatusResolved   ProblemStatus = "resolved"
	StatusDeprecated ProblemStatus = "deprecated"
)

// ConstraintType classifies a Constraint.
type ConstraintType string

const (
	ConstraintComputational ConstraintType = "computational"
	ConstraintData          ConstraintType = "data"
	ConstraintMethodological ConstraintType = "methodological"
	ConstraintTheoretical   ConstraintType = "theoretical"
)

// Constraint is a single qualifying condition on a Problem.
type Constraint struct {
	Text       string
	Type       ConstraintType
	Confidence float64
}

// Evidence links a Problem to the paper passage it was extracted from.
type Evidence struct {
	SourceDOI   string
	SourceTitle string
	Section     string
	QuotedText  string
}

// ExtractionMetadata records how a Problem was produced.
type ExtractionMetadata struct {
	Model           string
	Version         string
	ConfidenceScore float64
	Reviewed        bool
}

// Problem is keyed by an internal UUID (I5: version increments on write).
type Problem struct {
	ID                 string
	Statement          string
	Domain             string
	Status             ProblemStatus
	Assumptions        []string
	Constraints        []Constraint
	Datasets           []string
	Metrics            []string
	Baselines          []string
	Evidence           Evidence
	ExtractionMetadata ExtractionMetadata
	Embedding          []float32
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReviewStatus describes where a Mention stands in the matching pipeline.
type ReviewStatus string

const (
	ReviewNone      ReviewStatus = ""
	ReviewPending   ReviewStatus = "pending"
	ReviewEscalated ReviewStatus = "escalated"
	ReviewResolved  ReviewStatus = "resolved"
)

// ProblemMention is a single occurrence of a Problem statement in one paper.
type ProblemMention struct {
	ID           string
	Statement    string
	Embedding    []float32
	PaperDOI     string
	Domain       string
	ReviewStatus ReviewStatus
	ConceptID    string // empty when not yet linked (I3)
}

// ConceptStatus tracks whether a ProblemConcept is active.
type ConceptStatus string

const (
	ConceptActive     ConceptStatus = "active"
	ConceptDeprecated ConceptStatus = "deprecated"
)

// ProblemConcept is the canonical cross-paper identity of a problem.
type ProblemConcept struct {
	ID                 string
	CanonicalStatement string
	Domain             string
	Embedding          []float32
	MentionCount       int // I4: equals incoming INSTANCE_OF degree
	Status             ConceptStatus
}

// ReviewPriority is the queue priority class, which governs SLA.
type ReviewPriority string

const (
	PriorityHigh   ReviewPriority = "high"
	PriorityNormal ReviewPriority = "normal"
	PriorityLow    ReviewPriority = "low"
)

// EscalationReason records why a mention reached the human queue.
type EscalationReason string

const (
	EscalationLowConfidence     EscalationReason = "low_confidence"
	EscalationConsensusNotReached EscalationReason = "consensus_not_reached"
	EscalationEvaluatorEscalate EscalationReason = "evaluator_escalate"
)

// CandidateConcept is one ranked candidate offered to a reviewer.
type CandidateConcept struct {
	ConceptID  string
	Similarity float64
	FinalScore float64
}

// Resolution is the reviewer's terminal decision on a PendingReview.
type Resolution struct {
	Decision  string // "link" or "create_new"
	ConceptID string // set when Decision == "link"
	Reviewer  string
	ResolvedAt time.Time
}

// PendingReview is a single unresolved matching decision.
type PendingReview struct {
	ID                string
	MentionID         string
	SuggestedConcepts []CandidateConcept
	Priority          ReviewPriority
	EscalationReason  EscalationReason
	SLADeadline       time.Time
	Resolution        *Resolution
}

// RelationKind names a directed, typed edge kind.
type RelationKind string

const (
	RelExtractedFrom RelationKind = "EXTRACTED_FROM"
	RelAuthoredBy    RelationKind = "AUTHORED_BY"
	RelInstanceOf    RelationKind = "INSTANCE_OF"
	RelCites         RelationKind = "CITES"
	RelExtends       RelationKind = "EXTENDS"
	RelContradicts   RelationKind = "CONTRADICTS"
	RelDependsOn     RelationKind = "DEPENDS_ON"
	RelReframes      RelationKind = "REFRAMES"
	RelInDomain      RelationKind = "IN_DOMAIN"
)

// ProblemRelationSubKind further types an EXTENDS/CONTRADICTS/DEPENDS_ON/
// REFRAMES edge between two Problems.
type ProblemRelationSubKind string

// Relation is a directed, typed edge between two node ids.
type Relation struct {
	Kind       RelationKind
	FromID     string
	ToID       string
	Confidence float64
	SubKind    ProblemRelationSubKind
	Position   int // used only for AUTHORED_BY
}
