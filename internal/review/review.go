// Package review implements the PendingReview queue: a Redis-backed
// priority/SLA index over entries durably recorded in the graph
// repository. Redis owns ordering and claim leases; the graph owns the
// record of truth.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/graph"
)

// SLA durations per priority class.
var SLA = map[graph.ReviewPriority]time.Duration{
	graph.PriorityHigh:   4 * time.Hour,
	graph.PriorityNormal: 24 * time.Hour,
	graph.PriorityLow:    72 * time.Hour,
}

// HighImpactDomains is the closed set of domains auto-upgraded to high
// priority regardless of escalation reason.
var HighImpactDomains = map[string]struct{}{
	"medicine":     {},
	"clinical_nlp": {},
	"security":     {},
	"safety":       {},
}

const (
	pendingZSetKey = "review:pending"
	claimZSetKey   = "review:claims"
	claimHashKey   = "review:claim_owner"
)

// Queue is the Redis-backed priority index for PendingReview entries.
type Queue struct {
	rdb  *redis.Client
	repo graph.Repository
	now  func() time.Time
}

// New builds a Queue over an existing Redis client and repository.
func New(rdb *redis.Client, repo graph.Repository) *Queue {
	return &Queue{rdb: rdb, repo: repo, now: time.Now}
}

func effectivePriority(domain string, requested graph.ReviewPriority) graph.ReviewPriority {
	if _, highImpact := HighImpactDomains[domain]; highImpact {
		return graph.PriorityHigh
	}
	return requested
}

// Enqueue records a PendingReview and indexes it by SLA deadline. It is
// idempotent on mention_id: a second enqueue for the same mention is a
// no-op.
func (q *Queue) Enqueue(ctx context.Context, mentionID, domain string, candidates []graph.CandidateConcept, priority graph.ReviewPriority, reason graph.EscalationReason) (graph.PendingReview, error) {
	priority = effectivePriority(domain, priority)
	deadline := q.now().Add(SLA[priority])

	review := graph.PendingReview{
		ID:                "review-" + uuid.NewString(),
		MentionID:         mentionID,
		SuggestedConcepts: candidates,
		Priority:          priority,
		EscalationReason:  reason,
		SLADeadline:       deadline,
	}

	if err := q.repo.CreatePendingReview(ctx, review); err != nil {
		return graph.PendingReview{}, err
	}
	existing, _, err := q.repo.GetPendingReview(ctx, mentionID)
	if err != nil {
		return graph.PendingReview{}, err
	}

	if err := q.rdb.ZAdd(ctx, pendingZSetKey, &redis.Z{
		Score:  float64(existing.SLADeadline.Unix()),
		Member: mentionID,
	}).Err(); err != nil {
		return graph.PendingReview{}, err
	}
	return existing, nil
}

// ListFilter narrows a List call.
type ListFilter struct {
	Priority graph.ReviewPriority
	Limit    int
	Offset   int
}

// List returns queued (not yet resolved) reviews ordered by SLA deadline.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]graph.PendingReview, error) {
	ids, err := q.rdb.ZRange(ctx, pendingZSetKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]graph.PendingReview, 0, len(ids))
	for _, id := range ids {
		r, ok, err := q.repo.GetPendingReview(ctx, id)
		if err != nil || !ok || r.Resolution != nil {
			continue
		}
		if filter.Priority != "" && r.Priority != filter.Priority {
			continue
		}
		out = append(out, r)
	}

	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else if filter.Offset >= len(out) {
		return []graph.PendingReview{}, nil
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Claim checks mentionID out for reviewer with a lease of ttl. The claim
// does not hide the entry: List still returns it, and Claim does not
// refuse an entry another reviewer already holds.
func (q *Queue) Claim(ctx context.Context, mentionID, reviewer string, ttl time.Duration) error {
	r, ok, err := q.repo.GetPendingReview(ctx, mentionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.NotFound, "pending review not found: "+mentionID)
	}
	if r.Resolution != nil {
		return apperrors.New(apperrors.Validation, "review already resolved: "+mentionID)
	}

	expiry := q.now().Add(ttl)
	if err := q.rdb.HSet(ctx, claimHashKey, mentionID, reviewer).Err(); err != nil {
		return err
	}
	return q.rdb.ZAdd(ctx, claimZSetKey, &redis.Z{Score: float64(expiry.Unix()), Member: mentionID}).Err()
}

// Resolve records a reviewer's decision and writes its graph effect:
// "link" writes INSTANCE_OF to ConceptID; "create_new" promotes the
// mention to a brand new concept.
func (q *Queue) Resolve(ctx context.Context, mentionID string, res graph.Resolution) error {
	res.ResolvedAt = q.now()

	switch res.Decision {
	case "link":
		if res.ConceptID == "" {
			return apperrors.New(apperrors.Validation, "link resolution requires a concept id")
		}
		if err := q.repo.SetMentionConcept(ctx, mentionID, res.ConceptID); err != nil {
			return err
		}
	case "create_new":
		mention, ok, err := q.repo.GetMention(ctx, mentionID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.New(apperrors.NotFound, "mention not found: "+mentionID)
		}
		concept := graph.ProblemConcept{
			ID:                 "concept-" + uuid.NewString(),
			CanonicalStatement: mention.Statement,
			Domain:             mention.Domain,
			Embedding:          mention.Embedding,
			Status:             graph.ConceptActive,
		}
		if err := q.repo.CreateConcept(ctx, concept); err != nil {
			return err
		}
		res.ConceptID = concept.ID
		if err := q.repo.SetMentionConcept(ctx, mentionID, concept.ID); err != nil {
			return err
		}
	default:
		return apperrors.New(apperrors.Validation, fmt.Sprintf("unknown resolution decision %q", res.Decision))
	}

	if err := q.repo.ResolvePendingReview(ctx, mentionID, res); err != nil {
		return err
	}

	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, pendingZSetKey, mentionID)
	pipe.ZRem(ctx, claimZSetKey, mentionID)
	pipe.HDel(ctx, claimHashKey, mentionID)
	_, err := pipe.Exec(ctx)
	return err
}

// SweepExpiredClaims re-queues claims whose ttl elapsed without a
// resolution, and upgrades any entry past its SLA deadline to high
// priority. Intended to run on a robfig/cron schedule.
func (q *Queue) SweepExpiredClaims(ctx context.Context) error {
	now := q.now()

	expired, err := q.rdb.ZRangeByScore(ctx, claimZSetKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		return err
	}
	for _, id := range expired {
		pipe := q.rdb.TxPipeline()
		pipe.ZRem(ctx, claimZSetKey, id)
		pipe.HDel(ctx, claimHashKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}

	overdue, err := q.rdb.ZRangeByScore(ctx, pendingZSetKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		return err
	}
	for _, id := range overdue {
		r, ok, err := q.repo.GetPendingReview(ctx, id)
		if err != nil || !ok || r.Resolution != nil || r.Priority == graph.PriorityHigh {
			continue
		}
		r.Priority = graph.PriorityHigh
		r.SLADeadline = now.Add(SLA[graph.PriorityHigh])
		if err := q.repo.UpdatePendingReview(ctx, r); err != nil {
			continue
		}
		_ = q.rdb.ZAdd(ctx, pendingZSetKey, &redis.Z{Score: float64(r.SLADeadline.Unix()), Member: id}).Err()
	}
	return nil
}
