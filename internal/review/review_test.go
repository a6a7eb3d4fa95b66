package review

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/scigraph/engine/internal/graph"
	"github.com/scigraph/engine/internal/graph/memrepo"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, memrepo.New()), mr
}

func TestEnqueueIsIdempotentOnMentionID(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	first, err := q.Enqueue(ctx, "m1", "nlp", nil, graph.PriorityNormal, graph.EscalationLowConfidence)
	if err != nil {
		t.Fatal(err)
	}
	second, err := q.Enqueue(ctx, "m1", "nlp", nil, graph.PriorityLow, graph.EscalationLowConfidence)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected repeated enqueue to return the same review, got %q vs %q", first.ID, second.ID)
	}
}

func TestHighImpactDomainUpgradesPriority(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	review, err := q.Enqueue(ctx, "m1", "medicine", nil, graph.PriorityLow, graph.EscalationLowConfidence)
	if err != nil {
		t.Fatal(err)
	}
	if review.Priority != graph.PriorityHigh {
		t.Fatalf("expected high-impact domain to force high priority, got %v", review.Priority)
	}
}

func TestListFiltersByPriority(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, _ = q.Enqueue(ctx, "m1", "nlp", nil, graph.PriorityHigh, graph.EscalationLowConfidence)
	_, _ = q.Enqueue(ctx, "m2", "nlp", nil, graph.PriorityLow, graph.EscalationLowConfidence)

	high, err := q.List(ctx, ListFilter{Priority: graph.PriorityHigh})
	if err != nil {
		t.Fatal(err)
	}
	if len(high) != 1 || high[0].MentionID != "m1" {
		t.Fatalf("expected only m1 in the high-priority list, got %+v", high)
	}
}

func TestResolveLinkRemovesFromPendingIndex(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	_, _ = q.Enqueue(ctx, "m1", "nlp", nil, graph.PriorityNormal, graph.EscalationLowConfidence)

	if err := q.Resolve(ctx, "m1", graph.Resolution{Decision: "link", ConceptID: "c1", Reviewer: "alice"}); err != nil {
		t.Fatal(err)
	}

	remaining, err := q.List(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected resolved review to drop out of the pending list, got %+v", remaining)
	}
}

func TestSweepUpgradesOverdueEntries(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)
	q.now = func() time.Time { return time.Unix(0, 0) }

	_, _ = q.Enqueue(ctx, "m1", "nlp", nil, graph.PriorityNormal, graph.EscalationLowConfidence)

	q.now = func() time.Time { return time.Unix(0, 0).Add(48 * time.Hour) }
	if err := q.SweepExpiredClaims(ctx); err != nil {
		t.Fatal(err)
	}

	high, err := q.List(ctx, ListFilter{Priority: graph.PriorityHigh})
	if err != nil {
		t.Fatal(err)
	}
	if len(high) != 1 {
		t.Fatalf("expected overdue normal-priority review to be upgraded to high, got %+v", high)
	}
}
