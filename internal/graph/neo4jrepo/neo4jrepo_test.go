package neo4jrepo

import (
	"testing"
	"time"

	"github.com/scigraph/engine/internal/graph"
)

func TestStringPropMissingKeyReturnsEmpty(t *testing.T) {
	if got := stringProp(map[string]any{}, "title"); got != "" {
		t.Fatalf("expected empty string for missing key, got %q", got)
	}
}

func TestIntPropHandlesInt64FromDriver(t *testing.T) {
	props := map[string]any{"year": int64(2024)}
	if got := intProp(props, "year"); got != 2024 {
		t.Fatalf("expected 2024, got %d", got)
	}
}

func TestStringSlicePropFiltersNonStrings(t *testing.T) {
	props := map[string]any{"fields_of_study": []any{"cs.CL", 42, "cs.AI"}}
	got := stringSliceProp(props, "fields_of_study")
	if len(got) != 2 || got[0] != "cs.CL" || got[1] != "cs.AI" {
		t.Fatalf("expected [cs.CL cs.AI], got %v", got)
	}
}

func TestFloat32SlicePropRoundTripsViaFloat64(t *testing.T) {
	embedding := []float32{0.1, 0.2, 0.3}
	props := map[string]any{"embedding": []any{}}
	f64 := toFloat64Slice(embedding)
	raw := make([]any, len(f64))
	for i, f := range f64 {
		raw[i] = f
	}
	props["embedding"] = raw

	got := float32SliceProp(props, "embedding")
	if len(got) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(got))
	}
	for i := range embedding {
		if got[i] != embedding[i] {
			t.Fatalf("element %d: expected %v, got %v", i, embedding[i], got[i])
		}
	}
}

func TestToNeoTimeZeroStaysZero(t *testing.T) {
	if got := toNeoTime(time.Time{}); !got.IsZero() {
		t.Fatalf("expected zero time to stay zero, got %v", got)
	}
}

func TestOffsetOrZeroClampsNegative(t *testing.T) {
	if got := offsetOrZero(-5); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestLimitOrAllTreatsNonPositiveAsUnbounded(t *testing.T) {
	if got := limitOrAll(0); got <= 0 {
		t.Fatalf("expected a large positive sentinel, got %d", got)
	}
	if got := limitOrAll(5); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestRelationLabelsCoverEveryRelationKind(t *testing.T) {
	kinds := []graph.RelationKind{
		graph.RelExtractedFrom, graph.RelAuthoredBy, graph.RelInstanceOf, graph.RelCites,
		graph.RelExtends, graph.RelContradicts, graph.RelDependsOn, graph.RelReframes, graph.RelInDomain,
	}
	for _, k := range kinds {
		if _, ok := relationLabels[k]; !ok {
			t.Errorf("relation kind %q has no Cypher label mapping", k)
		}
	}
}

func TestProblemParamsDefaultsTimestampsWhenZero(t *testing.T) {
	p := graph.Problem{ID: "p1", Statement: "a statement long enough to pass filters"}
	params := problemParams(p)
	if params["createdAt"].(time.Time).IsZero() {
		t.Fatal("expected createdAt to default to now when zero")
	}
	if params["updatedAt"].(time.Time).IsZero() {
		t.Fatal("expected updatedAt to default to now when zero")
	}
}
