package sources

import (
	"context"
	"testing"
	"time"

	"github.com/scigraph/engine/internal/breaker"
	"github.com/scigraph/engine/internal/cache"
	"github.com/scigraph/engine/internal/ratelimit"
)

func newTestDeps() Deps {
	return Deps{
		Breakers: breaker.NewRegistry(),
		Limiters: ratelimit.NewRegistry(),
		Cache:    cache.New(100),
		Log:      nil,
	}
}

func TestDoCachesSuccessfulFetch(t *testing.T) {
	deps := newTestDeps()
	p := NewPipeline(deps, S2, breaker.Config{}, ratelimit.Config{RequestsPerSecond: 100, BurstMultiplier: 2})

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := Do(context.Background(), p, "paper", "id1", false, time.Minute, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "value" {
			t.Fatalf("expected cached value, got %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one underlying fetch, got %d", calls)
	}
}

func TestDoBypassesCacheOnDemand(t *testing.T) {
	deps := newTestDeps()
	p := NewPipeline(deps, S2, breaker.Config{}, ratelimit.Config{RequestsPerSecond: 100, BurstMultiplier: 2})

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	if _, err := Do(context.Background(), p, "paper", "id1", true, time.Minute, fetch); err != nil {
		t.Fatal(err)
	}
	if _, err := Do(context.Background(), p, "paper", "id1", true, time.Minute, fetch); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected bypass to skip the cache both times, got %d calls", calls)
	}
}

func TestDoOpensBreakerAfterRepeatedFailures(t *testing.T) {
	deps := newTestDeps()
	p := NewPipeline(deps, S2, breaker.Config{FailureThreshold: 2, Cooldown: time.Hour}, ratelimit.Config{RequestsPerSecond: 100, BurstMultiplier: 2})

	failing := func(ctx context.Context) (string, error) {
		return "", ClassifyHTTPStatus(500, "boom")
	}
	for i := 0; i < 2; i++ {
		if _, err := Do(context.Background(), p, "paper", "id2", false, time.Minute, failing); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := Do(context.Background(), p, "paper", "id2", false, time.Minute, func(ctx context.Context) (string, error) {
		t.Fatal("breaker should have short-circuited before fetch ran")
		return "", nil
	})
	if !errIsCircuitOpen(err) {
		t.Fatalf("expected circuit_open, got %v", err)
	}
}

func errIsCircuitOpen(err error) bool {
	return err != nil && err.Error() != "" && (stringContains(err.Error(), "circuit_open"))
}

func stringContains(s, substr string) bool {
	return len(substr) == 0 || (len(s) >= len(substr) && indexOfSubstr(s, substr) >= 0)
}

func indexOfSubstr(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		nilErr bool
	}{
		{200, true},
		{404, false},
		{429, false},
		{500, false},
		{400, false},
	}
	for _, tc := range cases {
		err := ClassifyHTTPStatus(tc.status, "body")
		if tc.nilErr && err != nil {
			t.Fatalf("status %d: expected nil error, got %v", tc.status, err)
		}
		if !tc.nilErr && err == nil {
			t.Fatalf("status %d: expected an error", tc.status)
		}
	}
}
