package metrics

import (
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/scigraph/engine/internal/runtime"
)

func newTestMetrics() *Metrics {
	return NewWithRegistry("engine-test", prometheus.NewRegistry())
}

func TestRecordHTTPRequestIncrementsCounterAndObservesDuration(t *testing.T) {
	m := newTestMetrics()
	m.RecordHTTPRequest("engine-test", "GET", "/api/papers", "200", 50*time.Millisecond)

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("engine-test", "GET", "/api/papers", "200"))
	if got != 1 {
		t.Fatalf("expected RequestsTotal = 1, got %v", got)
	}
}

func TestRecordErrorIncrementsByKindAndOperation(t *testing.T) {
	m := newTestMetrics()
	m.RecordError("engine-test", "not_found", "GetProblem")
	m.RecordError("engine-test", "not_found", "GetProblem")

	got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("engine-test", "not_found", "GetProblem"))
	if got != 2 {
		t.Fatalf("expected ErrorsTotal = 2, got %v", got)
	}
}

func TestRecordExtractionAddsProblemCount(t *testing.T) {
	m := newTestMetrics()
	m.RecordExtraction("method", 3, 2*time.Second)
	m.RecordExtraction("method", 1, time.Second)

	got := testutil.ToFloat64(m.ProblemsExtractedTotal.WithLabelValues("method"))
	if got != 4 {
		t.Fatalf("expected ProblemsExtractedTotal = 4, got %v", got)
	}
}

func TestSetReviewQueueDepthOverwritesRatherThanAccumulates(t *testing.T) {
	m := newTestMetrics()
	m.SetReviewQueueDepth("high", 5)
	m.SetReviewQueueDepth("high", 2)

	got := testutil.ToFloat64(m.ReviewQueueDepth.WithLabelValues("high"))
	if got != 2 {
		t.Fatalf("expected ReviewQueueDepth = 2, got %v", got)
	}
}

func TestRecordWorkflowRunIncrementsByOutcome(t *testing.T) {
	m := newTestMetrics()
	m.RecordWorkflowRun("completed", 90*time.Second)

	got := testutil.ToFloat64(m.WorkflowRunsTotal.WithLabelValues("completed"))
	if got != 1 {
		t.Fatalf("expected WorkflowRunsTotal = 1, got %v", got)
	}
}

func TestRecordSandboxExecutionIncrementsByOutcome(t *testing.T) {
	m := newTestMetrics()
	m.RecordSandboxExecution("timeout", 30*time.Second)

	got := testutil.ToFloat64(m.SandboxExecutionsTotal.WithLabelValues("timeout"))
	if got != 1 {
		t.Fatalf("expected SandboxExecutionsTotal = 1, got %v", got)
	}
}

func TestServiceInfoIsSetOnConstruction(t *testing.T) {
	m := newTestMetrics()
	got := testutil.ToFloat64(m.ServiceInfo.WithLabelValues("engine-test", string(runtime.Env())))
	if got != 1 {
		t.Fatalf("expected ServiceInfo gauge = 1, got %v", got)
	}
}

func TestEnabledHonorsExplicitOverride(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "false")
	if Enabled() {
		t.Fatal("expected Enabled() to be false when METRICS_ENABLED=false")
	}

	t.Setenv("METRICS_ENABLED", "true")
	if !Enabled() {
		t.Fatal("expected Enabled() to be true when METRICS_ENABLED=true")
	}
}

func TestEnabledDefaultsToEnvironment(t *testing.T) {
	os.Unsetenv("METRICS_ENABLED")
	os.Unsetenv("ENGINE_ENV")
	os.Unsetenv("ENVIRONMENT")
	if !Enabled() {
		t.Fatal("expected Enabled() to default true outside production")
	}
}

func TestGlobalReturnsSameInstanceAcrossCalls(t *testing.T) {
	global = nil
	a := Global()
	b := Global()
	if a != b {
		t.Fatal("expected Global() to return the same *Metrics on repeated calls")
	}
	global = nil
}
