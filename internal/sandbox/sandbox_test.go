package sandbox

import "testing"

func TestParseMetricsReadsTrailingJSONObject(t *testing.T) {
	r := Result{Stdout: "some log line\nanother line\n{\"accuracy\": 0.92, \"loss\": 0.1}\n"}

	metrics := r.ParseMetrics()
	if metrics["accuracy"] != 0.92 {
		t.Fatalf("expected accuracy 0.92, got %v", metrics["accuracy"])
	}
}

func TestParseMetricsAbsentReturnsEmptyMap(t *testing.T) {
	r := Result{Stdout: "no json here at all\n"}

	metrics := r.ParseMetrics()
	if len(metrics) != 0 {
		t.Fatalf("expected empty map, got %v", metrics)
	}
}

func TestCapOutputTruncatesWithMarker(t *testing.T) {
	huge := make([]byte, outputCap+100)
	for i := range huge {
		huge[i] = 'x'
	}
	capped := capOutput(string(huge))
	if len(capped) <= outputCap {
		t.Fatalf("expected capped output to still include the marker beyond the cap, got length %d", len(capped))
	}
	if capped[:outputCap] != string(huge[:outputCap]) {
		t.Fatal("expected capped output to preserve the first outputCap bytes")
	}
}
