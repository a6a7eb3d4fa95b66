package sandbox

import (
	"context"
	"testing"
	"time"
)

func TestGojaRunnerCapturesConsoleLog(t *testing.T) {
	r := NewGojaRunner(time.Second)
	result, err := r.Run(context.Background(), `console.log(JSON.stringify({accuracy: 0.9}));`)
	if err != nil {
		t.Fatal(err)
	}
	metrics := result.ParseMetrics()
	if metrics["accuracy"] != 0.9 {
		t.Fatalf("expected accuracy 0.9, got %v", metrics["accuracy"])
	}
}

func TestGojaRunnerTimesOutOnInfiniteLoop(t *testing.T) {
	r := NewGojaRunner(50 * time.Millisecond)
	result, err := r.Run(context.Background(), `while (true) {}`)
	if err != nil {
		t.Fatal(err)
	}
	if !result.TimedOut {
		t.Fatal("expected an infinite loop to time out")
	}
}
