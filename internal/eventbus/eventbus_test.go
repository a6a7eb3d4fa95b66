package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEmitDispatchesToAllHandlersConcurrently(t *testing.T) {
	b := New(nil)
	var count int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		b.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
			return nil
		}))
	}

	b.Emit(context.Background(), Event{Kind: KindStepStarted, RunID: "r1"})
	wg.Wait()

	if atomic.LoadInt32(&count) != 3 {
		t.Fatalf("expected all 3 handlers invoked, got %d", count)
	}
}

func TestEmitIsolatesHandlerErrors(t *testing.T) {
	b := New(nil)
	var secondCalled bool
	var mu sync.Mutex

	b.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		return errors.New("handler one failed")
	}))
	b.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		mu.Lock()
		secondCalled = true
		mu.Unlock()
		return nil
	}))

	b.Emit(context.Background(), Event{Kind: KindWorkflowFailed})

	mu.Lock()
	defer mu.Unlock()
	if !secondCalled {
		t.Fatal("expected the second handler to run despite the first handler's error")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	var called bool
	sub := b.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		called = true
		return nil
	}))
	b.Unsubscribe(sub)

	b.Emit(context.Background(), Event{Kind: KindStepStarted})

	if called {
		t.Fatal("expected no delivery after Unsubscribe")
	}
}

func TestEmitWithNoHandlersReturnsImmediately(t *testing.T) {
	b := New(nil)
	b.Emit(context.Background(), Event{Kind: KindWorkflowCompleted})
}
