// Package eventbus is an in-process, asynchronous publish/subscribe bus
// that decouples workflow state transitions from their transports (the
// WebSocket bridge, structured logs). Handlers are invoked concurrently on
// every Emit; a handler's error is logged but never reaches the emitter or
// blocks its sibling handlers.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/scigraph/engine/internal/logging"
)

// Kind is the closed set of event kinds a workflow run can emit.
type Kind string

const (
	KindStepStarted        Kind = "step_started"
	KindStepCompleted      Kind = "step_completed"
	KindCheckpointReached  Kind = "checkpoint_reached"
	KindCheckpointResolved Kind = "checkpoint_resolved"
	KindWorkflowCompleted  Kind = "workflow_completed"
	KindWorkflowFailed     Kind = "workflow_failed"
	KindWorkflowCancelled  Kind = "workflow_cancelled"
)

// Event is one occurrence on a workflow run's timeline.
type Event struct {
	Kind      Kind
	RunID     string
	Node      string
	Data      map[string]interface{}
	Error     string
	Timestamp time.Time
}

// Handler reacts to an Event. A returned error is logged, never propagated.
type Handler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus is the process-wide singleton pub/sub registry. It owns one mutex
// guarding its handler set; handler dispatch itself holds no lock.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	log      *logging.Logger
}

// New builds an empty Bus.
func New(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.NewDefault("eventbus")
	}
	return &Bus{handlers: make(map[int]Handler), log: log}
}

// Subscription identifies a registered handler for Unsubscribe.
type Subscription int

// Subscribe registers handler and returns a token for Unsubscribe.
func (b *Bus) Subscribe(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return Subscription(id)
}

// Unsubscribe removes a previously registered handler. A no-op if the
// subscription was already removed.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, int(sub))
}

// Emit dispatches event to every subscribed handler concurrently and waits
// for all of them to finish. A handler's error is logged, not returned,
// and does not stop delivery to any other handler.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.WithField("panic", r).Error("eventbus: handler panicked, isolated")
				}
			}()
			if err := h.HandleEvent(ctx, event); err != nil {
				b.log.WithField("kind", event.Kind).WithField("run_id", event.RunID).WithField("error", err).Warn("eventbus: handler returned an error")
			}
		}(h)
	}
	wg.Wait()
}
