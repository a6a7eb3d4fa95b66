// Package breaker implements a circuit breaker that exposes only check,
// record_success, record_failure, and stats: it never wraps the call
// itself, so a caller such as the retry engine remains free to interpret
// outcomes (including deciding whether a given error counts as a failure
// at all) before reporting back.
package breaker

import (
	"sync"
	"time"

	"github.com/scigraph/engine/internal/apperrors"
)

// State is one of closed, open, half_open.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Config controls the thresholds and cooldown governing state transitions.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Stats reports observability counters.
type Stats struct {
	State             State
	ConsecutiveFails  int
	ConsecutiveOK     int
	LastFailure       time.Time
	LastStateChangeAt time.Time
}

// Breaker is a single named circuit's state machine.
type Breaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	changedAt   time.Time
}

// New constructs a Breaker starting in the closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), state: Closed, changedAt: time.Now()}
}

// Check reports whether a caller may proceed. It never runs the call
// itself: a closed or half-open breaker returns nil (go ahead); an open
// breaker whose cooldown has elapsed transitions to half-open and returns
// nil for exactly the call that observes the transition; otherwise it
// returns a circuit_open error.
func (b *Breaker) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.lastFailure) >= b.cfg.Cooldown {
			b.setState(HalfOpen)
			return nil
		}
		return apperrors.New(apperrors.CircuitOpen, "circuit is open").
			WithRetryAfter((b.cfg.Cooldown - time.Since(b.lastFailure)).Seconds())
	default:
		return nil
	}
}

// RecordSuccess reports a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.setState(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

// RecordFailure reports a failed call outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()

	switch b.state {
	case HalfOpen:
		b.setState(Open)
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.setState(Open)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:             b.state,
		ConsecutiveFails:  b.failures,
		ConsecutiveOK:     b.successes,
		LastFailure:       b.lastFailure,
		LastStateChangeAt: b.changedAt,
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.failures = 0
	b.successes = 0
	b.changedAt = time.Now()
}

// Registry owns one Breaker per source, created on first use.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// GetOrCreate returns the breaker for source, creating it from cfg if it
// does not exist yet.
func (r *Registry) GetOrCreate(source string, cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[source]; ok {
		return b
	}
	b := New(cfg)
	r.breakers[source] = b
	return b
}
