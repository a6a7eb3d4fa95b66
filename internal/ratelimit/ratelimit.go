// Package ratelimit implements a per-source token bucket limiter on top of
// golang.org/x/time/rate, with blocking and non-blocking acquisition and a
// get-or-create registry keyed by source name.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config describes one source's bucket: capacity is rate * burstMultiplier.
type Config struct {
	RequestsPerSecond float64
	BurstMultiplier   float64
}

func (c Config) burst() int {
	b := int(c.RequestsPerSecond * c.BurstMultiplier)
	if b < 1 {
		b = 1
	}
	return b
}

// Stats reports observability counters for a single limiter.
type Stats struct {
	RequestsMade       int64
	RequestsThrottled  int64
}

// Limiter is a token bucket for a single source. All exported methods are
// safe for concurrent use; the underlying rate.Limiter already serialises
// refill/consume under its own mutex, so acquire order is FIFO per caller
// arrival as guaranteed by golang.org/x/time/rate.
type Limiter struct {
	cfg     Config
	limiter *rate.Limiter

	mu        sync.Mutex
	made      int64
	throttled int64
}

func newLimiter(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.burst()),
	}
}

// Acquire blocks until n tokens are available (or ctx is done) and returns
// the time spent waiting.
func (l *Limiter) Acquire(ctx context.Context, n int) (time.Duration, error) {
	start := time.Now()
	if err := l.limiter.WaitN(ctx, n); err != nil {
		return time.Since(start), err
	}
	l.mu.Lock()
	l.made++
	l.mu.Unlock()
	return time.Since(start), nil
}

// TryAcquire attempts to consume n tokens without blocking.
func (l *Limiter) TryAcquire(n int) bool {
	ok := l.limiter.AllowN(time.Now(), n)
	l.mu.Lock()
	if ok {
		l.made++
	} else {
		l.throttled++
	}
	l.mu.Unlock()
	return ok
}

// Stats returns a snapshot of this limiter's counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{RequestsMade: l.made, RequestsThrottled: l.throttled}
}

// Registry owns one Limiter per source, created on first use.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// GetOrCreate returns the limiter for source, creating it from cfg if it
// does not exist yet. A second call for the same source with a different
// cfg still returns the original instance.
func (r *Registry) GetOrCreate(source string, cfg Config) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[source]; ok {
		return l
	}
	l := newLimiter(cfg)
	r.limiters[source] = l
	return l
}

// Get returns the limiter for source if it has already been created.
func (r *Registry) Get(source string) (*Limiter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[source]
	return l, ok
}
