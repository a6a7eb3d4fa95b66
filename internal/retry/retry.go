// Package retry implements the backoff-and-retry policy shared by every
// outbound call in the engine. It retries only outcomes the apperrors
// taxonomy marks retryable, honouring a server-provided retry-after hint
// when present.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/logging"
)

// Policy configures backoff and the retry budget.
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64 // 0-1
	MaxRetries     int
}

// DefaultPolicy returns a conservative general-purpose policy.
func DefaultPolicy() Policy {
	return Policy{
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		MaxRetries:     3,
	}
}

// Do runs op, retrying on retryable failures per policy. source is used
// only for logging. It returns the last error seen if all attempts fail.
func Do(ctx context.Context, log *logging.Logger, source string, policy Policy, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !apperrors.Retryable(err) {
			return err
		}
		if attempt == policy.MaxRetries {
			break
		}

		backoff := nextBackoff(policy, attempt)
		if aerr, ok := asAppError(err); ok && aerr.RetryAfter > 0 {
			backoff = time.Duration(aerr.RetryAfter * float64(time.Second))
		}

		if log != nil {
			log.WithFields(map[string]interface{}{
				"source":  source,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
				"error":   err.Error(),
			}).Info("retrying after failure")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}

func nextBackoff(p Policy, attempt int) time.Duration {
	raw := float64(p.InitialBackoff) * pow(p.Multiplier, attempt)
	if max := float64(p.MaxBackoff); raw > max {
		raw = max
	}
	jitter := 1 + rand.Float64()*p.JitterFraction
	return time.Duration(raw * jitter)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func asAppError(err error) (*apperrors.Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if ae, ok := e.(*apperrors.Error); ok {
			return ae, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			return nil, false
		}
		e = u.Unwrap()
	}
	return nil, false
}
