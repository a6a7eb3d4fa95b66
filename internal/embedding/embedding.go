// Package embedding batches calls to an embedproto.Provider, applying the
// shared retry policy and fixing the deterministic text protocol used to
// embed a Problem.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/scigraph/engine/internal/embedproto"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/retry"
)

// Service wraps a Provider with batching and retry.
type Service struct {
	provider  embedproto.Provider
	batchSize int
	policy    retry.Policy
	log       *logging.Logger
}

// New builds a Service. batchSize <= 0 defaults to 64.
func New(provider embedproto.Provider, batchSize int, policy retry.Policy, log *logging.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Service{provider: provider, batchSize: batchSize, policy: policy, log: log}
}

// Embed embeds a single text, retrying transient provider failures.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, s.log, "embedding:"+s.provider.Model(), s.policy, func() error {
		v, err := s.provider.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	return vec, err
}

// EmbedBatch embeds texts in input order, splitting into chunks of at
// most batchSize. A nil entry in the result marks an input that could not
// be embedded after retries; other inputs in the same or other chunks are
// unaffected.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		for i := start; i < end; i++ {
			vec, err := s.Embed(ctx, texts[i])
			if err != nil {
				out[i] = nil
				continue
			}
			out[i] = vec
		}
	}
	return out
}

// ProblemEmbeddingText fixes the deterministic text protocol for
// embedding a Problem: "[Domain: D] STATEMENT Assumptions: A1; A2; A3"
// using at most the first three assumptions. Recomputed embeddings stay
// stable across engine versions only if this function never changes.
func ProblemEmbeddingText(domain, statement string, assumptions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Domain: %s] %s", domain, statement)
	if len(assumptions) > 0 {
		n := len(assumptions)
		if n > 3 {
			n = 3
		}
		b.WriteString(" Assumptions: ")
		b.WriteString(strings.Join(assumptions[:n], "; "))
	}
	return b.String()
}
