// Package embedproto defines the embedding provider contract: a model
// name plus a function from text to a 1536-dimensional vector. Concrete
// providers are wired in by cmd/engine-server; this package fixes only
// the shape both sides agree on.
package embedproto

import "context"

// Dimension is the fixed vector width the entire engine assumes (I6).
const Dimension = 1536

// Provider embeds one text at a time. Implementations are expected to be
// deterministic for a given (model, text) pair.
type Provider interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}
