// Package embedclient implements embedproto.Provider against OpenAI's
// embeddings endpoint, the concrete collaborator behind the engine's
// embedding contract.
package embedclient

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/embedproto"
)

// Provider adapts an OpenAI embeddings client to embedproto.Provider.
type Provider struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

// New builds a Provider for model (e.g. "text-embedding-3-large"),
// authenticating with apiKey.
func New(apiKey, model string) *Provider {
	return &Provider{api: openai.NewClient(apiKey), model: openai.EmbeddingModel(model)}
}

var _ embedproto.Provider = (*Provider)(nil)

// Model returns the embedding model name this Provider was built with.
func (p *Provider) Model() string { return string(p.model) }

// Embed returns text's 1536-dimensional embedding.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: p.model,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.LLMError, "create embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.New(apperrors.LLMError, "embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}
