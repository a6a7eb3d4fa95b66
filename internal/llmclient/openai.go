// Package llmclient implements llm.Client against an OpenAI-compatible
// chat completions API. It is the one concrete collaborator behind the
// engine's LLM contract; everything upstream (extractors, research agents)
// depends only on llm.Client.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scigraph/engine/internal/apperrors"
	"github.com/scigraph/engine/internal/llm"
)

// Client adapts an OpenAI chat completions client to llm.Client.
type Client struct {
	api   *openai.Client
	model string
}

// New builds a Client for model, authenticating with apiKey. baseURL may be
// empty to use the default OpenAI endpoint, or point at any
// OpenAI-compatible gateway.
func New(apiKey, model, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

var _ llm.Client = (*Client)(nil)

// Complete asks for a free-form single-turn completion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.LLMError, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.LLMError, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Structured asks for a JSON object matching schema (embedded in the
// prompt, since JSON-mode constrains syntax but not shape) and decodes the
// model's response into out.
func (c *Client) Structured(ctx context.Context, prompt, schema string, out interface{}) error {
	fullPrompt := fmt.Sprintf("%s\n\nRespond with ONLY a JSON object matching this schema:\n%s", prompt, schema)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: fullPrompt}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return apperrors.Wrap(apperrors.LLMError, "structured chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return apperrors.New(apperrors.LLMError, "structured chat completion returned no choices")
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return apperrors.Wrap(apperrors.LLMError, "decode structured response", err)
	}
	return nil
}
