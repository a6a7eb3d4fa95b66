// Package llm defines the typed-output contract every LLM-backed
// component (problem extraction, ranking, continuation, evaluation,
// synthesis) depends on. No concrete provider is implemented here: per
// the engine's scope, the model backing this contract is an external
// collaborator wired in by cmd/engine-server.
package llm

import "context"

// Client is the contract research agents and extractors call through.
// Complete asks for free-form text completion; Structured asks for a
// JSON object matching schema and unmarshals it into out.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Structured(ctx context.Context, prompt string, schema string, out interface{}) error
}

// ExtractJSONObject (extract_json.go) is available to implementations of
// Client that must defensively scan a free-text completion for an
// embedded JSON object before structured decoding; internal/llmclient
// does not call it and decodes the response body directly. See
// internal/sandbox for the gjson-based scan of sandboxed stdout.
