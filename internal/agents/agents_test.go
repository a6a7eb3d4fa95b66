package agents

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/scigraph/engine/internal/sandbox"
)

// fakeLLM is a test double for llm.Client driven by a queue of canned
// structured responses and a single canned Complete response.
type fakeLLM struct {
	completeResp string
	completeErr  error
	structured   []byte
	structuredErr error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completeResp, nil
}

func (f *fakeLLM) Structured(ctx context.Context, prompt string, schema string, out interface{}) error {
	if f.structuredErr != nil {
		return f.structuredErr
	}
	return json.Unmarshal(f.structured, out)
}

// fakeSandbox is a test double for sandbox.Runner returning a canned Result.
type fakeSandbox struct {
	result sandbox.Result
	err    error
}

func (f *fakeSandbox) Run(ctx context.Context, script string) (sandbox.Result, error) {
	return f.result, f.err
}

var errBoom = errors.New("boom")
