package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewStoresModelWithEmptyBaseURL(t *testing.T) {
	c := New("key", "gpt-4o-mini", "")
	assert.Equal(t, "gpt-4o-mini", c.model)
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	server := chatCompletionServer(t, "hello world")
	defer server.Close()

	c := New("key", "gpt-4o-mini", server.URL)
	got, err := c.Complete(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestCompleteWrapsTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New("key", "gpt-4o-mini", server.URL)
	_, err := c.Complete(context.Background(), "say hi")
	assert.Error(t, err)
}

func TestStructuredDecodesJSONResponseIntoOut(t *testing.T) {
	server := chatCompletionServer(t, `{"answer": 42}`)
	defer server.Close()

	c := New("key", "gpt-4o-mini", server.URL)
	var out struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, c.Structured(context.Background(), "what is the answer", `{"answer": "int"}`, &out))
	assert.Equal(t, 42, out.Answer)
}

func TestStructuredEmbedsSchemaInPrompt(t *testing.T) {
	var capturedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) > 0 {
			capturedBody = req.Messages[0].Content
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{}`}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New("key", "gpt-4o-mini", server.URL)
	schema := `{"type": "object"}`
	var out map[string]interface{}
	require.NoError(t, c.Structured(context.Background(), "prompt text", schema, &out))
	assert.True(t, strings.Contains(capturedBody, schema), "expected request body to embed schema, got: %s", capturedBody)
}

func TestStructuredReturnsErrorOnInvalidJSON(t *testing.T) {
	server := chatCompletionServer(t, "not json")
	defer server.Close()

	c := New("key", "gpt-4o-mini", server.URL)
	var out map[string]interface{}
	err := c.Structured(context.Background(), "prompt", "{}", &out)
	assert.Error(t, err)
}

func TestCompleteReturnsErrorOnEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{Choices: nil}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New("key", "gpt-4o-mini", server.URL)
	_, err := c.Complete(context.Background(), "say hi")
	assert.Error(t, err, "expected error on empty choices")
}
