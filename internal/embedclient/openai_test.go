package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, vector []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: vector}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestProvider(baseURL string) *Provider {
	p := New("key", "text-embedding-3-small")
	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = baseURL
	p.api = openai.NewClientWithConfig(cfg)
	return p
}

func TestModelReturnsConfiguredModelName(t *testing.T) {
	p := New("key", "text-embedding-3-small")
	assert.Equal(t, "text-embedding-3-small", p.Model())
}

func TestEmbedReturnsVectorFromResponse(t *testing.T) {
	want := make([]float32, 1536)
	want[0] = 0.5
	server := embeddingServer(t, want)
	defer server.Close()

	p := newTestProvider(server.URL)
	got, err := p.Embed(context.Background(), "some research problem statement")
	require.NoError(t, err)
	require.Len(t, got, len(want))
	assert.Equal(t, want[0], got[0])
}

func TestEmbedReturnsErrorOnEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.EmbeddingResponse{Data: nil}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestEmbedWrapsTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.Embed(context.Background(), "text")
	assert.Error(t, err)
}
