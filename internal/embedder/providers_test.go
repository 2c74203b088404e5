package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

func newOpenAIServer(t *testing.T, status int, handler func(w http.ResponseWriter, texts []string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		handler(w, body.Input)
	}))
}

func TestHTTPProvider_GenerateBatch(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, func(w http.ResponseWriter, texts []string) {
		// Respond out of order to check index-based ordering
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(texts))
		for i := range texts {
			j := len(texts) - 1 - i
			data[i] = item{Embedding: []float32{float32(j), 1, 0}, Index: j}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data, "model": "m"})
	})
	defer srv.Close()

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", BaseURL: srv.URL, Dimension: 3})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	for i, emb := range resp.Embeddings {
		assert.Equal(t, float32(i), emb.Vector[0])
	}
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, 3, p.Dimension())
}

func TestHTTPProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: types.ErrEmbeddingRateLimited},
		{name: "bad request", status: http.StatusBadRequest, want: types.ErrEmbeddingInvalidInput},
		{name: "too large", status: http.StatusRequestEntityTooLarge, want: types.ErrEmbeddingInvalidInput},
		{name: "server error", status: http.StatusInternalServerError, want: types.ErrEmbeddingUnavailable},
		{name: "bad gateway", status: http.StatusBadGateway, want: types.ErrEmbeddingUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpenAIServer(t, tt.status, nil)
			defer srv.Close()

			p, err := NewJinaProvider(ProviderConfig{APIKey: "test-key", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPProvider_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestHTTPProvider_RequiresAPIKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvJinaAPIKey, "")

	_, err := NewOpenAIProvider(ProviderConfig{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = NewJinaProvider(ProviderConfig{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/embed":
			var req ollamaEmbedRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			out := ollamaEmbedResponse{Model: req.Model}
			for range req.Input {
				out.Embeddings = append(out.Embeddings, []float64{0.5, 0.25})
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL, Dimension: 2})
	require.NoError(t, p.Ping(context.Background()))

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{0.5, 0.25}, resp.Embeddings[1].Vector)
	assert.Equal(t, ProviderOllama, p.Provider())
}

func TestOllamaProvider_PingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	assert.ErrorIs(t, p.Ping(context.Background()), types.ErrEmbeddingUnavailable)
}
