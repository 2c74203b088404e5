package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// scriptedEmbedder implements Embedder, failing its first calls with the
// queued errors and then returning constant vectors
type scriptedEmbedder struct {
	dimension int
	failures  []error
	wrongDim  bool
	short     bool
	callCount int
	texts     [][]string
	mu        sync.Mutex
}

func (s *scriptedEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	resp, err := s.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (s *scriptedEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	s.texts = append(s.texts, req.Texts)
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}

	n := len(req.Texts)
	if s.short {
		n--
	}
	dim := s.dimension
	if s.wrongDim {
		dim++
	}
	out := make([]*Embedding, n)
	for i := range out {
		vec := make([]float32, dim)
		vec[0] = 2
		out[i] = &Embedding{Vector: vec, Dimension: dim}
	}
	return &BatchEmbeddingResponse{Embeddings: out}, nil
}

func (s *scriptedEmbedder) Dimension() int   { return s.dimension }
func (s *scriptedEmbedder) Provider() string { return "scripted" }
func (s *scriptedEmbedder) Model() string    { return "scripted-v1" }
func (s *scriptedEmbedder) Close() error     { return nil }

func (s *scriptedEmbedder) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestClient_EmbedBatch(t *testing.T) {
	emb := &scriptedEmbedder{dimension: 4}
	c := NewClient(emb, ClientConfig{Retry: fastRetry()})

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		assert.Len(t, v, 4)
		assert.InDelta(t, 1.0, v[0], 1e-6, "vectors are normalized")
	}
}

func TestClient_EmptyBatch(t *testing.T) {
	emb := &scriptedEmbedder{dimension: 4}
	c := NewClient(emb, ClientConfig{})

	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, 0, emb.calls())
}

func TestClient_RetriesRateLimit(t *testing.T) {
	rateLimited := fmt.Errorf("%w: api error 429", types.ErrEmbeddingRateLimited)
	emb := &scriptedEmbedder{dimension: 2, failures: []error{rateLimited, rateLimited}}
	c := NewClient(emb, ClientConfig{Retry: fastRetry()})

	vectors, err := c.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 3, emb.calls())
}

func TestClient_RateLimitExhausted(t *testing.T) {
	rateLimited := fmt.Errorf("%w: api error 429", types.ErrEmbeddingRateLimited)
	emb := &scriptedEmbedder{dimension: 2, failures: []error{rateLimited, rateLimited, rateLimited, rateLimited}}
	c := NewClient(emb, ClientConfig{Retry: fastRetry()})

	_, err := c.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, types.ErrEmbeddingRateLimited)
	assert.Equal(t, 3, emb.calls())
}

func TestClient_DoesNotRetryOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unavailable", err: fmt.Errorf("%w: api error 503", types.ErrEmbeddingUnavailable)},
		{name: "invalid input", err: fmt.Errorf("%w: api error 400", types.ErrEmbeddingInvalidInput)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &scriptedEmbedder{dimension: 2, failures: []error{tt.err}}
			c := NewClient(emb, ClientConfig{Retry: fastRetry()})

			_, err := c.EmbedBatch(context.Background(), []string{"a"})
			assert.True(t, errors.Is(err, tt.err))
			assert.Equal(t, 1, emb.calls())
		})
	}
}

func TestClient_ValidatesOutput(t *testing.T) {
	t.Run("wrong dimension", func(t *testing.T) {
		c := NewClient(&scriptedEmbedder{dimension: 3, wrongDim: true}, ClientConfig{})
		_, err := c.EmbedBatch(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	})

	t.Run("missing vectors", func(t *testing.T) {
		c := NewClient(&scriptedEmbedder{dimension: 3, short: true}, ClientConfig{})
		_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
	})
}

func TestClient_RejectsBadInput(t *testing.T) {
	c := NewClient(&scriptedEmbedder{dimension: 2}, ClientConfig{BatchLimit: 2})

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = c.EmbedBatch(context.Background(), []string{"a", " "})
	assert.ErrorIs(t, err, types.ErrEmbeddingInvalidInput)
}

func TestClient_CachesVectors(t *testing.T) {
	emb := &scriptedEmbedder{dimension: 2}
	c := NewClient(emb, ClientConfig{})

	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = c.EmbedBatch(context.Background(), []string{"b", "c"})
	require.NoError(t, err)

	require.Equal(t, 2, emb.calls())
	assert.Equal(t, []string{"c"}, emb.texts[1], "only uncached texts reach the provider")
	assert.Equal(t, 3, c.CacheSize())
}

func TestClient_CacheDisabled(t *testing.T) {
	emb := &scriptedEmbedder{dimension: 2}
	c := NewClient(emb, ClientConfig{CacheSize: -1})

	_, _ = c.EmbedBatch(context.Background(), []string{"a"})
	_, _ = c.EmbedBatch(context.Background(), []string{"a"})
	assert.Equal(t, 2, emb.calls())
	assert.Equal(t, 0, c.CacheSize())
}

func TestClient_ContextCancelled(t *testing.T) {
	rateLimited := fmt.Errorf("%w", types.ErrEmbeddingRateLimited)
	emb := &scriptedEmbedder{dimension: 2, failures: []error{rateLimited, rateLimited, rateLimited}}
	c := NewClient(emb, ClientConfig{Retry: RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, emb.calls())
}

func TestClient_Throttle(t *testing.T) {
	emb := &scriptedEmbedder{dimension: 2}
	c := NewClient(emb, ClientConfig{RequestsPerSecond: 50, Burst: 1, CacheSize: -1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.EmbedBatch(context.Background(), []string{"a"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestClient_EmbedQuery(t *testing.T) {
	c := NewClient(NewLocalProvider(16), ClientConfig{})
	vec, err := c.EmbedQuery(context.Background(), "where is the whale")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	assert.Equal(t, 16, c.Dimension())
	assert.Equal(t, ProviderLocal, c.Provider())
}
