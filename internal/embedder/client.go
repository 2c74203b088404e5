package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// ClientConfig controls batching, retry, throttling and caching around an Embedder
type ClientConfig struct {
	BatchLimit        int           // Max texts per call (default: DefaultBatchSize, capped at MaxBatchSize)
	Timeout           time.Duration // Per-attempt deadline (default: DefaultTimeout)
	Retry             RetryConfig   // Backoff applied to rate-limited calls only
	RequestsPerSecond float64       // Proactive throttle, 0 disables
	Burst             int           // Throttle burst (default: 1)
	CacheSize         int           // LRU entries, negative disables the cache
}

// Client is the engine-facing embedding client. It turns an Embedder into a
// position-preserving EmbedBatch with bounded retries on rate limits, output
// validation and unit-length vectors.
type Client struct {
	embedder Embedder
	cfg      ClientConfig
	cache    *Cache
	limiter  *rate.Limiter
}

// NewClient wraps e. Zero config fields take their defaults.
func NewClient(e Embedder, cfg ClientConfig) *Client {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchSize
	}
	if cfg.BatchLimit > MaxBatchSize {
		cfg.BatchLimit = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Retry = cfg.Retry.withDefaults()

	c := &Client{
		embedder: e,
		cfg:      cfg,
	}
	if cfg.CacheSize >= 0 {
		c.cache = NewCache(cfg.CacheSize)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// EmbedBatch returns one unit-length vector per text, in input order.
// Rate-limited calls are retried with backoff; every other failure is returned
// at once.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > c.cfg.BatchLimit {
		return nil, fmt.Errorf("%w: %d texts, limit %d", ErrBatchTooLarge, len(texts), c.cfg.BatchLimit)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", types.ErrEmbeddingInvalidInput, i)
		}
	}

	vectors := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		hashes[i] = ComputeHash(text)
		if c.cache != nil {
			if vec, ok := c.cache.Get(hashes[i]); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	req := BatchEmbeddingRequest{Texts: make([]string, len(missing))}
	for j, i := range missing {
		req.Texts[j] = texts[i]
	}

	resp, err := retryWithBackoff(ctx, c.cfg.Retry, isRateLimited, func() (*BatchEmbeddingResponse, error) {
		return c.call(ctx, req)
	})
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.cfg.Retry.MaxAttempts, err)
		}
		return nil, err
	}

	if len(resp.Embeddings) != len(missing) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts",
			types.ErrEmbeddingUnavailable, len(resp.Embeddings), len(missing))
	}

	dim := c.embedder.Dimension()
	for j, i := range missing {
		emb := resp.Embeddings[j]
		if emb == nil || len(emb.Vector) != dim {
			got := 0
			if emb != nil {
				got = len(emb.Vector)
			}
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				types.ErrEmbeddingUnavailable, j, got, dim)
		}
		vec := NormalizeVector(emb.Vector)
		vectors[i] = vec
		if c.cache != nil {
			c.cache.Set(hashes[i], vec)
		}
	}

	return vectors, nil
}

// call performs a single throttled, time-bounded provider attempt
func (c *Client) call(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return c.embedder.GenerateBatch(attemptCtx, req)
}

// EmbedQuery embeds a single search query
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the vector length produced by the underlying provider
func (c *Client) Dimension() int {
	return c.embedder.Dimension()
}

// BatchLimit returns the maximum number of texts accepted per EmbedBatch call
func (c *Client) BatchLimit() int {
	return c.cfg.BatchLimit
}

// Provider returns the provider name
func (c *Client) Provider() string {
	return c.embedder.Provider()
}

// Model returns the model name
func (c *Client) Model() string {
	return c.embedder.Model()
}

// CacheSize returns the number of cached vectors
func (c *Client) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Size()
}

// Close releases the underlying provider
func (c *Client) Close() error {
	return c.embedder.Close()
}
