// Package embedder generates vector embeddings for document chunks.
//
// Providers (Jina AI, OpenAI, Ollama and an offline local model) implement the
// Embedder interface. Client wraps a provider with the behavior the
// vectorization pipeline relies on: batching limits, per-call timeouts,
// bounded retries on rate limits, output validation and an LRU vector cache.
//
// # Basic Usage
//
//	client, err := embedder.New(embedder.Config{Provider: embedder.ProviderOpenAI})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	vectors, err := client.EmbedBatch(ctx, []string{chunk1.Content, chunk2.Content})
//
// Vectors come back in input order and are normalized to unit length.
//
// # Errors
//
// Provider failures are classified onto the engine's error sentinels:
//
//   - HTTP 429 wraps types.ErrEmbeddingRateLimited and is retried with
//     exponential backoff (default 5 attempts, 200ms doubling to 10s)
//   - HTTP 400, 413 and 422 wrap types.ErrEmbeddingInvalidInput
//   - transport errors, timeouts and 5xx wrap types.ErrEmbeddingUnavailable
//
// Only rate limits are retried. Everything else is returned immediately so
// that the caller can record the failure.
//
// # Provider Selection
//
// NewFromEnv selects a provider based on environment variables:
//
//  1. If READANY_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → fallback to local provider (offline mode)
//
// # Throttling
//
// Setting ClientConfig.RequestsPerSecond installs a token bucket limiter
// (golang.org/x/time/rate) in front of every provider attempt, which keeps
// long vectorization runs below a provider's published quota.
package embedder
