package types

import "errors"

// Errors surfaced by the vectorization and retrieval engine. Callers match
// them with errors.Is; implementations wrap them with context.
var (
	// Document source errors
	ErrDocumentUnreadable = errors.New("document unreadable")

	// Embedding capability errors
	ErrEmbeddingUnavailable  = errors.New("embedding service unavailable")
	ErrEmbeddingRateLimited  = errors.New("embedding service rate limited")
	ErrEmbeddingInvalidInput = errors.New("embedding input rejected")

	// Coordination errors
	ErrAlreadyRunning = errors.New("vectorization already running")

	// Search request errors
	ErrInvalidSearchMode = errors.New("invalid search mode")
	ErrInvalidTopK       = errors.New("top_k must be >= 1")
	ErrEmptyQuery        = errors.New("query cannot be empty")

	// Validation errors
	ErrEmptyContent = errors.New("content cannot be empty")
)
