package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when an embedding's length differs from
	// the dimension already recorded for its document
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDocumentMismatch is returned when a chunk belongs to another document
	ErrDocumentMismatch = errors.New("chunk belongs to a different document")
	// ErrPositionConflict is returned when a write would give a chunk id a
	// second position or put a second id at an occupied position
	ErrPositionConflict = errors.New("chunk position conflict")
	// ErrUnsupportedDriver is returned by Open for unknown driver names
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)

// Storage drivers accepted by Open
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// VectorStore persists chunks and their embeddings per document
type VectorStore interface {
	// PutChunks upserts chunks by ID in a single transaction. A chunk without
	// an embedding never clears an embedding that is already stored. An id is
	// bound to one (chapter, sequence) position; a batch that breaks the
	// binding fails with ErrPositionConflict and nothing is written.
	PutChunks(ctx context.Context, documentID string, chunks []*types.Chunk) error

	// Scan returns all chunks of a document ordered by (chapter, sequence).
	// An unknown document yields an empty slice.
	Scan(ctx context.Context, documentID string) ([]*types.Chunk, error)

	// DeleteDocument removes a document and all of its chunks
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks and how many carry an embedding
	Count(ctx context.Context, documentID string) (total, withEmbedding int, err error)

	// Fingerprint operations, used to resume interrupted runs
	GetFingerprint(ctx context.Context, documentID string) (*Fingerprint, error)
	PutFingerprint(ctx context.Context, fp *Fingerprint) error

	// ListDocuments returns the ids of all stored documents in lexical order
	ListDocuments(ctx context.Context) ([]string, error)

	Close() error
}

// Fingerprint records what a document's stored chunk set was built from
type Fingerprint struct {
	DocumentID     string
	ContentHash    [32]byte
	ChunkCount     int
	MaxChunkTokens int
	OverlapTokens  int
	Model          string // Embedding model identity, e.g. "openai/text-embedding-3-small"
	Dimension      int    // 0 until the first embedding is stored
	UpdatedAt      time.Time
}

// Open creates the store for driver at path. Parent directories are created
// for file-backed paths.
func Open(driver, path string) (VectorStore, error) {
	if path != ":memory:" && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		return NewSQLiteStorage(path)
	case DriverBolt:
		return NewBoltStorage(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

// checkChunks validates a write batch against its document and the recorded
// dimension, returning the dimension after the write
func checkChunks(documentID string, chunks []*types.Chunk, dimension int) (int, error) {
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return dimension, fmt.Errorf("%w: chunk %s has document %q, expected %q",
				ErrDocumentMismatch, c.ID, c.DocumentID, documentID)
		}
		if err := c.Validate(); err != nil {
			return dimension, fmt.Errorf("invalid chunk %s: %w", c.ID, err)
		}
		if !c.HasEmbedding() {
			continue
		}
		if dimension == 0 {
			dimension = len(c.Embedding)
		} else if len(c.Embedding) != dimension {
			return dimension, fmt.Errorf("%w: chunk %s has %d values, document uses %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), dimension)
		}
	}
	return dimension, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
