// Package storage persists document chunks and their embeddings.
//
// Two VectorStore implementations are provided:
//   - SQLiteStorage: a single SQLite file with versioned migrations
//   - BoltStorage: a bbolt key/value file with one nested bucket per document
//
// Both order chunks by (chapter index, sequence index), keep an existing
// embedding when a chunk is rewritten without one, and reject embeddings whose
// length differs from the dimension already recorded for the document.
//
// # Database Schema
//
// Tables (SQLite):
//   - schema_version: applied migration versions
//   - documents: per-document fingerprint and embedding dimension
//   - chunks: chunk text, location, anchors and little-endian float32 embedding blob
//
// Deleting a row from documents cascades to its chunks.
//
// # Basic Usage
//
//	store, err := storage.Open(storage.DriverSQLite, "~/.readany/vectors.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.PutChunks(ctx, "book-1", chunks); err != nil {
//	    log.Fatal(err)
//	}
//
//	stored, err := store.Scan(ctx, "book-1")
//
// # Build Modes
//
// The SQLite driver is chosen at build time:
//
//	CGO_ENABLED=0 go build -tags purego ./...     // modernc.org/sqlite
//	CGO_ENABLED=1 go build -tags sqlite_vec ./... // github.com/mattn/go-sqlite3
//
// Similarity is computed in Go by CosineSimilarity in both modes.
//
// # Concurrency
//
// Stores are safe for concurrent use. SQLite runs with WAL journaling and a
// single connection, bbolt serializes writers and allows concurrent readers.
package storage
