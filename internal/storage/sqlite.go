package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// SQLiteStorage implements VectorStore using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ VectorStore = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys, required for chunk cascade on document delete
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction, committing only if fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Document operations

// ensureDocumentWithQuerier creates the document row if it is missing and
// returns its recorded dimension
func (s *SQLiteStorage) ensureDocumentWithQuerier(ctx context.Context, q querier, documentID string, now int64) (int, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, documentID, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to create document: %w", err)
	}

	var dimension int
	if err := q.QueryRowContext(ctx, "SELECT dimension FROM documents WHERE id = ?", documentID).Scan(&dimension); err != nil {
		return 0, fmt.Errorf("failed to read document dimension: %w", err)
	}
	return dimension, nil
}

func (s *SQLiteStorage) GetFingerprint(ctx context.Context, documentID string) (*Fingerprint, error) {
	query := `
		SELECT content_hash, chunk_count, max_chunk_tokens, overlap_tokens, embedding_model, dimension, updated_at
		FROM documents WHERE id = ?
	`
	fp := &Fingerprint{DocumentID: documentID}
	var hash []byte
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, documentID).Scan(
		&hash, &fp.ChunkCount, &fp.MaxChunkTokens, &fp.OverlapTokens, &fp.Model, &fp.Dimension, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	if len(hash) != len(fp.ContentHash) {
		return nil, ErrNotFound
	}
	copy(fp.ContentHash[:], hash)
	fp.UpdatedAt = fromMillis(updatedAt)
	return fp, nil
}

func (s *SQLiteStorage) PutFingerprint(ctx context.Context, fp *Fingerprint) error {
	now := time.Now()
	query := `
		INSERT INTO documents (id, content_hash, chunk_count, max_chunk_tokens, overlap_tokens, embedding_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			max_chunk_tokens = excluded.max_chunk_tokens,
			overlap_tokens = excluded.overlap_tokens,
			embedding_model = excluded.embedding_model,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		fp.DocumentID, fp.ContentHash[:], fp.ChunkCount, fp.MaxChunkTokens, fp.OverlapTokens, fp.Model,
		toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to put fingerprint: %w", err)
	}
	fp.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, documentID string) error {
	// Chunks go with the document via ON DELETE CASCADE
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Chunk operations

func (s *SQLiteStorage) PutChunks(ctx context.Context, documentID string, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := toMillis(time.Now())
		recorded, err := s.ensureDocumentWithQuerier(ctx, tx, documentID, now)
		if err != nil {
			return err
		}

		dimension, err := checkChunks(documentID, chunks, recorded)
		if err != nil {
			return err
		}

		for _, c := range chunks {
			if err := s.checkPositionWithQuerier(ctx, tx, c); err != nil {
				return err
			}
			if err := s.upsertChunkWithQuerier(ctx, tx, c, now); err != nil {
				return err
			}
		}

		if dimension != recorded {
			_, err := tx.ExecContext(ctx, "UPDATE documents SET dimension = ?, updated_at = ? WHERE id = ?",
				dimension, now, documentID)
			if err != nil {
				return fmt.Errorf("failed to record dimension: %w", err)
			}
		}
		return nil
	})
}

// checkPositionWithQuerier rejects a chunk whose id is stored at another
// position, or whose position is held by another id
func (s *SQLiteStorage) checkPositionWithQuerier(ctx context.Context, q querier, c *types.Chunk) error {
	var doc string
	var chapter, seq int
	err := q.QueryRowContext(ctx,
		"SELECT document_id, chapter_index, sequence_index FROM chunks WHERE id = ?", c.ID,
	).Scan(&doc, &chapter, &seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to look up chunk %s: %w", c.ID, err)
	case doc != c.DocumentID || chapter != c.ChapterIndex || seq != c.SequenceIndex:
		return fmt.Errorf("%w: chunk %s is already stored at another position", ErrPositionConflict, c.ID)
	default:
		return nil
	}

	var holder string
	err = q.QueryRowContext(ctx,
		"SELECT id FROM chunks WHERE document_id = ? AND chapter_index = ? AND sequence_index = ?",
		c.DocumentID, c.ChapterIndex, c.SequenceIndex,
	).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up position %d.%d: %w", c.ChapterIndex, c.SequenceIndex, err)
	}
	return fmt.Errorf("%w: position %d.%d holds chunk %s, not %s",
		ErrPositionConflict, c.ChapterIndex, c.SequenceIndex, holder, c.ID)
}

// upsertChunkWithQuerier writes one chunk; a NULL incoming embedding keeps the stored one
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, c *types.Chunk, now int64) error {
	query := `
		INSERT INTO chunks (id, document_id, chapter_index, chapter_title, sequence_index,
			content, token_count, start_anchor, end_anchor, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chapter_index = excluded.chapter_index,
			chapter_title = excluded.chapter_title,
			sequence_index = excluded.sequence_index,
			content = excluded.content,
			token_count = excluded.token_count,
			start_anchor = excluded.start_anchor,
			end_anchor = excluded.end_anchor,
			embedding = COALESCE(excluded.embedding, chunks.embedding),
			updated_at = excluded.updated_at
	`

	var blob interface{}
	if c.HasEmbedding() {
		blob = EncodeVector(c.Embedding)
	}

	_, err := q.ExecContext(ctx, query,
		c.ID, c.DocumentID, c.ChapterIndex, c.ChapterTitle, c.SequenceIndex,
		c.Content, c.TokenCount, nullString(c.StartAnchor), nullString(c.EndAnchor), blob, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) Scan(ctx context.Context, documentID string) ([]*types.Chunk, error) {
	query := `
		SELECT id, chapter_index, chapter_title, sequence_index, content, token_count,
			start_anchor, end_anchor, embedding
		FROM chunks
		WHERE document_id = ?
		ORDER BY chapter_index, sequence_index
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		c := &types.Chunk{DocumentID: documentID}
		var startAnchor, endAnchor sql.NullString
		var blob []byte
		if err := rows.Scan(&c.ID, &c.ChapterIndex, &c.ChapterTitle, &c.SequenceIndex,
			&c.Content, &c.TokenCount, &startAnchor, &endAnchor, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.StartAnchor = startAnchor.String
		c.EndAnchor = endAnchor.String
		if len(blob) > 0 {
			c.Embedding = DecodeVector(blob)
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

func (s *SQLiteStorage) Count(ctx context.Context, documentID string) (int, int, error) {
	var total, withEmbedding int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(embedding) FROM chunks WHERE document_id = ?", documentID,
	).Scan(&total, &withEmbedding)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return total, withEmbedding, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
