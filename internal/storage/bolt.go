package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

var (
	bucketDocuments = []byte("documents")
	bucketChunks    = []byte("chunks")
	bucketChunkIDs  = []byte("chunk_ids")
)

// BoltStorage implements VectorStore on a bbolt file. Each document owns a
// nested bucket under "chunks" whose keys sort in (chapter, sequence) order.
// "chunk_ids" maps every chunk id to its document and position key.
type BoltStorage struct {
	db *bbolt.DB
}

var _ VectorStore = (*BoltStorage)(nil)

// NewBoltStorage opens or creates the bolt database at path
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketChunks, bucketChunkIDs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Close closes the database file
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

type boltDocMeta struct {
	ContentHash    []byte `json:"content_hash,omitempty"`
	ChunkCount     int    `json:"chunk_count"`
	MaxChunkTokens int    `json:"max_chunk_tokens"`
	OverlapTokens  int    `json:"overlap_tokens"`
	Model          string `json:"embedding_model,omitempty"`
	Dimension      int    `json:"dimension"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

type boltChunk struct {
	ID            string `json:"id"`
	ChapterIndex  int    `json:"chapter_index"`
	ChapterTitle  string `json:"chapter_title"`
	SequenceIndex int    `json:"sequence_index"`
	Content       string `json:"content"`
	TokenCount    int    `json:"token_count"`
	StartAnchor   string `json:"start_anchor,omitempty"`
	EndAnchor     string `json:"end_anchor,omitempty"`
	Embedding     []byte `json:"embedding,omitempty"`
}

// chunkKey encodes the chunk position so cursor order is scan order
func chunkKey(chapterIndex, sequenceIndex int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key[:4], uint32(chapterIndex))
	binary.BigEndian.PutUint32(key[4:], uint32(sequenceIndex))
	return key
}

// chunkOwner is the chunk_ids value: document id, a zero byte, then the position key
func chunkOwner(documentID string, key []byte) []byte {
	owner := make([]byte, 0, len(documentID)+1+len(key))
	owner = append(owner, documentID...)
	owner = append(owner, 0)
	return append(owner, key...)
}

func getDocMeta(tx *bbolt.Tx, documentID string) (*boltDocMeta, error) {
	data := tx.Bucket(bucketDocuments).Get([]byte(documentID))
	if data == nil {
		return nil, nil
	}
	var meta boltDocMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", documentID, err)
	}
	return &meta, nil
}

func putDocMeta(tx *bbolt.Tx, documentID string, meta *boltDocMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketDocuments).Put([]byte(documentID), data)
}

func (s *BoltStorage) PutChunks(ctx context.Context, documentID string, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		now := toMillis(time.Now())
		meta, err := getDocMeta(tx, documentID)
		if err != nil {
			return err
		}
		if meta == nil {
			meta = &boltDocMeta{CreatedAt: now}
		}

		dimension, err := checkChunks(documentID, chunks, meta.Dimension)
		if err != nil {
			return err
		}

		bucket, err := tx.Bucket(bucketChunks).CreateBucketIfNotExists([]byte(documentID))
		if err != nil {
			return fmt.Errorf("failed to create chunk bucket: %w", err)
		}

		ids := tx.Bucket(bucketChunkIDs)

		for _, c := range chunks {
			key := chunkKey(c.ChapterIndex, c.SequenceIndex)
			owner := chunkOwner(documentID, key)
			if prev := ids.Get([]byte(c.ID)); prev != nil && !bytes.Equal(prev, owner) {
				return fmt.Errorf("%w: chunk %s is already stored at another position",
					ErrPositionConflict, c.ID)
			}
			existing := bucket.Get(key)
			if existing != nil {
				var prev struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(existing, &prev); err != nil {
					return fmt.Errorf("failed to decode chunk at %d.%d: %w", c.ChapterIndex, c.SequenceIndex, err)
				}
				if prev.ID != c.ID {
					return fmt.Errorf("%w: position %d.%d holds chunk %s, not %s",
						ErrPositionConflict, c.ChapterIndex, c.SequenceIndex, prev.ID, c.ID)
				}
			}

			rec := boltChunk{
				ID:            c.ID,
				ChapterIndex:  c.ChapterIndex,
				ChapterTitle:  c.ChapterTitle,
				SequenceIndex: c.SequenceIndex,
				Content:       c.Content,
				TokenCount:    c.TokenCount,
				StartAnchor:   c.StartAnchor,
				EndAnchor:     c.EndAnchor,
			}
			if c.HasEmbedding() {
				rec.Embedding = EncodeVector(c.Embedding)
			} else if existing != nil {
				var prev boltChunk
				if err := json.Unmarshal(existing, &prev); err != nil {
					return fmt.Errorf("failed to decode chunk %s: %w", c.ID, err)
				}
				rec.Embedding = prev.Embedding
			}

			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := bucket.Put(key, data); err != nil {
				return fmt.Errorf("failed to put chunk %s: %w", c.ID, err)
			}
			if err := ids.Put([]byte(c.ID), owner); err != nil {
				return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
			}
		}

		meta.Dimension = dimension
		meta.UpdatedAt = now
		return putDocMeta(tx, documentID, meta)
	})
}

func (s *BoltStorage) Scan(ctx context.Context, documentID string) ([]*types.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := make([]*types.Chunk, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketChunks).Bucket([]byte(documentID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec boltChunk
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode chunk: %w", err)
			}
			c := &types.Chunk{
				ID:            rec.ID,
				DocumentID:    documentID,
				ChapterIndex:  rec.ChapterIndex,
				ChapterTitle:  rec.ChapterTitle,
				SequenceIndex: rec.SequenceIndex,
				Content:       rec.Content,
				TokenCount:    rec.TokenCount,
				StartAnchor:   rec.StartAnchor,
				EndAnchor:     rec.EndAnchor,
			}
			if len(rec.Embedding) > 0 {
				c.Embedding = DecodeVector(rec.Embedding)
			}
			chunks = append(chunks, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	return chunks, nil
}

func (s *BoltStorage) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		if bucket := chunks.Bucket([]byte(documentID)); bucket != nil {
			ids := tx.Bucket(bucketChunkIDs)
			err := bucket.ForEach(func(k, v []byte) error {
				var rec struct {
					ID string `json:"id"`
				}
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("failed to decode chunk: %w", err)
				}
				return ids.Delete([]byte(rec.ID))
			})
			if err != nil {
				return err
			}
			if err := chunks.DeleteBucket([]byte(documentID)); err != nil {
				return fmt.Errorf("failed to delete chunks: %w", err)
			}
		}
		return tx.Bucket(bucketDocuments).Delete([]byte(documentID))
	})
}

func (s *BoltStorage) Count(ctx context.Context, documentID string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	var total, withEmbedding int
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketChunks).Bucket([]byte(documentID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec struct {
				Embedding []byte `json:"embedding,omitempty"`
			}
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			total++
			if len(rec.Embedding) > 0 {
				withEmbedding++
			}
			return nil
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return total, withEmbedding, nil
}

func (s *BoltStorage) GetFingerprint(ctx context.Context, documentID string) (*Fingerprint, error) {
	var fp *Fingerprint
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta, err := getDocMeta(tx, documentID)
		if err != nil {
			return err
		}
		if meta == nil || len(meta.ContentHash) != 32 {
			return ErrNotFound
		}
		fp = &Fingerprint{
			DocumentID:     documentID,
			ChunkCount:     meta.ChunkCount,
			MaxChunkTokens: meta.MaxChunkTokens,
			OverlapTokens:  meta.OverlapTokens,
			Model:          meta.Model,
			Dimension:      meta.Dimension,
			UpdatedAt:      fromMillis(meta.UpdatedAt),
		}
		copy(fp.ContentHash[:], meta.ContentHash)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fp, nil
}

func (s *BoltStorage) PutFingerprint(ctx context.Context, fp *Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := getDocMeta(tx, fp.DocumentID)
		if err != nil {
			return err
		}
		if meta == nil {
			meta = &boltDocMeta{CreatedAt: toMillis(now)}
		}
		meta.ContentHash = append([]byte(nil), fp.ContentHash[:]...)
		meta.ChunkCount = fp.ChunkCount
		meta.MaxChunkTokens = fp.MaxChunkTokens
		meta.OverlapTokens = fp.OverlapTokens
		meta.Model = fp.Model
		meta.UpdatedAt = toMillis(now)
		return putDocMeta(tx, fp.DocumentID, meta)
	})
	if err != nil {
		return fmt.Errorf("failed to put fingerprint: %w", err)
	}
	fp.UpdatedAt = now
	return nil
}

func (s *BoltStorage) ListDocuments(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return ids, nil
}
