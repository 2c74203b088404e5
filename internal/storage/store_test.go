package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// storeFactories lets every contract test run against each implementation
var storeFactories = map[string]func(t *testing.T) VectorStore{
	"sqlite": func(t *testing.T) VectorStore {
		s, err := NewSQLiteStorage(":memory:")
		require.NoError(t, err)
		return s
	},
	"bolt": func(t *testing.T) VectorStore {
		s, err := NewBoltStorage(filepath.Join(t.TempDir(), "chunks.db"))
		require.NoError(t, err)
		return s
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, store VectorStore)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()
			fn(t, store)
		})
	}
}

func makeChunk(doc string, chapter, seq int, embedding []float32) *types.Chunk {
	return &types.Chunk{
		ID:            types.ChunkID(doc, chapter, seq),
		DocumentID:    doc,
		ChapterIndex:  chapter,
		ChapterTitle:  fmt.Sprintf("Chapter %d", chapter+1),
		SequenceIndex: seq,
		Content:       fmt.Sprintf("content %d.%d", chapter, seq),
		TokenCount:    2,
		Embedding:     embedding,
	}
}

func TestStore_PutAndScanOrdered(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()

		// Insert out of order across two calls, with one repeated chunk
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{
			makeChunk("doc", 1, 0, nil),
			makeChunk("doc", 0, 1, nil),
		}))
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{
			makeChunk("doc", 0, 0, nil),
			makeChunk("doc", 0, 1, nil),
			makeChunk("doc", 10, 0, nil),
		}))

		chunks, err := store.Scan(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, chunks, 4)

		positions := make([][2]int, len(chunks))
		for i, c := range chunks {
			positions[i] = [2]int{c.ChapterIndex, c.SequenceIndex}
			assert.Equal(t, "doc", c.DocumentID)
			assert.Equal(t, types.ChunkID("doc", c.ChapterIndex, c.SequenceIndex), c.ID)
		}
		assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {1, 0}, {10, 0}}, positions)
	})
}

func TestStore_ScanUnknownDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		chunks, err := store.Scan(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		total, embedded, err := store.Count(context.Background(), "missing")
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Zero(t, embedded)
	})
}

func TestStore_EmbeddingPreservedOnNilUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		vec := []float32{0.1, 0.2, 0.3}

		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, 0, vec)}))
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, 0, nil)}))

		chunks, err := store.Scan(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, vec, chunks[0].Embedding)

		// A present embedding overwrites
		replacement := []float32{0.9, 0.8, 0.7}
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, 0, replacement)}))
		chunks, err = store.Scan(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, replacement, chunks[0].Embedding)
	})
}

func TestStore_Count(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{
			makeChunk("doc", 0, 0, []float32{1, 0}),
			makeChunk("doc", 0, 1, nil),
			makeChunk("doc", 0, 2, []float32{0, 1}),
		}))

		total, embedded, err := store.Count(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, 2, embedded)
	})
}

func TestStore_DimensionMismatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, 0, []float32{1, 2, 3})}))

		err := store.PutChunks(ctx, "doc", []*types.Chunk{
			makeChunk("doc", 0, 1, []float32{1, 2, 3}),
			makeChunk("doc", 0, 2, []float32{1, 2}),
		})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		// The rejected batch is rolled back as a whole
		total, _, err := store.Count(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		// Another document has its own dimension
		assert.NoError(t, store.PutChunks(ctx, "other", []*types.Chunk{makeChunk("other", 0, 0, []float32{1, 2})}))
	})
}

func TestStore_DimensionMismatchWithinBatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		err := store.PutChunks(context.Background(), "doc", []*types.Chunk{
			makeChunk("doc", 0, 0, []float32{1, 2, 3}),
			makeChunk("doc", 0, 1, []float32{1, 2}),
		})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestStore_RejectsForeignChunk(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		err := store.PutChunks(context.Background(), "doc", []*types.Chunk{makeChunk("other", 0, 0, nil)})
		assert.ErrorIs(t, err, ErrDocumentMismatch)
	})
}

func TestStore_RejectsInvalidChunk(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		c := makeChunk("doc", 0, 0, nil)
		c.Content = ""
		err := store.PutChunks(context.Background(), "doc", []*types.Chunk{c})
		assert.ErrorIs(t, err, types.ErrEmptyContent)
	})
}

func TestStore_PositionConflict(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		original := makeChunk("doc", 0, 0, []float32{1, 0})
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{original}))

		// Another id at an occupied position
		intruder := makeChunk("doc", 0, 0, nil)
		intruder.ID = types.ChunkID("doc", 9, 9)
		err := store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, 1, nil), intruder})
		assert.ErrorIs(t, err, ErrPositionConflict)

		// The same id moved to a free position
		moved := makeChunk("doc", 3, 0, nil)
		moved.ID = original.ID
		err = store.PutChunks(ctx, "doc", []*types.Chunk{moved})
		assert.ErrorIs(t, err, ErrPositionConflict)

		// Both batches were rolled back
		chunks, err := store.Scan(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, original.ID, chunks[0].ID)
		assert.Equal(t, []float32{1, 0}, chunks[0].Embedding)

		// After a delete the positions and ids are free again
		require.NoError(t, store.DeleteDocument(ctx, "doc"))
		assert.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{moved, intruder}))
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		require.NoError(t, store.PutFingerprint(ctx, &Fingerprint{DocumentID: "doc", ChunkCount: 2}))
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{
			makeChunk("doc", 0, 0, []float32{1}),
			makeChunk("doc", 0, 1, nil),
		}))
		require.NoError(t, store.PutChunks(ctx, "keep", []*types.Chunk{makeChunk("keep", 0, 0, nil)}))

		require.NoError(t, store.DeleteDocument(ctx, "doc"))

		chunks, err := store.Scan(ctx, "doc")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		_, err = store.GetFingerprint(ctx, "doc")
		assert.ErrorIs(t, err, ErrNotFound)

		kept, err := store.Scan(ctx, "keep")
		require.NoError(t, err)
		assert.Len(t, kept, 1)

		// Deleting again is not an error
		assert.NoError(t, store.DeleteDocument(ctx, "doc"))
	})
}

func TestStore_Fingerprint(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()

		_, err := store.GetFingerprint(ctx, "doc")
		assert.ErrorIs(t, err, ErrNotFound)

		// A document row created by chunk writes alone has no fingerprint yet
		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, 0, []float32{1, 2})}))
		_, err = store.GetFingerprint(ctx, "doc")
		assert.ErrorIs(t, err, ErrNotFound)

		fp := &Fingerprint{
			DocumentID:     "doc",
			ContentHash:    [32]byte{1, 2, 3},
			ChunkCount:     7,
			MaxChunkTokens: 512,
			OverlapTokens:  64,
			Model:          "local/hashed-bow",
		}
		require.NoError(t, store.PutFingerprint(ctx, fp))
		assert.False(t, fp.UpdatedAt.IsZero())

		got, err := store.GetFingerprint(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, fp.ContentHash, got.ContentHash)
		assert.Equal(t, 7, got.ChunkCount)
		assert.Equal(t, 512, got.MaxChunkTokens)
		assert.Equal(t, 64, got.OverlapTokens)
		assert.Equal(t, "local/hashed-bow", got.Model)
		assert.Equal(t, 2, got.Dimension, "dimension comes from stored embeddings")
	})
}

func TestStore_ListDocuments(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		for _, id := range []string{"b", "a", "c"} {
			require.NoError(t, store.PutChunks(ctx, id, []*types.Chunk{makeChunk(id, 0, 0, nil)}))
		}
		require.NoError(t, store.DeleteDocument(ctx, "c"))

		ids, err := store.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})
}

func TestStore_AnchorsRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		withAnchors := makeChunk("doc", 0, 0, nil)
		withAnchors.StartAnchor = "epubcfi(/6/4!/4/2)"
		withAnchors.EndAnchor = "epubcfi(/6/4!/4/10)"
		without := makeChunk("doc", 0, 1, nil)

		require.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{withAnchors, without}))
		chunks, err := store.Scan(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		assert.Equal(t, withAnchors.StartAnchor, chunks[0].StartAnchor)
		assert.Equal(t, withAnchors.EndAnchor, chunks[0].EndAnchor)
		assert.Empty(t, chunks[1].StartAnchor)
		assert.Empty(t, chunks[1].EndAnchor)
		assert.Nil(t, chunks[1].Embedding)
	})
}

func TestStore_ConcurrentReadsDuringWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, store VectorStore) {
		ctx := context.Background()
		const batches = 20

		initial := make([]*types.Chunk, batches)
		for i := range initial {
			initial[i] = makeChunk("doc", 0, i, nil)
		}
		require.NoError(t, store.PutChunks(ctx, "doc", initial))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < batches; i++ {
				assert.NoError(t, store.PutChunks(ctx, "doc", []*types.Chunk{makeChunk("doc", 0, i, []float32{float32(i), 1})}))
			}
		}()

		for i := 0; i < batches; i++ {
			chunks, err := store.Scan(ctx, "doc")
			require.NoError(t, err)
			assert.Len(t, chunks, batches)
		}
		wg.Wait()

		_, embedded, err := store.Count(ctx, "doc")
		require.NoError(t, err)
		assert.Equal(t, batches, embedded)
	})
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DriverSQLite, filepath.Join(dir, "nested", "readany.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	b, err := Open(DriverBolt, filepath.Join(dir, "readany.bolt"))
	require.NoError(t, err)
	assert.IsType(t, &BoltStorage{}, b)
	require.NoError(t, b.Close())

	_, err = Open("postgres", filepath.Join(dir, "x"))
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
