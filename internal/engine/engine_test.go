package engine

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedogQBY/ReadAny/internal/config"
	"github.com/codedogQBY/ReadAny/internal/embedder"
	"github.com/codedogQBY/ReadAny/internal/searcher"
	"github.com/codedogQBY/ReadAny/internal/storage"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()

	library := t.TempDir()
	doc := filepath.Join(library, "fables")
	require.NoError(t, os.MkdirAll(doc, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(doc, "01.txt"),
		[]byte("The tortoise and the hare agreed to race across the meadow. "+strings.Repeat("slow and steady ", 20)), 0o644))

	cfg := config.DefaultConfig()
	cfg.Storage.Driver = driver
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data", "vectors."+driver)
	cfg.Library.Root = library
	cfg.Chunker.MaxChunkTokens = 16
	cfg.Chunker.OverlapTokens = 4
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.Embedding.Dimension = 32
	return cfg
}

func TestOpen_EndToEnd(t *testing.T) {
	for _, driver := range []string{storage.DriverSQLite, storage.DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()

			var mu sync.Mutex
			var states []types.JobState
			eng, err := Open(testConfig(t, driver), Options{
				Logger: log.New(io.Discard, "", 0),
				OnProgress: func(s types.VectorizationStatus) {
					mu.Lock()
					states = append(states, s.State)
					mu.Unlock()
				},
			})
			require.NoError(t, err)
			defer func() { assert.NoError(t, eng.Close()) }()

			assert.Equal(t, embedder.ProviderLocal, eng.Embedder.Provider())
			assert.Equal(t, 32, eng.Embedder.Dimension())

			require.NoError(t, eng.Indexer.Start(ctx, "fables"))
			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			status, err := eng.Indexer.Wait(waitCtx, "fables")
			require.NoError(t, err)
			assert.Equal(t, types.StateComplete, status.State)
			assert.Equal(t, status.TotalChunks, status.ProcessedChunks)

			resp, err := eng.Searcher.Search(ctx, searcher.SearchRequest{
				DocumentID: "fables",
				Query:      "tortoise race",
				TopK:       1,
			})
			require.NoError(t, err)
			require.Len(t, resp.Results, 1)
			assert.Contains(t, resp.Results[0].Content, "tortoise")

			mu.Lock()
			defer mu.Unlock()
			require.NotEmpty(t, states)
			assert.Equal(t, types.StateChunking, states[0])
			assert.Equal(t, types.StateComplete, states[len(states)-1])
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t, storage.DriverSQLite)
		cfg.Storage.Driver = "postgres"
		_, err := Open(cfg, Options{Logger: log.New(io.Discard, "", 0)})
		assert.ErrorIs(t, err, storage.ErrUnsupportedDriver)
	})

	t.Run("invalid include pattern", func(t *testing.T) {
		cfg := testConfig(t, storage.DriverSQLite)
		cfg.Library.Includes = []string{"[unclosed"}
		_, err := Open(cfg, Options{Logger: log.New(io.Discard, "", 0)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize library")
	})

	t.Run("unsupported provider", func(t *testing.T) {
		cfg := testConfig(t, storage.DriverBolt)
		cfg.Embedding.Provider = "cohere"
		_, err := Open(cfg, Options{Logger: log.New(io.Discard, "", 0)})
		assert.ErrorIs(t, err, embedder.ErrUnsupportedProvider)

		// The store was released, so it can be reopened
		store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
		require.NoError(t, err)
		assert.NoError(t, store.Close())
	})
}
