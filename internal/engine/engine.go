// Package engine assembles the retrieval components from a configuration.
package engine

import (
	"fmt"
	"log"

	"github.com/codedogQBY/ReadAny/internal/config"
	"github.com/codedogQBY/ReadAny/internal/embedder"
	"github.com/codedogQBY/ReadAny/internal/indexer"
	"github.com/codedogQBY/ReadAny/internal/reader"
	"github.com/codedogQBY/ReadAny/internal/searcher"
	"github.com/codedogQBY/ReadAny/internal/storage"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

// Options are process-level hooks that do not belong in the config file
type Options struct {
	Logger     *log.Logger
	OnProgress func(types.VectorizationStatus)
}

// Engine owns one store, library, embedding client, indexer and searcher.
// The indexer and searcher share the client so query embeddings hit the
// cache filled during vectorization.
type Engine struct {
	Store    storage.VectorStore
	Library  *reader.DirReader
	Embedder *embedder.Client
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
}

// Open builds an Engine from cfg. Components opened before a failure are closed.
func Open(cfg *config.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	docs, err := reader.NewDirReader(cfg.Library.Root, cfg.Library.Includes)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize library: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	idx, err := indexer.New(store, docs, emb, indexer.Config{
		Chunker:        cfg.ChunkerConfig(),
		BatchSize:      cfg.Vectorize.BatchSize,
		Logger:         logger,
		OnProgress:     opts.OnProgress,
		EmbeddingModel: emb.Provider() + "/" + emb.Model(),
	})
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize indexer: %w", err)
	}

	srch := searcher.NewSearcher(store, emb, searcher.Config{
		SemanticWeight: cfg.Search.SemanticWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		Logger:         logger,
	})

	logger.Printf("Engine ready: store=%s (%s), embedder=%s/%s, dimension=%d",
		cfg.Storage.Driver, cfg.Storage.Path, emb.Provider(), emb.Model(), emb.Dimension())

	return &Engine{
		Store:    store,
		Library:  docs,
		Embedder: emb,
		Indexer:  idx,
		Searcher: srch,
	}, nil
}

// Close stops running vectorizations, then releases the client and the store
func (e *Engine) Close() error {
	var firstErr error
	if e.Indexer != nil {
		firstErr = e.Indexer.Close()
	}
	if e.Embedder != nil {
		if err := e.Embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
