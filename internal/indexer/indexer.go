package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codedogQBY/ReadAny/internal/chunker"
	"github.com/codedogQBY/ReadAny/internal/reader"
	"github.com/codedogQBY/ReadAny/internal/storage"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

// DefaultBatchSize is the number of chunks sent per embedding call
const DefaultBatchSize = 16

// ErrClosed is returned by Start after Close
var ErrClosed = errors.New("indexer closed")

// errStopped ends the embedding loop of a cancelled run
var errStopped = errors.New("vectorization stopped")

// BatchEmbedder turns chunk texts into vectors
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	BatchLimit() int
}

// Config contains configuration for the indexer
type Config struct {
	Chunker   chunker.Config
	BatchSize int         // Chunks per embedding call (default: 16, capped by the embedder)
	Logger    *log.Logger // Lifecycle log lines (default: log.Default())

	// EmbeddingModel names the model behind the embedder, e.g. "jina/jina-embeddings-v3".
	// A stored chunk set built for another model is re-chunked instead of resumed.
	EmbeddingModel string

	// OnProgress, if set, receives a status snapshot after every state change
	// and every stored batch. It runs on the vectorization goroutine.
	OnProgress func(types.VectorizationStatus)
}

// Indexer coordinates vectorization runs: read -> chunk -> persist -> embed
type Indexer struct {
	store    storage.VectorStore
	reader   reader.DocumentReader
	embedder BatchEmbedder
	chunker  *chunker.Chunker

	batchSize  int
	model      string
	logger     *log.Logger
	onProgress func(types.VectorizationStatus)

	mu     sync.Mutex
	locks  map[string]*DocumentLock
	jobs   map[string]*job
	closed bool

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// job is one vectorization run of a document
type job struct {
	cancelled atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	status types.VectorizationStatus
}

func (j *job) snapshot() types.VectorizationStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *job) update(fn func(s *types.VectorizationStatus)) types.VectorizationStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.status)
	return j.status
}

// New creates a new Indexer instance
func New(store storage.VectorStore, docs reader.DocumentReader, emb BatchEmbedder, cfg Config) (*Indexer, error) {
	if store == nil || docs == nil || emb == nil {
		return nil, fmt.Errorf("indexer requires a store, a reader and an embedder")
	}

	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if limit := emb.BatchLimit(); limit > 0 && batchSize > limit {
		batchSize = limit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Indexer{
		store:      store,
		reader:     docs,
		embedder:   emb,
		chunker:    ch,
		batchSize:  batchSize,
		model:      cfg.EmbeddingModel,
		logger:     logger,
		onProgress: cfg.OnProgress,
		locks:      make(map[string]*DocumentLock),
		jobs:       make(map[string]*job),
		ctx:        ctx,
		stop:       stop,
	}, nil
}

// BatchSize returns the effective embedding batch size
func (idx *Indexer) BatchSize() int {
	return idx.batchSize
}

func (idx *Indexer) lockFor(documentID string) *DocumentLock {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	l, ok := idx.locks[documentID]
	if !ok {
		l = &DocumentLock{}
		idx.locks[documentID] = l
	}
	return l
}

// Start begins a vectorization run for a document. Chapters are read before
// Start returns; chunking and embedding continue in the background.
func (idx *Indexer) Start(ctx context.Context, documentID string) error {
	lock := idx.lockFor(documentID)
	if !lock.TryAcquire() {
		return fmt.Errorf("%w: %s", types.ErrAlreadyRunning, documentID)
	}

	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		lock.Release()
		return ErrClosed
	}
	j := &job{
		done: make(chan struct{}),
		status: types.VectorizationStatus{
			DocumentID: documentID,
			State:      types.StateChunking,
			StartedAt:  time.Now(),
		},
	}
	idx.jobs[documentID] = j
	idx.wg.Add(1)
	idx.mu.Unlock()

	idx.logger.Printf("Vectorizing document %s", documentID)
	idx.report(j.snapshot())

	chapters, err := idx.reader.GetChapters(ctx, documentID)
	if err != nil {
		if !errors.Is(err, types.ErrDocumentUnreadable) {
			err = fmt.Errorf("%w: %v", types.ErrDocumentUnreadable, err)
		}
		idx.finish(j, types.StateFailed, err)
		lock.Release()
		close(j.done)
		idx.wg.Done()
		return err
	}

	go func() {
		defer idx.wg.Done()
		defer close(j.done)
		defer lock.Release()
		idx.run(j, documentID, chapters)
	}()
	return nil
}

// run executes the chunking and embedding phases of a job
func (idx *Indexer) run(j *job, documentID string, chapters []types.Chapter) {
	ctx := idx.ctx

	pending, resumed, err := idx.prepare(ctx, j, documentID, chapters, false)
	if err == nil && idx.stopRequested(ctx, j) {
		err = errStopped
	}
	if err == nil {
		idx.report(j.update(func(s *types.VectorizationStatus) {
			s.State = types.StateEmbedding
		}))
		err = idx.embedAll(ctx, j, documentID, pending)
	}

	// Stored vectors from an earlier model have another length
	if resumed && errors.Is(err, storage.ErrDimensionMismatch) {
		idx.logger.Printf("Embedding dimension of %s changed, re-chunking", documentID)
		if pending, _, err = idx.prepare(ctx, j, documentID, chapters, true); err == nil {
			err = idx.embedAll(ctx, j, documentID, pending)
		}
	}

	switch {
	case errors.Is(err, errStopped):
		idx.finish(j, types.StateCancelled, nil)
	case err != nil:
		idx.fail(ctx, j, err)
	default:
		idx.finish(j, types.StateComplete, nil)
	}
}

// embedAll embeds pending chunks batch by batch, advancing progress after each
// stored batch. It returns errStopped once the run is cancelled.
func (idx *Indexer) embedAll(ctx context.Context, j *job, documentID string, pending []*types.Chunk) error {
	for start := 0; start < len(pending); start += idx.batchSize {
		if idx.stopRequested(ctx, j) {
			return errStopped
		}

		end := start + idx.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := idx.embedBatch(ctx, documentID, pending[start:end]); err != nil {
			return err
		}

		n := end - start
		idx.report(j.update(func(s *types.VectorizationStatus) {
			s.ProcessedChunks += n
		}))
	}
	return nil
}

// prepare chunks the document and persists the chunk set unless the stored one
// was built from identical input, or rebuild is set. It returns the chunks still
// lacking embeddings and whether the stored set was resumed.
func (idx *Indexer) prepare(ctx context.Context, j *job, documentID string, chapters []types.Chapter, rebuild bool) ([]*types.Chunk, bool, error) {
	chunks := idx.chunker.Chunk(documentID, chapters)
	cfg := idx.chunker.Config()
	hash := chunker.Fingerprint(chapters, cfg)

	if idx.stopRequested(ctx, j) {
		return nil, false, errStopped
	}

	if !rebuild {
		resumed, pending, err := idx.resume(ctx, documentID, hash, len(chunks), cfg)
		if err != nil {
			return nil, false, err
		}
		if resumed {
			processed := len(chunks) - len(pending)
			idx.logger.Printf("Resuming document %s: %d/%d chunks already embedded", documentID, processed, len(chunks))
			idx.report(j.update(func(s *types.VectorizationStatus) {
				s.TotalChunks = len(chunks)
				s.ProcessedChunks = processed
			}))
			return pending, true, nil
		}
	}

	if err := idx.store.DeleteDocument(ctx, documentID); err != nil {
		return nil, false, fmt.Errorf("failed to clear stale chunks: %w", err)
	}
	fp := &storage.Fingerprint{
		DocumentID:     documentID,
		ContentHash:    hash,
		ChunkCount:     len(chunks),
		MaxChunkTokens: cfg.MaxChunkTokens,
		OverlapTokens:  cfg.OverlapTokens,
		Model:          idx.model,
	}
	if err := idx.store.PutFingerprint(ctx, fp); err != nil {
		return nil, false, fmt.Errorf("failed to store fingerprint: %w", err)
	}
	if len(chunks) > 0 {
		if err := idx.store.PutChunks(ctx, documentID, chunks); err != nil {
			return nil, false, fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	idx.logger.Printf("Chunked document %s: %d chunks from %d chapters", documentID, len(chunks), len(chapters))
	idx.report(j.update(func(s *types.VectorizationStatus) {
		s.TotalChunks = len(chunks)
		s.ProcessedChunks = 0
	}))
	return chunks, false, nil
}

// resume reports whether the stored chunk set matches a fresh chunking pass
// and, if so, returns its un-embedded chunks in document order
func (idx *Indexer) resume(ctx context.Context, documentID string, hash [32]byte, count int, cfg chunker.Config) (bool, []*types.Chunk, error) {
	fp, err := idx.store.GetFingerprint(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to read fingerprint: %w", err)
	}
	if fp.ContentHash != hash || fp.ChunkCount != count ||
		fp.MaxChunkTokens != cfg.MaxChunkTokens || fp.OverlapTokens != cfg.OverlapTokens ||
		fp.Model != idx.model {
		return false, nil, nil
	}

	stored, err := idx.store.Scan(ctx, documentID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to scan stored chunks: %w", err)
	}
	if len(stored) != count {
		return false, nil, nil
	}

	pending := make([]*types.Chunk, 0, len(stored))
	for _, c := range stored {
		if !c.HasEmbedding() {
			pending = append(pending, c)
		}
	}
	return true, pending, nil
}

// embedBatch embeds and stores one batch of chunks
func (idx *Indexer) embedBatch(ctx context.Context, documentID string, batch []*types.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks",
			types.ErrEmbeddingUnavailable, len(vectors), len(batch))
	}

	embedded := make([]*types.Chunk, len(batch))
	for i, c := range batch {
		out := c.Clone()
		out.Embedding = vectors[i]
		embedded[i] = out
	}
	if err := idx.store.PutChunks(ctx, documentID, embedded); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	return nil
}

func (idx *Indexer) stopRequested(ctx context.Context, j *job) bool {
	return j.cancelled.Load() || ctx.Err() != nil
}

// fail records err, or cancellation when the run was stopped mid-call
func (idx *Indexer) fail(ctx context.Context, j *job, err error) {
	if idx.stopRequested(ctx, j) {
		idx.finish(j, types.StateCancelled, nil)
		return
	}
	idx.finish(j, types.StateFailed, err)
}

func (idx *Indexer) finish(j *job, state types.JobState, err error) {
	status := j.update(func(s *types.VectorizationStatus) {
		s.State = state
		s.FinishedAt = time.Now()
		if err != nil {
			s.Error = err.Error()
		}
	})

	switch state {
	case types.StateComplete:
		idx.logger.Printf("Vectorized document %s: %d chunks in %v",
			status.DocumentID, status.TotalChunks, status.FinishedAt.Sub(status.StartedAt).Round(time.Millisecond))
	case types.StateCancelled:
		idx.logger.Printf("Vectorization of %s cancelled at %d/%d chunks",
			status.DocumentID, status.ProcessedChunks, status.TotalChunks)
	case types.StateFailed:
		idx.logger.Printf("Vectorization of %s failed: %v", status.DocumentID, err)
	}
	idx.report(status)
}

func (idx *Indexer) report(status types.VectorizationStatus) {
	if idx.onProgress != nil {
		idx.onProgress(status)
	}
}

// Cancel asks the running job of a document to stop before its next batch.
// It is a no-op when nothing runs or the last run already ended.
func (idx *Indexer) Cancel(documentID string) {
	idx.mu.Lock()
	j, ok := idx.jobs[documentID]
	idx.mu.Unlock()
	if !ok {
		return
	}
	if !j.snapshot().State.Terminal() {
		j.cancelled.Store(true)
	}
}

// Status returns the progress of a document. Without a job in this process
// the status is derived from the stored chunks.
func (idx *Indexer) Status(ctx context.Context, documentID string) (types.VectorizationStatus, error) {
	idx.mu.Lock()
	j, ok := idx.jobs[documentID]
	idx.mu.Unlock()
	if ok {
		return j.snapshot(), nil
	}

	total, embedded, err := idx.store.Count(ctx, documentID)
	if err != nil {
		return types.VectorizationStatus{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	status := types.VectorizationStatus{
		DocumentID:      documentID,
		State:           types.StateIdle,
		TotalChunks:     total,
		ProcessedChunks: embedded,
	}
	if total > 0 && embedded == total {
		status.State = types.StateComplete
	}
	return status, nil
}

// Wait blocks until the current run of a document is no longer active
func (idx *Indexer) Wait(ctx context.Context, documentID string) (types.VectorizationStatus, error) {
	idx.mu.Lock()
	j, ok := idx.jobs[documentID]
	idx.mu.Unlock()
	if !ok {
		return idx.Status(ctx, documentID)
	}

	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}

// DeleteDocument removes a document's stored chunks and forgets its job.
// It fails with ErrAlreadyRunning while a run is active.
func (idx *Indexer) DeleteDocument(ctx context.Context, documentID string) error {
	lock := idx.lockFor(documentID)
	if !lock.TryAcquire() {
		return fmt.Errorf("%w: %s", types.ErrAlreadyRunning, documentID)
	}
	defer lock.Release()

	if err := idx.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	idx.mu.Lock()
	delete(idx.jobs, documentID)
	idx.mu.Unlock()

	idx.logger.Printf("Deleted document %s", documentID)
	return nil
}

// Running returns the ids of documents with an active run
func (idx *Indexer) Running() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var ids []string
	for id, l := range idx.locks {
		if l.Held() {
			if j, ok := idx.jobs[id]; ok && j.snapshot().State.Active() {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// Close cancels in-flight runs and waits for them to stop
func (idx *Indexer) Close() error {
	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		return nil
	}
	idx.closed = true
	for _, j := range idx.jobs {
		j.cancelled.Store(true)
	}
	idx.mu.Unlock()

	idx.stop()
	idx.wg.Wait()
	return nil
}
