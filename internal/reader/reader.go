package reader

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// DocumentReader yields the ordered chapters of a document
type DocumentReader interface {
	GetChapters(ctx context.Context, documentID string) ([]types.Chapter, error)
}

// MemoryReader serves chapters held in memory
type MemoryReader struct {
	mu   sync.RWMutex
	docs map[string][]types.Chapter
}

var _ DocumentReader = (*MemoryReader)(nil)

// NewMemoryReader creates an empty in-memory reader
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{docs: make(map[string][]types.Chapter)}
}

// Put stores the chapters of a document, replacing any previous version
func (r *MemoryReader) Put(documentID string, chapters []types.Chapter) {
	copied := make([]types.Chapter, len(chapters))
	copy(copied, chapters)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[documentID] = copied
}

// Remove forgets a document
func (r *MemoryReader) Remove(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, documentID)
}

// Documents returns the ids of all held documents in lexical order
func (r *MemoryReader) Documents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *MemoryReader) GetChapters(ctx context.Context, documentID string) ([]types.Chapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	chapters, ok := r.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %q not found", types.ErrDocumentUnreadable, documentID)
	}
	copied := make([]types.Chapter, len(chapters))
	copy(copied, chapters)
	return copied, nil
}
