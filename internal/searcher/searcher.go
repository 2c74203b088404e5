package searcher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/codedogQBY/ReadAny/internal/storage"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

// Default hybrid weights
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// ChunkScanner reads the stored chunks of a document in document order
type ChunkScanner interface {
	Scan(ctx context.Context, documentID string) ([]*types.Chunk, error)
}

// QueryEmbedder embeds a search query
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config contains configuration for the searcher
type Config struct {
	SemanticWeight float64     // Hybrid weight of cosine similarity (default: 0.7)
	KeywordWeight  float64     // Hybrid weight of term overlap (default: 0.3)
	Logger         *log.Logger // Degraded-search log lines (default: log.Default())
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	DocumentID string
	Query      string
	Mode       types.SearchMode // Empty selects hybrid
	TopK       int
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results    []types.SearchResult
	Mode       types.SearchMode
	Candidates int  // Chunks that were scored
	Degraded   bool // Hybrid fell back to keyword scores because the query could not be embedded
	Duration   time.Duration
}

// Searcher ranks a document's chunks against a query
type Searcher struct {
	store    ChunkScanner
	embedder QueryEmbedder

	semanticWeight float64
	keywordWeight  float64
	logger         *log.Logger
}

// NewSearcher creates a new Searcher instance. A nil embedder limits search to
// keyword scoring; semantic requests then fail with types.ErrEmbeddingUnavailable.
func NewSearcher(store ChunkScanner, embedder QueryEmbedder, cfg Config) *Searcher {
	ws, wk := cfg.SemanticWeight, cfg.KeywordWeight
	if ws == 0 && wk == 0 {
		ws, wk = DefaultSemanticWeight, DefaultKeywordWeight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Searcher{
		store:          store,
		embedder:       embedder,
		semanticWeight: ws,
		keywordWeight:  wk,
		logger:         logger,
	}
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	mode, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	chunks, err := s.store.Scan(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	var response *SearchResponse
	switch mode {
	case types.SearchModeSemantic:
		response, err = s.semanticSearch(ctx, req.Query, chunks)
	case types.SearchModeKeyword:
		response = s.keywordSearch(req.Query, chunks)
	case types.SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req.Query, chunks)
	}
	if err != nil {
		return nil, err
	}

	response.Results = rank(response.Results, req.TopK)
	response.Mode = mode
	response.Duration = time.Since(startTime)
	return response, nil
}

// validateRequest checks the request and resolves its mode
func (s *Searcher) validateRequest(req SearchRequest) (types.SearchMode, error) {
	mode, err := types.ParseSearchMode(string(req.Mode))
	if err != nil {
		return "", err
	}
	if req.TopK < 1 {
		return "", fmt.Errorf("%w: got %d", types.ErrInvalidTopK, req.TopK)
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", types.ErrEmptyQuery
	}
	return mode, nil
}

// semanticSearch scores every embedded chunk by cosine similarity
func (s *Searcher) semanticSearch(ctx context.Context, query string, chunks []*types.Chunk) (*SearchResponse, error) {
	response := &SearchResponse{}
	embedded := embeddedChunks(chunks)
	if len(embedded) == 0 {
		return response, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no query embedder configured", types.ErrEmbeddingUnavailable)
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	for _, c := range embedded {
		if len(c.Embedding) != len(queryVec) {
			continue
		}
		response.Candidates++
		response.Results = append(response.Results, newResult(c, storage.CosineSimilarity(queryVec, c.Embedding)))
	}
	return response, nil
}

// keywordSearch scores chunks by the fraction of query terms they contain
func (s *Searcher) keywordSearch(query string, chunks []*types.Chunk) *SearchResponse {
	response := &SearchResponse{Candidates: len(chunks)}
	queryTerms := Terms(query)

	for _, c := range chunks {
		score := KeywordScore(queryTerms, c.Content)
		if score > 0 {
			response.Results = append(response.Results, newResult(c, score))
		}
	}
	return response
}

// hybridSearch blends cosine similarity with term overlap. Chunks without a
// usable embedding, or every chunk when the query cannot be embedded, get the
// keyword score scaled to the full hybrid range.
func (s *Searcher) hybridSearch(ctx context.Context, query string, chunks []*types.Chunk) (*SearchResponse, error) {
	response := &SearchResponse{Candidates: len(chunks)}
	if len(chunks) == 0 {
		return response, nil
	}

	var queryVec []float32
	if len(embeddedChunks(chunks)) > 0 {
		if s.embedder == nil {
			response.Degraded = true
		} else {
			vec, err := s.embedder.EmbedQuery(ctx, query)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Printf("Query embedding failed, using keyword scores: %v", err)
				response.Degraded = true
			} else {
				queryVec = vec
			}
		}
	}

	queryTerms := Terms(query)
	fallbackScale := s.semanticWeight + s.keywordWeight

	for _, c := range chunks {
		kw := KeywordScore(queryTerms, c.Content)

		var score float64
		if queryVec != nil && len(c.Embedding) == len(queryVec) {
			cos := storage.CosineSimilarity(queryVec, c.Embedding)
			if cos < 0 {
				cos = 0
			}
			score = s.semanticWeight*cos + s.keywordWeight*kw
		} else {
			score = kw * fallbackScale
		}

		if score > 0 {
			response.Results = append(response.Results, newResult(c, score))
		}
	}
	return response, nil
}

func embeddedChunks(chunks []*types.Chunk) []*types.Chunk {
	out := make([]*types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.HasEmbedding() {
			out = append(out, c)
		}
	}
	return out
}

func newResult(c *types.Chunk, score float64) types.SearchResult {
	return types.SearchResult{
		ChunkID:       c.ID,
		Score:         score,
		ChapterTitle:  c.ChapterTitle,
		ChapterIndex:  c.ChapterIndex,
		SequenceIndex: c.SequenceIndex,
		StartAnchor:   c.StartAnchor,
		EndAnchor:     c.EndAnchor,
		Content:       c.Content,
	}
}

// rank orders results by score descending, earliest position first on ties,
// truncates to topK and assigns 1-based ranks
func rank(results []types.SearchResult, topK int) []types.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ChapterIndex != b.ChapterIndex {
			return a.ChapterIndex < b.ChapterIndex
		}
		return a.SequenceIndex < b.SequenceIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// Terms returns the distinct lower-cased letter/digit runs of text in order of
// first appearance. Han characters are terms on their own.
func Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, term := range splitTerms(text) {
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	return terms
}

// KeywordScore returns the fraction of queryTerms present in content
func KeywordScore(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	present := make(map[string]bool)
	for _, term := range splitTerms(content) {
		present[term] = true
	}

	matched := 0
	for _, term := range queryTerms {
		if present[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

func splitTerms(text string) []string {
	var terms []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			terms = append(terms, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			terms = append(terms, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return terms
}
