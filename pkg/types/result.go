package types

import (
	"fmt"
	"strings"
)

// SearchMode selects how chunks are scored against a query
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic" // Cosine similarity of embeddings
	SearchModeKeyword  SearchMode = "keyword"  // Fraction of query terms present
	SearchModeHybrid   SearchMode = "hybrid"   // Weighted blend of both
)

// ParseSearchMode maps a user-supplied string to a SearchMode.
// An empty string selects hybrid.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return SearchModeHybrid, nil
	case SearchModeSemantic:
		return SearchModeSemantic, nil
	case SearchModeKeyword:
		return SearchModeKeyword, nil
	case SearchModeHybrid:
		return SearchModeHybrid, nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: semantic, keyword, hybrid)", ErrInvalidSearchMode, s)
	}
}

// SearchResult represents a single ranked chunk returned by a search
type SearchResult struct {
	// Identification
	ChunkID string
	Rank    int // Position in result set (1-based)

	// Scoring
	Score float64

	// Location
	ChapterTitle  string
	ChapterIndex  int
	SequenceIndex int
	StartAnchor   string
	EndAnchor     string

	Content string
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == "" {
		return fmt.Errorf("invalid chunk id")
	}
	if sr.Rank < 1 {
		return fmt.Errorf("rank must be >= 1")
	}
	if sr.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
