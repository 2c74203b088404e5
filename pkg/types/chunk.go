package types

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk identifiers so they never collide with other
// name-based UUIDs derived from the same strings.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("readany:chunk"))

// Marker maps a byte offset in a chapter's text to a reader-owned location anchor
// (for EPUB documents this is a CFI string).
type Marker struct {
	Offset int
	Anchor string
}

// Chapter is one ordered section of a document as yielded by a document reader.
type Chapter struct {
	Index   int
	Title   string
	Text    string
	HTML    bool // Text is XHTML/HTML markup rather than plain text
	Markers []Marker
}

// Chunk is a contiguous span of a chapter, the unit of embedding and retrieval
type Chunk struct {
	// Identification
	ID            string
	DocumentID    string
	ChapterIndex  int
	ChapterTitle  string
	SequenceIndex int

	// Content
	Content    string
	TokenCount int

	// Location, empty when the reader supplied no markers
	StartAnchor string
	EndAnchor   string

	// Embedding is nil until the chunk has been vectorized
	Embedding []float32
}

// ChunkID derives the stable identifier of the chunk at the given position.
// The same document, chapter and sequence always produce the same id.
func ChunkID(documentID string, chapterIndex, sequenceIndex int) string {
	name := documentID + "/" + strconv.Itoa(chapterIndex) + "/" + strconv.Itoa(sequenceIndex)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// HasEmbedding reports whether the chunk carries a vector
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// Less orders chunks by (chapter, sequence)
func (c *Chunk) Less(other *Chunk) bool {
	if c.ChapterIndex != other.ChapterIndex {
		return c.ChapterIndex < other.ChapterIndex
	}
	return c.SequenceIndex < other.SequenceIndex
}

// Validate checks the structural invariants of a chunk before it is persisted
func (c *Chunk) Validate() error {
	if c.DocumentID == "" {
		return errors.New("chunk document id cannot be empty")
	}
	if c.ID == "" {
		return errors.New("chunk id cannot be empty")
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.ChapterIndex < 0 || c.SequenceIndex < 0 {
		return errors.New("chunk position must be non-negative")
	}
	if c.TokenCount <= 0 {
		return errors.New("chunk token count must be positive")
	}
	return nil
}

// Clone returns a deep copy, including the embedding
func (c *Chunk) Clone() *Chunk {
	out := *c
	if c.Embedding != nil {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	return &out
}
