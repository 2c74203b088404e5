package chunker

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

const (
	// DefaultMaxChunkTokens is the maximum token count per chunk
	DefaultMaxChunkTokens = 512

	// DefaultOverlapTokens is the number of tokens shared by consecutive chunks
	DefaultOverlapTokens = 64
)

// Config controls the chunk window
type Config struct {
	MaxChunkTokens int
	OverlapTokens  int
}

// DefaultConfig returns the 512/64 window
func DefaultConfig() Config {
	return Config{
		MaxChunkTokens: DefaultMaxChunkTokens,
		OverlapTokens:  DefaultOverlapTokens,
	}
}

// Validate checks that the window always advances
func (c Config) Validate() error {
	if c.MaxChunkTokens < 1 {
		return fmt.Errorf("max_chunk_tokens must be >= 1, got %d", c.MaxChunkTokens)
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.MaxChunkTokens {
		return fmt.Errorf("overlap_tokens must be in [0, %d), got %d", c.MaxChunkTokens, c.OverlapTokens)
	}
	return nil
}

// Chunker splits chapters into overlapping token windows
type Chunker struct {
	cfg Config
}

// New creates a Chunker. A zero MaxChunkTokens selects the default window size.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxChunkTokens == 0 {
		cfg.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the window settings in use
func (c *Chunker) Config() Config {
	return c.cfg
}

// token is a maximal run of non-whitespace with its byte span in the text
type token struct {
	start, end int
}

// Chunk splits every chapter of a document into chunks, in chapter order.
// ChapterIndex is the chapter's position in the slice. Chapters without any
// tokens produce no chunks. The output depends only on the input.
func (c *Chunker) Chunk(documentID string, chapters []types.Chapter) []*types.Chunk {
	chunks := make([]*types.Chunk, 0)
	for i := range chapters {
		chunks = append(chunks, c.chunkChapter(documentID, i, &chapters[i])...)
	}
	return chunks
}

func (c *Chunker) chunkChapter(documentID string, chapterIndex int, ch *types.Chapter) []*types.Chunk {
	text, markers := ch.Text, ch.Markers
	if ch.HTML {
		text, markers = FlattenHTML(ch.Text, ch.Markers)
	}
	markers = sortedMarkers(markers)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.cfg.MaxChunkTokens - c.cfg.OverlapTokens
	chunks := make([]*types.Chunk, 0, len(tokens)/step+1)

	for start, seq := 0, 0; ; seq++ {
		end := start + c.cfg.MaxChunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		spanStart := tokens[start].start
		spanEnd := tokens[end-1].end
		chunks = append(chunks, &types.Chunk{
			ID:            types.ChunkID(documentID, chapterIndex, seq),
			DocumentID:    documentID,
			ChapterIndex:  chapterIndex,
			ChapterTitle:  ch.Title,
			SequenceIndex: seq,
			Content:       text[spanStart:spanEnd],
			TokenCount:    end - start,
			StartAnchor:   nearestAnchor(markers, spanStart),
			EndAnchor:     nearestAnchor(markers, spanEnd),
		})

		if end == len(tokens) {
			break
		}
		start = end - c.cfg.OverlapTokens
	}

	return chunks
}

// tokenize returns the word-boundary tokens of text
func tokenize(text string) []token {
	tokens := make([]token, 0, len(text)/5)
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}

// CountTokens returns the number of tokens the chunker would see in text
func CountTokens(text string) int {
	n := 0
	inToken := false
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			n++
			inToken = true
		}
	}
	return n
}

func sortedMarkers(markers []types.Marker) []types.Marker {
	if len(markers) == 0 {
		return nil
	}
	out := make([]types.Marker, len(markers))
	copy(out, markers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})
	return out
}

// nearestAnchor returns the anchor of the marker closest to offset.
// Ties go to the earlier marker. markers must be sorted by offset.
func nearestAnchor(markers []types.Marker, offset int) string {
	if len(markers) == 0 {
		return ""
	}
	i := sort.Search(len(markers), func(i int) bool {
		return markers[i].Offset >= offset
	})
	switch {
	case i == 0:
		return markers[0].Anchor
	case i == len(markers):
		return markers[len(markers)-1].Anchor
	}
	before, after := markers[i-1], markers[i]
	if offset-before.Offset <= after.Offset-offset {
		return before.Anchor
	}
	return after.Anchor
}

// Fingerprint hashes everything that determines the chunk set of a document:
// the window settings and every chapter's title, text and markers.
func Fingerprint(chapters []types.Chapter, cfg Config) [32]byte {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(len(s))
		_, _ = h.Write([]byte(s))
	}

	writeInt(cfg.MaxChunkTokens)
	writeInt(cfg.OverlapTokens)
	writeInt(len(chapters))
	for i := range chapters {
		ch := &chapters[i]
		writeString(ch.Title)
		writeString(ch.Text)
		if ch.HTML {
			writeInt(1)
		} else {
			writeInt(0)
		}
		writeInt(len(ch.Markers))
		for _, m := range ch.Markers {
			writeInt(m.Offset)
			writeString(m.Anchor)
		}
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
