package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func newTestChunker(t *testing.T, maxTokens, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{MaxChunkTokens: maxTokens, OverlapTokens: overlap})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "zero max uses default", cfg: Config{OverlapTokens: 10}},
		{name: "no overlap", cfg: Config{MaxChunkTokens: 10}},
		{name: "overlap equals max", cfg: Config{MaxChunkTokens: 10, OverlapTokens: 10}, wantErr: true},
		{name: "negative overlap", cfg: Config{MaxChunkTokens: 10, OverlapTokens: -1}, wantErr: true},
		{name: "negative max", cfg: Config{MaxChunkTokens: -5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestChunk_WindowBoundaries(t *testing.T) {
	c := newTestChunker(t, 512, 64)
	chapters := []types.Chapter{{Title: "One", Text: words(1000)}}

	chunks := c.Chunk("doc", chapters)
	require.Len(t, chunks, 3)

	assert.Equal(t, 512, chunks[0].TokenCount)
	assert.Equal(t, 512, chunks[1].TokenCount)
	assert.Equal(t, 104, chunks[2].TokenCount)

	assert.True(t, strings.HasPrefix(chunks[0].Content, "w0 "))
	assert.True(t, strings.HasSuffix(chunks[0].Content, " w511"))
	assert.True(t, strings.HasPrefix(chunks[1].Content, "w448 "))
	assert.True(t, strings.HasSuffix(chunks[1].Content, " w959"))
	assert.True(t, strings.HasPrefix(chunks[2].Content, "w896 "))
	assert.True(t, strings.HasSuffix(chunks[2].Content, " w999"))

	for i, ch := range chunks {
		assert.Equal(t, i, ch.SequenceIndex)
		assert.Equal(t, 0, ch.ChapterIndex)
		assert.Equal(t, "One", ch.ChapterTitle)
		assert.Equal(t, "doc", ch.DocumentID)
		assert.Nil(t, ch.Embedding)
	}
}

func TestChunk_ShortChapterSingleChunk(t *testing.T) {
	c := newTestChunker(t, 512, 64)
	chunks := c.Chunk("doc", []types.Chapter{{Title: "Short", Text: "  Call me Ishmael.  "}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "Call me Ishmael.", chunks[0].Content)
	assert.Equal(t, 3, chunks[0].TokenCount)
}

func TestChunk_EmptyChapterSkipped(t *testing.T) {
	c := newTestChunker(t, 512, 64)
	chunks := c.Chunk("doc", []types.Chapter{
		{Title: "Blank", Text: " \n\t "},
		{Title: "Real", Text: "some words"},
		{Title: "Markup only", Text: "<p></p><br/>", HTML: true},
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].ChapterIndex)
	assert.Equal(t, "Real", chunks[0].ChapterTitle)
}

func TestChunk_SizeBoundAndCoverage(t *testing.T) {
	tests := []struct {
		name     string
		tokens   int
		max      int
		overlap  int
		expected int
	}{
		{name: "exact fit", tokens: 10, max: 10, overlap: 2, expected: 1},
		{name: "one over", tokens: 11, max: 10, overlap: 2, expected: 2},
		{name: "no overlap", tokens: 30, max: 10, overlap: 0, expected: 3},
		{name: "max one", tokens: 4, max: 1, overlap: 0, expected: 4},
		{name: "heavy overlap", tokens: 20, max: 5, overlap: 4, expected: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChunker(t, tt.max, tt.overlap)
			chunks := c.Chunk("doc", []types.Chapter{{Text: words(tt.tokens)}})
			require.Len(t, chunks, tt.expected)

			seen := make(map[string]bool)
			for _, ch := range chunks {
				assert.LessOrEqual(t, ch.TokenCount, tt.max)
				assert.Equal(t, ch.TokenCount, CountTokens(ch.Content))
				for _, w := range strings.Fields(ch.Content) {
					seen[w] = true
				}
			}
			assert.Len(t, seen, tt.tokens, "every token must appear in some chunk")
		})
	}
}

func TestChunk_Reconstruction(t *testing.T) {
	// Removing the overlap prefix of each chunk and joining reproduces the
	// chapter's token sequence.
	c := newTestChunker(t, 7, 3)
	text := words(50)
	chunks := c.Chunk("doc", []types.Chapter{{Text: text}})

	rebuilt := strings.Fields(chunks[0].Content)
	for _, ch := range chunks[1:] {
		rebuilt = append(rebuilt, strings.Fields(ch.Content)[3:]...)
	}
	assert.Equal(t, strings.Fields(text), rebuilt)
}

func TestChunk_Deterministic(t *testing.T) {
	c := newTestChunker(t, 16, 4)
	chapters := []types.Chapter{
		{Title: "A", Text: words(40)},
		{Title: "B", Text: "<p>hello <b>there</b></p>", HTML: true},
	}

	first := c.Chunk("doc", chapters)
	second := c.Chunk("doc", chapters)
	assert.Equal(t, first, second)

	ids := make(map[string]bool)
	for _, ch := range first {
		assert.False(t, ids[ch.ID], "duplicate chunk id")
		ids[ch.ID] = true
		assert.Equal(t, types.ChunkID("doc", ch.ChapterIndex, ch.SequenceIndex), ch.ID)
	}

	other := c.Chunk("other-doc", chapters)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}

func TestChunk_Anchors(t *testing.T) {
	c := newTestChunker(t, 3, 0)
	text := "alpha beta gamma delta epsilon zeta"
	markers := []types.Marker{
		{Offset: strings.Index(text, "delta"), Anchor: "#p2"},
		{Offset: 0, Anchor: "#p1"},
	}

	chunks := c.Chunk("doc", []types.Chapter{{Text: text, Markers: markers}})
	require.Len(t, chunks, 2)

	assert.Equal(t, "#p1", chunks[0].StartAnchor)
	assert.Equal(t, "#p2", chunks[0].EndAnchor)
	assert.Equal(t, "#p2", chunks[1].StartAnchor)
	assert.Equal(t, "#p2", chunks[1].EndAnchor)
}

func TestChunk_NoMarkers(t *testing.T) {
	c := newTestChunker(t, 512, 64)
	chunks := c.Chunk("doc", []types.Chapter{{Text: "plain text"}})
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].StartAnchor)
	assert.Empty(t, chunks[0].EndAnchor)
}

func TestNearestAnchor_TiePrefersEarlier(t *testing.T) {
	markers := []types.Marker{{Offset: 0, Anchor: "a"}, {Offset: 10, Anchor: "b"}}
	assert.Equal(t, "a", nearestAnchor(markers, 5))
	assert.Equal(t, "b", nearestAnchor(markers, 6))
	assert.Equal(t, "b", nearestAnchor(markers, 100))
	assert.Equal(t, "", nearestAnchor(nil, 3))
}

func TestCountTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
		{"  café  naïve ", 2},
		{"中文 文本", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountTokens(tt.text), tt.text)
	}
}

func TestFingerprint(t *testing.T) {
	chapters := []types.Chapter{{Title: "A", Text: "one two three"}}
	base := Fingerprint(chapters, DefaultConfig())

	assert.Equal(t, base, Fingerprint(chapters, DefaultConfig()))
	assert.NotEqual(t, base, Fingerprint(chapters, Config{MaxChunkTokens: 256, OverlapTokens: 64}))
	assert.NotEqual(t, base, Fingerprint([]types.Chapter{{Title: "A", Text: "one two four"}}, DefaultConfig()))
	assert.NotEqual(t, base, Fingerprint([]types.Chapter{{Title: "B", Text: "one two three"}}, DefaultConfig()))
	assert.NotEqual(t, base, Fingerprint([]types.Chapter{{Title: "A", Text: "one two three", Markers: []types.Marker{{Offset: 0, Anchor: "x"}}}}, DefaultConfig()))
}
