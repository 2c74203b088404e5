package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

func TestFlattenHTML(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "plain", src: "hello world", want: "hello world"},
		{name: "inline tags", src: "a <b>bold</b> <i>move</i>", want: "a bold move"},
		{name: "block tags", src: "<p>one</p><p>two</p>", want: "\none\n\ntwo\n"},
		{name: "self closing br", src: "line<br/>next", want: "line\nnext"},
		{name: "entities", src: "Tom &amp; Jerry &lt;3 &#8212; fin", want: "Tom & Jerry <3 — fin"},
		{name: "bare ampersand", src: "R&D dept", want: "R&D dept"},
		{name: "script dropped", src: "x<script type=\"t\">var a = 1 < 2;</script>y", want: "xy"},
		{name: "style dropped", src: "<STYLE>p{}</STYLE>text", want: "text"},
		{name: "head dropped", src: "<html><head><title>T</title></head><body>b</body></html>", want: "b"},
		{name: "unterminated tag", src: "text <unclosed", want: "text <unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := FlattenHTML(tt.src, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlattenHTML_RemapsMarkers(t *testing.T) {
	src := `<p id="a">First paragraph.</p><p id="b">Second &amp; last.</p>`
	markers := []types.Marker{
		{Offset: strings.Index(src, `<p id="b"`), Anchor: "ch1#b"},
		{Offset: 0, Anchor: "ch1#a"},
	}

	text, remapped := FlattenHTML(src, markers)
	require.Len(t, remapped, 2)

	assert.Equal(t, "ch1#a", remapped[0].Anchor)
	assert.Equal(t, "ch1#b", remapped[1].Anchor)
	assert.True(t, strings.HasPrefix(strings.TrimLeft(text[remapped[1].Offset:], "\n"), "Second & last."))
	assert.True(t, strings.HasPrefix(strings.TrimLeft(text[remapped[0].Offset:], "\n"), "First paragraph."))
}

func TestChunk_HTMLChapterAnchors(t *testing.T) {
	c := newTestChunker(t, 2, 0)
	src := `<p id="a">one two</p><p id="b">three four</p>`
	chapters := []types.Chapter{{
		Title: "Markup",
		Text:  src,
		HTML:  true,
		Markers: []types.Marker{
			{Offset: 0, Anchor: "#a"},
			{Offset: strings.Index(src, `<p id="b"`), Anchor: "#b"},
		},
	}}

	chunks := c.Chunk("doc", chapters)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one two", chunks[0].Content)
	assert.Equal(t, "three four", chunks[1].Content)
	assert.Equal(t, "#a", chunks[0].StartAnchor)
	assert.Equal(t, "#b", chunks[1].StartAnchor)
}
