package chunker

import (
	"html"
	"sort"
	"strings"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// blockTags become line breaks when markup is flattened
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "pre": true,
	"ul": true, "ol": true, "table": true, "hr": true,
}

// skipTags have bodies that never contribute text
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"head":   true,
}

// FlattenHTML strips markup from XHTML chapter content and returns the plain
// text together with markers whose offsets are remapped onto that text.
func FlattenHTML(src string, markers []types.Marker) (string, []types.Marker) {
	pending := sortedMarkers(markers)
	remapped := make([]types.Marker, 0, len(pending))

	var out strings.Builder
	out.Grow(len(src))

	flush := func(pos int) {
		for len(pending) > 0 && pending[0].Offset <= pos {
			remapped = append(remapped, types.Marker{Offset: out.Len(), Anchor: pending[0].Anchor})
			pending = pending[1:]
		}
	}

	i := 0
	for i < len(src) {
		flush(i)

		switch src[i] {
		case '<':
			end := strings.IndexByte(src[i:], '>')
			if end < 0 {
				out.WriteString(src[i:])
				i = len(src)
				continue
			}
			raw := src[i+1 : i+end]
			i += end + 1

			name, closing := tagName(raw)
			if skipTags[name] && !closing && !strings.HasSuffix(raw, "/") {
				i = skipElement(src, i, name)
				continue
			}
			if blockTags[name] {
				out.WriteByte('\n')
			}

		case '&':
			semi := strings.IndexByte(src[i:], ';')
			if semi > 0 && semi <= 10 {
				entity := src[i : i+semi+1]
				if decoded := html.UnescapeString(entity); decoded != entity {
					out.WriteString(decoded)
					i += semi + 1
					continue
				}
			}
			out.WriteByte('&')
			i++

		default:
			out.WriteByte(src[i])
			i++
		}
	}
	flush(len(src))

	sort.SliceStable(remapped, func(a, b int) bool {
		return remapped[a].Offset < remapped[b].Offset
	})
	return out.String(), remapped
}

// tagName extracts the lower-cased element name from the inside of a tag
func tagName(raw string) (string, bool) {
	closing := strings.HasPrefix(raw, "/")
	raw = strings.TrimPrefix(raw, "/")
	end := strings.IndexAny(raw, " \t\r\n/")
	if end >= 0 {
		raw = raw[:end]
	}
	return strings.ToLower(raw), closing
}

// skipElement returns the position just past the closing tag of name
func skipElement(src string, pos int, name string) int {
	lower := strings.ToLower(src[pos:])
	idx := strings.Index(lower, "</"+name)
	if idx < 0 {
		return len(src)
	}
	end := strings.IndexByte(lower[idx:], '>')
	if end < 0 {
		return len(src)
	}
	return pos + idx + end + 1
}
