package reader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/natural"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

// DefaultIncludes are the chapter file patterns used when none are configured
var DefaultIncludes = []string{"**/*.txt", "**/*.md", "**/*.html", "**/*.xhtml", "**/*.htm"}

var (
	titleTagRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1TagRe    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	anyTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	idAttrRe   = regexp.MustCompile(`(?i)<[a-z][a-z0-9]*\s(?:[^>]*?\s)?id\s*=\s*["']([^"']+)["']`)
	paraRe     = regexp.MustCompile(`\n[ \t\r]*\n\s*`)
)

// DirReader reads documents from a library directory. Each document is either
// a sub-directory of chapter files or a single chapter file.
type DirReader struct {
	root     string
	includes []string
}

var _ DocumentReader = (*DirReader)(nil)

// NewDirReader creates a reader rooted at root. Empty includes select DefaultIncludes.
func NewDirReader(root string, includes []string) (*DirReader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	for _, pattern := range includes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	return &DirReader{root: abs, includes: includes}, nil
}

// Root returns the absolute library root
func (r *DirReader) Root() string {
	return r.root
}

// Documents lists the document ids found directly under the library root
func (r *DirReader) Documents(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read library root: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() || r.shouldInclude(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *DirReader) GetChapters(ctx context.Context, documentID string) ([]types.Chapter, error) {
	docPath, err := r.resolve(documentID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(docPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDocumentUnreadable, err)
	}

	var files []string
	if info.IsDir() {
		files, err = r.chapterFiles(ctx, docPath)
		if err != nil {
			return nil, err
		}
	} else {
		files = []string{filepath.Base(docPath)}
		docPath = filepath.Dir(docPath)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no chapter files in %s", types.ErrDocumentUnreadable, documentID)
	}

	chapters := make([]types.Chapter, 0, len(files))
	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(docPath, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrDocumentUnreadable, err)
		}
		chapters = append(chapters, parseChapter(i, rel, string(data)))
	}
	return chapters, nil
}

// resolve maps a document id onto a path that stays inside the library root
func (r *DirReader) resolve(documentID string) (string, error) {
	if documentID == "" {
		return "", fmt.Errorf("%w: empty document id", types.ErrDocumentUnreadable)
	}
	docPath := filepath.Join(r.root, filepath.FromSlash(documentID))
	rel, err := filepath.Rel(r.root, docPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: document id %q escapes library root", types.ErrDocumentUnreadable, documentID)
	}
	return docPath, nil
}

// chapterFiles returns the slash-separated paths of matching files under dir in
// natural order, so chapter2 sorts before chapter10
func (r *DirReader) chapterFiles(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if r.shouldInclude(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDocumentUnreadable, err)
	}
	sort.SliceStable(files, func(i, j int) bool { return natural.Less(files[i], files[j]) })
	return files, nil
}

func (r *DirReader) shouldInclude(rel string) bool {
	for _, pattern := range r.includes {
		matched, err := doublestar.Match(pattern, rel)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// parseChapter builds a chapter from a file's content based on its extension
func parseChapter(index int, rel, content string) types.Chapter {
	ch := types.Chapter{Index: index, Text: content}

	switch strings.ToLower(path.Ext(rel)) {
	case ".html", ".htm", ".xhtml":
		ch.HTML = true
		ch.Title = htmlTitle(content)
		ch.Markers = htmlMarkers(rel, content)
	case ".md":
		ch.Title = markdownTitle(content)
		ch.Markers = paragraphMarkers(rel, content)
	default:
		ch.Markers = paragraphMarkers(rel, content)
	}

	if ch.Title == "" {
		base := path.Base(rel)
		ch.Title = strings.TrimSuffix(base, path.Ext(base))
	}
	return ch
}

func htmlTitle(content string) string {
	for _, re := range []*regexp.Regexp{titleTagRe, h1TagRe} {
		if m := re.FindStringSubmatch(content); m != nil {
			title := strings.Join(strings.Fields(anyTagRe.ReplaceAllString(m[1], " ")), " ")
			if title != "" {
				return title
			}
		}
	}
	return ""
}

// htmlMarkers anchors every element carrying an id attribute at the start of its tag
func htmlMarkers(rel, content string) []types.Marker {
	matches := idAttrRe.FindAllStringSubmatchIndex(content, -1)
	markers := make([]types.Marker, 0, len(matches))
	for _, m := range matches {
		markers = append(markers, types.Marker{
			Offset: m[0],
			Anchor: rel + "#" + content[m[2]:m[3]],
		})
	}
	return markers
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// paragraphMarkers anchors the first non-blank byte of every paragraph
func paragraphMarkers(rel, content string) []types.Marker {
	var markers []types.Marker
	n := 0
	add := func(offset int) {
		if offset >= len(content) {
			return
		}
		n++
		markers = append(markers, types.Marker{Offset: offset, Anchor: fmt.Sprintf("%s#p%d", rel, n)})
	}

	start := len(content) - len(strings.TrimLeft(content, " \t\r\n"))
	add(start)
	for _, m := range paraRe.FindAllStringIndex(content[start:], -1) {
		add(start + m[1])
	}
	return markers
}
