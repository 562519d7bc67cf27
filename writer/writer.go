// Package writer lays the assembled documents and their media assets out
// on disk and generates the run's README index.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/netjoints/blogmirror/assemble"
	"github.com/netjoints/blogmirror/media"
)

// Writer owns one output directory tree:
//
//	<root>/posts/YYYY-MM-DD_slug.md
//	<root>/media/images/<name>
//	<root>/media/videos/<name>
//	<root>/README.md
type Writer struct {
	root string
}

// New creates the output tree under root.
func New(root string) (*Writer, error) {
	for _, dir := range []string{
		filepath.Join(root, "posts"),
		filepath.Join(root, "media", "images"),
		filepath.Join(root, "media", "videos"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	return &Writer{root: root}, nil
}

// Root returns the output root directory.
func (w *Writer) Root() string {
	return w.root
}

// WriteDocument writes one assembled post under posts/.
func (w *Writer) WriteDocument(doc *assemble.Document) error {
	path := filepath.Join(w.root, "posts", doc.Filename)
	if err := os.WriteFile(path, []byte(doc.Content), 0o644); err != nil {
		return fmt.Errorf("failed to write document %s: %w", doc.Filename, err)
	}
	return nil
}

// HasDocument reports whether a document with this filename already exists
// from a previous run.
func (w *Writer) HasDocument(filename string) bool {
	_, err := os.Stat(filepath.Join(w.root, "posts", filename))
	return err == nil
}

// WriteAsset writes one downloaded media file under media/<kind>/.
func (w *Writer) WriteAsset(asset media.Asset) error {
	path := filepath.Join(w.root, "media", string(asset.Kind), asset.LocalName)
	if err := os.WriteFile(path, asset.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", asset.LocalName, err)
	}
	return nil
}

// IndexStats summarizes the run for the README.
type IndexStats struct {
	SiteURL    string
	Discovered int
	Failed     int
	Skipped    int
	MediaFiles int
}

// WriteIndex writes README.md listing every document newest first, ties
// broken by slug, with run statistics at the bottom.
func (w *Writer) WriteIndex(docs []*assemble.Document, stats IndexStats) error {
	sorted := make([]*assemble.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].PublishDate.Equal(sorted[j].PublishDate) {
			return sorted[i].PublishDate.After(sorted[j].PublishDate)
		}
		return sorted[i].Slug < sorted[j].Slug
	})

	var b strings.Builder
	b.WriteString("# Blog Archive\n\n")
	fmt.Fprintf(&b, "Mirrored from %s\n\n", stats.SiteURL)
	b.WriteString("## Posts\n\n")
	for _, doc := range sorted {
		fmt.Fprintf(&b, "- %s [%s](posts/%s)\n",
			doc.PublishDate.Format("2006-01-02"), doc.Title, doc.Filename)
	}
	if len(sorted) == 0 {
		b.WriteString("_No posts archived._\n")
	}

	b.WriteString("\n## Statistics\n\n")
	fmt.Fprintf(&b, "- Candidates discovered: %d\n", stats.Discovered)
	fmt.Fprintf(&b, "- Posts archived: %d\n", len(sorted))
	fmt.Fprintf(&b, "- Failed: %d\n", stats.Failed)
	if stats.Skipped > 0 {
		fmt.Fprintf(&b, "- Skipped (already archived): %d\n", stats.Skipped)
	}
	fmt.Fprintf(&b, "- Media files saved: %d\n", stats.MediaFiles)

	path := filepath.Join(w.root, "README.md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}
