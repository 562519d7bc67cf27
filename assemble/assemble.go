// Package assemble builds the final per-post document: YAML frontmatter,
// a slug, and a date-prefixed filename.
package assemble

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/netjoints/blogmirror/extract"
)

// maxSlugLen bounds slugs so filenames stay manageable.
const maxSlugLen = 50

// frontmatter is the YAML header of an output document. Optional fields
// are omitted rather than emitted empty.
type frontmatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Modified    string   `yaml:"modified,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	Categories  []string `yaml:"categories,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	OriginalURL string   `yaml:"original_url"`
}

// Document is one assembled post ready to be written out.
type Document struct {
	// Filename is YYYY-MM-DD_slug.md, unique within a run.
	Filename string
	Slug     string
	Content  string

	Title       string
	PublishDate time.Time
}

// Build assembles the output document for post with the given Markdown
// body. Filename uniqueness across the run is the caller's concern; Build
// is deterministic for identical input.
func Build(post *extract.Post, markdown string) (*Document, error) {
	slug := Slug(post)

	fm := frontmatter{
		Title:       post.Title,
		Date:        post.PublishDate.Format("2006-01-02"),
		Author:      post.Author,
		Categories:  post.Categories,
		Tags:        post.Tags,
		OriginalURL: post.SourceURL,
	}
	if post.ModifiedDate != nil {
		fm.Modified = post.ModifiedDate.Format("2006-01-02")
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("# %s\n\n", post.Title))
	b.WriteString(markdown)
	if !strings.HasSuffix(markdown, "\n") {
		b.WriteString("\n")
	}

	return &Document{
		Filename:    fmt.Sprintf("%s_%s.md", fm.Date, slug),
		Slug:        slug,
		Content:     b.String(),
		Title:       post.Title,
		PublishDate: post.PublishDate,
	}, nil
}

// Slug derives the post's slug: from the title when it was genuinely
// extracted, from the URL when the title had to be synthesized, and from a
// URL-derived hash when neither yields anything usable.
func Slug(post *extract.Post) string {
	source := post.Title
	if post.TitleSynthesized {
		source = lastPathSegment(post.SourceURL)
	}
	if s := slugify(source); s != "" {
		return s
	}
	if s := slugify(lastPathSegment(post.SourceURL)); s != "" {
		return s
	}
	// Deterministic last resort keyed on the source URL.
	return "post-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(post.SourceURL)).String()[:8]
}

// lastPathSegment returns the last non-numeric path segment of a URL.
func lastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	var last string
	for _, seg := range strings.Split(parsed.Path, "/") {
		if seg == "" || isDigits(seg) {
			continue
		}
		last = seg
	}
	return last
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// slugify lowercases, maps runs of non-alphanumerics to single hyphens,
// and truncates to maxSlugLen at a word boundary.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")

	if len(slug) > maxSlugLen {
		cut := slug[:maxSlugLen]
		if i := strings.LastIndex(cut, "-"); i > 0 {
			cut = cut[:i]
		}
		slug = strings.Trim(cut, "-")
	}
	return slug
}
