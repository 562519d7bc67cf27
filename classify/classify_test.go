package classify

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyURLShapes verifies URL-only classification across the shapes a
// WordPress-style site produces.
func TestClassifyURLShapes(t *testing.T) {
	c, err := New("https://example.com")
	require.NoError(t, err)

	tests := []struct {
		name string
		url  string
		want Class
	}{
		{"dated permalink", "https://example.com/2024/01/15/my-first-post/", ClassPost},
		{"year month permalink", "https://example.com/2024/01/another-post/", ClassPost},
		{"long slug", "https://example.com/how-we-rebuilt-the-garden/", ClassPost},
		{"ugly permalink", "https://example.com/?p=123", ClassPost},
		{"site root", "https://example.com/", ClassListing},
		{"blog root", "https://example.com/blog/", ClassListing},
		{"pagination", "https://example.com/page/3/", ClassListing},
		{"nested pagination", "https://example.com/blog/page/2/", ClassListing},
		{"year archive", "https://example.com/2024/", ClassListing},
		{"month archive", "https://example.com/2024/01/", ClassListing},
		{"day archive", "https://example.com/2024/01/15/", ClassListing},
		{"feed", "https://example.com/feed/", ClassExcluded},
		{"category listing", "https://example.com/category/golang/", ClassExcluded},
		{"tag listing", "https://example.com/tag/migration/", ClassExcluded},
		{"author archive", "https://example.com/author/pat/", ClassExcluded},
		{"search", "https://example.com/search/", ClassExcluded},
		{"wp-admin", "https://example.com/wp-admin/options.php", ClassExcluded},
		{"login", "https://example.com/wp-login.php", ClassExcluded},
		{"image asset", "https://example.com/wp-content/uploads/photo.jpg", ClassExcluded},
		{"sitemap file", "https://example.com/sitemap.xml", ClassExcluded},
		{"about page", "https://example.com/about/", ClassExcluded},
		{"foreign host", "https://other.example.net/2024/01/15/post/", ClassExcluded},
		{"short opaque segment", "https://example.com/x1/", ClassExcluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.url, nil), "url: %s", tt.url)
		})
	}
}

// TestClassifyDeterministic verifies that classifying the same URL twice
// yields the same result.
func TestClassifyDeterministic(t *testing.T) {
	c, err := New("https://example.com")
	require.NoError(t, err)

	url := "https://example.com/2024/01/15/my-first-post/"
	first := c.Classify(url, nil)
	second := c.Classify(url, nil)
	assert.Equal(t, first, second, "classification must be deterministic")
}

// TestClassifyWWWEquivalence verifies that www and bare hosts are treated as
// the same site.
func TestClassifyWWWEquivalence(t *testing.T) {
	c, err := New("https://example.com")
	require.NoError(t, err)

	got := c.Classify("https://www.example.com/2024/01/15/my-first-post/", nil)
	assert.Equal(t, ClassPost, got)
}

// TestClassifyDOMListingSignal verifies that a post-shaped URL whose page
// holds multiple permalinked entries is demoted to a listing.
func TestClassifyDOMListingSignal(t *testing.T) {
	c, err := New("https://example.com")
	require.NoError(t, err)

	html := `<html><body>
		<article><h2 class="entry-title"><a href="/2024/01/15/first-post/">First</a></h2></article>
		<article><h2 class="entry-title"><a href="/2024/01/16/second-post/">Second</a></h2></article>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	got := c.Classify("https://example.com/some-long-archive-slug/", doc)
	assert.Equal(t, ClassListing, got, "multiple permalinked entries should read as a listing")
}

// TestClassifySingleEntryStaysPost verifies that one linked heading does not
// trigger the listing signal.
func TestClassifySingleEntryStaysPost(t *testing.T) {
	c, err := New("https://example.com")
	require.NoError(t, err)

	html := `<html><body>
		<article><h1 class="entry-title"><a href="/2024/01/15/only-post/">Only</a></h1>
		<div class="entry-content"><p>Body</p></div></article>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	got := c.Classify("https://example.com/2024/01/15/only-post/", doc)
	assert.Equal(t, ClassPost, got)
}

// TestEntryPermalinkCount verifies dedup of repeated hrefs and ignoring of
// anchor-only links.
func TestEntryPermalinkCount(t *testing.T) {
	html := `<html><body>
		<article><h2><a href="/2024/01/15/a/">A</a></h2></article>
		<article><h2><a href="/2024/01/15/a">A again</a></h2></article>
		<article><h2><a href="#">noise</a></h2></article>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, 1, EntryPermalinkCount(doc.Selection),
		"same permalink with and without trailing slash should count once")
}

// TestNewRejectsBareHost verifies that a base URL without a scheme is
// rejected rather than silently misparsed.
func TestNewRejectsBareHost(t *testing.T) {
	_, err := New("example.com")
	assert.Error(t, err)
}
