package extract

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow keeps the "today" definition stable across all tests.
var fixedNow = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{Now: fixedNow}
}

// page wraps body markup in a minimal post shell.
func page(head, body string) []byte {
	return []byte(fmt.Sprintf(
		`<html><head>%s</head><body><article class="hentry"><div class="entry-content">%s</div></article></body></html>`,
		head, body))
}

func TestExtractFullPost(t *testing.T) {
	html := []byte(`<html><head>
		<meta property="article:published_time" content="2024-01-15T10:30:00Z">
		<meta property="article:modified_time" content="2024-03-02T08:00:00Z">
		<meta property="article:author" content="Jane Smith">
	</head><body>
		<article>
			<h1 class="entry-title">My First Post</h1>
			<span class="cat-links"><a href="/category/go/">Go</a><a href="/category/web/">Web</a></span>
			<span class="tag-links"><a href="/tag/tutorial/">tutorial</a></span>
			<div class="entry-content"><p>Hello world.</p><img src="/img/a.png"></div>
		</article>
	</body></html>`)

	post, err := Extract(html, "https://example.com/2024/01/15/my-first-post/", testOptions())
	require.NoError(t, err)

	assert.Equal(t, "My First Post", post.Title)
	assert.False(t, post.TitleSynthesized)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), post.PublishDate)
	require.NotNil(t, post.ModifiedDate)
	assert.Equal(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), *post.ModifiedDate)
	assert.Equal(t, "Jane Smith", post.Author)
	assert.Equal(t, []string{"Go", "Web"}, post.Categories)
	assert.Equal(t, []string{"tutorial"}, post.Tags)
	assert.Contains(t, post.BodyHTML, "Hello world.")
	assert.Contains(t, post.BodyHTML, `<img src="/img/a.png"`)
}

// TestExtractTitleFallbackChain walks the chain one missing rung at a time.
func TestExtractTitleFallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		html      []byte
		url       string
		wantTitle string
		wantSynth bool
	}{
		{
			name:      "entry-title wins over generic h1",
			html:      []byte(`<html><body><h1>Site Name</h1><article><h1 class="entry-title">Real Title</h1><div class="entry-content"><p>x</p><time datetime="2024-01-15"></time></div></article></body></html>`),
			url:       "https://example.com/real-title/",
			wantTitle: "Real Title",
		},
		{
			name:      "article h1 when no classed title",
			html:      []byte(`<html><body><article><h1>Plain Heading</h1><div class="entry-content"><p>x</p><time datetime="2024-01-15"></time></div></article></body></html>`),
			url:       "https://example.com/plain/",
			wantTitle: "Plain Heading",
		},
		{
			name:      "title tag with site suffix stripped",
			html:      page(`<title>Great Article | My Blog</title><meta property="article:published_time" content="2024-01-15">`, `<p>x</p>`),
			url:       "https://example.com/great-article/",
			wantTitle: "Great Article",
		},
		{
			name:      "synthesized from URL slug",
			html:      page(`<meta property="article:published_time" content="2024-01-15">`, `<p>x</p>`),
			url:       "https://example.com/2024/01/15/my-missing-title/",
			wantTitle: "My Missing Title",
			wantSynth: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := Extract(tt.html, tt.url, testOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, post.Title)
			assert.Equal(t, tt.wantSynth, post.TitleSynthesized)
		})
	}
}

func TestExtractOverlongTitleRejected(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "navigation menu item "
	}
	html := []byte(fmt.Sprintf(
		`<html><body><article><h1 class="entry-title">%s</h1><div class="entry-content"><p>x</p><time datetime="2024-01-15"></time></div></article></body></html>`,
		long))

	post, err := Extract(html, "https://example.com/short-slug-here/", testOptions())
	require.NoError(t, err)
	assert.True(t, post.TitleSynthesized, "concatenated menu text must not become the title")
	assert.Equal(t, "Short Slug Here", post.Title)
}

// TestExtractDatePrefersHistorical verifies that a page carrying both a
// real publish date and today's rendering timestamp keeps the real one,
// even when today's appears earlier in the chain.
func TestExtractDatePrefersHistorical(t *testing.T) {
	today := fixedNow.Format(time.RFC3339)
	html := page(
		fmt.Sprintf(`<meta property="article:published_time" content="%s">`, today),
		`<p>x</p><time class="entry-date" datetime="2023-06-10T09:00:00Z">June 10, 2023</time>`)

	post, err := Extract(html, "https://example.com/old-post-slug/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2023, post.PublishDate.Year(), "historical date should win over today's")
}

// TestExtractDateAllToday verifies a genuinely just-published post is not
// rejected: when every candidate is today, the first one is kept.
func TestExtractDateAllToday(t *testing.T) {
	today := fixedNow.Add(-2 * time.Hour).Format(time.RFC3339)
	html := page(
		fmt.Sprintf(`<meta property="article:published_time" content="%s">`, today),
		`<p>x</p>`)

	post, err := Extract(html, "https://example.com/fresh-post-today/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(-2*time.Hour), post.PublishDate)
}

// TestExtractDatePublishedOutranksGenericTime verifies that an explicit
// published-scoped time element wins over a generic time element appearing
// earlier in the document.
func TestExtractDatePublishedOutranksGenericTime(t *testing.T) {
	html := page("",
		`<time datetime="2020-05-05">an event date in the body</time>
		<p>x</p>
		<time class="published" datetime="2023-06-10T09:00:00Z">June 10, 2023</time>`)

	post, err := Extract(html, "https://example.com/scoped-date-post/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 10, 9, 0, 0, 0, time.UTC), post.PublishDate)
}

func TestExtractDateFromURL(t *testing.T) {
	html := page("", `<p>No date markup anywhere.</p>`)

	post, err := Extract(html, "https://example.com/2022/11/05/dated-by-url-only/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 11, 5, 0, 0, 0, 0, time.UTC), post.PublishDate)
}

func TestExtractDateFromJSONLD(t *testing.T) {
	html := page(
		`<script type="application/ld+json">{"@graph":[{"@type":"WebSite"},{"@type":"Article","datePublished":"2021-04-12T07:00:00Z","dateModified":"2021-05-01T07:00:00Z"}]}</script>`,
		`<p>x</p>`)

	post, err := Extract(html, "https://example.com/json-ld-post/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 4, 12, 7, 0, 0, 0, time.UTC), post.PublishDate)
	require.NotNil(t, post.ModifiedDate)
	assert.Equal(t, time.Date(2021, 5, 1, 7, 0, 0, 0, time.UTC), *post.ModifiedDate)
}

func TestExtractNoDate(t *testing.T) {
	html := page("", `<p>Content but nothing resembling a date.</p>`)

	_, err := Extract(html, "https://example.com/undated-post-slug/", testOptions())
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, NoDate, failure.Kind)
}

func TestExtractNoContent(t *testing.T) {
	html := []byte(`<html><body><div class="sidebar">widgets</div></body></html>`)

	_, err := Extract(html, "https://example.com/empty-page/", testOptions())
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, NoContent, failure.Kind)
}

// TestExtractRejectsListing verifies a page whose content container holds
// several permalinked entries is rejected even when its URL looked like a
// post.
func TestExtractRejectsListing(t *testing.T) {
	html := []byte(`<html><body><article><div class="entry-content">
		<h2><a href="/2024/01/15/first/">First</a></h2><p>excerpt</p>
		<h2><a href="/2024/01/16/second/">Second</a></h2><p>excerpt</p>
		<h2><a href="/2024/01/17/third/">Third</a></h2><p>excerpt</p>
	</div></article></body></html>`)

	_, err := Extract(html, "https://example.com/interesting-long-slug/", testOptions())
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, IsListing, failure.Kind)
}

// TestExtractSingleSelfLinkNotListing verifies one permalinked heading (the
// post linking to itself) does not trigger the listing rejection.
func TestExtractSingleSelfLinkNotListing(t *testing.T) {
	html := []byte(`<html><body><article><div class="entry-content">
		<h2><a href="/2024/01/15/this-post/">This Post</a></h2>
		<p>The actual body.</p>
		<time datetime="2024-01-15"></time>
	</div></article></body></html>`)

	_, err := Extract(html, "https://example.com/2024/01/15/this-post/", testOptions())
	require.NoError(t, err)
}

func TestExtractSanitizesBody(t *testing.T) {
	html := page(
		`<meta property="article:published_time" content="2024-01-15">`,
		`<p>Keep me.</p>
		<script>alert(1)</script>
		<div class="sharedaddy">share buttons</div>
		<nav class="post-navigation"><a href="/next/">Next</a></nav>
		<div id="comments">42 comments</div>`)

	post, err := Extract(html, "https://example.com/sanitized-post/", testOptions())
	require.NoError(t, err)
	assert.Contains(t, post.BodyHTML, "Keep me.")
	assert.NotContains(t, post.BodyHTML, "alert(1)")
	assert.NotContains(t, post.BodyHTML, "share buttons")
	assert.NotContains(t, post.BodyHTML, "42 comments")
	assert.NotContains(t, post.BodyHTML, "Next")
}

// TestExtractModifiedDateDropped verifies same-day and impossible modified
// dates are discarded.
func TestExtractModifiedDateDropped(t *testing.T) {
	tests := []struct {
		name     string
		modified string
	}{
		{"same day as publish", "2024-01-15T18:00:00Z"},
		{"before publish", "2023-12-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := page(fmt.Sprintf(
				`<meta property="article:published_time" content="2024-01-15T10:00:00Z">
				 <meta property="article:modified_time" content="%s">`, tt.modified),
				`<p>x</p>`)

			post, err := Extract(html, "https://example.com/some-post-here/", testOptions())
			require.NoError(t, err)
			assert.Nil(t, post.ModifiedDate)
		})
	}
}

func TestExtractTaxonomyDeduplicated(t *testing.T) {
	html := []byte(`<html><body><article>
		<span class="cat-links"><a href="/c/go/">Go</a></span>
		<div class="entry-content"><p>x</p><time datetime="2024-01-15"></time></div>
		<footer class="cat-links"><a href="/c/go/">Go</a><a href="/c/news/">News</a></footer>
	</article></body></html>`)

	post, err := Extract(html, "https://example.com/taxonomy-post/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "News"}, post.Categories)
}

func TestExtractAuthorFallback(t *testing.T) {
	html := []byte(`<html><body><article>
		<span class="byline">By <span class="author">John Doe</span></span>
		<div class="entry-content"><p>x</p><time datetime="2024-01-15"></time></div>
	</article></body></html>`)

	post, err := Extract(html, "https://example.com/authored-post/", testOptions())
	require.NoError(t, err)
	assert.Equal(t, "John Doe", post.Author)
}

func TestExtractAuthorURLInMetaIgnored(t *testing.T) {
	html := page(`<meta property="article:author" content="https://example.com/author/jane/">
		<meta property="article:published_time" content="2024-01-15">`, `<p>x</p>`)

	post, err := Extract(html, "https://example.com/meta-author-url/", testOptions())
	require.NoError(t, err)
	assert.Empty(t, post.Author, "profile URLs are not author names")
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/2024/01/15/my-first-post/", "My First Post"},
		{"https://example.com/hello_world/", "Hello World"},
		{"https://example.com/2024/01/15/", "Untitled Post"},
		{"https://example.com/", "Untitled Post"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleFromURL(tt.url), tt.url)
	}
}

func TestParseDateLayouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"January 15, 2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := parseDate(tt.raw)
		require.True(t, ok, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	for _, raw := range []string{"", "not a date", "1850-01-01", "9999-01-01"} {
		_, ok := parseDate(raw)
		assert.False(t, ok, raw)
	}
}
