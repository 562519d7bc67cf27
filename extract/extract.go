// Package extract turns fetched post HTML into a structured Post record.
// Every field is resolved through an ordered fallback chain of selectors
// and heuristics, tried most-specific first, so that extraction degrades
// gracefully across themes instead of failing on the first layout it was
// not written for.
package extract

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/netjoints/blogmirror/classify"
)

// maxTitleLen is the sanity bound on extracted titles. Anything longer has
// almost certainly captured navigation or concatenated menu text.
const maxTitleLen = 200

// DefaultTodayWindow is how close to the run start a date must be to count
// as "today" — a rendering timestamp rather than a publication date.
const DefaultTodayWindow = 24 * time.Hour

// Post is the structured record extracted from one post page. Immutable
// after extraction except for BodyHTML, which the media pipeline rewrites
// in place.
type Post struct {
	Title string
	// TitleSynthesized is set when no title could be extracted and Title
	// was derived from the URL slug instead.
	TitleSynthesized bool
	PublishDate      time.Time
	// ModifiedDate is present only when distinct from PublishDate.
	ModifiedDate *time.Time
	Author       string
	Categories   []string
	Tags         []string
	BodyHTML     string
	SourceURL    string
}

// Options tunes extraction heuristics.
type Options struct {
	// Now is the run start instant, captured once per run so the "today"
	// definition stays stable across candidates.
	Now time.Time
	// TodayWindow is how far from Now a date still counts as "today".
	// Zero selects DefaultTodayWindow.
	TodayWindow time.Duration
}

// titleSelectors is the ordered title fallback chain, most specific first.
var titleSelectors = []string{
	"h1.entry-title",
	"h1.post-title",
	"article h1",
	"h1[class*='title']",
	".entry-title",
	".post-title",
}

// bodySelectors is the ordered content-container chain.
var bodySelectors = []string{
	"article .entry-content",
	".entry-content",
	".post-content",
	"article .content",
	"[class*='post-content']",
	"article",
	".hentry",
	"main",
}

// authorSelectors is the ordered author chain, tried after the meta tag.
var authorSelectors = []string{
	".author-name",
	".entry-author",
	"[rel='author']",
	".byline .author",
	"[itemprop='author']",
}

// nonContentSelectors are known non-content subtrees removed from the
// matched body container before conversion: scripts, sharing widgets,
// related-post blocks, comment forms, and intra-site navigation.
var nonContentSelectors = strings.Join([]string{
	"script", "style", "noscript",
	"nav", ".post-navigation", ".navigation",
	".comments", "#comments", ".comment-respond", "#respond",
	".share", ".sharing", ".sharedaddy", ".social-share",
	".related-posts", ".jp-relatedposts",
	".wp-block-comments",
}, ", ")

// Extract parses html fetched from sourceURL and resolves a Post through
// the per-field fallback chains. It returns a *Failure for the three
// rejection cases (no content, no date, listing page); any other error is
// a parse-level problem with the HTML itself.
func Extract(html []byte, sourceURL string, opts Options) (*Post, error) {
	if opts.TodayWindow <= 0 {
		opts.TodayWindow = DefaultTodayWindow
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	body := findBody(doc)
	if body == nil {
		return nil, &Failure{Kind: NoContent, URL: sourceURL}
	}
	if classify.EntryPermalinkCount(body) > 1 {
		return nil, &Failure{Kind: IsListing, URL: sourceURL}
	}

	publish, modified := extractDates(doc, sourceURL, opts)
	if publish.IsZero() {
		return nil, &Failure{Kind: NoDate, URL: sourceURL}
	}

	title, synthesized := extractTitle(doc, sourceURL)

	sanitizeBody(body)
	bodyHTML, err := goquery.OuterHtml(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body.Text()) == "" && body.Find("img, video").Length() == 0 {
		return nil, &Failure{Kind: NoContent, URL: sourceURL}
	}

	post := &Post{
		Title:            title,
		TitleSynthesized: synthesized,
		PublishDate:      publish,
		Author:           extractAuthor(doc),
		Categories:       extractTaxonomy(doc, "a[rel='category tag'], .cat-links a, .post-categories a"),
		Tags:             extractTaxonomy(doc, "a[rel='tag'], .tag-links a, .post-tags a"),
		BodyHTML:         bodyHTML,
		SourceURL:        sourceURL,
	}

	// A modified date equal to (or impossibly before) the publish date
	// carries no information and is dropped.
	if modified != nil && !sameDay(*modified, publish) && !modified.Before(publish) {
		post.ModifiedDate = modified
	}

	return post, nil
}

// extractTitle walks the title chain: structural selectors, then any h1
// outside navigation, then the <title> tag, then a slug synthesized from
// the URL path. The last step always succeeds, so a missing title is never
// fatal; the synthesized flag records that it happened.
func extractTitle(doc *goquery.Document, sourceURL string) (title string, synthesized bool) {
	for _, selector := range titleSelectors {
		if t := cleanTitle(doc.Find(selector).First().Text()); t != "" {
			return t, false
		}
	}

	// Any h1 not inside site chrome.
	var fallback string
	doc.Find("h1").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if h.ParentsFiltered("nav, header").Length() > 0 {
			return true
		}
		fallback = cleanTitle(h.Text())
		return fallback == ""
	})
	if fallback != "" {
		return fallback, false
	}

	// The <title> tag usually appends the site name after a separator.
	if raw := doc.Find("title").First().Text(); raw != "" {
		head := strings.SplitN(raw, "|", 2)[0]
		head = strings.SplitN(head, " - ", 2)[0]
		if t := cleanTitle(head); t != "" {
			return t, false
		}
	}

	return TitleFromURL(sourceURL), true
}

// cleanTitle normalizes whitespace and applies the length sanity bound.
// Returns "" for rejected candidates so the chain continues.
func cleanTitle(raw string) string {
	t := strings.Join(strings.Fields(raw), " ")
	if t == "" || len([]rune(t)) >= maxTitleLen {
		return ""
	}
	return t
}

// TitleFromURL derives a human-readable title from the last non-numeric
// path segment of a URL: "my-first-post" becomes "My First Post". Used as
// the terminal title fallback and exported for the assembler's slug logic.
func TitleFromURL(sourceURL string) string {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return "Untitled Post"
	}

	var slug string
	for _, seg := range strings.Split(parsed.Path, "/") {
		if seg != "" && !isAllDigits(seg) {
			slug = seg
		}
	}
	if slug == "" {
		return "Untitled Post"
	}

	words := strings.Split(strings.ReplaceAll(slug, "_", "-"), "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// findBody returns the first body-container selector match that holds any
// content, or nil when the chain is exhausted.
func findBody(doc *goquery.Document) *goquery.Selection {
	for _, selector := range bodySelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if strings.TrimSpace(sel.Text()) != "" || sel.Find("img, video").Length() > 0 {
			return sel
		}
	}
	return nil
}

// sanitizeBody removes known non-content subtrees from the matched
// container in place.
func sanitizeBody(body *goquery.Selection) {
	body.Find(nonContentSelectors).Remove()
	body.Find("form").Each(func(_ int, f *goquery.Selection) {
		// Comment and search forms are chrome; forms embedded in content
		// are rare enough that removal is the safer default.
		f.Remove()
	})
}

// extractAuthor walks the author chain. Absence is fine; the field is
// simply empty.
func extractAuthor(doc *goquery.Document) string {
	if meta, ok := doc.Find("meta[property='article:author']").First().Attr("content"); ok {
		meta = strings.TrimSpace(meta)
		// Some themes put a profile URL here rather than a name.
		if meta != "" && !strings.HasPrefix(meta, "http://") && !strings.HasPrefix(meta, "https://") {
			return meta
		}
	}

	for _, selector := range authorSelectors {
		if name := strings.Join(strings.Fields(doc.Find(selector).First().Text()), " "); name != "" {
			return strings.TrimPrefix(name, "By ")
		}
	}
	return ""
}

// extractTaxonomy collects link texts matching selector in document order,
// deduplicated case-sensitively on first occurrence.
func extractTaxonomy(doc *goquery.Document, selector string) []string {
	var terms []string
	seen := map[string]bool{}
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		term := strings.TrimSpace(a.Text())
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, term)
	})
	return terms
}

// sameDay reports whether two instants fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
