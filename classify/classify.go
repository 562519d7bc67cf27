// Package classify decides what role a URL plays on a blog-like site: a
// single post, a listing/archive page, or something excluded from migration
// entirely. Classification is a pure function of the URL (and, when
// available, the fetched DOM) so results are deterministic and cacheable.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Class is the classification assigned to a candidate URL.
type Class string

const (
	// ClassPost marks a URL that likely holds a single content item.
	ClassPost Class = "post"
	// ClassListing marks a URL that aggregates links to multiple items.
	ClassListing Class = "listing"
	// ClassExcluded marks a URL that is neither a post nor a listing worth
	// walking (feeds, admin pages, assets, static site pages).
	ClassExcluded Class = "excluded"
)

// excludedSegments are path segments that mark structural non-post pages:
// feeds, taxonomy listing roots, search, author archives, and WordPress
// admin/login surfaces.
var excludedSegments = map[string]bool{
	"feed":        true,
	"rss":         true,
	"category":    true,
	"tag":         true,
	"author":      true,
	"search":      true,
	"wp-admin":    true,
	"wp-login":    true,
	"wp-json":     true,
	"wp-content":  true,
	"wp-includes": true,
	"login":       true,
	"admin":       true,
	"attachment":  true,
	"comments":    true,
	"about":       true,
	"contact":     true,
	"privacy":     true,
	"terms":       true,
	"sitemap":     true,
}

// excludedExtensions are file extensions that identify asset or machine
// resources rather than content pages.
var excludedExtensions = []string{
	".xml", ".json", ".rss", ".atom",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".pdf", ".zip", ".css", ".js",
	".mp3", ".mp4", ".webm", ".woff", ".woff2",
}

// archiveRootSegments are first path segments of chronological listing roots.
var archiveRootSegments = map[string]bool{
	"blog":     true,
	"posts":    true,
	"archives": true,
	"archive":  true,
	"news":     true,
}

var (
	// paginationPattern matches archive pagination paths like /page/3.
	paginationPattern = regexp.MustCompile(`(^|/)page/\d+$`)
	// dateArchivePattern matches date-only archive paths: /2024, /2024/01,
	// /2024/01/15. These list posts for a period rather than holding one.
	dateArchivePattern = regexp.MustCompile(`^/\d{4}(/\d{2})?(/\d{2})?$`)
	// datedPostPattern matches date-segmented permalinks that carry a slug
	// after the date: /2024/01/15/some-post or /2024/01/some-post.
	datedPostPattern = regexp.MustCompile(`^/\d{4}/\d{2}(/\d{2})?/[^/]+`)
	// slugSegmentPattern matches a hyphenated post slug of meaningful length.
	slugSegmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{9,}$`)
)

// Classifier classifies URLs relative to one site. URLs outside the site's
// host are always excluded.
type Classifier struct {
	site *url.URL
}

// New creates a classifier scoped to the given base site URL.
func New(siteURL string) (*Classifier, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &url.Error{Op: "classify", URL: siteURL, Err: errMissingSchemeOrHost}
	}
	return &Classifier{site: parsed}, nil
}

// Classify assigns a class to rawURL. The doc argument is optional; when
// non-nil, a DOM signal (multiple independently permalinked entries inside
// the main content region) can demote a post-shaped URL to a listing.
// The decision order is exclusion, then listing shapes, then post shapes;
// anything unrecognized is excluded.
func (c *Classifier) Classify(rawURL string, doc *goquery.Document) Class {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ClassExcluded
	}
	resolved := c.site.ResolveReference(parsed)

	if !sameHost(resolved.Host, c.site.Host) {
		return ClassExcluded
	}

	path := strings.TrimRight(resolved.Path, "/")
	lower := strings.ToLower(path)

	if isExcludedPath(lower) {
		return ClassExcluded
	}

	// Ugly permalinks (?p=123) identify a single post regardless of path.
	if resolved.Query().Get("p") != "" {
		return ClassPost
	}

	if isListingPath(lower) {
		return ClassListing
	}
	if doc != nil && EntryPermalinkCount(doc.Selection) > 1 {
		return ClassListing
	}
	if isPostPath(lower) {
		return ClassPost
	}

	return ClassExcluded
}

// sameHost compares hosts ignoring a leading www prefix, so that a site
// reached as example.com still claims links written against www.example.com.
func sameHost(a, b string) bool {
	trim := func(h string) string {
		return strings.TrimPrefix(strings.ToLower(h), "www.")
	}
	return trim(a) == trim(b)
}

// isExcludedPath reports whether the path contains a denylisted segment or
// ends in an asset extension.
func isExcludedPath(lower string) bool {
	for _, seg := range strings.Split(strings.TrimLeft(lower, "/"), "/") {
		if excludedSegments[seg] {
			return true
		}
	}
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// isListingPath reports whether the path is a known multi-item shape: the
// site root, an archive root, a pagination path, or a date-only archive.
func isListingPath(lower string) bool {
	if lower == "" {
		return true
	}
	segments := strings.Split(strings.TrimLeft(lower, "/"), "/")
	if len(segments) == 1 && archiveRootSegments[segments[0]] {
		return true
	}
	if paginationPattern.MatchString(lower) {
		return true
	}
	return dateArchivePattern.MatchString(lower)
}

// isPostPath reports whether the path shape matches a single-item
// convention: a date-segmented permalink with a trailing slug, or a path
// whose final segment is a long hyphenated slug. This is a heuristic; false
// positives are filtered later when extraction fails cleanly.
func isPostPath(lower string) bool {
	if datedPostPattern.MatchString(lower) {
		return true
	}
	segments := strings.Split(strings.TrimLeft(lower, "/"), "/")
	last := segments[len(segments)-1]
	return slugSegmentPattern.MatchString(last)
}

// EntryPermalinkCount counts distinct permalink-carrying entry headings
// within sel. Listing pages render several independent entries, each with a
// heading that links to its own post; a single post page has at most one
// (and usually an unlinked heading). sel may be a whole document or just
// the matched content container; the extraction pipeline uses the same
// count for its listing rejection.
func EntryPermalinkCount(sel *goquery.Selection) int {
	seen := map[string]bool{}
	sel.Find("h1 a[href], h2 a[href], h3.entry-title a[href]").
		Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			href = strings.TrimRight(strings.TrimSpace(href), "/")
			if href == "" || strings.HasPrefix(href, "#") {
				return
			}
			seen[href] = true
		})
	return len(seen)
}
