// Package discover builds the deduplicated, classified set of candidate
// post URLs for a site. It merges three sources: the site's sitemap(s), its
// RSS/Atom feed, and a crawl of its paginated archive pages. Candidates are
// deduplicated by normalized URL and returned in a stable order
// (sitemap-sourced first, then feed, then crawl order).
package discover

import (
	"errors"

	"github.com/netjoints/blogmirror/classify"
)

// Source tags where a candidate URL was first seen.
type Source string

const (
	// SourceSitemap marks URLs found in a sitemap or sitemap index.
	SourceSitemap Source = "sitemap"
	// SourceFeed marks URLs found in the site's RSS/Atom feed.
	SourceFeed Source = "feed"
	// SourceArchive marks URLs found while crawling archive pagination.
	SourceArchive Source = "archive"
)

// ErrNoCandidates is returned when discovery finds no post candidates at
// all. This is distinct from individual posts failing later: a run with
// zero candidates usually means a wrong site URL or an unreachable site.
var ErrNoCandidates = errors.New("no post candidates discovered")

// Candidate is a URL believed, pending extraction, to represent a single
// post. Immutable once classified.
type Candidate struct {
	// URL is the original form, used for fetching.
	URL string
	// Normalized is the dedup identity of the URL.
	Normalized string
	// Source is the discovery source that first produced the URL.
	Source Source
	// Class is the classifier's verdict for the URL.
	Class classify.Class
}
