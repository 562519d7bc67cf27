package discover

import (
	"context"
	"fmt"
	"log"

	"github.com/netjoints/blogmirror/classify"
)

// DefaultMaxArchivePages bounds pagination per archive root, guarding
// against sites whose pagination never 404s.
const DefaultMaxArchivePages = 50

// Engine orchestrates the discovery sources and merges their output into
// one deduplicated, order-stable candidate list.
type Engine struct {
	client     fetcher
	classifier *classify.Classifier
	siteURL    string
	maxPages   int
}

// NewEngine creates a discovery engine for one site. maxArchivePages <= 0
// selects DefaultMaxArchivePages.
func NewEngine(siteURL string, client fetcher, classifier *classify.Classifier, maxArchivePages int) *Engine {
	if maxArchivePages <= 0 {
		maxArchivePages = DefaultMaxArchivePages
	}
	return &Engine{
		client:     client,
		classifier: classifier,
		siteURL:    siteURL,
		maxPages:   maxArchivePages,
	}
}

// Discover runs every discovery source and returns the post candidates in
// stable order: sitemap entries first (in sitemap order), then feed entries
// (in feed order), then archive-crawl entries (in crawl order), each
// deduplicated by normalized URL with first-seen source kept for
// provenance. Sitemap or feed absence is logged and tolerated; only a run
// that ends with zero candidates returns ErrNoCandidates.
func (e *Engine) Discover(ctx context.Context) ([]Candidate, error) {
	set := newCandidateSet()

	for _, raw := range readSitemaps(ctx, e.client, e.siteURL) {
		if e.classifier.Classify(raw, nil) == classify.ClassPost {
			set.add(raw, SourceSitemap, classify.ClassPost)
		}
	}
	sitemapCount := len(set.order)

	for _, raw := range readFeed(ctx, e.client, e.siteURL) {
		if e.classifier.Classify(raw, nil) == classify.ClassPost {
			set.add(raw, SourceFeed, classify.ClassPost)
		}
	}
	feedCount := len(set.order) - sitemapCount

	walker := &archiveWalker{
		client:     e.client,
		classifier: e.classifier,
		siteURL:    e.siteURL,
		maxPages:   e.maxPages,
	}
	if err := walker.walk(ctx, set); err != nil {
		log.Printf("WARN: Archive crawl failed: %v", err)
	}
	archiveCount := len(set.order) - sitemapCount - feedCount

	if len(set.order) == 0 {
		return nil, fmt.Errorf("discovering %s: %w", e.siteURL, ErrNoCandidates)
	}

	log.Printf("INFO: Discovered %d candidates (%d sitemap, %d feed, %d archive)",
		len(set.order), sitemapCount, feedCount, archiveCount)
	return set.order, nil
}

// candidateSet accumulates candidates in insertion order, deduplicated by
// normalized URL.
type candidateSet struct {
	order []Candidate
	seen  map[string]bool
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: map[string]bool{}}
}

// add inserts a candidate unless its normalized identity was already seen.
// Returns true when the candidate was new. URLs that fail normalization are
// dropped; they could not be fetched reliably anyway.
func (s *candidateSet) add(rawURL string, source Source, class classify.Class) bool {
	normalized, err := classify.Normalize(rawURL)
	if err != nil {
		log.Printf("WARN: Dropping unnormalizable URL %q: %v", rawURL, err)
		return false
	}
	if s.seen[normalized] {
		return false
	}
	s.seen[normalized] = true
	s.order = append(s.order, Candidate{
		URL:        rawURL,
		Normalized: normalized,
		Source:     source,
		Class:      class,
	})
	return true
}
