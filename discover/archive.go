package discover

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/netjoints/blogmirror/classify"
)

// archiveRootPaths are the listing roots tried for the pagination crawl, in
// addition to the site root itself.
var archiveRootPaths = []string{"/", "/blog/", "/posts/", "/archives/"}

// archiveWalker paginates a site's chronological listing pages, collecting
// post-candidate links from each page through the classifier.
type archiveWalker struct {
	client     fetcher
	classifier *classify.Classifier
	siteURL    string
	maxPages   int
}

// walk crawls every archive root and its pagination, feeding discovered
// post candidates into set. It returns an error only when no archive root
// was reachable at all; individual page failures just end that root's walk.
func (w *archiveWalker) walk(ctx context.Context, set *candidateSet) error {
	base := strings.TrimRight(w.siteURL, "/")
	rootsReached := 0

	for _, rootPath := range archiveRootPaths {
		rootURL := base + rootPath
		if err := w.walkRoot(ctx, rootURL, set); err != nil {
			log.Printf("INFO: Archive root %s not crawlable: %v", rootURL, err)
			continue
		}
		rootsReached++
	}

	if rootsReached == 0 {
		return fmt.Errorf("failed to reach any archive root for %s", w.siteURL)
	}
	return nil
}

// walkRoot crawls one listing root and its /page/N/ pagination. The walk
// stops when a page contributes zero new post candidates, when a page
// fetch fails (normal end of pagination), or when the page cap is reached;
// whichever fires is logged.
func (w *archiveWalker) walkRoot(ctx context.Context, rootURL string, set *candidateSet) error {
	body, err := w.client.Get(ctx, rootURL)
	if err != nil {
		return err
	}
	w.collectLinks(rootURL, body, set)

	for page := 2; ; page++ {
		if page > w.maxPages {
			log.Printf("INFO: Stopping pagination of %s: page cap %d reached", rootURL, w.maxPages)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := strings.TrimRight(rootURL, "/") + fmt.Sprintf("/page/%d/", page)
		body, err := w.client.Get(ctx, pageURL)
		if err != nil {
			log.Printf("INFO: Stopping pagination of %s at page %d: %v", rootURL, page, err)
			return nil
		}

		added := w.collectLinks(pageURL, body, set)
		if added == 0 {
			log.Printf("INFO: Stopping pagination of %s at page %d: no new candidates", rootURL, page)
			return nil
		}
	}
}

// collectLinks extracts every link from an archive page, classifies it, and
// adds post candidates to set. Returns how many candidates were new.
func (w *archiveWalker) collectLinks(pageURL string, body []byte, set *candidateSet) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.Printf("WARN: Failed to parse archive page %s: %v", pageURL, err)
		return 0
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return 0
	}

	added := 0
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref).String()

		if w.classifier.Classify(absolute, nil) != classify.ClassPost {
			return
		}
		if set.add(absolute, SourceArchive, classify.ClassPost) {
			added++
		}
	})
	return added
}
