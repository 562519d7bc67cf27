package discover

import (
	"context"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"
)

// feedPath is the default WordPress RSS feed location.
const feedPath = "/feed/"

// readFeed fetches the site's RSS/Atom feed and returns the item links in
// feed order. gofeed detects and normalizes both formats, so RSS and Atom
// feeds are handled transparently. An absent or malformed feed is not an
// error; the slice is simply empty.
func readFeed(ctx context.Context, client fetcher, siteURL string) []string {
	feedURL := strings.TrimRight(siteURL, "/") + feedPath

	body, err := client.Get(ctx, feedURL)
	if err != nil {
		log.Printf("INFO: No feed at %s: %v", feedURL, err)
		return nil
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		log.Printf("WARN: Failed to parse feed %s: %v", feedURL, err)
		return nil
	}

	urls := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link != "" {
			urls = append(urls, link)
		}
	}

	if len(urls) > 0 {
		log.Printf("INFO: Feed %s yielded %d URLs", feedURL, len(urls))
	}
	return urls
}
