package discover

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"strings"
)

// wellKnownSitemapPaths are the locations WordPress and common SEO plugins
// publish sitemaps at, tried in order.
var wellKnownSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/wp-sitemap.xml",
}

// maxChildSitemaps bounds how many child sitemaps of an index are fetched,
// guarding against pathological indexes.
const maxChildSitemaps = 50

// xmlURLSet is the root element of a standard sitemap file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc string `xml:"loc"`
}

// xmlSitemapIndex is the root element of a sitemap index file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// fetcher is the network dependency of discovery, satisfied by
// *fetch.Client. Narrowed to an interface so tests can stub it.
type fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// readSitemaps fetches the site's sitemaps from the well-known locations
// and returns every URL they list, in sitemap order. Sitemap indexes are
// followed one level deep. An absent or unreachable sitemap is not an
// error: the slice is simply empty and discovery continues with other
// sources.
func readSitemaps(ctx context.Context, client fetcher, siteURL string) []string {
	base := strings.TrimRight(siteURL, "/")

	for _, path := range wellKnownSitemapPaths {
		sitemapURL := base + path
		body, err := client.Get(ctx, sitemapURL)
		if err != nil {
			log.Printf("INFO: No sitemap at %s: %v", sitemapURL, err)
			continue
		}

		urls := parseSitemapDocument(ctx, client, body)
		if len(urls) > 0 {
			log.Printf("INFO: Sitemap %s yielded %d URLs", sitemapURL, len(urls))
			return urls
		}
	}

	return nil
}

// parseSitemapDocument parses body as either a urlset or a sitemap index.
// For an index, each child sitemap is fetched and its URLs appended in
// index order.
func parseSitemapDocument(ctx context.Context, client fetcher, body []byte) []string {
	if urls, err := parseURLSet(body); err == nil && len(urls) > 0 {
		return urls
	}

	children, err := parseSitemapIndex(body)
	if err != nil || len(children) == 0 {
		return nil
	}
	if len(children) > maxChildSitemaps {
		log.Printf("WARN: Sitemap index lists %d child sitemaps, reading first %d",
			len(children), maxChildSitemaps)
		children = children[:maxChildSitemaps]
	}

	var urls []string
	for _, child := range children {
		childBody, err := client.Get(ctx, child)
		if err != nil {
			log.Printf("WARN: Failed to fetch child sitemap %s: %v", child, err)
			continue
		}
		childURLs, err := parseURLSet(childBody)
		if err != nil {
			log.Printf("WARN: Failed to parse child sitemap %s: %v", child, err)
			continue
		}
		urls = append(urls, childURLs...)
	}
	return urls
}

// parseURLSet parses a standard sitemap and returns its URLs.
func parseURLSet(body []byte) ([]string, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}

	urls := make([]string, 0, len(urlset.URLs))
	for _, u := range urlset.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// parseSitemapIndex parses a sitemap index and returns the child sitemap
// URLs listed within it.
func parseSitemapIndex(body []byte) ([]string, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap index: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		loc := strings.TrimSpace(s.Loc)
		if loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}
