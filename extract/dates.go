package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// dateLayouts are the formats tried when parsing a raw date string, most
// precise first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
}

// urlDatePattern extracts the date segments of a dated permalink.
var urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{2})(?:/(\d{2}))?/`)

// publishedTimeSelectors are explicitly published-scoped time elements,
// checked right after the article meta tags and before any generic time
// element on the page.
var publishedTimeSelectors = []string{
	"time.published",
	"time.entry-date",
	".entry-date.published",
}

// publishedTextSelectors are text/attribute date carriers checked after the
// machine-readable signals, in preference order.
var publishedTextSelectors = []string{
	".published",
	".post-date",
	"[itemprop='datePublished']",
	"[itemprop='dateCreated']",
}

// modifiedDateSelectors carry a distinct "updated" signal.
var modifiedDateSelectors = []string{
	"time.updated",
	"time.modified",
	".updated",
	".modified",
	"[itemprop='dateModified']",
}

// extractDates resolves the publish date through its fallback chain and
// the modified date through a separate "updated"-scoped chain. Candidates
// whose value falls inside the today window of the run start are
// deprioritized: a page rendering today's date is far more often showing
// "accessed at" than "published at". Only when no out-of-window candidate
// exists anywhere on the page is a today-valued one accepted. A zero
// publish time means nothing was recoverable.
func extractDates(doc *goquery.Document, sourceURL string, opts Options) (time.Time, *time.Time) {
	candidates := publishCandidates(doc, sourceURL)

	var publish time.Time
	var todayFallback time.Time
	for _, c := range candidates {
		if withinWindow(c, opts.Now, opts.TodayWindow) {
			if todayFallback.IsZero() {
				todayFallback = c
			}
			continue
		}
		publish = c
		break
	}
	if publish.IsZero() {
		publish = todayFallback
	}

	modified := extractModified(doc)
	return publish, modified
}

// publishCandidates gathers every publish-date signal on the page in
// chain order: article meta tags, published-scoped time elements, generic
// time elements outside site chrome, JSON-LD, the text selector chain, and
// finally the URL's own date segments.
func publishCandidates(doc *goquery.Document, sourceURL string) []time.Time {
	var candidates []time.Time
	add := func(raw string) {
		if t, ok := parseDate(raw); ok {
			candidates = append(candidates, t)
		}
	}

	for _, prop := range []string{"article:published_time", "article:created_time"} {
		if content, ok := doc.Find("meta[property='" + prop + "']").First().Attr("content"); ok {
			add(content)
		}
	}

	for _, selector := range publishedTimeSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if dt, ok := el.Attr("datetime"); ok {
			add(dt)
			continue
		}
		add(strings.TrimSpace(el.Text()))
	}

	doc.Find("time[datetime]").Each(func(_ int, el *goquery.Selection) {
		class, _ := el.Attr("class")
		lower := strings.ToLower(class)
		if strings.Contains(lower, "updated") || strings.Contains(lower, "modified") {
			return
		}
		// Dates in navigation or the footer describe the site, not the post.
		if el.ParentsFiltered("nav, footer, header").Length() > 0 {
			return
		}
		dt, _ := el.Attr("datetime")
		add(dt)
	})

	if published, _ := jsonLDDates(doc); published != "" {
		add(published)
	}

	for _, selector := range publishedTextSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if dt, ok := el.Attr("datetime"); ok {
			add(dt)
			continue
		}
		add(strings.TrimSpace(el.Text()))
	}

	if t, ok := dateFromURL(sourceURL); ok {
		candidates = append(candidates, t)
	}

	return candidates
}

// extractModified resolves the modified date through its own chain.
func extractModified(doc *goquery.Document) *time.Time {
	if content, ok := doc.Find("meta[property='article:modified_time']").First().Attr("content"); ok {
		if t, ok := parseDate(content); ok {
			return &t
		}
	}

	for _, selector := range modifiedDateSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		raw, ok := el.Attr("datetime")
		if !ok {
			raw = strings.TrimSpace(el.Text())
		}
		if t, ok := parseDate(raw); ok {
			return &t
		}
	}

	if _, modified := jsonLDDates(doc); modified != "" {
		if t, ok := parseDate(modified); ok {
			return &t
		}
	}

	return nil
}

// jsonLDDates pulls datePublished/dateCreated and dateModified out of the
// page's JSON-LD blocks. Handles plain objects, arrays, and the @graph
// wrapper WordPress SEO plugins emit.
func jsonLDDates(doc *goquery.Document) (published, modified string) {
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		published, modified = scanJSONLD(raw)
		return published == "" && modified == ""
	})
	return published, modified
}

// scanJSONLD walks a decoded JSON-LD value looking for date fields.
func scanJSONLD(raw any) (published, modified string) {
	switch v := raw.(type) {
	case map[string]any:
		if s, ok := v["datePublished"].(string); ok && published == "" {
			published = s
		}
		if s, ok := v["dateCreated"].(string); ok && published == "" {
			published = s
		}
		if s, ok := v["dateModified"].(string); ok && modified == "" {
			modified = s
		}
		if published == "" {
			if graph, ok := v["@graph"].([]any); ok {
				gp, gm := scanJSONLD(graph)
				if published == "" {
					published = gp
				}
				if modified == "" {
					modified = gm
				}
			}
		}
	case []any:
		for _, item := range v {
			gp, gm := scanJSONLD(item)
			if published == "" {
				published = gp
			}
			if modified == "" {
				modified = gm
			}
			if published != "" && modified != "" {
				break
			}
		}
	}
	return published, modified
}

// dateFromURL recovers a date from WordPress dated permalinks like
// /2024/01/15/slug/. A missing day segment resolves to the first of the
// month.
func dateFromURL(sourceURL string) (time.Time, bool) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return time.Time{}, false
	}
	m := urlDatePattern.FindStringSubmatch(parsed.Path)
	if m == nil {
		return time.Time{}, false
	}

	day := m[3]
	if day == "" {
		day = "01"
	}
	t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseDate tries each known layout against a raw date string. Dates
// before the web existed or absurdly far in the future are rejected as
// misparses.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if t.Year() < 1990 || t.Year() > time.Now().Year()+1 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// withinWindow reports whether t falls inside the today window around now.
func withinWindow(t, now time.Time, window time.Duration) bool {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	return d < window
}
