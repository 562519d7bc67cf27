// Package media downloads the assets a post references and rewrites the
// post body to point at the local copies. Asset downloads are deduplicated
// process-wide by normalized URL so an image shared across posts is
// fetched exactly once.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/netjoints/blogmirror/classify"
)

// Kind partitions assets into the two media subdirectories.
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
)

// imageExtensions and videoExtensions decide an asset's kind from its URL
// path when the referencing element is ambiguous.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".bmp": true, ".ico": true, ".avif": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".ogv": true, ".mov": true, ".m4v": true,
}

// Asset is one downloaded media file.
type Asset struct {
	SourceURL string
	Kind      Kind
	// LocalName is the filename under media/<kind>/.
	LocalName string
	Data      []byte
}

// fetcher is the downloader dependency.
type fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// assetEntry is the settled (or settling) state of one asset URL. The
// first worker to reach the entry performs the download inside once; later
// workers block on once and read the outcome.
type assetEntry struct {
	once sync.Once
	// localName is empty when the download failed.
	localName string
	asset     *Asset
}

// Pipeline rewrites post bodies and collects their assets. Safe for
// concurrent use by the worker pool.
type Pipeline struct {
	client fetcher
	// skipHosts are media hosts left untouched: references to them keep
	// their remote URL without counting as failures.
	skipHosts map[string]bool

	mu      sync.Mutex
	entries map[string]*assetEntry
	// taken guards local name collisions across posts.
	taken map[string]bool
}

// NewPipeline creates a pipeline downloading through client. Hosts in
// skipHosts are never downloaded from.
func NewPipeline(client fetcher, skipHosts ...string) *Pipeline {
	skip := map[string]bool{}
	for _, h := range skipHosts {
		skip[strings.ToLower(h)] = true
	}
	return &Pipeline{
		client:    client,
		skipHosts: skip,
		entries:   map[string]*assetEntry{},
		taken:     map[string]bool{},
	}
}

// Result is the outcome of processing one post body.
type Result struct {
	// BodyHTML is the input body with local references substituted.
	BodyHTML string
	// Assets holds the files whose download this post triggered. Assets
	// already downloaded for an earlier post are rewritten but not repeated
	// here.
	Assets []Asset
	// Failed counts references whose download failed; those keep their
	// remote URL in the body.
	Failed int
}

// Process scans bodyHTML for media references in document order, downloads
// each unseen asset, and rewrites references to relative local paths.
// slug prefixes generated filenames so asset origins stay legible in the
// output tree. Download failures are logged per asset and never fail the
// post.
func (p *Pipeline) Process(ctx context.Context, bodyHTML, baseURL, slug string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse post body: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", baseURL, err)
	}

	result := &Result{}

	doc.Find("img[src], video[src], video source[src], audio source[src]").Each(func(_ int, el *goquery.Selection) {
		src, _ := el.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}

		resolved := resolveRef(base, src)
		if resolved == "" {
			return
		}
		if ref, err := url.Parse(resolved); err == nil && p.skipHosts[strings.ToLower(ref.Hostname())] {
			return
		}

		kind := kindOf(el, resolved)
		local, ok := p.ensure(ctx, resolved, slug, kind, result)
		if !ok {
			result.Failed++
			return
		}
		el.SetAttr("src", fmt.Sprintf("../media/%s/%s", kind, local))
		// srcset would fight the rewritten src; drop it.
		el.RemoveAttr("srcset")
	})

	html, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize rewritten body: %w", err)
	}
	result.BodyHTML = html
	return result, nil
}

// ensure returns the local name for the asset at resolvedURL, downloading
// it if no earlier call has. Exactly one download is attempted per asset
// URL for the lifetime of the pipeline; concurrent callers for the same
// URL block until the first settles. The second return is false when the
// asset is unavailable.
func (p *Pipeline) ensure(ctx context.Context, resolvedURL, slug string, kind Kind, result *Result) (string, bool) {
	key := assetKey(resolvedURL)

	p.mu.Lock()
	entry, ok := p.entries[key]
	if !ok {
		entry = &assetEntry{}
		p.entries[key] = entry
	}
	p.mu.Unlock()

	entry.once.Do(func() {
		data, err := p.client.Get(ctx, resolvedURL)
		if err != nil {
			log.Printf("WARN: Media download failed for %s: %v", resolvedURL, err)
			return
		}
		p.mu.Lock()
		entry.localName = p.claimName(slug, kind, resolvedURL)
		p.mu.Unlock()
		entry.asset = &Asset{
			SourceURL: resolvedURL,
			Kind:      kind,
			LocalName: entry.localName,
			Data:      data,
		}
	})

	if entry.localName == "" {
		return "", false
	}
	p.mu.Lock()
	asset := entry.asset
	entry.asset = nil
	p.mu.Unlock()
	if asset != nil {
		// First caller to observe the settled entry owns writing it out.
		result.Assets = append(result.Assets, *asset)
	}
	return entry.localName, true
}

// claimName picks a collision-free local filename. Caller holds p.mu.
func (p *Pipeline) claimName(slug string, kind Kind, resolvedURL string) string {
	base := path.Base(strings.Split(resolvedURL, "?")[0])
	if base == "." || base == "/" || base == "" {
		base = "asset"
	}
	name := sanitizeName(slug + "_" + base)

	candidate := name
	for i := 1; p.taken[string(kind)+"/"+candidate]; i++ {
		ext := path.Ext(name)
		candidate = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), i, ext)
	}
	p.taken[string(kind)+"/"+candidate] = true
	return candidate
}

// assetKey normalizes an asset URL for dedup identity. Falls back to the
// raw URL when normalization rejects it.
func assetKey(resolvedURL string) string {
	if n, err := classify.Normalize(resolvedURL); err == nil {
		return n
	}
	return resolvedURL
}

// resolveRef resolves src against the post URL. Only http(s) results are
// downloadable.
func resolveRef(base *url.URL, src string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// kindOf decides an asset's kind from its referencing element, then its
// file extension. Unrecognized extensions on an img default to image.
func kindOf(el *goquery.Selection, resolvedURL string) Kind {
	tag := goquery.NodeName(el)
	if tag == "video" {
		return KindVideo
	}
	if tag == "source" && goquery.NodeName(el.Parent()) == "video" {
		return KindVideo
	}

	ext := strings.ToLower(path.Ext(strings.Split(resolvedURL, "?")[0]))
	switch {
	case videoExtensions[ext]:
		return KindVideo
	case imageExtensions[ext]:
		return KindImage
	}
	return KindImage
}

// sanitizeName restricts filenames to a portable character set.
func sanitizeName(name string) string {
	var b bytes.Buffer
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
