package classify

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var errMissingSchemeOrHost = errors.New("missing scheme or host")

// Normalize applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings for deduplication: scheme
// upgraded to https, host lowercased with any www prefix and default port
// removed, path dot-segments resolved, trailing slash and fragment dropped.
// Query strings are dropped except for the WordPress ugly-permalink id
// (?p=123), which is the whole identity of such posts and must survive.
// The original form should still be used for fetching; Normalize is an
// identity function, not a rewriter.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("normalize url: %w", errMissingSchemeOrHost)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("normalize url %q: %w", rawURL, errMissingSchemeOrHost)
	}

	parsed.Scheme = "https"
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.Path = normalizePath(parsed.Path)

	if id := parsed.Query().Get("p"); id != "" {
		parsed.RawQuery = "p=" + url.QueryEscape(id)
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String(), nil
}

// normalizeHost lowercases the hostname, strips a www prefix, and removes
// http/https default ports.
func normalizeHost(u *url.URL) string {
	hostname := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	port := u.Port()
	if port == "" || port == "80" || port == "443" {
		return hostname
	}
	return hostname + ":" + port
}

// normalizePath resolves dot-segments and removes trailing slashes while
// preserving the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean(p)
	cleaned = strings.TrimRight(cleaned, "/")
	if cleaned == "" {
		return "/"
	}
	return cleaned
}
