package server

import (
	"net/url"
	"strings"
)

// resolveURL returns ref resolved against base, leaving already-absolute
// URLs untouched. Snippets scraped from third-party zombie peers
// commonly carry preview/thumbnail URLs relative to the item's own
// location rather than the peer's template URL; resolving against that
// base makes the link safe to embed directly in rendered HTML.
func resolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// displayHost returns the bare host of a URL for compact rendering next
// to a snippet's title, falling back to the raw string if it doesn't
// parse as a URL.
func displayHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
