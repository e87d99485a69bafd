package scraper

import "strings"

// format describes how to pull snippet fields out of a parsed document
// for one response mimetype. Paths are CSS selectors resolved against
// the parsed DOM (goquery), the idiomatic stand-in for the original's
// XPath tables — there is no XPath library in this module's dependency
// set, and goquery's selector/traversal API covers the same ground for
// every format below, native XML aside.
type format struct {
	itemPath    string
	titlePath   string
	linkPath    string
	summaryPath string
	previewPath string
}

var (
	formatRSS = format{
		itemPath: "item", titlePath: "title", linkPath: "link",
		summaryPath: "description", previewPath: "thumbnail, media\\:thumbnail",
	}
	formatAtom = format{
		itemPath: "entry", titlePath: "title", linkPath: "link",
		summaryPath: "summary", previewPath: "thumbnail, media\\:thumbnail",
	}
	formatSuggest = format{
		itemPath: "Item", titlePath: "Text", linkPath: "Url",
		summaryPath: "Description", previewPath: "Image",
	}
	formatHTML = format{
		titlePath: "a:first-of-type", linkPath: "a:first-of-type",
	}
	formatNone = format{}
)

// selectFormat chooses a format descriptor by mimetype, per the native/
// RSS/Atom/suggestion/HTML/no-parse table, then applies template
// overrides for any explicitly-set path.
func selectFormat(mimetype string, override templatePaths) format {
	f := formatNone
	switch {
	case strings.Contains(mimetype, "rss"):
		f = formatRSS
	case strings.Contains(mimetype, "atom"):
		f = formatAtom
	case mimetype == "application/x-suggestions+xml":
		f = formatSuggest
	case mimetype == "text/html" && override.itemPath != "":
		f = formatHTML
	}

	if override.itemPath != "" {
		f.itemPath = override.itemPath
	}
	if override.titlePath != "" {
		f.titlePath = override.titlePath
	}
	if override.linkPath != "" {
		f.linkPath = override.linkPath
	}
	if override.summaryPath != "" {
		f.summaryPath = override.summaryPath
	}
	if override.previewPath != "" {
		f.previewPath = override.previewPath
	}
	return f
}

// templatePaths carries the per-peer path overrides from a peer.Template.
type templatePaths struct {
	itemPath    string
	titlePath   string
	linkPath    string
	summaryPath string
	previewPath string
}
