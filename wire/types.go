// Package wire defines the native application/snipdex+xml protocol
// exchanged between peers, and the parse/render pair that lets a
// SnippetList/PeerList round-trip through it.
package wire

import "encoding/xml"

// ResponseVersion is the protocol version emitted in every response.
const ResponseVersion = "0.2"

// ContentType is the MIME type advertised for native responses.
const ContentType = "application/snipdex+xml"

// Response is the root element of a native snipdex response.
type Response struct {
	XMLName  xml.Name     `xml:"snipdex_response"`
	Version  string       `xml:"version,attr"`
	Query    QueryAttr    `xml:"query"`
	Peers    PeerGroup    `xml:"peers"`
	Snippets SnippetGroup `xml:"snippets"`
}

// QueryAttr renders a Query as a flat attribute bag: <query k="v" .../>.
// encoding/xml cannot marshal a map directly, but a []xml.Attr field
// tagged ",any,attr" round-trips an arbitrary attribute set.
type QueryAttr struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// PeerGroup wraps the list of peer records.
type PeerGroup struct {
	Peers []PeerEntry `xml:"peer"`
}

// PeerEntry is one peer as it appears on the wire, with its per-round status/score.
type PeerEntry struct {
	PID             string     `xml:"pid,attr"`
	Status          string     `xml:"status,attr,omitempty"`
	Score           *float64   `xml:"score,attr,omitempty"`
	Name            string     `xml:"name,omitempty"`
	Description     string     `xml:"description,omitempty"`
	Icon            string     `xml:"icon,omitempty"`
	Language        string     `xml:"language,omitempty"`
	AdultContent    bool       `xml:"adult_content,omitempty"`
	Hashtag         string     `xml:"hashtag,omitempty"`
	QueryHints      []string   `xml:"query_hint,omitempty"`
	Updated         string     `xml:"updated,omitempty"`
	OpenTemplate    *WireTemplate `xml:"open_template,omitempty"`
	HTMLTemplate    *WireTemplate `xml:"html_template,omitempty"`
	SuggestTemplate *WireTemplate `xml:"suggest_template,omitempty"`
	PublicAddress   string     `xml:"public_address,omitempty"`
	LocalAddress    string     `xml:"local_address,omitempty"`
}

// WireTemplate mirrors peer.Template for XML marshaling purposes.
type WireTemplate struct {
	URL            string `xml:",chardata"`
	Type           string `xml:"type,attr,omitempty"`
	Method         string `xml:"method,attr,omitempty"`
	ItemPath       string `xml:"item_path,attr,omitempty"`
	TitlePath      string `xml:"title_path,attr,omitempty"`
	LinkPath       string `xml:"link_path,attr,omitempty"`
	SummaryPath    string `xml:"summary_path,attr,omitempty"`
	PreviewPath    string `xml:"preview_path,attr,omitempty"`
	AttributePaths string `xml:"attribute_paths,attr,omitempty"`
	ForceDecode    string `xml:"force_decode,attr,omitempty"`
}

// SnippetGroup wraps the list of snippet records.
type SnippetGroup struct {
	Snippets []SnippetEntry `xml:"snippet"`
}

// SnippetEntry is one snippet as it appears on the wire.
type SnippetEntry struct {
	Origins         []OriginEntry   `xml:"origin,omitempty"`
	Location        string          `xml:"location,omitempty"`
	Title           string          `xml:"title,omitempty"`
	Found           string          `xml:"found,omitempty"`
	Summary         string          `xml:"summary,omitempty"`
	ExtendedSummary string          `xml:"extended_summary,omitempty"`
	Preview         *WirePreview    `xml:"preview,omitempty"`
	Geolocation     string          `xml:"geolocation,omitempty"`
	Links           WireLinkGroup   `xml:"links"`
	Attributes      WireAttrGroup   `xml:"attributes"`
}

// OriginEntry is one origin assertion on a snippet.
type OriginEntry struct {
	PID    string   `xml:"pid,attr"`
	Status string   `xml:"status,attr,omitempty"`
	Score  *float64 `xml:"score,attr,omitempty"`
}

// WirePreview mirrors snippet.Preview.
type WirePreview struct {
	URL      string `xml:",chardata"`
	MimeType string `xml:"type,attr,omitempty"`
	Width    string `xml:"width,attr,omitempty"`
	Height   string `xml:"height,attr,omitempty"`
}

// WireLinkGroup wraps direct and service links, tagged by kind.
type WireLinkGroup struct {
	Links []WireLink `xml:"link"`
}

// WireLink is one direct or service link.
type WireLink struct {
	Kind        string `xml:"type,attr"` // "direct" or "service"
	Description string `xml:"description,attr,omitempty"`
	URL         string `xml:",chardata"`
}

// WireAttrGroup wraps a snippet's free-form attributes.
type WireAttrGroup struct {
	Attributes []WireAttr `xml:"attribute"`
}

// WireAttr is one free-form key/value attribute.
type WireAttr struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}
