// Package peer describes remote search sources — real sibling nodes and
// zombie adapters wrapping third-party engines — and the ordered,
// monotonically-merging list that tracks their search status.
package peer

import (
	"crypto/md5"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the wire/storage format for Peer.Updated: UTC "YYYY-MM-DD HH:MM:SS".
const TimeLayout = "2006-01-02 15:04:05"

// ResponseVersion is the protocol version reported in the native wire format.
const ResponseVersion = "0.2"

// Status is the search status of a peer within one fan-out round.
type Status string

// Status lattice. TODO is the only non-terminal status; it never
// returns once the peer has reached any of the others.
const (
	StatusTODO    Status = "TODO"
	StatusDone    Status = "DONE"
	StatusMe      Status = "ME"
	StatusEmpty   Status = "EMPTY"
	StatusError   Status = "ERROR"
	StatusTimeout Status = "TIMEOUT"
)

// IsTerminal reports whether s is anything but TODO.
func (s Status) IsTerminal() bool {
	return s != StatusTODO
}

// Template describes one transport endpoint for a peer: its URL
// template, mimetype, HTTP method, and scraping-path overrides.
type Template struct {
	URL             string `json:"url" xml:",chardata"`
	Type            string `json:"type,omitempty" xml:"type,attr,omitempty"`
	Method          string `json:"method,omitempty" xml:"method,attr,omitempty"`
	ItemPath        string `json:"item_path,omitempty" xml:"item_path,attr,omitempty"`
	TitlePath       string `json:"title_path,omitempty" xml:"title_path,attr,omitempty"`
	LinkPath        string `json:"link_path,omitempty" xml:"link_path,attr,omitempty"`
	SummaryPath     string `json:"summary_path,omitempty" xml:"summary_path,attr,omitempty"`
	PreviewPath     string `json:"preview_path,omitempty" xml:"preview_path,attr,omitempty"`
	AttributePaths  string `json:"attribute_paths,omitempty" xml:"attribute_paths,attr,omitempty"`
	ForceDecode     string `json:"force_decode,omitempty" xml:"force_decode,attr,omitempty"`
}

// Empty reports whether t carries no URL (i.e. is unset).
func (t *Template) Empty() bool {
	return t == nil || t.URL == ""
}

// Peer is a remote search source: identity, transport templates, and
// scraping hints.
type Peer struct {
	PID             string    `json:"pid"`
	Name            string    `json:"name,omitempty"`
	Description     string    `json:"description,omitempty"`
	Icon            string    `json:"icon,omitempty"`
	Language        string    `json:"language,omitempty"`
	AdultContent    bool      `json:"adult_content,omitempty"`
	Hashtag         string    `json:"hashtag,omitempty"`
	QueryHints      []string  `json:"query_hints,omitempty"`
	Updated         string    `json:"updated,omitempty"`
	OpenTemplate    *Template `json:"open_template,omitempty"`
	HTMLTemplate    *Template `json:"html_template,omitempty"`
	SuggestTemplate *Template `json:"suggest_template,omitempty"`
	PublicAddress   string    `json:"public_address,omitempty"`
	LocalAddress    string    `json:"local_address,omitempty"`
}

// NewZombie builds a Peer wrapping a third-party engine, deriving its
// pid from the MD5 of the primary template URL.
func NewZombie(open *Template) *Peer {
	p := &Peer{OpenTemplate: open}
	p.PID = p.derivePID()
	return p
}

func (p *Peer) derivePID() string {
	var template string
	switch {
	case !p.OpenTemplate.Empty():
		template = p.OpenTemplate.URL
	case !p.HTMLTemplate.Empty():
		template = p.HTMLTemplate.URL
	default:
		return ""
	}
	sum := md5.Sum([]byte(template))
	return hex.EncodeToString(sum[:])
}

// NewSelfID mints this node's own persistent identifier: a random
// 23-character alphanumeric string derived from UUIDv4 randomness.
func NewSelfID() string {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	u := uuid.New()
	encoded := strings.ToLower(enc.EncodeToString(u[:]))
	for len(encoded) < 23 {
		u = uuid.New()
		encoded += strings.ToLower(enc.EncodeToString(u[:]))
	}
	return encoded[:23]
}

// SetUpdatedNow stamps Updated with the current UTC time.
func (p *Peer) SetUpdatedNow() {
	p.Updated = time.Now().UTC().Format(TimeLayout)
}

// OlderThan reports whether other was updated strictly later than p.
func (p *Peer) OlderThan(other *Peer) bool {
	if other.Updated == "" {
		return false
	}
	if p.Updated == "" {
		return true
	}
	return p.Updated < other.Updated
}

// OpenURLTemplate returns the effective open-search template for p:
// if PublicAddress is set, it synthesizes a native-XML endpoint
// pointing at that address; otherwise it falls back to OpenTemplate,
// then HTMLTemplate.
func (p *Peer) OpenURLTemplate() (*Template, bool) {
	if p.PublicAddress != "" {
		return &Template{
			URL: "http://" + p.PublicAddress +
				"/snipdex/?q={q}&h={h?}&p={p?}&l={l?}&f=xml&v=" + ResponseVersion,
			Type: "application/snipdex+xml",
		}, true
	}
	if !p.OpenTemplate.Empty() {
		return p.OpenTemplate, true
	}
	if !p.HTMLTemplate.Empty() {
		return p.HTMLTemplate, true
	}
	return nil, false
}

// StripHints removes every query hint substring from text, together
// with a single space directly following it, returning the stripped
// text, or the original text unchanged if stripping would leave it empty.
func StripHints(text string, hints []string) string {
	altered := text
	for _, hint := range hints {
		if hint == "" {
			continue
		}
		altered = strings.ReplaceAll(altered, hint+" ", "")
		altered = strings.ReplaceAll(altered, hint, "")
	}
	if strings.TrimSpace(altered) == "" {
		return text
	}
	return altered
}
