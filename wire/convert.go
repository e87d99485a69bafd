package wire

import (
	"encoding/xml"
	"sort"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
)

// FromQuery converts a query.Query into its wire attribute-bag form, with
// keys sorted for deterministic output.
func FromQuery(q query.Query) QueryAttr {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]xml.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: k}, Value: q[k]})
	}
	return QueryAttr{Attrs: attrs}
}

// ToQuery converts a wire attribute bag back into a query.Query.
func ToQuery(qa QueryAttr) query.Query {
	q := query.New(nil)
	for _, a := range qa.Attrs {
		q.Set(a.Name.Local, a.Value)
	}
	return q
}

func fromTemplate(t *peer.Template) *WireTemplate {
	if t.Empty() {
		return nil
	}
	return &WireTemplate{
		URL:            t.URL,
		Type:           t.Type,
		Method:         t.Method,
		ItemPath:       t.ItemPath,
		TitlePath:      t.TitlePath,
		LinkPath:       t.LinkPath,
		SummaryPath:    t.SummaryPath,
		PreviewPath:    t.PreviewPath,
		AttributePaths: t.AttributePaths,
		ForceDecode:    t.ForceDecode,
	}
}

func toTemplate(t *WireTemplate) *peer.Template {
	if t == nil {
		return nil
	}
	return &peer.Template{
		URL:            t.URL,
		Type:           t.Type,
		Method:         t.Method,
		ItemPath:       t.ItemPath,
		TitlePath:      t.TitlePath,
		LinkPath:       t.LinkPath,
		SummaryPath:    t.SummaryPath,
		PreviewPath:    t.PreviewPath,
		AttributePaths: t.AttributePaths,
		ForceDecode:    t.ForceDecode,
	}
}

// FromPeerList converts a peer.List into its wire form.
func FromPeerList(l *peer.List) PeerGroup {
	entries := l.Entries()
	out := make([]PeerEntry, 0, len(entries))
	for _, e := range entries {
		p := e.Peer
		out = append(out, PeerEntry{
			PID:             p.PID,
			Status:          string(e.Status),
			Score:           e.Score,
			Name:            p.Name,
			Description:     p.Description,
			Icon:            p.Icon,
			Language:        p.Language,
			AdultContent:    p.AdultContent,
			Hashtag:         p.Hashtag,
			QueryHints:      p.QueryHints,
			Updated:         p.Updated,
			OpenTemplate:    fromTemplate(p.OpenTemplate),
			HTMLTemplate:    fromTemplate(p.HTMLTemplate),
			SuggestTemplate: fromTemplate(p.SuggestTemplate),
			PublicAddress:   p.PublicAddress,
			LocalAddress:    p.LocalAddress,
		})
	}
	return PeerGroup{Peers: out}
}

// ToPeerList converts a wire PeerGroup back into a peer.List.
func ToPeerList(g PeerGroup) *peer.List {
	l := peer.NewList()
	for _, e := range g.Peers {
		p := &peer.Peer{
			PID:             e.PID,
			Name:            e.Name,
			Description:     e.Description,
			Icon:            e.Icon,
			Language:        e.Language,
			AdultContent:    e.AdultContent,
			Hashtag:         e.Hashtag,
			QueryHints:      e.QueryHints,
			Updated:         e.Updated,
			OpenTemplate:    toTemplate(e.OpenTemplate),
			HTMLTemplate:    toTemplate(e.HTMLTemplate),
			SuggestTemplate: toTemplate(e.SuggestTemplate),
			PublicAddress:   e.PublicAddress,
			LocalAddress:    e.LocalAddress,
		}
		l.MergeOne(p, peer.Status(e.Status), e.Score)
	}
	return l
}

func fromOrigins(origins []snippet.Origin) []OriginEntry {
	out := make([]OriginEntry, 0, len(origins))
	for _, o := range origins {
		out = append(out, OriginEntry{PID: o.PID, Status: o.Status, Score: o.Score})
	}
	return out
}

func toOrigins(entries []OriginEntry) []snippet.Origin {
	out := make([]snippet.Origin, 0, len(entries))
	for _, e := range entries {
		out = append(out, snippet.Origin{PID: e.PID, Status: e.Status, Score: e.Score})
	}
	return out
}

func fromLinks(kind string, links []snippet.Link) []WireLink {
	out := make([]WireLink, 0, len(links))
	for _, l := range links {
		out = append(out, WireLink{Kind: kind, Description: l.Description, URL: l.URL})
	}
	return out
}

// FromSnippetList converts a snippet.List into its wire form.
func FromSnippetList(l *snippet.List) SnippetGroup {
	snippets := l.Snippets()
	out := make([]SnippetEntry, 0, len(snippets))
	for _, s := range snippets {
		var preview *WirePreview
		if s.Preview != nil {
			preview = &WirePreview{
				URL:      s.Preview.URL,
				MimeType: s.Preview.MimeType,
				Width:    s.Preview.Width,
				Height:   s.Preview.Height,
			}
		}
		links := append(fromLinks("direct", s.DirectLinks), fromLinks("service", s.ServiceLinks)...)
		attrs := make([]WireAttr, 0, len(s.Attributes))
		for _, a := range s.Attributes {
			attrs = append(attrs, WireAttr{Key: a.Key, Value: a.Value})
		}
		out = append(out, SnippetEntry{
			Origins:         fromOrigins(s.Origins),
			Location:        s.Location,
			Title:           s.Title,
			Found:           s.Found,
			Summary:         s.Summary,
			ExtendedSummary: s.ExtendedSummary,
			Preview:         preview,
			Geolocation:     s.Geolocation,
			Links:           WireLinkGroup{Links: links},
			Attributes:      WireAttrGroup{Attributes: attrs},
		})
	}
	return SnippetGroup{Snippets: out}
}

// ToSnippetList converts a wire SnippetGroup back into a snippet.List.
func ToSnippetList(g SnippetGroup) *snippet.List {
	l := snippet.NewList()
	for _, e := range g.Snippets {
		var preview *snippet.Preview
		if e.Preview != nil {
			preview = &snippet.Preview{
				MimeType: e.Preview.MimeType,
				URL:      e.Preview.URL,
				Width:    e.Preview.Width,
				Height:   e.Preview.Height,
			}
		}
		var direct, service []snippet.Link
		for _, wl := range e.Links.Links {
			link := snippet.Link{Description: wl.Description, URL: wl.URL}
			if wl.Kind == "service" {
				service = append(service, link)
			} else {
				direct = append(direct, link)
			}
		}
		attrs := make([]snippet.Attribute, 0, len(e.Attributes.Attributes))
		for _, a := range e.Attributes.Attributes {
			attrs = append(attrs, snippet.Attribute{Key: a.Key, Value: a.Value})
		}
		l.Append(&snippet.Snippet{
			Origins:         toOrigins(e.Origins),
			Location:        e.Location,
			Title:           e.Title,
			Found:           e.Found,
			Summary:         e.Summary,
			ExtendedSummary: e.ExtendedSummary,
			Preview:         preview,
			Geolocation:     e.Geolocation,
			DirectLinks:     direct,
			ServiceLinks:    service,
			Attributes:      attrs,
		})
	}
	return l
}
