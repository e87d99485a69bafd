package server

import (
	"html/template"

	"github.com/snipdex-net/snipdex/fanout"
	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/snippet"
)

// viewSnippet is the HTML-rendering projection of a snippet.Snippet.
type viewSnippet struct {
	Title       string
	Summary     string
	Location    string
	DisplayHost string
	PreviewURL  string
	Origins     []string
}

// viewPeer is the HTML-rendering projection of one peer.Entry.
type viewPeer struct {
	PID    string
	Name   string
	Status string
}

// searchView is the data handed to searchTemplate.
type searchView struct {
	Query    string
	Branding fanout.Branding
	Peers    []viewPeer
	Results  []viewSnippet
}

func viewPeers(peers *peer.List) []viewPeer {
	entries := peers.Entries()
	out := make([]viewPeer, 0, len(entries))
	for _, e := range entries {
		name := e.Peer.Name
		if name == "" {
			name = e.Peer.PID
		}
		out = append(out, viewPeer{PID: e.Peer.PID, Name: name, Status: string(e.Status)})
	}
	return out
}

func viewSnippets(snippets *snippet.List) []viewSnippet {
	items := snippets.Snippets()
	out := make([]viewSnippet, 0, len(items))
	for _, s := range items {
		if s.Empty() {
			continue
		}
		vs := viewSnippet{
			Title:    s.Title,
			Summary:  s.Summary,
			Location: s.Location,
		}
		if s.Location != "" {
			vs.DisplayHost = displayHost(s.Location)
		}
		if s.Preview != nil {
			vs.PreviewURL = resolveURL(s.Location, s.Preview.URL)
		}
		for _, o := range s.Origins {
			vs.Origins = append(vs.Origins, o.PID)
		}
		out = append(out, vs)
	}
	return out
}

var searchTemplate = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{if .Branding.Trademark}}{{.Branding.Trademark}}{{else}}snipdex{{end}}</title></head>
<body>
<h1>{{if .Branding.Trademark}}{{.Branding.Trademark}}{{else}}snipdex{{end}}</h1>
{{if .Branding.Motto}}<p>{{.Branding.Motto}}</p>{{end}}
<form action="/snipdex/" method="get">
<input type="text" name="q" value="{{.Query}}">
<button type="submit">search</button>
</form>
<ol>
{{range .Results}}
<li>
{{if .PreviewURL}}<img src="{{.PreviewURL}}" alt="">{{end}}
<a href="{{.Location}}">{{.Title}}</a>
{{if .DisplayHost}}<span class="host">({{.DisplayHost}})</span>{{end}}
<p>{{.Summary}}</p>
</li>
{{end}}
</ol>
<h2>peers</h2>
<ul>
{{range .Peers}}<li><a href="/snipdex/source/{{.PID}}">{{.Name}}</a> — {{.Status}}</li>{{end}}
</ul>
<p><a href="/snipdex/about.html">about this node</a></p>
</body>
</html>
`))

var peerDetailTemplate = template.Must(template.New("peer").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<dl>
<dt>pid</dt><dd>{{.PID}}</dd>
<dt>description</dt><dd>{{.Description}}</dd>
<dt>language</dt><dd>{{.Language}}</dd>
<dt>hashtag</dt><dd>{{.Hashtag}}</dd>
<dt>updated</dt><dd>{{.Updated}}</dd>
<dt>public address</dt><dd>{{.PublicAddress}}</dd>
</dl>
<p><a href="?f=xml">view as xml</a></p>
</body>
</html>
`))
