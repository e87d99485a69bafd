package server

import (
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/snipdex-net/snipdex/cache"
	"github.com/snipdex-net/snipdex/config"
	"github.com/snipdex-net/snipdex/fanout"
	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
	"github.com/snipdex-net/snipdex/wire"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	cfg    *config.Config
	cache  *cache.Cache
	engine *fanout.Engine
	state  *fanout.State
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(
	cfg *config.Config,
	c *cache.Cache,
	engine *fanout.Engine,
	state *fanout.State,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, cache: c, engine: engine, state: state, logger: logger}
}

// HandleRootRedirect sends / and /snipdex to the canonical trailing-slash route.
func (h *Handler) HandleRootRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/snipdex/", http.StatusMovedPermanently)
}

// HandlePitch is the reserved POST /snipdex/ route for peer-to-peer
// pitching. It carries no defined wire shape and the node answers it
// with 501 Not Implemented.
func (h *Handler) HandlePitch(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotImplemented)
}

// HandleSearch is the main query endpoint: GET /snipdex/?q=...&h=...&p=...&l=...&f=...&v=...
// A loopback caller (this node's own UI or CLI) triggers a live
// bounded fan-out; any other caller is answered straight from the
// local cache, so that an inbound peer query never itself cascades
// into a further fan-out.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r)
	remoteHost, remotePort := splitRemote(r.RemoteAddr)

	switch query.Normalize(q) {
	case query.Register:
		h.handleRegister(w, r, q, remoteHost, remotePort)
		return
	case query.Pong:
		h.handlePong(w, r, remoteHost)
		return
	}

	fingerprint := query.Normalize(q)
	peers, snippets, err := h.cache.Get(fingerprint)
	if err != nil {
		h.logger.Error("server: cache get failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		peers, snippets = peer.NewList(), snippet.NewList()
	}
	if approx, err := h.cache.GetApprox(fingerprint); err == nil {
		peers.Merge(approx)
	}

	var final *peer.List
	if isLoopbackHost(remoteHost) {
		q.Set(query.KeyPublicIP, remoteHost)
		q.Set(query.KeyPublicPort, remotePort)
		self := h.state.Self()
		var qOut query.Query
		qOut, final, snippets, err = h.engine.Search(r.Context(), q, peers, snippets, h.state.Fallback(), self)
		if err != nil {
			h.logger.Error("server: fanout search failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
			final = prependSelf(peers, self)
		} else if pub := qOut[query.KeyPublicIP]; pub != "" && !isLoopbackHost(pub) {
			// A peer observed us under a different public address; adopt it.
			h.state.SetSelfAddress(pub+":"+qOut[query.KeyPublicPort], "")
		}
	} else {
		final = prependSelf(peers, h.state.Self())
	}

	h.render(w, r, q, final, snippets)
}

// prependSelf returns peers with the node's own ME entry prepended,
// for cache-only answers that never go through Engine.Search (which
// does its own self-prepend).
func prependSelf(peers *peer.List, self *peer.Peer) *peer.List {
	out := peer.NewList()
	out.Append(self, peer.StatusMe, nil)
	out.Merge(peers)
	return out
}

func isLoopbackHost(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// handleRegister answers an inbound SNIPDEX_QUERY_REGISTER as this
// node's mother role: it reports the caller's observed public
// address, this node's own address as peer_ip/peer_port, itself with
// status ME, and a page of its known peer directory as the
// registering node's fallback list.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request, q query.Query, remoteHost, remotePort string) {
	self := h.state.Self()
	localHost, localPort := splitRemote(self.PublicAddress)

	reply := q.Clone()
	reply.Set(query.KeyPublicIP, remoteHost)
	reply.Set(query.KeyPublicPort, remotePort)
	reply.Set(query.KeyPeerIP, localHost)
	reply.Set(query.KeyPeerPort, localPort)

	peers := peer.NewList()
	peers.Append(self, peer.StatusMe, nil)
	if page, err := h.cache.AllPeersByPage(1); err == nil {
		peers.Merge(page)
	}

	snippets := snippet.NewList()
	if b := h.state.Branding(); b.Trademark != "" {
		snippets.Append(&snippet.Snippet{
			Title:   b.Trademark,
			Summary: b.Motto,
			Preview: &snippet.Preview{URL: b.Logo},
			DirectLinks: []snippet.Link{
				{Description: b.Button, URL: b.Button},
			},
		})
	}

	w.Header().Set("Content-Type", wire.ContentType)
	if err := wire.Render(w, reply, peers, snippets); err != nil {
		h.logger.Error("server: render register response failed", "error", err)
	}
}

// handlePong answers SNIPDEX_QUERY_PONG, the mother's own liveness
// probe against its children: only a caller whose remote host matches
// this node's own recorded mother address may enumerate its peer
// directory, so a spoofed requester cannot use the probe to harvest it.
func (h *Handler) handlePong(w http.ResponseWriter, r *http.Request, remoteHost string) {
	if mother := h.state.MotherPublicHost(); mother == "" || mother != remoteHost {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get(query.KeyPage)); err == nil && p > 0 {
		page = p
	}
	peers, err := h.cache.AllPeersByPage(page)
	if err != nil {
		h.logger.Error("server: all peers by page failed", "error", err)
		peers = peer.NewList()
	}
	w.Header().Set("Content-Type", wire.ContentType)
	if err := wire.Render(w, query.New(nil), peers, snippet.NewList()); err != nil {
		h.logger.Error("server: render pong response failed", "error", err)
	}
}

// HandlePeerDetail is an admin/debug route showing one known peer's
// full descriptor: GET /snipdex/source/{pid}.
func (h *Handler) HandlePeerDetail(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	p, ok, err := h.cache.PeerByPID(pid)
	if err != nil {
		h.logger.Error("server: peer lookup failed", "pid", pid, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "unknown peer", http.StatusNotFound)
		return
	}
	if r.URL.Query().Get(query.KeyFormat) == "xml" {
		peers := peer.NewList()
		peers.Append(p, peer.StatusDone, nil)
		w.Header().Set("Content-Type", wire.ContentType)
		if err := wire.Render(w, query.New(nil), peers, snippet.NewList()); err != nil {
			h.logger.Error("server: render peer detail failed", "error", err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := peerDetailTemplate.Execute(w, p); err != nil {
		h.logger.Error("server: render peer detail template failed", "error", err)
	}
}

// HandleStatic serves files from the configured web root, substituting
// branding placeholders into index.html/about.html.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		name = "index.html"
	}
	clean := filepath.Clean("/" + name)[1:]
	root := filepath.Clean(h.cfg.Web.Root)
	path := filepath.Join(root, clean)
	if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		http.NotFound(w, r)
		return
	}

	if clean == "index.html" || clean == "about.html" {
		data, err := os.ReadFile(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		tmpl, err := template.New(clean).Parse(string(data))
		if err != nil {
			h.logger.Error("server: parse overlay template", "file", clean, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, h.state.Branding()); err != nil {
			h.logger.Error("server: execute overlay template", "file", clean, "error", err)
		}
		return
	}

	if strings.HasSuffix(clean, ".osdx") {
		w.Header().Set("Content-Type", "application/opensearchdescription+xml")
	}
	http.ServeFile(w, r, path)
}

// parseQuery builds a query.Query from the recognized URL parameters.
func parseQuery(r *http.Request) query.Query {
	v := r.URL.Query()
	return query.New(map[string]string{
		query.KeyText:     v.Get(query.KeyText),
		query.KeyHashtag:  v.Get(query.KeyHashtag),
		query.KeyPage:     orDefault(v.Get(query.KeyPage), "1"),
		query.KeyLanguage: v.Get(query.KeyLanguage),
		query.KeyFormat:   orDefault(v.Get(query.KeyFormat), "html"),
		query.KeyVersion:  v.Get(query.KeyVersion),
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitRemote(addr string) (host, port string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, ""
	}
	return host, port
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, q query.Query, peers *peer.List, snippets *snippet.List) {
	if q[query.KeyFormat] == "xml" {
		w.Header().Set("Content-Type", wire.ContentType)
		if err := wire.Render(w, q, peers, snippets); err != nil {
			h.logger.Error("server: render xml response failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	view := searchView{
		Query:    q[query.KeyText],
		Branding: h.state.Branding(),
		Peers:    viewPeers(peers),
		Results:  viewSnippets(snippets),
	}
	if err := searchTemplate.Execute(w, view); err != nil {
		h.logger.Error("server: render html response failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
}
