package fanout

import (
	"context"
	"fmt"
	"net"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
)

// Branding is the global, registration-set UI override. It is treated
// as immutable configuration once registration completes.
type Branding struct {
	Trademark string
	Motto     string
	Logo      string
	Button    string
}

// brandingFromSnippet extracts a Branding override from the first
// snippet of a registration reply, mapping Title/Summary/Preview/
// first-link onto the UI strings they represent.
func brandingFromSnippet(s *snippet.Snippet) Branding {
	b := Branding{Trademark: s.Title, Motto: s.Summary}
	if s.Preview != nil {
		b.Logo = s.Preview.URL
	}
	if len(s.DirectLinks) > 0 {
		b.Button = s.DirectLinks[0].Description
	}
	return b
}

// Registration is the outcome of bootstrapping against a mother peer.
// Query is the mother's reply query, carrying this node's observed
// public_ip/port, the scraper-observed local_ip/port, and the mother's
// own address as peer_ip/port.
type Registration struct {
	Query         query.Query
	Mother        *peer.Peer
	FallbackPeers *peer.List
	Branding      Branding
}

// ErrFatalBootstrap is returned when registration fails and no usable
// cached response exists either; the caller should treat this as fatal.
var ErrFatalBootstrap = fmt.Errorf("fanout: registration failed and no cached fallback available")

// Register issues the SNIPDEX_QUERY_REGISTER handshake: one direct
// scrape against the mother's native endpoint, not a fan-out. The
// reply's query reports the caller's observed addresses; the reply's
// peer list names the mother itself (status ME, "this is you from my
// perspective") followed by the default peers handed out as the
// fallback list; the reply's first snippet carries the engine branding.
// The successful reply is cached under the reserved registration
// fingerprint. On failure, Register falls back to that cached response;
// if it is also empty, it returns ErrFatalBootstrap.
func (e *Engine) Register(ctx context.Context, mother *peer.Template, self *peer.Peer) (Registration, error) {
	registerQuery := query.New(map[string]string{query.KeyText: query.Register})

	sc, err := e.newScraper(mother, e.logger)
	if err != nil {
		e.logger.Warn("fanout: mother template unusable, using cached registration", "error", err)
		return e.registerFromCache(registerQuery)
	}

	reply, peers, snippets, _, err := sc.Search(ctx, registerQuery)
	if err != nil {
		e.logger.Warn("fanout: mother unreachable, using cached registration", "error", err)
		return e.registerFromCache(registerQuery)
	}
	if reply == nil {
		reply = registerQuery
	}
	if reply[query.KeyPublicIP] == "" {
		e.logger.Warn("fanout: mother reply carries no public address")
	}

	motherRow := motherFromReply(peers, mother)
	reg := Registration{
		Query:         reply,
		Mother:        motherRow,
		FallbackPeers: withoutPIDs(peers, self.PID, motherRow.PID),
	}
	if snippets.Len() > 0 {
		reg.Branding = brandingFromSnippet(snippets.Snippets()[0])
	}

	cached := peer.NewList()
	cached.MergeOne(motherRow, peer.StatusMe, nil)
	cached.Merge(peers)
	if err := e.cache.Put(query.Register, cached, snippets); err != nil {
		e.logger.Error("fanout: cache registration reply failed", "error", err)
	}
	return reg, nil
}

// registerFromCache recovers the last successful registration reply
// from the cache when the mother cannot be reached.
func (e *Engine) registerFromCache(registerQuery query.Query) (Registration, error) {
	cachedPeers, cachedSnippets, err := e.cache.Get(query.Register)
	if err != nil || cachedPeers.Len() == 0 {
		return Registration{}, fmt.Errorf("fanout: register with mother: %w", ErrFatalBootstrap)
	}
	reg := Registration{Query: registerQuery, FallbackPeers: cachedPeers}
	if cachedSnippets.Len() > 0 {
		reg.Branding = brandingFromSnippet(cachedSnippets.Snippets()[0])
	}
	return reg, nil
}

// motherFromReply picks the mother's canonical peer row out of its
// reply: the entry it marked ME, meaning "this is me from where you
// stand." A reply without one (a bare zombie endpoint, say) falls back
// to a synthetic peer wrapping the dialed template.
func motherFromReply(peers *peer.List, mother *peer.Template) *peer.Peer {
	for _, e := range peers.Entries() {
		if e.Status == peer.StatusMe {
			return e.Peer
		}
	}
	return peer.NewZombie(mother)
}

func withoutPIDs(peers *peer.List, exclude ...string) *peer.List {
	skip := make(map[string]bool, len(exclude))
	for _, pid := range exclude {
		skip[pid] = true
	}
	out := peer.NewList()
	for _, e := range peers.Entries() {
		if skip[e.Peer.PID] {
			continue
		}
		out.MergeOne(e.Peer, e.Status, e.Score)
	}
	return out
}

// DiscoverLocalAddress determines this node's outbound address by
// opening a UDP "connection" to a well-known host without sending any
// packet: the kernel assigns a local address for the route without a
// handshake, which Dial then reports. Used as the NAT-discovery
// fallback when the mother cannot be reached for registration.
func DiscoverLocalAddress(wellKnownHost string) (string, error) {
	conn, err := net.Dial("udp", wellKnownHost)
	if err != nil {
		return "", fmt.Errorf("fanout: discover local address: %w", err)
	}
	defer conn.Close()
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", fmt.Errorf("fanout: discover local address: %w", err)
	}
	return host, nil
}
