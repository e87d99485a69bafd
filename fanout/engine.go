// Package fanout orchestrates the bounded-hop, bounded-time parallel
// peer search: dispatching a Scraper worker per TODO peer each hop,
// merging results into the running PeerList/SnippetList, persisting
// the outcome to the cache, and handling mother-peer bootstrap.
package fanout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/snipdex-net/snipdex/cache"
	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/scraper"
	"github.com/snipdex-net/snipdex/snippet"
)

// Bounds on the fan-out.
const (
	Hops         = 3
	PerHopBudget = 4 * time.Second
)

// EmptyScore is the score assigned to a peer that answered with no results.
const EmptyScore = 0.1

// Engine runs searches against the peer network.
type Engine struct {
	cache  *cache.Cache
	logger *slog.Logger

	// newScraper is overridable in tests.
	newScraper func(t *peer.Template, logger *slog.Logger) (searcher, error)
}

// searcher is the subset of *scraper.Scraper the engine depends on.
type searcher interface {
	Search(ctx context.Context, q query.Query) (query.Query, *peer.List, *snippet.List, int, error)
}

func defaultNewScraper(t *peer.Template, logger *slog.Logger) (searcher, error) {
	return scraper.New(t, logger)
}

// New builds an Engine backed by c.
func New(c *cache.Cache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cache: c, logger: logger, newScraper: defaultNewScraper}
}

type workerResult struct {
	query    query.Query
	peers    *peer.List
	snippets *snippet.List
	err      error
}

type dispatched struct {
	peer *peer.Peer
	ch   chan workerResult
}

// Search runs the bounded fan-out for q, starting from the given
// working peer list (already seeded from the cache by the caller) and
// self-describing selfPeer, folding in fallback as extra TODO
// candidates at the end of every hop. It returns the query as altered
// by any peer-reported public address, the final peer list (self
// prepended with status ME), and the merged snippet list.
func (e *Engine) Search(ctx context.Context, q query.Query, peers *peer.List, snippets *snippet.List, fallback *peer.List, selfPeer *peer.Peer) (query.Query, *peer.List, *snippet.List, error) {
	for hop := 0; hop < Hops; hop++ {
		q, peers = e.runHop(ctx, q, peers, snippets)
		if fallback != nil {
			for _, fe := range fallback.Entries() {
				peers.MergeOne(fe.Peer, peer.StatusTODO, fe.Score)
			}
		}
	}

	fingerprint := query.Normalize(q)
	if err := e.cache.Put(fingerprint, peers, snippets); err != nil {
		e.logger.Error("fanout: cache put failed", "error", err)
	}
	if err := e.cache.PutBackoff(fingerprint, peers); err != nil {
		e.logger.Error("fanout: cache putBackoff failed", "error", err)
	}

	final := peer.NewList()
	final.Append(selfPeer, peer.StatusMe, nil)
	for _, pe := range peers.Entries() {
		final.MergeOne(pe.Peer, pe.Status, pe.Score)
	}

	return q, final, snippets, nil
}

// runHop dispatches one worker per TODO peer, waits for them up to
// PerHopBudget since dispatch, and folds the outcome into the next
// round's peer list. Non-TODO peers carry over, with a reported ME
// demoted to DONE (the peer's self-report is not "me" from here).
func (e *Engine) runHop(ctx context.Context, q query.Query, peers *peer.List, snippets *snippet.List) (query.Query, *peer.List) {
	next := peer.NewList()
	var workers []dispatched

	for _, entry := range peers.Entries() {
		if entry.Status != peer.StatusTODO {
			st := entry.Status
			if st == peer.StatusMe {
				st = peer.StatusDone
			}
			next.MergeOne(entry.Peer, st, entry.Score)
			continue
		}

		tmpl, ok := entry.Peer.OpenURLTemplate()
		if !ok {
			next.MergeOne(entry.Peer, peer.StatusError, nil)
			continue
		}
		sc, err := e.newScraper(tmpl, e.logger)
		if err != nil {
			next.MergeOne(entry.Peer, peer.StatusError, nil)
			continue
		}

		altered := q.Clone()
		altered.Set(query.KeyText, peer.StripHints(q[query.KeyText], entry.Peer.QueryHints))

		ch := make(chan workerResult, 1)
		go func(p *peer.Peer, sc searcher, altered query.Query) {
			qp, peers2, snippets2, _, err := sc.Search(ctx, altered)
			ch <- workerResult{query: qp, peers: peers2, snippets: snippets2, err: err}
		}(entry.Peer, sc, altered)
		workers = append(workers, dispatched{peer: entry.Peer, ch: ch})
	}

	deadline := time.Now().Add(PerHopBudget)
	for _, w := range workers {
		select {
		case res := <-w.ch:
			q = e.foldResult(w.peer, res, next, snippets, q)
		case <-time.After(time.Until(deadline)):
			next.MergeOne(w.peer, peer.StatusTimeout, nil)
		}
	}
	return q, next
}

func (e *Engine) foldResult(p *peer.Peer, res workerResult, next *peer.List, snippets *snippet.List, q query.Query) query.Query {
	if res.err != nil {
		if errors.Is(res.err, scraper.ErrTimeout) {
			next.MergeOne(p, peer.StatusTimeout, nil)
		} else {
			e.logger.Warn("fanout: peer search failed", "pid", p.PID, "error", res.err)
			next.MergeOne(p, peer.StatusError, nil)
		}
		return q
	}

	if res.snippets.Len() == 0 && res.peers.Len() == 0 {
		next.MergeOne(p, peer.StatusEmpty, peer.Score(EmptyScore))
		return q
	}

	for _, s := range res.snippets.Snippets() {
		s.AddOrigin(p.PID, string(peer.StatusDone), nil)
	}
	snippets.Merge(res.snippets)
	for _, e2 := range res.peers.Entries() {
		next.MergeOne(e2.Peer, e2.Status, e2.Score)
	}
	next.MergeOne(p, peer.StatusDone, nil)

	if res.query != nil {
		if pub := res.query[query.KeyPublicIP]; pub != "" && pub != q[query.KeyPublicIP] {
			q = q.Clone()
			q.Set(query.KeyPublicIP, pub)
			q.Set(query.KeyPublicPort, res.query[query.KeyPublicPort])
		}
	}
	return q
}
