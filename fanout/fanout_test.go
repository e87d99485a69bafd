package fanout

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipdex-net/snipdex/cache"
	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestEngine(t *testing.T) (*Engine, *cache.Cache) {
	t.Helper()
	c, err := cache.OpenOrCreate(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return New(c, testLogger()), c
}

// fakeSearcher lets tests control exactly what a worker returns without
// making any network call.
type fakeSearcher struct {
	delay    time.Duration
	query    query.Query
	peers    *peer.List
	snippets *snippet.List
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, q query.Query) (query.Query, *peer.List, *snippet.List, int, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, nil, nil, 0, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, nil, nil, 0, f.err
	}
	return f.query, f.peers, f.snippets, f.snippets.Len(), nil
}

func withFakeScrapers(e *Engine, byPID map[string]*fakeSearcher) {
	e.newScraper = func(t *peer.Template, logger *slog.Logger) (searcher, error) {
		pid := peer.NewZombie(t).PID
		if f, ok := byPID[pid]; ok {
			return f, nil
		}
		return &fakeSearcher{snippets: snippet.NewList(), peers: peer.NewList()}, nil
	}
}

func templateFor(url string) *peer.Template {
	return &peer.Template{URL: url, Type: "text/html"}
}

func TestSearchMergesSuccessfulPeerResponse(t *testing.T) {
	e, _ := openTestEngine(t)

	tmpl := templateFor("http://alice.example/search?q={q}")
	alice := peer.NewZombie(tmpl)

	result := snippet.NewList(&snippet.Snippet{Title: "hello", Location: "http://a.example/1"})
	withFakeScrapers(e, map[string]*fakeSearcher{
		alice.PID: {snippets: result, peers: peer.NewList()},
	})

	seed := peer.NewList()
	seed.MergeOne(alice, peer.StatusTODO, nil)

	self := &peer.Peer{PID: "self-pid"}
	q := query.New(map[string]string{query.KeyText: "hello"})

	_, peers, snippets, err := e.Search(context.Background(), q, seed, snippet.NewList(), nil, self)
	require.NoError(t, err)

	require.Equal(t, 1, snippets.Len())
	assert.Equal(t, "hello", snippets.Snippets()[0].Title)
	require.Len(t, snippets.Snippets()[0].Origins, 1)
	assert.Equal(t, alice.PID, snippets.Snippets()[0].Origins[0].PID)
	assert.Equal(t, "DONE", snippets.Snippets()[0].Origins[0].Status)

	selfEntry, ok := peers.Get("self-pid")
	require.True(t, ok)
	assert.Equal(t, peer.StatusMe, selfEntry.Status)

	aliceEntry, ok := peers.Get(alice.PID)
	require.True(t, ok)
	assert.Equal(t, peer.StatusDone, aliceEntry.Status)
}

func TestSearchPeerTimeoutIsBoundedByPerHopBudget(t *testing.T) {
	e, _ := openTestEngine(t)

	tmpl := templateFor("http://slow.example/search?q={q}")
	slow := peer.NewZombie(tmpl)

	withFakeScrapers(e, map[string]*fakeSearcher{
		slow.PID: {delay: PerHopBudget * 10},
	})

	seed := peer.NewList()
	seed.MergeOne(slow, peer.StatusTODO, nil)

	self := &peer.Peer{PID: "self-pid"}
	q := query.New(map[string]string{query.KeyText: "hello"})

	start := time.Now()
	_, peers, _, err := e.Search(context.Background(), q, seed, snippet.NewList(), nil, self)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, Hops*PerHopBudget+2*time.Second)

	slowEntry, ok := peers.Get(slow.PID)
	require.True(t, ok)
	assert.Equal(t, peer.StatusTimeout, slowEntry.Status)
}

func TestSearchEmptyResponseGetsEmptyStatusAndScore(t *testing.T) {
	e, _ := openTestEngine(t)

	tmpl := templateFor("http://quiet.example/search?q={q}")
	quiet := peer.NewZombie(tmpl)

	withFakeScrapers(e, map[string]*fakeSearcher{
		quiet.PID: {snippets: snippet.NewList(), peers: peer.NewList()},
	})

	seed := peer.NewList()
	seed.MergeOne(quiet, peer.StatusTODO, nil)

	self := &peer.Peer{PID: "self-pid"}
	q := query.New(map[string]string{query.KeyText: "hello"})

	_, peers, _, err := e.Search(context.Background(), q, seed, snippet.NewList(), nil, self)
	require.NoError(t, err)

	quietEntry, ok := peers.Get(quiet.PID)
	require.True(t, ok)
	assert.Equal(t, peer.StatusEmpty, quietEntry.Status)
	require.NotNil(t, quietEntry.Score)
	assert.Equal(t, EmptyScore, *quietEntry.Score)
}

func TestRunHopDemotesCarriedOverMeToDone(t *testing.T) {
	e, _ := openTestEngine(t)

	carried := &peer.Peer{PID: "carried-pid"}
	peers := peer.NewList()
	peers.MergeOne(carried, peer.StatusMe, nil)

	q := query.New(map[string]string{query.KeyText: "hello"})
	_, next := e.runHop(context.Background(), q, peers, snippet.NewList())

	entry, ok := next.Get("carried-pid")
	require.True(t, ok)
	assert.Equal(t, peer.StatusDone, entry.Status)
}

func TestFallbackPeersAreAddedAsTodoAfterEachHop(t *testing.T) {
	e, _ := openTestEngine(t)

	fallbackPeer := peer.NewZombie(templateFor("http://fallback.example/search?q={q}"))
	withFakeScrapers(e, map[string]*fakeSearcher{})

	fallback := peer.NewList()
	fallback.MergeOne(fallbackPeer, peer.StatusTODO, nil)

	self := &peer.Peer{PID: "self-pid"}
	q := query.New(map[string]string{query.KeyText: "hello"})

	_, peers, _, err := e.Search(context.Background(), q, peer.NewList(), snippet.NewList(), fallback, self)
	require.NoError(t, err)

	entry, ok := peers.Get(fallbackPeer.PID)
	require.True(t, ok)
	assert.True(t, entry.Status == peer.StatusDone || entry.Status == peer.StatusEmpty)
}
