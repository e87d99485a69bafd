package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipdex-net/snipdex/cache"
	"github.com/snipdex-net/snipdex/config"
	"github.com/snipdex-net/snipdex/fanout"
	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/snippet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testNode struct {
	handler http.Handler
	cache   *cache.Cache
	state   *fanout.State
}

func newTestNode(t *testing.T, exposure config.Exposure) *testNode {
	t.Helper()

	webRoot := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(webRoot, "index.html"),
		[]byte("<html><body><h1>{{.Trademark}}</h1></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(webRoot, "style.css"), []byte("body{}"), 0o644))

	cfg := &config.Config{
		Node:  config.NodeConfig{Port: 8472},
		Cache: config.CacheConfig{File: filepath.Join(t.TempDir(), "test.db")},
		Web:   config.WebConfig{Root: webRoot, Exposure: exposure},
	}

	c, err := cache.OpenOrCreate(cfg.Cache.File, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	self := &peer.Peer{PID: c.SelfPID(), Name: "test node"}
	state := fanout.NewState(self)
	engine := fanout.New(c, testLogger())

	srv := New(cfg, c, engine, state, testLogger())
	return &testNode{handler: srv.Handler, cache: c, state: state}
}

func (n *testNode) get(t *testing.T, target, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	n.handler.ServeHTTP(rec, req)
	return rec
}

func TestRootRedirectsToCanonicalPath(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	for _, target := range []string{"/", "/snipdex"} {
		rec := n.get(t, target, "127.0.0.1:40000")
		assert.Equal(t, http.StatusMovedPermanently, rec.Code, target)
		assert.Equal(t, "/snipdex/", rec.Header().Get("Location"), target)
	}
}

func TestSearchFromPeerIsAnsweredFromCacheOnly(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	cached := peer.NewList()
	cached.MergeOne(&peer.Peer{PID: "p1", Name: "cached peer"}, peer.StatusDone, nil)
	snippets := snippet.NewList(&snippet.Snippet{
		Title:    "cached result",
		Location: "http://example.com/a",
		Origins:  []snippet.Origin{{PID: "p1"}},
	})
	require.NoError(t, n.cache.Put("hello", cached, snippets))

	rec := n.get(t, "/snipdex/?q=hello&f=xml", "198.51.100.7:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/snipdex+xml")

	body := rec.Body.String()
	assert.Contains(t, body, "cached result")
	assert.Contains(t, body, `status="ME"`) // self is prepended even on cache-only answers
	assert.Contains(t, body, `pid="p1"`)
}

func TestSearchFromLoopbackRunsFanOutAndStillAnswers(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	rec := n.get(t, "/snipdex/?q=hello&f=xml", "127.0.0.1:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `status="ME"`)
}

func TestSearchRendersHTMLByDefault(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	rec := n.get(t, "/snipdex/?q=hello", "198.51.100.7:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<form")
}

func TestPongIsRefusedForNonMotherCallers(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)
	n.state.SetMotherPublicHost("203.0.113.9")

	rec := n.get(t, "/snipdex/?q=snipdexgoodtoseeyou&f=xml", "198.51.100.7:40000")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPongAnswersTheRecordedMotherWithPeerDirectory(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)
	n.state.SetMotherPublicHost("203.0.113.9")

	known := peer.NewList()
	known.MergeOne(&peer.Peer{PID: "p1", Name: "child"}, peer.StatusDone, nil)
	require.NoError(t, n.cache.Put("q", known, snippet.NewList()))

	rec := n.get(t, "/snipdex/?q=snipdexgoodtoseeyou&f=xml", "203.0.113.9:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pid="p1"`)
}

func TestRegisterReportsCallersObservedAddress(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	rec := n.get(t, "/snipdex/?q=snipdexiamback&f=xml", "198.51.100.7:40000")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `public_ip="198.51.100.7"`)
	assert.Contains(t, body, `public_port="40000"`)
	assert.Contains(t, body, `status="ME"`)
}

func TestStaticServesFilesAndSubstitutesBranding(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)
	n.state.SetBranding(fanout.Branding{Trademark: "MyEngine"})

	rec := n.get(t, "/snipdex/index.html", "127.0.0.1:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>MyEngine</h1>")

	rec = n.get(t, "/snipdex/style.css", "127.0.0.1:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "body{}")
}

func TestStaticRejectsPathTraversal(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	req := httptest.NewRequest(http.MethodGet, "/snipdex/x", nil)
	req.URL.Path = "/snipdex/../handlers_test.go"
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	n.handler.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestExposurePrivateHidesUIFromRemoteCallers(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	rec := n.get(t, "/snipdex/index.html", "198.51.100.7:40000")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The peer wire protocol stays reachable regardless.
	rec = n.get(t, "/snipdex/?q=hello&f=xml", "198.51.100.7:40000")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExposureDisabledHidesUIFromEveryone(t *testing.T) {
	n := newTestNode(t, config.ExposureDisabled)

	rec := n.get(t, "/", "127.0.0.1:40000")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = n.get(t, "/snipdex/?q=hello&f=xml", "127.0.0.1:40000")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPeerDetailRendersKnownPeer(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)

	known := peer.NewList()
	known.MergeOne(&peer.Peer{PID: "p1", Name: "child", Language: "en"}, peer.StatusDone, nil)
	require.NoError(t, n.cache.Put("q", known, snippet.NewList()))

	rec := n.get(t, "/snipdex/source/p1", "127.0.0.1:40000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "child")

	rec = n.get(t, "/snipdex/source/ghost", "127.0.0.1:40000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisplayHostExtractsHostOrFallsBack(t *testing.T) {
	assert.Equal(t, "example.com", displayHost("http://example.com/a/b"))
	assert.Equal(t, "not a url", displayHost("not a url"))
}

func TestResolveURLResolvesRelativeReferences(t *testing.T) {
	assert.Equal(t, "http://example.com/thumb.png", resolveURL("http://example.com/page", "/thumb.png"))
	assert.Equal(t, "https://cdn.example/x.png", resolveURL("http://example.com/page", "https://cdn.example/x.png"))
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	n := newTestNode(t, config.ExposurePrivate)
	rec := n.get(t, "/snipdex/?q=hello&f=xml", "198.51.100.7:40000")
	assert.True(t, strings.Contains(rec.Header().Get("X-Request-Id"), "-"))
}
