package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
)

func TestBoundTextNoMarkupTruncatesAndStripsTags(t *testing.T) {
	assert.Equal(t, "hello world", boundTextNoMarkup("hello   <b>world</b>", 60))
	assert.Equal(t, "ab...", boundTextNoMarkup("abcdef", 5))
	assert.Equal(t, "", boundTextNoMarkup("   ", 60))
}

func TestSearchParsesRSSItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?>
<rss><channel>
  <item><title>First result</title><link>http://example.com/a</link><description>about a</description></item>
  <item><title>Second result</title><link>http://example.com/b</link><description>about b</description></item>
</channel></rss>`))
	}))
	defer srv.Close()

	s, err := New(&peer.Template{URL: srv.URL + "?q={q}", Type: "application/rss+xml"}, nil)
	require.NoError(t, err)

	q := query.New(map[string]string{"q": "hello"})
	qPrime, peers, snippets, _, err := s.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 0, peers.Len())
	require.Equal(t, 2, snippets.Len())
	assert.Equal(t, "First result", snippets.Snippets()[0].Title)
	assert.Equal(t, "http://example.com/a", snippets.Snippets()[0].Location)
	assert.NotEmpty(t, qPrime[query.KeyLocalIP])
	assert.NotEmpty(t, qPrime[query.KeyPeerIP])
}

func TestSearchInvalidTemplateWithoutURL(t *testing.T) {
	_, err := New(&peer.Template{}, nil)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}
