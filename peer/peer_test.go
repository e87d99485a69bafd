package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZombieDerivesPIDFromTemplate(t *testing.T) {
	p1 := NewZombie(&Template{URL: "http://example.com/search?q={q}"})
	p2 := NewZombie(&Template{URL: "http://example.com/search?q={q}"})
	p3 := NewZombie(&Template{URL: "http://other.example.com/search?q={q}"})
	assert.Equal(t, p1.PID, p2.PID)
	assert.NotEqual(t, p1.PID, p3.PID)
	assert.Len(t, p1.PID, 32) // md5 hex digest
}

func TestNewSelfIDLength(t *testing.T) {
	id := NewSelfID()
	assert.Len(t, id, 23)
	id2 := NewSelfID()
	assert.NotEqual(t, id, id2)
}

func TestOpenURLTemplatePrefersPublicAddress(t *testing.T) {
	p := &Peer{
		PublicAddress: "1.2.3.4:8472",
		OpenTemplate:  &Template{URL: "http://zombie.example.com/rss?q={q}", Type: "application/rss+xml"},
	}
	tmpl, ok := p.OpenURLTemplate()
	require.True(t, ok)
	assert.Equal(t, "application/snipdex+xml", tmpl.Type)
	assert.Contains(t, tmpl.URL, "1.2.3.4:8472")
}

func TestOpenURLTemplateFallsBackToHTML(t *testing.T) {
	p := &Peer{HTMLTemplate: &Template{URL: "http://zombie.example.com/?s={q}", Type: "text/html"}}
	tmpl, ok := p.OpenURLTemplate()
	require.True(t, ok)
	assert.Equal(t, "text/html", tmpl.Type)
}

func TestOpenURLTemplateNoneAvailable(t *testing.T) {
	p := &Peer{}
	_, ok := p.OpenURLTemplate()
	assert.False(t, ok)
}

func TestStripHintsRemovesMatchingSubstring(t *testing.T) {
	assert.Equal(t, "cats ", StripHints("#videos cats ", []string{"#videos"}))
}

func TestStripHintsFallsBackWhenResultEmpty(t *testing.T) {
	assert.Equal(t, "#videos cats", StripHints("#videos cats", []string{"#videos cats"}))
}

func TestMergeOneNeverRegressesFromTODO(t *testing.T) {
	l := NewList()
	p := &Peer{PID: "p1"}
	l.MergeOne(p, StatusDone, Score(1.0))
	l.MergeOne(p, StatusTODO, Score(0.5))
	e, ok := l.Get("p1")
	require.True(t, ok)
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, 1.0, *e.Score)
}

func TestMergeOneTakesMaxScore(t *testing.T) {
	l := NewList()
	p := &Peer{PID: "p1"}
	l.MergeOne(p, StatusTODO, Score(0.2))
	l.MergeOne(p, StatusDone, Score(0.9))
	e, _ := l.Get("p1")
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, 0.9, *e.Score)
}

func TestMergeOneReplacesPeerOnlyWhenNewer(t *testing.T) {
	l := NewList()
	old := &Peer{PID: "p1", Name: "old", Updated: "2020-01-01 00:00:00"}
	newer := &Peer{PID: "p1", Name: "new", Updated: "2024-01-01 00:00:00"}
	older := &Peer{PID: "p1", Name: "older", Updated: "2019-01-01 00:00:00"}

	l.MergeOne(old, StatusTODO, nil)
	l.MergeOne(newer, StatusTODO, nil)
	e, _ := l.Get("p1")
	assert.Equal(t, "new", e.Peer.Name)

	l.MergeOne(older, StatusTODO, nil)
	e, _ = l.Get("p1")
	assert.Equal(t, "new", e.Peer.Name)
}

func TestListMergeIsIdempotentOnPID(t *testing.T) {
	l := NewList()
	p := &Peer{PID: "p1"}
	other := NewList()
	other.MergeOne(p, StatusDone, Score(0.5))
	other.MergeOne(p, StatusError, Score(0.1))

	l.Merge(other)
	assert.Equal(t, 1, l.Len())
}
