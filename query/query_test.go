package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCollapsesWhitespaceAndCase(t *testing.T) {
	q := New(map[string]string{KeyText: "  Hello   World  "})
	assert.Equal(t, "hello+world", Normalize(q))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	q := New(map[string]string{KeyText: "Foo Bar #videos"})
	first := Normalize(q)
	second := Normalize(New(map[string]string{KeyText: first}))
	assert.Equal(t, first, second)
}

func TestNormalizeHoistsHashtag(t *testing.T) {
	q := New(map[string]string{KeyText: "cats #videos dogs"})
	assert.Equal(t, "%23videos+cats+dogs", Normalize(q))
}

func TestNormalizeHashtagParamTakesPrecedence(t *testing.T) {
	q := New(map[string]string{KeyText: "cats #extra", KeyHashtag: "videos"})
	// the explicit hashtag wins; the in-text "#extra" has its '#' stripped.
	assert.Equal(t, "%23videos+cats+extra", Normalize(q))
}

func TestTermsSplitsOnPlus(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar", "baz"}, Terms("foo+bar+baz"))
	assert.Nil(t, Terms(""))
}

func TestFillRequiredPlaceholder(t *testing.T) {
	q := New(map[string]string{KeyText: "hello world"})
	out, err := Fill("http://example.com/search?q={q}", q)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/search?q=hello+world", out)
}

func TestFillOptionalPlaceholderErased(t *testing.T) {
	q := New(map[string]string{KeyText: "hello"})
	out, err := Fill("http://example.com/search?q={q}&p={p?}&l={l?}", q)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/search?q=hello&p=&l=", out)
}

func TestFillMissingRequiredPlaceholderFails(t *testing.T) {
	q := New(map[string]string{KeyText: "hello"})
	_, err := Fill("http://example.com/search?q={q}&l={l}", q)
	require.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestMergeExceptPublicPreservesCallerAddress(t *testing.T) {
	q := New(map[string]string{KeyPublicIP: "127.0.0.1", KeyPublicPort: "8472"})
	other := New(map[string]string{KeyPublicIP: "1.2.3.4", KeyPublicPort: "9999", KeyLocalIP: "10.0.0.1"})
	q.MergeExceptPublic(other)
	assert.Equal(t, "127.0.0.1", q[KeyPublicIP])
	assert.Equal(t, "8472", q[KeyPublicPort])
	assert.Equal(t, "10.0.0.1", q[KeyLocalIP])
}
