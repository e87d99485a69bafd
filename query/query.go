// Package query normalizes user search input into a canonical fingerprint
// and fills peer URL templates from it.
package query

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Recognized parameter keys.
const (
	KeyText       = "q"
	KeyHashtag    = "h"
	KeyPage       = "p"
	KeyLanguage   = "l"
	KeyFormat     = "f"
	KeyVersion    = "v"
	KeyPublicIP   = "public_ip"
	KeyPublicPort = "public_port"
	KeyLocalIP    = "local_ip"
	KeyLocalPort  = "local_port"
	KeyPeerIP     = "peer_ip"
	KeyPeerPort   = "peer_port"
)

// Reserved fingerprints used as special control queries and cache keys.
const (
	Register = "snipdexiamback"
	Pong     = "snipdexgoodtoseeyou"
	Myself   = "snipdexwhoami"
)

// ErrInvalidTemplate is returned when a template has a mandatory
// placeholder with no binding in the query.
var ErrInvalidTemplate = errors.New("query: invalid template")

// Query is a mapping from short parameter names to string values.
type Query map[string]string

// New builds a Query from a set of key/value pairs.
func New(pairs map[string]string) Query {
	q := make(Query, len(pairs))
	for k, v := range pairs {
		q[k] = v
	}
	return q
}

// Clone returns a shallow copy of q.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Set stores key=value on the query, overwriting any prior value.
func (q Query) Set(key, value string) {
	q[key] = value
}

// Merge copies every key from other into q, overwriting existing values.
func (q Query) Merge(other Query) {
	for k, v := range other {
		q[k] = v
	}
}

// MergeExceptPublic copies every key from other into q except public_ip
// and public_port, so a caller's own reported public address is never
// clobbered by a value observed deeper in the fan-out.
func (q Query) MergeExceptPublic(other Query) {
	for k, v := range other {
		if k == KeyPublicIP || k == KeyPublicPort {
			continue
		}
		q[k] = v
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// unquotePlus reverses the fingerprint encoding ('+' to space, %XX
// decoded) so that normalizing an already-normalized fingerprint is a
// no-op. Undecodable input passes through untouched.
func unquotePlus(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// Normalize derives the canonical fingerprint from q's "q" and "h" keys:
// lowercase, whitespace-collapsed, space-joined with '+', URL-percent
// encoded. Exactly one leading hashtag term is kept and moved to the
// front; any further "#token" in q has its '#' stripped once a hashtag
// is already bound.
func Normalize(q Query) string {
	text := unquotePlus(q[KeyText])
	tag := unquotePlus(q[KeyHashtag])
	if tag != "" {
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tag = whitespaceRe.ReplaceAllString(tag, "")
	}

	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	var terms []string
	if text != "" {
		for _, term := range strings.Split(text, " ") {
			if term == "" {
				continue
			}
			if strings.HasPrefix(term, "#") {
				if tag != "" {
					term = term[1:]
				} else {
					tag = term
					term = ""
				}
			}
			if term != "" {
				terms = append(terms, term)
			}
		}
	}

	result := strings.Join(terms, " ")
	if tag != "" {
		if result != "" {
			result = tag + " " + result
		} else {
			result = tag
		}
	}
	return url.QueryEscape(strings.ToLower(result))
}

// Terms splits a normalized fingerprint back into its '+'-separated terms.
func Terms(fingerprint string) []string {
	if fingerprint == "" {
		return nil
	}
	return strings.Split(fingerprint, "+")
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(\??)\}`)

// Fill substitutes "{k}" and "{k?}" placeholders in template with
// URL-encoded values from q. The "q" placeholder is filled with the
// normalized fingerprint; other keys pass through quote_plus-encoded.
// Unmatched optional placeholders are erased. Fill returns
// ErrInvalidTemplate if a required placeholder has no binding.
func Fill(template string, q Query) (string, error) {
	var missing error
	result := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		sub := placeholderRe.FindStringSubmatch(match)
		key, optional := sub[1], sub[2] == "?"

		var value string
		var ok bool
		if key == KeyText {
			value = Normalize(q)
			ok = true
		} else {
			value, ok = q[key]
		}

		if !ok || value == "" {
			if optional {
				return ""
			}
			missing = ErrInvalidTemplate
			return match
		}
		if key == KeyText {
			// value is already normalized/percent-encoded.
			return value
		}
		return url.QueryEscape(value)
	})
	if missing != nil {
		return "", missing
	}
	return result, nil
}
