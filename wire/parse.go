package wire

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
)

// Parse reads a native snipdex_response from r and returns the decoded
// query, peer list, and snippet list.
func Parse(r io.Reader) (query.Query, *peer.List, *snippet.List, error) {
	var resp Response
	dec := xml.NewDecoder(r)
	dec.Strict = false
	if err := dec.Decode(&resp); err != nil {
		return nil, nil, nil, fmt.Errorf("wire: parse response: %w", err)
	}
	return ToQuery(resp.Query), ToPeerList(resp.Peers), ToSnippetList(resp.Snippets), nil
}

// ParseBytes parses a native snipdex_response from raw bytes.
func ParseBytes(data []byte) (query.Query, *peer.List, *snippet.List, error) {
	var resp Response
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, nil, nil, fmt.Errorf("wire: parse response: %w", err)
	}
	return ToQuery(resp.Query), ToPeerList(resp.Peers), ToSnippetList(resp.Snippets), nil
}
