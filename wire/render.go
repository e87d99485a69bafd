package wire

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
)

// Render writes q, peers, and snippets as a native snipdex_response to w,
// including the XML declaration.
func Render(w io.Writer, q query.Query, peers *peer.List, snippets *snippet.List) error {
	resp := Response{
		Version:  ResponseVersion,
		Query:    FromQuery(q),
		Peers:    FromPeerList(peers),
		Snippets: FromSnippetList(snippets),
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(&resp); err != nil {
		return fmt.Errorf("wire: encode response: %w", err)
	}
	return enc.Flush()
}

// RenderBytes returns the native snipdex_response as XML bytes.
func RenderBytes(q query.Query, peers *peer.List, snippets *snippet.List) ([]byte, error) {
	resp := Response{
		Version:  ResponseVersion,
		Query:    FromQuery(q),
		Peers:    FromPeerList(peers),
		Snippets: FromSnippetList(snippets),
	}
	data, err := xml.MarshalIndent(&resp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("wire: marshal response: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
