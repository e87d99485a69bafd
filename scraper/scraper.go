// Package scraper makes one outbound call to a peer's search endpoint
// and parses its response into a PeerList/SnippetList pair, dispatching
// on the template's advertised mimetype to the native wire codec, an
// RSS/Atom/suggestion item table, or a bare HTML item scrape.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/snippet"
	"github.com/snipdex-net/snipdex/wire"
)

// Error kinds the coordinator distinguishes. Scraper errors never
// escape the worker that owns them; the fan-out engine converts them to
// a peer status: InvalidTemplate -> ERROR, Timeout -> TIMEOUT,
// ParseError -> ERROR.
var (
	ErrInvalidTemplate = errors.New("scraper: invalid template")
	ErrTimeout         = errors.New("scraper: timeout")
	ErrParse           = errors.New("scraper: parse error")
)

const (
	socketTimeout  = 10 * time.Second
	maxBodyBytes   = 4 << 20
	userAgent      = "SnipDex/0.2 (+http://www.snipdex.net/)"
	titleLimit     = 60
	summaryLimit   = 300
)

// Scraper performs one search against a single peer endpoint.
type Scraper struct {
	template *peer.Template
	format   format
	logger   *slog.Logger
}

// New builds a Scraper from a peer's template, choosing a format
// descriptor by its advertised mimetype.
func New(t *peer.Template, logger *slog.Logger) (*Scraper, error) {
	if t.Empty() {
		return nil, fmt.Errorf("scraper: build: %w", ErrInvalidTemplate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := selectFormat(t.Type, templatePaths{
		itemPath:    t.ItemPath,
		titlePath:   t.TitlePath,
		linkPath:    t.LinkPath,
		summaryPath: t.SummaryPath,
		previewPath: t.PreviewPath,
	})
	return &Scraper{template: t, format: f, logger: logger}, nil
}

// Search fills the template from q, performs the HTTP call, and parses
// the response, returning the altered query (carrying the observed
// local/peer socket addresses), the peer list the response asserts,
// the snippet list it returns, and its reported total-results count.
func (s *Scraper) Search(ctx context.Context, q query.Query) (query.Query, *peer.List, *snippet.List, int, error) {
	if s.template.Type == wire.ContentType {
		return s.searchNative(ctx, q)
	}
	return s.searchScraped(ctx, q)
}

func (s *Scraper) buildRequest(ctx context.Context, q query.Query) (*http.Request, error) {
	filled, err := query.Fill(s.template.URL, q)
	if err != nil {
		return nil, fmt.Errorf("scraper: fill template: %w", err)
	}

	method := strings.ToUpper(s.template.Method)
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(filled)
	if err != nil {
		return nil, fmt.Errorf("scraper: %w: %v", ErrInvalidTemplate, err)
	}

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(u.RawQuery)
		u.RawQuery = ""
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Charset", "UTF-8;q=0.7,*;q=0.7")
	req.Header.Set("Connection", "close")
	req.Header.Set("Cache-Control", "no-cache")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (s *Scraper) fetch(ctx context.Context, q query.Query) ([]byte, query.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, socketTimeout)
	defer cancel()

	req, err := s.buildRequest(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	capture := &addrCapture{}
	client := &http.Client{
		Timeout:   socketTimeout,
		Transport: &http.Transport{DialContext: capture.dialContext},
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("scraper: %w: %v", ErrTimeout, err)
		}
		return nil, nil, fmt.Errorf("scraper: fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("scraper: read body: %w", err)
	}

	if s.template.ForceDecode != "" {
		decoded, err := transcode(body, s.template.ForceDecode)
		if err == nil {
			body = decoded
		} else {
			s.logger.Warn("scraper: force_decode failed", "charset", s.template.ForceDecode, "error", err)
		}
	}

	localHost, localPort := splitHostPort(capture.local)
	peerHost, peerPort := splitHostPort(capture.remote)

	qPrime := query.New(nil)
	qPrime.MergeExceptPublic(q)
	qPrime.Set(query.KeyLocalIP, localHost)
	qPrime.Set(query.KeyLocalPort, localPort)
	qPrime.Set(query.KeyPeerIP, peerHost)
	qPrime.Set(query.KeyPeerPort, peerPort)

	return body, qPrime, nil
}

func transcode(body []byte, forceDecode string) ([]byte, error) {
	enc, err := htmlindex.Get(forceDecode)
	if err != nil {
		return nil, fmt.Errorf("scraper: transcode: unknown charset %q: %w", forceDecode, err)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("scraper: transcode: %w", err)
	}
	rewritten := strings.ReplaceAll(string(decoded), "charset="+forceDecode, "charset=utf-8")
	return []byte(rewritten), nil
}

func (s *Scraper) searchNative(ctx context.Context, q query.Query) (query.Query, *peer.List, *snippet.List, int, error) {
	body, qPrime, err := s.fetch(ctx, q)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	reportedQuery, peers, snippets, err := wire.ParseBytes(body)
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("scraper: %w: %v", ErrParse, err)
	}
	if pub := reportedQuery[query.KeyPublicIP]; pub != "" {
		qPrime.Set(query.KeyPublicIP, pub)
		qPrime.Set(query.KeyPublicPort, reportedQuery[query.KeyPublicPort])
	}
	return qPrime, peers, snippets, snippets.Len(), nil
}

func (s *Scraper) searchScraped(ctx context.Context, q query.Query) (query.Query, *peer.List, *snippet.List, int, error) {
	body, qPrime, err := s.fetch(ctx, q)
	if err != nil {
		return nil, nil, nil, 0, err
	}

	if s.format.itemPath == "" {
		return qPrime, peer.NewList(), snippet.NewList(), 0, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("scraper: %w: %v", ErrParse, err)
	}

	snippets := snippet.NewList()
	doc.Find(s.format.itemPath).Each(func(_ int, item *goquery.Selection) {
		if sn := s.extractSnippet(item); sn != nil {
			snippets.Append(sn)
		}
	})

	total := 0
	if tr := doc.Find("totalResults, opensearch\\:totalResults").First().Text(); tr != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(tr)); err == nil {
			total = n
		}
	}

	return qPrime, peer.NewList(), snippets, total, nil
}

func (s *Scraper) extractSnippet(item *goquery.Selection) *snippet.Snippet {
	title := boundTextNoMarkup(textOf(item, s.format.titlePath), titleLimit)
	location := extractLink(item, s.format.linkPath)
	if title == "" && location == "" {
		return nil
	}

	var summary string
	if s.format.summaryPath != "" {
		summary = textOf(item, s.format.summaryPath)
	} else {
		summary = itemTextExcludingTitleAndScript(item, s.format.titlePath)
	}
	summary = boundTextNoMarkup(summary, summaryLimit)

	sn := &snippet.Snippet{Title: title, Location: location, Summary: summary}

	if s.format.previewPath != "" {
		if prev := item.Find(s.format.previewPath).First(); prev.Length() > 0 {
			url, ok := prev.Attr("url")
			if !ok {
				url, ok = prev.Attr("src")
			}
			if !ok {
				url = strings.TrimSpace(prev.Text())
			}
			if url != "" {
				sn.Preview = &snippet.Preview{URL: url}
			}
		}
	}
	return sn
}

func textOf(item *goquery.Selection, path string) string {
	if path == "" {
		return ""
	}
	return item.Find(path).First().Text()
}

func extractLink(item *goquery.Selection, path string) string {
	if path == "" {
		return ""
	}
	sel := item.Find(path).First()
	if href, ok := sel.Attr("href"); ok && href != "" {
		return href
	}
	if text := strings.TrimSpace(sel.Text()); text != "" {
		return text
	}
	// The HTML parser treats <link> as a void element, so an RSS
	// <link>URL</link> leaves its URL in the text node right after it.
	if len(sel.Nodes) > 0 {
		if next := sel.Nodes[0].NextSibling; next != nil && next.Type == html.TextNode {
			return strings.TrimSpace(next.Data)
		}
	}
	return ""
}

func itemTextExcludingTitleAndScript(item *goquery.Selection, titlePath string) string {
	clone := item.Clone()
	if titlePath != "" {
		clone.Find(titlePath).Remove()
	}
	clone.Find("script").Remove()
	return clone.Text()
}
