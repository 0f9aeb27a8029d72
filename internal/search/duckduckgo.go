package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

const (
	ddgEndpoint   = "https://html.duckduckgo.com/html/"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	maxResponse   = 1 << 20
	maxSnippetLen = 300
)

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. No API key needed.
type DuckDuckGo struct {
	endpoint   string
	httpClient *http.Client
	limit      int
}

// NewDuckDuckGo creates the scraper with a bounded per-request timeout.
func NewDuckDuckGo(limit int) *DuckDuckGo {
	if limit <= 0 {
		limit = 5
	}
	return &DuckDuckGo{
		endpoint:   ddgEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limit:      limit,
	}
}

// Search implements the fast tier: one request to the DuckDuckGo results
// page, no follow-up fetches.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, fmt.Errorf("reading results page: %w", err)
	}

	return parseResultsPage(string(body), d.limit)
}

// parseResultsPage extracts results from the DuckDuckGo HTML, which marks
// each hit with class "result results_links".
func parseResultsPage(page string, limit int) ([]model.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var results []model.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r, ok := resultFromNode(n); ok {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func resultFromNode(n *html.Node) (model.SearchResult, bool) {
	var r model.SearchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.Link = resolveRedirect(attrValue(n, "href"))
				r.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = normalizeSnippet(textContent(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	if r.Link == "" || r.Title == "" {
		return model.SearchResult{}, false
	}
	if r.Snippet == "" {
		r.Snippet = "No description available"
	}
	if u, err := url.Parse(r.Link); err == nil {
		r.Source = u.Hostname()
	}
	return r, true
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links. Ad links
// (/y.js) yield an empty string and are skipped by the caller.
func resolveRedirect(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !strings.HasSuffix(u.Hostname(), "duckduckgo.com") && u.Hostname() != "" {
		return raw
	}
	if u.Path == "/y.js" {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Hostname() == "" && strings.HasPrefix(u.Path, "/l/") {
		return ""
	}
	return raw
}

func normalizeSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxSnippetLen {
		s = s[:maxSnippetLen] + "..."
	}
	return s
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
