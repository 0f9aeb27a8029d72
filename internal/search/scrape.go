package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

const (
	maxChunkLen    = 1000
	minReadableLen = 200
	maxHeadlines   = 8
	scrapeParallel = 4
)

// FullScraper implements the full tier: a DuckDuckGo search followed by a
// readable-text fetch of every result page, run concurrently.
type FullScraper struct {
	ddg        *DuckDuckGo
	httpClient *http.Client
}

// NewFullScraper creates the full-tier scraper.
func NewFullScraper(limit int) *FullScraper {
	return &FullScraper{
		ddg:        NewDuckDuckGo(limit),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Search returns DuckDuckGo results with snippets upgraded to the first
// chunk of readable page text where a page could be scraped. A page that
// cannot be fetched keeps its original snippet.
func (f *FullScraper) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	results, err := f.ddg.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	pages := make([]*model.PageContent, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scrapeParallel)
	for i, r := range results {
		g.Go(func() error {
			page, err := f.readablePage(gctx, r.Link)
			if err != nil {
				return nil // per-page failures degrade, never abort the batch
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, page := range pages {
		if page != nil && len(page.Chunks) > 0 {
			results[i].Snippet = normalizeSnippet(page.Chunks[0])
		}
	}
	return results, nil
}

// readablePage fetches a URL and reduces it to title plus text chunks.
// Pages with too little running text fall back to their headlines.
func (f *FullScraper) readablePage(ctx context.Context, pageURL string) (*model.PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	title := pageTitle(doc)
	if title == "" {
		title = pageURL
	}

	text := bodyText(doc)
	if len(text) < minReadableLen {
		headlines := pageHeadlines(doc)
		if len(headlines) == 0 {
			return nil, fmt.Errorf("no readable text")
		}
		text = strings.Join(headlines, ". ")
	}

	return &model.PageContent{
		Title:  title,
		URL:    pageURL,
		Chunks: chunkSentences(text, maxChunkLen),
	}, nil
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"header": true, "footer": true, "aside": true, "form": true,
}

func bodyText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func pageTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			title = textContent(n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// pageHeadlines collects distinct h1-h3 texts that look like sentences
// (at least 20 characters and 4 words).
func pageHeadlines(doc *html.Node) []string {
	var headlines []string
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(headlines) >= maxHeadlines {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "h1" || n.Data == "h2" || n.Data == "h3") {
			text := textContent(n)
			if len(text) >= 20 && len(strings.Fields(text)) >= 4 && !seen[text] {
				seen[text] = true
				headlines = append(headlines, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return headlines
}

var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]*`)

// chunkSentences splits text into chunks of at most maxLen characters,
// breaking on sentence boundaries where possible.
func chunkSentences(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	sentences := sentenceRegex.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	var chunks []string
	var current string
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current != "" && len(current)+1+len(sentence) > maxLen {
			chunks = append(chunks, current)
			current = ""
		}
		if len(sentence) > maxLen {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			for len(sentence) > maxLen {
				// Back the hard split off to a rune boundary.
				cut := maxLen
				for cut > 0 && !utf8.RuneStart(sentence[cut]) {
					cut--
				}
				if cut == 0 {
					cut = maxLen
				}
				chunks = append(chunks, sentence[:cut])
				sentence = sentence[cut:]
			}
			if sentence != "" {
				chunks = append(chunks, sentence)
			}
			continue
		}
		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
