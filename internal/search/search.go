// Package search answers a learner query through a chain of web search
// backends, escalating from the hosted endpoint to DuckDuckGo scraping.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

// ErrSearchFailed is returned when every tier was exhausted without
// producing results. It is the only unconditional failure path.
var ErrSearchFailed = errors.New("web search failed")

// Tier is one search backend in the fallback chain.
type Tier interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// Client orchestrates tier selection and escalation. The primary tier may
// be nil when no hosted search endpoint is configured.
type Client struct {
	classifier Classifier
	primary    Tier
	fast       Tier
	full       Tier
}

// New creates a search client with the default keyword classifier.
func New(primary, fast, full Tier) *Client {
	return &Client{
		classifier: KeywordClassifier{},
		primary:    primary,
		fast:       fast,
		full:       full,
	}
}

// NewWithClassifier creates a search client with a custom classifier.
func NewWithClassifier(c Classifier, primary, fast, full Tier) *Client {
	return &Client{classifier: c, primary: primary, fast: fast, full: full}
}

// Search runs the query through the tier chain. Each tier's failure
// degrades to the next tier; only full exhaustion returns ErrSearchFailed.
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = sanitizeQuery(query)
	if query == "" {
		return nil, ErrSearchFailed
	}
	traits := c.classifier.Classify(query)

	if results := c.try(ctx, c.primary, "primary", query); len(results) > 0 {
		return results, nil
	}

	// Dated news and weather queries skip straight to the full tier: fast
	// snippets are usually stale summaries for those.
	if (traits.HasExplicitDate && traits.LooksLikeNews) || traits.LooksLikeWeather {
		if results := c.try(ctx, c.full, "full", query); len(results) > 0 {
			return results, nil
		}
		if results := c.try(ctx, c.fast, "fast", query); len(results) > 0 {
			return results, nil
		}
		return nil, ErrSearchFailed
	}

	fastResults := c.try(ctx, c.fast, "fast", query)
	if len(fastResults) > 0 && !c.needsEscalation(traits, fastResults) {
		return fastResults, nil
	}

	if results := c.try(ctx, c.full, "full", query); len(results) > 0 {
		return results, nil
	}
	if len(fastResults) > 0 {
		return fastResults, nil
	}
	return nil, ErrSearchFailed
}

// try runs one tier, degrading any error to an empty result.
func (c *Client) try(ctx context.Context, tier Tier, name, query string) []model.SearchResult {
	if tier == nil {
		return nil
	}
	results, err := tier.Search(ctx, query)
	if err != nil {
		slog.Warn("search tier failed", "tier", name, "error", err)
		return nil
	}
	return results
}

// needsEscalation checks whether fast-tier snippets carry enough substance
// for the query, per the classifier traits.
func (c *Client) needsEscalation(traits QueryTraits, results []model.SearchResult) bool {
	if traits.NeedsCurrentDetails && !snippetsHaveConcreteData(results) {
		return true
	}
	if traits.LooksLikeWeather && !snippetsHaveWeatherTokens(results) {
		return true
	}
	return false
}

// The concreteness thresholds are placeholder policy, not a contract: a
// snippet with any digit or date/time token counts as concrete.
var (
	concreteDataRegex = regexp.MustCompile(`(?i)\d|January|February|March|April|May|June|July|August|September|October|November|December|noon|midnight`)
	weatherTokenRegex = regexp.MustCompile(`(?i)°|degrees|celsius|fahrenheit|humidity|wind|precipitation|rain|snow|sunny|cloudy|forecast|temperature`)
)

func snippetsHaveConcreteData(results []model.SearchResult) bool {
	for _, r := range results {
		if concreteDataRegex.MatchString(r.Snippet) {
			return true
		}
	}
	return false
}

func snippetsHaveWeatherTokens(results []model.SearchResult) bool {
	for _, r := range results {
		if weatherTokenRegex.MatchString(r.Snippet) {
			return true
		}
	}
	return false
}

var strayCharsRegex = regexp.MustCompile(`["“”]+|\s+-\s+|^-+|-+$`)

// sanitizeQuery strips stray quotes and dashes that break scrape queries.
func sanitizeQuery(query string) string {
	query = strayCharsRegex.ReplaceAllString(query, " ")
	return strings.Join(strings.Fields(query), " ")
}

// FormatResults renders results as the bracketed, numbered plain-text block
// injected into prompts.
func FormatResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("[Web Search Results]\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s\n", i+1, r.Title, r.Source, r.Snippet)
	}
	return sb.String()
}
