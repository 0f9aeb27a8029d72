package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

type stubTier struct {
	results []model.SearchResult
	err     error
	calls   int
}

func (s *stubTier) Search(_ context.Context, _ string) ([]model.SearchResult, error) {
	s.calls++
	return s.results, s.err
}

func hits(snippet string) []model.SearchResult {
	return []model.SearchResult{{Title: "Result", Link: "https://example.com", Snippet: snippet, Source: "example.com"}}
}

func TestSearchPrimaryWins(t *testing.T) {
	primary := &stubTier{results: hits("from the backend")}
	fast := &stubTier{results: hits("should not be used")}
	c := New(primary, fast, &stubTier{})

	results, err := c.Search(context.Background(), "photosynthesis")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Snippet != "from the backend" {
		t.Errorf("got %q, want primary tier results", results[0].Snippet)
	}
	if fast.calls != 0 {
		t.Errorf("fast tier called %d times, want 0", fast.calls)
	}
}

func TestSearchPrimaryFailureDegrades(t *testing.T) {
	primary := &stubTier{err: errors.New("backend down")}
	fast := &stubTier{results: hits("fast answer")}
	c := New(primary, fast, &stubTier{})

	results, err := c.Search(context.Background(), "photosynthesis")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Snippet != "fast answer" {
		t.Errorf("got %q, want fast tier results", results[0].Snippet)
	}
}

func TestSearchEscalatesThinSnippets(t *testing.T) {
	// A "current details" query with no concrete data in fast snippets
	// should escalate to the full tier.
	fast := &stubTier{results: hits("some vague text about prices")}
	full := &stubTier{results: hits("the price is 42 dollars")}
	c := New(nil, fast, full)

	results, err := c.Search(context.Background(), "current price of copper")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if full.calls != 1 {
		t.Fatalf("full tier called %d times, want 1", full.calls)
	}
	if results[0].Snippet != "the price is 42 dollars" {
		t.Errorf("got %q, want full tier results", results[0].Snippet)
	}
}

func TestSearchKeepsFastWhenConcrete(t *testing.T) {
	fast := &stubTier{results: hits("copper trades at 4.12 per pound")}
	full := &stubTier{results: hits("unused")}
	c := New(nil, fast, full)

	if _, err := c.Search(context.Background(), "current price of copper"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if full.calls != 0 {
		t.Errorf("full tier called %d times, want 0", full.calls)
	}
}

func TestSearchWeatherSkipsFast(t *testing.T) {
	fast := &stubTier{results: hits("unused")}
	full := &stubTier{results: hits("22 degrees and sunny")}
	c := New(nil, fast, full)

	results, err := c.Search(context.Background(), "weather in Helsinki")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if full.calls != 1 {
		t.Errorf("full tier called %d times, want 1 (weather goes straight to full)", full.calls)
	}
	if results[0].Snippet != "22 degrees and sunny" {
		t.Errorf("got %q, want full tier results", results[0].Snippet)
	}
}

func TestSearchDatedNewsSkipsFast(t *testing.T) {
	fast := &stubTier{results: hits("unused")}
	full := &stubTier{results: hits("the summit wrapped up this morning")}
	c := New(nil, fast, full)

	results, err := c.Search(context.Background(), "latest news March 2026")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if fast.calls != 0 {
		t.Errorf("fast tier called %d times, want 0 (dated news goes straight to full)", fast.calls)
	}
	if full.calls != 1 {
		t.Errorf("full tier called %d times, want 1", full.calls)
	}
	if results[0].Snippet != "the summit wrapped up this morning" {
		t.Errorf("got %q, want full tier results", results[0].Snippet)
	}
}

func TestSearchFallsBackToFastResults(t *testing.T) {
	// Escalation that finds nothing should still return the thin fast hits.
	fast := &stubTier{results: hits("vague text about prices")}
	full := &stubTier{err: errors.New("scrape blocked")}
	c := New(nil, fast, full)

	results, err := c.Search(context.Background(), "current price of copper")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Snippet != "vague text about prices" {
		t.Errorf("got %q, want the fast results kept", results[0].Snippet)
	}
}

func TestSearchExhaustionFails(t *testing.T) {
	c := New(&stubTier{err: errors.New("down")}, &stubTier{}, &stubTier{err: errors.New("down")})

	if _, err := c.Search(context.Background(), "anything at all"); !errors.Is(err, ErrSearchFailed) {
		t.Errorf("Search() error = %v, want ErrSearchFailed", err)
	}

	if _, err := c.Search(context.Background(), `"---"`); !errors.Is(err, ErrSearchFailed) {
		t.Errorf("Search() on empty-after-sanitize query error = %v, want ErrSearchFailed", err)
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"quoted phrase"`, "quoted phrase"},
		{"term - other", "term other"},
		{"--leading and trailing--", "leading and trailing"},
		{"  spaced   out  ", "spaced out"},
	}
	for _, tt := range tests {
		if got := sanitizeQuery(tt.in); got != tt.want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  QueryTraits
	}{
		{"photosynthesis basics", QueryTraits{}},
		{"latest news from March 2026", QueryTraits{HasExplicitDate: true, LooksLikeNews: true}},
		{"weather forecast Helsinki", QueryTraits{LooksLikeWeather: true}},
		{"current exchange rate euro", QueryTraits{NeedsCurrentDetails: true}},
	}
	var c KeywordClassifier
	for _, tt := range tests {
		if got := c.Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestFormatResults(t *testing.T) {
	if FormatResults(nil) != "" {
		t.Error("no results should format to an empty string")
	}

	out := FormatResults([]model.SearchResult{
		{Title: "Bees", Link: "https://example.com/bees", Snippet: "Bees pollinate.", Source: "example.com"},
		{Title: "Wasps", Link: "https://example.org/wasps", Snippet: "Wasps do not.", Source: "example.org"},
	})
	if !strings.HasPrefix(out, "[Web Search Results]") {
		t.Errorf("output should start with the results header, got %q", out)
	}
	if !strings.Contains(out, "1. Bees (example.com)") || !strings.Contains(out, "2. Wasps (example.org)") {
		t.Errorf("output should number results with sources:\n%s", out)
	}
}
