package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const resultsFixture = `<html><body>
<div class="results">
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fbees&amp;rut=abc">Bee Pollination</a>
    </h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fbees">Bees carry pollen between flowers.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://example.org/wasps">Wasp Facts</a>
    </h2>
    <a class="result__snippet" href="https://example.org/wasps">Wasps are predators, not pollinators.</a>
  </div>
  <div class="result results_links">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/y.js?ad_provider=x">Sponsored Thing</a>
    </h2>
  </div>
</div>
</body></html>`

func TestParseResultsPage(t *testing.T) {
	results, err := parseResultsPage(resultsFixture, 10)
	if err != nil {
		t.Fatalf("parseResultsPage() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (ad dropped)", len(results))
	}

	if results[0].Title != "Bee Pollination" {
		t.Errorf("Title = %q", results[0].Title)
	}
	if results[0].Link != "https://example.com/bees" {
		t.Errorf("Link = %q, want redirect unwrapped", results[0].Link)
	}
	if results[0].Source != "example.com" {
		t.Errorf("Source = %q, want hostname", results[0].Source)
	}
	if !strings.Contains(results[0].Snippet, "pollen") {
		t.Errorf("Snippet = %q", results[0].Snippet)
	}

	if results[1].Link != "https://example.org/wasps" {
		t.Errorf("direct link mangled: %q", results[1].Link)
	}
}

func TestParseResultsPageLimit(t *testing.T) {
	results, err := parseResultsPage(resultsFixture, 1)
	if err != nil {
		t.Fatalf("parseResultsPage() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want limit of 1 applied", len(results))
	}
}

func TestResolveRedirect(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage", "https://example.com/page"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"//duckduckgo.com/y.js?ad_provider=x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := resolveRedirect(tt.in); got != tt.want {
			t.Errorf("resolveRedirect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSnippet(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := normalizeSnippet(long)
	if len(got) > maxSnippetLen+3 {
		t.Errorf("snippet length %d exceeds cap", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated snippet should end with ellipsis: %q", got)
	}

	if got := normalizeSnippet("  spaced\n\tout  "); got != "spaced out" {
		t.Errorf("normalizeSnippet() = %q, want whitespace collapsed", got)
	}
}

func TestChunkSentences(t *testing.T) {
	t.Run("splits on sentence boundaries", func(t *testing.T) {
		text := "First sentence here. Second sentence follows! Third one asks? Fourth closes."
		chunks := chunkSentences(text, 45)
		if len(chunks) < 2 {
			t.Fatalf("got %d chunks, want text split up", len(chunks))
		}
		for _, c := range chunks {
			if len(c) > 45 {
				t.Errorf("chunk exceeds max length: %q", c)
			}
		}
	})

	t.Run("hard-splits oversized sentences", func(t *testing.T) {
		text := strings.Repeat("x", 250)
		chunks := chunkSentences(text, 100)
		if len(chunks) != 3 {
			t.Errorf("got %d chunks, want 3", len(chunks))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if chunks := chunkSentences("", 100); chunks != nil {
			t.Errorf("got %v, want nil", chunks)
		}
	})

	t.Run("hard split keeps runes whole", func(t *testing.T) {
		text := strings.Repeat("ä", 150) // 300 bytes, no sentence breaks
		chunks := chunkSentences(text, 101)
		for i, c := range chunks {
			if !utf8.ValidString(c) {
				t.Errorf("chunk %d is not valid UTF-8", i)
			}
		}
		if joined := strings.Join(chunks, ""); joined != text {
			t.Errorf("joined chunks differ from input: %d bytes, want %d", len(joined), len(text))
		}
	})
}
