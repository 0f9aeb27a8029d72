package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

// BackendTier queries the hosted web-search endpoint. It asks for "fast"
// mode; the hosted service decides internally whether to scrape pages.
type BackendTier struct {
	baseURL    string
	apiKey     string
	mode       string
	httpClient *http.Client
}

// NewBackendTier creates the primary search tier against the hosted API.
func NewBackendTier(baseURL, apiKey string) *BackendTier {
	return &BackendTier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		mode:       "fast",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type backendSearchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type backendSearchResponse struct {
	Sources []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"sources"`
}

// Search implements Tier.
func (b *BackendTier) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	body, err := json.Marshal(backendSearchRequest{Query: query, Mode: b.mode})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/ai/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend search: HTTP %d", resp.StatusCode)
	}

	var decoded backendSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("backend search: %w", err)
	}

	results := make([]model.SearchResult, 0, len(decoded.Sources))
	for _, s := range decoded.Sources {
		if s.URL == "" || s.Title == "" {
			continue
		}
		r := model.SearchResult{
			Title:   s.Title,
			Link:    s.URL,
			Snippet: normalizeSnippet(s.Snippet),
		}
		if u, err := url.Parse(s.URL); err == nil {
			r.Source = u.Hostname()
		}
		results = append(results, r)
	}
	return results, nil
}
