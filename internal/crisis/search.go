package crisis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stressease/stressease/internal/log"
)

const defaultSearchTimeout = 15 * time.Second

// SearchClient queries a SearXNG instance over its JSON API.
type SearchClient struct {
	baseURL string
	hc      *http.Client
	logger  log.Logger
}

// NewSearchClient creates a SearXNG client for the given instance URL.
func NewSearchClient(baseURL string, logger log.Logger) (*SearchClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("search base URL is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &SearchClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: defaultSearchTimeout},
		logger:  logger,
	}, nil
}

// searxngResponse is the subset of the SearXNG JSON payload we read.
type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns up to limit results.
func (c *SearchClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = resultsPerQuery
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var payload searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]SearchResult, 0, limit)
	for _, r := range payload.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
		if len(results) == limit {
			break
		}
	}
	c.logger.Debug("search completed", "query", query, "results", len(results))
	return results, nil
}
