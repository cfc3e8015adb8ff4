package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kbforge/curator/pkg/models"
)

// WebSearchClient queries a web search API (SearXNG-compatible JSON
// endpoint) for general web results.
type WebSearchClient struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewWebSearchClient creates a web search client. apiKey may be empty
// for unauthenticated endpoints.
func NewWebSearchClient(endpoint, apiKey string) *WebSearchClient {
	return &WebSearchClient{
		name:       "web-search",
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements ExternalClient.
func (c *WebSearchClient) Name() string { return c.name }

type webSearchResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"publishedDate"`
		Engine        string `json:"engine"`
	} `json:"results"`
}

// Search implements ExternalClient.
func (c *WebSearchClient) Search(ctx context.Context, query string, limit int) ([]RawItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("count", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrUnavailable, c.name, resp.StatusCode)
	}

	var payload webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, c.name, err)
	}

	items := make([]RawItem, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.URL == "" {
			continue
		}
		items = append(items, RawItem{
			Identifier:  r.URL,
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Content,
			SourceType:  models.SourceTypeWeb,
			PublishedAt: r.PublishedDate,
			Metadata: map[string]any{
				"engine": r.Engine,
			},
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}
