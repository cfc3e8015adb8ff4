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

// NewsClient queries a news aggregation API (NewsAPI-compatible) for
// recent coverage of a topic.
type NewsClient struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewNewsClient creates a news discovery client.
func NewNewsClient(endpoint, apiKey string) *NewsClient {
	return &NewsClient{
		name:       "news-search",
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements ExternalClient.
func (c *NewsClient) Name() string { return c.name }

type newsResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
		Author string `json:"author"`
	} `json:"articles"`
}

// Search implements ExternalClient.
func (c *NewsClient) Search(ctx context.Context, query string, limit int) ([]RawItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrUnavailable, c.name, resp.StatusCode)
	}

	var payload newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, c.name, err)
	}
	if payload.Status != "" && payload.Status != "ok" {
		return nil, fmt.Errorf("%w: %s returned status %q", ErrUnavailable, c.name, payload.Status)
	}

	items := make([]RawItem, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if a.URL == "" {
			continue
		}
		items = append(items, RawItem{
			Identifier:  a.URL,
			Title:       a.Title,
			URL:         a.URL,
			Description: a.Description,
			SourceType:  models.SourceTypeNews,
			PublishedAt: a.PublishedAt,
			Metadata: map[string]any{
				"publisher": a.Source.Name,
				"author":    a.Author,
			},
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}
