package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kbforge/curator/pkg/models"
)

// CrossrefClient queries the Crossref works API for academic papers.
type CrossrefClient struct {
	name       string
	endpoint   string
	mailto     string
	httpClient *http.Client
}

// NewCrossrefClient creates an academic discovery client. mailto is
// included in requests per Crossref's polite-pool guidance; it may be
// empty.
func NewCrossrefClient(endpoint, mailto string) *CrossrefClient {
	if endpoint == "" {
		endpoint = "https://api.crossref.org/works"
	}
	return &CrossrefClient{
		name:       "academic-search",
		endpoint:   endpoint,
		mailto:     mailto,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements ExternalClient.
func (c *CrossrefClient) Name() string { return c.name }

type crossrefResponse struct {
	Message struct {
		Items []struct {
			DOI      string   `json:"DOI"`
			Title    []string `json:"title"`
			Abstract string   `json:"abstract"`
			URL      string   `json:"URL"`
			Type     string   `json:"type"`
			Author   []struct {
				Given  string `json:"given"`
				Family string `json:"family"`
			} `json:"author"`
			Created struct {
				DateTime string `json:"date-time"`
			} `json:"created"`
			ContainerTitle []string `json:"container-title"`
		} `json:"items"`
	} `json:"message"`
}

// Search implements ExternalClient.
func (c *CrossrefClient) Search(ctx context.Context, query string, limit int) ([]RawItem, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(limit))
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrUnavailable, c.name, resp.StatusCode)
	}

	var payload crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, c.name, err)
	}

	items := make([]RawItem, 0, len(payload.Message.Items))
	for _, it := range payload.Message.Items {
		if it.DOI == "" {
			continue
		}
		title := ""
		if len(it.Title) > 0 {
			title = it.Title[0]
		}
		authors := make([]string, 0, len(it.Author))
		for _, a := range it.Author {
			authors = append(authors, strings.TrimSpace(a.Given+" "+a.Family))
		}
		venue := ""
		if len(it.ContainerTitle) > 0 {
			venue = it.ContainerTitle[0]
		}
		items = append(items, RawItem{
			Identifier:  "doi:" + it.DOI,
			Title:       title,
			URL:         it.URL,
			Description: stripJATS(it.Abstract),
			SourceType:  models.SourceTypeAcademic,
			PublishedAt: it.Created.DateTime,
			Metadata: map[string]any{
				"doi":     it.DOI,
				"type":    it.Type,
				"authors": authors,
				"venue":   venue,
			},
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// stripJATS removes the JATS XML tags Crossref embeds in abstracts.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	var b strings.Builder
	inTag := false
	for _, r := range abstract {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
