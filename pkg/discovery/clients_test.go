package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbforge/curator/pkg/models"
)

func TestWebSearchClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go concurrency", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "Go Blog", "url": "https://go.dev/blog/concurrency", "content": "Pipelines and cancellation", "publishedDate": "2024-03-01", "engine": "duckduckgo"},
				{"title": "No URL", "content": "dropped"},
				{"title": "Effective Go", "url": "https://go.dev/doc/effective_go", "content": "Concurrency section", "engine": "google"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewWebSearchClient(srv.URL, "secret")
	items, err := client.Search(context.Background(), "go concurrency", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://go.dev/blog/concurrency", items[0].Identifier)
	assert.Equal(t, "Go Blog", items[0].Title)
	assert.Equal(t, "Pipelines and cancellation", items[0].Description)
	assert.Equal(t, models.SourceTypeWeb, items[0].SourceType)
	assert.Equal(t, "2024-03-01", items[0].PublishedAt)
	assert.Equal(t, "duckduckgo", items[0].Metadata["engine"])
}

func TestWebSearchClientRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [
			{"title": "a", "url": "https://a.example"},
			{"title": "b", "url": "https://b.example"},
			{"title": "c", "url": "https://c.example"}
		]}`))
	}))
	defer srv.Close()

	client := NewWebSearchClient(srv.URL, "")
	items, err := client.Search(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestWebSearchClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewWebSearchClient(srv.URL, "")
	_, err := client.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCrossrefClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raft consensus", r.URL.Query().Get("query"))
		assert.Equal(t, "3", r.URL.Query().Get("rows"))
		assert.Equal(t, "ops@kbforge.dev", r.URL.Query().Get("mailto"))
		_, _ = w.Write([]byte(`{
			"message": {
				"items": [
					{
						"DOI": "10.1000/raft",
						"title": ["In Search of an Understandable Consensus Algorithm"],
						"abstract": "<jats:p>Raft is a consensus algorithm</jats:p>",
						"URL": "https://doi.org/10.1000/raft",
						"type": "proceedings-article",
						"author": [{"given": "Diego", "family": "Ongaro"}],
						"created": {"date-time": "2014-06-19T00:00:00Z"},
						"container-title": ["USENIX ATC"]
					},
					{"title": ["no doi, dropped"]}
				]
			}
		}`))
	}))
	defer srv.Close()

	client := NewCrossrefClient(srv.URL, "ops@kbforge.dev")
	items, err := client.Search(context.Background(), "raft consensus", 3)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "doi:10.1000/raft", items[0].Identifier)
	assert.Equal(t, "In Search of an Understandable Consensus Algorithm", items[0].Title)
	assert.Equal(t, "Raft is a consensus algorithm", items[0].Description)
	assert.Equal(t, models.SourceTypeAcademic, items[0].SourceType)
	assert.Equal(t, "2014-06-19T00:00:00Z", items[0].PublishedAt)
	assert.Equal(t, []string{"Diego Ongaro"}, items[0].Metadata["authors"])
	assert.Equal(t, "USENIX ATC", items[0].Metadata["venue"])
}

func TestCrossrefClientDefaultEndpoint(t *testing.T) {
	client := NewCrossrefClient("", "")
	assert.Equal(t, "https://api.crossref.org/works", client.endpoint)
}

func TestNewsClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chip shortage", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "newskey", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{
					"title": "Fabs expand capacity",
					"url": "https://news.example/fabs",
					"description": "New fabs coming online",
					"publishedAt": "2026-08-20T10:00:00Z",
					"source": {"name": "Example Wire"},
					"author": "Jordan Lee"
				}
			]
		}`))
	}))
	defer srv.Close()

	client := NewNewsClient(srv.URL, "newskey")
	items, err := client.Search(context.Background(), "chip shortage", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "https://news.example/fabs", items[0].Identifier)
	assert.Equal(t, models.SourceTypeNews, items[0].SourceType)
	assert.Equal(t, "Example Wire", items[0].Metadata["publisher"])
	assert.Equal(t, "Jordan Lee", items[0].Metadata["author"])
}

func TestNewsClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "articles": []}`))
	}))
	defer srv.Close()

	client := NewNewsClient(srv.URL, "")
	_, err := client.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestContentHashNormalizes(t *testing.T) {
	base := ContentHash("https://example.com/article")
	assert.Equal(t, base, ContentHash("HTTPS://EXAMPLE.COM/Article"))
	assert.Equal(t, base, ContentHash("  https://example.com/article/  "))
	assert.NotEqual(t, base, ContentHash("https://example.com/other"))
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	items := []RawItem{
		{Identifier: "https://example.com/a", Title: "first"},
		{Identifier: "https://example.com/b", Title: "second"},
		{Identifier: "https://EXAMPLE.com/a/", Title: "duplicate of first"},
	}

	out := Dedupe(items)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "second", out[1].Title)
}
