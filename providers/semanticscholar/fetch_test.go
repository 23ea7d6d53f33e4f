package semanticscholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codessneha/SciScope/config"
)

func testFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		SemanticScholarBaseURL: server.URL,
		SemanticScholarAPIKey:  "test-key",
		ProviderTimeout:        5 * time.Second,
	}
	return NewFetcher(cfg, zap.NewNop())
}

func TestSearchParsesResults(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "bert", r.URL.Query().Get("query"))

		w.Write([]byte(`{
			"total": 1,
			"data": [{
				"paperId": "df2b0e26d0599ce3e70df8a9da02e51594e0e992",
				"title": "BERT: Pre-training of Deep Bidirectional Transformers",
				"abstract": "We introduce a new language representation model.",
				"url": "",
				"publicationDate": "2019-06-02",
				"citationCount": 81224,
				"fieldsOfStudy": ["Computer Science"],
				"authors": [{"name": "Jacob Devlin"}],
				"openAccessPdf": {"url": "https://example.org/bert.pdf"}
			}]
		}`))
	})

	papers, err := fetcher.Search(context.Background(), "bert", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)

	p := papers[0]
	require.NotNil(t, p.SemanticScholarID)
	assert.Equal(t, "df2b0e26d0599ce3e70df8a9da02e51594e0e992", *p.SemanticScholarID)
	// Leere URL fällt auf die kanonische Paper-Seite zurück.
	assert.Equal(t, "https://www.semanticscholar.org/paper/df2b0e26d0599ce3e70df8a9da02e51594e0e992", p.URL)
	assert.Equal(t, "https://example.org/bert.pdf", p.PDFURL)
	assert.Equal(t, 81224, p.CitationCount)
	assert.Equal(t, []string{"Jacob Devlin"}, []string(p.Authors))
	require.NotNil(t, p.PublishedDate)
	assert.Equal(t, 2019, p.PublishedDate.Year())
}

func TestGetByIDNotFoundReturnsNil(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	paper, err := fetcher.GetByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, paper)
}

func TestGetByIDRateLimited(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := fetcher.GetByID(context.Background(), "some-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestGetByIDParsesPaper(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/abc123", r.URL.Path)
		w.Write([]byte(`{
			"paperId": "abc123",
			"title": "Some Paper",
			"abstract": "An abstract.",
			"url": "https://www.semanticscholar.org/paper/abc123",
			"authors": []
		}`))
	})

	paper, err := fetcher.GetByID(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "Some Paper", paper.Title)
	assert.Nil(t, paper.PublishedDate)
}
