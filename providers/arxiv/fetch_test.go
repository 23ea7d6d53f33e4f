package arxiv

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

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All
  You Need</title>
    <summary>The dominant sequence transduction models are based on complex
  recurrent or convolutional neural networks.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <category term="cs.CL"/>
    <category term="cs.LG"/>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func testFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		ArxivBaseURL:    server.URL,
		ProviderTimeout: 5 * time.Second,
	}
	return NewFetcher(cfg, zap.NewNop())
}

func TestSearchParsesFeed(t *testing.T) {
	var gotQuery string
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Write([]byte(sampleFeed))
	})

	papers, err := fetcher.Search(context.Background(), "transformer", 10)
	require.NoError(t, err)
	assert.Equal(t, "all:transformer", gotQuery)

	require.Len(t, papers, 1)
	p := papers[0]
	// Zeilenumbrüche aus dem Feed sind entfernt.
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Contains(t, p.Abstract, "sequence transduction models")
	require.NotNil(t, p.ArxivID)
	assert.Equal(t, "1706.03762v7", *p.ArxivID)
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7.pdf", p.PDFURL)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, []string(p.Authors))
	assert.Equal(t, []string{"cs.CL", "cs.LG"}, []string(p.Categories))
	require.NotNil(t, p.PublishedDate)
	assert.Equal(t, 2017, p.PublishedDate.Year())
}

func TestGetByIDUnknownIDReturnsNil(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFeed))
	})

	paper, err := fetcher.GetByID(context.Background(), "0000.00000")
	require.NoError(t, err)
	assert.Nil(t, paper)
}

func TestGetByIDParsesEntry(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1706.03762", r.URL.Query().Get("id_list"))
		w.Write([]byte(sampleFeed))
	})

	paper, err := fetcher.GetByID(context.Background(), "1706.03762")
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "Attention Is All You Need", paper.Title)
}

func TestFetchFailsOnBadStatus(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := fetcher.Search(context.Background(), "anything", 10)
	assert.Error(t, err)
}
