package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codessneha/SciScope/config"
	"github.com/codessneha/SciScope/models"
)

// Fetcher implementiert das Provider-Interface für die arXiv-API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt einen neuen arXiv-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return models.SourceArxiv
}

// Search führt eine Volltextsuche auf arXiv aus.
func (f *Fetcher) Search(ctx context.Context, query string, limit int) ([]*models.Paper, error) {
	log := f.Logger.With(zap.String("provider", "arxiv"), zap.String("query", query))
	log.Info("Starte Suche auf arXiv.")

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", fmt.Sprintf("%d", limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	feed, err := f.fetchFeed(ctx, params)
	if err != nil {
		return nil, err
	}

	papers := make([]*models.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		papers = append(papers, mapEntryToModel(&feed.Entries[i]))
	}

	log.Info("Suche auf arXiv abgeschlossen", zap.Int("found_papers", len(papers)))
	return papers, nil
}

// GetByID holt ein einzelnes Paper anhand seiner arXiv-ID.
func (f *Fetcher) GetByID(ctx context.Context, arxivID string) (*models.Paper, error) {
	params := url.Values{}
	params.Set("id_list", arxivID)

	feed, err := f.fetchFeed(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 {
		f.Logger.Debug("arXiv kennt diese ID nicht", zap.String("arxiv_id", arxivID))
		return nil, nil
	}

	// Leere Einträge kommen vor, wenn die ID syntaktisch gültig, aber
	// unbekannt ist.
	entry := &feed.Entries[0]
	if strings.TrimSpace(entry.Title) == "" {
		return nil, nil
	}

	f.Logger.Info("Paper von arXiv geholt", zap.String("arxiv_id", arxivID))
	return mapEntryToModel(entry), nil
}

// fetchFeed ruft die arXiv-API auf und dekodiert den Atom-Feed.
func (f *Fetcher) fetchFeed(ctx context.Context, params url.Values) (*Feed, error) {
	requestURL := f.Config.ArxivBaseURL + "?" + params.Encode()
	f.Logger.Debug("Rufe arXiv API auf", zap.String("url", requestURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv request failed with status: %d", resp.StatusCode)
	}

	var feed Feed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv feed konnte nicht dekodiert werden: %w", err)
	}
	return &feed, nil
}

// mapEntryToModel konvertiert einen Atom-Eintrag in unser internes Paper-Modell.
func mapEntryToModel(entry *Entry) *models.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		categories = append(categories, c.Term)
	}

	// Die arXiv-ID steckt im id-Feld hinter "/abs/".
	arxivID := entry.ID
	if idx := strings.Index(entry.ID, "/abs/"); idx >= 0 {
		arxivID = entry.ID[idx+len("/abs/"):]
	}

	paper := &models.Paper{
		Title:      collapseWhitespace(entry.Title),
		Authors:    authors,
		Abstract:   collapseWhitespace(entry.Summary),
		ArxivID:    &arxivID,
		URL:        entry.ID,
		PDFURL:     strings.Replace(entry.ID, "/abs/", "/pdf/", 1) + ".pdf",
		Categories: categories,
		Source:     models.SourceArxiv,
	}

	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		paper.PublishedDate = &t
	}

	return paper
}

// collapseWhitespace ersetzt Zeilenumbrüche und Mehrfach-Leerzeichen, wie sie
// der Atom-Feed in Titel und Abstract einstreut.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
