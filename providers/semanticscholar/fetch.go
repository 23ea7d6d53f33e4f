package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/codessneha/SciScope/config"
	"github.com/codessneha/SciScope/models"
)

// Felder, die wir pro Paper von der Graph API anfordern.
const paperFields = "paperId,title,abstract,authors,url,publicationDate,citationCount,fieldsOfStudy,openAccessPdf"

// Fetcher implementiert das Provider-Interface für die Semantic Scholar
// Graph API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt einen neuen Semantic Scholar Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return models.SourceSemanticScholar
}

// Search führt die Suche auf Semantic Scholar aus.
func (f *Fetcher) Search(ctx context.Context, query string, limit int) ([]*models.Paper, error) {
	log := f.Logger.With(zap.String("provider", "semantic_scholar"), zap.String("query", query))
	log.Info("Starte Suche auf Semantic Scholar.")

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("fields", paperFields)

	searchURL := f.Config.SemanticScholarBaseURL + "/paper/search?" + params.Encode()

	var searchResponse SearchResponse
	if err := f.getJSON(ctx, searchURL, &searchResponse); err != nil {
		return nil, err
	}

	papers := make([]*models.Paper, 0, len(searchResponse.Data))
	for i := range searchResponse.Data {
		papers = append(papers, mapPaperToModel(&searchResponse.Data[i]))
	}

	log.Info("Suche auf Semantic Scholar abgeschlossen", zap.Int("found_papers", len(papers)))
	return papers, nil
}

// GetByID holt ein einzelnes Paper anhand seiner Semantic Scholar ID.
func (f *Fetcher) GetByID(ctx context.Context, paperID string) (*models.Paper, error) {
	params := url.Values{}
	params.Set("fields", paperFields)

	requestURL := f.Config.SemanticScholarBaseURL + "/paper/" + url.PathEscape(paperID) + "?" + params.Encode()

	var data PaperData
	err := f.getJSON(ctx, requestURL, &data)
	if err != nil {
		if errNotFound(err) {
			f.Logger.Debug("Semantic Scholar kennt diese ID nicht", zap.String("paper_id", paperID))
			return nil, nil
		}
		return nil, err
	}

	f.Logger.Info("Paper von Semantic Scholar geholt", zap.String("paper_id", paperID))
	return mapPaperToModel(&data), nil
}

// statusError transportiert den HTTP-Status einer fehlgeschlagenen Antwort.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	if e.status == http.StatusTooManyRequests {
		return "semantic scholar rate limit exceeded (status 429)"
	}
	return fmt.Sprintf("semantic scholar request failed with status: %d", e.status)
}

func errNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

// getJSON ruft die Graph API auf und dekodiert die Antwort.
func (f *Fetcher) getJSON(ctx context.Context, requestURL string, out any) error {
	f.Logger.Debug("Rufe Semantic Scholar API auf", zap.String("url", requestURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Config.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", f.Config.SemanticScholarAPIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// mapPaperToModel konvertiert ein Graph-API-Objekt in unser internes
// Paper-Modell.
func mapPaperToModel(data *PaperData) *models.Paper {
	authors := make([]string, 0, len(data.Authors))
	for _, a := range data.Authors {
		authors = append(authors, a.Name)
	}

	id := data.PaperID
	paper := &models.Paper{
		Title:             data.Title,
		Authors:           authors,
		Abstract:          data.Abstract,
		SemanticScholarID: &id,
		URL:               data.URL,
		Categories:        data.FieldsOfStudy,
		CitationCount:     data.CitationCount,
		Source:            models.SourceSemanticScholar,
	}

	if paper.URL == "" {
		paper.URL = "https://www.semanticscholar.org/paper/" + id
	}
	if data.OpenAccessPdf != nil {
		paper.PDFURL = data.OpenAccessPdf.URL
	}
	if t, err := time.Parse("2006-01-02", data.PublicationDate); err == nil {
		paper.PublishedDate = &t
	}

	return paper
}
