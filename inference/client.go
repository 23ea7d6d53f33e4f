package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/codessneha/SciScope/config"
	"github.com/codessneha/SciScope/models"
)

// PaperSummary ist die für den ML-Service reduzierte Sicht auf ein Paper.
type PaperSummary struct {
	ID         uint
	Title      string
	Abstract   string
	Authors    []string
	Categories []string
}

// Answer ist das validierte Ergebnis einer RAG-Antwort.
type Answer struct {
	Answer    string
	Citations []models.Citation
}

// GraphExtraction ist das validierte Ergebnis einer Graph-Extraktion.
type GraphExtraction struct {
	Nodes    []models.GraphNode
	Edges    []models.GraphEdge
	Metadata models.GraphMetadata
}

// SearchHit ist ein Treffer der semantischen Suche.
type SearchHit struct {
	PaperID    uint    `json:"paper_id"`
	Title      string  `json:"title"`
	Abstract   string  `json:"abstract"`
	Similarity float64 `json:"similarity"`
}

// Client kapselt die HTTP-Aufrufe an den ML-Service (Embeddings,
// RAG-Antworten, Graph-Extraktion, semantische Suche). Der ML-Service spricht
// camelCase und String-IDs; die Übersetzung in unsere Modelle passiert hier,
// unvollständige Antworten verlassen den Client nie.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewClient erstellt einen neuen ML-Service-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.MLServiceTimeout},
	}
}

// Wire-Formate des ML-Service.
type wirePaper struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Abstract   string   `json:"abstract"`
	Authors    []string `json:"authors"`
	Categories []string `json:"categories,omitempty"`
}

type wireCitation struct {
	PaperID   string  `json:"paperId"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

type wireNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type"`
	Data  map[string]any `json:"data"`
}

type wireEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

type wireMetadata struct {
	PaperCount   int `json:"paperCount"`
	AuthorCount  int `json:"authorCount"`
	ConceptCount int `json:"conceptCount"`
}

// GenerateEmbedding erzeugt ein Embedding für den Abstract eines Papers und
// gibt die Embedding-ID zurück.
func (c *Client) GenerateEmbedding(ctx context.Context, paperID uint, text string) (string, error) {
	var resp struct {
		EmbeddingID string `json:"embeddingId"`
	}
	req := map[string]any{
		"paperId": strconv.FormatUint(uint64(paperID), 10),
		"text":    text,
	}
	if err := c.postJSON(ctx, "/embeddings/generate", req, &resp); err != nil {
		return "", err
	}
	if resp.EmbeddingID == "" {
		return "", fmt.Errorf("ml service returned no embeddingId")
	}

	c.Logger.Info("Embedding erzeugt", zap.Uint("paper_id", paperID), zap.String("embedding_id", resp.EmbeddingID))
	return resp.EmbeddingID, nil
}

// GenerateAnswer beantwortet eine Frage über die gegebenen Paper per RAG.
func (c *Client) GenerateAnswer(ctx context.Context, question string, papers []PaperSummary) (*Answer, error) {
	var resp struct {
		Answer    string         `json:"answer"`
		Citations []wireCitation `json:"citations"`
	}
	req := map[string]any{
		"question": question,
		"papers":   toWirePapers(papers, false),
	}
	if err := c.postJSON(ctx, "/rag/generate", req, &resp); err != nil {
		return nil, err
	}
	if resp.Answer == "" {
		return nil, fmt.Errorf("ml service returned an empty answer")
	}

	answer := &Answer{Answer: resp.Answer}
	for _, cit := range resp.Citations {
		paperID, err := strconv.ParseUint(cit.PaperID, 10, 64)
		if err != nil || cit.Text == "" {
			c.Logger.Warn("Überspringe unvollständige Citation",
				zap.String("paper_id", cit.PaperID))
			continue
		}
		answer.Citations = append(answer.Citations, models.Citation{
			PaperID:   uint(paperID),
			Text:      cit.Text,
			Relevance: clamp01(cit.Relevance),
		})
	}

	c.Logger.Info("RAG-Antwort erzeugt",
		zap.Int("papers", len(papers)),
		zap.Int("citations", len(answer.Citations)))
	return answer, nil
}

// ExtractGraph extrahiert Entitäten und Beziehungen aus den gegebenen Papern.
func (c *Client) ExtractGraph(ctx context.Context, papers []PaperSummary) (*GraphExtraction, error) {
	var resp struct {
		Nodes    []wireNode   `json:"nodes"`
		Edges    []wireEdge   `json:"edges"`
		Metadata wireMetadata `json:"metadata"`
	}
	req := map[string]any{
		"papers": toWirePapers(papers, true),
	}
	if err := c.postJSON(ctx, "/graph/extract", req, &resp); err != nil {
		return nil, err
	}
	if resp.Nodes == nil {
		return nil, fmt.Errorf("ml service returned no graph nodes")
	}

	extraction := &GraphExtraction{
		Metadata: models.GraphMetadata{
			PaperCount:   resp.Metadata.PaperCount,
			AuthorCount:  resp.Metadata.AuthorCount,
			ConceptCount: resp.Metadata.ConceptCount,
		},
	}
	for _, n := range resp.Nodes {
		if n.ID == "" {
			c.Logger.Warn("Überspringe Knoten ohne ID", zap.String("label", n.Label))
			continue
		}
		extraction.Nodes = append(extraction.Nodes, models.GraphNode{
			ID: n.ID, Label: n.Label, Type: n.Type, Data: n.Data,
		})
	}
	for _, e := range resp.Edges {
		if e.Source == "" || e.Target == "" {
			c.Logger.Warn("Überspringe Kante ohne Endpunkte", zap.String("type", e.Type))
			continue
		}
		weight := e.Weight
		if weight == 0 {
			weight = 1
		}
		extraction.Edges = append(extraction.Edges, models.GraphEdge{
			Source: e.Source, Target: e.Target, Type: e.Type, Weight: weight,
		})
	}

	c.Logger.Info("Graph extrahiert",
		zap.Int("nodes", len(extraction.Nodes)),
		zap.Int("edges", len(extraction.Edges)))
	return extraction, nil
}

// SemanticSearch sucht über die Embeddings des ML-Service.
func (c *Client) SemanticSearch(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	var resp struct {
		Results []struct {
			PaperID    string  `json:"paperId"`
			Title      string  `json:"title"`
			Abstract   string  `json:"abstract"`
			Similarity float64 `json:"similarity"`
		} `json:"results"`
	}
	req := map[string]any{"query": query, "limit": limit}
	if err := c.postJSON(ctx, "/search/semantic", req, &resp); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		paperID, err := strconv.ParseUint(r.PaperID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, SearchHit{
			PaperID:    uint(paperID),
			Title:      r.Title,
			Abstract:   r.Abstract,
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}

// postJSON schickt einen JSON-Request an den ML-Service und dekodiert die
// Antwort.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.MLServiceURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service request %s failed with status: %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ml service antwort konnte nicht dekodiert werden: %w", err)
	}
	return nil
}

func toWirePapers(papers []PaperSummary, withCategories bool) []wirePaper {
	wire := make([]wirePaper, 0, len(papers))
	for _, p := range papers {
		wp := wirePaper{
			ID:       strconv.FormatUint(uint64(p.ID), 10),
			Title:    p.Title,
			Abstract: p.Abstract,
			Authors:  p.Authors,
		}
		if wp.Authors == nil {
			wp.Authors = []string{}
		}
		if withCategories {
			wp.Categories = p.Categories
		}
		wire = append(wire, wp)
	}
	return wire
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
