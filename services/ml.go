package services

import (
	"context"

	"github.com/codessneha/SciScope/inference"
	"github.com/codessneha/SciScope/models"
)

// InferenceClient ist die von den Services konsumierte Sicht auf den
// ML-Service. inference.Client implementiert sie; Tests setzen ein Double ein.
type InferenceClient interface {
	GenerateEmbedding(ctx context.Context, paperID uint, text string) (string, error)
	GenerateAnswer(ctx context.Context, question string, papers []inference.PaperSummary) (*inference.Answer, error)
	ExtractGraph(ctx context.Context, papers []inference.PaperSummary) (*inference.GraphExtraction, error)
	SemanticSearch(ctx context.Context, query string, limit int) ([]inference.SearchHit, error)
}

// summarizeForInference filtert Paper ohne Titel oder Abstract heraus und
// baut die Summaries für den ML-Service. Ein teilweiser Satz ist zulässig;
// erst wenn kein Paper übrig bleibt, schlagen ask/generate fehl.
func summarizeForInference(papers []models.Paper, withCategories bool) []inference.PaperSummary {
	summaries := make([]inference.PaperSummary, 0, len(papers))
	for i := range papers {
		p := &papers[i]
		if !p.HasContent() {
			continue
		}
		summary := inference.PaperSummary{
			ID:       p.ID,
			Title:    p.Title,
			Abstract: p.Abstract,
			Authors:  p.Authors,
		}
		if withCategories {
			summary.Categories = p.Categories
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
