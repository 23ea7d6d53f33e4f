package providers

import (
	"context"

	"github.com/codessneha/SciScope/models"
)

// Provider ist das Interface, das jeder Katalog-Adapter (z.B. arXiv,
// Semantic Scholar) implementieren muss. Die Adapter liefern bereits in das
// kanonische Paper-Modell normalisierte Ergebnisse inklusive stabiler
// externer ID.
type Provider interface {
	// Search führt eine Suche für eine Query durch und gibt höchstens limit
	// standardisierte Paper zurück.
	Search(ctx context.Context, query string, limit int) ([]*models.Paper, error)

	// GetByID holt ein einzelnes Paper anhand seiner quellen-spezifischen ID.
	// Kennt die Quelle die ID nicht, ist das Ergebnis (nil, nil).
	GetByID(ctx context.Context, externalID string) (*models.Paper, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "arxiv").
	Name() string
}
