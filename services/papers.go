package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/inference"
	"github.com/codessneha/SciScope/models"
	"github.com/codessneha/SciScope/providers"
)

// PaperService besitzt alle Paper-Schreibzugriffe: Dedup-Upsert über die
// externen IDs, Katalog-Fetches und die CRUD-Operationen mit
// Ownership-Prüfung.
type PaperService struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Providers map[string]providers.Provider
	ML        InferenceClient
	Enricher  *EnrichmentWorker
}

// NewPaperService erstellt einen neuen PaperService.
func NewPaperService(db *gorm.DB, logger *zap.Logger, provs []providers.Provider, ml InferenceClient, enricher *EnrichmentWorker) *PaperService {
	byName := make(map[string]providers.Provider, len(provs))
	for _, p := range provs {
		byName[p.Name()] = p
	}
	return &PaperService{
		DB:        db,
		Logger:    logger,
		Providers: byName,
		ML:        ml,
		Enricher:  enricher,
	}
}

// Upsert legt ein normalisiertes Paper an oder gibt den bestehenden Datensatz
// unverändert zurück (idempotent, Felder werden nie überschrieben). Verlieren
// wir das Insert-Rennen gegen einen parallelen Upsert derselben externen ID,
// fängt der Service die Uniqueness-Verletzung ab und wiederholt den Lookup
// genau einmal. Der zweite Rückgabewert meldet, ob neu angelegt wurde.
func (s *PaperService) Upsert(candidate *models.Paper, requester *models.User) (*models.Paper, bool, error) {
	if candidate.ArxivID == nil && candidate.SemanticScholarID == nil {
		return nil, false, fmt.Errorf("%w: paper needs an arxiv or semantic scholar id", ErrValidation)
	}

	existing, err := s.lookupByExternalIDs(candidate)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.Logger.Debug("Paper bereits vorhanden", zap.Uint("paper_id", existing.ID))
		return existing, false, nil
	}

	candidate.AddedBy = &requester.ID
	createErr := s.DB.Create(candidate).Error
	if createErr == nil {
		s.Logger.Info("Neues Paper angelegt",
			zap.Uint("paper_id", candidate.ID),
			zap.String("title", candidate.Title))
		if s.Enricher != nil {
			s.Enricher.Enqueue(candidate.ID, candidate.Abstract)
		}
		return candidate, true, nil
	}

	if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("paper insert failed: %w", createErr)
	}

	// Insert-Rennen verloren: der Gewinner hat den Datensatz angelegt.
	existing, err = s.lookupByExternalIDs(candidate)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("%w: duplicate paper vanished during retry", ErrConflict)
	}
	s.Logger.Debug("Upsert-Rennen verloren, bestehendes Paper übernommen",
		zap.Uint("paper_id", existing.ID))
	return existing, false, nil
}

// FetchByExternalID prüft zuerst den lokalen Bestand und holt das Paper sonst
// beim passenden Katalog-Adapter, gefolgt von einem Upsert.
func (s *PaperService) FetchByExternalID(ctx context.Context, source, externalID string, requester *models.User) (*models.Paper, bool, error) {
	column, ok := externalIDColumn(source)
	if !ok {
		return nil, false, fmt.Errorf("%w: unknown source %q", ErrValidation, source)
	}

	var existing models.Paper
	err := s.DB.Where(column+" = ?", externalID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("paper lookup failed: %w", err)
	}

	provider, ok := s.Providers[source]
	if !ok {
		return nil, false, fmt.Errorf("%w: no provider configured for %q", ErrValidation, source)
	}

	candidate, err := provider.GetByID(ctx, externalID)
	if err != nil {
		s.Logger.Error("Katalog-Fetch fehlgeschlagen",
			zap.String("source", source),
			zap.String("external_id", externalID),
			zap.Error(err))
		return nil, false, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if candidate == nil {
		return nil, false, fmt.Errorf("%w: %s has no paper %q", ErrNotFound, source, externalID)
	}

	return s.Upsert(candidate, requester)
}

// SearchExternal fächert eine Suche an den gewählten Katalog auf. Die
// Ergebnisse werden nicht gespeichert; das passiert erst bei Upsert.
func (s *PaperService) SearchExternal(ctx context.Context, source, query string, limit int) ([]*models.Paper, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrValidation)
	}
	provider, ok := s.Providers[source]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrValidation, source)
	}

	papers, err := provider.Search(ctx, query, limit)
	if err != nil {
		s.Logger.Error("Katalog-Suche fehlgeschlagen",
			zap.String("source", source), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return papers, nil
}

// SemanticSearch sucht über die Embeddings des ML-Service.
func (s *PaperService) SemanticSearch(ctx context.Context, query string, limit int) ([]inference.SearchHit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrValidation)
	}
	hits, err := s.ML.SemanticSearch(ctx, query, limit)
	if err != nil {
		s.Logger.Error("Semantische Suche fehlgeschlagen", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}
	return hits, nil
}

// Get liefert ein einzelnes Paper.
func (s *PaperService) Get(paperID uint) (*models.Paper, error) {
	var paper models.Paper
	if err := s.DB.First(&paper, paperID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: paper %d", ErrNotFound, paperID)
		}
		return nil, fmt.Errorf("paper lookup failed: %w", err)
	}
	return &paper, nil
}

// List liefert Paper seitenweise, neueste zuerst.
func (s *PaperService) List(page, limit int) ([]models.Paper, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int64
	if err := s.DB.Model(&models.Paper{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("paper count failed: %w", err)
	}

	var papers []models.Paper
	if err := s.DB.
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&papers).Error; err != nil {
		return nil, 0, fmt.Errorf("paper list failed: %w", err)
	}
	return papers, total, nil
}

// Update ändert ein Paper; erlaubt für den Besitzer oder einen Admin.
func (s *PaperService) Update(paperID uint, requester *models.User, updates map[string]any) (*models.Paper, error) {
	paper, err := s.Get(paperID)
	if err != nil {
		return nil, err
	}
	if !canModifyPaper(paper, requester) {
		return nil, fmt.Errorf("%w: paper %d", ErrUnauthorized, paperID)
	}

	if err := s.DB.Model(paper).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: external id already taken", ErrConflict)
		}
		return nil, fmt.Errorf("paper update failed: %w", err)
	}
	return paper, nil
}

// Delete entfernt ein Paper; erlaubt für den Besitzer oder einen Admin.
func (s *PaperService) Delete(paperID uint, requester *models.User) error {
	paper, err := s.Get(paperID)
	if err != nil {
		return err
	}
	if !canModifyPaper(paper, requester) {
		return fmt.Errorf("%w: paper %d", ErrUnauthorized, paperID)
	}

	if err := s.DB.Delete(paper).Error; err != nil {
		return fmt.Errorf("paper delete failed: %w", err)
	}
	s.Logger.Info("Paper gelöscht", zap.Uint("paper_id", paperID), zap.String("title", paper.Title))
	return nil
}

// TriggerEnrichment plant die Embedding-Erzeugung ein, ohne zu blockieren.
func (s *PaperService) TriggerEnrichment(paperID uint, abstract string) {
	if s.Enricher != nil {
		s.Enricher.Enqueue(paperID, abstract)
	}
}

func (s *PaperService) lookupByExternalIDs(candidate *models.Paper) (*models.Paper, error) {
	// Trägt der Kandidat beide IDs, muss der Lookup beide prüfen: jede der
	// beiden kann bereits vergeben sein und das Insert scheitern lassen.
	query := s.DB
	switch {
	case candidate.ArxivID != nil && candidate.SemanticScholarID != nil:
		query = query.Where("arxiv_id = ? OR semantic_scholar_id = ?",
			*candidate.ArxivID, *candidate.SemanticScholarID)
	case candidate.ArxivID != nil:
		query = query.Where("arxiv_id = ?", *candidate.ArxivID)
	case candidate.SemanticScholarID != nil:
		query = query.Where("semantic_scholar_id = ?", *candidate.SemanticScholarID)
	}

	var existing models.Paper
	err := query.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("paper lookup failed: %w", err)
	}
	return &existing, nil
}

func canModifyPaper(paper *models.Paper, requester *models.User) bool {
	if requester.IsAdmin() {
		return true
	}
	return paper.AddedBy != nil && *paper.AddedBy == requester.ID
}

func externalIDColumn(source string) (string, bool) {
	switch source {
	case models.SourceArxiv:
		return "arxiv_id", true
	case models.SourceSemanticScholar:
		return "semantic_scholar_id", true
	default:
		return "", false
	}
}
