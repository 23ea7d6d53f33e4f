package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/models"
)

// GraphUpdate benennt die bei einem manuellen Update ersetzbaren Felder.
type GraphUpdate struct {
	Nodes    *[]models.GraphNode
	Edges    *[]models.GraphEdge
	Metadata *models.GraphMetadata
}

// GraphService koordiniert die Graph-Extraktion und besitzt die
// KnowledgeGraph-Schreibzugriffe. Pro (User, Session) existiert genau ein
// Graph; eine Regeneration ersetzt Nodes, Edges und Metadata vollständig
// statt zu mergen.
type GraphService struct {
	DB     *gorm.DB
	ML     InferenceClient
	Logger *zap.Logger
}

// NewGraphService erstellt einen neuen GraphService.
func NewGraphService(db *gorm.DB, ml InferenceClient, logger *zap.Logger) *GraphService {
	return &GraphService{DB: db, ML: ml, Logger: logger}
}

// Generate extrahiert aus den gegebenen Papern einen Graphen und schreibt ihn
// per Full-Replace-Upsert unter (requester, sessionID). sessionID 0 steht für
// den nutzerglobalen Graphen. Rennen zwei Generierungen für denselben
// Schlüssel, gewinnt der letzte Schreiber; zwei Datensätze entstehen nie.
func (s *GraphService) Generate(ctx context.Context, requester *models.User, paperIDs []uint, sessionID uint) (*models.KnowledgeGraph, error) {
	if len(paperIDs) == 0 {
		return nil, fmt.Errorf("%w: paper id list is empty", ErrValidation)
	}

	var papers []models.Paper
	if err := s.DB.Where("id IN ?", uniqueIDs(paperIDs)).Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("paper resolve failed: %w", err)
	}
	summaries := summarizeForInference(papers, true)
	if len(summaries) == 0 {
		return nil, ErrNoValidPapers
	}

	extraction, err := s.ML.ExtractGraph(ctx, summaries)
	if err != nil {
		s.Logger.Error("Graph-Extraktion fehlgeschlagen",
			zap.Uint("user_id", requester.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}

	graph, err := s.replaceGraph(requester.ID, sessionID, extraction.Nodes, extraction.Edges, extraction.Metadata)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Knowledge-Graph generiert",
		zap.Uint("graph_id", graph.ID),
		zap.Uint("user_id", requester.ID),
		zap.Int("nodes", len(extraction.Nodes)),
		zap.Int("edges", len(extraction.Edges)))
	return graph, nil
}

// replaceGraph führt den Upsert als Lookup-Insert-Schleife aus: verliert das
// Insert gegen eine parallele Generierung, wird der Lookup einmal wiederholt
// und der bestehende Datensatz überschrieben.
func (s *GraphService) replaceGraph(userID, sessionID uint, nodes []models.GraphNode, edges []models.GraphEdge, metadata models.GraphMetadata) (*models.KnowledgeGraph, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var graph models.KnowledgeGraph
		err := s.DB.
			Where("user_id = ? AND session_id = ?", userID, sessionID).
			First(&graph).Error

		if err == nil {
			graph.Nodes = nodes
			graph.Edges = edges
			graph.Metadata = datatypes.NewJSONType(metadata)
			graph.UpdatedAt = time.Now()
			if err := s.DB.Save(&graph).Error; err != nil {
				return nil, fmt.Errorf("graph overwrite failed: %w", err)
			}
			return &graph, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("graph lookup failed: %w", err)
		}

		graph = models.KnowledgeGraph{
			UserID:    userID,
			SessionID: sessionID,
			Nodes:     nodes,
			Edges:     edges,
			Metadata:  datatypes.NewJSONType(metadata),
		}
		createErr := s.DB.Create(&graph).Error
		if createErr == nil {
			return &graph, nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("graph insert failed: %w", createErr)
		}
		// Insert-Rennen verloren: Lookup wiederholen und überschreiben.
	}
	return nil, fmt.Errorf("%w: knowledge graph for user %d", ErrConflict, userID)
}

// Get liefert einen Graphen nach Ownership-Prüfung.
func (s *GraphService) Get(graphID uint, requester *models.User) (*models.KnowledgeGraph, error) {
	return s.ownedGraph(graphID, requester)
}

// List liefert alle Graphen eines Users, jüngste zuerst.
func (s *GraphService) List(requester *models.User) ([]models.KnowledgeGraph, error) {
	var graphs []models.KnowledgeGraph
	if err := s.DB.
		Where("user_id = ?", requester.ID).
		Order("updated_at desc").
		Find(&graphs).Error; err != nil {
		return nil, fmt.Errorf("graph list failed: %w", err)
	}
	return graphs, nil
}

// Update ersetzt die übergebenen Felder eines Graphen.
func (s *GraphService) Update(graphID uint, requester *models.User, update GraphUpdate) (*models.KnowledgeGraph, error) {
	graph, err := s.ownedGraph(graphID, requester)
	if err != nil {
		return nil, err
	}

	if update.Nodes != nil {
		graph.Nodes = *update.Nodes
	}
	if update.Edges != nil {
		graph.Edges = *update.Edges
	}
	if update.Metadata != nil {
		graph.Metadata = datatypes.NewJSONType(*update.Metadata)
	}

	if err := s.DB.Save(graph).Error; err != nil {
		return nil, fmt.Errorf("graph update failed: %w", err)
	}
	return graph, nil
}

// Delete entfernt einen Graphen.
func (s *GraphService) Delete(graphID uint, requester *models.User) error {
	graph, err := s.ownedGraph(graphID, requester)
	if err != nil {
		return err
	}
	if err := s.DB.Delete(graph).Error; err != nil {
		return fmt.Errorf("graph delete failed: %w", err)
	}
	s.Logger.Info("Knowledge-Graph gelöscht", zap.Uint("graph_id", graphID))
	return nil
}

func (s *GraphService) ownedGraph(graphID uint, requester *models.User) (*models.KnowledgeGraph, error) {
	var graph models.KnowledgeGraph
	if err := s.DB.First(&graph, graphID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: knowledge graph %d", ErrNotFound, graphID)
		}
		return nil, fmt.Errorf("graph lookup failed: %w", err)
	}
	if graph.UserID != requester.ID {
		return nil, fmt.Errorf("%w: knowledge graph %d", ErrUnauthorized, graphID)
	}
	return &graph, nil
}
