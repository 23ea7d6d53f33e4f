package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/models"
)

// MessageView ist eine Message mit für die Anzeige aufgelösten
// Paper-Referenzen.
type MessageView struct {
	models.Message
	RelatedPapers []models.Paper `json:"related_papers"`
	CitedPapers   []models.Paper `json:"cited_papers"`
}

// QAService orchestriert die Frage/Antwort-Runden einer Session: Paper
// auflösen, RAG-Antwort vom ML-Service holen, Message mit Citations und
// Laufzeit persistieren und die Session-Aktualität vorrücken.
type QAService struct {
	DB       *gorm.DB
	ML       InferenceClient
	Sessions *SessionService
	Logger   *zap.Logger
}

// NewQAService erstellt einen neuen QAService.
func NewQAService(db *gorm.DB, ml InferenceClient, sessions *SessionService, logger *zap.Logger) *QAService {
	return &QAService{DB: db, ML: ml, Sessions: sessions, Logger: logger}
}

// Ask beantwortet eine Frage über die angegebenen Paper. Schlägt der
// ML-Aufruf fehl, wird nichts persistiert und die Session bleibt unberührt.
// Die gemessene Laufzeit umfasst nur den ML-Aufruf selbst.
func (s *QAService) Ask(ctx context.Context, sessionID uint, requester *models.User, question string, paperIDs []uint) (*MessageView, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrValidation)
	}
	if len(paperIDs) == 0 {
		return nil, fmt.Errorf("%w: paper id list is empty", ErrValidation)
	}

	session, err := s.Sessions.ownedSession(sessionID, requester)
	if err != nil {
		return nil, err
	}

	papers, err := s.resolvePapers(paperIDs)
	if err != nil {
		return nil, err
	}
	summaries := summarizeForInference(papers, false)
	if len(summaries) == 0 {
		return nil, ErrNoValidPapers
	}

	start := time.Now()
	answer, err := s.ML.GenerateAnswer(ctx, question, summaries)
	elapsed := time.Since(start)
	if err != nil {
		s.Logger.Error("RAG-Antwort fehlgeschlagen",
			zap.Uint("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}

	message := models.Message{
		SessionID:        session.ID,
		Question:         question,
		Answer:           answer.Answer,
		Citations:        answer.Citations,
		RelatedPaperIDs:  paperIDs,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
	if err := s.DB.Create(&message).Error; err != nil {
		return nil, fmt.Errorf("message create failed: %w", err)
	}

	s.Sessions.touch(session.ID)

	s.Logger.Info("Frage beantwortet",
		zap.Uint("session_id", session.ID),
		zap.Uint("message_id", message.ID),
		zap.Duration("processing_time", elapsed))

	return s.resolveMessage(&message, papers)
}

// resolvePapers materialisiert die angefragten Paper-IDs; unbekannte IDs
// fallen still weg. Bleibt nichts übrig, gilt der Satz als ungültig.
func (s *QAService) resolvePapers(paperIDs []uint) ([]models.Paper, error) {
	var papers []models.Paper
	if err := s.DB.Where("id IN ?", uniqueIDs(paperIDs)).Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("paper resolve failed: %w", err)
	}
	if len(papers) == 0 {
		return nil, ErrNoValidPapers
	}
	return papers, nil
}

// resolveMessage hängt die referenzierten Paper-Datensätze an die Message.
func (s *QAService) resolveMessage(message *models.Message, related []models.Paper) (*MessageView, error) {
	view := &MessageView{Message: *message, RelatedPapers: related}

	citedIDs := make([]uint, 0, len(message.Citations))
	for _, c := range message.Citations {
		citedIDs = append(citedIDs, c.PaperID)
	}
	if len(citedIDs) > 0 {
		if err := s.DB.Where("id IN ?", uniqueIDs(citedIDs)).Find(&view.CitedPapers).Error; err != nil {
			return nil, fmt.Errorf("citation resolve failed: %w", err)
		}
	}
	return view, nil
}
