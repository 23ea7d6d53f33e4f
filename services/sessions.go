package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/models"
)

// SessionService besitzt den ChatSession-Lebenszyklus: Anlegen, Lesen und
// Ändern sind strikt auf den besitzenden User beschränkt. Eine Session, die
// existiert, aber einem anderen User gehört, meldet Unauthorized und nie
// NotFound.
type SessionService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewSessionService erstellt einen neuen SessionService.
func NewSessionService(db *gorm.DB, logger *zap.Logger) *SessionService {
	return &SessionService{DB: db, Logger: logger}
}

// Create legt eine neue Session an. paperIDs werden ohne Existenzprüfung
// übernommen; eine ungültige ID fällt erst beim Lesen leer aus.
func (s *SessionService) Create(owner *models.User, title string, paperIDs []uint) (*models.ChatSession, error) {
	if title == "" {
		title = models.DefaultSessionTitle
	}

	session := models.ChatSession{
		UserID:   owner.ID,
		Title:    title,
		PaperIDs: uniqueIDs(paperIDs),
		IsActive: true,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("session create failed: %w", err)
	}

	s.Logger.Info("Chat-Session angelegt",
		zap.Uint("session_id", session.ID),
		zap.Uint("user_id", owner.ID))
	return &session, nil
}

// List liefert alle Sessions eines Users, jüngste Aktivität zuerst.
func (s *SessionService) List(owner *models.User) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	if err := s.DB.
		Where("user_id = ?", owner.ID).
		Order("updated_at desc").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session list failed: %w", err)
	}
	return sessions, nil
}

// Get liefert eine Session nach Ownership-Prüfung.
func (s *SessionService) Get(sessionID uint, requester *models.User) (*models.ChatSession, error) {
	return s.ownedSession(sessionID, requester)
}

// Update ändert Titel bzw. Aktiv-Flag einer Session.
func (s *SessionService) Update(sessionID uint, requester *models.User, title *string, isActive *bool) (*models.ChatSession, error) {
	session, err := s.ownedSession(sessionID, requester)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if title != nil {
		if *title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		updates["title"] = *title
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}
	if len(updates) == 0 {
		return session, nil
	}

	if err := s.DB.Model(session).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("session update failed: %w", err)
	}
	return session, nil
}

// Delete entfernt eine Session und kaskadiert auf alle ihre Messages. Beides
// passiert in einer Transaktion, damit nie verwaiste Messages zurückbleiben.
func (s *SessionService) Delete(sessionID uint, requester *models.User) error {
	session, err := s.ownedSession(sessionID, requester)
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", session.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(session).Error
	})
	if err != nil {
		return fmt.Errorf("session delete failed: %w", err)
	}

	s.Logger.Info("Chat-Session gelöscht", zap.Uint("session_id", sessionID))
	return nil
}

// AddPapers vereinigt paperIDs mit der bestehenden Paper-Menge der Session
// (Duplikate fallen weg) und rückt updatedAt vor.
func (s *SessionService) AddPapers(sessionID uint, requester *models.User, paperIDs []uint) (*models.ChatSession, error) {
	if len(paperIDs) == 0 {
		return nil, fmt.Errorf("%w: paper id list is empty", ErrValidation)
	}

	session, err := s.ownedSession(sessionID, requester)
	if err != nil {
		return nil, err
	}

	merged := uniqueIDs(append(append([]uint{}, session.PaperIDs...), paperIDs...))
	session.PaperIDs = merged
	session.UpdatedAt = time.Now()

	if err := s.DB.Save(session).Error; err != nil {
		return nil, fmt.Errorf("session paper update failed: %w", err)
	}

	s.Logger.Info("Paper zur Session hinzugefügt",
		zap.Uint("session_id", sessionID),
		zap.Int("paper_count", len(merged)))
	return session, nil
}

// Messages liefert den Verlauf einer Session in Erstellungsreihenfolge.
func (s *SessionService) Messages(sessionID uint, requester *models.User) ([]models.Message, error) {
	if _, err := s.ownedSession(sessionID, requester); err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := s.DB.
		Where("session_id = ?", sessionID).
		Order("created_at asc, id asc").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("message list failed: %w", err)
	}
	return messages, nil
}

// touch rückt updatedAt der Session vor; letzter Schreiber gewinnt.
func (s *SessionService) touch(sessionID uint) {
	if err := s.DB.Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now()).Error; err != nil {
		s.Logger.Warn("Konnte Session-Zeitstempel nicht aktualisieren",
			zap.Uint("session_id", sessionID), zap.Error(err))
	}
}

// ownedSession lädt eine Session und erzwingt die Ownership.
func (s *SessionService) ownedSession(sessionID uint, requester *models.User) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.DB.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if session.UserID != requester.ID {
		return nil, fmt.Errorf("%w: session %d", ErrUnauthorized, sessionID)
	}
	return &session, nil
}

// uniqueIDs entfernt Duplikate; die Reihenfolge der Menge ist unspezifiziert.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
