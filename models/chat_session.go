package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultSessionTitle ist der Titel einer neu angelegten Session ohne Namen.
const DefaultSessionTitle = "New Research Session"

// ChatSession ist eine benannte Paper-Sammlung eines Users samt Q&A-Verlauf.
// UpdatedAt rückt bei jeder Frage und jeder Paper-Ergänzung vor.
type ChatSession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`

	UserID uint   `json:"user_id" gorm:"index;not null"`
	Title  string `json:"title" gorm:"default:'New Research Session'"`

	// Menge von Paper-IDs; Reihenfolge ist ohne Bedeutung, Eindeutigkeit der
	// einzige Vertrag.
	PaperIDs datatypes.JSONSlice[uint] `json:"paper_ids" gorm:"column:paper_ids"`

	IsActive bool `json:"is_active" gorm:"default:true"`
}

// TableName gibt explizit den Tabellennamen an.
func (ChatSession) TableName() string {
	return "chat_sessions"
}
