package models

import (
	"time"

	"gorm.io/datatypes"
)

// Citation verankert einen Teil einer Antwort in einem Paper.
type Citation struct {
	PaperID   uint    `json:"paper_id"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"` // 0..1
}

// Message ist ein Frage/Antwort-Paar innerhalb einer ChatSession. Messages
// werden nach dem Anlegen nicht mehr verändert und sind innerhalb einer
// Session nach CreatedAt geordnet.
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	SessionID uint `json:"session_id" gorm:"index;not null"`

	Question string `json:"question" gorm:"type:text;not null"`
	Answer   string `json:"answer" gorm:"type:text;not null"`

	Citations datatypes.JSONSlice[Citation] `json:"citations"`

	// Die für diese Frage angefragten Paper, wie vom Aufrufer übergeben.
	RelatedPaperIDs datatypes.JSONSlice[uint] `json:"related_paper_ids"`

	// Dauer des ML-Aufrufs in Millisekunden.
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// TableName gibt explizit den Tabellennamen an.
func (Message) TableName() string {
	return "messages"
}
