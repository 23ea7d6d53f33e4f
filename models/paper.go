package models

import (
	"time"

	"gorm.io/datatypes"
)

// Quellen, aus denen Paper importiert werden.
const (
	SourceArxiv           = "arxiv"
	SourceSemanticScholar = "semantic_scholar"
)

// Paper repräsentiert eine wissenschaftliche Studie und deren Metadaten.
// Pro arxiv_id bzw. semantic_scholar_id existiert höchstens ein Datensatz;
// NULL-Werte kollidieren dabei nicht (sparse uniqueness).
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title    string                      `json:"title" gorm:"not null"`
	Authors  datatypes.JSONSlice[string] `json:"authors"`
	Abstract string                      `json:"abstract,omitempty" gorm:"type:text"`

	ArxivID           *string `json:"arxiv_id,omitempty" gorm:"column:arxiv_id;uniqueIndex"`
	SemanticScholarID *string `json:"semantic_scholar_id,omitempty" gorm:"uniqueIndex"`

	URL           string     `json:"url"`
	PDFURL        string     `json:"pdf_url,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`

	Categories    datatypes.JSONSlice[string] `json:"categories"`
	Keywords      datatypes.JSONSlice[string] `json:"keywords,omitempty"`
	Methods       datatypes.JSONSlice[string] `json:"methods,omitempty"`
	CitationCount int                         `json:"citation_count" gorm:"default:0"`
	Source        string                      `json:"source" gorm:"index;not null"` // arxiv, semantic_scholar

	// Wird asynchron vom Enrichment-Worker gesetzt und kann fehlen.
	EmbeddingID string `json:"embedding_id,omitempty" gorm:"index"`

	// PDF-Archivierung
	CloudStored bool   `json:"cloud_stored"`
	S3Link      string `json:"s3_link,omitempty"`
	NoPDFFound  bool   `json:"no_pdf_found"`

	AddedBy *uint `json:"added_by,omitempty" gorm:"index"`
}

// HasContent meldet, ob das Paper Titel und Abstract trägt und damit für
// RAG-Antworten und Graph-Extraktion verwendbar ist.
func (p *Paper) HasContent() bool {
	return p.Title != "" && p.Abstract != ""
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}
