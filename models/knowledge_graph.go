package models

import (
	"time"

	"gorm.io/datatypes"
)

// Knoten- und Kantentypen der extrahierten Graphen.
const (
	NodeTypePaper   = "paper"
	NodeTypeAuthor  = "author"
	NodeTypeConcept = "concept"
	NodeTypeMethod  = "method"
	NodeTypeKeyword = "keyword"

	EdgeTypeCites      = "cites"
	EdgeTypeAuthoredBy = "authored_by"
	EdgeTypeUsesMethod = "uses_method"
	EdgeTypeRelatedTo  = "related_to"
	EdgeTypeHasKeyword = "has_keyword"
)

// GraphNode ist ein Knoten mit graph-lokal eindeutiger ID und opakem Payload.
type GraphNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type"`
	Data  map[string]any `json:"data,omitempty"`
}

// GraphEdge ist eine gerichtete Kante zwischen zwei Knoten-IDs.
type GraphEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// GraphMetadata sind die Aggregatwerte einer Extraktion.
type GraphMetadata struct {
	PaperCount   int `json:"paper_count"`
	AuthorCount  int `json:"author_count"`
	ConceptCount int `json:"concept_count"`
}

// KnowledgeGraph hält die extrahierten Entitäten und Beziehungen pro
// (User, Session). SessionID 0 steht für den nutzerglobalen Graphen, damit
// der Composite-Unique-Index auch ohne Session greift (NULL-Werte kollidieren
// in Postgres nicht). Eine Regeneration ersetzt Nodes, Edges und Metadata
// vollständig.
type KnowledgeGraph struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    uint `json:"user_id" gorm:"not null;uniqueIndex:idx_graphs_user_session"`
	SessionID uint `json:"session_id" gorm:"default:0;uniqueIndex:idx_graphs_user_session"`

	Nodes    datatypes.JSONSlice[GraphNode]    `json:"nodes"`
	Edges    datatypes.JSONSlice[GraphEdge]    `json:"edges"`
	Metadata datatypes.JSONType[GraphMetadata] `json:"metadata"`
}

// TableName gibt explizit den Tabellennamen an.
func (KnowledgeGraph) TableName() string {
	return "knowledge_graphs"
}
