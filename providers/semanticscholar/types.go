package semanticscholar

// SearchResponse ist die JSON-Antwort von /paper/search.
type SearchResponse struct {
	Total int         `json:"total"`
	Data  []PaperData `json:"data"`
}

// PaperData ist ein Paper-Objekt der Semantic Scholar Graph API.
type PaperData struct {
	PaperID         string       `json:"paperId"`
	Title           string       `json:"title"`
	Abstract        string       `json:"abstract"`
	URL             string       `json:"url"`
	PublicationDate string       `json:"publicationDate"` // YYYY-MM-DD
	CitationCount   int          `json:"citationCount"`
	FieldsOfStudy   []string     `json:"fieldsOfStudy"`
	Authors         []AuthorData `json:"authors"`
	OpenAccessPdf   *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// AuthorData ist ein Autoren-Eintrag der Graph API.
type AuthorData struct {
	Name string `json:"name"`
}
