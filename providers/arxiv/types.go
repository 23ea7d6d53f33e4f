package arxiv

import "encoding/xml"

// Feed ist die Atom-Antwort der arXiv-API.
type Feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []Entry  `xml:"entry"`
}

// Entry ist ein einzelnes Suchergebnis im Atom-Feed.
type Entry struct {
	ID         string     `xml:"id"` // z.B. http://arxiv.org/abs/2301.00001v2
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []Author   `xml:"author"`
	Categories []Category `xml:"category"`
}

// Author ist ein Autoren-Eintrag im Atom-Feed.
type Author struct {
	Name string `xml:"name"`
}

// Category trägt die arXiv-Kategorie als Attribut.
type Category struct {
	Term string `xml:"term,attr"`
}
