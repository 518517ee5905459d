package models

import "time"

// Outcome is the verdict recorded for a candidate in the ledger
type Outcome string

const (
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
)

// Valid reports whether o is one of the known outcomes
func (o Outcome) Valid() bool {
	return o == Accepted || o == Rejected
}

// Candidate is one search hit from a collection, not yet fetched
type Candidate struct {
	Source   string `json:"source"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageRef string `json:"image_ref,omitempty"`
}

// Artwork is a resolved candidate with its image bytes
type Artwork struct {
	Candidate
	URL         string
	ContentType string
	Data        []byte
}

// Entry is one ledger record
type Entry struct {
	Source  string  `json:"source"`
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
}

// CatalogItem describes an accepted image saved on disk
type CatalogItem struct {
	Filename string    `json:"filename"`
	Source   string    `json:"source"`
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	SavedAt  time.Time `json:"saved_at"`
}
