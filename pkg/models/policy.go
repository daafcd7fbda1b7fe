package models

import (
	"time"

	"github.com/google/uuid"
)

// Policy is an ingested policy document. Content holds the extracted text and
// is only populated on single-record reads.
type Policy struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content,omitempty"`
	FileSize   int64     `json:"file_size"`
	TextLength int       `json:"text_length"`
	CreatedAt  time.Time `json:"created_at"`
}
