package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerSourceType classifies answer library entries.
type AnswerSourceType string

const (
	AnswerSourceTypeUser       AnswerSourceType = "user"
	AnswerSourceTypeBulkImport AnswerSourceType = "bulk_import"
)

// AnswerLibraryEntry is a reusable question/answer pair, independent of any
// questionnaire.
type AnswerLibraryEntry struct {
	ID         uuid.UUID        `json:"id"`
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	SourceType AnswerSourceType `json:"source_type"`
	SourceName string           `json:"source_name"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// AnswerPair is one row of a bulk import request.
type AnswerPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
