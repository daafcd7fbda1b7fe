package models

import (
	"time"

	"github.com/google/uuid"
)

// Questionnaire owns an ordered set of Questions. The counts are computed from
// the live question rows on every read.
type Questionnaire struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Filename        string    `json:"filename"`
	CreatedAt       time.Time `json:"created_at"`
	QuestionCount   int       `json:"question_count"`
	CreatedCount    int       `json:"created_count"`
	UnapprovedCount int       `json:"unapproved_count"`
	ApprovedCount   int       `json:"approved_count"`
}

// ExtractedQuestion is one surviving row of an uploaded questionnaire file.
// RowNumber is the 1-based row in the source sheet.
type ExtractedQuestion struct {
	RowNumber    int     `json:"row_number"`
	QuestionText string  `json:"question_text"`
	Answer       *string `json:"answer,omitempty"`
}

// ExportRow is one approved question/answer pair.
type ExportRow struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Statistics summarises the record store.
type Statistics struct {
	Policies          int `json:"total_policies"`
	Questionnaires    int `json:"total_questionnaires"`
	Questions         int `json:"total_questions"`
	ApprovedQuestions int `json:"approved_questions"`
	LibraryAnswers    int `json:"library_answers"`
}
