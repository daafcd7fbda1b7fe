package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Question Status
// ============================================================================

// QuestionStatus is the review state of a question's answer.
type QuestionStatus string

const (
	QuestionStatusCreated    QuestionStatus = "created"
	QuestionStatusUnapproved QuestionStatus = "unapproved"
	QuestionStatusApproved   QuestionStatus = "approved"
)

// ValidQuestionStatuses contains all valid question status values.
var ValidQuestionStatuses = []QuestionStatus{
	QuestionStatusCreated,
	QuestionStatusUnapproved,
	QuestionStatusApproved,
}

// IsValidQuestionStatus checks if the given status is valid.
func IsValidQuestionStatus(s QuestionStatus) bool {
	for _, v := range ValidQuestionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsReviewState returns true for the statuses a caller may request when
// writing or reviewing an answer.
func (s QuestionStatus) IsReviewState() bool {
	return s == QuestionStatusUnapproved || s == QuestionStatusApproved
}

// CanTransitionTo reports whether a question in status s may move to target.
// Staying in the same state is always allowed. Nothing moves back to created.
func (s QuestionStatus) CanTransitionTo(target QuestionStatus) bool {
	if s == target {
		return IsValidQuestionStatus(s)
	}
	switch s {
	case QuestionStatusCreated:
		return target == QuestionStatusUnapproved || target == QuestionStatusApproved
	case QuestionStatusUnapproved:
		return target == QuestionStatusApproved
	case QuestionStatusApproved:
		return target == QuestionStatusUnapproved
	}
	return false
}

// ============================================================================
// Answer Source
// ============================================================================

// AnswerSource records where a question's current answer came from.
type AnswerSource string

const (
	AnswerSourceGenerated AnswerSource = "generated"
	AnswerSourceManual    AnswerSource = "manual"
	AnswerSourceImported  AnswerSource = "imported"
)

// ============================================================================
// Question
// ============================================================================

// Question belongs to exactly one Questionnaire. Position preserves the row
// order of the uploaded file.
type Question struct {
	ID              uuid.UUID      `json:"id"`
	QuestionnaireID uuid.UUID      `json:"questionnaire_id"`
	Position        int            `json:"position"`
	QuestionText    string         `json:"question_text"`
	Answer          *string        `json:"answer"`
	Status          QuestionStatus `json:"status"`
	AnswerSource    *AnswerSource  `json:"answer_source"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HasAnswer returns true if the question carries a non-empty answer.
func (q *Question) HasAnswer() bool {
	return q.Answer != nil && *q.Answer != ""
}
