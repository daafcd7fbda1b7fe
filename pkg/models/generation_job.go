package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Job Status
// ============================================================================

// JobStatus represents the execution status of a generation job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ValidJobStatuses contains all valid job status values.
var ValidJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// IsValidJobStatus checks if the given status is valid.
func IsValidJobStatus(s JobStatus) bool {
	for _, v := range ValidJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the job status is terminal (completed, failed, or cancelled).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsActive returns true if the job is currently active (pending or running).
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// ============================================================================
// Generation Job
// ============================================================================

// JobError records one question that could not be answered.
type JobError struct {
	QuestionID uuid.UUID `json:"question_id"`
	Message    string    `json:"message"`
}

// GenerationJob tracks one batch answer-generation run for a questionnaire.
type GenerationJob struct {
	ID              uuid.UUID  `json:"id"`
	QuestionnaireID uuid.UUID  `json:"questionnaire_id"`
	Status          JobStatus  `json:"status"`
	TotalQuestions  int        `json:"total_questions"`
	Processed       int        `json:"processed"`
	Succeeded       int        `json:"succeeded"`
	Failed          int        `json:"failed"`
	Errors          []JobError `json:"errors"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RecordSuccess counts one answered question.
func (j *GenerationJob) RecordSuccess() {
	j.Processed++
	j.Succeeded++
}

// RecordFailure counts one failed question and keeps its message.
func (j *GenerationJob) RecordFailure(questionID uuid.UUID, message string) {
	j.Processed++
	j.Failed++
	j.Errors = append(j.Errors, JobError{QuestionID: questionID, Message: message})
}
