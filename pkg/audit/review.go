// Package audit records review decisions on questionnaire answers.
// Events are logged as structured JSON under the "review_audit" logger so
// they can be filtered out of the application log and retained separately.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// EventType categorizes review events.
type EventType string

const (
	// EventAnswerEdited is logged when a reviewer writes or replaces an answer.
	EventAnswerEdited EventType = "answer_edited"
	// EventStatusChanged is logged when a question moves between review states.
	EventStatusChanged EventType = "status_changed"
)

// ReviewEvent is one auditable change to a question.
type ReviewEvent struct {
	Timestamp       time.Time             `json:"timestamp"`
	EventType       EventType             `json:"event_type"`
	QuestionnaireID uuid.UUID             `json:"questionnaire_id"`
	QuestionID      uuid.UUID             `json:"question_id"`
	FromStatus      models.QuestionStatus `json:"from_status,omitempty"`
	ToStatus        models.QuestionStatus `json:"to_status"`
	AnswerLength    int                   `json:"answer_length,omitempty"`
}

// ReviewAuditor logs review events.
type ReviewAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewReviewAuditor creates an auditor writing to a "review_audit" child of logger.
func NewReviewAuditor(logger *zap.Logger) *ReviewAuditor {
	return &ReviewAuditor{
		logger: logger.Named("review_audit"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// LogAnswerEdited records a manual answer. The answer text itself is not
// logged; it may quote confidential policy content.
func (a *ReviewAuditor) LogAnswerEdited(ctx context.Context, q *models.Question, from models.QuestionStatus) {
	event := ReviewEvent{
		Timestamp:       a.now(),
		EventType:       EventAnswerEdited,
		QuestionnaireID: q.QuestionnaireID,
		QuestionID:      q.ID,
		FromStatus:      from,
		ToStatus:        q.Status,
	}
	if q.Answer != nil {
		event.AnswerLength = len(*q.Answer)
	}
	a.log(ctx, "Answer edited", event)
}

// LogStatusChange records a review transition. No-op transitions are not logged.
func (a *ReviewAuditor) LogStatusChange(ctx context.Context, q *models.Question, from models.QuestionStatus) {
	if from == q.Status {
		return
	}
	a.log(ctx, "Review status changed", ReviewEvent{
		Timestamp:       a.now(),
		EventType:       EventStatusChanged,
		QuestionnaireID: q.QuestionnaireID,
		QuestionID:      q.ID,
		FromStatus:      from,
		ToStatus:        q.Status,
	})
}

func (a *ReviewAuditor) log(_ context.Context, msg string, event ReviewEvent) {
	// Marshaling a struct of plain fields cannot fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Info(msg,
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("questionnaire_id", event.QuestionnaireID.String()),
		zap.String("question_id", event.QuestionID.String()),
		zap.String("from_status", string(event.FromStatus)),
		zap.String("to_status", string(event.ToStatus)),
	)
}
