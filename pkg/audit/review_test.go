package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func fixedAuditor(logger *zap.Logger) *ReviewAuditor {
	a := NewReviewAuditor(logger)
	a.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestLogAnswerEdited(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := fixedAuditor(logger)

	answer := "Yes, annually."
	q := &models.Question{
		ID:              uuid.New(),
		QuestionnaireID: uuid.New(),
		Answer:          &answer,
		Status:          models.QuestionStatusApproved,
	}

	auditor.LogAnswerEdited(context.Background(), q, models.QuestionStatusCreated)

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "review_audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, string(EventAnswerEdited), fields["event_type"])
	assert.Equal(t, q.ID.String(), fields["question_id"])
	assert.Equal(t, "created", fields["from_status"])
	assert.Equal(t, "approved", fields["to_status"])

	var event ReviewEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, len(answer), event.AnswerLength)
	assert.Equal(t, q.QuestionnaireID, event.QuestionnaireID)
	assert.NotContains(t, fields["event_json"], answer, "answer text must not be logged")
}

func TestLogStatusChange(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := fixedAuditor(logger)

	q := &models.Question{ID: uuid.New(), QuestionnaireID: uuid.New(), Status: models.QuestionStatusApproved}

	auditor.LogStatusChange(context.Background(), q, models.QuestionStatusApproved)
	assert.Zero(t, recorded.Len(), "unchanged status is not an event")

	auditor.LogStatusChange(context.Background(), q, models.QuestionStatusUnapproved)
	logs := recorded.TakeAll()
	require.Len(t, logs, 1)
	assert.Equal(t, "Review status changed", logs[0].Message)
	assert.Equal(t, string(EventStatusChanged), logs[0].ContextMap()["event_type"])
	assert.Equal(t, "unapproved", logs[0].ContextMap()["from_status"])
}
