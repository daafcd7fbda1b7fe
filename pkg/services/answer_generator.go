package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/llm"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/prompts"
)

// AnswerGenerator drafts one answer from the policy corpus. It never retries;
// every failure comes back as *apperrors.GenerationFailedError.
type AnswerGenerator struct {
	composer  *prompts.Composer
	generator llm.Generator
	logger    *zap.Logger
}

// NewAnswerGenerator creates an AnswerGenerator.
func NewAnswerGenerator(composer *prompts.Composer, generator llm.Generator, logger *zap.Logger) *AnswerGenerator {
	return &AnswerGenerator{
		composer:  composer,
		generator: generator,
		logger:    logger.Named("answer-generator"),
	}
}

// Generate composes the grounded prompt for question and returns the completion.
func (g *AnswerGenerator) Generate(ctx context.Context, question *models.Question, corpus string) (string, error) {
	prompt := g.composer.Compose(question.QuestionText, corpus)

	answer, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &apperrors.GenerationFailedError{QuestionID: question.ID, Cause: err}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", &apperrors.GenerationFailedError{
			QuestionID: question.ID,
			Cause:      llm.NewError(llm.ErrorTypeEmpty, "empty completion", true, llm.ErrEmptyResponse),
		}
	}

	g.logger.Debug("Answer generated",
		zap.String("question_id", question.ID.String()),
		zap.Int("prompt_length", len(prompt)),
		zap.Int("answer_length", len(answer)))

	return answer, nil
}

// ValidateCredentials reports whether the provider accepts a minimal request.
func (g *AnswerGenerator) ValidateCredentials(ctx context.Context) bool {
	return g.generator.ValidateCredentials(ctx)
}

// Model returns the provider model identifier.
func (g *AnswerGenerator) Model() string {
	return g.generator.Model()
}
