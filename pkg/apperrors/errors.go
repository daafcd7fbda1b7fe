package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrCorruptDocument   = errors.New("document is corrupt or not a readable PDF")
	ErrNoExtractableText = errors.New("no readable text found in document")
	ErrNoQuestionsFound  = errors.New("no questions found")
	ErrNoPolicyContext   = errors.New("no policy documents found, upload policies first")
	ErrNoApprovedAnswers = errors.New("no approved answers found for export")
	ErrGenerationFailed  = errors.New("answer generation failed")
	ErrStore             = errors.New("store error")
)

// ValidationError reports caller-fixable input problems.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// GenerationFailedError is the single error shape callers see for any
// provider-side failure while generating one question's answer.
type GenerationFailedError struct {
	QuestionID uuid.UUID
	Cause      error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed for question %s: %v", e.QuestionID, e.Cause)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Cause
}

func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// StoreError wraps a persistence failure together with the operation that failed.
type StoreError struct {
	Op    string
	Cause error
}

// NewStoreError wraps cause. Passing ErrNotFound through unchanged keeps
// lookups distinguishable from real failures.
func NewStoreError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, ErrNotFound) {
		return cause
	}
	return &StoreError{Op: op, Cause: cause}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
