package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidationError_IsSentinel(t *testing.T) {
	err := fmt.Errorf("upload: %w", NewValidationError("file", "size %d exceeds %d", 20, 10))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "upload: file: size 20 exceeds 10", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "file", ve.Field)
}

func TestGenerationFailedError_UnwrapsCause(t *testing.T) {
	cause := errors.New("429 rate limited")
	id := uuid.New()
	err := &GenerationFailedError{QuestionID: id, Cause: cause}

	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), id.String())
}

func TestNewStoreError(t *testing.T) {
	assert.NoError(t, NewStoreError("get policy", nil))

	// not-found is passed through so callers can map it to 404
	err := NewStoreError("get policy", ErrNotFound)
	assert.Same(t, ErrNotFound, err)

	cause := errors.New("connection reset")
	err = NewStoreError("create policy", cause)
	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to create policy: connection reset", err.Error())
}
