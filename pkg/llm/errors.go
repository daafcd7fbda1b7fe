package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies provider failures.
type ErrorType string

const (
	ErrorTypeEndpoint  ErrorType = "endpoint"
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeModel     ErrorType = "model"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeEmpty     ErrorType = "empty_response"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// ErrEmptyResponse is the cause used when a provider returns no text.
var ErrEmptyResponse = errors.New("provider returned no text")

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Provider   string    // anthropic, openai or gemini
	Model      string    // Model name if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
// This allows the retry package to check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// classifyFor classifies err and stamps provider and model on the result.
func classifyFor(err error, provider, model string) *Error {
	e := ClassifyError(err)
	if e == nil {
		return nil
	}
	if e.Provider == "" {
		e.Provider = provider
	}
	if e.Model == "" {
		e.Model = model
	}
	return e
}

// ClassifyError categorizes an error and returns a structured Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	classified := func(t ErrorType, msg string, retryable bool) *Error {
		e := NewError(t, msg, retryable, err)
		e.StatusCode = statusCode
		return e
	}

	switch {
	case errors.Is(err, ErrEmptyResponse):
		return classified(ErrorTypeEmpty, "empty completion", true)

	// Authentication errors (not retryable)
	case statusCode == 401, statusCode == 403,
		strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "invalid x-api-key"),
		strings.Contains(lower, "authentication_error"),
		strings.Contains(lower, "api key not valid"):
		return classified(ErrorTypeAuth, "authentication failed", false)

	// Model not found (not retryable without config change)
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return classified(ErrorTypeModel, "model not found", false)

	case statusCode == 404:
		return classified(ErrorTypeEndpoint, "endpoint not found", false)

	// Rate limiting and overload (retryable after backoff)
	case statusCode == 429, statusCode == 529,
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "rate_limit"),
		strings.Contains(lower, "overloaded"),
		strings.Contains(lower, "resource has been exhausted"):
		return classified(ErrorTypeRateLimit, "rate limited", true)

	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return classified(ErrorTypeEndpoint, "connection failed", true)

	// Timeouts are retryable; caller cancellation is not.
	case strings.Contains(lower, "context canceled"):
		return classified(ErrorTypeEndpoint, "request cancelled", false)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return classified(ErrorTypeEndpoint, "request timeout", true)

	case statusCode >= 500:
		return classified(ErrorTypeEndpoint, "server error", true)

	case statusCode == 400:
		return classified(ErrorTypeUnknown, "bad request", false)
	}

	return classified(ErrorTypeUnknown, "llm error", false)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
