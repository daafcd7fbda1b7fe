// Package llm provides the generative-model clients used to draft answers.
package llm

import (
	"context"
	"time"
)

// Generator is a black-box text-completion capability. One prompt in, one
// completion out; implementations never retry on their own.
type Generator interface {
	// Generate returns the model's completion for prompt. Provider failures
	// are returned as *Error.
	Generate(ctx context.Context, prompt string) (string, error)

	// ValidateCredentials issues a minimal request and reports whether the
	// provider accepted it.
	ValidateCredentials(ctx context.Context) bool

	// Model returns the configured model identifier.
	Model() string

	// Close releases provider resources.
	Close() error
}

// Settings configures a Generator.
type Settings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string // optional endpoint override
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // per request; zero means no extra deadline
}

const (
	validationPrompt    = "Hello"
	validationMaxTokens = 10
)

// withTimeout bounds a single provider request.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
