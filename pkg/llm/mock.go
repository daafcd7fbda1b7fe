package llm

import (
	"context"
	"sync"
)

// MockGenerator is a configurable mock for testing generation.
// Set the function fields to control behavior in tests.
type MockGenerator struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns "mock answer" and nil error.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// ValidateFunc is called when ValidateCredentials is invoked.
	// If nil, returns true.
	ValidateFunc func(ctx context.Context) bool

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a new mock with sensible defaults.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{ModelName: "mock-model"}
}

var _ Generator = (*MockGenerator)(nil)

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "mock answer", nil
}

// ValidateCredentials implements Generator.
func (m *MockGenerator) ValidateCredentials(ctx context.Context) bool {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return true
}

// Model implements Generator.
func (m *MockGenerator) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Close implements Generator.
func (m *MockGenerator) Close() error {
	return nil
}

// Prompts returns every prompt passed to Generate, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// GenerateCalls returns how many times Generate was called.
func (m *MockGenerator) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
