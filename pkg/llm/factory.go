package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewGenerator creates the Generator for s.Provider.
func NewGenerator(ctx context.Context, s Settings, logger *zap.Logger) (Generator, error) {
	switch s.Provider {
	case "anthropic":
		return NewAnthropicGenerator(s, logger)
	case "openai":
		return NewOpenAIGenerator(s, logger)
	case "gemini":
		return NewGeminiGenerator(ctx, s, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", s.Provider)
	}
}
