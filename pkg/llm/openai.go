package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIGenerator calls any OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client   *openai.Client
	settings Settings
	logger   *zap.Logger
}

// NewOpenAIGenerator creates a Generator backed by an OpenAI-compatible API.
// The API key is optional for local endpoints that set BaseURL.
func NewOpenAIGenerator(s Settings, logger *zap.Logger) (*OpenAIGenerator, error) {
	if s.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if s.APIKey == "" && s.BaseURL == "" {
		return nil, fmt.Errorf("openai api key is required unless base_url is set")
	}

	clientConfig := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
	}

	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(clientConfig),
		settings: s,
		logger:   logger.Named("openai"),
	}, nil
}

var _ Generator = (*OpenAIGenerator)(nil)

func (g *OpenAIGenerator) Model() string {
	return g.settings.Model
}

func (g *OpenAIGenerator) Close() error {
	return nil
}

// Generate sends prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.settings.Timeout)
	defer cancel()

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.settings.Model,
		MaxTokens:   g.settings.MaxTokens,
		Temperature: float32(g.settings.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		g.logger.Warn("OpenAI request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", g.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", g.classify(ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", g.classify(ErrEmptyResponse)
	}

	g.logger.Debug("OpenAI request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// ValidateCredentials sends a 10-token "Hello".
func (g *OpenAIGenerator) ValidateCredentials(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, g.settings.Timeout)
	defer cancel()

	_, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.settings.Model,
		MaxTokens: validationMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: validationPrompt},
		},
	})
	if err != nil {
		g.logger.Warn("OpenAI credential check failed", zap.Error(g.classify(err)))
		return false
	}
	return true
}

func (g *OpenAIGenerator) classify(err error) *Error {
	e := classifyFor(err, "openai", g.settings.Model)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		e.StatusCode = apiErr.HTTPStatusCode
	}
	return e
}
