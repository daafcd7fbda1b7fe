package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client   *anthropic.Client
	settings Settings
	logger   *zap.Logger
}

// NewAnthropicGenerator creates a Generator backed by Anthropic.
func NewAnthropicGenerator(s Settings, logger *zap.Logger) (*AnthropicGenerator, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if s.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if s.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(s.BaseURL, "/")))
	}

	return &AnthropicGenerator{
		client:   anthropic.NewClient(s.APIKey, opts...),
		settings: s,
		logger:   logger.Named("anthropic"),
	}, nil
}

var _ Generator = (*AnthropicGenerator)(nil)

func (g *AnthropicGenerator) Model() string {
	return g.settings.Model
}

func (g *AnthropicGenerator) Close() error {
	return nil
}

// Generate sends prompt as a single user message.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.settings.Timeout)
	defer cancel()

	temperature := float32(g.settings.Temperature)
	start := time.Now()

	resp, err := g.client.CreateMessages(ctx, g.request(prompt, g.settings.MaxTokens, &temperature))
	if err != nil {
		g.logger.Warn("Anthropic request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", g.classify(err)
	}

	text := strings.TrimSpace(messageText(resp))
	if text == "" {
		return "", g.classify(ErrEmptyResponse)
	}

	g.logger.Debug("Anthropic request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// ValidateCredentials sends a 10-token "Hello".
func (g *AnthropicGenerator) ValidateCredentials(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, g.settings.Timeout)
	defer cancel()

	if _, err := g.client.CreateMessages(ctx, g.request(validationPrompt, validationMaxTokens, nil)); err != nil {
		g.logger.Warn("Anthropic credential check failed", zap.Error(g.classify(err)))
		return false
	}
	return true
}

func (g *AnthropicGenerator) request(prompt string, maxTokens int, temperature *float32) anthropic.MessagesRequest {
	return anthropic.MessagesRequest{
		Model:       anthropic.Model(g.settings.Model),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	}
}

func (g *AnthropicGenerator) classify(err error) *Error {
	e := classifyFor(err, "anthropic", g.settings.Model)

	// permission_error carries no status code in its message
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) && strings.Contains(err.Error(), "permission_error") {
		e.Type, e.Retryable = ErrorTypeAuth, false
	}
	return e
}

func messageText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}
