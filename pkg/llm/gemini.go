package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiGenerator calls Google's Gemini API.
type GeminiGenerator struct {
	client   *genai.Client
	settings Settings
	logger   *zap.Logger
}

// NewGeminiGenerator creates a Generator backed by Gemini.
func NewGeminiGenerator(ctx context.Context, s Settings, logger *zap.Logger) (*GeminiGenerator, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if s.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(s.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:   client,
		settings: s,
		logger:   logger.Named("gemini"),
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)

func (g *GeminiGenerator) Model() string {
	return g.settings.Model
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func (g *GeminiGenerator) model(maxTokens int, temperature *float32) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.settings.Model)
	m.SetMaxOutputTokens(int32(maxTokens))
	if temperature != nil {
		m.SetTemperature(*temperature)
	}
	return m
}

// Generate sends prompt as a single text part.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.settings.Timeout)
	defer cancel()

	temperature := float32(g.settings.Temperature)
	start := time.Now()

	resp, err := g.model(g.settings.MaxTokens, &temperature).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.logger.Warn("Gemini request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", classifyFor(err, "gemini", g.settings.Model)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", classifyFor(ErrEmptyResponse, "gemini", g.settings.Model)
	}

	g.logger.Debug("Gemini request completed", zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

// ValidateCredentials sends a 10-token "Hello".
func (g *GeminiGenerator) ValidateCredentials(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, g.settings.Timeout)
	defer cancel()

	if _, err := g.model(validationMaxTokens, nil).GenerateContent(ctx, genai.Text(validationPrompt)); err != nil {
		g.logger.Warn("Gemini credential check failed",
			zap.Error(classifyFor(err, "gemini", g.settings.Model)))
		return false
	}
	return true
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
