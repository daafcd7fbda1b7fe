package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOpenAITestServer(t *testing.T, status int, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv, captured := newOpenAITestServer(t, http.StatusOK, `{
		"id": "c1",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "  We encrypt data at rest.  "}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 6, "total_tokens": 18}
	}`)

	gen, err := NewOpenAIGenerator(Settings{
		Model:       "gpt-4o",
		APIKey:      "test",
		BaseURL:     srv.URL + "/",
		MaxTokens:   1000,
		Temperature: 0.3,
	}, zap.NewNop())
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "Do you encrypt data?")
	require.NoError(t, err)
	assert.Equal(t, "We encrypt data at rest.", out)

	assert.Equal(t, "gpt-4o", (*captured)["model"])
	assert.EqualValues(t, 1000, (*captured)["max_tokens"])
	msgs := (*captured)["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Do you encrypt data?", msgs[0].(map[string]any)["content"])
}

func TestOpenAIGenerator_EmptyChoices(t *testing.T) {
	srv, _ := newOpenAITestServer(t, http.StatusOK, `{"id": "c1", "choices": []}`)

	gen, err := NewOpenAIGenerator(Settings{Model: "gpt-4o", APIKey: "test", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, ErrorTypeEmpty, GetErrorType(err))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIGenerator_RateLimited(t *testing.T) {
	srv, _ := newOpenAITestServer(t, http.StatusTooManyRequests,
		`{"error": {"message": "Rate limit reached", "type": "requests"}}`)

	gen, err := NewOpenAIGenerator(Settings{Model: "gpt-4o", APIKey: "test", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrorTypeRateLimit, GetErrorType(err))
	assert.False(t, gen.ValidateCredentials(context.Background()))
}

func TestOpenAIGenerator_Unauthorized(t *testing.T) {
	srv, _ := newOpenAITestServer(t, http.StatusUnauthorized,
		`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)

	gen, err := NewOpenAIGenerator(Settings{Model: "gpt-4o", APIKey: "bad", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
}
