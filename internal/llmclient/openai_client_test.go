package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/visionfill/internal/config"
)

const openAISuccessBody = `{
	"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o-2024-08-06",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"status\":\"processing\"}"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
}`

func setupOpenAIClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *observer.ObservedLogs) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	loggerCore, observedLogs := observer.New(zap.InfoLevel)
	cfg := getValidLLMConfig(config.ProviderOpenAI)
	cfg.Endpoint = server.URL + "/v1"

	client, err := NewOpenAIClient(cfg, zap.New(loggerCore))
	require.NoError(t, err)
	client.backoffFactory = fastBackoff
	return client, observedLogs
}

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidLLMConfig(config.ProviderOpenAI)
	cfg.APIKey = ""

	client, err := NewOpenAIClient(cfg, logger)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestOpenAIBuildRequest(t *testing.T) {
	client, _ := setupOpenAIClient(t, nil)

	chatReq := client.buildRequest(createTestRequest())
	assert.Equal(t, "test-model", chatReq.Model)
	assert.Equal(t, 1000, chatReq.MaxTokens)
	require.NotNil(t, chatReq.ResponseFormat)
	assert.Equal(t, "json_object", string(chatReq.ResponseFormat.Type))

	require.Len(t, chatReq.Messages, 2)
	assert.Equal(t, "system", chatReq.Messages[0].Role)
	assert.Equal(t, "System prompt instructions.", chatReq.Messages[0].Content)

	user := chatReq.Messages[1]
	require.Len(t, user.MultiContent, 2)
	assert.Equal(t, "User query.", user.MultiContent[0].Text)
	require.NotNil(t, user.MultiContent[1].ImageURL)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", user.MultiContent[1].ImageURL.URL)
	assert.Equal(t, "high", string(user.MultiContent[1].ImageURL.Detail))
}

func TestOpenAIGenerate_Success(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "test-model", payload["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, openAISuccessBody)
	}

	client, observedLogs := setupOpenAIClient(t, handler)
	resp, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"status":"processing"}`, resp.Text)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.Model)
	assert.Equal(t, 120, resp.PromptTokens)
	assert.Equal(t, 30, resp.CompletionTokens)

	require.Equal(t, 1, observedLogs.Len())
	assert.Equal(t, "LLM generation complete (OpenAI)", observedLogs.All()[0].Message)
}

func TestOpenAIGenerate_RetryThenSuccess(t *testing.T) {
	var attempts int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error": {"message": "Rate limit reached", "type": "requests"}}`)
			return
		}
		_, _ = io.WriteString(w, openAISuccessBody)
	}

	client, _ := setupOpenAIClient(t, handler)
	_, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestOpenAIGenerate_PermanentError(t *testing.T) {
	var attempts int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)
	}

	client, _ := setupOpenAIClient(t, handler)
	_, err := client.Generate(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "choices": []}`)
	}

	client, _ := setupOpenAIClient(t, handler)
	_, err := client.Generate(context.Background(), createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
