package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropic_SubmitChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "claude-test", payload["model"])
		assert.Equal(t, 512.0, payload["max_tokens"])

		system, ok := payload["system"].([]interface{})
		require.True(t, ok, "system prompt should be lifted out of messages")
		require.Len(t, system, 1)
		assert.Equal(t, "You are terse.", system[0].(map[string]interface{})["text"])

		messages := payload["messages"].([]interface{})
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_01","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Hold."}],"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":12,"output_tokens":2}}`))
	}))
	defer server.Close()

	b := NewAnthropicBackend("sk-ant-test", zerolog.Nop(), option.WithBaseURL(server.URL))
	resp, err := b.SubmitChatCompletion(context.Background(), "claude-test", []Message{
		{Role: RoleSystem, Content: "You are terse."},
		{Role: RoleUser, Content: "Rate AAPL"},
	}, Options{MaxCompletionTokens: 512})

	require.NoError(t, err)
	assert.Equal(t, "Hold.", resp.Text)
	assert.Equal(t, "claude-test", resp.Model)
	assert.Contains(t, string(resp.Raw), "msg_01")
}

func TestAnthropic_SDKRetriesDisabled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer server.Close()

	b := NewAnthropicBackend("sk-ant-test", zerolog.Nop(), option.WithBaseURL(server.URL))
	_, err := b.SubmitChatCompletion(context.Background(), "claude-test", []Message{{Role: RoleUser, Content: "hi"}}, Options{})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, IsRetryable(err))
}

func TestAnthropic_BadRequestNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: field required"}}`))
	}))
	defer server.Close()

	b := NewAnthropicBackend("sk-ant-test", zerolog.Nop(), option.WithBaseURL(server.URL))
	_, err := b.SubmitChatCompletion(context.Background(), "claude-test", []Message{{Role: RoleUser, Content: "hi"}}, Options{})

	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestAnthropic_MissingKey(t *testing.T) {
	b := NewAnthropicBackend("", zerolog.Nop())
	assert.False(t, b.Configured())
	assert.Equal(t, "anthropic", b.Name())

	_, err := b.SubmitChatCompletion(context.Background(), "claude-test", nil, Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
