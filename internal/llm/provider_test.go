package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Name:        "summary_response",
	Description: "Review bullets",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"bullets"},
		"properties": map[string]any{
			"bullets": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	},
}

func TestNew(t *testing.T) {
	p, err := New(Options{Provider: "openai", Model: "gpt-5.2", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New(Options{Provider: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "sk-ant"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = New(Options{Provider: "gemini", APIKey: "key"})
	assert.Error(t, err)

	_, err = New(Options{Provider: "openai"})
	assert.Error(t, err)
}

func TestOpenAI_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-5.2", req.Model)
		assert.Equal(t, 2048, req.MaxCompletionTokens)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)
		assert.Equal(t, "summary_response", req.ResponseFormat.JSONSchema.Name)
		assert.True(t, req.ResponseFormat.JSONSchema.Strict)
		assert.Equal(t, false, req.ResponseFormat.JSONSchema.Schema["additionalProperties"])
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "summarize these", req.Messages[0].Content)
		}

		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: `{"bullets":[]}`}, FinishReason: "stop"},
			},
			Usage: openaiUsage{TotalTokens: 50},
		})
	}))
	defer server.Close()

	o := NewOpenAI(Options{APIKey: "test-key", Model: "gpt-5.2", BaseURL: server.URL, MaxTokens: 2048})

	resp, err := o.Complete(context.Background(), Request{Prompt: "summarize these", Schema: testSchema})
	require.NoError(t, err)
	assert.Equal(t, `{"bullets":[]}`, resp.Content)
	assert.Equal(t, 50, resp.TokensUsed)
}

func TestOpenAI_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     any
		contains string
		apiError bool
	}{
		{name: "Rate limited", status: http.StatusTooManyRequests, body: map[string]string{"error": "slow down"}, contains: "status 429", apiError: true},
		{name: "Server error", status: http.StatusBadGateway, body: map[string]string{"error": "bad gateway"}, contains: "status 502", apiError: true},
		{name: "No choices", status: http.StatusOK, body: openaiResponse{}, contains: "no choices"},
		{
			name:     "Empty content",
			status:   http.StatusOK,
			body:     openaiResponse{Choices: []openaiChoice{{FinishReason: "length"}}},
			contains: "empty text content",
		},
		{
			name:     "Refusal",
			status:   http.StatusOK,
			body:     openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{Refusal: "cannot help"}}}},
			contains: "refused",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			}))
			defer server.Close()

			o := NewOpenAI(Options{APIKey: "test-key", Model: "gpt-5.2", BaseURL: server.URL})
			_, err := o.Complete(context.Background(), Request{Prompt: "p", Schema: testSchema})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)

			var apiErr *APIError
			assert.Equal(t, tc.apiError, errors.As(err, &apiErr))
		})
	}
}

func TestAnthropic_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1024, req.MaxTokens)
		assert.Equal(t, "tool", req.ToolChoice.Type)
		assert.Equal(t, "summary_response", req.ToolChoice.Name)
		if assert.Len(t, req.Tools, 1) {
			assert.Equal(t, "object", req.Tools[0].InputSchema["type"])
		}

		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "Here you go"},
				{"type": "tool_use", "name": "summary_response", "input": {"bullets": ["a"]}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	a := NewAnthropic(Options{APIKey: "test-key", Model: "claude-sonnet-4-20250514", BaseURL: server.URL})

	resp, err := a.Complete(context.Background(), Request{Prompt: "p", MaxTokens: 1024, Schema: testSchema})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bullets":["a"]}`, resp.Content)
	assert.Equal(t, 15, resp.TokensUsed)
}

func TestAnthropic_NoToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"no"}],"stop_reason":"max_tokens"}`))
	}))
	defer server.Close()

	a := NewAnthropic(Options{APIKey: "test-key", Model: "claude", BaseURL: server.URL})

	_, err := a.Complete(context.Background(), Request{Prompt: "p", Schema: testSchema})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestAnthropic_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid x-api-key"}`))
	}))
	defer server.Close()

	a := NewAnthropic(Options{APIKey: "bad", Model: "claude", BaseURL: server.URL})

	_, err := a.Complete(context.Background(), Request{Prompt: "p", Schema: testSchema})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "anthropic", apiErr.Provider)
}
