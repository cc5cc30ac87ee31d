// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// =============================================================================
// Error Classification Tests
// =============================================================================

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		err    error
		want   error
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
		{name: "429", status: http.StatusTooManyRequests, err: errors.New("slow down"), want: ErrRateLimited},
		{name: "504", status: http.StatusGatewayTimeout, err: errors.New("gateway"), want: ErrTimeout},
		{name: "500", status: http.StatusInternalServerError, err: errors.New("boom"), want: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(ctx, "test", tt.status, tt.err)

			assert.ErrorIs(t, err, tt.want)
			var be *BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "test", be.Provider)
		})
	}
}

func TestClassify_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := classify(ctx, "test", 0, errors.New("transport closed"))

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClassify_KeepsExistingBackendError(t *testing.T) {
	original := malformed("inner", errors.New("bad json"))

	err := classify(context.Background(), "outer", http.StatusTooManyRequests, original)

	assert.Same(t, original, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewClient_UnknownBackend(t *testing.T) {
	_, err := NewClient("gemini-nano")
	assert.Error(t, err)
}

// =============================================================================
// OpenAI Tests
// =============================================================================

func newOpenAITestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAIClientWithConfig(cfg, "gpt-test")
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"success\":true}"},"finish_reason":"stop"}]}`))
	})

	text, err := client.Complete(context.Background(), CompletionRequest{
		System: "sys", User: "usr", Temperature: 0.6, MaxOutputTokens: 128,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, text)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "usr", got.Messages[1].Content)
	assert.InDelta(t, 0.6, got.Temperature, 1e-6)
	assert.Equal(t, 128, got.MaxCompletionTokens)
}

func TestOpenAIClient_RateLimited(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"requests","code":"rate_limit_exceeded"}}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{User: "x"})

	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test","choices":[]}`))
	})

	_, err := client.Complete(context.Background(), CompletionRequest{User: "x"})

	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOpenAITemperature_ZeroIsSent(t *testing.T) {
	assert.Greater(t, openAITemperature(0), float32(0))
	assert.InDelta(t, 0.8, openAITemperature(0.8), 1e-6)
}

// =============================================================================
// Anthropic Tests
// =============================================================================

func TestAnthropicClient_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"id":"m1","type":"message","role":"assistant",
			"content":[{"type":"text","text":"{\"success\":"},{"type":"text","text":"true}"}]}`))
	}))
	defer srv.Close()
	client := NewAnthropicClientWithURL(srv.URL, "test-key", "claude-test")

	text, err := client.Complete(context.Background(), CompletionRequest{System: "sys", User: "usr"})

	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, text)
	require.Len(t, got.System, 1)
	assert.Equal(t, "sys", got.System[0].Text)
	assert.Nil(t, got.System[0].CacheControl, "short system prompts are not cached")
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature, "temperature 0 must be sent explicitly")
	assert.Equal(t, DefaultMaxOutputTokens, got.MaxTokens)
}

func TestAnthropicClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusTooManyRequests, want: ErrRateLimited},
		{status: http.StatusInternalServerError, want: ErrUnavailable},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		client := NewAnthropicClientWithURL(srv.URL, "k", "m")

		_, err := client.Complete(context.Background(), CompletionRequest{User: "x"})

		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		srv.Close()
	}
}

func TestAnthropicClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()
	client := NewAnthropicClientWithURL(srv.URL, "k", "m")

	_, err := client.Complete(context.Background(), CompletionRequest{User: "x"})

	assert.ErrorIs(t, err, ErrMalformed)
}

// =============================================================================
// Local llama.cpp Tests
// =============================================================================

func TestLocalLlamaCppClient_Complete(t *testing.T) {
	var got llamaCppPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"content":"{}"}`))
	}))
	defer srv.Close()
	client := NewLocalLlamaCppClientWithURL(srv.URL + "/")

	text, err := client.Complete(context.Background(), CompletionRequest{System: "sys", User: "usr", MaxOutputTokens: 64})

	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, "sys\n\nusr", got.Prompt)
	assert.Equal(t, 64, got.NPredict)
}

// =============================================================================
// LangChain Adapter Tests
// =============================================================================

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestLangChainClient_Complete(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: `{"ok":1}`}}}}
	client := NewLangChainClient(model, "ollama", "gpt-oss")

	text, err := client.Complete(context.Background(), CompletionRequest{System: "sys", User: "usr", Temperature: 0.8})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":1}`, text)
	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.InDelta(t, 0.8, model.opts.Temperature, 1e-9)
	assert.True(t, model.opts.JSONMode)
}

func TestLangChainClient_Errors(t *testing.T) {
	failing := NewLangChainClient(&fakeModel{err: context.DeadlineExceeded}, "ollama", "m")
	_, err := failing.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrTimeout)

	empty := NewLangChainClient(&fakeModel{resp: &llms.ContentResponse{}}, "ollama", "m")
	_, err = empty.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrMalformed)
}
