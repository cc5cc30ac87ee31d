// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the text-generation backend clients used by the
// preset pipeline.
//
// # Description
//
// The pipeline consumes a backend through exactly one operation:
// Complete(system, user, temperature, maxOutputTokens) -> text. Every
// provider adapter in this package implements LLMClient and reports
// failures as *BackendError so callers can tell timeouts and rate limits
// apart from malformed responses without inspecting provider types.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// CompletionRequest is a single system+user completion call.
type CompletionRequest struct {
	System          string
	User            string
	Temperature     float64
	MaxOutputTokens int
}

// LLMClient defines the standard interface for any LLM backend.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type LLMClient interface {
	// Complete returns the completion text for req, or a *BackendError.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// DefaultMaxOutputTokens is used when a request leaves MaxOutputTokens at 0.
const DefaultMaxOutputTokens = 4096

// NewClient creates the client for the named backend.
//
// # Description
//
// Backend names follow LLM_BACKEND_TYPE: "openai", "claude"/"anthropic",
// "ollama", "local". Provider credentials and endpoints are read from the
// provider-specific environment variables documented on each constructor.
//
// # Outputs
//
//   - LLMClient: Ready-to-use backend client.
//   - error: Non-nil for an unknown backend or missing credentials.
func NewClient(backend string) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "openai", "":
		slog.Info("Using OpenAI LLM backend")
		return NewOpenAIClient()
	case "claude", "anthropic":
		slog.Info("Using Anthropic (Claude) LLM backend")
		return NewAnthropicClient()
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return NewOllamaClient()
	case "local":
		slog.Info("Using Local Llama.cpp LLM backend")
		return NewLocalLlamaCppClient()
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", backend)
	}
}

func maxTokens(req CompletionRequest) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	return DefaultMaxOutputTokens
}
