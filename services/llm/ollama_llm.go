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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("presetforge.llm")

// LangChainClient adapts any langchaingo llms.Model to LLMClient.
//
// # Description
//
// Used for backends langchaingo already speaks (Ollama today). The system
// and user prompts are sent as separate messages and JSON mode is requested.
type LangChainClient struct {
	model    llms.Model
	provider string
	name     string
}

// NewLangChainClient wraps model. provider and name label logs and spans.
func NewLangChainClient(model llms.Model, provider, name string) *LangChainClient {
	return &LangChainClient{model: model, provider: provider, name: name}
}

// NewOllamaClient reads OLLAMA_BASE_URL and OLLAMA_MODEL.
func NewOllamaClient() (*LangChainClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		slog.Warn("OLLAMA_MODEL not set, defaulting to gpt-oss")
		model = "gpt-oss"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return NewLangChainClient(llm, "ollama", model), nil
}

// Complete implements the LLMClient interface.
func (c *LangChainClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "LangChainClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.provider),
		attribute.String("llm.model", c.name),
		attribute.Float64("llm.temperature", req.Temperature),
	)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}
	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(maxTokens(req)),
		llms.WithJSONMode(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("LangChain backend call failed", "provider", c.provider, "error", err)
		return "", classify(ctx, c.provider, 0, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		err := malformed(c.provider, errors.New("no choices returned"))
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return resp.Choices[0].Content, nil
}
