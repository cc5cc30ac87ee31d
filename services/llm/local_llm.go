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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const localProvider = "llama.cpp"

// LocalLlamaCppClient talks to a llama.cpp server's /completion endpoint.
// The server has no separate system role, so both prompts are concatenated.
type LocalLlamaCppClient struct {
	httpClient *http.Client
	baseURL    string
}

type llamaCppPayload struct {
	Prompt      string  `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	Temperature float64 `json:"temperature"`
}

type llamaCppResp struct {
	Content string `json:"content"`
}

// NewLocalLlamaCppClient reads LLM_SERVICE_URL_BASE.
func NewLocalLlamaCppClient() (*LocalLlamaCppClient, error) {
	baseURL := os.Getenv("LLM_SERVICE_URL_BASE")
	if baseURL == "" {
		return nil, fmt.Errorf("LLM_SERVICE_URL_BASE environment variable not set")
	}
	return NewLocalLlamaCppClientWithURL(baseURL), nil
}

// NewLocalLlamaCppClientWithURL builds a client against an explicit server.
func NewLocalLlamaCppClientWithURL(baseURL string) *LocalLlamaCppClient {
	return &LocalLlamaCppClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Complete implements the LLMClient interface.
func (l *LocalLlamaCppClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	completionURL := l.baseURL + "/completion"
	payload := llamaCppPayload{
		Prompt:      req.System + "\n\n" + req.User,
		NPredict:    maxTokens(req),
		Temperature: req.Temperature,
	}
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal the payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, completionURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("Calling Llama.cpp completion", "url", completionURL)
	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return "", classify(ctx, localProvider, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(ctx, localProvider, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classify(ctx, localProvider, resp.StatusCode,
			fmt.Errorf("llama.cpp returned status %d: %s", resp.StatusCode, string(body)))
	}

	var out llamaCppResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", malformed(localProvider, fmt.Errorf("failed to parse the llm response: %w", err))
	}
	if out.Content == "" {
		return "", malformed(localProvider, errors.New("empty completion"))
	}
	return out.Content, nil
}
