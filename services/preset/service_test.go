// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preset

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PresetForge/services/llm"
	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// unavailableBackend fails every call.
type unavailableBackend struct{}

func (unavailableBackend) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return "", &llm.BackendError{Kind: llm.ErrUnavailable, Err: errors.New("connection refused")}
}

func postGenerate(t *testing.T, router *gin.Engine, body string) datatypes.GenerateResult {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/presets/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var res datatypes.GenerateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestNew_GenerationDisabledServesFallback(t *testing.T) {
	// Arrange
	cfg := DefaultConfig()
	cfg.Pipeline.GenerationEnabled = false
	svc, err := New(cfg, &Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer svc.Close()

	// Act
	res := postGenerate(t, svc.Router(), `{"description":"Build a reporting dashboard"}`)

	// Assert
	assert.True(t, res.Success)
	assert.Equal(t, datatypes.FallbackVersion, res.Metadata.FallbackVersion)
	assert.Equal(t, datatypes.FallbackPreset(), res.Preset)
}

func TestNew_BackendFailureFallsBack(t *testing.T) {
	svc, err := New(DefaultConfig(), &Options{
		Backend:  unavailableBackend{},
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	defer svc.Close()

	res := postGenerate(t, svc.Router(), `{"description":"Build a reporting dashboard"}`)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, datatypes.FallbackPreset(), res.Preset)
}

func TestNew_MetricsServedFromRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Pipeline.GenerationEnabled = false
	svc, err := New(cfg, &Options{Registry: reg})
	require.NoError(t, err)
	defer svc.Close()

	postGenerate(t, svc.Router(), `{"description":"x"}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `preset_pipeline_fallback_total{reason="disabled"} 1`)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLMBackend = "carrier-pigeon"

	_, err := New(cfg, &Options{Registry: prometheus.NewRegistry()})

	assert.ErrorContains(t, err, "LLM client")
}

func TestNew_RejectsUnsupportedCacheURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheURL = "ftp://cache"

	_, err := New(cfg, &Options{Backend: unavailableBackend{}, Registry: prometheus.NewRegistry()})

	assert.ErrorContains(t, err, "cache")
}

func TestService_CloseTwice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.GenerationEnabled = false
	svc, err := New(cfg, &Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Close())
}

func TestNew_ConfiguredActivityBoundsReachValidator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.GenerationEnabled = false
	cfg.Pipeline.MinActivities = 12
	svc, err := New(cfg, &Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer svc.Close()

	body, err := json.Marshal(datatypes.FallbackPreset())
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/v1/presets/validate", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	svc.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Valid      bool     `json:"valid"`
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"activities: must contain between 12 and 20 activities, got 9"}, res.Violations)
}
