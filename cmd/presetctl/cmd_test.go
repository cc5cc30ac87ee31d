// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

// =============================================================================
// Test Helpers
// =============================================================================

// runCLI executes presetctl with args and captures both streams.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--output", "plain"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// =============================================================================
// fallback
// =============================================================================

func TestFallback_Table(t *testing.T) {
	out, _, err := runCLI(t, "fallback")
	require.NoError(t, err)

	preset := datatypes.FallbackPreset()
	assert.True(t, strings.HasPrefix(out, "PRESET\t"+preset.Name))
	assert.Equal(t, len(preset.Activities)+1, strings.Count(out, "\n"))
}

func TestFallback_JSONAndYAMLDecodeBack(t *testing.T) {
	out, _, err := runCLI(t, "fallback", "--format", "json")
	require.NoError(t, err)
	var fromJSON datatypes.PresetOutput
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))
	assert.Equal(t, datatypes.FallbackPreset(), fromJSON)

	out, _, err = runCLI(t, "fallback", "-f", "yaml")
	require.NoError(t, err)
	var fromYAML datatypes.PresetOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, datatypes.FallbackPreset().Name, fromYAML.Name)
	assert.Len(t, fromYAML.Activities, len(datatypes.FallbackPreset().Activities))
}

func TestFallback_UnknownFormat(t *testing.T) {
	_, _, err := runCLI(t, "fallback", "--format", "xml")

	assert.ErrorContains(t, err, "unknown format")
}

// =============================================================================
// validate
// =============================================================================

func TestValidate_ValidJSONFile(t *testing.T) {
	data, err := json.Marshal(datatypes.FallbackPreset())
	require.NoError(t, err)
	path := writeFile(t, "preset.json", data)

	out, _, err := runCLI(t, "validate", path)

	require.NoError(t, err)
	assert.Equal(t, "OK: preset is valid\n", out)
}

func TestValidate_InvalidYAMLFile(t *testing.T) {
	preset := datatypes.FallbackPreset()
	preset.Activities = preset.Activities[:2]
	data, err := yaml.Marshal(preset)
	require.NoError(t, err)
	path := writeFile(t, "preset.yaml", data)

	_, errOut, err := runCLI(t, "validate", path)

	assert.ErrorIs(t, err, errInvalidPreset)
	assert.Contains(t, errOut, "VIOLATION: activities: must contain between 5 and 20 activities, got 2")
}

func TestValidate_CustomBounds(t *testing.T) {
	preset := datatypes.FallbackPreset()
	preset.Activities = preset.Activities[:2]
	data, _ := json.Marshal(preset)
	path := writeFile(t, "preset", data)

	_, _, err := runCLI(t, "validate", path, "--min-activities", "2")

	assert.NoError(t, err)
}

func TestValidate_UnreadableInput(t *testing.T) {
	_, _, err := runCLI(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read")

	path := writeFile(t, "broken.json", []byte("{"))
	_, _, err = runCLI(t, "validate", path)
	assert.ErrorContains(t, err, "parse")
}

func TestValidate_RequiresOneArg(t *testing.T) {
	_, _, err := runCLI(t, "validate")

	assert.Error(t, err)
}

// =============================================================================
// generate
// =============================================================================

func TestGenerate_Remote(t *testing.T) {
	// Arrange
	var received datatypes.PipelineInput
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/presets/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(datatypes.GenerateResult{
			Success: true,
			Preset:  datatypes.FallbackPreset(),
			Metadata: datatypes.ResultMetadata{
				Attempts:         1,
				ModelPasses:      []string{"skeleton", "expand_temp0.6"},
				GenerationTimeMs: 1200,
			},
		})
	}))
	defer server.Close()
	answers := writeFile(t, "answers.yaml", []byte("auth_mechanism: custom_jwt\nteam_size: 4\n"))

	// Act
	out, _, err := runCLI(t, "--server", server.URL+"/", "generate",
		"-d", "Password reset flow", "--answers", answers, "--category", "backend", "--user", "u-7")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "OK: preset generated in 1200ms (skeleton, expand_temp0.6)")
	assert.Equal(t, "Password reset flow", received.Description)
	assert.Equal(t, "BACKEND", received.CategoryHint)
	assert.Equal(t, "u-7", received.UserID)
	assert.Equal(t, "custom_jwt", received.Answers["auth_mechanism"])
	assert.NotEmpty(t, received.RequestID)
}

func TestGenerate_RemoteFallbackIsWarned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(datatypes.GenerateResult{
			Success:  false,
			Error:    "stage failed: skeleton: timeout",
			Preset:   datatypes.FallbackPreset(),
			Metadata: datatypes.ResultMetadata{FallbackVersion: datatypes.FallbackVersion},
		})
	}))
	defer server.Close()

	out, errOut, err := runCLI(t, "--server", server.URL, "generate", "-d", "x")

	require.NoError(t, err)
	assert.Contains(t, errOut, "WARN: generation failed, showing the fallback preset: stage failed: skeleton: timeout")
	assert.Contains(t, out, "PRESET\t")
}

func TestGenerate_RawJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(datatypes.GenerateResult{Success: true, Preset: datatypes.FallbackPreset()})
	}))
	defer server.Close()

	out, _, err := runCLI(t, "--server", server.URL, "generate", "-d", "x", "--json")

	require.NoError(t, err)
	var res datatypes.GenerateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
}

func TestGenerate_ServerRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"description is required"}`))
	}))
	defer server.Close()

	_, _, err := runCLI(t, "--server", server.URL, "generate", "-d", "x")

	assert.ErrorContains(t, err, "presetd returned 400: description is required")
}

func TestGenerate_DescriptionFromFile(t *testing.T) {
	var received datatypes.PipelineInput
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(datatypes.GenerateResult{Success: true})
	}))
	defer server.Close()
	brief := writeFile(t, "brief.txt", []byte("Build an audit log exporter"))

	_, _, err := runCLI(t, "--server", server.URL, "generate", "--description-file", brief)

	require.NoError(t, err)
	assert.Equal(t, "Build an audit log exporter", received.Description)
}

func TestGenerate_RequiresDescription(t *testing.T) {
	_, _, err := runCLI(t, "generate", "-d", "  ")

	assert.ErrorContains(t, err, "description is required")
}

func TestGenerate_LocalWithGenerationDisabled(t *testing.T) {
	t.Setenv("PRESET_GENERATION_ENABLED", "false")
	t.Setenv("PRESET_CACHE_URL", "memory://")

	out, errOut, err := runCLI(t, "generate", "--local", "-d", "Reporting dashboard")

	require.NoError(t, err)
	assert.Contains(t, errOut, "WARN: generation is disabled, showing the fallback preset")
	assert.Contains(t, out, "PRESET\t"+datatypes.FallbackPreset().Name)
}
