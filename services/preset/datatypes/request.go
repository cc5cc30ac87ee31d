// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "github.com/google/uuid"

// =============================================================================
// Pipeline Input
// =============================================================================

// PipelineInput is the ephemeral request record for one pipeline run.
//
// # Description
//
// Owned by a single GeneratePreset call and discarded when it returns.
// Only the derived cache key and the final preset are ever persisted.
// UserID and RequestID are used for log correlation only; they never
// influence the cache key.
//
// # Fields
//
//   - UserID: Caller identity, logged.
//   - Description: Raw free-text project description (untrusted).
//   - Answers: Structured questionnaire answers (untrusted values).
//   - CategoryHint: Optional tech category hint (untrusted).
//   - RequestID: Correlation id. Generated by EnsureDefaults if empty.
type PipelineInput struct {
	UserID       string         `json:"userId"`
	Description  string         `json:"description" binding:"required"`
	Answers      map[string]any `json:"answers"`
	CategoryHint string         `json:"categoryHint,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
}

// EnsureDefaults generates a RequestID when the caller did not send one.
func (in *PipelineInput) EnsureDefaults() {
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
}

// =============================================================================
// Caller-facing Result
// =============================================================================

// Model pass labels reported in ResultMetadata.ModelPasses.
const (
	PassSkeleton = "skeleton"
	// PassExpandPrefix is followed by the temperature, e.g. "expand_temp0.6".
	PassExpandPrefix = "expand_temp"
)

// ResultMetadata describes how a GenerateResult was produced.
type ResultMetadata struct {
	Cached              bool     `json:"cached"`
	Attempts            int      `json:"attempts"`
	ModelPasses         []string `json:"modelPasses"`
	AverageCompleteness *float64 `json:"averageCompleteness,omitempty"`
	ValidationErrors    []string `json:"validationErrors,omitempty"`
	GenerationTimeMs    int64    `json:"generationTimeMs"`
	FallbackVersion     string   `json:"fallbackVersion,omitempty"`
}

// GenerateResult is the value returned by the pipeline's caller-facing
// operation.
//
// # Description
//
// Preset is always populated with a structurally valid preset. When
// Success is false, Preset holds the Fallback Preset and Error explains why;
// that combination is itself a valid, renderable result.
type GenerateResult struct {
	Success  bool           `json:"success"`
	Preset   PresetOutput   `json:"preset"`
	Error    string         `json:"error,omitempty"`
	Metadata ResultMetadata `json:"metadata"`
}
