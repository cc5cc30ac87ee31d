// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generation runs the two backend stages of preset generation.
//
// # Description
//
// The SkeletonGenerator asks for a minimal activity list at temperature 0.
// The Expander turns that skeleton into a fully detailed preset at a
// caller-supplied temperature. Each stage makes exactly one backend call and
// never retries; retry policy belongs to the pipeline.
//
// Every failure is returned wrapped in ErrStageFailed. Backend errors are
// also kept in the chain, so errors.Is(err, llm.ErrTimeout) still works.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/PresetForge/services/llm"
	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

// ErrStageFailed marks a generation stage that produced no usable output.
var ErrStageFailed = errors.New("generation stage failed")

// Stage names used in errors and logs.
const (
	StageSkeleton = "skeleton"
	StageExpand   = "expand"
)

// SkeletonTemperature is fixed at 0 for maximal determinism.
const SkeletonTemperature = 0.0

func stageError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStageFailed, stage, err)
}

// =============================================================================
// Skeleton Generator
// =============================================================================

type skeletonResponse struct {
	Success    bool                 `json:"success"`
	Activities []datatypes.Activity `json:"activities"`
	Error      string               `json:"error,omitempty"`
}

// SkeletonGenerator produces the minimal first-pass activity list.
type SkeletonGenerator struct {
	client    llm.LLMClient
	maxTokens int
}

// NewSkeletonGenerator creates a SkeletonGenerator. maxTokens <= 0 uses the
// backend default.
func NewSkeletonGenerator(client llm.LLMClient, maxTokens int) *SkeletonGenerator {
	return &SkeletonGenerator{client: client, maxTokens: maxTokens}
}

// Generate calls the backend once at temperature 0.
//
// # Inputs
//
//   - ctx: Bounds the backend call.
//   - enrichedPrompt: Sanitized project context.
//
// # Outputs
//
//   - []datatypes.Activity: Non-empty, with enum casing normalized.
//   - error: Wraps ErrStageFailed when the backend fails, the response is
//     not JSON, success is false, or the activity list is empty.
func (g *SkeletonGenerator) Generate(ctx context.Context, enrichedPrompt string) ([]datatypes.Activity, error) {
	text, err := g.client.Complete(ctx, llm.CompletionRequest{
		System:          skeletonSystemPrompt,
		User:            enrichedPrompt,
		Temperature:     SkeletonTemperature,
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return nil, stageError(StageSkeleton, err)
	}

	var resp skeletonResponse
	if err := decodeCompletion(text, &resp); err != nil {
		return nil, stageError(StageSkeleton, fmt.Errorf("%w: %w", llm.ErrMalformed, err))
	}
	if !resp.Success {
		return nil, stageError(StageSkeleton, fmt.Errorf("backend reported failure: %q", resp.Error))
	}
	if len(resp.Activities) == 0 {
		return nil, stageError(StageSkeleton, errors.New("no activities returned"))
	}
	for i := range resp.Activities {
		resp.Activities[i].Normalize()
	}
	return resp.Activities, nil
}

// =============================================================================
// Expander
// =============================================================================

type expandResponse struct {
	Success bool                    `json:"success"`
	Preset  *datatypes.PresetOutput `json:"preset"`
	Error   string                  `json:"error,omitempty"`
}

// Expander enriches a skeleton into a full preset.
type Expander struct {
	client    llm.LLMClient
	maxTokens int
}

// NewExpander creates an Expander. maxTokens <= 0 uses the backend default.
func NewExpander(client llm.LLMClient, maxTokens int) *Expander {
	return &Expander{client: client, maxTokens: maxTokens}
}

// Expand calls the backend once at the given temperature.
//
// # Description
//
// An empty skeleton is the direct (non-ensemble) mode: the model derives the
// activities from the project context alone. The returned preset has enum
// casing and surrounding whitespace remediated but is otherwise unchecked;
// structural validation is the caller's job.
//
// # Outputs
//
//   - datatypes.PresetOutput: The decoded, normalized preset.
//   - error: Wraps ErrStageFailed on backend failure, malformed JSON,
//     success:false, or a missing preset.
func (e *Expander) Expand(ctx context.Context, skeleton []datatypes.Activity, enrichedPrompt string, temperature float64) (datatypes.PresetOutput, error) {
	user, err := buildExpandUserPrompt(enrichedPrompt, skeleton)
	if err != nil {
		return datatypes.PresetOutput{}, stageError(StageExpand, err)
	}

	text, err := e.client.Complete(ctx, llm.CompletionRequest{
		System:          expandSystemPrompt,
		User:            user,
		Temperature:     temperature,
		MaxOutputTokens: e.maxTokens,
	})
	if err != nil {
		return datatypes.PresetOutput{}, stageError(StageExpand, err)
	}

	var resp expandResponse
	if err := decodeCompletion(text, &resp); err != nil {
		return datatypes.PresetOutput{}, stageError(StageExpand, fmt.Errorf("%w: %w", llm.ErrMalformed, err))
	}
	if !resp.Success {
		return datatypes.PresetOutput{}, stageError(StageExpand, fmt.Errorf("backend reported failure: %q", resp.Error))
	}
	if resp.Preset == nil {
		return datatypes.PresetOutput{}, stageError(StageExpand, errors.New("response has no preset"))
	}

	preset := *resp.Preset
	preset.Normalize()
	return preset, nil
}
