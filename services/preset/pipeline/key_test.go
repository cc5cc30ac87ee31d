// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

func TestCacheKey_IgnoresIdentity(t *testing.T) {
	a := datatypes.PipelineInput{UserID: "u1", RequestID: "r1", Description: "Build a thing", Answers: map[string]any{"x": "1", "a": "2"}}
	b := datatypes.PipelineInput{UserID: "u2", RequestID: "r2", Description: "Build a thing", Answers: map[string]any{"a": "2", "x": "1"}}

	ka, err := CacheKey(a)
	require.NoError(t, err)
	kb, err := CacheKey(b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
	assert.True(t, strings.HasPrefix(ka, CacheKeyPrefix))
	assert.Len(t, strings.TrimPrefix(ka, CacheKeyPrefix), 64)
}

func TestCacheKey_SanitizedBeforeHashing(t *testing.T) {
	raw, err := CacheKey(datatypes.PipelineInput{Description: "  <Build> {a} thing\x00 "})
	require.NoError(t, err)
	clean, err := CacheKey(datatypes.PipelineInput{Description: "Build a thing"})
	require.NoError(t, err)

	assert.Equal(t, clean, raw)
}

func TestCacheKey_Distinguishes(t *testing.T) {
	base := datatypes.PipelineInput{Description: "Build a thing", Answers: map[string]any{"a": "1"}}
	k0, _ := CacheKey(base)

	otherAnswer := base
	otherAnswer.Answers = map[string]any{"a": "2"}
	k1, _ := CacheKey(otherAnswer)

	otherCategory := base
	otherCategory.CategoryHint = "BACKEND"
	k2, _ := CacheKey(otherCategory)

	assert.NotEqual(t, k0, k1)
	assert.NotEqual(t, k0, k2)
	assert.NotEqual(t, k1, k2)
}

func TestCacheKey_NilAndEmptyAnswersMatch(t *testing.T) {
	k1, _ := CacheKey(datatypes.PipelineInput{Description: "x"})
	k2, _ := CacheKey(datatypes.PipelineInput{Description: "x", Answers: map[string]any{}})

	assert.Equal(t, k1, k2)
}

func TestDeriveRequest_EnrichedPrompt(t *testing.T) {
	req, err := deriveRequest(datatypes.PipelineInput{
		Description:  "Reset flow",
		Answers:      map[string]any{"auth_mechanism": "custom_jwt"},
		CategoryHint: "BACKEND",
	})
	require.NoError(t, err)

	assert.Equal(t, "Reset flow", req.description)
	assert.Equal(t,
		"Project description:\nReset flow\n\nAnswers:\n{\"auth_mechanism\":\"custom_jwt\"}\n\nCategory hint: BACKEND",
		req.enrichedPrompt)
}

func TestDeriveRequest_UnencodableAnswers(t *testing.T) {
	_, err := deriveRequest(datatypes.PipelineInput{Description: "x", Answers: map[string]any{"c": make(chan int)}})

	assert.Error(t, err)
}
