// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

func validPreset(n int) datatypes.PresetOutput {
	p := datatypes.PresetOutput{
		Name:         "Password reset",
		Description:  "Self-service password reset",
		TechCategory: datatypes.TechBackend,
		DriverValues: map[string]string{"complexity": "LOW"},
		RiskCodes:    []string{},
		Confidence:   0.8,
	}
	for i := 0; i < n; i++ {
		p.Activities = append(p.Activities, datatypes.Activity{
			Title:          "Activity",
			Group:          datatypes.GroupDev,
			EstimatedHours: 4,
			Priority:       datatypes.PriorityCore,
		})
	}
	return p
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func TestValidate_FallbackPresetPasses(t *testing.T) {
	result := New().Validate(datatypes.FallbackPreset())

	assert.True(t, result.Valid, "violations: %v", result.Violations)
	assert.Empty(t, result.Violations)
}

func TestValidate_ValidPreset(t *testing.T) {
	v := New()

	assert.True(t, v.Validate(validPreset(5)).Valid)
	assert.True(t, v.Validate(validPreset(20)).Valid)
}

func TestValidate_TooFewActivities(t *testing.T) {
	result := New().Validate(validPreset(3))

	require.False(t, result.Valid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "activities: must contain between 5 and 20 activities, got 3", result.Violations[0])
}

func TestValidate_TooManyActivities(t *testing.T) {
	result := New().Validate(validPreset(21))

	assert.False(t, result.Valid)
	assert.True(t, containsPrefix(result.Violations, "activities:"))
}

func TestValidate_HoursOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		hours float64
	}{
		{name: "500 hours", hours: 500},
		{name: "zero", hours: 0},
		{name: "negative", hours: -2},
		{name: "huge", hours: 1e9},
		{name: "positive infinity", hours: math.Inf(1)},
		{name: "not a number", hours: math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPreset(5)
			p.Activities[2].EstimatedHours = tt.hours

			result := New().Validate(p)

			assert.False(t, result.Valid)
			assert.True(t, containsPrefix(result.Violations, "activities[2].estimatedHours:"), "%v", result.Violations)
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	p := validPreset(3)
	p.Name = ""
	p.TechCategory = "MOBILE"
	p.Confidence = 1.5
	p.Activities[0].Group = "design"
	p.Activities[1].Priority = ""
	bad := 2.0
	p.Activities[2].Confidence = &bad

	result := New().Validate(p)

	require.False(t, result.Valid)
	for _, prefix := range []string{
		"name:",
		"techCategory:",
		"confidence:",
		"activities:",
		"activities[0].group:",
		"activities[1].priority:",
		"activities[2].confidence:",
	} {
		assert.True(t, containsPrefix(result.Violations, prefix), "missing %s in %v", prefix, result.Violations)
	}
}

func TestValidate_LengthBounds(t *testing.T) {
	p := validPreset(5)
	p.DetailedDescription = strings.Repeat("x", 10001)
	p.Reasoning = strings.Repeat("x", 10001)

	result := New().Validate(p)

	assert.False(t, result.Valid)
	assert.True(t, containsPrefix(result.Violations, "detailedDescription:"))
	assert.True(t, containsPrefix(result.Violations, "reasoning:"))
}

func TestNewWithBounds(t *testing.T) {
	v := NewWithBounds(2, 4)

	assert.True(t, v.Validate(validPreset(3)).Valid)
	assert.False(t, v.Validate(validPreset(5)).Valid)

	defaults := NewWithBounds(0, -1)
	assert.True(t, defaults.Validate(validPreset(5)).Valid)
}

func TestClampBounds(t *testing.T) {
	tests := []struct {
		name             string
		minIn, maxIn     int
		wantMin, wantMax int
	}{
		{name: "defaults", minIn: 5, maxIn: 20, wantMin: 5, wantMax: 20},
		{name: "tighter", minIn: 8, maxIn: 12, wantMin: 8, wantMax: 12},
		{name: "looser", minIn: 3, maxIn: 30, wantMin: 5, wantMax: 20},
		{name: "zero", minIn: 0, maxIn: 0, wantMin: 5, wantMax: 5},
		{name: "inverted", minIn: 18, maxIn: 6, wantMin: 6, wantMax: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMin, gotMax := ClampBounds(tt.minIn, tt.maxIn)

			assert.Equal(t, tt.wantMin, gotMin)
			assert.Equal(t, tt.wantMax, gotMax)
		})
	}
}
