// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

const project = "Build a customer self-service password reset flow using email verification"

func detailedActivity() datatypes.Activity {
	return datatypes.Activity{
		Title: "Password reset endpoint",
		Description: "Customer password reset flow with email verification.\n" +
			"- issue reset token\n- send verification email\n- validate token\n- store new password",
		Group:              datatypes.GroupDev,
		EstimatedHours:     6,
		Priority:           datatypes.PriorityCore,
		AcceptanceCriteria: []string{"a", "b", "c"},
		TechnicalDetails: &datatypes.TechnicalDetails{
			SuggestedFiles:    []string{"reset.go"},
			SuggestedCommands: []string{"go test ./..."},
			Dependencies:      []string{"smtp"},
		},
	}
}

func TestWords(t *testing.T) {
	got := Words("The API, v2 and OAuth2-based LOGIN for users! ok")

	assert.Equal(t, []string{"api", "oauth2", "based", "login", "users"}, got)
}

func TestCosine(t *testing.T) {
	a := map[string]int{"reset": 2, "password": 1}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, map[string]int{"deploy": 3}))
	assert.Equal(t, 0.0, Cosine(a, nil))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestTopWords_TieBreakIsAlphabetical(t *testing.T) {
	var words []string
	for i := 0; i < TopWords+10; i++ {
		words = append(words, fmt.Sprintf("word%03d", i))
	}
	text := strings.Join(words, " ") + " word105 word105"

	top := topWords(text, TopWords)

	require.Len(t, top, TopWords)
	assert.Equal(t, 3, top["word105"], "most frequent word always kept")
	assert.Contains(t, top, "word000")
	assert.NotContains(t, top, "word109")
}

func TestScoreActivity_Detailed(t *testing.T) {
	s := NewBagOfWordsScorer()

	score := s.ScoreActivity(detailedActivity(), project)

	assert.Greater(t, score.Coherence, 0.3)
	assert.InDelta(t, 1.0, score.Depth, 1e-9)
	assert.Equal(t, 1.0, score.Actionable)
	assert.GreaterOrEqual(t, score.Completeness, 0.65)
	assert.InDelta(t, 0.5*score.Coherence+0.3*score.Depth+0.2*score.Actionable, score.Completeness, 1e-9)
}

func TestScoreActivity_Minimal(t *testing.T) {
	s := NewBagOfWordsScorer()
	a := datatypes.Activity{Title: "Kickoff meeting", Group: datatypes.GroupGovernance, EstimatedHours: 2, Priority: datatypes.PriorityOptional}

	score := s.ScoreActivity(a, project)

	assert.Equal(t, Score{}, score)
}

func TestScoreActivity_TitleUsedWithoutDescription(t *testing.T) {
	s := NewBagOfWordsScorer()
	a := datatypes.Activity{Title: "Password reset email"}

	score := s.ScoreActivity(a, project)

	assert.Greater(t, score.Coherence, 0.0)
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name     string
		activity datatypes.Activity
		want     float64
	}{
		{name: "empty", activity: datatypes.Activity{}, want: 0},
		{name: "two bullets", activity: datatypes.Activity{Description: "- a\n* b"}, want: 0.2},
		{name: "bullets capped", activity: datatypes.Activity{Description: "1. a\n2) b\n• c\n- d\n- e\n- f"}, want: 0.4},
		{name: "dash without space is not a bullet", activity: datatypes.Activity{Description: "-a"}, want: 0},
		{
			name: "files only",
			activity: datatypes.Activity{TechnicalDetails: &datatypes.TechnicalDetails{
				SuggestedFiles: []string{"x"}, SuggestedTests: []string{"t"},
			}},
			want: 0.2,
		},
		{name: "capped at one", activity: detailedActivity(), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, depth(tt.activity), 1e-9)
		})
	}
}

func TestScorePreset(t *testing.T) {
	s := NewBagOfWordsScorer()

	scores, avg := s.ScorePreset(nil, project)
	assert.Nil(t, scores)
	assert.Equal(t, 0.0, avg)

	activities := []datatypes.Activity{detailedActivity(), {Title: "Unrelated kickoff"}}
	scores, avg = s.ScorePreset(activities, project)
	require.Len(t, scores, 2)
	assert.InDelta(t, (scores[0].Completeness+scores[1].Completeness)/2, avg, 1e-9)
	assert.Equal(t, s.ScoreActivity(activities[0], project), scores[0])
}
