// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring rates how well generated activities match the project
// they were generated for.
//
// The scores are advisory. They gate the pipeline's retry decision and
// never reject a preset on their own.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

// Score is the per-activity completeness breakdown. Every field is in [0,1].
type Score struct {
	Coherence    float64 `json:"coherence"`
	Depth        float64 `json:"depth"`
	Actionable   float64 `json:"actionable"`
	Completeness float64 `json:"completeness"`
}

// Scorer rates activities against the original project text.
//
// # Description
//
// Implementations must be deterministic and safe for concurrent use. The
// pipeline only depends on this interface, so the bag-of-words heuristic
// can be replaced by an embedding-based scorer without touching it.
type Scorer interface {
	// ScoreActivity scores one activity.
	ScoreActivity(activity datatypes.Activity, projectText string) Score

	// ScorePreset scores every activity and returns the mean completeness.
	// The mean is 0 for an empty list.
	ScorePreset(activities []datatypes.Activity, projectText string) ([]Score, float64)
}

// Weights and limits for BagOfWordsScorer.
const (
	CoherenceWeight  = 0.5
	DepthWeight      = 0.3
	ActionableWeight = 0.2

	// TopWords is the vocabulary size kept per side for coherence.
	TopWords = 100

	// MinAcceptanceCriteria makes an activity actionable.
	MinAcceptanceCriteria = 3

	bulletWeight   = 0.1
	maxBulletScore = 0.4
	detailBonus    = 0.2
	minWordLength  = 3
)

var bulletPattern = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "are": {}, "was": {}, "were": {}, "will": {}, "into": {},
	"have": {}, "has": {}, "had": {}, "been": {}, "its": {}, "their": {},
	"our": {}, "your": {}, "you": {}, "not": {}, "but": {}, "all": {},
	"any": {}, "can": {}, "should": {}, "would": {}, "could": {}, "each": {},
	"per": {}, "via": {}, "than": {}, "then": {}, "they": {}, "them": {},
	"these": {}, "those": {}, "which": {}, "what": {}, "when": {}, "where": {},
	"how": {}, "also": {}, "such": {}, "must": {},
}

// BagOfWordsScorer is the default Scorer. It uses cosine similarity of
// word-frequency vectors for coherence.
type BagOfWordsScorer struct{}

// NewBagOfWordsScorer returns the default scorer.
func NewBagOfWordsScorer() *BagOfWordsScorer {
	return &BagOfWordsScorer{}
}

// ScoreActivity implements Scorer.
func (s *BagOfWordsScorer) ScoreActivity(activity datatypes.Activity, projectText string) Score {
	return s.scoreWithProject(activity, topWords(projectText, TopWords))
}

// ScorePreset implements Scorer.
func (s *BagOfWordsScorer) ScorePreset(activities []datatypes.Activity, projectText string) ([]Score, float64) {
	if len(activities) == 0 {
		return nil, 0
	}
	project := topWords(projectText, TopWords)
	scores := make([]Score, len(activities))
	var sum float64
	for i, a := range activities {
		scores[i] = s.scoreWithProject(a, project)
		sum += scores[i].Completeness
	}
	return scores, sum / float64(len(activities))
}

func (s *BagOfWordsScorer) scoreWithProject(activity datatypes.Activity, project map[string]int) Score {
	text := activity.Description
	if strings.TrimSpace(text) == "" {
		text = activity.Title
	}
	score := Score{
		Coherence: Cosine(topWords(text, TopWords), project),
		Depth:     depth(activity),
	}
	if len(activity.AcceptanceCriteria) >= MinAcceptanceCriteria {
		score.Actionable = 1
	}
	score.Completeness = CoherenceWeight*score.Coherence +
		DepthWeight*score.Depth +
		ActionableWeight*score.Actionable
	return score
}

// =============================================================================
// Heuristics
// =============================================================================

// Words splits text into lowercase letter/digit runs of at least three
// characters, dropping stop words.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, w := range fields {
		if len([]rune(w)) < minWordLength {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// topWords returns the frequency map of the limit most frequent words.
// Ties are broken alphabetically so the result is deterministic.
func topWords(text string, limit int) map[string]int {
	counts := make(map[string]int)
	for _, w := range Words(text) {
		counts[w]++
	}
	if len(counts) <= limit {
		return counts
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	top := make(map[string]int, limit)
	for _, w := range words[:limit] {
		top[w] = counts[w]
	}
	return top
}

// Cosine returns the cosine similarity of two frequency vectors, or 0 if
// either is empty.
func Cosine(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for w, ca := range a {
		normA += float64(ca * ca)
		if cb, ok := b[w]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range b {
		normB += float64(cb * cb)
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		return 1
	}
	return sim
}

func depth(a datatypes.Activity) float64 {
	bullets := 0
	for _, line := range strings.Split(a.Description, "\n") {
		if bulletPattern.MatchString(strings.TrimSpace(line)) {
			bullets++
		}
	}
	d := math.Min(float64(bullets)*bulletWeight, maxBulletScore)

	if td := a.TechnicalDetails; td != nil {
		if len(td.SuggestedFiles) > 0 {
			d += detailBonus
		}
		if len(td.SuggestedCommands) > 0 {
			d += detailBonus
		}
		if len(td.Dependencies) > 0 {
			d += detailBonus
		}
	}
	return math.Min(d, 1)
}
