// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package splitter decomposes oversized activities into sub-activities that
// fit under an hour ceiling.
package splitter

import (
	"fmt"
	"math"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

const (
	// DefaultCeiling is the hour ceiling used when none is configured.
	DefaultCeiling = 8.0

	// ConfidenceFactor scales the confidence of every split part.
	ConfidenceFactor = 0.9
)

// phaseLabels are the title suffixes for split parts, per group. Parts past
// the end of a list are labelled "Part k".
var phaseLabels = map[datatypes.Group][]string{
	datatypes.GroupAnalysis:   {"Discovery", "Specification", "Review"},
	datatypes.GroupDev:        {"Setup", "Core Implementation", "Integration", "Refinement"},
	datatypes.GroupTest:       {"Test Planning", "Test Implementation", "Execution"},
	datatypes.GroupOps:        {"Preparation", "Deployment", "Verification"},
	datatypes.GroupGovernance: {"Planning", "Execution", "Sign-off"},
}

// Split returns activities with every activity above ceiling replaced by
// its parts.
//
// # Description
//
// For an activity of H hours with H > ceiling, n = ceil(H/ceiling) parts are
// produced. The first n-1 parts get floor(H/n) and the last part gets the
// remainder, so the parts sum to H exactly. If that remainder would still
// exceed the ceiling, n grows until it fits. When no whole-hour split fits
// (ceilings below one hour), the hours are divided evenly instead.
//
// Activities whose hours are not finite or exceed
// datatypes.MaxEstimatedHours are passed through unsplit for the validator
// to reject. The number of parts per activity is therefore bounded by
// MaxEstimatedHours/ceiling.
//
// # Inputs
//
//   - activities: Not modified.
//   - ceiling: Hour ceiling. Values <= 0 use DefaultCeiling.
//
// # Outputs
//
//   - []datatypes.Activity: A new slice. Activities at or under the ceiling
//     are deep copies of the input.
func Split(activities []datatypes.Activity, ceiling float64) []datatypes.Activity {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	out := make([]datatypes.Activity, 0, len(activities))
	for _, a := range activities {
		if !splittable(a.EstimatedHours, ceiling) {
			out = append(out, a.Clone())
			continue
		}
		out = append(out, splitActivity(a, ceiling)...)
	}
	return out
}

func splitActivity(a datatypes.Activity, ceiling float64) []datatypes.Activity {
	hours := Partition(a.EstimatedHours, ceiling)
	n := len(hours)
	labels := phaseLabels[a.Group]

	parts := make([]datatypes.Activity, n)
	for i, h := range hours {
		k := i + 1
		part := a.Clone()
		part.EstimatedHours = h

		if i < len(labels) {
			part.Title = fmt.Sprintf("%s - %s", a.Title, labels[i])
		} else {
			part.Title = fmt.Sprintf("%s - Part %d", a.Title, k)
		}
		if a.Description != "" {
			part.Description = fmt.Sprintf("%s (Part %d of %d)", a.Description, k, n)
		}
		if part.Confidence != nil {
			c := *part.Confidence * ConfidenceFactor
			part.Confidence = &c
		}
		parts[i] = part
	}
	return parts
}

// splittable reports whether hours is a schema-valid value above ceiling.
func splittable(hours, ceiling float64) bool {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return false
	}
	return hours > ceiling && hours <= datatypes.MaxEstimatedHours
}

// Partition divides hours into parts that are each at most ceiling and sum
// to hours exactly. Hours at or under the ceiling, or outside the schema
// range, come back as one part.
func Partition(hours, ceiling float64) []float64 {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if !splittable(hours, ceiling) {
		return []float64{hours}
	}

	start := int(math.Ceil(hours / ceiling))
	for n := start; n <= 2*start+1; n++ {
		base := math.Floor(hours / float64(n))
		if base < 1 {
			break
		}
		last := hours - base*float64(n-1)
		if last <= ceiling {
			parts := make([]float64, n)
			for i := 0; i < n-1; i++ {
				parts[i] = base
			}
			parts[n-1] = last
			return parts
		}
	}
	return evenParts(hours, start)
}

// evenParts splits hours into n equal parts; the last absorbs rounding.
func evenParts(hours float64, n int) []float64 {
	parts := make([]float64, n)
	each := hours / float64(n)
	var sum float64
	for i := 0; i < n-1; i++ {
		parts[i] = each
		sum += each
	}
	parts[n-1] = hours - sum
	return parts
}
