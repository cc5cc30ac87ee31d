// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the preset data model shared by every stage of
// the generation pipeline.
//
// # Description
//
// A preset is a named bundle of estimation activities plus driver and risk
// hints. It is the pipeline's unit of output and the value stored in the
// cache. Types carry both json and yaml tags: json for the wire and the
// cache, yaml for the embedded Fallback Preset asset.
//
// Struct tags named `validate` are consumed by the validation package.
package datatypes

import "strings"

// =============================================================================
// Enumerations
// =============================================================================

// Group is the work stream an activity belongs to.
type Group string

const (
	GroupAnalysis   Group = "ANALYSIS"
	GroupDev        Group = "DEV"
	GroupTest       Group = "TEST"
	GroupOps        Group = "OPS"
	GroupGovernance Group = "GOVERNANCE"
)

// Groups lists every valid Group in display order.
var Groups = []Group{GroupAnalysis, GroupDev, GroupTest, GroupOps, GroupGovernance}

// Priority ranks how essential an activity is.
type Priority string

const (
	PriorityCore        Priority = "core"
	PriorityRecommended Priority = "recommended"
	PriorityOptional    Priority = "optional"
)

// TechCategory is the broad technical shape of the project.
type TechCategory string

const (
	TechFrontend TechCategory = "FRONTEND"
	TechBackend  TechCategory = "BACKEND"
	TechMulti    TechCategory = "MULTI"
)

// NormalizeGroup maps loose model output ("dev", " Dev ") onto the enum.
// Unknown values are returned upper-cased so the validator reports them.
func NormalizeGroup(g Group) Group {
	return Group(strings.ToUpper(strings.TrimSpace(string(g))))
}

// NormalizePriority maps loose model output ("Core") onto the enum.
func NormalizePriority(p Priority) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(string(p))))
}

// NormalizeTechCategory maps loose model output ("backend") onto the enum.
func NormalizeTechCategory(c TechCategory) TechCategory {
	return TechCategory(strings.ToUpper(strings.TrimSpace(string(c))))
}

// =============================================================================
// Activity
// =============================================================================

// TechnicalDetails holds implementation hints attached to an activity.
type TechnicalDetails struct {
	SuggestedFiles    []string `json:"suggestedFiles,omitempty" yaml:"suggestedFiles,omitempty"`
	SuggestedCommands []string `json:"suggestedCommands,omitempty" yaml:"suggestedCommands,omitempty"`
	SuggestedTests    []string `json:"suggestedTests,omitempty" yaml:"suggestedTests,omitempty"`
	Dependencies      []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// MaxEstimatedHours is the largest EstimatedHours the schema accepts. The
// lte rule on Activity.EstimatedHours must match it.
const MaxEstimatedHours = 320.0

// Activity is one estimation work item.
//
// # Fields
//
//   - Title: Required human label.
//   - Group: Required work stream.
//   - EstimatedHours: Required, > 0. The pipeline enforces an hour ceiling
//     after splitting; the schema accepts up to MaxEstimatedHours.
//   - Priority: Required.
//   - Confidence: Optional, in [0,1].
//   - Description, AcceptanceCriteria, TechnicalDetails,
//     EstimatedHoursJustification: Optional detail produced by expansion.
type Activity struct {
	Title                       string            `json:"title" yaml:"title" validate:"required,max=200"`
	Description                 string            `json:"description,omitempty" yaml:"description,omitempty" validate:"max=5000"`
	Group                       Group             `json:"group" yaml:"group" validate:"required,oneof=ANALYSIS DEV TEST OPS GOVERNANCE"`
	EstimatedHours              float64           `json:"estimatedHours" yaml:"estimatedHours" validate:"gt=0,lte=320"`
	Priority                    Priority          `json:"priority" yaml:"priority" validate:"required,oneof=core recommended optional"`
	Confidence                  *float64          `json:"confidence,omitempty" yaml:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	AcceptanceCriteria          []string          `json:"acceptanceCriteria,omitempty" yaml:"acceptanceCriteria,omitempty"`
	TechnicalDetails            *TechnicalDetails `json:"technicalDetails,omitempty" yaml:"technicalDetails,omitempty"`
	EstimatedHoursJustification string            `json:"estimatedHoursJustification,omitempty" yaml:"estimatedHoursJustification,omitempty" validate:"max=2000"`
}

// Clone returns a deep copy of the activity.
func (a Activity) Clone() Activity {
	out := a
	if a.Confidence != nil {
		c := *a.Confidence
		out.Confidence = &c
	}
	out.AcceptanceCriteria = cloneStrings(a.AcceptanceCriteria)
	if a.TechnicalDetails != nil {
		td := TechnicalDetails{
			SuggestedFiles:    cloneStrings(a.TechnicalDetails.SuggestedFiles),
			SuggestedCommands: cloneStrings(a.TechnicalDetails.SuggestedCommands),
			SuggestedTests:    cloneStrings(a.TechnicalDetails.SuggestedTests),
			Dependencies:      cloneStrings(a.TechnicalDetails.Dependencies),
		}
		out.TechnicalDetails = &td
	}
	return out
}

// Normalize trims text fields and folds enum casing in place.
func (a *Activity) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	a.Description = strings.TrimSpace(a.Description)
	a.Group = NormalizeGroup(a.Group)
	a.Priority = NormalizePriority(a.Priority)
}

// =============================================================================
// Preset
// =============================================================================

// PresetOutput is the pipeline's unit of output and cache value.
//
// # Description
//
// A PresetOutput that has passed the Structural Validator is well-formed
// per schema. It is NOT guaranteed topically relevant; relevance is a
// best-effort property driven by completeness scoring.
//
// Activity count bounds are enforced by the validator, not by tags, so the
// violation message can name the configured limits.
type PresetOutput struct {
	Name                string            `json:"name" yaml:"name" validate:"required,max=120"`
	Description         string            `json:"description" yaml:"description" validate:"required,max=1000"`
	DetailedDescription string            `json:"detailedDescription" yaml:"detailedDescription" validate:"max=10000"`
	TechCategory        TechCategory      `json:"techCategory" yaml:"techCategory" validate:"required,oneof=FRONTEND BACKEND MULTI"`
	Activities          []Activity        `json:"activities" yaml:"activities" validate:"dive"`
	DriverValues        map[string]string `json:"driverValues" yaml:"driverValues"`
	RiskCodes           []string          `json:"riskCodes" yaml:"riskCodes"`
	Reasoning           string            `json:"reasoning" yaml:"reasoning" validate:"max=10000"`
	Confidence          float64           `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
}

// Clone returns a deep copy of the preset.
func (p PresetOutput) Clone() PresetOutput {
	out := p
	if p.Activities != nil {
		out.Activities = make([]Activity, len(p.Activities))
		for i, a := range p.Activities {
			out.Activities[i] = a.Clone()
		}
	}
	if p.DriverValues != nil {
		out.DriverValues = make(map[string]string, len(p.DriverValues))
		for k, v := range p.DriverValues {
			out.DriverValues[k] = v
		}
	}
	out.RiskCodes = cloneStrings(p.RiskCodes)
	return out
}

// Normalize remediates casing and whitespace drift in model output.
func (p *PresetOutput) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.TechCategory = NormalizeTechCategory(p.TechCategory)
	for i := range p.Activities {
		p.Activities[i].Normalize()
	}
}

// TotalHours sums EstimatedHours across all activities.
func (p PresetOutput) TotalHours() float64 {
	var total float64
	for _, a := range p.Activities {
		total += a.EstimatedHours
	}
	return total
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
