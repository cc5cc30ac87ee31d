// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation schema-checks presets before they are accepted.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

// Default activity count bounds.
const (
	DefaultMinActivities = 5
	DefaultMaxActivities = 20
)

// activityCountTag is the struct-level rule reported for count violations.
const activityCountTag = "activitycount"

// Result is the outcome of validating one preset.
type Result struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// Validator checks the structural shape of a PresetOutput.
//
// # Description
//
// Field rules come from the validate tags on the datatypes package. The
// activity count is checked at struct level so the bounds can differ per
// Validator. Violation paths use JSON field names, for example
// "activities[2].estimatedHours".
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type Validator struct {
	validate      *validator.Validate
	minActivities int
	maxActivities int
}

// New returns a Validator with the default [5,20] activity bounds.
func New() *Validator {
	return NewWithBounds(DefaultMinActivities, DefaultMaxActivities)
}

// NewWithBounds returns a Validator with custom activity count bounds.
// Non-positive bounds fall back to the defaults.
func NewWithBounds(minActivities, maxActivities int) *Validator {
	if minActivities <= 0 {
		minActivities = DefaultMinActivities
	}
	if maxActivities <= 0 {
		maxActivities = DefaultMaxActivities
	}

	v := &Validator{
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		minActivities: minActivities,
		maxActivities: maxActivities,
	}
	v.validate.RegisterTagNameFunc(jsonFieldName)
	v.validate.RegisterStructValidation(v.presetLevel, datatypes.PresetOutput{})
	return v
}

// ClampBounds narrows configured activity count bounds to lie within the
// default [5,20] range. Configuration can tighten the structural check but
// never loosen it.
func ClampBounds(minActivities, maxActivities int) (int, int) {
	clamp := func(n int) int {
		return min(max(n, DefaultMinActivities), DefaultMaxActivities)
	}
	lo, hi := clamp(minActivities), clamp(maxActivities)
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Validate checks preset and returns every violation found.
func (v *Validator) Validate(preset datatypes.PresetOutput) Result {
	err := v.validate.Struct(preset)
	if err == nil {
		return Result{Valid: true}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Result{Valid: false, Violations: []string{err.Error()}}
	}
	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, v.describe(fe))
	}
	return Result{Valid: false, Violations: violations}
}

func (v *Validator) presetLevel(sl validator.StructLevel) {
	preset := sl.Current().Interface().(datatypes.PresetOutput)
	n := len(preset.Activities)
	if n < v.minActivities || n > v.maxActivities {
		sl.ReportError(preset.Activities, "activities", "Activities", activityCountTag, fmt.Sprint(n))
	}
}

// jsonFieldName reports struct fields by their JSON name.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// describe renders a field error as "path: message".
func (v *Validator) describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "oneof":
		msg = fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		msg = fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		msg = fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lte":
		msg = fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case activityCountTag:
		msg = fmt.Sprintf("must contain between %d and %d activities, got %s",
			v.minActivities, v.maxActivities, fe.Param())
	default:
		msg = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return path + ": " + msg
}
